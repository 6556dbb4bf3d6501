package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"bulletjournal-cli/internal/api"
	"bulletjournal-cli/internal/tasksync"
)

func newCompletedCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completed",
		Short: "Completed task pages",
	}
	cmd.AddCommand(newCompletedMoreCmd(app))
	cmd.AddCommand(newCompletedShowCmd(app))
	cmd.AddCommand(newCompletedSearchCmd(app))
	cmd.AddCommand(newCompletedDeleteCmd(app))
	return cmd
}

func newCompletedMoreCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "more <project-id>",
		Short: "Show one more page of completed tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := parseID("project", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return withEngine(cmd, app, func(ctx context.Context, e *tasksync.Engine) (any, error) {
				if err := e.MoreCompleted(ctx, projectID); err != nil {
					return nil, err
				}
				return e.CompletedPage(projectID), nil
			})
		},
	}
}

func newCompletedShowCmd(app *App) *cobra.Command {
	var reset bool
	cmd := &cobra.Command{
		Use:   "show <project-id>",
		Short: "Print the completed pages loaded so far",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := parseID("project", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return withEngine(cmd, app, func(ctx context.Context, e *tasksync.Engine) (any, error) {
				if reset {
					e.ResetCompleted(projectID)
				}
				return e.CompletedPage(projectID), nil
			})
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "Forget the loaded pages")
	return cmd
}

func newCompletedSearchCmd(app *App) *cobra.Command {
	var q api.CompletedQuery
	cmd := &cobra.Command{
		Use:   "search <project-id>",
		Short: "Search completed tasks by assignee and date window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := parseID("project", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return withEngine(cmd, app, func(ctx context.Context, e *tasksync.Engine) (any, error) {
				if err := e.SearchCompleted(ctx, projectID, q); err != nil {
					return nil, err
				}
				return e.Views().SearchCompleted, nil
			})
		},
	}
	cmd.Flags().StringVar(&q.Assignee, "assignee", "", "Only tasks assigned to this user")
	cmd.Flags().StringVar(&q.StartDate, "start", "", "Window start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&q.EndDate, "end", "", "Window end (YYYY-MM-DD)")
	return cmd
}

func newCompletedDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <task-id>",
		Short: "Delete a completed task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID, err := parseID("task", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return withEngine(cmd, app, func(ctx context.Context, e *tasksync.Engine) (any, error) {
				if err := e.DeleteCompleted(ctx, taskID); err != nil {
					return nil, err
				}
				return map[string]any{"deleted": taskID}, nil
			})
		},
	}
}

func newViewsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "views",
		Short: "Load derived views (assignee, order, labels, recent, today)",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "assignee <project-id> <user>",
		Short: "Tasks of a project assigned to one user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := parseID("project", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return withEngine(cmd, app, func(ctx context.Context, e *tasksync.Engine) (any, error) {
				if err := e.LoadAssignee(ctx, projectID, args[1]); err != nil {
					return nil, err
				}
				return e.Views().Assignee, nil
			})
		},
	})
	cmd.AddCommand(newViewsOrderCmd(app))
	cmd.AddCommand(&cobra.Command{
		Use:   "labels <label-id>...",
		Short: "Tasks and notes carrying any of the labels, grouped by date",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			labels, err := parseIDs("label", args)
			if err != nil {
				return writeErr(cmd, err)
			}
			return withEngine(cmd, app, func(ctx context.Context, e *tasksync.Engine) (any, error) {
				if err := e.LoadLabels(ctx, labels); err != nil {
					return nil, err
				}
				return e.Views().Label, nil
			})
		},
	})
	cmd.AddCommand(newViewsRecentCmd(app))
	cmd.AddCommand(&cobra.Command{
		Use:   "today",
		Short: "Today's items across the selected project types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, app, func(ctx context.Context, e *tasksync.Engine) (any, error) {
				if err := e.LoadToday(ctx); err != nil {
					return nil, err
				}
				return e.Views().Today, nil
			})
		},
	})
	cmd.AddCommand(newViewsSelectionCmd(app))
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print every cached view",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, app, func(ctx context.Context, e *tasksync.Engine) (any, error) {
				return e.Views(), nil
			})
		},
	})
	return cmd
}

func newViewsOrderCmd(app *App) *cobra.Command {
	var start, end string
	cmd := &cobra.Command{
		Use:   "order <project-id>",
		Short: "A project's tasks flattened and ordered by due date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := parseID("project", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return withEngine(cmd, app, func(ctx context.Context, e *tasksync.Engine) (any, error) {
				if err := e.LoadOrder(ctx, projectID, start, end); err != nil {
					return nil, err
				}
				return e.Views().Order, nil
			})
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "Window start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "Window end (YYYY-MM-DD)")
	return cmd
}

func newViewsRecentCmd(app *App) *cobra.Command {
	var start, end string
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "Recently updated items, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, app, func(ctx context.Context, e *tasksync.Engine) (any, error) {
				if err := e.LoadRecent(ctx, start, end); err != nil {
					return nil, err
				}
				return e.Views().Recent, nil
			})
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "Window start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "Window end (YYYY-MM-DD)")
	return cmd
}

func newViewsSelectionCmd(app *App) *cobra.Command {
	var types string
	cmd := &cobra.Command{
		Use:   "selection",
		Short: "Show or change the project types the today view includes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, app, func(ctx context.Context, e *tasksync.Engine) (any, error) {
				sel := e.Selection()
				if cmd.Flags().Changed("types") {
					sel.Todo, sel.Ledger, sel.Note = false, false, false
					for _, t := range strings.Split(types, ",") {
						switch strings.ToLower(strings.TrimSpace(t)) {
						case "todo":
							sel.Todo = true
						case "ledger":
							sel.Ledger = true
						case "note":
							sel.Note = true
						case "":
						default:
							return nil, invalidArgError{name: "project type", value: t, expect: "todo|ledger|note"}
						}
					}
				}
				if app.cfg.Timezone != "" {
					sel.Timezone = app.cfg.Timezone
				}
				if err := e.SetSelection(ctx, sel); err != nil {
					return nil, err
				}
				return e.Selection(), nil
			})
		},
	}
	cmd.Flags().StringVar(&types, "types", "", "Comma-separated project types (todo,ledger,note)")
	return cmd
}
