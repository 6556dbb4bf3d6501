package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"bulletjournal-cli/internal/api"
	"bulletjournal-cli/internal/model"
	"bulletjournal-cli/internal/tasksync"
	"bulletjournal-cli/internal/tree"
)

func newTasksCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Task commands",
	}
	cmd.AddCommand(newTasksListCmd(app))
	cmd.AddCommand(newTasksCreateCmd(app))
	cmd.AddCommand(newTasksPatchCmd(app))
	cmd.AddCommand(newTasksStatusCmd(app))
	cmd.AddCommand(newTasksCompleteCmd(app))
	cmd.AddCommand(newTasksUncompleteCmd(app))
	cmd.AddCommand(newTasksDeleteCmd(app))
	cmd.AddCommand(newTasksBulkCmd(app, "delete-many", "Delete several tasks of a project"))
	cmd.AddCommand(newTasksBulkCmd(app, "complete-many", "Complete several tasks of a project"))
	cmd.AddCommand(newTasksLabelsCmd(app))
	cmd.AddCommand(newTasksGetCmd(app))
	cmd.AddCommand(newTasksMoveCmd(app))
	cmd.AddCommand(newTasksDropCmd(app))
	cmd.AddCommand(newTasksShareCmd(app))
	cmd.AddCommand(newTasksSharablesCmd(app))
	cmd.AddCommand(newTasksRevokeCmd(app))
	return cmd
}

func fromView(s string) (model.ViewKind, error) {
	k, ok := model.ParseViewKind(strings.TrimSpace(s))
	if !ok {
		return "", invalidArgError{name: "view", value: s, expect: "project|today|assignee|order|label|recent"}
	}
	return k, nil
}

func newTasksListCmd(app *App) *cobra.Command {
	var cached bool
	cmd := &cobra.Command{
		Use:   "list <project-id>",
		Short: "Refresh and print a project's tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := parseID("project", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return withEngine(cmd, app, func(ctx context.Context, e *tasksync.Engine) (any, error) {
				if !cached {
					if err := e.Refresh(ctx, projectID); err != nil {
						return nil, err
					}
				}
				c, _ := e.Collection(projectID)
				return c, nil
			})
		},
	}
	cmd.Flags().BoolVar(&cached, "cached", false, "Print the cached collection without contacting the server")
	return cmd
}

type taskFlags struct {
	name       string
	assignees  []string
	due        string
	dueTime    string
	duration   int
	recurrence string
	timezone   string
	labels     []int64
	reminder   int
}

func (f *taskFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "Task name")
	cmd.Flags().StringArrayVar(&f.assignees, "assignee", nil, "Assignee (repeatable)")
	cmd.Flags().StringVar(&f.due, "due", "", "Due date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.dueTime, "time", "", "Due time (HH:MM)")
	cmd.Flags().IntVar(&f.duration, "duration", 0, "Duration in minutes")
	cmd.Flags().StringVar(&f.recurrence, "recurrence", "", "Recurrence rule (RRULE)")
	cmd.Flags().StringVar(&f.timezone, "task-tz", "", "Timezone of the due date")
	cmd.Flags().Int64SliceVar(&f.labels, "label", nil, "Label id (repeatable)")
	cmd.Flags().IntVar(&f.reminder, "remind-before", 0, "Reminder minutes before due")
}

func newTasksCreateCmd(app *App) *cobra.Command {
	var f taskFlags
	cmd := &cobra.Command{
		Use:   "create <project-id>",
		Short: "Create a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := parseID("project", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			t := api.CreateTask{
				Name:           strings.TrimSpace(f.name),
				Assignees:      f.assignees,
				DueDate:        f.due,
				DueTime:        f.dueTime,
				Duration:       f.duration,
				RecurrenceRule: f.recurrence,
				Timezone:       f.timezone,
				Labels:         f.labels,
			}
			if f.reminder > 0 {
				t.Reminder = &model.ReminderSetting{Before: f.reminder}
			}
			return withEngine(cmd, app, func(ctx context.Context, e *tasksync.Engine) (any, error) {
				return e.Create(ctx, projectID, t)
			})
		},
	}
	f.register(cmd)
	return cmd
}

func newTasksPatchCmd(app *App) *cobra.Command {
	var f taskFlags
	cmd := &cobra.Command{
		Use:   "patch <task-id>",
		Short: "Update fields of a task (only the flags given)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID, err := parseID("task", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			var p api.TaskPatch
			changed := cmd.Flags().Changed
			if changed("name") {
				p.Name = &f.name
			}
			if changed("assignee") {
				p.Assignees = append([]string{}, f.assignees...)
			}
			if changed("due") {
				p.DueDate = &f.due
			}
			if changed("time") {
				p.DueTime = &f.dueTime
			}
			if changed("duration") {
				p.Duration = &f.duration
			}
			if changed("recurrence") {
				p.RecurrenceRule = &f.recurrence
			}
			if changed("task-tz") {
				p.Timezone = &f.timezone
			}
			if changed("label") {
				p.Labels = append([]int64{}, f.labels...)
			}
			if changed("remind-before") {
				p.Reminder = &model.ReminderSetting{Before: f.reminder}
			}
			return withEngine(cmd, app, func(ctx context.Context, e *tasksync.Engine) (any, error) {
				if err := e.PatchOne(ctx, taskID, p); err != nil {
					return nil, err
				}
				return e.Selected(), nil
			})
		},
	}
	f.register(cmd)
	return cmd
}

func newTasksStatusCmd(app *App) *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "status <task-id> <status>",
		Short: "Set a task's status (none|in-progress|next-to-do|ready|on-hold)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID, err := parseID("task", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			status, ok := model.ParseTaskStatus(strings.TrimSpace(args[1]))
			if !ok {
				return writeErr(cmd, invalidArgError{name: "status", value: args[1], expect: "none|in-progress|next-to-do|ready|on-hold"})
			}
			view, err := fromView(from)
			if err != nil {
				return writeErr(cmd, err)
			}
			return withEngine(cmd, app, func(ctx context.Context, e *tasksync.Engine) (any, error) {
				if err := e.SetStatus(ctx, taskID, status, view); err != nil {
					return nil, err
				}
				c, _ := e.Collection(e.ProjectOf(taskID))
				return c, nil
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "project", "View the change originates from")
	return cmd
}

func newTasksCompleteCmd(app *App) *cobra.Command {
	var from, at string
	cmd := &cobra.Command{
		Use:   "complete <task-id>",
		Short: "Complete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID, err := parseID("task", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			view, err := fromView(from)
			if err != nil {
				return writeErr(cmd, err)
			}
			return withEngine(cmd, app, func(ctx context.Context, e *tasksync.Engine) (any, error) {
				if err := e.Complete(ctx, taskID, view, at); err != nil {
					return nil, err
				}
				return map[string]any{"completed": taskID, "views": e.Views()}, nil
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "project", "View the change originates from")
	cmd.Flags().StringVar(&at, "at", "", "Occurrence date-time of a recurring task (YYYY-MM-DD HH:MM)")
	return cmd
}

func newTasksUncompleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "uncomplete <task-id>",
		Short: "Move a completed task back into its project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID, err := parseID("task", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return withEngine(cmd, app, func(ctx context.Context, e *tasksync.Engine) (any, error) {
				if err := e.Uncomplete(ctx, taskID); err != nil {
					return nil, err
				}
				return map[string]any{"uncompleted": taskID}, nil
			})
		},
	}
}

func newTasksDeleteCmd(app *App) *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "delete <task-id>",
		Short: "Delete a task with its subtasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID, err := parseID("task", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			view, err := fromView(from)
			if err != nil {
				return writeErr(cmd, err)
			}
			return withEngine(cmd, app, func(ctx context.Context, e *tasksync.Engine) (any, error) {
				if err := e.Delete(ctx, taskID, view); err != nil {
					return nil, err
				}
				return map[string]any{"deleted": taskID}, nil
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "project", "View the change originates from")
	return cmd
}

func newTasksBulkCmd(app *App, use, short string) *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   use + " <project-id> <task-id>...",
		Short: short,
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := parseID("project", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			ids, err := parseIDs("task", args[1:])
			if err != nil {
				return writeErr(cmd, err)
			}
			view, err := fromView(from)
			if err != nil {
				return writeErr(cmd, err)
			}
			return withEngine(cmd, app, func(ctx context.Context, e *tasksync.Engine) (any, error) {
				run := e.DeleteMany
				if use == "complete-many" {
					run = e.CompleteMany
				}
				if err := run(ctx, projectID, ids, view); err != nil {
					return nil, err
				}
				c, _ := e.Collection(projectID)
				return c, nil
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "project", "View the change originates from")
	return cmd
}

func newTasksLabelsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "labels <task-id> [label-id...]",
		Short: "Replace a task's labels",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID, err := parseID("task", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			labels, err := parseIDs("label", args[1:])
			if err != nil {
				return writeErr(cmd, err)
			}
			return withEngine(cmd, app, func(ctx context.Context, e *tasksync.Engine) (any, error) {
				if err := e.SetLabels(ctx, taskID, labels); err != nil {
					return nil, err
				}
				return e.Selected(), nil
			})
		},
	}
}

func newTasksGetCmd(app *App) *cobra.Command {
	var completed bool
	cmd := &cobra.Command{
		Use:   "get <task-id>",
		Short: "Fetch one task and make it the selected task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID, err := parseID("task", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return withEngine(cmd, app, func(ctx context.Context, e *tasksync.Engine) (any, error) {
				if completed {
					return e.GetCompleted(ctx, taskID)
				}
				return e.Get(ctx, taskID)
			})
		},
	}
	cmd.Flags().BoolVar(&completed, "completed", false, "Look the task up among completed tasks")
	return cmd
}

func newTasksMoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "move <task-id> <target-project-id>",
		Short: "Move a task to another project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID, err := parseID("task", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			target, err := parseID("project", args[1])
			if err != nil {
				return writeErr(cmd, err)
			}
			return withEngine(cmd, app, func(ctx context.Context, e *tasksync.Engine) (any, error) {
				if err := e.Move(ctx, taskID, target); err != nil {
					return nil, err
				}
				c, _ := e.Collection(target)
				return c, nil
			})
		},
	}
}

func parseDrop(args []string) (tree.Drop, error) {
	source, err := parseID("source", args[0])
	if err != nil {
		return tree.Drop{}, err
	}
	pos, err := tree.ParsePosition(args[1])
	if err != nil {
		return tree.Drop{}, err
	}
	target, err := parseID("target", args[2])
	if err != nil {
		return tree.Drop{}, err
	}
	return tree.Drop{SourceID: source, TargetID: target, Position: pos}, nil
}

func newTasksDropCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "drop <project-id> <source-id> <above|on|below> <target-id>",
		Short:   "Reorder or reparent a task within the project tree",
		Example: "  bulletjournal tasks drop 12 345 on 340",
		Args:    cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := parseID("project", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			d, err := parseDrop(args[1:])
			if err != nil {
				return writeErr(cmd, err)
			}
			return withEngine(cmd, app, func(ctx context.Context, e *tasksync.Engine) (any, error) {
				if err := e.DropTask(ctx, projectID, d); err != nil {
					return nil, err
				}
				c, _ := e.Collection(projectID)
				return c, nil
			})
		},
	}
}

func newTasksShareCmd(app *App) *cobra.Command {
	var p api.ShareParams
	cmd := &cobra.Command{
		Use:   "share <task-id>",
		Short: "Share a task with a user or group, or create a public link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID, err := parseID("task", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return withEngine(cmd, app, func(ctx context.Context, e *tasksync.Engine) (any, error) {
				link, err := e.Share(ctx, taskID, p)
				if err != nil {
					return nil, err
				}
				return map[string]any{"taskId": taskID, "link": link}, nil
			})
		},
	}
	cmd.Flags().StringVar(&p.TargetUser, "user", "", "Share with this user")
	cmd.Flags().Int64Var(&p.TargetGroup, "group", 0, "Share with this group")
	cmd.Flags().BoolVar(&p.GenerateLink, "link", false, "Generate a public link")
	cmd.Flags().IntVar(&p.TTL, "ttl", 0, "Link lifetime in days (0 = no expiry)")
	return cmd
}

func newTasksSharablesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "sharables <task-id>",
		Short: "List who a task is shared with",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID, err := parseID("task", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return withEngine(cmd, app, func(ctx context.Context, e *tasksync.Engine) (any, error) {
				return e.Sharables(ctx, taskID)
			})
		},
	}
}

func newTasksRevokeCmd(app *App) *cobra.Command {
	var user, link string
	cmd := &cobra.Command{
		Use:   "revoke <task-id>",
		Short: "Revoke a user's access or a public link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID, err := parseID("task", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return withEngine(cmd, app, func(ctx context.Context, e *tasksync.Engine) (any, error) {
				if err := e.RevokeSharable(ctx, taskID, user, link); err != nil {
					return nil, err
				}
				s, _ := e.CachedSharables(taskID)
				return s, nil
			})
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "User to revoke")
	cmd.Flags().StringVar(&link, "link", "", "Link to revoke")
	return cmd
}
