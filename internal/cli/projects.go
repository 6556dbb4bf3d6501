package cli

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"bulletjournal-cli/internal/tasksync"
)

func newProjectsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "Project commands",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List owned and shared projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, app, func(ctx context.Context, e *tasksync.Engine) (any, error) {
				if err := e.LoadProjects(ctx); err != nil {
					return nil, err
				}
				p, _ := e.Projects()
				return p, nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "drop <source-id> <above|on|below> <target-id>",
		Short: "Reorder or reparent an owned project",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := parseDrop(args)
			if err != nil {
				return writeErr(cmd, err)
			}
			return withEngine(cmd, app, func(ctx context.Context, e *tasksync.Engine) (any, error) {
				if err := e.DropProject(ctx, d); err != nil {
					return nil, err
				}
				p, _ := e.Projects()
				return p, nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "reorder-shared <from-index> <to-index>",
		Short: "Move a shared-projects group to another position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := strconv.Atoi(args[0])
			if err != nil {
				return writeErr(cmd, invalidArgError{name: "index", value: args[0], expect: "a number"})
			}
			to, err := strconv.Atoi(args[1])
			if err != nil {
				return writeErr(cmd, invalidArgError{name: "index", value: args[1], expect: "a number"})
			}
			return withEngine(cmd, app, func(ctx context.Context, e *tasksync.Engine) (any, error) {
				if err := e.ReorderSharedProjects(ctx, from, to); err != nil {
					return nil, err
				}
				p, _ := e.Projects()
				return p.Shared, nil
			})
		},
	})
	return cmd
}

func newNotesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notes",
		Short: "Note tree commands",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list <project-id>",
		Short: "Load a project's note tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := parseID("project", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return withEngine(cmd, app, func(ctx context.Context, e *tasksync.Engine) (any, error) {
				if err := e.LoadNotes(ctx, projectID); err != nil {
					return nil, err
				}
				n, _ := e.NoteTree(projectID)
				return n, nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:     "drop <project-id> <source-id> <above|on|below> <target-id>",
		Short:   "Reorder or reparent a note and save the whole tree",
		Example: "  bulletjournal notes drop 7 81 above 80",
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
				if err := e.DropNote(ctx, projectID, d); err != nil {
					return nil, err
				}
				n, _ := e.NoteTree(projectID)
				return n, nil
			})
		},
	})
	return cmd
}
