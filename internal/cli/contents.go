package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"bulletjournal-cli/internal/tasksync"
)

func newContentsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contents",
		Short: "Task content blocks and their revisions",
	}

	var completed bool
	list := &cobra.Command{
		Use:   "list <task-id>",
		Short: "List a task's content blocks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID, err := parseID("task", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return withEngine(cmd, app, func(ctx context.Context, e *tasksync.Engine) (any, error) {
				if completed {
					return e.LoadCompletedContents(ctx, taskID)
				}
				return e.LoadContents(ctx, taskID)
			})
		},
	}
	list.Flags().BoolVar(&completed, "completed", false, "The task is completed")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "add <task-id> <text>",
		Short: "Add a content block",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID, err := parseID("task", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			text := strings.Join(args[1:], " ")
			return withEngine(cmd, app, func(ctx context.Context, e *tasksync.Engine) (any, error) {
				return e.CreateContent(ctx, taskID, text)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "edit <task-id> <content-id> <text>",
		Short: "Record a new revision of a content block",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID, err := parseID("task", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			contentID, err := parseID("content", args[1])
			if err != nil {
				return writeErr(cmd, err)
			}
			text := strings.Join(args[2:], " ")
			return withEngine(cmd, app, func(ctx context.Context, e *tasksync.Engine) (any, error) {
				if err := e.PatchContent(ctx, taskID, contentID, text); err != nil {
					return nil, err
				}
				list, _ := e.CachedContents(taskID)
				return list, nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <task-id> <content-id>",
		Short: "Delete a content block",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID, err := parseID("task", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			contentID, err := parseID("content", args[1])
			if err != nil {
				return writeErr(cmd, err)
			}
			return withEngine(cmd, app, func(ctx context.Context, e *tasksync.Engine) (any, error) {
				if err := e.DeleteContent(ctx, taskID, contentID); err != nil {
					return nil, err
				}
				list, _ := e.CachedContents(taskID)
				return list, nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "revision <task-id> <content-id> <revision-id>",
		Short: "Print one revision's text (fetched once, then cached)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs("content", args)
			if err != nil {
				return writeErr(cmd, err)
			}
			return withEngine(cmd, app, func(ctx context.Context, e *tasksync.Engine) (any, error) {
				return e.LoadRevision(ctx, ids[0], ids[1], ids[2])
			})
		},
	})
	return cmd
}
