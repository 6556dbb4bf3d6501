package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"bulletjournal-cli/internal/tasksync"
	"bulletjournal-cli/internal/tui"
)

func newTUICmd(app *App) *cobra.Command {
	var notes bool
	cmd := &cobra.Command{
		Use:   "tui <project-id>",
		Short: "Browse and reorganize a project interactively",
		Long: strings.TrimSpace(`
Browse a project's tasks, notes and completed tasks in the terminal.

Keys: j/k move, enter folds, m picks a row up and a/o/b drops it above, onto or below
the cursor, x completes, s cycles the status, p toggles the content preview, tab switches
between tasks, notes and completed, n loads more completed tasks, q quits.
`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := parseID("project", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			// Notices go to the status line instead of stderr while the screen is taken.
			notices := &tasksync.Recorder{}
			e, save := app.openSession(ctx, notices)
			defer save()
			return tui.Run(ctx, e, notices, projectID, notes)
		},
	}
	cmd.Flags().BoolVar(&notes, "notes", false, "Start on the note tree")
	return cmd
}
