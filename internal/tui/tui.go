// Package tui is the interactive outline: browse, fold, reorder and complete a project's
// tasks and notes, page through completed tasks and preview task content.
package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"bulletjournal-cli/internal/tasksync"
)

// Run blocks until the user quits. notices must be the notifier e was built with.
func Run(ctx context.Context, e *tasksync.Engine, notices *tasksync.Recorder, projectID int64, notes bool) error {
	applyThemePreference()
	applyColorProfilePreference()
	start := paneTasks
	if notes {
		start = paneNotes
	}
	m := newModel(ctx, e, notices, projectID, start)
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
