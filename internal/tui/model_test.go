package tui

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	log "github.com/sirupsen/logrus"

	"bulletjournal-cli/internal/api"
	"bulletjournal-cli/internal/devserver"
	"bulletjournal-cli/internal/model"
	"bulletjournal-cli/internal/tasksync"
)

type fixture struct {
	srv     *devserver.Server
	engine  *tasksync.Engine
	notices *tasksync.Recorder
	project model.Project
}

func newFixture(t *testing.T, opts ...tasksync.Option) *fixture {
	t.Helper()
	lipgloss.SetColorProfile(termenv.Ascii)
	logger := log.New()
	logger.SetLevel(log.WarnLevel)
	srv := devserver.New(logger, devserver.WithUser("amy"))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	p, err := srv.AddProject("Work", model.ProjectTypeTodo, 0)
	if err != nil {
		t.Fatalf("add project: %v", err)
	}
	rec := &tasksync.Recorder{}
	opts = append([]tasksync.Option{tasksync.WithNotifier(rec), tasksync.WithLogger(logger)}, opts...)
	e := tasksync.New(api.New(ts.URL, "", api.WithLogger(logger)), opts...)
	return &fixture{srv: srv, engine: e, notices: rec, project: p}
}

func (f *fixture) task(t *testing.T, name string) model.Task {
	t.Helper()
	out, err := f.srv.AddTask(f.project.ID, 0, model.Task{Name: name})
	if err != nil {
		t.Fatalf("add task: %v", err)
	}
	return out
}

// drive runs cmd and feeds its message back into the model until nothing is left to do.
func drive(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	for cmd != nil {
		msg := cmd()
		if _, ok := msg.(tea.QuitMsg); ok {
			return m
		}
		var next tea.Model
		next, cmd = m.Update(msg)
		m = next.(Model)
	}
	return m
}

func press(t *testing.T, m Model, keys ...string) Model {
	t.Helper()
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "tab":
			msg = tea.KeyMsg{Type: tea.KeyTab}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		next, cmd := m.Update(msg)
		m = drive(t, next.(Model), cmd)
	}
	return m
}

func rowNames(m Model) string {
	names := make([]string, 0, len(m.rows))
	for _, r := range m.rows {
		names = append(names, r.name)
	}
	return strings.Join(names, ",")
}

func start(t *testing.T, f *fixture, p pane) Model {
	t.Helper()
	m := newModel(context.Background(), f.engine, f.notices, f.project.ID, p)
	return drive(t, m, m.Init())
}

func TestInitLoadsProjectTasks(t *testing.T) {
	f := newFixture(t)
	f.task(t, "a")
	f.task(t, "b")

	m := start(t, f, paneTasks)
	if got := rowNames(m); got != "a,b" {
		t.Fatalf("expected a,b, got %q", got)
	}
	if m.status != "refresh" || m.statusErr {
		t.Fatalf("unexpected status %q", m.status)
	}
}

func TestPickUpAndDropAboveReordersOnServer(t *testing.T) {
	f := newFixture(t)
	f.task(t, "a")
	f.task(t, "b")
	f.task(t, "c")

	m := start(t, f, paneTasks)
	m = press(t, m, "G", "m", "g", "a")
	if got := rowNames(m); got != "c,a,b" {
		t.Fatalf("expected c,a,b, got %q", got)
	}
	var server []string
	for _, task := range f.srv.Tasks(f.project.ID) {
		server = append(server, task.Name)
	}
	if strings.Join(server, ",") != "c,a,b" {
		t.Fatalf("server order %v", server)
	}
	if m.picked != 0 {
		t.Fatalf("drop must release the picked row")
	}
}

func TestDropOntoNestsAndFolds(t *testing.T) {
	f := newFixture(t)
	f.task(t, "a")
	f.task(t, "b")

	m := start(t, f, paneTasks)
	m = press(t, m, "j", "m", "k", "o")
	if len(m.rows) != 2 || m.rows[1].depth != 1 || !m.rows[0].hasChildren {
		t.Fatalf("expected b under a, got %+v", m.rows)
	}
	m = press(t, m, "g", "enter")
	if got := rowNames(m); got != "a" {
		t.Fatalf("expected folded outline, got %q", got)
	}
}

func TestDropOntoSelfShowsCycleError(t *testing.T) {
	f := newFixture(t)
	f.task(t, "a")

	m := start(t, f, paneTasks)
	m = press(t, m, "m", "o")
	if !m.statusErr || !strings.Contains(m.status, "cannot drop") {
		t.Fatalf("expected a cycle notice, got %q", m.status)
	}
}

func TestCompleteRemovesRow(t *testing.T) {
	f := newFixture(t)
	f.task(t, "a")
	f.task(t, "b")

	m := start(t, f, paneTasks)
	m = press(t, m, "x")
	if got := rowNames(m); got != "b" {
		t.Fatalf("expected b, got %q", got)
	}
	if len(f.srv.Completed(f.project.ID)) != 1 {
		t.Fatalf("expected one completed task on the server")
	}
}

func TestCompletedPanePagesOnDemand(t *testing.T) {
	f := newFixture(t, tasksync.WithPageSize(2))
	for i := range 3 {
		if _, err := f.srv.AddCompletedTask(f.project.ID, model.Task{Name: fmt.Sprintf("done %d", i)}); err != nil {
			t.Fatalf("add completed: %v", err)
		}
	}

	m := start(t, f, paneTasks)
	m = press(t, m, "tab", "tab")
	if m.pane != paneCompleted || len(m.rows) != 2 {
		t.Fatalf("expected first completed page, got %d rows in %s", len(m.rows), m.pane)
	}
	if !strings.Contains(m.View(), "n for more") {
		t.Fatalf("expected more hint in %q", m.View())
	}
	m = press(t, m, "n")
	if len(m.rows) != 3 {
		t.Fatalf("expected all completed tasks, got %d", len(m.rows))
	}
	m = press(t, m, "n")
	if len(m.rows) != 3 || m.statusErr {
		t.Fatalf("exhausted list must stay put, got %d rows and %q", len(m.rows), m.status)
	}
}

func TestPreviewShowsLatestRevision(t *testing.T) {
	f := newFixture(t)
	a := f.task(t, "a")
	ctx := context.Background()
	c, err := f.engine.CreateContent(ctx, a.ID, "first draft")
	if err != nil {
		t.Fatalf("create content: %v", err)
	}
	if err := f.engine.PatchContent(ctx, a.ID, c.ID, "final words"); err != nil {
		t.Fatalf("patch content: %v", err)
	}

	text, err := previewText(ctx, f.engine, a.ID, false)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if !strings.Contains(text, "final words") {
		t.Fatalf("expected latest revision, got %q", text)
	}

	m := start(t, f, paneTasks)
	m = press(t, m, "p")
	if !m.showPreview || m.previewFor != a.ID {
		t.Fatalf("expected preview for %d, got %d", a.ID, m.previewFor)
	}
	if !strings.Contains(m.View(), "final") {
		t.Fatalf("expected preview text in view:\n%s", m.View())
	}
}

func TestNotesPaneShowsNoteTree(t *testing.T) {
	f := newFixture(t)
	n1, err := f.srv.AddNote(f.project.ID, 0, model.Note{Name: "ideas"})
	if err != nil {
		t.Fatalf("add note: %v", err)
	}
	if _, err := f.srv.AddNote(f.project.ID, n1.ID, model.Note{Name: "more ideas"}); err != nil {
		t.Fatalf("add note: %v", err)
	}

	m := start(t, f, paneNotes)
	if got := rowNames(m); got != "ideas,more ideas" {
		t.Fatalf("unexpected notes %q", got)
	}
	if m.rows[1].depth != 1 {
		t.Fatalf("expected nested note")
	}
}
