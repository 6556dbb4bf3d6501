package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"bulletjournal-cli/internal/model"
	"bulletjournal-cli/internal/tasksync"
	"bulletjournal-cli/internal/tree"
)

type pane int

const (
	paneTasks pane = iota
	paneNotes
	paneCompleted
)

func (p pane) String() string {
	switch p {
	case paneNotes:
		return "notes"
	case paneCompleted:
		return "completed"
	default:
		return "tasks"
	}
}

// doneMsg reports the end of one engine call.
type doneMsg struct {
	op  string
	err error
}

type previewMsg struct {
	taskID int64
	text   string
	err    error
}

// Model is the journal outline: one project's tasks, notes or completed tasks.
type Model struct {
	ctx       context.Context
	engine    *tasksync.Engine
	notices   *tasksync.Recorder
	seen      int
	projectID int64

	pane      pane
	collapsed map[int64]bool
	rows      []row
	cursor    int
	offset    int
	picked    int64
	busy      bool

	status    string
	statusErr bool

	showPreview bool
	previewFor  int64
	preview     viewport.Model

	width  int
	height int
}

// newModel builds the outline for projectID. Engine notices are read back from notices, which
// must be the engine's notifier.
func newModel(ctx context.Context, e *tasksync.Engine, notices *tasksync.Recorder, projectID int64, start pane) Model {
	m := Model{
		ctx:       ctx,
		engine:    e,
		notices:   notices,
		seen:      len(notices.Notices()),
		projectID: projectID,
		pane:      start,
		collapsed: map[int64]bool{},
		preview:   viewport.New(40, 10),
		width:     80,
		height:    24,
	}
	m.rebuild()
	return m
}

func (m Model) Init() tea.Cmd {
	return m.load()
}

// load fetches whatever the current pane shows.
func (m Model) load() tea.Cmd {
	e, ctx, projectID := m.engine, m.ctx, m.projectID
	switch m.pane {
	case paneNotes:
		return run("load notes", func() error { return e.LoadNotes(ctx, projectID) })
	case paneCompleted:
		if e.CompletedPage(projectID).PageNo > 0 {
			return nil
		}
		return run("load completed", func() error { return e.MoreCompleted(ctx, projectID) })
	default:
		return run("refresh", func() error { return e.Refresh(ctx, projectID) })
	}
}

func run(op string, fn func() error) tea.Cmd {
	return func() tea.Msg {
		return doneMsg{op: op, err: fn()}
	}
}

func (m *Model) rebuild() {
	var cur int64
	if r, ok := m.current(); ok {
		cur = r.id
	}
	switch m.pane {
	case paneNotes:
		m.rows = noteRows(m.engine.NoteNodes(m.projectID), m.collapsed)
	case paneCompleted:
		m.rows = taskRows(tree.Tasks(m.engine.CompletedPage(m.projectID).Tasks), m.collapsed)
	default:
		m.rows = taskRows(m.engine.TaskTree(m.projectID), m.collapsed)
	}
	for i, r := range m.rows {
		if r.id == cur {
			m.cursor = i
			break
		}
	}
	m.cursor = max(0, min(m.cursor, len(m.rows)-1))
	m.scroll()
}

func (m Model) current() (row, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return row{}, false
	}
	return m.rows[m.cursor], true
}

func (m Model) listHeight() int {
	return max(1, m.height-3)
}

func (m *Model) scroll() {
	h := m.listHeight()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+h {
		m.offset = m.cursor - h + 1
	}
	m.offset = max(0, m.offset)
}

func (m *Model) layout() {
	w := m.width / 2
	m.preview.Width = max(10, m.width-w-1)
	m.preview.Height = m.listHeight()
}

// pullNotices shows the newest notice raised since the last call, if any.
func (m *Model) pullNotices() bool {
	all := m.notices.Notices()
	if len(all) <= m.seen {
		return false
	}
	last := all[len(all)-1]
	m.seen = len(all)
	m.status = last.String()
	m.statusErr = last.Level == tasksync.LevelError
	return true
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		m.scroll()
		return m, nil

	case doneMsg:
		m.busy = false
		m.rebuild()
		if m.pullNotices() {
			return m, nil
		}
		switch {
		case msg.err == nil:
			m.status, m.statusErr = msg.op, false
		case errors.Is(msg.err, tasksync.ErrSuperseded):
		default:
			m.status, m.statusErr = fmt.Sprintf("%s: %v", msg.op, msg.err), true
		}
		return m, nil

	case previewMsg:
		m.pullNotices()
		if msg.taskID != m.previewFor {
			return m, nil
		}
		if msg.err != nil {
			m.preview.SetContent(styleError().Render(msg.err.Error()))
			return m, nil
		}
		m.preview.SetContent(msg.text)
		m.preview.GotoTop()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "esc":
		m.picked = 0
		m.status = ""
		return m, nil
	case "j", "down":
		if m.cursor < len(m.rows)-1 {
			m.cursor++
			m.scroll()
		}
		cmd := m.followPreview()
		return m, cmd
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
			m.scroll()
		}
		cmd := m.followPreview()
		return m, cmd
	case "g", "home":
		m.cursor = 0
		m.scroll()
		cmd := m.followPreview()
		return m, cmd
	case "G", "end":
		m.cursor = max(0, len(m.rows)-1)
		m.scroll()
		cmd := m.followPreview()
		return m, cmd
	case "enter", " ":
		if r, ok := m.current(); ok && r.hasChildren {
			m.collapsed[r.id] = !m.collapsed[r.id]
			m.rebuild()
		}
		return m, nil
	case "tab":
		m.pane = (m.pane + 1) % 3
		m.picked = 0
		m.cursor, m.offset = 0, 0
		m.rebuild()
		return m, m.load()
	case "r":
		if m.pane == paneCompleted {
			m.engine.ResetCompleted(m.projectID)
			m.rebuild()
		}
		return m, m.load()
	case "pgdown", "ctrl+d", "pgup", "ctrl+u":
		if m.showPreview {
			var cmd tea.Cmd
			m.preview, cmd = m.preview.Update(msg)
			return m, cmd
		}
		return m, nil
	case "p":
		m.showPreview = !m.showPreview
		m.layout()
		m.previewFor = 0
		cmd := m.followPreview()
		return m, cmd
	}

	switch m.pane {
	case paneCompleted:
		return m.handleCompletedKey(msg)
	default:
		return m.handleTreeKey(msg)
	}
}

func (m Model) handleCompletedKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	e, ctx, projectID := m.engine, m.ctx, m.projectID
	switch msg.String() {
	case "n":
		return m.start(run("more completed", func() error { return e.MoreCompleted(ctx, projectID) }))
	case "u":
		r, ok := m.current()
		if !ok {
			return m, nil
		}
		return m.start(run("uncomplete", func() error { return e.Uncomplete(ctx, r.id) }))
	case "d":
		r, ok := m.current()
		if !ok {
			return m, nil
		}
		return m.start(run("delete completed", func() error { return e.DeleteCompleted(ctx, r.id) }))
	}
	return m, nil
}

func (m Model) handleTreeKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	e, ctx, projectID := m.engine, m.ctx, m.projectID
	r, ok := m.current()
	if !ok {
		return m, nil
	}
	switch key := msg.String(); key {
	case "m":
		if m.picked == r.id {
			m.picked = 0
			m.status = ""
			return m, nil
		}
		m.picked = r.id
		m.status, m.statusErr = fmt.Sprintf("moving %q: a above, o onto, b below, esc cancels", r.name), false
		return m, nil
	case "a", "o", "b":
		if m.picked == 0 {
			return m, nil
		}
		d := tree.Drop{SourceID: m.picked, TargetID: r.id, Position: map[string]tree.Position{"a": tree.Above, "o": tree.On, "b": tree.Below}[key]}
		m.picked = 0
		if m.pane == paneNotes {
			return m.start(run("move note", func() error { return e.DropNote(ctx, projectID, d) }))
		}
		return m.start(run("move task", func() error { return e.DropTask(ctx, projectID, d) }))
	case "x":
		if m.pane != paneTasks {
			return m, nil
		}
		return m.start(run("complete", func() error { return e.Complete(ctx, r.id, model.ViewProject, "") }))
	case "d":
		if m.pane != paneTasks {
			return m, nil
		}
		return m.start(run("delete", func() error { return e.Delete(ctx, r.id, model.ViewProject) }))
	case "s":
		if m.pane != paneTasks {
			return m, nil
		}
		next := nextStatus(r.status)
		return m.start(run("set status", func() error { return e.SetStatus(ctx, r.id, next, model.ViewProject) }))
	}
	return m, nil
}

func (m Model) start(cmd tea.Cmd) (tea.Model, tea.Cmd) {
	m.busy = true
	return m, cmd
}

func nextStatus(s model.TaskStatus) model.TaskStatus {
	order := []model.TaskStatus{
		model.TaskStatusNone,
		model.TaskStatusNextToDo,
		model.TaskStatusInProgress,
		model.TaskStatusReady,
		model.TaskStatusOnHold,
	}
	for i, o := range order {
		if o == s {
			return order[(i+1)%len(order)]
		}
	}
	return model.TaskStatusNone
}

// followPreview loads the selected task's content when the preview pane is open.
func (m *Model) followPreview() tea.Cmd {
	if !m.showPreview || m.pane == paneNotes {
		return nil
	}
	r, ok := m.current()
	if !ok || r.id == m.previewFor {
		return nil
	}
	m.previewFor = r.id
	m.preview.SetContent(styleMuted().Render("loading…"))
	e, ctx, width := m.engine, m.ctx, m.preview.Width
	completed := m.pane == paneCompleted
	taskID := r.id
	return func() tea.Msg {
		text, err := previewText(ctx, e, taskID, completed)
		if err != nil {
			return previewMsg{taskID: taskID, err: err}
		}
		return previewMsg{taskID: taskID, text: renderMarkdown(text, width)}
	}
}

// previewText joins the task's content blocks. A block's body is its latest revision.
func previewText(ctx context.Context, e *tasksync.Engine, taskID int64, completed bool) (string, error) {
	load := e.LoadContents
	if completed {
		load = e.LoadCompletedContents
	}
	contents, err := load(ctx, taskID)
	if err != nil {
		return "", err
	}
	if len(contents) == 0 {
		return "_No content._", nil
	}
	parts := make([]string, 0, len(contents))
	for _, c := range contents {
		text := c.Text
		if n := len(c.Revisions); n > 0 && !completed {
			rev, err := e.LoadRevision(ctx, taskID, c.ID, c.Revisions[n-1].ID)
			if err != nil {
				return "", err
			}
			if rev.Content != nil {
				text = *rev.Content
			}
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n\n---\n\n"), nil
}

func (m Model) View() string {
	var b strings.Builder
	title := fmt.Sprintf("project %d · %s", m.projectID, m.pane)
	if m.pane == paneCompleted {
		page := m.engine.CompletedPage(m.projectID)
		title += fmt.Sprintf(" · %d shown", len(page.Tasks))
		if len(page.Next) > 0 {
			title += " · n for more"
		}
	}
	if m.busy {
		title += " · working…"
	}
	b.WriteString(styleTitle().Render(truncate(title, m.width)))
	b.WriteString("\n")

	listWidth := m.width
	if m.showPreview {
		listWidth = m.width / 2
	}
	list := m.renderList(listWidth)
	if m.showPreview {
		list = lipgloss.JoinHorizontal(lipgloss.Top,
			lipgloss.NewStyle().Width(listWidth).Render(list),
			" ",
			m.preview.View(),
		)
	}
	b.WriteString(list)
	b.WriteString("\n")

	status := m.status
	if status == "" {
		status = "j/k move · enter fold · m pick up · x complete · s status · p preview · tab pane · q quit"
	}
	st := styleMuted()
	if m.statusErr {
		st = styleError()
	}
	b.WriteString(st.Render(truncate(status, m.width)))
	return b.String()
}

func (m Model) renderList(width int) string {
	if len(m.rows) == 0 {
		return styleMuted().Render("(empty)")
	}
	h := m.listHeight()
	end := min(len(m.rows), m.offset+h)
	lines := make([]string, 0, end-m.offset)
	for i := m.offset; i < end; i++ {
		r := m.rows[i]
		line := r.render(width)
		switch {
		case i == m.cursor:
			line = styleSelected().Render(line)
		case r.id == m.picked:
			line = stylePicked().Render(line)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
