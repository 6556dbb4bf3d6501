package format

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"

	"bulletjournal-cli/internal/model"
)

var (
	titleColor = color.New(color.Bold, color.Underline)
	faint      = color.New(color.Faint)
	idColor    = color.New(color.FgHiYellow, color.Faint)
)

// WriteText renders the known journal types as aligned tables. The {"data": ...} envelope is
// unwrapped; anything else falls back to indented JSON.
func WriteText(w io.Writer, v any) error {
	if env, ok := v.(map[string]any); ok {
		if data, ok := env["data"]; ok {
			v = data
		}
	}
	switch d := v.(type) {
	case model.TaskCollection:
		title(w, fmt.Sprintf("project %d", d.ProjectID), len(d.Tasks))
		return tasks(w, d.Tasks)
	case []model.Task:
		return tasks(w, d)
	case model.Task:
		return tasks(w, []model.Task{d})
	case model.CompletedPage:
		title(w, fmt.Sprintf("completed, %d page(s)", d.PageNo), len(d.Tasks))
		if err := tasks(w, d.Tasks); err != nil {
			return err
		}
		if len(d.Next) > 0 {
			_, _ = faint.Fprintf(w, "%d more prefetched\n", len(d.Next))
		}
		return nil
	case model.NoteTree:
		title(w, fmt.Sprintf("project %d notes", d.ProjectID), len(d.Notes))
		return notes(w, d.Notes)
	case []model.Note:
		return notes(w, d)
	case []model.ProjectItems:
		return groups(w, d)
	case []model.RecentItem:
		return recent(w, d)
	case model.Projects:
		return projects(w, d)
	case []model.Content:
		return contents(w, d)
	case model.Revision:
		if d.Content != nil {
			_, err := fmt.Fprintln(w, *d.Content)
			return err
		}
		_, err := faint.Fprintln(w, "(not loaded)")
		return err
	case model.Sharables:
		return sharables(w, d)
	case string:
		_, err := fmt.Fprintln(w, d)
		return err
	default:
		return WriteJSON(w, v, true)
	}
}

func title(w io.Writer, s string, count int) {
	_, _ = titleColor.Fprint(w, s)
	switch count {
	case 1:
		_, _ = faint.Fprintln(w, " - 1 item")
	default:
		_, _ = faint.Fprintf(w, " - %d items\n", count)
	}
}

func newTable() *uitable.Table {
	tbl := uitable.New()
	tbl.Separator = "  "
	return tbl
}

func flush(w io.Writer, tbl *uitable.Table) error {
	if len(tbl.Rows) == 0 {
		_, err := faint.Fprintln(w, "  none")
		return err
	}
	_, err := fmt.Fprintln(w, tbl)
	return err
}

func tasks(w io.Writer, list []model.Task) error {
	tbl := newTable()
	var walk func([]model.Task, int)
	walk = func(list []model.Task, depth int) {
		for _, t := range list {
			tbl.AddRow(idColor.Sprint(t.ID), bullet(t.Status), strings.Repeat("  ", depth)+t.Name, due(t), assignees(t.Assignees))
			walk(t.SubTasks, depth+1)
		}
	}
	walk(list, 0)
	return flush(w, tbl)
}

func notes(w io.Writer, list []model.Note) error {
	tbl := newTable()
	var walk func([]model.Note, int)
	walk = func(list []model.Note, depth int) {
		for _, n := range list {
			tbl.AddRow(idColor.Sprint(n.ID), "-", strings.Repeat("  ", depth)+n.Name)
			walk(n.SubNotes, depth+1)
		}
	}
	walk(list, 0)
	return flush(w, tbl)
}

func groups(w io.Writer, list []model.ProjectItems) error {
	if len(list) == 0 {
		_, err := faint.Fprintln(w, "  none")
		return err
	}
	for _, g := range list {
		name := g.Date
		if name == "" {
			name = "no date"
		}
		title(w, name, len(g.Tasks)+len(g.Notes))
		tbl := newTable()
		for _, t := range g.Tasks {
			tbl.AddRow(idColor.Sprint(t.ID), bullet(t.Status), t.Name, due(t))
		}
		for _, n := range g.Notes {
			tbl.AddRow(idColor.Sprint(n.ID), "-", n.Name, "")
		}
		if err := flush(w, tbl); err != nil {
			return err
		}
	}
	return nil
}

func recent(w io.Writer, list []model.RecentItem) error {
	tbl := newTable()
	for _, it := range list {
		tbl.AddRow(idColor.Sprint(it.ID), strings.ToLower(string(it.ContentType)), it.Name, it.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return flush(w, tbl)
}

func projects(w io.Writer, p model.Projects) error {
	title(w, "projects", len(p.Owned))
	tbl := newTable()
	var walk func([]model.Project, int)
	walk = func(list []model.Project, depth int) {
		for _, pr := range list {
			tbl.AddRow(idColor.Sprint(pr.ID), strings.ToLower(string(pr.ProjectType)), strings.Repeat("  ", depth)+pr.Name)
			walk(pr.SubProjects, depth+1)
		}
	}
	walk(p.Owned, 0)
	if err := flush(w, tbl); err != nil {
		return err
	}
	for _, g := range p.Shared {
		title(w, "shared by "+g.Owner.Name, len(g.Projects))
		tbl := newTable()
		for _, pr := range g.Projects {
			tbl.AddRow(idColor.Sprint(pr.ID), strings.ToLower(string(pr.ProjectType)), pr.Name)
		}
		if err := flush(w, tbl); err != nil {
			return err
		}
	}
	return nil
}

func contents(w io.Writer, list []model.Content) error {
	tbl := newTable()
	for _, c := range list {
		first, _, _ := strings.Cut(c.Text, "\n")
		tbl.AddRow(idColor.Sprint(c.ID), c.Owner.Name, fmt.Sprintf("%d rev", len(c.Revisions)), first)
	}
	return flush(w, tbl)
}

func sharables(w io.Writer, s model.Sharables) error {
	tbl := newTable()
	for _, u := range s.Users {
		tbl.AddRow("user", u.Name)
	}
	for _, l := range s.Links {
		tbl.AddRow("link", l.Link)
	}
	return flush(w, tbl)
}

func bullet(s model.TaskStatus) string {
	switch s {
	case model.TaskStatusInProgress:
		return "/"
	case model.TaskStatusNextToDo:
		return "!"
	case model.TaskStatusReady:
		return "*"
	case model.TaskStatusOnHold:
		return "~"
	default:
		return "•"
	}
}

func due(t model.Task) string {
	if t.DueDate == "" {
		return ""
	}
	if t.DueTime != "" {
		return t.DueDate + " " + t.DueTime
	}
	return t.DueDate
}

func assignees(users []model.User) string {
	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, "@"+u.Name)
	}
	return strings.Join(names, " ")
}
