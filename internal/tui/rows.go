package tui

import (
	"strings"

	xansi "github.com/charmbracelet/x/ansi"

	"bulletjournal-cli/internal/model"
	"bulletjournal-cli/internal/tree"
)

// row is one visible line of the outline.
type row struct {
	id          int64
	name        string
	depth       int
	hasChildren bool
	collapsed   bool
	status      model.TaskStatus
	due         string
}

// flatten walks nodes depth first and skips the children of collapsed nodes.
func flatten[T any](nodes []tree.Node[T], collapsed map[int64]bool, describe func(T, *row)) []row {
	var out []row
	var walk func([]tree.Node[T], int)
	walk = func(ns []tree.Node[T], depth int) {
		for _, n := range ns {
			r := row{
				id:          n.ID,
				depth:       depth,
				hasChildren: len(n.Children) > 0,
				collapsed:   collapsed[n.ID],
			}
			describe(n.Item, &r)
			out = append(out, r)
			if !r.collapsed {
				walk(n.Children, depth+1)
			}
		}
	}
	walk(nodes, 0)
	return out
}

func taskRows(nodes []tree.Node[model.Task], collapsed map[int64]bool) []row {
	return flatten(nodes, collapsed, func(t model.Task, r *row) {
		r.name = t.Name
		r.status = t.Status
		r.due = strings.TrimSpace(t.DueDate + " " + t.DueTime)
	})
}

func noteRows(nodes []tree.Node[model.Note], collapsed map[int64]bool) []row {
	return flatten(nodes, collapsed, func(n model.Note, r *row) {
		r.name = n.Name
	})
}

func statusGlyph(s model.TaskStatus) string {
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

// render draws r in at most width cells.
func (r row) render(width int) string {
	fold := "  "
	if r.hasChildren {
		fold = "▾ "
		if r.collapsed {
			fold = "▸ "
		}
	}
	line := strings.Repeat("  ", r.depth) + fold + statusGlyph(r.status) + " " + r.name
	if r.due != "" {
		line += "  " + r.due
	}
	return truncate(line, width)
}

func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if xansi.StringWidth(s) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return xansi.Cut(s, 0, width-1) + "…"
}
