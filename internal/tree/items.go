package tree

import "bulletjournal-cli/internal/model"

func Tasks(tasks []model.Task) []Node[model.Task] {
	return FromItems(tasks,
		func(t model.Task) int64 { return t.ID },
		func(t model.Task) []model.Task { return t.SubTasks })
}

func TaskItems(nodes []Node[model.Task]) []model.Task {
	return ToItems(nodes, func(t model.Task, kids []model.Task) model.Task {
		t.SubTasks = kids
		return t
	})
}

func Notes(notes []model.Note) []Node[model.Note] {
	return FromItems(notes,
		func(n model.Note) int64 { return n.ID },
		func(n model.Note) []model.Note { return n.SubNotes })
}

func NoteItems(nodes []Node[model.Note]) []model.Note {
	return ToItems(nodes, func(n model.Note, kids []model.Note) model.Note {
		n.SubNotes = kids
		return n
	})
}

func Projects(projects []model.Project) []Node[model.Project] {
	return FromItems(projects,
		func(p model.Project) int64 { return p.ID },
		func(p model.Project) []model.Project { return p.SubProjects })
}

func ProjectItems(nodes []Node[model.Project]) []model.Project {
	return ToItems(nodes, func(p model.Project, kids []model.Project) model.Project {
		p.SubProjects = kids
		return p
	})
}

// Flatten lists every item in depth-first order with its children left as they are.
func Flatten[T any](nodes []Node[T]) []T {
	var out []T
	var walk func([]Node[T])
	walk = func(ns []Node[T]) {
		for _, n := range ns {
			out = append(out, n.Item)
			walk(n.Children)
		}
	}
	walk(nodes)
	return out
}

// Update replaces the item of the node with id. ok is false when id is absent.
func Update[T any](nodes []Node[T], id int64, fn func(T) T) ([]Node[T], bool) {
	for i := range nodes {
		if nodes[i].ID == id {
			out := make([]Node[T], len(nodes))
			copy(out, nodes)
			out[i].Item = fn(out[i].Item)
			return out, true
		}
		if kids, ok := Update(nodes[i].Children, id, fn); ok {
			out := make([]Node[T], len(nodes))
			copy(out, nodes)
			out[i].Children = kids
			return out, true
		}
	}
	return nodes, false
}
