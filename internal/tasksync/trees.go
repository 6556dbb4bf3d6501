package tasksync

import (
	"context"

	"bulletjournal-cli/internal/model"
	"bulletjournal-cli/internal/tree"
)

// NoteTree returns the last loaded note tree of a project.
func (e *Engine) NoteTree(projectID int64) (model.NoteTree, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, ok := e.noteTrees[projectID]
	return n, ok
}

// NoteNodes returns the project's notes as tree nodes for rendering and drops.
func (e *Engine) NoteNodes(projectID int64) []tree.Node[model.Note] {
	n, _ := e.NoteTree(projectID)
	return tree.Notes(n.Notes)
}

// Projects returns the last loaded project lists.
func (e *Engine) Projects() (model.Projects, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.projects == nil {
		return model.Projects{}, false
	}
	return *e.projects, true
}

func (e *Engine) ProjectNodes() []tree.Node[model.Project] {
	p, _ := e.Projects()
	return tree.Projects(p.Owned)
}

func (e *Engine) LoadNotes(ctx context.Context, projectID int64) error {
	const category = "load notes"
	ctx, t := e.read(ctx, key("notes", projectID))
	defer e.latest.end(t)
	list, err := e.api.FetchNotes(ctx, projectID)
	if err != nil {
		return e.fail(t, category, err)
	}
	return e.commit(t, func() {
		e.noteTrees[projectID] = model.NoteTree{ProjectID: projectID, Notes: list.Notes, Revision: list.ETag}
	})
}

// DropNote applies a drag gesture to the project's note tree and submits the whole tree.
// The tree shown afterwards is the one the server answered with.
func (e *Engine) DropNote(ctx context.Context, projectID int64, d tree.Drop) error {
	const category = "move note"
	cur, ok := e.NoteTree(projectID)
	if !ok {
		if err := e.LoadNotes(ctx, projectID); err != nil {
			return err
		}
		cur, _ = e.NoteTree(projectID)
	}
	nodes, err := tree.Resolve(tree.Notes(cur.Notes), d)
	if err != nil {
		return e.report(category, err)
	}
	ctx, t := e.write(ctx, key("notes", projectID))
	defer e.latest.end(t)
	list, err := e.api.PutNotes(ctx, projectID, tree.NoteItems(nodes), cur.Revision)
	if err != nil {
		return e.fail(t, category, err)
	}
	return e.commit(t, func() {
		e.noteTrees[projectID] = model.NoteTree{ProjectID: projectID, Notes: list.Notes, Revision: list.ETag}
	})
}

func (e *Engine) LoadProjects(ctx context.Context) error {
	const category = "load projects"
	ctx, t := e.read(ctx, "projects")
	defer e.latest.end(t)
	list, err := e.api.FetchProjects(ctx)
	if err != nil {
		return e.fail(t, category, err)
	}
	return e.commit(t, func() {
		p := list.Projects
		e.projects = &p
		e.projectsETag = list.ETag
	})
}

// DropProject applies a drag gesture to the owned project tree and submits it.
func (e *Engine) DropProject(ctx context.Context, d tree.Drop) error {
	const category = "move project"
	cur, ok := e.Projects()
	if !ok {
		if err := e.LoadProjects(ctx); err != nil {
			return err
		}
		cur, _ = e.Projects()
	}
	nodes, err := tree.Resolve(tree.Projects(cur.Owned), d)
	if err != nil {
		return e.report(category, err)
	}
	ctx, t := e.write(ctx, "projects")
	defer e.latest.end(t)
	e.mu.Lock()
	etag := e.projectsETag
	e.mu.Unlock()
	list, err := e.api.PutProjects(ctx, tree.ProjectItems(nodes), etag)
	if err != nil {
		return e.fail(t, category, err)
	}
	return e.commit(t, func() {
		p := list.Projects
		e.projects = &p
		e.projectsETag = list.ETag
	})
}

// ReorderSharedProjects moves the shared-projects group at index from to index to, stores the
// owner order and reloads the project lists.
func (e *Engine) ReorderSharedProjects(ctx context.Context, from, to int) error {
	const category = "reorder shared projects"
	cur, ok := e.Projects()
	if !ok {
		if err := e.LoadProjects(ctx); err != nil {
			return err
		}
		cur, _ = e.Projects()
	}
	moved, err := tree.Move(cur.Shared, from, to)
	if err != nil {
		return e.report(category, err)
	}
	owners := make([]string, 0, len(moved))
	for _, g := range moved {
		owners = append(owners, g.Owner.Name)
	}
	if err := e.api.UpdateSharedProjectsOrder(ctx, owners); err != nil {
		return e.report(category, err)
	}
	return e.LoadProjects(ctx)
}
