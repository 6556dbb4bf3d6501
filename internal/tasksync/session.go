package tasksync

import (
	"slices"

	"bulletjournal-cli/internal/model"
)

// Export snapshots the engine state. Loading flags are not part of a session.
func (e *Engine) Export() model.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := model.Session{
		Views:     e.views,
		Selection: e.selection,
	}
	for _, id := range sortedKeys(e.collections) {
		s.Collections = append(s.Collections, e.collections[id])
	}
	for _, id := range sortedKeys(e.noteTrees) {
		s.NoteTrees = append(s.NoteTrees, e.noteTrees[id])
	}
	for _, id := range sortedKeys(e.completed) {
		p := e.completed[id]
		p.Loading = false
		s.Completed = append(s.Completed, p)
	}
	if e.projects != nil {
		p := *e.projects
		s.Projects = &p
	}
	if e.selected != nil {
		t := *e.selected
		s.SelectedTask = &t
	}
	s.ProjectsRevision = e.projectsETag
	for _, id := range sortedKeys(e.contents) {
		s.Contents = append(s.Contents, model.TaskContents{TaskID: id, Contents: e.contents[id]})
	}
	return s
}

// Restore replaces the engine state with a previously exported session.
func (e *Engine) Restore(s model.Session) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.collections = map[int64]model.TaskCollection{}
	for _, c := range s.Collections {
		e.collections[c.ProjectID] = c
	}
	e.noteTrees = map[int64]model.NoteTree{}
	for _, n := range s.NoteTrees {
		e.noteTrees[n.ProjectID] = n
	}
	e.completed = map[int64]model.CompletedPage{}
	for _, p := range s.Completed {
		p.Loading = false
		e.completed[p.ProjectID] = p
	}
	e.pageEpochs = map[int64]uint64{}
	e.projects = nil
	if s.Projects != nil {
		p := *s.Projects
		e.projects = &p
	}
	e.views = s.Views
	e.selection = s.Selection
	e.selected = nil
	if s.SelectedTask != nil {
		t := *s.SelectedTask
		e.selected = &t
	}
	e.projectsETag = s.ProjectsRevision
	e.contents = map[int64][]model.Content{}
	for _, c := range s.Contents {
		e.contents[c.TaskID] = c.Contents
	}
}

func sortedKeys[V any](m map[int64]V) []int64 {
	out := make([]int64, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
