package devserver

import (
	"fmt"
	"slices"

	"bulletjournal-cli/internal/model"
	"bulletjournal-cli/internal/tree"
)

// AddProject creates an owned project under parentID (0 for the top level).
func (s *Server) AddProject(name string, typ model.ProjectType, parentID int64) (model.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if parentID != 0 {
		if _, ok := s.projects[parentID]; !ok {
			return model.Project{}, fmt.Errorf("parent project not found: %d", parentID)
		}
	}
	p := model.Project{ID: s.newID(), Name: name, ProjectType: typ, Owner: s.user, SubProjects: []model.Project{}}
	s.projects[p.ID] = &project{meta: p, parent: parentID}
	s.order = append(s.order, p.ID)
	return p, nil
}

// AddTask stores t under parentID (0 for the top level) in the project. Missing ids and
// timestamps are filled in.
func (s *Server) AddTask(projectID, parentID int64, t model.Task) (model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[projectID]
	if !ok {
		return model.Task{}, fmt.Errorf("project not found: %d", projectID)
	}
	t = s.normalizeTasks([]model.Task{t}, projectID)[0]
	nodes, ok := tree.InsertChild(tree.Tasks(p.tasks), parentID, tree.Tasks([]model.Task{t})[0])
	if !ok {
		return model.Task{}, fmt.Errorf("parent task not found: %d", parentID)
	}
	p.tasks = tree.TaskItems(nodes)
	return t, nil
}

func (s *Server) AddNote(projectID, parentID int64, n model.Note) (model.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[projectID]
	if !ok {
		return model.Note{}, fmt.Errorf("project not found: %d", projectID)
	}
	n = s.normalizeNotes([]model.Note{n}, projectID)[0]
	nodes, ok := tree.InsertChild(tree.Notes(p.notes), parentID, tree.Notes([]model.Note{n})[0])
	if !ok {
		return model.Note{}, fmt.Errorf("parent note not found: %d", parentID)
	}
	p.notes = tree.NoteItems(nodes)
	return n, nil
}

// AddCompletedTask puts t directly on the project's completed list, newest first.
func (s *Server) AddCompletedTask(projectID int64, t model.Task) (model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[projectID]
	if !ok {
		return model.Task{}, fmt.Errorf("project not found: %d", projectID)
	}
	t = s.normalizeTasks([]model.Task{t}, projectID)[0]
	p.completed = append([]model.Task{t}, p.completed...)
	return t, nil
}

// AddSharedProjects records projects another user shares with the caller.
func (s *Server) AddSharedProjects(owner string, projects ...model.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shared = append(s.shared, model.ProjectsWithOwner{Owner: model.User{Name: owner}, Projects: projects})
}

// Tasks returns the project's current task tree.
func (s *Server) Tasks(projectID int64) []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.projects[projectID]; ok {
		return slices.Clone(p.tasks)
	}
	return nil
}

func (s *Server) Notes(projectID int64) []model.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.projects[projectID]; ok {
		return slices.Clone(p.notes)
	}
	return nil
}

func (s *Server) Completed(projectID int64) []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.projects[projectID]; ok {
		return slices.Clone(p.completed)
	}
	return nil
}

// Seed fills an empty server with a small sample journal.
func (s *Server) Seed() error {
	work, err := s.AddProject("Work", model.ProjectTypeTodo, 0)
	if err != nil {
		return err
	}
	if _, err := s.AddProject("Errands", model.ProjectTypeTodo, work.ID); err != nil {
		return err
	}
	notes, err := s.AddProject("Notebook", model.ProjectTypeNote, 0)
	if err != nil {
		return err
	}
	today := s.now().Format("2006-01-02")
	plan, err := s.AddTask(work.ID, 0, model.Task{Name: "Plan the week", DueDate: today, Status: model.TaskStatusInProgress, Assignees: []model.User{s.user}})
	if err != nil {
		return err
	}
	if _, err := s.AddTask(work.ID, plan.ID, model.Task{Name: "Review open items", Assignees: []model.User{s.user}}); err != nil {
		return err
	}
	if _, err := s.AddTask(work.ID, 0, model.Task{Name: "Write status report", DueDate: today, DueTime: "16:00", Labels: []int64{1}}); err != nil {
		return err
	}
	ideas, err := s.AddNote(notes.ID, 0, model.Note{Name: "Ideas", Labels: []int64{1}})
	if err != nil {
		return err
	}
	if _, err := s.AddNote(notes.ID, ideas.ID, model.Note{Name: "Reading list"}); err != nil {
		return err
	}
	_, err = s.AddNote(notes.ID, 0, model.Note{Name: "Meeting notes"})
	return err
}
