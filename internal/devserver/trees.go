package devserver

import (
	"net/http"
	"slices"

	"github.com/labstack/echo/v4"

	"bulletjournal-cli/internal/model"
)

func (s *Server) normalizeNotes(notes []model.Note, projectID int64) []model.Note {
	out := make([]model.Note, 0, len(notes))
	for _, n := range notes {
		if n.ID <= 0 {
			n.ID = s.newID()
			n.CreatedAt = s.now()
			n.UpdatedAt = n.CreatedAt
		}
		if n.Owner.Name == "" {
			n.Owner = s.user
		}
		n.ProjectID = projectID
		n.SubNotes = s.normalizeNotes(n.SubNotes, projectID)
		out = append(out, n)
	}
	return out
}

func (s *Server) getNotes(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.projectFor(c)
	if err != nil {
		return err
	}
	return withETag(c, etag(p.notes), http.StatusOK, nonNilNotes(p.notes))
}

func (s *Server) putNotes(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.projectFor(c)
	if err != nil {
		return err
	}
	if err := checkIfMatch(c, etag(p.notes)); err != nil {
		return err
	}
	var notes []model.Note
	if err := decode(c, &notes); err != nil {
		return err
	}
	p.notes = s.normalizeNotes(notes, p.meta.ID)
	return withETag(c, etag(p.notes), http.StatusOK, nonNilNotes(p.notes))
}

func nonNilNotes(ns []model.Note) []model.Note {
	if ns == nil {
		return []model.Note{}
	}
	return ns
}

// ownedTree rebuilds the nested owned-project list from the flat parent links.
func (s *Server) ownedTree() []model.Project {
	children := map[int64][]int64{}
	for _, id := range s.order {
		p := s.projects[id]
		children[p.parent] = append(children[p.parent], id)
	}
	var build func(parent int64) []model.Project
	build = func(parent int64) []model.Project {
		out := []model.Project{}
		for _, id := range children[parent] {
			p := s.projects[id].meta
			p.SubProjects = build(id)
			out = append(out, p)
		}
		return out
	}
	return build(0)
}

func (s *Server) projectsResponse() model.Projects {
	shared := s.shared
	if shared == nil {
		shared = []model.ProjectsWithOwner{}
	}
	return model.Projects{Owned: s.ownedTree(), Shared: shared}
}

func (s *Server) getProjects(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.projectsResponse()
	return withETag(c, etag(out.Owned), http.StatusOK, out)
}

// putProjects accepts a rearranged owned tree. Only the nesting and order change: projects
// cannot be created or dropped this way.
func (s *Server) putProjects(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := checkIfMatch(c, etag(s.ownedTree())); err != nil {
		return err
	}
	var tree []model.Project
	if err := decode(c, &tree); err != nil {
		return err
	}
	var order []int64
	parents := map[int64]int64{}
	var walk func(parent int64, ps []model.Project) error
	walk = func(parent int64, ps []model.Project) error {
		for _, p := range ps {
			if _, ok := s.projects[p.ID]; !ok {
				return notFound("project", p.ID)
			}
			if _, dup := parents[p.ID]; dup {
				return echo.NewHTTPError(http.StatusBadRequest, "duplicate project in tree")
			}
			parents[p.ID] = parent
			order = append(order, p.ID)
			if err := walk(p.ID, p.SubProjects); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(0, tree); err != nil {
		return err
	}
	if len(order) != len(s.order) {
		return echo.NewHTTPError(http.StatusBadRequest, "project tree must list every owned project")
	}
	for id, parent := range parents {
		s.projects[id].parent = parent
	}
	s.order = order
	out := s.projectsResponse()
	return withETag(c, etag(out.Owned), http.StatusOK, out)
}

func (s *Server) updateSharedProjectsOrder(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var body struct {
		ProjectOwners []string `json:"projectOwners"`
	}
	if err := decode(c, &body); err != nil {
		return err
	}
	rank := map[string]int{}
	for i, name := range body.ProjectOwners {
		rank[name] = i
	}
	shared := slices.Clone(s.shared)
	slices.SortStableFunc(shared, func(a, b model.ProjectsWithOwner) int {
		ra, okA := rank[a.Owner.Name]
		rb, okB := rank[b.Owner.Name]
		switch {
		case okA && okB:
			return ra - rb
		case okA:
			return -1
		case okB:
			return 1
		default:
			return 0
		}
	})
	s.shared = shared
	return c.NoContent(http.StatusOK)
}
