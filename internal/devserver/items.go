package devserver

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"bulletjournal-cli/internal/model"
	"bulletjournal-cli/internal/tree"
)

type groups map[string]*model.ProjectItems

func (g groups) group(date string) *model.ProjectItems {
	pi, ok := g[date]
	if !ok {
		pi = &model.ProjectItems{Date: date, Tasks: []model.Task{}, Notes: []model.Note{}}
		if d, err := time.Parse("2006-01-02", date); err == nil {
			pi.DayOfWeek = int(d.Weekday())
		}
		g[date] = pi
	}
	return pi
}

// sorted returns the groups by date; the undated group comes last.
func (g groups) sorted() []model.ProjectItems {
	keys := make([]string, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		switch {
		case a == b:
			return 0
		case a == "":
			return 1
		case b == "":
			return -1
		}
		return strings.Compare(a, b)
	})
	out := make([]model.ProjectItems, 0, len(keys))
	for _, k := range keys {
		out = append(out, *g[k])
	}
	return out
}

func typeFilter(c echo.Context) func(model.ProjectType) bool {
	types := c.QueryParams()["types"]
	return func(t model.ProjectType) bool {
		return len(types) == 0 || slices.Contains(types, string(t))
	}
}

func inWindow(day, start, end string) bool {
	if start != "" && day < start {
		return false
	}
	if end != "" && day > end {
		return false
	}
	return true
}

func (s *Server) sortedProjects() []*project {
	out := make([]*project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b *project) int { return int(a.meta.ID - b.meta.ID) })
	return out
}

func flatTasks(p *project) []model.Task {
	out := tree.Flatten(tree.Tasks(p.tasks))
	for i := range out {
		out[i].SubTasks = []model.Task{}
	}
	return out
}

func flatNotes(p *project) []model.Note {
	out := tree.Flatten(tree.Notes(p.notes))
	for i := range out {
		out[i].SubNotes = []model.Note{}
	}
	return out
}

// getProjectItems groups the dated tasks of the selected project types by due date.
func (s *Server) getProjectItems(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := typeFilter(c)
	start, end := c.QueryParam("startDate"), c.QueryParam("endDate")
	g := groups{}
	for _, p := range s.sortedProjects() {
		if !want(p.meta.ProjectType) {
			continue
		}
		for _, t := range flatTasks(p) {
			if t.DueDate == "" || !inWindow(t.DueDate, start, end) {
				continue
			}
			pi := g.group(t.DueDate)
			pi.Tasks = append(pi.Tasks, t)
		}
	}
	return c.JSON(http.StatusOK, g.sorted())
}

func hasAnyLabel(have []int64, want []int64) bool {
	for _, l := range have {
		if slices.Contains(want, l) {
			return true
		}
	}
	return false
}

func (s *Server) getItemsByLabels(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var labels []int64
	for _, v := range c.QueryParams()["labels"] {
		for _, part := range strings.Split(v, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid label: "+part)
			}
			labels = append(labels, id)
		}
	}
	g := groups{}
	for _, p := range s.sortedProjects() {
		for _, t := range flatTasks(p) {
			if hasAnyLabel(t.Labels, labels) {
				pi := g.group(t.DueDate)
				pi.Tasks = append(pi.Tasks, t)
			}
		}
		for _, n := range flatNotes(p) {
			if hasAnyLabel(n.Labels, labels) {
				pi := g.group("")
				pi.Notes = append(pi.Notes, n)
			}
		}
	}
	return c.JSON(http.StatusOK, g.sorted())
}

// getRecentItems lists tasks and notes by last update, newest first.
func (s *Server) getRecentItems(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := typeFilter(c)
	start, end := c.QueryParam("startDate"), c.QueryParam("endDate")
	out := []model.RecentItem{}
	for _, p := range s.sortedProjects() {
		if !want(p.meta.ProjectType) {
			continue
		}
		for _, t := range flatTasks(p) {
			if inWindow(t.UpdatedAt.Format("2006-01-02"), start, end) {
				out = append(out, model.RecentItem{ID: t.ID, ContentType: model.ContentTypeTask, Name: t.Name, ProjectID: p.meta.ID, UpdatedAt: t.UpdatedAt})
			}
		}
		for _, n := range flatNotes(p) {
			if inWindow(n.UpdatedAt.Format("2006-01-02"), start, end) {
				out = append(out, model.RecentItem{ID: n.ID, ContentType: model.ContentTypeNote, Name: n.Name, ProjectID: p.meta.ID, UpdatedAt: n.UpdatedAt})
			}
		}
	}
	slices.SortStableFunc(out, func(a, b model.RecentItem) int { return b.UpdatedAt.Compare(a.UpdatedAt) })
	return c.JSON(http.StatusOK, out)
}
