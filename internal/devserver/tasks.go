package devserver

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"bulletjournal-cli/internal/model"
	"bulletjournal-cli/internal/tree"
)

const defaultPageSize = 50

type createTaskBody struct {
	Name           string                 `json:"name"`
	Assignees      []string               `json:"assignees"`
	DueDate        string                 `json:"dueDate"`
	DueTime        string                 `json:"dueTime"`
	Duration       int                    `json:"duration"`
	RecurrenceRule string                 `json:"recurrenceRule"`
	Timezone       string                 `json:"timezone"`
	Reminder       *model.ReminderSetting `json:"reminderSetting"`
	Labels         []int64                `json:"labels"`
}

type patchTaskBody struct {
	Name           *string                `json:"name"`
	Assignees      []string               `json:"assignees"`
	DueDate        *string                `json:"dueDate"`
	DueTime        *string                `json:"dueTime"`
	Duration       *int                   `json:"duration"`
	RecurrenceRule *string                `json:"recurrenceRule"`
	Timezone       *string                `json:"timezone"`
	Reminder       *model.ReminderSetting `json:"reminderSetting"`
	Labels         []int64                `json:"labels"`
}

type idsBody struct {
	Tasks []int64 `json:"tasks"`
}

func users(names []string) []model.User {
	if len(names) == 0 {
		return nil
	}
	out := make([]model.User, 0, len(names))
	for _, n := range names {
		out = append(out, model.User{Name: n})
	}
	return out
}

// normalizeTasks assigns ids to new tasks and pins every task to projectID.
func (s *Server) normalizeTasks(tasks []model.Task, projectID int64) []model.Task {
	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.ID <= 0 {
			t.ID = s.newID()
			t.CreatedAt = s.now()
			t.UpdatedAt = t.CreatedAt
		}
		if t.Owner.Name == "" {
			t.Owner = s.user
		}
		t.ProjectID = projectID
		t.SubTasks = s.normalizeTasks(t.SubTasks, projectID)
		out = append(out, t)
	}
	return out
}

// locateTask finds the open task with id in any project.
func (s *Server) locateTask(id int64) (*project, model.Task, bool) {
	for _, p := range s.projects {
		if n, ok := tree.Find(tree.Tasks(p.tasks), id); ok {
			return p, n.Item, true
		}
	}
	return nil, model.Task{}, false
}

func (s *Server) locateCompleted(id int64) (*project, int, bool) {
	for _, p := range s.projects {
		if i := slices.IndexFunc(p.completed, func(t model.Task) bool { return t.ID == id }); i >= 0 {
			return p, i, true
		}
	}
	return nil, 0, false
}

func (p *project) taskList(c echo.Context) error {
	return withETag(c, etag(p.tasks), http.StatusOK, nonNilTasks(p.tasks))
}

func nonNilTasks(ts []model.Task) []model.Task {
	if ts == nil {
		return []model.Task{}
	}
	return ts
}

func (p *project) updateTask(id int64, fn func(model.Task) model.Task) bool {
	nodes, ok := tree.Update(tree.Tasks(p.tasks), id, fn)
	if ok {
		p.tasks = tree.TaskItems(nodes)
	}
	return ok
}

func (p *project) removeTask(id int64) (model.Task, bool) {
	rest, ex, ok := tree.Extract(tree.Tasks(p.tasks), id)
	if !ok {
		return model.Task{}, false
	}
	p.tasks = tree.TaskItems(rest)
	return tree.TaskItems([]tree.Node[model.Task]{ex})[0], true
}

func (s *Server) getTasks(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.projectFor(c)
	if err != nil {
		return err
	}
	assignee := strings.TrimSpace(c.QueryParam("assignee"))
	order := c.QueryParam("order") == "true"
	if assignee == "" && !order {
		return p.taskList(c)
	}

	flat := tree.Flatten(tree.Tasks(p.tasks))
	out := make([]model.Task, 0, len(flat))
	for _, t := range flat {
		if assignee != "" && !t.HasAssignee(assignee) {
			continue
		}
		t.SubTasks = []model.Task{}
		out = append(out, t)
	}
	if order {
		slices.SortStableFunc(out, func(a, b model.Task) int {
			ka, kb := dueKey(a), dueKey(b)
			return strings.Compare(ka, kb)
		})
	}
	return withETag(c, etag(p.tasks), http.StatusOK, out)
}

// dueKey sorts dated tasks chronologically and undated ones last.
func dueKey(t model.Task) string {
	if t.DueDate == "" {
		return "~"
	}
	return t.DueDate + " " + t.DueTime
}

func (s *Server) putTasks(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.projectFor(c)
	if err != nil {
		return err
	}
	if err := checkIfMatch(c, etag(p.tasks)); err != nil {
		return err
	}
	var tasks []model.Task
	if err := decode(c, &tasks); err != nil {
		return err
	}
	p.tasks = s.normalizeTasks(tasks, p.meta.ID)
	return p.taskList(c)
}

func (s *Server) createTask(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.projectFor(c)
	if err != nil {
		return err
	}
	var body createTaskBody
	if err := decode(c, &body); err != nil {
		return err
	}
	if strings.TrimSpace(body.Name) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}
	now := s.now()
	t := model.Task{
		ID:             s.newID(),
		ProjectID:      p.meta.ID,
		Name:           strings.TrimSpace(body.Name),
		Owner:          s.user,
		Assignees:      users(body.Assignees),
		Labels:         body.Labels,
		DueDate:        body.DueDate,
		DueTime:        body.DueTime,
		Duration:       body.Duration,
		RecurrenceRule: body.RecurrenceRule,
		Timezone:       body.Timezone,
		Reminder:       body.Reminder,
		SubTasks:       []model.Task{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	p.tasks = append(slices.Clone(p.tasks), t)
	return c.JSON(http.StatusCreated, t)
}

func (s *Server) getTask(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	_, t, ok := s.locateTask(id)
	if !ok {
		return notFound("task", id)
	}
	return c.JSON(http.StatusOK, t)
}

func (s *Server) patchTask(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	p, _, ok := s.locateTask(id)
	if !ok {
		return notFound("task", id)
	}
	var body patchTaskBody
	if err := decode(c, &body); err != nil {
		return err
	}
	now := s.now()
	p.updateTask(id, func(t model.Task) model.Task {
		if body.Name != nil {
			t.Name = *body.Name
		}
		if body.Assignees != nil {
			t.Assignees = users(body.Assignees)
		}
		if body.DueDate != nil {
			t.DueDate = *body.DueDate
		}
		if body.DueTime != nil {
			t.DueTime = *body.DueTime
		}
		if body.Duration != nil {
			t.Duration = *body.Duration
		}
		if body.RecurrenceRule != nil {
			t.RecurrenceRule = *body.RecurrenceRule
		}
		if body.Timezone != nil {
			t.Timezone = *body.Timezone
		}
		if body.Reminder != nil {
			t.Reminder = body.Reminder
		}
		if body.Labels != nil {
			t.Labels = body.Labels
		}
		t.UpdatedAt = now
		return t
	})
	return p.taskList(c)
}

func (s *Server) deleteTask(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	p, _, ok := s.locateTask(id)
	if !ok {
		return notFound("task", id)
	}
	p.removeTask(id)
	delete(s.contents, id)
	return p.taskList(c)
}

func (s *Server) setStatus(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	p, _, ok := s.locateTask(id)
	if !ok {
		return notFound("task", id)
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := decode(c, &body); err != nil {
		return err
	}
	status, ok := model.ParseTaskStatus(body.Status)
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid status: "+body.Status)
	}
	now := s.now()
	p.updateTask(id, func(t model.Task) model.Task {
		t.Status = status
		t.UpdatedAt = now
		return t
	})
	return p.taskList(c)
}

func (s *Server) setLabels(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	p, _, ok := s.locateTask(id)
	if !ok {
		return notFound("task", id)
	}
	var labels []int64
	if err := decode(c, &labels); err != nil {
		return err
	}
	now := s.now()
	p.updateTask(id, func(t model.Task) model.Task {
		t.Labels = labels
		t.UpdatedAt = now
		return t
	})
	_, t, _ := s.locateTask(id)
	return c.JSON(http.StatusOK, t)
}

// complete moves a task out of the open tree onto the project's completed list.
// A recurring task completed for one occurrence stays open; a dated copy is completed instead.
func (s *Server) complete(p *project, id int64, dateTime string) (model.Task, bool) {
	now := s.now()
	if n, ok := tree.Find(tree.Tasks(p.tasks), id); ok && n.Item.RecurrenceRule != "" && dateTime != "" {
		done := n.Item
		done.ID = s.newID()
		done.SubTasks = []model.Task{}
		date, clock, _ := strings.Cut(dateTime, " ")
		done.DueDate, done.DueTime = date, clock
		done.UpdatedAt = now
		p.completed = append([]model.Task{done}, p.completed...)
		return done, true
	}
	t, ok := p.removeTask(id)
	if !ok {
		return model.Task{}, false
	}
	t.UpdatedAt = now
	p.completed = append([]model.Task{t}, p.completed...)
	return t, true
}

func (s *Server) completeTask(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	p, _, ok := s.locateTask(id)
	if !ok {
		return notFound("task", id)
	}
	var body struct {
		DateTime string `json:"dateTime"`
	}
	if err := decode(c, &body); err != nil {
		return err
	}
	t, _ := s.complete(p, id, body.DateTime)
	return c.JSON(http.StatusOK, t)
}

func (s *Server) uncompleteTask(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	p, i, ok := s.locateCompleted(id)
	if !ok {
		return notFound("completed task", id)
	}
	t := p.completed[i]
	p.completed = slices.Delete(slices.Clone(p.completed), i, i+1)
	t.UpdatedAt = s.now()
	p.tasks = append(slices.Clone(p.tasks), t)
	return c.JSON(http.StatusOK, t)
}

func (s *Server) deleteTasks(c echo.Context) error {
	return s.bulk(c, func(p *project, id int64) {
		if _, ok := p.removeTask(id); ok {
			delete(s.contents, id)
		}
	})
}

func (s *Server) completeTasks(c echo.Context) error {
	return s.bulk(c, func(p *project, id int64) { s.complete(p, id, "") })
}

func (s *Server) bulk(c echo.Context, apply func(*project, int64)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.projectFor(c)
	if err != nil {
		return err
	}
	var body idsBody
	if err := decode(c, &body); err != nil {
		return err
	}
	for _, id := range body.Tasks {
		apply(p, id)
	}
	return p.taskList(c)
}

func (s *Server) moveTask(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var body struct {
		TargetProject int64 `json:"targetProject"`
	}
	if err := decode(c, &body); err != nil {
		return err
	}
	target, ok := s.projects[body.TargetProject]
	if !ok {
		return notFound("project", body.TargetProject)
	}
	p, _, ok := s.locateTask(id)
	if !ok {
		return notFound("task", id)
	}
	t, _ := p.removeTask(id)
	target.tasks = append(slices.Clone(target.tasks), s.normalizeTasks([]model.Task{t}, target.meta.ID)...)
	return c.NoContent(http.StatusOK)
}

func (s *Server) shareTask(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if _, _, ok := s.locateTask(id); !ok {
		return notFound("task", id)
	}
	var body struct {
		TargetUser   string `json:"targetUser"`
		TargetGroup  int64  `json:"targetGroup"`
		GenerateLink bool   `json:"generateLink"`
		TTL          int    `json:"ttl"`
	}
	if err := decode(c, &body); err != nil {
		return err
	}
	if body.GenerateLink {
		now := s.now()
		l := model.SharableLink{Link: "/public/items/" + uuid.NewString(), CreatedAt: now}
		if body.TTL > 0 {
			l.Expiration = now.AddDate(0, 0, body.TTL)
		}
		s.links[id] = append(s.links[id], l)
		return c.JSON(http.StatusOK, map[string]string{"link": l.Link})
	}
	if strings.TrimSpace(body.TargetUser) == "" && body.TargetGroup == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "targetUser or targetGroup is required")
	}
	if body.TargetUser != "" {
		s.sharedUsers[id] = append(s.sharedUsers[id], model.User{Name: body.TargetUser})
	}
	return c.JSON(http.StatusOK, map[string]string{})
}

func (s *Server) getSharables(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if _, _, ok := s.locateTask(id); !ok {
		return notFound("task", id)
	}
	out := model.Sharables{Users: s.sharedUsers[id], Links: s.links[id]}
	if out.Users == nil {
		out.Users = []model.User{}
	}
	if out.Links == nil {
		out.Links = []model.SharableLink{}
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) revokeSharable(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var body struct {
		User string `json:"user"`
		Link string `json:"link"`
	}
	if err := decode(c, &body); err != nil {
		return err
	}
	if body.User != "" {
		s.sharedUsers[id] = slices.DeleteFunc(slices.Clone(s.sharedUsers[id]), func(u model.User) bool { return u.Name == body.User })
	}
	if body.Link != "" {
		s.links[id] = slices.DeleteFunc(slices.Clone(s.links[id]), func(l model.SharableLink) bool { return l.Link == body.Link })
	}
	return c.NoContent(http.StatusOK)
}

func (s *Server) getCompletedTasks(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.projectFor(c)
	if err != nil {
		return err
	}
	pageNo, err := queryInt(c, "pageNo", 0)
	if err != nil || pageNo < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid pageNo")
	}
	pageSize, err := queryInt(c, "pageSize", defaultPageSize)
	if err != nil || pageSize <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid pageSize")
	}
	assignee := c.QueryParam("assignee")
	start, end := c.QueryParam("startDate"), c.QueryParam("endDate")

	var matched []model.Task
	for _, t := range p.completed {
		if assignee != "" && !t.HasAssignee(assignee) {
			continue
		}
		day := t.UpdatedAt.Format("2006-01-02")
		if start != "" && day < start || end != "" && day > end {
			continue
		}
		matched = append(matched, t)
	}
	from := pageNo * pageSize
	if from >= len(matched) {
		return c.JSON(http.StatusOK, []model.Task{})
	}
	to := min(from+pageSize, len(matched))
	return c.JSON(http.StatusOK, matched[from:to])
}

func queryInt(c echo.Context, name string, def int) (int, error) {
	v := strings.TrimSpace(c.QueryParam(name))
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func (s *Server) getCompletedTask(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	p, i, ok := s.locateCompleted(id)
	if !ok {
		return notFound("completed task", id)
	}
	return c.JSON(http.StatusOK, p.completed[i])
}

func (s *Server) deleteCompletedTask(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	p, i, ok := s.locateCompleted(id)
	if !ok {
		return notFound("completed task", id)
	}
	p.completed = slices.Delete(slices.Clone(p.completed), i, i+1)
	delete(s.contents, id)
	return c.JSON(http.StatusOK, nonNilTasks(p.completed))
}
