package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"bulletjournal-cli/internal/model"
)

// TaskList is a project's task collection as observed together with its revision token.
type TaskList struct {
	Tasks []model.Task
	ETag  string
}

// TaskQuery narrows a task listing. The zero value lists the whole project.
type TaskQuery struct {
	Assignee  string
	Order     bool
	Timezone  string
	StartDate string
	EndDate   string
}

func (q TaskQuery) values() url.Values {
	v := url.Values{}
	if q.Assignee != "" {
		v.Set("assignee", q.Assignee)
	}
	if q.Order {
		v.Set("order", "true")
	}
	if q.Timezone != "" {
		v.Set("timezone", q.Timezone)
	}
	if q.StartDate != "" {
		v.Set("startDate", q.StartDate)
	}
	if q.EndDate != "" {
		v.Set("endDate", q.EndDate)
	}
	return v
}

// CompletedQuery carries the optional filters of a completed-task page request.
type CompletedQuery struct {
	Assignee  string
	StartDate string
	EndDate   string
	Timezone  string
}

type CreateTask struct {
	Name           string                 `json:"name"`
	Assignees      []string               `json:"assignees,omitempty"`
	DueDate        string                 `json:"dueDate,omitempty"`
	DueTime        string                 `json:"dueTime,omitempty"`
	Duration       int                    `json:"duration,omitempty"`
	RecurrenceRule string                 `json:"recurrenceRule,omitempty"`
	Timezone       string                 `json:"timezone,omitempty"`
	Reminder       *model.ReminderSetting `json:"reminderSetting,omitempty"`
	Labels         []int64                `json:"labels,omitempty"`
}

// TaskPatch updates only the fields that are set.
type TaskPatch struct {
	Name           *string                `json:"name,omitempty"`
	Assignees      []string               `json:"assignees,omitempty"`
	DueDate        *string                `json:"dueDate,omitempty"`
	DueTime        *string                `json:"dueTime,omitempty"`
	Duration       *int                   `json:"duration,omitempty"`
	RecurrenceRule *string                `json:"recurrenceRule,omitempty"`
	Timezone       *string                `json:"timezone,omitempty"`
	Reminder       *model.ReminderSetting `json:"reminderSetting,omitempty"`
	Labels         []int64                `json:"labels,omitempty"`
}

// IsEmpty reports whether the patch would change nothing.
func (p TaskPatch) IsEmpty() bool {
	return p.Name == nil && p.Assignees == nil && p.DueDate == nil && p.DueTime == nil &&
		p.Duration == nil && p.RecurrenceRule == nil && p.Timezone == nil && p.Reminder == nil &&
		p.Labels == nil
}

type ShareParams struct {
	TargetUser   string `json:"targetUser,omitempty"`
	TargetGroup  int64  `json:"targetGroup,omitempty"`
	GenerateLink bool   `json:"generateLink"`
	TTL          int    `json:"ttl,omitempty"`
}

type shareResponse struct {
	Link string `json:"link"`
}

func (c *Client) taskList(ctx context.Context, r request) (TaskList, error) {
	var tasks []model.Task
	h, err := c.do(ctx, r, &tasks)
	if err != nil {
		return TaskList{}, err
	}
	return TaskList{Tasks: tasks, ETag: h.Get(HeaderETag)}, nil
}

func (c *Client) FetchTasks(ctx context.Context, projectID int64, q TaskQuery) (TaskList, error) {
	return c.taskList(ctx, request{
		method: http.MethodGet,
		path:   "/api/projects/" + itoa(projectID) + "/tasks",
		query:  q.values(),
	})
}

// PutTasks replaces the project's whole (nested) task list. etag is the last observed revision.
func (c *Client) PutTasks(ctx context.Context, projectID int64, tasks []model.Task, etag string) (TaskList, error) {
	return c.taskList(ctx, request{
		method:  http.MethodPut,
		path:    "/api/projects/" + itoa(projectID) + "/tasks",
		body:    tasks,
		ifMatch: etag,
	})
}

func (c *Client) CreateTask(ctx context.Context, projectID int64, t CreateTask) (model.Task, error) {
	var out model.Task
	_, err := c.do(ctx, request{method: http.MethodPost, path: "/api/projects/" + itoa(projectID) + "/tasks", body: t}, &out)
	return out, err
}

func (c *Client) GetTask(ctx context.Context, taskID int64) (model.Task, error) {
	var out model.Task
	_, err := c.do(ctx, request{method: http.MethodGet, path: "/api/tasks/" + itoa(taskID)}, &out)
	return out, err
}

func (c *Client) GetCompletedTask(ctx context.Context, taskID int64) (model.Task, error) {
	var out model.Task
	_, err := c.do(ctx, request{method: http.MethodGet, path: "/api/completedTasks/" + itoa(taskID)}, &out)
	return out, err
}

// PatchTask returns the refreshed task list of the task's project.
func (c *Client) PatchTask(ctx context.Context, taskID int64, p TaskPatch) (TaskList, error) {
	return c.taskList(ctx, request{method: http.MethodPatch, path: "/api/tasks/" + itoa(taskID), body: p})
}

func (c *Client) SetTaskStatus(ctx context.Context, taskID int64, status model.TaskStatus) (TaskList, error) {
	return c.taskList(ctx, request{
		method: http.MethodPost,
		path:   "/api/tasks/" + itoa(taskID) + "/setStatus",
		body:   map[string]any{"status": status},
	})
}

func (c *Client) SetTaskLabels(ctx context.Context, taskID int64, labels []int64) (model.Task, error) {
	if labels == nil {
		labels = []int64{}
	}
	var out model.Task
	_, err := c.do(ctx, request{method: http.MethodPut, path: "/api/tasks/" + itoa(taskID) + "/setLabels", body: labels}, &out)
	return out, err
}

// CompleteTask marks a task done. dateTime ("YYYY-MM-DD HH:MM") completes one occurrence of a
// recurring task; empty completes the task itself.
func (c *Client) CompleteTask(ctx context.Context, taskID int64, dateTime string) (model.Task, error) {
	body := map[string]any{}
	if dateTime != "" {
		body["dateTime"] = dateTime
	}
	var out model.Task
	_, err := c.do(ctx, request{method: http.MethodPost, path: "/api/tasks/" + itoa(taskID) + "/complete", body: body}, &out)
	return out, err
}

func (c *Client) UncompleteTask(ctx context.Context, taskID int64) (model.Task, error) {
	var out model.Task
	_, err := c.do(ctx, request{method: http.MethodPost, path: "/api/completedTasks/" + itoa(taskID) + "/uncomplete"}, &out)
	return out, err
}

func (c *Client) DeleteTask(ctx context.Context, taskID int64) (TaskList, error) {
	return c.taskList(ctx, request{method: http.MethodDelete, path: "/api/tasks/" + itoa(taskID)})
}

func (c *Client) DeleteTasks(ctx context.Context, projectID int64, taskIDs []int64) (TaskList, error) {
	return c.taskList(ctx, request{
		method: http.MethodPost,
		path:   "/api/projects/" + itoa(projectID) + "/tasks/delete",
		body:   map[string]any{"tasks": taskIDs},
	})
}

func (c *Client) CompleteTasks(ctx context.Context, projectID int64, taskIDs []int64) (TaskList, error) {
	return c.taskList(ctx, request{
		method: http.MethodPost,
		path:   "/api/projects/" + itoa(projectID) + "/tasks/complete",
		body:   map[string]any{"tasks": taskIDs},
	})
}

func (c *Client) MoveTask(ctx context.Context, taskID, targetProject int64) error {
	_, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/tasks/" + itoa(taskID) + "/move",
		body:   map[string]any{"targetProject": targetProject},
	}, nil)
	return err
}

// ShareTask shares a task with a user or group, or generates a public link (returned).
func (c *Client) ShareTask(ctx context.Context, taskID int64, p ShareParams) (string, error) {
	var out shareResponse
	_, err := c.do(ctx, request{method: http.MethodPost, path: "/api/tasks/" + itoa(taskID) + "/share", body: p}, &out)
	return out.Link, err
}

func (c *Client) GetSharables(ctx context.Context, taskID int64) (model.Sharables, error) {
	var out model.Sharables
	_, err := c.do(ctx, request{method: http.MethodGet, path: "/api/tasks/" + itoa(taskID) + "/sharables"}, &out)
	return out, err
}

func (c *Client) RevokeSharable(ctx context.Context, taskID int64, user, link string) error {
	_, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/tasks/" + itoa(taskID) + "/revokeSharable",
		body:   map[string]any{"user": user, "link": link},
	}, nil)
	return err
}

// FetchCompletedTasks returns one page of the project's completed tasks, newest first.
func (c *Client) FetchCompletedTasks(ctx context.Context, projectID int64, pageNo, pageSize int, q CompletedQuery) ([]model.Task, error) {
	v := url.Values{}
	v.Set("pageNo", strconv.Itoa(pageNo))
	v.Set("pageSize", strconv.Itoa(pageSize))
	if q.Assignee != "" {
		v.Set("assignee", q.Assignee)
	}
	if q.StartDate != "" {
		v.Set("startDate", q.StartDate)
	}
	if q.EndDate != "" {
		v.Set("endDate", q.EndDate)
	}
	if q.Timezone != "" {
		v.Set("timezone", q.Timezone)
	}
	var out []model.Task
	_, err := c.do(ctx, request{method: http.MethodGet, path: "/api/projects/" + itoa(projectID) + "/completedTasks", query: v}, &out)
	return out, err
}

// DeleteCompletedTask returns the project's remaining completed tasks.
func (c *Client) DeleteCompletedTask(ctx context.Context, taskID int64) ([]model.Task, error) {
	var out []model.Task
	_, err := c.do(ctx, request{method: http.MethodDelete, path: "/api/completedTasks/" + itoa(taskID)}, &out)
	return out, err
}
