package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"bulletjournal-cli/internal/model"
)

type NoteList struct {
	Notes []model.Note
	ETag  string
}

type ProjectList struct {
	Projects model.Projects
	ETag     string
}

// ItemsQuery selects the project types and date window of the today aggregate.
type ItemsQuery struct {
	Types     []model.ProjectType
	Timezone  string
	StartDate string
	EndDate   string
}

type RecentQuery struct {
	Types     []model.ProjectType
	Timezone  string
	StartDate string
	EndDate   string
}

func typesValues(types []model.ProjectType, tz, start, end string) url.Values {
	v := url.Values{}
	for _, t := range types {
		v.Add("types", string(t))
	}
	if tz != "" {
		v.Set("timezone", tz)
	}
	if start != "" {
		v.Set("startDate", start)
	}
	if end != "" {
		v.Set("endDate", end)
	}
	return v
}

func (c *Client) FetchNotes(ctx context.Context, projectID int64) (NoteList, error) {
	var notes []model.Note
	h, err := c.do(ctx, request{method: http.MethodGet, path: "/api/projects/" + itoa(projectID) + "/notes"}, &notes)
	if err != nil {
		return NoteList{}, err
	}
	return NoteList{Notes: notes, ETag: h.Get(HeaderETag)}, nil
}

// PutNotes replaces the project's whole note tree.
func (c *Client) PutNotes(ctx context.Context, projectID int64, notes []model.Note, etag string) (NoteList, error) {
	var out []model.Note
	h, err := c.do(ctx, request{
		method:  http.MethodPut,
		path:    "/api/projects/" + itoa(projectID) + "/notes",
		body:    notes,
		ifMatch: etag,
	}, &out)
	if err != nil {
		return NoteList{}, err
	}
	return NoteList{Notes: out, ETag: h.Get(HeaderETag)}, nil
}

func (c *Client) FetchProjects(ctx context.Context) (ProjectList, error) {
	var out model.Projects
	h, err := c.do(ctx, request{method: http.MethodGet, path: "/api/projects"}, &out)
	if err != nil {
		return ProjectList{}, err
	}
	return ProjectList{Projects: out, ETag: h.Get(HeaderETag)}, nil
}

// PutProjects replaces the caller's owned project tree.
func (c *Client) PutProjects(ctx context.Context, projects []model.Project, etag string) (ProjectList, error) {
	var out model.Projects
	h, err := c.do(ctx, request{method: http.MethodPut, path: "/api/projects", body: projects, ifMatch: etag}, &out)
	if err != nil {
		return ProjectList{}, err
	}
	return ProjectList{Projects: out, ETag: h.Get(HeaderETag)}, nil
}

// UpdateSharedProjectsOrder stores the display order of shared projects by owner name.
func (c *Client) UpdateSharedProjectsOrder(ctx context.Context, owners []string) error {
	_, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/updateSharedProjectsOrder",
		body:   map[string]any{"projectOwners": owners},
	}, nil)
	return err
}

// FetchProjectItems computes the today aggregate for the selected project types.
func (c *Client) FetchProjectItems(ctx context.Context, q ItemsQuery) ([]model.ProjectItems, error) {
	var out []model.ProjectItems
	_, err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/api/projectItems",
		query:  typesValues(q.Types, q.Timezone, q.StartDate, q.EndDate),
	}, &out)
	return out, err
}

func (c *Client) FetchItemsByLabels(ctx context.Context, labels []int64) ([]model.ProjectItems, error) {
	v := url.Values{}
	for _, l := range labels {
		v.Add("labels", strconv.FormatInt(l, 10))
	}
	var out []model.ProjectItems
	_, err := c.do(ctx, request{method: http.MethodGet, path: "/api/items", query: v}, &out)
	return out, err
}

func (c *Client) FetchRecentItems(ctx context.Context, q RecentQuery) ([]model.RecentItem, error) {
	var out []model.RecentItem
	_, err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/api/recentItems",
		query:  typesValues(q.Types, q.Timezone, q.StartDate, q.EndDate),
	}, &out)
	return out, err
}
