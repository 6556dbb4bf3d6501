package api

import (
	"context"
	"net/http"

	"bulletjournal-cli/internal/model"
)

func (c *Client) contents(ctx context.Context, r request) ([]model.Content, error) {
	var out []model.Content
	_, err := c.do(ctx, r, &out)
	return out, err
}

func (c *Client) GetContents(ctx context.Context, taskID int64) ([]model.Content, error) {
	return c.contents(ctx, request{method: http.MethodGet, path: "/api/tasks/" + itoa(taskID) + "/contents"})
}

func (c *Client) GetCompletedTaskContents(ctx context.Context, taskID int64) ([]model.Content, error) {
	return c.contents(ctx, request{method: http.MethodGet, path: "/api/completedTasks/" + itoa(taskID) + "/contents"})
}

func (c *Client) AddContent(ctx context.Context, taskID int64, text string) (model.Content, error) {
	var out model.Content
	_, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/tasks/" + itoa(taskID) + "/addContent",
		body:   map[string]any{"text": text},
	}, &out)
	return out, err
}

// UpdateContent adds a revision to a content block and returns the task's contents.
func (c *Client) UpdateContent(ctx context.Context, taskID, contentID int64, text string) ([]model.Content, error) {
	return c.contents(ctx, request{
		method: http.MethodPatch,
		path:   "/api/tasks/" + itoa(taskID) + "/contents/" + itoa(contentID),
		body:   map[string]any{"text": text},
	})
}

func (c *Client) DeleteContent(ctx context.Context, taskID, contentID int64) ([]model.Content, error) {
	return c.contents(ctx, request{method: http.MethodDelete, path: "/api/tasks/" + itoa(taskID) + "/contents/" + itoa(contentID)})
}

// GetContentRevision fetches one revision including its body.
func (c *Client) GetContentRevision(ctx context.Context, taskID, contentID, revisionID int64) (model.Revision, error) {
	var out model.Revision
	_, err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/api/tasks/" + itoa(taskID) + "/contents/" + itoa(contentID) + "/revisions/" + itoa(revisionID),
	}, &out)
	return out, err
}
