package tasksync

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"bulletjournal-cli/internal/model"
)

// LoadContents fetches the content blocks of an open task.
func (e *Engine) LoadContents(ctx context.Context, taskID int64) ([]model.Content, error) {
	return e.loadContents(ctx, "load contents", taskID, e.api.GetContents)
}

// LoadCompletedContents fetches the content blocks of a completed task.
func (e *Engine) LoadCompletedContents(ctx context.Context, taskID int64) ([]model.Content, error) {
	return e.loadContents(ctx, "load completed contents", taskID, e.api.GetCompletedTaskContents)
}

func (e *Engine) loadContents(ctx context.Context, category string, taskID int64, fetch func(context.Context, int64) ([]model.Content, error)) ([]model.Content, error) {
	ctx, t := e.read(ctx, key("contents", taskID))
	defer e.latest.end(t)
	list, err := fetch(ctx, taskID)
	if err != nil {
		return nil, e.fail(t, category, err)
	}
	if err := e.commit(t, func() { e.contents[taskID] = list }); err != nil {
		return nil, err
	}
	return list, nil
}

// CreateContent adds a content block to a task and reloads the task's contents.
func (e *Engine) CreateContent(ctx context.Context, taskID int64, text string) (model.Content, error) {
	const category = "create content"
	if strings.TrimSpace(text) == "" {
		return model.Content{}, e.report(category, ValidationError{Field: "text", Reason: "required"})
	}
	ctx, t := e.write(ctx, key("contents", taskID))
	defer e.latest.end(t)
	created, err := e.api.AddContent(ctx, taskID, text)
	if err != nil {
		return model.Content{}, e.fail(t, category, err)
	}
	list, err := e.api.GetContents(ctx, taskID)
	if err != nil {
		return created, e.fail(t, category, err)
	}
	return created, e.commit(t, func() { e.contents[taskID] = list })
}

// PatchContent records a new revision of a content block.
func (e *Engine) PatchContent(ctx context.Context, taskID, contentID int64, text string) error {
	const category = "update content"
	if strings.TrimSpace(text) == "" {
		return e.report(category, ValidationError{Field: "text", Reason: "required"})
	}
	ctx, t := e.write(ctx, key("contents", taskID))
	defer e.latest.end(t)
	list, err := e.api.UpdateContent(ctx, taskID, contentID, text)
	if err != nil {
		return e.fail(t, category, err)
	}
	return e.commit(t, func() { e.contents[taskID] = list })
}

func (e *Engine) DeleteContent(ctx context.Context, taskID, contentID int64) error {
	const category = "delete content"
	ctx, t := e.write(ctx, key("contents", taskID))
	defer e.latest.end(t)
	list, err := e.api.DeleteContent(ctx, taskID, contentID)
	if err != nil {
		return e.fail(t, category, err)
	}
	return e.commit(t, func() { e.contents[taskID] = list })
}

// LoadRevision returns a content revision with its body. A body already cached is returned
// without a request; a fetched body is cached in a new contents snapshot.
func (e *Engine) LoadRevision(ctx context.Context, taskID, contentID, revisionID int64) (model.Revision, error) {
	const category = "load revision"
	if r, ok := e.cachedRevision(taskID, contentID, revisionID); ok && r.Content != nil {
		return r, nil
	}
	ctx, t := e.read(ctx, fmt.Sprintf("%s:%d:%d:%d", category, taskID, contentID, revisionID))
	defer e.latest.end(t)
	r, err := e.api.GetContentRevision(ctx, taskID, contentID, revisionID)
	if err != nil {
		return model.Revision{}, e.fail(t, category, err)
	}
	if err := e.commit(t, func() {
		if list, ok := e.contents[taskID]; ok {
			e.contents[taskID] = withRevision(list, contentID, r)
		}
	}); err != nil {
		return model.Revision{}, err
	}
	return r, nil
}

func (e *Engine) cachedRevision(taskID, contentID, revisionID int64) (model.Revision, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, c := range e.contents[taskID] {
		if c.ID != contentID {
			continue
		}
		for _, r := range c.Revisions {
			if r.ID == revisionID {
				return r, true
			}
		}
	}
	return model.Revision{}, false
}

// withRevision returns a copy of list where the matching revision is replaced by r.
func withRevision(list []model.Content, contentID int64, r model.Revision) []model.Content {
	out := slices.Clone(list)
	for i := range out {
		if out[i].ID != contentID {
			continue
		}
		revs := slices.Clone(out[i].Revisions)
		for j := range revs {
			if revs[j].ID == r.ID {
				revs[j] = r
			}
		}
		out[i].Revisions = revs
	}
	return out
}
