package tasksync

import (
	"context"
	"slices"

	"bulletjournal-cli/internal/api"
	"bulletjournal-cli/internal/model"
)

// MoreCompleted advances the project's completed-task list by one page.
//
// The first call shows page 0 and prefetches page 1. Later calls append the prefetched page
// and prefetch the next one. PageNo only moves after every request succeeded. While a load
// is in flight further calls are rejected with ErrLoadInProgress.
func (e *Engine) MoreCompleted(ctx context.Context, projectID int64) error {
	const category = "load completed tasks"

	e.mu.Lock()
	page := e.completed[projectID]
	if page.Loading {
		e.mu.Unlock()
		e.info(category, ErrLoadInProgress)
		return ErrLoadInProgress
	}
	if page.PageNo > 0 && len(page.Next) == 0 {
		e.mu.Unlock()
		return nil
	}
	page.ProjectID = projectID
	page.Loading = true
	e.completed[projectID] = page
	epoch := e.pageEpochs[projectID]
	e.mu.Unlock()
	defer e.setLoading(projectID, false)

	q := api.CompletedQuery{Timezone: e.Selection().Timezone}
	var shown []model.Task
	if page.PageNo == 0 {
		first, err := e.api.FetchCompletedTasks(ctx, projectID, 0, e.pageSize, q)
		if err != nil {
			return e.report(category, err)
		}
		shown = first
	} else {
		shown = append(slices.Clone(page.Tasks), page.Next...)
	}
	next, err := e.api.FetchCompletedTasks(ctx, projectID, page.PageNo+1, e.pageSize, q)
	if err != nil {
		return e.report(category, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pageEpochs[projectID] != epoch {
		e.log.WithField("project", projectID).Debug("completed pages changed during load; discarding page")
		return ErrSuperseded
	}
	cur := e.completed[projectID]
	cur.Tasks = shown
	cur.Next = next
	cur.PageNo = page.PageNo + 1
	e.completed[projectID] = cur
	return nil
}

func (e *Engine) setLoading(projectID int64, loading bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p := e.completed[projectID]
	p.ProjectID = projectID
	p.Loading = loading
	e.completed[projectID] = p
}

// ResetCompleted forgets the project's loaded completed pages; the next MoreCompleted starts at page 0.
func (e *Engine) ResetCompleted(projectID int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetCompleted(projectID)
}

// resetCompleted forgets the accumulated pages. Callers hold e.mu.
func (e *Engine) resetCompleted(projectID int64) {
	p := e.completed[projectID]
	e.completed[projectID] = model.CompletedPage{ProjectID: projectID, Loading: p.Loading}
	e.pageEpochs[projectID]++
}

// reloadCompleted re-reads every page shown so far in one request and the prefetch buffer,
// keeping PageNo. Nothing is shown before the first page load, so nothing is reloaded then.
func (e *Engine) reloadCompleted(ctx context.Context, t ticket, category string, projectID int64) error {
	page := e.CompletedPage(projectID)
	if page.PageNo == 0 {
		return nil
	}
	q := api.CompletedQuery{Timezone: e.Selection().Timezone}
	shown, err := e.api.FetchCompletedTasks(ctx, projectID, 0, page.PageNo*e.pageSize, q)
	if err != nil {
		return e.fail(t, category, err)
	}
	next, err := e.api.FetchCompletedTasks(ctx, projectID, page.PageNo, e.pageSize, q)
	if err != nil {
		return e.fail(t, category, err)
	}
	return e.commit(t, func() {
		cur := e.completed[projectID]
		cur.ProjectID = projectID
		cur.Tasks = shown
		cur.Next = next
		cur.PageNo = page.PageNo
		e.completed[projectID] = cur
		e.pageEpochs[projectID]++
	})
}

// completedProjectOf finds the project whose completed pages show taskID, or 0.
func (e *Engine) completedProjectOf(taskID int64) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, p := range e.completed {
		if containsTask(p.Tasks, taskID) || containsTask(p.Next, taskID) {
			return id
		}
	}
	for _, t := range e.views.SearchCompleted {
		if t.ID == taskID {
			return t.ProjectID
		}
	}
	return 0
}
