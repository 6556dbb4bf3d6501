package tasksync_test

import (
	"context"
	"sync"

	"bulletjournal-cli/internal/api"
	"bulletjournal-cli/internal/model"
	"bulletjournal-cli/internal/tasksync"
)

// stubAPI forwards to a real client unless a hook is set, and counts calls.
type stubAPI struct {
	tasksync.API

	mu    sync.Mutex
	calls map[string]int

	fetchTasks     func(ctx context.Context, projectID int64, q api.TaskQuery) (api.TaskList, error)
	putTasks       func(ctx context.Context, projectID int64, tasks []model.Task, etag string) (api.TaskList, error)
	patchTask      func(ctx context.Context, taskID int64, p api.TaskPatch) (api.TaskList, error)
	fetchCompleted func(ctx context.Context, projectID int64, pageNo, pageSize int, q api.CompletedQuery) ([]model.Task, error)
	getRevision    func(ctx context.Context, taskID, contentID, revisionID int64) (model.Revision, error)
}

func (s *stubAPI) hit(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[name]++
}

func (s *stubAPI) count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[name]
}

func (s *stubAPI) FetchTasks(ctx context.Context, projectID int64, q api.TaskQuery) (api.TaskList, error) {
	s.hit("FetchTasks")
	if s.fetchTasks != nil {
		return s.fetchTasks(ctx, projectID, q)
	}
	return s.API.FetchTasks(ctx, projectID, q)
}

func (s *stubAPI) PutTasks(ctx context.Context, projectID int64, tasks []model.Task, etag string) (api.TaskList, error) {
	s.hit("PutTasks")
	if s.putTasks != nil {
		return s.putTasks(ctx, projectID, tasks, etag)
	}
	return s.API.PutTasks(ctx, projectID, tasks, etag)
}

func (s *stubAPI) PatchTask(ctx context.Context, taskID int64, p api.TaskPatch) (api.TaskList, error) {
	s.hit("PatchTask")
	if s.patchTask != nil {
		return s.patchTask(ctx, taskID, p)
	}
	return s.API.PatchTask(ctx, taskID, p)
}

func (s *stubAPI) CreateTask(ctx context.Context, projectID int64, t api.CreateTask) (model.Task, error) {
	s.hit("CreateTask")
	return s.API.CreateTask(ctx, projectID, t)
}

func (s *stubAPI) FetchCompletedTasks(ctx context.Context, projectID int64, pageNo, pageSize int, q api.CompletedQuery) ([]model.Task, error) {
	s.hit("FetchCompletedTasks")
	if s.fetchCompleted != nil {
		return s.fetchCompleted(ctx, projectID, pageNo, pageSize, q)
	}
	return s.API.FetchCompletedTasks(ctx, projectID, pageNo, pageSize, q)
}

func (s *stubAPI) FetchProjectItems(ctx context.Context, q api.ItemsQuery) ([]model.ProjectItems, error) {
	s.hit("FetchProjectItems")
	return s.API.FetchProjectItems(ctx, q)
}

func (s *stubAPI) GetContentRevision(ctx context.Context, taskID, contentID, revisionID int64) (model.Revision, error) {
	s.hit("GetContentRevision")
	if s.getRevision != nil {
		return s.getRevision(ctx, taskID, contentID, revisionID)
	}
	return s.API.GetContentRevision(ctx, taskID, contentID, revisionID)
}
