package api_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	log "github.com/sirupsen/logrus"

	"bulletjournal-cli/internal/api"
	"bulletjournal-cli/internal/devserver"
	"bulletjournal-cli/internal/model"
)

func newServer(t *testing.T, opts ...devserver.Option) (*devserver.Server, *api.Client) {
	t.Helper()
	logger := log.New()
	logger.SetLevel(log.WarnLevel)
	srv := devserver.New(logger, opts...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, api.New(ts.URL, "", api.WithLogger(logger))
}

func mustProject(t *testing.T, srv *devserver.Server, typ model.ProjectType) model.Project {
	t.Helper()
	p, err := srv.AddProject("P", typ, 0)
	if err != nil {
		t.Fatalf("add project: %v", err)
	}
	return p
}

func mustTask(t *testing.T, srv *devserver.Server, projectID, parentID int64, task model.Task) model.Task {
	t.Helper()
	out, err := srv.AddTask(projectID, parentID, task)
	if err != nil {
		t.Fatalf("add task: %v", err)
	}
	return out
}

func TestFetchTasksReturnsETag(t *testing.T) {
	srv, c := newServer(t)
	p := mustProject(t, srv, model.ProjectTypeTodo)
	parent := mustTask(t, srv, p.ID, 0, model.Task{Name: "a"})
	mustTask(t, srv, p.ID, parent.ID, model.Task{Name: "b"})

	got, err := c.FetchTasks(context.Background(), p.ID, api.TaskQuery{})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got.ETag == "" {
		t.Fatalf("expected etag")
	}
	if len(got.Tasks) != 1 || len(got.Tasks[0].SubTasks) != 1 || got.Tasks[0].SubTasks[0].Name != "b" {
		t.Fatalf("unexpected tasks: %+v", got.Tasks)
	}
}

func TestPutTasksWithStaleETagFails(t *testing.T) {
	srv, c := newServer(t)
	p := mustProject(t, srv, model.ProjectTypeTodo)
	a := mustTask(t, srv, p.ID, 0, model.Task{Name: "a"})
	b := mustTask(t, srv, p.ID, 0, model.Task{Name: "b"})
	ctx := context.Background()

	first, err := c.FetchTasks(ctx, p.ID, api.TaskQuery{})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	reordered := []model.Task{first.Tasks[1], first.Tasks[0]}
	put, err := c.PutTasks(ctx, p.ID, reordered, first.ETag)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if put.ETag == first.ETag {
		t.Fatalf("expected a new etag after reorder")
	}
	if put.Tasks[0].ID != b.ID || put.Tasks[1].ID != a.ID {
		t.Fatalf("unexpected order: %+v", put.Tasks)
	}

	_, err = c.PutTasks(ctx, p.ID, first.Tasks, first.ETag)
	if !api.IsPreconditionFailed(err) {
		t.Fatalf("expected 412, got %v", err)
	}
	var se *api.StatusError
	if !errors.As(err, &se) || se.Path == "" {
		t.Fatalf("expected StatusError with path, got %#v", err)
	}
}

func TestCompleteAndPageCompletedTasks(t *testing.T) {
	srv, c := newServer(t)
	p := mustProject(t, srv, model.ProjectTypeTodo)
	ctx := context.Background()
	var ids []int64
	for _, name := range []string{"a", "b", "c"} {
		ids = append(ids, mustTask(t, srv, p.ID, 0, model.Task{Name: name}).ID)
	}
	for _, id := range ids {
		if _, err := c.CompleteTask(ctx, id, ""); err != nil {
			t.Fatalf("complete %d: %v", id, err)
		}
	}

	page0, err := c.FetchCompletedTasks(ctx, p.ID, 0, 2, api.CompletedQuery{})
	if err != nil {
		t.Fatalf("page 0: %v", err)
	}
	if len(page0) != 2 || page0[0].ID != ids[2] {
		t.Fatalf("expected newest first, got %+v", page0)
	}
	page1, err := c.FetchCompletedTasks(ctx, p.ID, 1, 2, api.CompletedQuery{})
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if len(page1) != 1 || page1[0].ID != ids[0] {
		t.Fatalf("unexpected page 1: %+v", page1)
	}

	if _, err := c.UncompleteTask(ctx, ids[0]); err != nil {
		t.Fatalf("uncomplete: %v", err)
	}
	open, err := c.FetchTasks(ctx, p.ID, api.TaskQuery{})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(open.Tasks) != 1 || open.Tasks[0].ID != ids[0] {
		t.Fatalf("expected uncompleted task back, got %+v", open.Tasks)
	}
}

func TestPatchAndStatusReturnList(t *testing.T) {
	srv, c := newServer(t)
	p := mustProject(t, srv, model.ProjectTypeTodo)
	task := mustTask(t, srv, p.ID, 0, model.Task{Name: "a"})
	ctx := context.Background()

	name := "renamed"
	list, err := c.PatchTask(ctx, task.ID, api.TaskPatch{Name: &name})
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	if len(list.Tasks) != 1 || list.Tasks[0].Name != "renamed" || list.ETag == "" {
		t.Fatalf("unexpected patch response: %+v", list)
	}

	list, err = c.SetTaskStatus(ctx, task.ID, model.TaskStatusReady)
	if err != nil {
		t.Fatalf("set status: %v", err)
	}
	if list.Tasks[0].Status != model.TaskStatusReady {
		t.Fatalf("expected READY, got %q", list.Tasks[0].Status)
	}
}

func TestAssigneeFilterFlattens(t *testing.T) {
	srv, c := newServer(t)
	p := mustProject(t, srv, model.ProjectTypeTodo)
	parent := mustTask(t, srv, p.ID, 0, model.Task{Name: "a"})
	mustTask(t, srv, p.ID, parent.ID, model.Task{Name: "b", Assignees: []model.User{{Name: "amy"}}})

	got, err := c.FetchTasks(context.Background(), p.ID, api.TaskQuery{Assignee: "amy"})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(got.Tasks) != 1 || got.Tasks[0].Name != "b" {
		t.Fatalf("unexpected assignee view: %+v", got.Tasks)
	}
}

func TestCreateTaskRequiresName(t *testing.T) {
	srv, c := newServer(t)
	p := mustProject(t, srv, model.ProjectTypeTodo)
	_, err := c.CreateTask(context.Background(), p.ID, api.CreateTask{})
	var se *api.StatusError
	if !errors.As(err, &se) || se.Code != 400 {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestContentRevisionsAreLazy(t *testing.T) {
	srv, c := newServer(t)
	p := mustProject(t, srv, model.ProjectTypeTodo)
	task := mustTask(t, srv, p.ID, 0, model.Task{Name: "a"})
	ctx := context.Background()

	ct, err := c.AddContent(ctx, task.ID, "first")
	if err != nil {
		t.Fatalf("add content: %v", err)
	}
	list, err := c.UpdateContent(ctx, task.ID, ct.ID, "second")
	if err != nil {
		t.Fatalf("update content: %v", err)
	}
	if len(list) != 1 || len(list[0].Revisions) != 2 {
		t.Fatalf("expected two revisions, got %+v", list)
	}
	for _, r := range list[0].Revisions {
		if r.Content != nil {
			t.Fatalf("expected revision body to be omitted from listing")
		}
	}
	rev, err := c.GetContentRevision(ctx, task.ID, ct.ID, list[0].Revisions[0].ID)
	if err != nil {
		t.Fatalf("get revision: %v", err)
	}
	if rev.Content == nil || *rev.Content != "first" {
		t.Fatalf("unexpected revision: %+v", rev)
	}
}

func TestNotesAndProjectsRoundTrip(t *testing.T) {
	srv, c := newServer(t)
	p := mustProject(t, srv, model.ProjectTypeNote)
	q, err := srv.AddProject("Q", model.ProjectTypeTodo, 0)
	if err != nil {
		t.Fatalf("add project: %v", err)
	}
	if _, err := srv.AddNote(p.ID, 0, model.Note{Name: "n1"}); err != nil {
		t.Fatalf("add note: %v", err)
	}
	ctx := context.Background()

	notes, err := c.FetchNotes(ctx, p.ID)
	if err != nil {
		t.Fatalf("fetch notes: %v", err)
	}
	notes.Notes = append(notes.Notes, model.Note{Name: "n2"})
	put, err := c.PutNotes(ctx, p.ID, notes.Notes, notes.ETag)
	if err != nil {
		t.Fatalf("put notes: %v", err)
	}
	if len(put.Notes) != 2 || put.Notes[1].ID == 0 {
		t.Fatalf("expected new note to get an id, got %+v", put.Notes)
	}

	projects, err := c.FetchProjects(ctx)
	if err != nil {
		t.Fatalf("fetch projects: %v", err)
	}
	nested := []model.Project{projects.Projects.Owned[0]}
	nested[0].SubProjects = []model.Project{projects.Projects.Owned[1]}
	out, err := c.PutProjects(ctx, nested, projects.ETag)
	if err != nil {
		t.Fatalf("put projects: %v", err)
	}
	if len(out.Projects.Owned) != 1 || out.Projects.Owned[0].SubProjects[0].ID != q.ID {
		t.Fatalf("unexpected project tree: %+v", out.Projects.Owned)
	}
}

func TestBearerTokenIsSent(t *testing.T) {
	logger := log.New()
	logger.SetLevel(log.WarnLevel)
	srv := devserver.New(logger, devserver.WithToken("secret"))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	if _, err := api.New(ts.URL, "wrong").FetchProjects(context.Background()); err == nil {
		t.Fatalf("expected unauthorized")
	}
	if _, err := api.New(ts.URL, "secret").FetchProjects(context.Background()); err != nil {
		t.Fatalf("fetch with token: %v", err)
	}
}
