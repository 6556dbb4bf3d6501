package tasksync_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"bulletjournal-cli/internal/api"
	"bulletjournal-cli/internal/devserver"
	"bulletjournal-cli/internal/model"
	"bulletjournal-cli/internal/tasksync"
	"bulletjournal-cli/internal/tree"
)

var day = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

type env struct {
	srv    *devserver.Server
	client *api.Client
	stub   *stubAPI
	engine *tasksync.Engine
	notes  *tasksync.Recorder
}

func quietLogger() *log.Logger {
	l := log.New()
	l.SetLevel(log.WarnLevel)
	return l
}

func newEnv(t *testing.T, opts ...tasksync.Option) *env {
	t.Helper()
	logger := quietLogger()
	srv := devserver.New(logger, devserver.WithUser("amy"))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	client := api.New(ts.URL, "", api.WithLogger(logger))
	stub := &stubAPI{API: client, calls: map[string]int{}}
	rec := &tasksync.Recorder{}
	opts = append([]tasksync.Option{
		tasksync.WithNotifier(rec),
		tasksync.WithLogger(logger),
		tasksync.WithClock(func() time.Time { return day }),
	}, opts...)
	return &env{srv: srv, client: client, stub: stub, engine: tasksync.New(stub, opts...), notes: rec}
}

func (e *env) project(t *testing.T) model.Project {
	t.Helper()
	p, err := e.srv.AddProject("Work", model.ProjectTypeTodo, 0)
	if err != nil {
		t.Fatalf("add project: %v", err)
	}
	return p
}

func (e *env) task(t *testing.T, projectID int64, task model.Task) model.Task {
	t.Helper()
	out, err := e.srv.AddTask(projectID, 0, task)
	if err != nil {
		t.Fatalf("add task: %v", err)
	}
	return out
}

func taskIDs(tasks []model.Task) []int64 {
	out := make([]int64, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func groupTaskIDs(groups []model.ProjectItems) []int64 {
	var out []int64
	for _, g := range groups {
		out = append(out, taskIDs(g.Tasks)...)
	}
	return out
}

func TestRefreshAdoptsCollectionAndToken(t *testing.T) {
	e := newEnv(t)
	p := e.project(t)
	a := e.task(t, p.ID, model.Task{Name: "a"})

	if err := e.engine.Refresh(context.Background(), p.ID); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	c, ok := e.engine.Collection(p.ID)
	if !ok {
		t.Fatalf("expected collection")
	}
	if !slices.Equal(taskIDs(c.Tasks), []int64{a.ID}) {
		t.Fatalf("unexpected tasks %v", taskIDs(c.Tasks))
	}
	want, _ := e.client.FetchTasks(context.Background(), p.ID, api.TaskQuery{})
	if c.Revision == "" || c.Revision != want.ETag {
		t.Fatalf("expected revision %q, got %q", want.ETag, c.Revision)
	}
}

func TestRefreshTwiceEqualsOnce(t *testing.T) {
	e := newEnv(t)
	p := e.project(t)
	e.task(t, p.ID, model.Task{Name: "a"})
	ctx := context.Background()

	if err := e.engine.Refresh(ctx, p.ID); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	once, _ := e.engine.Collection(p.ID)
	if err := e.engine.Refresh(ctx, p.ID); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	twice, _ := e.engine.Collection(p.ID)
	if once.Revision != twice.Revision || !slices.Equal(taskIDs(once.Tasks), taskIDs(twice.Tasks)) {
		t.Fatalf("expected identical state, got %+v and %+v", once, twice)
	}
}

func TestSupersededRefreshIsDiscarded(t *testing.T) {
	e := newEnv(t)
	p := e.project(t)
	a := e.task(t, p.ID, model.Task{Name: "a"})

	started := make(chan struct{})
	var n int
	var mu sync.Mutex
	e.stub.fetchTasks = func(ctx context.Context, projectID int64, q api.TaskQuery) (api.TaskList, error) {
		mu.Lock()
		n++
		first := n == 1
		mu.Unlock()
		if first {
			close(started)
			<-ctx.Done()
			return api.TaskList{Tasks: []model.Task{{ID: 999}}, ETag: "stale"}, ctx.Err()
		}
		return e.client.FetchTasks(ctx, projectID, q)
	}

	errc := make(chan error, 1)
	go func() { errc <- e.engine.Refresh(context.Background(), p.ID) }()
	<-started
	if err := e.engine.Refresh(context.Background(), p.ID); err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	if err := <-errc; !errors.Is(err, tasksync.ErrSuperseded) {
		t.Fatalf("expected ErrSuperseded, got %v", err)
	}
	c, _ := e.engine.Collection(p.ID)
	if !slices.Equal(taskIDs(c.Tasks), []int64{a.ID}) || c.Revision == "stale" {
		t.Fatalf("stale result was committed: %+v", c)
	}
	if msgs := e.notes.Messages(); len(msgs) != 0 {
		t.Fatalf("superseded request must not notify, got %v", msgs)
	}
}

func TestBulkReplaceAdoptsServerTokenVerbatim(t *testing.T) {
	e := newEnv(t)
	p := e.project(t)
	e.task(t, p.ID, model.Task{Name: "a"})
	ctx := context.Background()
	if err := e.engine.Refresh(ctx, p.ID); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	sent := e.engine.Revision(p.ID)

	var gotIfMatch string
	e.stub.putTasks = func(_ context.Context, _ int64, tasks []model.Task, etag string) (api.TaskList, error) {
		gotIfMatch = etag
		return api.TaskList{Tasks: tasks, ETag: "server-chosen"}, nil
	}
	c, _ := e.engine.Collection(p.ID)
	if err := e.engine.BulkReplace(ctx, p.ID, c.Tasks); err != nil {
		t.Fatalf("bulk replace: %v", err)
	}
	if gotIfMatch != sent {
		t.Fatalf("expected If-Match %q, got %q", sent, gotIfMatch)
	}
	if got := e.engine.Revision(p.ID); got != "server-chosen" {
		t.Fatalf("expected server token, got %q", got)
	}
}

func TestBulkReplaceStaleTokenReportsAndKeepsState(t *testing.T) {
	e := newEnv(t)
	p := e.project(t)
	a := e.task(t, p.ID, model.Task{Name: "a"})
	ctx := context.Background()
	if err := e.engine.Refresh(ctx, p.ID); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	before, _ := e.engine.Collection(p.ID)

	// Someone else writes in between.
	e.task(t, p.ID, model.Task{Name: "b"})

	err := e.engine.BulkReplace(ctx, p.ID, before.Tasks)
	if !api.IsPreconditionFailed(err) {
		t.Fatalf("expected 412, got %v", err)
	}
	after, _ := e.engine.Collection(p.ID)
	if after.Revision != before.Revision || !slices.Equal(taskIDs(after.Tasks), []int64{a.ID}) {
		t.Fatalf("failed write changed state: %+v", after)
	}
	msgs := e.notes.Messages()
	if len(msgs) != 1 || !strings.HasPrefix(msgs[0], "update tasks: ") {
		t.Fatalf("expected one category-prefixed notice, got %v", msgs)
	}
}

func TestCompleteFromAssigneeOnlyTouchesAssigneeView(t *testing.T) {
	e := newEnv(t)
	p := e.project(t)
	a := e.task(t, p.ID, model.Task{Name: "a", DueDate: "2024-03-04", Labels: []int64{7}, Assignees: []model.User{{Name: "amy"}}})
	b := e.task(t, p.ID, model.Task{Name: "b", DueDate: "2024-03-05", Labels: []int64{7}, Assignees: []model.User{{Name: "amy"}}})
	ctx := context.Background()

	if err := e.engine.Refresh(ctx, p.ID); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if err := e.engine.LoadAssignee(ctx, p.ID, "amy"); err != nil {
		t.Fatalf("assignee: %v", err)
	}
	if err := e.engine.LoadOrder(ctx, p.ID, "", ""); err != nil {
		t.Fatalf("order: %v", err)
	}
	if err := e.engine.LoadLabels(ctx, []int64{7}); err != nil {
		t.Fatalf("labels: %v", err)
	}

	if err := e.engine.Complete(ctx, a.ID, model.ViewAssignee, ""); err != nil {
		t.Fatalf("complete: %v", err)
	}
	v := e.engine.Views()
	if !slices.Equal(taskIDs(v.Assignee), []int64{b.ID}) {
		t.Fatalf("assignee view still has completed task: %v", taskIDs(v.Assignee))
	}
	if !slices.Equal(taskIDs(v.Order), []int64{a.ID, b.ID}) {
		t.Fatalf("order view must be unchanged, got %v", taskIDs(v.Order))
	}
	if !slices.Contains(groupTaskIDs(v.Label), a.ID) {
		t.Fatalf("label view must be unchanged, got %v", groupTaskIDs(v.Label))
	}
	c, _ := e.engine.Collection(p.ID)
	if slices.Contains(taskIDs(c.Tasks), a.ID) {
		t.Fatalf("canonical collection still has completed task")
	}
}

func TestMutationLeavesUnmaterializedViewsAlone(t *testing.T) {
	e := newEnv(t)
	p := e.project(t)
	a := e.task(t, p.ID, model.Task{Name: "a"})
	ctx := context.Background()
	if err := e.engine.Refresh(ctx, p.ID); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if err := e.engine.Delete(ctx, a.ID, model.ViewOrder); err != nil {
		t.Fatalf("delete: %v", err)
	}
	v := e.engine.Views()
	if v.IsMaterialized(model.ViewOrder) || v.Order != nil {
		t.Fatalf("order view must stay unloaded: %+v", v)
	}
}

func TestSetStatusPatchesAssigneeViewInPlace(t *testing.T) {
	e := newEnv(t)
	p := e.project(t)
	a := e.task(t, p.ID, model.Task{Name: "a", Assignees: []model.User{{Name: "amy"}}})
	ctx := context.Background()
	if err := e.engine.LoadAssignee(ctx, p.ID, "amy"); err != nil {
		t.Fatalf("assignee: %v", err)
	}
	if err := e.engine.SetStatus(ctx, a.ID, model.TaskStatusOnHold, model.ViewAssignee); err != nil {
		t.Fatalf("set status: %v", err)
	}
	v := e.engine.Views()
	if len(v.Assignee) != 1 || v.Assignee[0].Status != model.TaskStatusOnHold {
		t.Fatalf("expected status patched in view, got %+v", v.Assignee)
	}
	c, ok := e.engine.Collection(p.ID)
	if !ok || c.Tasks[0].Status != model.TaskStatusOnHold || c.Revision == "" {
		t.Fatalf("expected canonical list from server answer, got %+v", c)
	}
}

func TestCompleteManyResetsPagesAndDropsFromOrder(t *testing.T) {
	e := newEnv(t, tasksync.WithPageSize(1))
	p := e.project(t)
	a := e.task(t, p.ID, model.Task{Name: "a"})
	b := e.task(t, p.ID, model.Task{Name: "b"})
	e.srv.AddCompletedTask(p.ID, model.Task{Name: "old1"})
	e.srv.AddCompletedTask(p.ID, model.Task{Name: "old2"})
	ctx := context.Background()

	if err := e.engine.LoadOrder(ctx, p.ID, "", ""); err != nil {
		t.Fatalf("order: %v", err)
	}
	if err := e.engine.MoreCompleted(ctx, p.ID); err != nil {
		t.Fatalf("more: %v", err)
	}
	if err := e.engine.CompleteMany(ctx, p.ID, []int64{a.ID}, model.ViewOrder); err != nil {
		t.Fatalf("complete many: %v", err)
	}
	page := e.engine.CompletedPage(p.ID)
	if page.PageNo != 0 || page.Tasks != nil || page.Next != nil {
		t.Fatalf("expected paginator reset, got %+v", page)
	}
	if got := taskIDs(e.engine.Views().Order); !slices.Equal(got, []int64{b.ID}) {
		t.Fatalf("unexpected order view %v", got)
	}
}

func TestCompleteInProjectViewReloadsShownPages(t *testing.T) {
	e := newEnv(t, tasksync.WithPageSize(2))
	p := e.project(t)
	for _, name := range []string{"c1", "c2", "c3"} {
		e.srv.AddCompletedTask(p.ID, model.Task{Name: name})
	}
	a := e.task(t, p.ID, model.Task{Name: "a"})
	ctx := context.Background()

	if err := e.engine.MoreCompleted(ctx, p.ID); err != nil {
		t.Fatalf("more: %v", err)
	}
	if err := e.engine.Complete(ctx, a.ID, model.ViewProject, ""); err != nil {
		t.Fatalf("complete: %v", err)
	}
	page := e.engine.CompletedPage(p.ID)
	if page.PageNo != 1 || len(page.Tasks) != 2 || page.Tasks[0].ID != a.ID {
		t.Fatalf("expected page reloaded with newest completion first, got %+v", page)
	}
	if len(page.Next) != 2 {
		t.Fatalf("expected prefetch buffer of one page, got %d", len(page.Next))
	}
}

func TestUncompleteDropsFromSearchAndRestoresTask(t *testing.T) {
	e := newEnv(t)
	p := e.project(t)
	done, _ := e.srv.AddCompletedTask(p.ID, model.Task{Name: "done"})
	ctx := context.Background()

	if err := e.engine.SearchCompleted(ctx, p.ID, api.CompletedQuery{}); err != nil {
		t.Fatalf("search: %v", err)
	}
	if got := taskIDs(e.engine.Views().SearchCompleted); !slices.Equal(got, []int64{done.ID}) {
		t.Fatalf("unexpected search result %v", got)
	}
	if err := e.engine.Uncomplete(ctx, done.ID); err != nil {
		t.Fatalf("uncomplete: %v", err)
	}
	if got := e.engine.Views().SearchCompleted; len(got) != 0 {
		t.Fatalf("expected search view emptied, got %v", taskIDs(got))
	}
	c, _ := e.engine.Collection(p.ID)
	if !slices.Equal(taskIDs(c.Tasks), []int64{done.ID}) {
		t.Fatalf("expected task back in project, got %v", taskIDs(c.Tasks))
	}
}

func TestCompleteFromTodayRecomputesAggregate(t *testing.T) {
	e := newEnv(t)
	p := e.project(t)
	a := e.task(t, p.ID, model.Task{Name: "a", DueDate: "2024-03-04"})
	b := e.task(t, p.ID, model.Task{Name: "b", DueDate: "2024-03-04"})
	ctx := context.Background()

	if err := e.engine.LoadToday(ctx); err != nil {
		t.Fatalf("today: %v", err)
	}
	if got := groupTaskIDs(e.engine.Views().Today); !slices.Equal(got, []int64{a.ID, b.ID}) {
		t.Fatalf("unexpected today view %v", got)
	}
	before := e.stub.count("FetchProjectItems")
	if err := e.engine.Complete(ctx, a.ID, model.ViewToday, ""); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if e.stub.count("FetchProjectItems") != before+1 {
		t.Fatalf("expected today aggregate to be refetched")
	}
	if got := groupTaskIDs(e.engine.Views().Today); !slices.Equal(got, []int64{b.ID}) {
		t.Fatalf("unexpected today view after complete %v", got)
	}
}

func TestDeleteFromRecentDropsTaskItemsOnly(t *testing.T) {
	e := newEnv(t)
	p := e.project(t)
	a := e.task(t, p.ID, model.Task{Name: "a"})
	ctx := context.Background()
	if err := e.engine.LoadRecent(ctx, "", ""); err != nil {
		t.Fatalf("recent: %v", err)
	}
	if err := e.engine.Delete(ctx, a.ID, model.ViewRecent); err != nil {
		t.Fatalf("delete: %v", err)
	}
	for _, it := range e.engine.Views().Recent {
		if it.ContentType == model.ContentTypeTask && it.ID == a.ID {
			t.Fatalf("deleted task still in recent view")
		}
	}
}

func TestCreateValidatesBeforeCalling(t *testing.T) {
	e := newEnv(t)
	p := e.project(t)
	_, err := e.engine.Create(context.Background(), p.ID, api.CreateTask{Name: "  "})
	var ve tasksync.ValidationError
	if !errors.As(err, &ve) || ve.Field != "name" {
		t.Fatalf("expected validation error, got %v", err)
	}
	if e.stub.count("CreateTask") != 0 {
		t.Fatalf("validation failure must not reach the server")
	}
	if msgs := e.notes.Messages(); len(msgs) != 1 || msgs[0] != "create task: invalid name: required" {
		t.Fatalf("unexpected notices %v", msgs)
	}
}

func TestCreateRefreshesCollection(t *testing.T) {
	e := newEnv(t)
	p := e.project(t)
	created, err := e.engine.Create(context.Background(), p.ID, api.CreateTask{Name: "new"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	c, _ := e.engine.Collection(p.ID)
	if !slices.Equal(taskIDs(c.Tasks), []int64{created.ID}) || c.Revision == "" {
		t.Fatalf("unexpected collection %+v", c)
	}
}

func TestPatchOneUpdatesSelectedAndLabels(t *testing.T) {
	e := newEnv(t)
	p := e.project(t)
	a := e.task(t, p.ID, model.Task{Name: "a", Labels: []int64{3}})
	ctx := context.Background()
	if err := e.engine.LoadLabels(ctx, []int64{3}); err != nil {
		t.Fatalf("labels: %v", err)
	}
	name := "renamed"
	if err := e.engine.PatchOne(ctx, a.ID, api.TaskPatch{Name: &name}); err != nil {
		t.Fatalf("patch: %v", err)
	}
	if sel := e.engine.Selected(); sel == nil || sel.Name != "renamed" {
		t.Fatalf("expected selected task refreshed, got %+v", sel)
	}
	groups := e.engine.Views().Label
	if len(groups) != 1 || groups[0].Tasks[0].Name != "renamed" {
		t.Fatalf("expected label group updated, got %+v", groups)
	}
	if c, _ := e.engine.Collection(p.ID); c.Tasks[0].Name != "renamed" {
		t.Fatalf("expected canonical list from server answer")
	}
}

func TestPatchOneKeepsTokenWhenServerSendsNone(t *testing.T) {
	e := newEnv(t)
	p := e.project(t)
	a := e.task(t, p.ID, model.Task{Name: "a"})
	ctx := context.Background()
	if err := e.engine.Refresh(ctx, p.ID); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	token := e.engine.Revision(p.ID)
	e.stub.patchTask = func(ctx context.Context, taskID int64, patch api.TaskPatch) (api.TaskList, error) {
		list, err := e.client.PatchTask(ctx, taskID, patch)
		list.ETag = ""
		return list, err
	}
	name := "b"
	if err := e.engine.PatchOne(ctx, a.ID, api.TaskPatch{Name: &name}); err != nil {
		t.Fatalf("patch: %v", err)
	}
	if got := e.engine.Revision(p.ID); got != token {
		t.Fatalf("expected token %q kept, got %q", token, got)
	}
}

func TestDropTaskSubmitsWholeTree(t *testing.T) {
	e := newEnv(t)
	p := e.project(t)
	a := e.task(t, p.ID, model.Task{Name: "a"})
	b := e.task(t, p.ID, model.Task{Name: "b"})
	ctx := context.Background()

	if err := e.engine.DropTask(ctx, p.ID, tree.Drop{SourceID: b.ID, TargetID: a.ID, Position: tree.On}); err != nil {
		t.Fatalf("drop: %v", err)
	}
	got := e.srv.Tasks(p.ID)
	if len(got) != 1 || got[0].ID != a.ID || len(got[0].SubTasks) != 1 || got[0].SubTasks[0].ID != b.ID {
		t.Fatalf("unexpected server tree %+v", got)
	}
	if err := e.engine.DropTask(ctx, p.ID, tree.Drop{SourceID: a.ID, TargetID: b.ID, Position: tree.On}); !errors.Is(err, tree.ErrCycle) {
		t.Fatalf("expected cycle error, got %v", err)
	}
}

func TestLoadRevisionIsLazy(t *testing.T) {
	e := newEnv(t)
	p := e.project(t)
	a := e.task(t, p.ID, model.Task{Name: "a"})
	ctx := context.Background()

	ct, err := e.engine.CreateContent(ctx, a.ID, "hello")
	if err != nil {
		t.Fatalf("create content: %v", err)
	}
	list, _ := e.engine.CachedContents(a.ID)
	if len(list) != 1 || list[0].Revisions[0].Content != nil {
		t.Fatalf("expected unloaded revision, got %+v", list)
	}
	rid := list[0].Revisions[0].ID
	for range 2 {
		r, err := e.engine.LoadRevision(ctx, a.ID, ct.ID, rid)
		if err != nil {
			t.Fatalf("revision: %v", err)
		}
		if r.Content == nil || *r.Content != "hello" {
			t.Fatalf("unexpected revision %+v", r)
		}
	}
	if n := e.stub.count("GetContentRevision"); n != 1 {
		t.Fatalf("expected one fetch, got %d", n)
	}
	list, _ = e.engine.CachedContents(a.ID)
	if list[0].Revisions[0].Content == nil {
		t.Fatalf("expected revision cached in place")
	}
}

func TestDropNoteRebuildsFromServer(t *testing.T) {
	e := newEnv(t)
	p, _ := e.srv.AddProject("Notes", model.ProjectTypeNote, 0)
	n1, _ := e.srv.AddNote(p.ID, 0, model.Note{Name: "n1"})
	n2, _ := e.srv.AddNote(p.ID, 0, model.Note{Name: "n2"})
	n3, _ := e.srv.AddNote(p.ID, 0, model.Note{Name: "n3"})
	ctx := context.Background()

	if err := e.engine.DropNote(ctx, p.ID, tree.Drop{SourceID: n3.ID, TargetID: n1.ID, Position: tree.Above}); err != nil {
		t.Fatalf("drop: %v", err)
	}
	cur, _ := e.engine.NoteTree(p.ID)
	got := tree.IDs(tree.Notes(cur.Notes))
	if !slices.Equal(got, []int64{n3.ID, n1.ID, n2.ID}) {
		t.Fatalf("unexpected order %v", got)
	}
	if cur.Revision == "" {
		t.Fatalf("expected revision from server")
	}
}

func TestReorderSharedProjects(t *testing.T) {
	e := newEnv(t)
	e.srv.AddSharedProjects("bob")
	e.srv.AddSharedProjects("cat")
	if err := e.engine.ReorderSharedProjects(context.Background(), 1, 0); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	p, _ := e.engine.Projects()
	if len(p.Shared) != 2 || p.Shared[0].Owner.Name != "cat" {
		t.Fatalf("unexpected shared order %+v", p.Shared)
	}
}

func TestRevokeSharableFiltersCache(t *testing.T) {
	e := newEnv(t)
	p := e.project(t)
	a := e.task(t, p.ID, model.Task{Name: "a"})
	ctx := context.Background()
	if _, err := e.engine.Share(ctx, a.ID, api.ShareParams{TargetUser: "bob"}); err != nil {
		t.Fatalf("share: %v", err)
	}
	if _, err := e.engine.Sharables(ctx, a.ID); err != nil {
		t.Fatalf("sharables: %v", err)
	}
	if err := e.engine.RevokeSharable(ctx, a.ID, "bob", ""); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	s, _ := e.engine.CachedSharables(a.ID)
	if len(s.Users) != 0 {
		t.Fatalf("expected user revoked, got %+v", s.Users)
	}
}

func TestExportRestoreRoundTrip(t *testing.T) {
	e := newEnv(t)
	p := e.project(t)
	e.task(t, p.ID, model.Task{Name: "a"})
	ctx := context.Background()
	if err := e.engine.Refresh(ctx, p.ID); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if err := e.engine.LoadToday(ctx); err != nil {
		t.Fatalf("today: %v", err)
	}
	s := e.engine.Export()

	other := tasksync.New(e.stub, tasksync.WithNotifier(&tasksync.Recorder{}))
	other.Restore(s)
	got, ok := other.Collection(p.ID)
	want, _ := e.engine.Collection(p.ID)
	if !ok || got.Revision != want.Revision || len(got.Tasks) != len(want.Tasks) {
		t.Fatalf("collection not restored: %+v", got)
	}
	if !other.Views().IsMaterialized(model.ViewToday) {
		t.Fatalf("views not restored")
	}
}

func TestDeleteManyDropsFromOriginatingViewOnly(t *testing.T) {
	e := newEnv(t)
	p := e.project(t)
	amy := []model.User{{Name: "amy"}}
	a := e.task(t, p.ID, model.Task{Name: "a", Labels: []int64{7}, Assignees: amy})
	b := e.task(t, p.ID, model.Task{Name: "b", Labels: []int64{7}, Assignees: amy})
	c := e.task(t, p.ID, model.Task{Name: "c", Labels: []int64{7}, Assignees: amy})
	ctx := context.Background()

	if err := e.engine.Refresh(ctx, p.ID); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	before, _ := e.engine.Collection(p.ID)
	if err := e.engine.LoadAssignee(ctx, p.ID, "amy"); err != nil {
		t.Fatalf("assignee: %v", err)
	}
	if err := e.engine.LoadOrder(ctx, p.ID, "", ""); err != nil {
		t.Fatalf("order: %v", err)
	}
	if err := e.engine.LoadLabels(ctx, []int64{7}); err != nil {
		t.Fatalf("labels: %v", err)
	}
	if _, err := e.engine.Get(ctx, a.ID); err != nil {
		t.Fatalf("get: %v", err)
	}

	if err := e.engine.DeleteMany(ctx, p.ID, []int64{a.ID, c.ID}, model.ViewAssignee); err != nil {
		t.Fatalf("delete many: %v", err)
	}
	after, ok := e.engine.Collection(p.ID)
	if !ok || !slices.Equal(taskIDs(after.Tasks), []int64{b.ID}) {
		t.Fatalf("expected canonical list [b], got %v", taskIDs(after.Tasks))
	}
	server, err := e.client.FetchTasks(ctx, p.ID, api.TaskQuery{})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if after.Revision != server.ETag || after.Revision == before.Revision {
		t.Fatalf("expected server token %q, got %q (was %q)", server.ETag, after.Revision, before.Revision)
	}
	v := e.engine.Views()
	if !slices.Equal(taskIDs(v.Assignee), []int64{b.ID}) {
		t.Fatalf("assignee view still has deleted tasks: %v", taskIDs(v.Assignee))
	}
	if !slices.Equal(taskIDs(v.Order), []int64{a.ID, b.ID, c.ID}) {
		t.Fatalf("order view must be unchanged, got %v", taskIDs(v.Order))
	}
	if got := groupTaskIDs(v.Label); !slices.Contains(got, a.ID) || !slices.Contains(got, c.ID) {
		t.Fatalf("label view must be unchanged, got %v", got)
	}
	if e.engine.Selected() != nil {
		t.Fatalf("deleted task must not stay selected")
	}
}

func TestDeleteManyFromOrderView(t *testing.T) {
	e := newEnv(t)
	p := e.project(t)
	a := e.task(t, p.ID, model.Task{Name: "a"})
	b := e.task(t, p.ID, model.Task{Name: "b"})
	ctx := context.Background()

	if err := e.engine.LoadOrder(ctx, p.ID, "", ""); err != nil {
		t.Fatalf("order: %v", err)
	}
	if err := e.engine.DeleteMany(ctx, p.ID, []int64{a.ID}, model.ViewOrder); err != nil {
		t.Fatalf("delete many: %v", err)
	}
	if got := taskIDs(e.engine.Views().Order); !slices.Equal(got, []int64{b.ID}) {
		t.Fatalf("unexpected order view %v", got)
	}
	if len(e.srv.Tasks(p.ID)) != 1 {
		t.Fatalf("expected one task left on the server")
	}
}

func TestDeleteManyRequiresTasks(t *testing.T) {
	e := newEnv(t)
	p := e.project(t)
	err := e.engine.DeleteMany(context.Background(), p.ID, nil, model.ViewOrder)
	if err == nil || !strings.HasPrefix(err.Error(), "delete tasks: ") {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCompleteFromLabelViewOnlyTouchesLabelView(t *testing.T) {
	e := newEnv(t)
	p := e.project(t)
	amy := []model.User{{Name: "amy"}}
	a := e.task(t, p.ID, model.Task{Name: "a", Labels: []int64{7}, Assignees: amy})
	b := e.task(t, p.ID, model.Task{Name: "b", Labels: []int64{7}, Assignees: amy})
	ctx := context.Background()

	if err := e.engine.LoadAssignee(ctx, p.ID, "amy"); err != nil {
		t.Fatalf("assignee: %v", err)
	}
	if err := e.engine.LoadOrder(ctx, p.ID, "", ""); err != nil {
		t.Fatalf("order: %v", err)
	}
	if err := e.engine.LoadLabels(ctx, []int64{7}); err != nil {
		t.Fatalf("labels: %v", err)
	}

	if err := e.engine.Complete(ctx, a.ID, model.ViewLabel, ""); err != nil {
		t.Fatalf("complete: %v", err)
	}
	v := e.engine.Views()
	if got := groupTaskIDs(v.Label); !slices.Equal(got, []int64{b.ID}) {
		t.Fatalf("label view still has completed task: %v", got)
	}
	if !slices.Equal(taskIDs(v.Assignee), []int64{a.ID, b.ID}) {
		t.Fatalf("assignee view must be unchanged, got %v", taskIDs(v.Assignee))
	}
	if !slices.Equal(taskIDs(v.Order), []int64{a.ID, b.ID}) {
		t.Fatalf("order view must be unchanged, got %v", taskIDs(v.Order))
	}
}

func TestLoadRevisionOfDifferentContentsDoNotCancel(t *testing.T) {
	e := newEnv(t)
	started := make(chan struct{})
	release := make(chan struct{})
	e.stub.getRevision = func(ctx context.Context, taskID, contentID, revisionID int64) (model.Revision, error) {
		text := "body"
		if contentID == 1 {
			close(started)
			select {
			case <-release:
			case <-ctx.Done():
				return model.Revision{}, ctx.Err()
			}
		}
		return model.Revision{ID: revisionID, Content: &text}, nil
	}
	ctx := context.Background()

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = e.engine.LoadRevision(ctx, 7, 1, 1)
	}()
	<-started
	if _, err := e.engine.LoadRevision(ctx, 8, 2, 1); err != nil {
		t.Fatalf("second load: %v", err)
	}
	close(release)
	wg.Wait()
	if firstErr != nil {
		t.Fatalf("first load must not be superseded: %v", firstErr)
	}
	if len(e.notes.Notices()) != 0 {
		t.Fatalf("unexpected notices %v", e.notes.Notices())
	}
}
