// Package tasksync keeps the client's view of a bullet journal consistent with the server.
//
// An Engine holds the canonical task collection of every loaded project (tasks plus the
// server's revision token), the derived views (assignee, order, label, recent, today), the
// completed-task paginator, task contents and the note/project trees. Every intent is one
// method: it performs the server call through the API, commits the server's answer and fans
// the change out to the derived views that the originating view needs updated.
//
// State is published as immutable snapshots. No lock is held across a network call; results
// of an intent that was superseded by a newer one of the same kind are discarded.
package tasksync

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"bulletjournal-cli/internal/api"
	"bulletjournal-cli/internal/model"
)

const DefaultPageSize = 50

// TaskAPI is the task half of the server API.
type TaskAPI interface {
	FetchTasks(ctx context.Context, projectID int64, q api.TaskQuery) (api.TaskList, error)
	PutTasks(ctx context.Context, projectID int64, tasks []model.Task, etag string) (api.TaskList, error)
	CreateTask(ctx context.Context, projectID int64, t api.CreateTask) (model.Task, error)
	GetTask(ctx context.Context, taskID int64) (model.Task, error)
	GetCompletedTask(ctx context.Context, taskID int64) (model.Task, error)
	PatchTask(ctx context.Context, taskID int64, p api.TaskPatch) (api.TaskList, error)
	SetTaskStatus(ctx context.Context, taskID int64, status model.TaskStatus) (api.TaskList, error)
	SetTaskLabels(ctx context.Context, taskID int64, labels []int64) (model.Task, error)
	CompleteTask(ctx context.Context, taskID int64, dateTime string) (model.Task, error)
	UncompleteTask(ctx context.Context, taskID int64) (model.Task, error)
	DeleteTask(ctx context.Context, taskID int64) (api.TaskList, error)
	DeleteTasks(ctx context.Context, projectID int64, taskIDs []int64) (api.TaskList, error)
	CompleteTasks(ctx context.Context, projectID int64, taskIDs []int64) (api.TaskList, error)
	MoveTask(ctx context.Context, taskID, targetProject int64) error
	ShareTask(ctx context.Context, taskID int64, p api.ShareParams) (string, error)
	GetSharables(ctx context.Context, taskID int64) (model.Sharables, error)
	RevokeSharable(ctx context.Context, taskID int64, user, link string) error
	FetchCompletedTasks(ctx context.Context, projectID int64, pageNo, pageSize int, q api.CompletedQuery) ([]model.Task, error)
	DeleteCompletedTask(ctx context.Context, taskID int64) ([]model.Task, error)
}

type ContentAPI interface {
	GetContents(ctx context.Context, taskID int64) ([]model.Content, error)
	GetCompletedTaskContents(ctx context.Context, taskID int64) ([]model.Content, error)
	AddContent(ctx context.Context, taskID int64, text string) (model.Content, error)
	UpdateContent(ctx context.Context, taskID, contentID int64, text string) ([]model.Content, error)
	DeleteContent(ctx context.Context, taskID, contentID int64) ([]model.Content, error)
	GetContentRevision(ctx context.Context, taskID, contentID, revisionID int64) (model.Revision, error)
}

type TreeAPI interface {
	FetchNotes(ctx context.Context, projectID int64) (api.NoteList, error)
	PutNotes(ctx context.Context, projectID int64, notes []model.Note, etag string) (api.NoteList, error)
	FetchProjects(ctx context.Context) (api.ProjectList, error)
	PutProjects(ctx context.Context, projects []model.Project, etag string) (api.ProjectList, error)
	UpdateSharedProjectsOrder(ctx context.Context, owners []string) error
}

type ItemsAPI interface {
	FetchProjectItems(ctx context.Context, q api.ItemsQuery) ([]model.ProjectItems, error)
	FetchItemsByLabels(ctx context.Context, labels []int64) ([]model.ProjectItems, error)
	FetchRecentItems(ctx context.Context, q api.RecentQuery) ([]model.RecentItem, error)
}

// API is everything the engine needs from the server. *api.Client implements it.
type API interface {
	TaskAPI
	ContentAPI
	TreeAPI
	ItemsAPI
}

// ErrLoadInProgress rejects a completed-page request while another one is in flight.
var ErrLoadInProgress = errors.New("a page load is already in progress")

// ValidationError aborts an intent before any server call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

type Engine struct {
	api      API
	notifier Notifier
	log      log.FieldLogger
	pageSize int
	now      func() time.Time
	latest   *latest

	mu           sync.Mutex
	collections  map[int64]model.TaskCollection
	noteTrees    map[int64]model.NoteTree
	completed    map[int64]model.CompletedPage
	pageEpochs   map[int64]uint64
	projects     *model.Projects
	projectsETag string
	views        model.ViewSet
	selection    model.Selection
	selected     *model.Task
	contents     map[int64][]model.Content
	sharables    map[int64]model.Sharables
}

type Option func(*Engine)

func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

func WithLogger(l log.FieldLogger) Option {
	return func(e *Engine) { e.log = l }
}

// WithPageSize sets the completed-task page size. Values below one are ignored.
func WithPageSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.pageSize = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(a API, opts ...Option) *Engine {
	e := &Engine{
		api:         a,
		log:         log.StandardLogger(),
		pageSize:    DefaultPageSize,
		now:         time.Now,
		latest:      newLatest(),
		collections: map[int64]model.TaskCollection{},
		noteTrees:   map[int64]model.NoteTree{},
		completed:   map[int64]model.CompletedPage{},
		pageEpochs:  map[int64]uint64{},
		contents:    map[int64][]model.Content{},
		sharables:   map[int64]model.Sharables{},
		selection:   model.Selection{Todo: true, Ledger: true},
	}
	for _, o := range opts {
		o(e)
	}
	if e.notifier == nil {
		e.notifier = LogNotifier{Log: e.log}
	}
	return e
}

func (e *Engine) PageSize() int { return e.pageSize }

func key(category string, id int64) string {
	return category + ":" + strconv.FormatInt(id, 10)
}

// fail reports err under category and returns it wrapped. A superseded intent reports nothing
// and returns ErrSuperseded.
func (e *Engine) fail(t ticket, category string, err error) error {
	if !e.latest.current(t) {
		e.log.WithField("category", category).Debug("discarding failure of superseded request")
		return ErrSuperseded
	}
	return e.report(category, err)
}

func (e *Engine) report(category string, err error) error {
	e.notifier.Notify(Notice{Level: LevelError, Category: category, Err: err})
	return fmt.Errorf("%s: %w", category, err)
}

func (e *Engine) info(category string, err error) {
	e.notifier.Notify(Notice{Level: LevelInfo, Category: category, Err: err})
}

// commit applies fn under the state lock if t still holds the current generation.
func (e *Engine) commit(t ticket, fn func()) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.latest.current(t) {
		e.log.WithField("key", t.key).WithField("generation", t.gen).Debug("discarding superseded result")
		return ErrSuperseded
	}
	fn()
	return nil
}

// read starts a read intent: an earlier read with the same key is cancelled.
func (e *Engine) read(ctx context.Context, k string) (context.Context, ticket) {
	return e.latest.begin(ctx, k, true)
}

// write starts a write intent: an earlier identical write keeps running but may not commit.
func (e *Engine) write(ctx context.Context, k string) (context.Context, ticket) {
	return e.latest.begin(ctx, k, false)
}

// Collection returns the canonical task collection of a project.
func (e *Engine) Collection(projectID int64) (model.TaskCollection, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.collections[projectID]
	return c, ok
}

// Revision returns the project's last observed revision token.
func (e *Engine) Revision(projectID int64) string {
	c, _ := e.Collection(projectID)
	return c.Revision
}

func (e *Engine) Views() model.ViewSet {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.views
}

func (e *Engine) CompletedPage(projectID int64) model.CompletedPage {
	e.mu.Lock()
	defer e.mu.Unlock()
	p := e.completed[projectID]
	p.ProjectID = projectID
	return p
}

func (e *Engine) Selection() model.Selection {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selection
}

// Selected returns the task last opened with Get, or nil.
func (e *Engine) Selected() *model.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.selected == nil {
		return nil
	}
	t := *e.selected
	return &t
}

func (e *Engine) CachedContents(taskID int64) ([]model.Content, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.contents[taskID]
	return c, ok
}

func (e *Engine) CachedSharables(taskID int64) (model.Sharables, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sharables[taskID]
	return s, ok
}

// ProjectOf finds the loaded project holding taskID, or 0.
func (e *Engine) ProjectOf(taskID int64) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, c := range e.collections {
		if containsTask(c.Tasks, taskID) {
			return id
		}
	}
	return 0
}

func containsTask(tasks []model.Task, id int64) bool {
	for _, t := range tasks {
		if t.ID == id || containsTask(t.SubTasks, id) {
			return true
		}
	}
	return false
}

// setCollection adopts a server task list. keepToken keeps the previous token when the
// response carried none.
func (e *Engine) setCollection(projectID int64, list api.TaskList, keepToken bool) {
	prev := e.collections[projectID]
	rev := list.ETag
	if keepToken && rev == "" {
		rev = prev.Revision
	}
	e.collections[projectID] = model.TaskCollection{ProjectID: projectID, Tasks: list.Tasks, Revision: rev}
	e.log.WithFields(log.Fields{"project": projectID, "tasks": len(list.Tasks), "revision": rev}).Debug("canonical collection replaced")
}

func (e *Engine) clearSelected(ids ...int64) {
	if e.selected == nil {
		return
	}
	for _, id := range ids {
		if e.selected.ID == id {
			e.selected = nil
			return
		}
	}
}

// today is the current date in the selection's timezone.
func (e *Engine) today(tz string) string {
	now := e.now()
	if tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			now = now.In(loc)
		}
	}
	return now.Format("2006-01-02")
}
