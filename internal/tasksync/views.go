package tasksync

import (
	"context"
	"slices"
	"strings"

	"bulletjournal-cli/internal/api"
	"bulletjournal-cli/internal/model"
)

// Mutation names a task change that derived views may have to follow.
type Mutation string

const (
	MutationComplete     Mutation = "complete"
	MutationDelete       Mutation = "delete"
	MutationDeleteMany   Mutation = "deleteMany"
	MutationCompleteMany Mutation = "completeMany"
	MutationSetStatus    Mutation = "setStatus"
)

type change struct {
	projectID int64
	ids       []int64
	status    model.TaskStatus
}

// viewUpdate brings one derived view in line with a change. Local updates never call the
// server; the today aggregate and completed pages are reloaded.
type viewUpdate func(e *Engine, ctx context.Context, t ticket, category string, c change) error

type fanoutKey struct {
	mutation Mutation
	view     model.ViewKind
}

// fanout lists, per mutation and originating view, the derived views to update.
var fanout = map[fanoutKey][]viewUpdate{
	{MutationComplete, model.ViewProject}:  {reloadCompletedPages},
	{MutationComplete, model.ViewToday}:    {recomputeTodayView},
	{MutationComplete, model.ViewAssignee}: {dropFromAssignee},
	{MutationComplete, model.ViewOrder}:    {dropFromOrder},
	{MutationComplete, model.ViewLabel}:    {dropFromLabels},
	{MutationComplete, model.ViewRecent}:   {dropFromRecent},

	{MutationDelete, model.ViewToday}:    {recomputeTodayView},
	{MutationDelete, model.ViewAssignee}: {dropFromAssignee},
	{MutationDelete, model.ViewOrder}:    {dropFromOrder},
	{MutationDelete, model.ViewLabel}:    {dropFromLabels},
	{MutationDelete, model.ViewRecent}:   {dropFromRecent},

	{MutationDeleteMany, model.ViewAssignee}: {dropFromAssignee},
	{MutationDeleteMany, model.ViewOrder}:    {dropFromOrder},

	{MutationCompleteMany, model.ViewAssignee}: {dropFromAssignee},
	{MutationCompleteMany, model.ViewOrder}:    {dropFromOrder},

	{MutationSetStatus, model.ViewAssignee}: {patchStatusInAssignee},
	{MutationSetStatus, model.ViewOrder}:    {patchStatusInOrder},
}

func (e *Engine) fanOut(ctx context.Context, t ticket, category string, m Mutation, from model.ViewKind, c change) error {
	for _, u := range fanout[fanoutKey{m, from}] {
		if err := u(e, ctx, t, category, c); err != nil {
			return err
		}
	}
	return nil
}

// local wraps a pure view transformation into a viewUpdate that runs only when kind is
// materialized.
func local(kind model.ViewKind, fn func(model.ViewSet, change) model.ViewSet) viewUpdate {
	return func(e *Engine, _ context.Context, t ticket, _ string, c change) error {
		return e.commit(t, func() {
			if e.views.IsMaterialized(kind) {
				e.views = fn(e.views, c)
			}
		})
	}
}

var (
	dropFromAssignee = local(model.ViewAssignee, func(v model.ViewSet, c change) model.ViewSet {
		v.Assignee = withoutTasks(v.Assignee, c.ids)
		return v
	})
	dropFromOrder = local(model.ViewOrder, func(v model.ViewSet, c change) model.ViewSet {
		v.Order = withoutTasks(v.Order, c.ids)
		return v
	})
	dropFromLabels = local(model.ViewLabel, func(v model.ViewSet, c change) model.ViewSet {
		v.Label = withoutTasksInGroups(v.Label, c.ids)
		return v
	})
	dropFromRecent = local(model.ViewRecent, func(v model.ViewSet, c change) model.ViewSet {
		v.Recent = withoutRecentTasks(v.Recent, c.ids)
		return v
	})
	patchStatusInAssignee = local(model.ViewAssignee, func(v model.ViewSet, c change) model.ViewSet {
		v.Assignee = withStatus(v.Assignee, c.ids, c.status)
		return v
	})
	patchStatusInOrder = local(model.ViewOrder, func(v model.ViewSet, c change) model.ViewSet {
		v.Order = withStatus(v.Order, c.ids, c.status)
		return v
	})
)

func recomputeTodayView(e *Engine, ctx context.Context, t ticket, category string, _ change) error {
	return e.recomputeToday(ctx, t, category)
}

func reloadCompletedPages(e *Engine, ctx context.Context, t ticket, category string, c change) error {
	if c.projectID == 0 {
		return nil
	}
	return e.reloadCompleted(ctx, t, category, c.projectID)
}

func withoutTasks(tasks []model.Task, ids []int64) []model.Task {
	if tasks == nil {
		return nil
	}
	return slices.DeleteFunc(slices.Clone(tasks), func(t model.Task) bool { return slices.Contains(ids, t.ID) })
}

func withoutTasksInGroups(groups []model.ProjectItems, ids []int64) []model.ProjectItems {
	if groups == nil {
		return nil
	}
	out := make([]model.ProjectItems, len(groups))
	for i, g := range groups {
		g.Tasks = withoutTasks(g.Tasks, ids)
		out[i] = g
	}
	return out
}

func withoutRecentTasks(items []model.RecentItem, ids []int64) []model.RecentItem {
	if items == nil {
		return nil
	}
	return slices.DeleteFunc(slices.Clone(items), func(it model.RecentItem) bool {
		return it.ContentType == model.ContentTypeTask && slices.Contains(ids, it.ID)
	})
}

func withStatus(tasks []model.Task, ids []int64, status model.TaskStatus) []model.Task {
	if tasks == nil {
		return nil
	}
	out := slices.Clone(tasks)
	for i := range out {
		if slices.Contains(ids, out[i].ID) {
			out[i].Status = status
		}
	}
	return out
}

func replaceInGroups(groups []model.ProjectItems, task model.Task) []model.ProjectItems {
	if groups == nil {
		return nil
	}
	out := make([]model.ProjectItems, len(groups))
	for i, g := range groups {
		if j := slices.IndexFunc(g.Tasks, func(t model.Task) bool { return t.ID == task.ID }); j >= 0 {
			g.Tasks = slices.Clone(g.Tasks)
			g.Tasks[j] = task
		}
		out[i] = g
	}
	return out
}

// LoadAssignee materializes the view of a project's tasks assigned to one user.
func (e *Engine) LoadAssignee(ctx context.Context, projectID int64, assignee string) error {
	const category = "load assignee view"
	if strings.TrimSpace(assignee) == "" {
		return e.report(category, ValidationError{Field: "assignee", Reason: "required"})
	}
	ctx, t := e.read(ctx, category)
	defer e.latest.end(t)
	list, err := e.api.FetchTasks(ctx, projectID, api.TaskQuery{Assignee: assignee})
	if err != nil {
		return e.fail(t, category, err)
	}
	return e.commit(t, func() {
		e.views.Assignee = list.Tasks
		e.views = e.views.WithMaterialized(model.ViewAssignee)
	})
}

// LoadOrder materializes the project's tasks ordered by due date within an optional window.
func (e *Engine) LoadOrder(ctx context.Context, projectID int64, startDate, endDate string) error {
	const category = "load order view"
	ctx, t := e.read(ctx, category)
	defer e.latest.end(t)
	list, err := e.api.FetchTasks(ctx, projectID, api.TaskQuery{
		Order:     true,
		Timezone:  e.Selection().Timezone,
		StartDate: startDate,
		EndDate:   endDate,
	})
	if err != nil {
		return e.fail(t, category, err)
	}
	return e.commit(t, func() {
		e.views.Order = list.Tasks
		e.views = e.views.WithMaterialized(model.ViewOrder)
	})
}

func (e *Engine) LoadLabels(ctx context.Context, labels []int64) error {
	const category = "load label view"
	if len(labels) == 0 {
		return e.report(category, ValidationError{Field: "labels", Reason: "at least one label required"})
	}
	ctx, t := e.read(ctx, category)
	defer e.latest.end(t)
	groups, err := e.api.FetchItemsByLabels(ctx, labels)
	if err != nil {
		return e.fail(t, category, err)
	}
	return e.commit(t, func() {
		e.views.Label = groups
		e.views = e.views.WithMaterialized(model.ViewLabel)
	})
}

func (e *Engine) LoadRecent(ctx context.Context, startDate, endDate string) error {
	const category = "load recent view"
	ctx, t := e.read(ctx, category)
	defer e.latest.end(t)
	sel := e.Selection()
	items, err := e.api.FetchRecentItems(ctx, api.RecentQuery{
		Types:     sel.Types(),
		Timezone:  sel.Timezone,
		StartDate: startDate,
		EndDate:   endDate,
	})
	if err != nil {
		return e.fail(t, category, err)
	}
	return e.commit(t, func() {
		e.views.Recent = items
		e.views = e.views.WithMaterialized(model.ViewRecent)
	})
}

// LoadToday materializes today's aggregate for the current selection.
func (e *Engine) LoadToday(ctx context.Context) error {
	const category = "load today view"
	ctx, t := e.read(ctx, "today")
	defer e.latest.end(t)
	groups, err := e.fetchToday(ctx)
	if err != nil {
		return e.fail(t, category, err)
	}
	return e.commit(t, func() {
		e.views.Today = groups
		e.views = e.views.WithMaterialized(model.ViewToday)
	})
}

func (e *Engine) fetchToday(ctx context.Context) ([]model.ProjectItems, error) {
	sel := e.Selection()
	day := e.today(sel.Timezone)
	return e.api.FetchProjectItems(ctx, api.ItemsQuery{
		Types:     sel.Types(),
		Timezone:  sel.Timezone,
		StartDate: day,
		EndDate:   day,
	})
}

// recomputeToday asks the server for a fresh today aggregate if that view is materialized.
// Membership depends on the date, so it cannot be patched locally.
func (e *Engine) recomputeToday(ctx context.Context, t ticket, category string) error {
	if !e.Views().IsMaterialized(model.ViewToday) {
		return nil
	}
	groups, err := e.fetchToday(ctx)
	if err != nil {
		return e.fail(t, category, err)
	}
	return e.commit(t, func() { e.views.Today = groups })
}

// SetSelection changes the today filters and recomputes the today view when it is loaded.
func (e *Engine) SetSelection(ctx context.Context, sel model.Selection) error {
	e.mu.Lock()
	e.selection = sel
	materialized := e.views.IsMaterialized(model.ViewToday)
	e.mu.Unlock()
	if !materialized {
		return nil
	}
	return e.LoadToday(ctx)
}
