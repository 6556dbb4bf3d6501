package tasksync

import (
	"context"
	"slices"
	"strings"

	"bulletjournal-cli/internal/api"
	"bulletjournal-cli/internal/model"
	"bulletjournal-cli/internal/tree"
)

// Refresh replaces the project's canonical collection with the server's.
func (e *Engine) Refresh(ctx context.Context, projectID int64) error {
	const category = "refresh tasks"
	ctx, t := e.read(ctx, key(category, projectID))
	defer e.latest.end(t)
	list, err := e.api.FetchTasks(ctx, projectID, api.TaskQuery{})
	if err != nil {
		return e.fail(t, category, err)
	}
	return e.commit(t, func() { e.setCollection(projectID, list, false) })
}

// refetch re-derives a collection after a mutation that answered with a single task.
func (e *Engine) refetch(ctx context.Context, t ticket, category string, projectID int64) error {
	list, err := e.api.FetchTasks(ctx, projectID, api.TaskQuery{})
	if err != nil {
		return e.fail(t, category, err)
	}
	return e.commit(t, func() { e.setCollection(projectID, list, false) })
}

// BulkReplace submits the whole task list with the last observed revision token. The server
// decides whether the token is stale; its answer (list and token) is adopted verbatim.
func (e *Engine) BulkReplace(ctx context.Context, projectID int64, tasks []model.Task) error {
	const category = "update tasks"
	ctx, t := e.write(ctx, key(category, projectID))
	defer e.latest.end(t)
	list, err := e.api.PutTasks(ctx, projectID, tasks, e.Revision(projectID))
	if err != nil {
		return e.fail(t, category, err)
	}
	return e.commit(t, func() { e.setCollection(projectID, list, false) })
}

// DropTask moves a task inside the project's nested task tree and submits the result.
func (e *Engine) DropTask(ctx context.Context, projectID int64, d tree.Drop) error {
	const category = "move task"
	c, ok := e.Collection(projectID)
	if !ok {
		if err := e.Refresh(ctx, projectID); err != nil {
			return err
		}
		c, _ = e.Collection(projectID)
	}
	nodes, err := tree.Resolve(tree.Tasks(c.Tasks), d)
	if err != nil {
		return e.report(category, err)
	}
	return e.BulkReplace(ctx, projectID, tree.TaskItems(nodes))
}

// TaskTree returns the project's canonical tasks as tree nodes for rendering and drops.
func (e *Engine) TaskTree(projectID int64) []tree.Node[model.Task] {
	c, _ := e.Collection(projectID)
	return tree.Tasks(c.Tasks)
}

// Create adds a task to the project and reloads the canonical collection.
func (e *Engine) Create(ctx context.Context, projectID int64, task api.CreateTask) (model.Task, error) {
	const category = "create task"
	if strings.TrimSpace(task.Name) == "" {
		return model.Task{}, e.report(category, ValidationError{Field: "name", Reason: "required"})
	}
	ctx, t := e.write(ctx, key(category, projectID))
	defer e.latest.end(t)
	created, err := e.api.CreateTask(ctx, projectID, task)
	if err != nil {
		return model.Task{}, e.fail(t, category, err)
	}
	return created, e.refetch(ctx, t, category, projectID)
}

// PatchOne updates the mutable fields of one task. The canonical list comes from the server's
// answer; the revision token is only replaced if the server sent one.
func (e *Engine) PatchOne(ctx context.Context, taskID int64, patch api.TaskPatch) error {
	const category = "update task"
	if patch.IsEmpty() {
		return e.report(category, ValidationError{Field: "patch", Reason: "no fields to update"})
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return e.report(category, ValidationError{Field: "name", Reason: "must not be empty"})
	}
	ctx, t := e.write(ctx, key(category, taskID))
	defer e.latest.end(t)
	projectID := e.ProjectOf(taskID)
	list, err := e.api.PatchTask(ctx, taskID, patch)
	if err != nil {
		return e.fail(t, category, err)
	}
	if projectID == 0 && len(list.Tasks) > 0 {
		projectID = list.Tasks[0].ProjectID
	}
	if projectID != 0 {
		if err := e.commit(t, func() { e.setCollection(projectID, list, true) }); err != nil {
			return err
		}
	}
	return e.afterPatch(ctx, t, category, taskID)
}

// afterPatch refreshes what a single-task change can affect outside the canonical list:
// the selected task, its copies inside label groups and the today aggregate.
func (e *Engine) afterPatch(ctx context.Context, t ticket, category string, taskID int64) error {
	task, err := e.api.GetTask(ctx, taskID)
	if err != nil {
		return e.fail(t, category, err)
	}
	if err := e.commit(t, func() {
		e.selected = &task
		if e.views.IsMaterialized(model.ViewLabel) {
			e.views.Label = replaceInGroups(e.views.Label, task)
		}
	}); err != nil {
		return err
	}
	return e.recomputeToday(ctx, t, category)
}

// SetStatus sets a task's status and fans the change out to the views from names.
func (e *Engine) SetStatus(ctx context.Context, taskID int64, status model.TaskStatus, from model.ViewKind) error {
	const category = "set task status"
	ctx, t := e.write(ctx, key(category, taskID))
	defer e.latest.end(t)
	projectID := e.ProjectOf(taskID)
	list, err := e.api.SetTaskStatus(ctx, taskID, status)
	if err != nil {
		return e.fail(t, category, err)
	}
	if projectID == 0 && len(list.Tasks) > 0 {
		projectID = list.Tasks[0].ProjectID
	}
	if err := e.commit(t, func() {
		if projectID != 0 {
			e.setCollection(projectID, list, false)
		}
		if e.selected != nil && e.selected.ID == taskID {
			sel := *e.selected
			sel.Status = status
			e.selected = &sel
		}
	}); err != nil {
		return err
	}
	return e.fanOut(ctx, t, category, MutationSetStatus, from, change{projectID: projectID, ids: []int64{taskID}, status: status})
}

// Complete marks a task done. dateTime completes one occurrence of a recurring task.
func (e *Engine) Complete(ctx context.Context, taskID int64, from model.ViewKind, dateTime string) error {
	const category = "complete task"
	ctx, t := e.write(ctx, key(category, taskID))
	defer e.latest.end(t)
	projectID := e.ProjectOf(taskID)
	done, err := e.api.CompleteTask(ctx, taskID, dateTime)
	if err != nil {
		return e.fail(t, category, err)
	}
	if done.ProjectID != 0 {
		projectID = done.ProjectID
	}
	if projectID != 0 {
		if err := e.refetch(ctx, t, category, projectID); err != nil {
			return err
		}
	}
	if err := e.commit(t, func() { e.clearSelected(taskID) }); err != nil {
		return err
	}
	return e.fanOut(ctx, t, category, MutationComplete, from, change{projectID: projectID, ids: []int64{taskID}})
}

// Uncomplete moves a completed task back into its project.
func (e *Engine) Uncomplete(ctx context.Context, taskID int64) error {
	const category = "uncomplete task"
	ctx, t := e.write(ctx, key(category, taskID))
	defer e.latest.end(t)
	task, err := e.api.UncompleteTask(ctx, taskID)
	if err != nil {
		return e.fail(t, category, err)
	}
	if task.ProjectID != 0 {
		if err := e.refetch(ctx, t, category, task.ProjectID); err != nil {
			return err
		}
		if err := e.reloadCompleted(ctx, t, category, task.ProjectID); err != nil {
			return err
		}
	}
	return e.commit(t, func() {
		e.views.SearchCompleted = withoutTasks(e.views.SearchCompleted, []int64{taskID})
	})
}

// Delete removes a task (with its subtasks).
func (e *Engine) Delete(ctx context.Context, taskID int64, from model.ViewKind) error {
	const category = "delete task"
	ctx, t := e.write(ctx, key(category, taskID))
	defer e.latest.end(t)
	projectID := e.ProjectOf(taskID)
	list, err := e.api.DeleteTask(ctx, taskID)
	if err != nil {
		return e.fail(t, category, err)
	}
	if projectID == 0 && len(list.Tasks) > 0 {
		projectID = list.Tasks[0].ProjectID
	}
	if err := e.commit(t, func() {
		if projectID != 0 {
			e.setCollection(projectID, list, false)
		}
		e.clearSelected(taskID)
	}); err != nil {
		return err
	}
	return e.fanOut(ctx, t, category, MutationDelete, from, change{projectID: projectID, ids: []int64{taskID}})
}

func (e *Engine) DeleteMany(ctx context.Context, projectID int64, taskIDs []int64, from model.ViewKind) error {
	const category = "delete tasks"
	if len(taskIDs) == 0 {
		return e.report(category, ValidationError{Field: "tasks", Reason: "none selected"})
	}
	ctx, t := e.write(ctx, key(category, projectID))
	defer e.latest.end(t)
	list, err := e.api.DeleteTasks(ctx, projectID, taskIDs)
	if err != nil {
		return e.fail(t, category, err)
	}
	if err := e.commit(t, func() {
		e.setCollection(projectID, list, false)
		e.clearSelected(taskIDs...)
	}); err != nil {
		return err
	}
	return e.fanOut(ctx, t, category, MutationDeleteMany, from, change{projectID: projectID, ids: taskIDs})
}

// CompleteMany completes several tasks of one project. The completed pages are reset since
// their page boundaries no longer hold.
func (e *Engine) CompleteMany(ctx context.Context, projectID int64, taskIDs []int64, from model.ViewKind) error {
	const category = "complete tasks"
	if len(taskIDs) == 0 {
		return e.report(category, ValidationError{Field: "tasks", Reason: "none selected"})
	}
	ctx, t := e.write(ctx, key(category, projectID))
	defer e.latest.end(t)
	list, err := e.api.CompleteTasks(ctx, projectID, taskIDs)
	if err != nil {
		return e.fail(t, category, err)
	}
	if err := e.commit(t, func() {
		e.setCollection(projectID, list, false)
		e.clearSelected(taskIDs...)
		e.resetCompleted(projectID)
	}); err != nil {
		return err
	}
	return e.fanOut(ctx, t, category, MutationCompleteMany, from, change{projectID: projectID, ids: taskIDs})
}

// SetLabels replaces a task's labels.
func (e *Engine) SetLabels(ctx context.Context, taskID int64, labels []int64) error {
	const category = "set labels"
	ctx, t := e.write(ctx, key(category, taskID))
	defer e.latest.end(t)
	task, err := e.api.SetTaskLabels(ctx, taskID, labels)
	if err != nil {
		return e.fail(t, category, err)
	}
	if err := e.commit(t, func() {
		if e.selected != nil && e.selected.ID == taskID {
			e.selected = &task
		}
		if e.views.IsMaterialized(model.ViewLabel) {
			e.views.Label = replaceInGroups(e.views.Label, task)
		}
	}); err != nil {
		return err
	}
	if task.ProjectID == 0 {
		return nil
	}
	return e.refetch(ctx, t, category, task.ProjectID)
}

// Get loads one open task and makes it the selected task.
func (e *Engine) Get(ctx context.Context, taskID int64) (model.Task, error) {
	return e.get(ctx, "get task", taskID, e.api.GetTask)
}

func (e *Engine) GetCompleted(ctx context.Context, taskID int64) (model.Task, error) {
	return e.get(ctx, "get completed task", taskID, e.api.GetCompletedTask)
}

func (e *Engine) get(ctx context.Context, category string, taskID int64, fetch func(context.Context, int64) (model.Task, error)) (model.Task, error) {
	// One selected task at a time: opening another supersedes the previous open.
	ctx, t := e.read(ctx, "select task")
	defer e.latest.end(t)
	task, err := fetch(ctx, taskID)
	if err != nil {
		return model.Task{}, e.fail(t, category, err)
	}
	if err := e.commit(t, func() { e.selected = &task }); err != nil {
		return model.Task{}, err
	}
	return task, nil
}

// Move moves a task to another project and reloads both collections when they are loaded.
func (e *Engine) Move(ctx context.Context, taskID, targetProject int64) error {
	const category = "move task"
	if targetProject <= 0 {
		return e.report(category, ValidationError{Field: "project", Reason: "target project required"})
	}
	ctx, t := e.write(ctx, key(category, taskID))
	defer e.latest.end(t)
	source := e.ProjectOf(taskID)
	if source == 0 {
		task, err := e.api.GetTask(ctx, taskID)
		if err != nil {
			return e.fail(t, category, err)
		}
		source = task.ProjectID
	}
	if err := e.api.MoveTask(ctx, taskID, targetProject); err != nil {
		return e.fail(t, category, err)
	}
	if err := e.commit(t, func() { e.clearSelected(taskID) }); err != nil {
		return err
	}
	if source != 0 {
		if err := e.refetch(ctx, t, category, source); err != nil {
			return err
		}
	}
	if _, loaded := e.Collection(targetProject); loaded && targetProject != source {
		return e.refetch(ctx, t, category, targetProject)
	}
	return nil
}

// Share shares a task with a user or generates a public link, which is returned.
func (e *Engine) Share(ctx context.Context, taskID int64, p api.ShareParams) (string, error) {
	const category = "share task"
	if !p.GenerateLink && strings.TrimSpace(p.TargetUser) == "" && p.TargetGroup == 0 {
		return "", e.report(category, ValidationError{Field: "target", Reason: "a user, a group or a link is required"})
	}
	ctx, t := e.write(ctx, key(category, taskID))
	defer e.latest.end(t)
	link, err := e.api.ShareTask(ctx, taskID, p)
	if err != nil {
		return "", e.fail(t, category, err)
	}
	return link, nil
}

func (e *Engine) Sharables(ctx context.Context, taskID int64) (model.Sharables, error) {
	const category = "get sharables"
	ctx, t := e.read(ctx, key(category, taskID))
	defer e.latest.end(t)
	s, err := e.api.GetSharables(ctx, taskID)
	if err != nil {
		return model.Sharables{}, e.fail(t, category, err)
	}
	if err := e.commit(t, func() { e.sharables[taskID] = s }); err != nil {
		return model.Sharables{}, err
	}
	return s, nil
}

// RevokeSharable revokes a user's access or a link and drops it from the cached sharables.
func (e *Engine) RevokeSharable(ctx context.Context, taskID int64, user, link string) error {
	const category = "revoke sharable"
	if user == "" && link == "" {
		return e.report(category, ValidationError{Field: "sharable", Reason: "user or link required"})
	}
	ctx, t := e.write(ctx, key(category, taskID))
	defer e.latest.end(t)
	if err := e.api.RevokeSharable(ctx, taskID, user, link); err != nil {
		return e.fail(t, category, err)
	}
	return e.commit(t, func() {
		s, ok := e.sharables[taskID]
		if !ok {
			return
		}
		if user != "" {
			s.Users = slices.DeleteFunc(slices.Clone(s.Users), func(u model.User) bool { return u.Name == user })
		}
		if link != "" {
			s.Links = slices.DeleteFunc(slices.Clone(s.Links), func(l model.SharableLink) bool { return l.Link == link })
		}
		e.sharables[taskID] = s
	})
}

// DeleteCompleted deletes a completed task and reloads the completed pages it was shown in.
func (e *Engine) DeleteCompleted(ctx context.Context, taskID int64) error {
	const category = "delete completed task"
	ctx, t := e.write(ctx, key(category, taskID))
	defer e.latest.end(t)
	projectID := e.completedProjectOf(taskID)
	if _, err := e.api.DeleteCompletedTask(ctx, taskID); err != nil {
		return e.fail(t, category, err)
	}
	if err := e.commit(t, func() {
		e.views.SearchCompleted = withoutTasks(e.views.SearchCompleted, []int64{taskID})
		e.clearSelected(taskID)
	}); err != nil {
		return err
	}
	if projectID == 0 {
		return nil
	}
	return e.reloadCompleted(ctx, t, category, projectID)
}

// SearchCompleted runs a one-off filtered completed-task query into the search view.
func (e *Engine) SearchCompleted(ctx context.Context, projectID int64, q api.CompletedQuery) error {
	const category = "search completed tasks"
	ctx, t := e.read(ctx, category)
	defer e.latest.end(t)
	if q.Timezone == "" {
		q.Timezone = e.Selection().Timezone
	}
	tasks, err := e.api.FetchCompletedTasks(ctx, projectID, 0, e.pageSize, q)
	if err != nil {
		return e.fail(t, category, err)
	}
	return e.commit(t, func() { e.views.SearchCompleted = tasks })
}
