package model

import "slices"

// ViewKind tags the UI context an intent originates from.
type ViewKind string

const (
	ViewProject  ViewKind = "project"
	ViewToday    ViewKind = "today"
	ViewAssignee ViewKind = "assignee"
	ViewOrder    ViewKind = "order"
	ViewLabel    ViewKind = "label"
	ViewRecent   ViewKind = "recent"
)

func ParseViewKind(s string) (ViewKind, bool) {
	switch k := ViewKind(s); k {
	case ViewProject, ViewToday, ViewAssignee, ViewOrder, ViewLabel, ViewRecent:
		return k, true
	case "":
		return ViewProject, true
	default:
		return "", false
	}
}

// TaskCollection is the canonical, server-trusted list of a project's tasks.
// Revision is the ETag observed with the last successful read or write.
type TaskCollection struct {
	ProjectID int64  `json:"projectId"`
	Tasks     []Task `json:"tasks"`
	Revision  string `json:"revision"`
}

// NoteTree is the last observed nested note list of a project.
type NoteTree struct {
	ProjectID int64  `json:"projectId"`
	Notes     []Note `json:"notes"`
	Revision  string `json:"revision"`
}

// CompletedPage is the accumulated completed-task list of a project.
// Next always holds page PageNo (the page after the last displayed one).
type CompletedPage struct {
	ProjectID int64  `json:"projectId"`
	Tasks     []Task `json:"tasks"`
	PageNo    int    `json:"pageNo"`
	Next      []Task `json:"next"`
	Loading   bool   `json:"-"`
}

// ViewSet holds the materialized derived views. A view that is not in Materialized
// has never been loaded and is left alone by mutations.
type ViewSet struct {
	Assignee        []Task         `json:"assignee,omitempty"`
	Order           []Task         `json:"order,omitempty"`
	Label           []ProjectItems `json:"label,omitempty"`
	Recent          []RecentItem   `json:"recent,omitempty"`
	Today           []ProjectItems `json:"today,omitempty"`
	SearchCompleted []Task         `json:"searchCompleted,omitempty"`

	Materialized []ViewKind `json:"materialized,omitempty"`
}

func (v ViewSet) IsMaterialized(k ViewKind) bool {
	return slices.Contains(v.Materialized, k)
}

// WithMaterialized returns a copy of v with k marked as loaded.
func (v ViewSet) WithMaterialized(k ViewKind) ViewSet {
	if v.IsMaterialized(k) {
		return v
	}
	v.Materialized = append(slices.Clone(v.Materialized), k)
	return v
}

// Selection is the filter set used to compute the today aggregate.
type Selection struct {
	Todo     bool   `json:"todo"`
	Ledger   bool   `json:"ledger"`
	Note     bool   `json:"note"`
	Timezone string `json:"timezone,omitempty"`
}

func (s Selection) Types() []ProjectType {
	var out []ProjectType
	if s.Todo {
		out = append(out, ProjectTypeTodo)
	}
	if s.Ledger {
		out = append(out, ProjectTypeLedger)
	}
	if s.Note {
		out = append(out, ProjectTypeNote)
	}
	return out
}

// Session is the exportable client state; it is what the CLI persists between invocations.
type Session struct {
	Collections  []TaskCollection `json:"collections"`
	NoteTrees    []NoteTree       `json:"noteTrees"`
	Completed    []CompletedPage  `json:"completed"`
	Projects     *Projects        `json:"projects,omitempty"`
	Views        ViewSet          `json:"views"`
	Selection    Selection        `json:"selection"`
	SelectedTask *Task            `json:"selectedTask,omitempty"`
	Contents     []TaskContents   `json:"contents,omitempty"`

	ProjectsRevision string `json:"projectsRevision,omitempty"`
}

// TaskContents are the cached content blocks of one task.
type TaskContents struct {
	TaskID   int64     `json:"taskId"`
	Contents []Content `json:"contents"`
}
