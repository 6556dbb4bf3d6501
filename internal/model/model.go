package model

import "time"

type TaskStatus string

const (
	TaskStatusNone       TaskStatus = ""
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusNextToDo   TaskStatus = "NEXT_TO_DO"
	TaskStatusReady      TaskStatus = "READY"
	TaskStatusOnHold     TaskStatus = "ON_HOLD"
)

// ParseTaskStatus accepts the wire names plus the lowercase/dashed forms used on the command line.
func ParseTaskStatus(s string) (TaskStatus, bool) {
	switch s {
	case "", "none":
		return TaskStatusNone, true
	case "IN_PROGRESS", "in-progress":
		return TaskStatusInProgress, true
	case "NEXT_TO_DO", "next-to-do", "next":
		return TaskStatusNextToDo, true
	case "READY", "ready":
		return TaskStatusReady, true
	case "ON_HOLD", "on-hold":
		return TaskStatusOnHold, true
	default:
		return "", false
	}
}

type ProjectType string

const (
	ProjectTypeTodo   ProjectType = "TODO"
	ProjectTypeNote   ProjectType = "NOTE"
	ProjectTypeLedger ProjectType = "LEDGER"
)

type ContentType string

const (
	ContentTypeTask        ContentType = "TASK"
	ContentTypeNote        ContentType = "NOTE"
	ContentTypeTransaction ContentType = "TRANSACTION"
	ContentTypeProject     ContentType = "PROJECT"
)

type User struct {
	Name   string `json:"name"`
	Alias  string `json:"alias,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

type ReminderSetting struct {
	Date   string `json:"date,omitempty"`
	Time   string `json:"time,omitempty"`
	Before int    `json:"before,omitempty"`
}

type Task struct {
	ID             int64            `json:"id"`
	ProjectID      int64            `json:"projectId"`
	Name           string           `json:"name"`
	Owner          User             `json:"owner"`
	Status         TaskStatus       `json:"status,omitempty"`
	Assignees      []User           `json:"assignees,omitempty"`
	Labels         []int64          `json:"labels,omitempty"`
	DueDate        string           `json:"dueDate,omitempty"` // YYYY-MM-DD
	DueTime        string           `json:"dueTime,omitempty"` // HH:MM
	Duration       int              `json:"duration,omitempty"`
	RecurrenceRule string           `json:"recurrenceRule,omitempty"`
	Timezone       string           `json:"timezone,omitempty"`
	Reminder       *ReminderSetting `json:"reminderSetting,omitempty"`
	SubTasks       []Task           `json:"subTasks"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

// HasAssignee reports whether name is one of the task's assignees.
func (t Task) HasAssignee(name string) bool {
	for _, u := range t.Assignees {
		if u.Name == name {
			return true
		}
	}
	return false
}

type Note struct {
	ID        int64     `json:"id"`
	ProjectID int64     `json:"projectId"`
	Name      string    `json:"name"`
	Owner     User      `json:"owner"`
	Labels    []int64   `json:"labels,omitempty"`
	SubNotes  []Note    `json:"subNotes"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Project struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	ProjectType ProjectType `json:"projectType"`
	Owner       User        `json:"owner"`
	Shared      bool        `json:"shared"`
	SubProjects []Project   `json:"subProjects"`
}

type ProjectsWithOwner struct {
	Owner    User      `json:"owner"`
	Projects []Project `json:"projects"`
}

type Projects struct {
	Owned  []Project           `json:"owned"`
	Shared []ProjectsWithOwner `json:"shared"`
}

// Revision is an immutable snapshot of a Content's text.
// Content is nil until the revision body has been fetched.
type Revision struct {
	ID        int64     `json:"id"`
	Content   *string   `json:"content,omitempty"`
	User      User      `json:"user"`
	CreatedAt time.Time `json:"createdAt"`
}

type Content struct {
	ID        int64      `json:"id"`
	Text      string     `json:"text"`
	Owner     User       `json:"owner"`
	Revisions []Revision `json:"revisions"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// ProjectItems is one group of the label and today aggregates.
type ProjectItems struct {
	Date      string `json:"date,omitempty"`
	DayOfWeek int    `json:"dayOfWeek,omitempty"`
	Tasks     []Task `json:"tasks"`
	Notes     []Note `json:"notes"`
}

type RecentItem struct {
	ID          int64       `json:"id"`
	ContentType ContentType `json:"contentType"`
	Name        string      `json:"name"`
	ProjectID   int64       `json:"projectId"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

type SharableLink struct {
	Link       string    `json:"link"`
	CreatedAt  time.Time `json:"createdAt"`
	Expiration time.Time `json:"expirationTime,omitempty"`
}

type Sharables struct {
	Users []User         `json:"users"`
	Links []SharableLink `json:"links"`
}
