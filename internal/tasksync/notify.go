package tasksync

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

type Level int

const (
	LevelInfo Level = iota
	LevelError
)

func (l Level) String() string {
	if l == LevelError {
		return "error"
	}
	return "info"
}

// Notice is one user-facing notification. Category names the intent that produced it.
type Notice struct {
	Level    Level
	Category string
	Err      error
}

// String renders the category-prefixed message, e.g. "complete task: 412 Precondition Failed".
func (n Notice) String() string {
	return fmt.Sprintf("%s: %v", n.Category, n.Err)
}

type Notifier interface {
	Notify(Notice)
}

// NotifierFunc adapts a function to a Notifier.
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

// LogNotifier writes notices to a logrus logger.
type LogNotifier struct {
	Log log.FieldLogger
}

func (l LogNotifier) Notify(n Notice) {
	entry := l.Log.WithField("category", n.Category)
	if n.Level == LevelError {
		entry.Error(n.String())
		return
	}
	entry.Info(n.String())
}

// Recorder keeps every notice it receives. The zero value is ready to use.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *Recorder) Notify(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

// Messages returns the rendered notices in order.
func (r *Recorder) Messages() []string {
	notices := r.Notices()
	out := make([]string, 0, len(notices))
	for _, n := range notices {
		out = append(out, n.String())
	}
	return out
}
