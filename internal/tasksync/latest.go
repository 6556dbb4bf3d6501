package tasksync

import (
	"context"
	"errors"
	"sync"
)

// ErrSuperseded is returned when a newer intent of the same kind started before this one
// could commit. The result was discarded; it is never reported to the Notifier.
var ErrSuperseded = errors.New("superseded by a newer request")

// latest implements latest-wins supersession. Each key carries a generation; starting an
// intent bumps it, and only the holder of the current generation may commit.
type latest struct {
	mu      sync.Mutex
	gens    map[string]uint64
	cancels map[string]context.CancelFunc
}

type ticket struct {
	key    string
	gen    uint64
	cancel context.CancelFunc
}

func newLatest() *latest {
	return &latest{gens: map[string]uint64{}, cancels: map[string]context.CancelFunc{}}
}

// begin starts a new generation for key. A read (abort=true) can be cancelled by whatever
// supersedes it; a write keeps running and only loses the right to commit.
func (l *latest) begin(ctx context.Context, key string, abort bool) (context.Context, ticket) {
	ctx, cancel := context.WithCancel(ctx)
	l.mu.Lock()
	defer l.mu.Unlock()
	if prev, ok := l.cancels[key]; ok {
		prev()
		delete(l.cancels, key)
	}
	l.gens[key]++
	if abort {
		l.cancels[key] = cancel
	}
	return ctx, ticket{key: key, gen: l.gens[key], cancel: cancel}
}

func (l *latest) current(t ticket) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gens[t.key] == t.gen
}

// end releases the ticket's context.
func (l *latest) end(t ticket) {
	t.cancel()
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.gens[t.key] == t.gen {
		delete(l.cancels, t.key)
	}
}
