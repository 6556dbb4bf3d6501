package store

import (
	"context"
	"io"
	"os"

	"bulletjournal-cli/internal/model"
)

const sessionFileName = "session.sqlite"

// Sessions persists the engine's client state between invocations.
type Sessions interface {
	// LoadSession reports false when nothing has been saved yet.
	LoadSession(ctx context.Context) (model.Session, bool, error)
	SaveSession(ctx context.Context, s model.Session) error
	ClearSession(ctx context.Context) error
	io.Closer
}

// Store keeps the session in a SQLite file under Dir.
type Store struct {
	Dir string
}

func (s Store) Ensure() error {
	return os.MkdirAll(s.Dir, 0o755)
}

// Close is a no-op: every call opens and closes its own database handle.
func (s Store) Close() error { return nil }

// Open picks the session backend for cfg.
func Open(cfg Config) Sessions {
	if cfg.Redis != "" {
		return NewRedisSessions(cfg.Redis, cfg.Server)
	}
	return Store{Dir: cfg.Dir}
}

// DefaultSelection is what a fresh session filters the today aggregate by.
func DefaultSelection(tz string) model.Selection {
	return model.Selection{Todo: true, Ledger: true, Timezone: tz}
}
