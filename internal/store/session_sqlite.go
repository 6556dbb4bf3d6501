package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	_ "modernc.org/sqlite"

	"bulletjournal-cli/internal/model"
)

const sessionVersion = 1

var sessionTables = []string{"session_meta", "collections", "note_trees", "completed_pages", "contents"}

func (s Store) sqlitePath() string {
	return filepath.Join(s.Dir, sessionFileName)
}

func (s Store) openSQLite(ctx context.Context) (*sql.DB, error) {
	if err := s.Ensure(); err != nil {
		return nil, err
	}
	// modernc.org/sqlite driver name is "sqlite".
	db, err := sql.Open("sqlite", s.sqlitePath())
	if err != nil {
		return nil, err
	}
	// WAL lets a TUI and a one-shot command share the file.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := migrateSession(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func migrateSession(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS session_meta (
			k TEXT PRIMARY KEY,
			v TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS collections (
			project_id INTEGER PRIMARY KEY,
			revision TEXT NOT NULL,
			json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS note_trees (
			project_id INTEGER PRIMARY KEY,
			revision TEXT NOT NULL,
			json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS completed_pages (
			project_id INTEGER PRIMARY KEY,
			page_no INTEGER NOT NULL,
			json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS contents (
			task_id INTEGER PRIMARY KEY,
			json TEXT NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveSession replaces the stored session in one transaction.
func (s Store) SaveSession(ctx context.Context, sess model.Session) error {
	db, err := s.openSQLite(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, t := range sessionTables {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+t); err != nil {
			return err
		}
	}

	meta := map[string]any{
		"views":     sess.Views,
		"selection": sess.Selection,
	}
	if sess.Projects != nil {
		meta["projects"] = sess.Projects
	}
	if sess.SelectedTask != nil {
		meta["selected_task"] = sess.SelectedTask
	}
	for k, v := range meta {
		b, err := sonic.MarshalString(v)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO session_meta(k, v) VALUES(?, ?)`, k, b); err != nil {
			return err
		}
	}
	plain := map[string]string{
		"version":           strconv.Itoa(sessionVersion),
		"projects_revision": sess.ProjectsRevision,
		"saved_at":          time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range plain {
		if _, err := tx.ExecContext(ctx, `INSERT INTO session_meta(k, v) VALUES(?, ?)`, k, v); err != nil {
			return err
		}
	}

	for _, c := range sess.Collections {
		b, err := sonic.MarshalString(c.Tasks)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO collections(project_id, revision, json) VALUES(?, ?, ?)`, c.ProjectID, c.Revision, b); err != nil {
			return err
		}
	}
	for _, n := range sess.NoteTrees {
		b, err := sonic.MarshalString(n.Notes)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO note_trees(project_id, revision, json) VALUES(?, ?, ?)`, n.ProjectID, n.Revision, b); err != nil {
			return err
		}
	}
	for _, p := range sess.Completed {
		p.Loading = false
		b, err := sonic.MarshalString(p)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO completed_pages(project_id, page_no, json) VALUES(?, ?, ?)`, p.ProjectID, p.PageNo, b); err != nil {
			return err
		}
	}
	for _, c := range sess.Contents {
		b, err := sonic.MarshalString(c.Contents)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO contents(task_id, json) VALUES(?, ?)`, c.TaskID, b); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s Store) LoadSession(ctx context.Context) (model.Session, bool, error) {
	db, err := s.openSQLite(ctx)
	if err != nil {
		return model.Session{}, false, err
	}
	defer db.Close()

	var version string
	err = db.QueryRowContext(ctx, `SELECT v FROM session_meta WHERE k = 'version'`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Session{}, false, nil
	}
	if err != nil {
		return model.Session{}, false, err
	}

	var sess model.Session
	rows, err := db.QueryContext(ctx, `SELECT k, v FROM session_meta`)
	if err != nil {
		return model.Session{}, false, err
	}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			_ = rows.Close()
			return model.Session{}, false, err
		}
		switch k {
		case "views":
			err = sonic.UnmarshalString(v, &sess.Views)
		case "selection":
			err = sonic.UnmarshalString(v, &sess.Selection)
		case "projects":
			var p model.Projects
			if err = sonic.UnmarshalString(v, &p); err == nil {
				sess.Projects = &p
			}
		case "selected_task":
			var t model.Task
			if err = sonic.UnmarshalString(v, &t); err == nil {
				sess.SelectedTask = &t
			}
		case "projects_revision":
			sess.ProjectsRevision = v
		}
		if err != nil {
			_ = rows.Close()
			return model.Session{}, false, err
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return model.Session{}, false, err
	}
	if err := rows.Close(); err != nil {
		return model.Session{}, false, err
	}

	err = scanRows(ctx, db, `SELECT project_id, revision, json FROM collections ORDER BY project_id`, func(r *sql.Rows) error {
		var c model.TaskCollection
		var b string
		if err := r.Scan(&c.ProjectID, &c.Revision, &b); err != nil {
			return err
		}
		if err := sonic.UnmarshalString(b, &c.Tasks); err != nil {
			return err
		}
		sess.Collections = append(sess.Collections, c)
		return nil
	})
	if err != nil {
		return model.Session{}, false, err
	}
	err = scanRows(ctx, db, `SELECT project_id, revision, json FROM note_trees ORDER BY project_id`, func(r *sql.Rows) error {
		var n model.NoteTree
		var b string
		if err := r.Scan(&n.ProjectID, &n.Revision, &b); err != nil {
			return err
		}
		if err := sonic.UnmarshalString(b, &n.Notes); err != nil {
			return err
		}
		sess.NoteTrees = append(sess.NoteTrees, n)
		return nil
	})
	if err != nil {
		return model.Session{}, false, err
	}
	err = scanRows(ctx, db, `SELECT json FROM completed_pages ORDER BY project_id`, func(r *sql.Rows) error {
		var b string
		if err := r.Scan(&b); err != nil {
			return err
		}
		var p model.CompletedPage
		if err := sonic.UnmarshalString(b, &p); err != nil {
			return err
		}
		sess.Completed = append(sess.Completed, p)
		return nil
	})
	if err != nil {
		return model.Session{}, false, err
	}
	err = scanRows(ctx, db, `SELECT task_id, json FROM contents ORDER BY task_id`, func(r *sql.Rows) error {
		var c model.TaskContents
		var b string
		if err := r.Scan(&c.TaskID, &b); err != nil {
			return err
		}
		if err := sonic.UnmarshalString(b, &c.Contents); err != nil {
			return err
		}
		sess.Contents = append(sess.Contents, c)
		return nil
	})
	if err != nil {
		return model.Session{}, false, err
	}
	return sess, true, nil
}

func scanRows(ctx context.Context, db *sql.DB, query string, fn func(*sql.Rows) error) error {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// ClearSession forgets the stored session; the next LoadSession reports nothing saved.
func (s Store) ClearSession(ctx context.Context) error {
	db, err := s.openSQLite(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	for _, t := range sessionTables {
		if _, err := db.ExecContext(ctx, `DELETE FROM `+t); err != nil {
			return err
		}
	}
	return nil
}
