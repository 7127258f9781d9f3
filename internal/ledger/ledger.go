// Package ledger persists workflow run history, token usage, and scheduled
// tasks in sqlite. The shared workflow document itself lives in
// internal/coord; the ledger only records what happened.
package ledger

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

type Ledger struct {
	db *sql.DB
}

func Open(path string) (*Ledger, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// Enable WAL mode for concurrent read/write access and set a busy
	// timeout so writers retry instead of immediately returning SQLITE_BUSY.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("exec %s: %w", p, err)
		}
	}

	l := &Ledger{db: db}
	if err := l.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return l, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id            TEXT PRIMARY KEY,
			task          TEXT NOT NULL,
			status        TEXT DEFAULT 'running',
			document_path TEXT,
			started_at    DATETIME DEFAULT CURRENT_TIMESTAMP,
			completed_at  DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,
		`CREATE TABLE IF NOT EXISTS token_usage (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			scope         TEXT NOT NULL,
			model         TEXT NOT NULL,
			input_tokens  INTEGER NOT NULL,
			output_tokens INTEGER NOT NULL,
			cost          REAL NOT NULL,
			created_at    DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_usage_scope ON token_usage(scope, created_at)`,
		`CREATE TABLE IF NOT EXISTS scheduled_tasks (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			schedule    TEXT NOT NULL,
			task        TEXT NOT NULL,
			status      TEXT DEFAULT 'active',
			next_run_at DATETIME,
			last_run_at DATETIME,
			last_error  TEXT,
			created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_next_run ON scheduled_tasks(status, next_run_at)`,
	}

	for _, m := range migrations {
		if _, err := l.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}

	return nil
}
