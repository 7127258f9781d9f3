package ledger

import (
	"database/sql"
	"fmt"
	"time"
)

// Run statuses. A run where some agents failed but the driver kept going
// finishes as "partial".
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunPartial   = "partial"
	RunFailed    = "failed"
)

type Run struct {
	ID           string     `json:"id"`
	Task         string     `json:"task"`
	Status       string     `json:"status"`
	DocumentPath string     `json:"document_path,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

func (l *Ledger) SaveRun(r *Run) error {
	_, err := l.db.Exec(`
		INSERT INTO runs (id, task, status, document_path)
		VALUES (?, ?, ?, ?)`,
		r.ID, r.Task, r.Status, r.DocumentPath)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

func (l *Ledger) FinishRun(id, status string) error {
	_, err := l.db.Exec(`
		UPDATE runs SET status = ?, completed_at = CURRENT_TIMESTAMP
		WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

func (l *Ledger) GetRun(id string) (*Run, error) {
	r := &Run{}
	var docPath sql.NullString
	var completedAt sql.NullTime
	err := l.db.QueryRow(`
		SELECT id, task, status, document_path, started_at, completed_at
		FROM runs WHERE id = ?`, id).
		Scan(&r.ID, &r.Task, &r.Status, &docPath, &r.StartedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	r.DocumentPath = docPath.String
	if completedAt.Valid {
		r.CompletedAt = &completedAt.Time
	}
	return r, nil
}

func (l *Ledger) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.Query(`
		SELECT id, task, status, document_path, started_at, completed_at
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var docPath sql.NullString
		var completedAt sql.NullTime
		if err := rows.Scan(&r.ID, &r.Task, &r.Status, &docPath, &r.StartedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.DocumentPath = docPath.String
		if completedAt.Valid {
			r.CompletedAt = &completedAt.Time
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
