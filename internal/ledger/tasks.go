package ledger

import (
	"database/sql"
	"fmt"
	"time"
)

// ScheduledTask is a recurring or one-shot workflow launch.
type ScheduledTask struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Schedule  string     `json:"schedule"` // schedule JSON, see internal/schedule
	Task      string     `json:"task"`
	Status    string     `json:"status"` // active, paused, done
	NextRunAt *time.Time `json:"next_run_at,omitempty"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	LastError string     `json:"last_error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func (l *Ledger) SaveTask(t *ScheduledTask) error {
	_, err := l.db.Exec(`
		INSERT INTO scheduled_tasks (id, name, schedule, task, status, next_run_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			schedule = excluded.schedule,
			task = excluded.task,
			status = excluded.status,
			next_run_at = excluded.next_run_at`,
		t.ID, t.Name, t.Schedule, t.Task, t.Status, t.NextRunAt)
	if err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	return nil
}

func (l *Ledger) GetTask(id string) (*ScheduledTask, error) {
	row := l.db.QueryRow(`
		SELECT id, name, schedule, task, status, next_run_at, last_run_at, last_error, created_at
		FROM scheduled_tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func (l *Ledger) ListTasks() ([]ScheduledTask, error) {
	rows, err := l.db.Query(`
		SELECT id, name, schedule, task, status, next_run_at, last_run_at, last_error, created_at
		FROM scheduled_tasks ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []ScheduledTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// DueTasks returns active tasks whose next run is at or before now.
func (l *Ledger) DueTasks(now time.Time) ([]ScheduledTask, error) {
	rows, err := l.db.Query(`
		SELECT id, name, schedule, task, status, next_run_at, last_run_at, last_error, created_at
		FROM scheduled_tasks
		WHERE status = 'active' AND next_run_at IS NOT NULL AND next_run_at <= ?`, now)
	if err != nil {
		return nil, fmt.Errorf("due tasks: %w", err)
	}
	defer rows.Close()

	var tasks []ScheduledTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan due task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// MarkTaskRun records a launch attempt and reschedules or retires the task.
func (l *Ledger) MarkTaskRun(id string, nextRun *time.Time, runErr string) error {
	status := "active"
	if nextRun == nil {
		status = "done"
	}
	_, err := l.db.Exec(`
		UPDATE scheduled_tasks
		SET last_run_at = CURRENT_TIMESTAMP, last_error = ?, next_run_at = ?, status = ?
		WHERE id = ?`, runErr, nextRun, status, id)
	if err != nil {
		return fmt.Errorf("mark task run: %w", err)
	}
	return nil
}

func (l *Ledger) UpdateTaskStatus(id, status string) error {
	_, err := l.db.Exec(`UPDATE scheduled_tasks SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	return nil
}

func (l *Ledger) DeleteTask(id string) error {
	_, err := l.db.Exec(`DELETE FROM scheduled_tasks WHERE id = ?`, id)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*ScheduledTask, error) {
	t := &ScheduledTask{}
	var nextRun, lastRun sql.NullTime
	var lastError sql.NullString
	err := row.Scan(&t.ID, &t.Name, &t.Schedule, &t.Task, &t.Status, &nextRun, &lastRun, &lastError, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	if nextRun.Valid {
		t.NextRunAt = &nextRun.Time
	}
	if lastRun.Valid {
		t.LastRunAt = &lastRun.Time
	}
	t.LastError = lastError.String
	return t, nil
}
