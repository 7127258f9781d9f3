package ledger

import (
	"fmt"
	"time"
)

// Usage is one recorded completion call, scoped to a workflow run ID or a
// chat project name.
type Usage struct {
	ID           int64     `json:"id"`
	Scope        string    `json:"scope"`
	Model        string    `json:"model"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	Cost         float64   `json:"cost"`
	CreatedAt    time.Time `json:"created_at"`
}

func (l *Ledger) RecordUsage(u *Usage) error {
	result, err := l.db.Exec(`
		INSERT INTO token_usage (scope, model, input_tokens, output_tokens, cost)
		VALUES (?, ?, ?, ?, ?)`,
		u.Scope, u.Model, u.InputTokens, u.OutputTokens, u.Cost)
	if err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	u.ID, _ = result.LastInsertId()
	return nil
}

// UsageTotals aggregates recorded usage, per model.
type UsageTotals struct {
	Model        string  `json:"model"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	Cost         float64 `json:"cost"`
	Calls        int     `json:"calls"`
}

func (l *Ledger) TotalsByModel() ([]UsageTotals, error) {
	rows, err := l.db.Query(`
		SELECT model, SUM(input_tokens), SUM(output_tokens), SUM(cost), COUNT(*)
		FROM token_usage
		GROUP BY model
		ORDER BY model`)
	if err != nil {
		return nil, fmt.Errorf("usage totals: %w", err)
	}
	defer rows.Close()

	var totals []UsageTotals
	for rows.Next() {
		var t UsageTotals
		if err := rows.Scan(&t.Model, &t.InputTokens, &t.OutputTokens, &t.Cost, &t.Calls); err != nil {
			return nil, fmt.Errorf("scan usage totals: %w", err)
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// ScopeTotals aggregates usage for one scope across all models.
func (l *Ledger) ScopeTotals(scope string) (UsageTotals, error) {
	var t UsageTotals
	err := l.db.QueryRow(`
		SELECT COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0),
		       COALESCE(SUM(cost), 0), COUNT(*)
		FROM token_usage
		WHERE scope = ?`, scope).
		Scan(&t.InputTokens, &t.OutputTokens, &t.Cost, &t.Calls)
	if err != nil {
		return UsageTotals{}, fmt.Errorf("scope totals: %w", err)
	}
	return t, nil
}

func (l *Ledger) RecentUsage(limit int) ([]Usage, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := l.db.Query(`
		SELECT id, scope, model, input_tokens, output_tokens, cost, created_at
		FROM token_usage
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent usage: %w", err)
	}
	defer rows.Close()

	var usage []Usage
	for rows.Next() {
		var u Usage
		if err := rows.Scan(&u.ID, &u.Scope, &u.Model, &u.InputTokens, &u.OutputTokens, &u.Cost, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan usage: %w", err)
		}
		usage = append(usage, u)
	}
	return usage, rows.Err()
}
