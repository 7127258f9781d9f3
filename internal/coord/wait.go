package coord

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"
)

// Backoff bounds a polling wait. The delay starts at InitialWait and doubles
// after every failed attempt, with uniform jitter in [0.8, 1.2] of the
// computed delay. The budget is an attempt count, not a wall-clock deadline.
type Backoff struct {
	MaxAttempts int
	InitialWait time.Duration
}

// DefaultBackoff matches the workflow agents' handshake settings.
var DefaultBackoff = Backoff{MaxAttempts: 5, InitialWait: time.Second}

// WaitFor polls the document until predicate returns true, sleeping with
// exponential backoff between attempts. The predicate is evaluated exactly
// MaxAttempts times before a TimeoutError is returned. There is no push
// mechanism; this is the only way a downstream agent learns that upstream
// output is ready. Context cancellation interrupts the sleep.
func (p *Participant) WaitFor(ctx context.Context, predicate func(*Document) bool, b Backoff) error {
	if b.MaxAttempts <= 0 {
		b = DefaultBackoff
	}

	wait := b.InitialWait
	for attempt := 1; attempt <= b.MaxAttempts; attempt++ {
		doc, err := p.store.Read()
		if err != nil {
			return err
		}
		if predicate(doc) {
			return nil
		}

		// Jitter avoids thundering-herd wakeups when several agents poll
		// the same document.
		jitter := 0.8 + rand.Float64()*0.4
		sleep := time.Duration(float64(wait) * jitter)
		slog.Debug("waiting for condition", "agent", p.name, "attempt", attempt, "sleep", sleep)

		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			return ctx.Err()
		}

		wait *= 2
	}

	return &TimeoutError{Attempts: b.MaxAttempts}
}
