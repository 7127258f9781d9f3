// Package workflow drives one multi-agent run end to end: it initializes the
// shared document, executes the agents in sequence, and records the outcome.
package workflow

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mkaravel/synergo/internal/agents"
	"github.com/mkaravel/synergo/internal/bus"
	"github.com/mkaravel/synergo/internal/config"
	"github.com/mkaravel/synergo/internal/coord"
	"github.com/mkaravel/synergo/internal/ledger"
	"github.com/mkaravel/synergo/internal/llm"
)

// Runner owns the wiring for one or more workflow runs. Ledger and Events
// are optional; a nil value disables that concern.
type Runner struct {
	Config    config.WorkflowConfig
	Store     *coord.Store
	Completer llm.Completer
	Ledger    *ledger.Ledger
	Events    *bus.Client
}

// Outcome summarizes a finished run.
type Outcome struct {
	RunID    string
	Status   string
	Failed   []string
	Document *coord.Document
}

// Run executes the full agent sequence for task. A failing agent is logged
// and skipped; the run continues so later agents can degrade on their own
// timeouts. Only infrastructure failures (document init, final read) return
// an error.
func (r *Runner) Run(ctx context.Context, task string) (*Outcome, error) {
	runID := uuid.NewString()
	log := slog.With("run_id", runID)

	if err := r.Store.Init(coord.NewDocument(task, agents.Roles, r.Config.MaxIterations)); err != nil {
		return nil, err
	}
	log.Info("workflow started", "task", task, "document", r.Store.Path())

	if r.Ledger != nil {
		err := r.Ledger.SaveRun(&ledger.Run{
			ID:           runID,
			Task:         task,
			Status:       ledger.RunRunning,
			DocumentPath: r.Store.Path(),
		})
		if err != nil {
			log.Warn("run not recorded", "error", err)
		}
	}
	r.publish(bus.Event{Type: "run_started", RunID: runID, Detail: task})

	opts := agents.Options{
		Store:     r.Store,
		Completer: r.Completer,
		Stack:     r.Config.Stack,
		Backoff: coord.Backoff{
			MaxAttempts: r.Config.MaxAttempts,
			InitialWait: r.Config.InitialWait,
		},
		OnUsage: r.usageRecorder(runID),
	}

	var failed []string
	for _, agent := range []agents.Agent{
		agents.NewProductOwner(opts),
		agents.NewStaffEngineer(opts),
		agents.NewEngineeringManager(opts),
	} {
		r.publish(bus.Event{Type: "agent_started", RunID: runID, Agent: agent.Name()})
		if err := agent.Run(ctx); err != nil {
			log.Error("agent failed", "agent", agent.Name(), "error", err)
			failed = append(failed, agent.Name())
			r.publish(bus.Event{Type: "agent_failed", RunID: runID, Agent: agent.Name(), Detail: err.Error()})
			continue
		}
		r.publish(bus.Event{Type: "agent_completed", RunID: runID, Agent: agent.Name()})
	}

	status := ledger.RunCompleted
	switch {
	case len(failed) == len(agents.Roles):
		status = ledger.RunFailed
	case len(failed) > 0:
		status = ledger.RunPartial
	}

	if r.Ledger != nil {
		if err := r.Ledger.FinishRun(runID, status); err != nil {
			log.Warn("run outcome not recorded", "error", err)
		}
	}
	r.publish(bus.Event{Type: "run_finished", RunID: runID, Detail: status})

	doc, err := r.Store.Read()
	if err != nil {
		return nil, err
	}
	log.Info("workflow finished", "status", status, "workflow_state", doc.WorkflowState)

	return &Outcome{
		RunID:    runID,
		Status:   status,
		Failed:   failed,
		Document: doc,
	}, nil
}

func (r *Runner) publish(ev bus.Event) {
	if r.Events == nil {
		return
	}
	if err := r.Events.PublishEvent(ev); err != nil {
		slog.Warn("event not published", "type", ev.Type, "error", err)
	}
}

func (r *Runner) usageRecorder(runID string) agents.UsageFunc {
	if r.Ledger == nil {
		return nil
	}
	return func(res llm.Result) {
		err := r.Ledger.RecordUsage(&ledger.Usage{
			Scope:        runID,
			Model:        res.Model,
			InputTokens:  res.InputTokens,
			OutputTokens: res.OutputTokens,
			Cost:         llm.EstimateCost(res.Model, res.InputTokens, res.OutputTokens),
		})
		if err != nil {
			slog.Warn("usage not recorded", "run_id", runID, "error", err)
		}
	}
}
