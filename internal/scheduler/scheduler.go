// Package scheduler launches scheduled workflow runs from the ledger's task
// table.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/mkaravel/synergo/internal/bus"
	"github.com/mkaravel/synergo/internal/config"
	"github.com/mkaravel/synergo/internal/ledger"
	"github.com/mkaravel/synergo/internal/schedule"
	"github.com/mkaravel/synergo/internal/workflow"
)

type Scheduler struct {
	ledger       *ledger.Ledger
	runner       *workflow.Runner
	events       *bus.Client
	pollInterval time.Duration
}

func New(l *ledger.Ledger, runner *workflow.Runner, events *bus.Client, cfg config.SchedulerConfig) *Scheduler {
	return &Scheduler{
		ledger:       l,
		runner:       runner,
		events:       events,
		pollInterval: cfg.PollInterval,
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	if s.pollInterval == 0 {
		s.pollInterval = 30 * time.Second
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	slog.Info("scheduler started", "poll_interval", s.pollInterval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

func (s *Scheduler) poll(ctx context.Context) {
	tasks, err := s.ledger.DueTasks(time.Now())
	if err != nil {
		slog.Error("failed to get due tasks", "error", err)
		return
	}

	for _, task := range tasks {
		s.execute(ctx, task)
	}
}

func (s *Scheduler) execute(ctx context.Context, task ledger.ScheduledTask) {
	slog.Info("launching scheduled workflow", "id", task.ID, "name", task.Name)

	var lastError string
	out, err := s.runner.Run(ctx, task.Task)
	if err != nil {
		lastError = err.Error()
		slog.Error("scheduled workflow failed", "id", task.ID, "error", err)
	} else {
		slog.Info("scheduled workflow finished", "id", task.ID, "run_id", out.RunID, "status", out.Status)
	}

	nextRun := schedule.NextRun(task.Schedule, time.Now())
	if err := s.ledger.MarkTaskRun(task.ID, nextRun, lastError); err != nil {
		slog.Error("failed to update task run", "id", task.ID, "error", err)
	}
	if nextRun == nil {
		slog.Info("no next run, task retired", "id", task.ID, "name", task.Name)
	}

	if s.events != nil {
		ev := bus.Event{Type: "task_executed", Agent: task.Name, Detail: task.ID}
		if out != nil {
			ev.RunID = out.RunID
		}
		if err := s.events.PublishEvent(ev); err != nil {
			slog.Warn("task event not published", "id", task.ID, "error", err)
		}
	}
}
