package workflow

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mkaravel/synergo/internal/agents"
	"github.com/mkaravel/synergo/internal/config"
	"github.com/mkaravel/synergo/internal/coord"
	"github.com/mkaravel/synergo/internal/ledger"
	"github.com/mkaravel/synergo/internal/llm"
)

type fakeCompleter struct {
	err   error
	calls int
}

func (f *fakeCompleter) Complete(context.Context, string, string) (llm.Result, error) {
	f.calls++
	if f.err != nil {
		return llm.Result{}, f.err
	}
	// non-JSON text, every agent keeps its fallback payload
	return llm.Result{Text: "plain text reply", Model: "claude-3-haiku-20240307", InputTokens: 20, OutputTokens: 10}, nil
}

func testWorkflowConfig() config.WorkflowConfig {
	return config.WorkflowConfig{
		Stack:         "NestJS + NextJS + PostgreSQL",
		MaxIterations: 10,
		MaxAttempts:   3,
		InitialWait:   time.Millisecond,
	}
}

func TestRunCompletes(t *testing.T) {
	store := coord.NewStore(filepath.Join(t.TempDir(), "communication.json"))
	fake := &fakeCompleter{}
	r := &Runner{
		Config:    testWorkflowConfig(),
		Store:     store,
		Completer: fake,
	}

	out, err := r.Run(context.Background(), "Implement login with Google")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.Status != ledger.RunCompleted {
		t.Errorf("expected status %q, got %q", ledger.RunCompleted, out.Status)
	}
	if len(out.Failed) != 0 {
		t.Errorf("expected no failed agents, got %v", out.Failed)
	}
	if out.RunID == "" {
		t.Error("expected a run ID")
	}
	if out.Document.WorkflowState != coord.StateReadyForImplementation {
		t.Errorf("expected ready_for_implementation, got %q", out.Document.WorkflowState)
	}
	for _, name := range agents.Roles {
		if out.Document.Agents[name].Status != coord.StatusCompleted {
			t.Errorf("%s: expected completed, got %s", name, out.Document.Agents[name].Status)
		}
	}
	if fake.calls != 3 {
		t.Errorf("expected 3 completion calls, got %d", fake.calls)
	}
}

func TestRunDegradesOnCompleterFailure(t *testing.T) {
	store := coord.NewStore(filepath.Join(t.TempDir(), "communication.json"))
	r := &Runner{
		Config:    testWorkflowConfig(),
		Store:     store,
		Completer: &fakeCompleter{err: errors.New("api down")},
	}

	out, err := r.Run(context.Background(), "Implement login with Google")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// every agent falls back to canned output, the run still finishes
	if out.Status != ledger.RunCompleted {
		t.Errorf("expected status %q, got %q", ledger.RunCompleted, out.Status)
	}
	if out.Document.ProductOwnerReasoning.Approach != "Fallback analysis" {
		t.Errorf("expected fallback reasoning, got %q", out.Document.ProductOwnerReasoning.Approach)
	}
	if out.Document.EngineeringManagerCoordination == nil {
		t.Error("expected fallback coordination payload")
	}
}

func TestRunRecordsLedger(t *testing.T) {
	dir := t.TempDir()
	l, err := ledger.Open(filepath.Join(dir, "ledger.db"))
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	defer l.Close()

	store := coord.NewStore(filepath.Join(dir, "communication.json"))
	r := &Runner{
		Config:    testWorkflowConfig(),
		Store:     store,
		Completer: &fakeCompleter{},
		Ledger:    l,
	}

	out, err := r.Run(context.Background(), "Implement login with Google")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	run, err := l.GetRun(out.RunID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if run == nil {
		t.Fatal("expected run record")
	}
	if run.Status != ledger.RunCompleted {
		t.Errorf("expected completed, got %q", run.Status)
	}
	if run.CompletedAt == nil {
		t.Error("expected completed_at to be set")
	}

	totals, err := l.ScopeTotals(out.RunID)
	if err != nil {
		t.Fatalf("scope totals: %v", err)
	}
	if totals.Calls != 3 {
		t.Errorf("expected 3 usage records, got %d", totals.Calls)
	}
	if totals.InputTokens != 60 {
		t.Errorf("expected 60 input tokens, got %d", totals.InputTokens)
	}
}
