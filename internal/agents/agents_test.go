package agents

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mkaravel/synergo/internal/coord"
	"github.com/mkaravel/synergo/internal/llm"
)

const testTask = "Implement login with Google"

// fakeCompleter answers by role, keyed on the system prompt. A non-nil err
// fails every call.
type fakeCompleter struct {
	err   error
	calls int
	text  map[string]string
}

func (f *fakeCompleter) Complete(_ context.Context, system, _ string) (llm.Result, error) {
	f.calls++
	if f.err != nil {
		return llm.Result{}, f.err
	}
	for role, text := range f.text {
		if strings.Contains(system, role) {
			return llm.Result{Text: text, Model: "test-model", InputTokens: 10, OutputTokens: 5}, nil
		}
	}
	return llm.Result{Text: "not json at all", Model: "test-model"}, nil
}

const poResponse = `{
  "questions": ["How many users?", "Which identity providers beyond Google?"],
  "assumptions": ["Existing user table"],
  "specifications": ["OAuth flow against Google", "Session issuance on callback"],
  "business_context": "Lowers signup friction"
}`

const seResponse = `{
  "technical_questions": ["Token storage strategy?"],
  "architecture": {
    "components": ["Auth service", "Web frontend"],
    "data_flow": "Browser to auth service to Google",
    "apis": ["POST /auth/google"]
  },
  "technology_decisions": ["Use OAuth2 authorization code flow"],
  "complexity_analysis": {
    "high_risk": ["Token refresh"],
    "estimated_effort": "1-2 weeks",
    "technical_debt": []
  },
  "implementation_phases": ["Phase 1: OAuth flow", "Phase 2: Session handling"],
  "scalability_concerns": ["Callback endpoint throughput"]
}`

const emResponse = `{
  "coordination": {
    "conflicts_identified": ["No major conflicts identified"],
    "resolutions": ["Proceed with implementation as planned"]
  },
  "implementation_prompts": ["Create the users table", "Implement the OAuth callback"],
  "execution_plan": ["Step 1: Schema", "Step 2: Backend", "Step 3: Frontend"],
  "quality_gates": ["Schema validated", "Callback tested"],
  "priority_assessment": {
    "priority_level": "high",
    "business_impact": "Faster onboarding",
    "recommended_timeline": "2 weeks"
  }
}`

func newFake() *fakeCompleter {
	return &fakeCompleter{text: map[string]string{
		"Product Owner AI agent":       poResponse,
		"Staff Engineer AI agent":      seResponse,
		"Engineering Manager AI agent": emResponse,
	}}
}

func newTestStore(t *testing.T) *coord.Store {
	t.Helper()
	store := coord.NewStore(filepath.Join(t.TempDir(), "communication.json"))
	if err := store.Init(coord.NewDocument(testTask, Roles, 10)); err != nil {
		t.Fatalf("init store: %v", err)
	}
	return store
}

func testOptions(store *coord.Store, c llm.Completer) Options {
	return Options{
		Store:     store,
		Completer: c,
		Stack:     "NestJS + NextJS + PostgreSQL",
		Backoff:   coord.Backoff{MaxAttempts: 3, InitialWait: time.Millisecond},
	}
}

func TestProductOwnerRun(t *testing.T) {
	store := newTestStore(t)
	fake := newFake()
	po := NewProductOwner(testOptions(store, fake))

	if err := po.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	doc, err := store.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if doc.Agents[ProductOwnerName].Status != coord.StatusCompleted {
		t.Errorf("expected completed, got %s", doc.Agents[ProductOwnerName].Status)
	}
	if doc.ProductOwnerAnalysis == nil {
		t.Fatal("expected analysis to be published")
	}
	if len(doc.ProductOwnerAnalysis.Questions) != 2 {
		t.Errorf("expected 2 questions, got %d", len(doc.ProductOwnerAnalysis.Questions))
	}
	if doc.ProductOwnerReasoning.Approach != "AI-driven client interrogation" {
		t.Errorf("unexpected approach %q", doc.ProductOwnerReasoning.Approach)
	}

	msg, ok := doc.Messages[StaffEngineerName]["client_interrogation"]
	if !ok {
		t.Fatal("expected client_interrogation message for staff engineer")
	}
	if msg.From != ProductOwnerName {
		t.Errorf("expected message from %s, got %s", ProductOwnerName, msg.From)
	}
	if msg.Read {
		t.Error("message should not be marked read before delivery")
	}
}

func TestProductOwnerFallbackOnAPIError(t *testing.T) {
	store := newTestStore(t)
	fake := &fakeCompleter{err: errors.New("api down")}
	po := NewProductOwner(testOptions(store, fake))

	if err := po.Run(context.Background()); err != nil {
		t.Fatalf("run should degrade, not fail: %v", err)
	}

	doc, _ := store.Read()
	if doc.Agents[ProductOwnerName].Status != coord.StatusCompleted {
		t.Errorf("expected completed, got %s", doc.Agents[ProductOwnerName].Status)
	}
	if doc.ProductOwnerReasoning.Approach != "Fallback analysis" {
		t.Errorf("unexpected approach %q", doc.ProductOwnerReasoning.Approach)
	}
	want := "Implement " + testTask + " with standard features"
	if doc.ProductOwnerAnalysis.Specifications[0] != want {
		t.Errorf("expected fallback spec %q, got %q", want, doc.ProductOwnerAnalysis.Specifications[0])
	}
}

func TestProductOwnerFallbackOnMalformedReply(t *testing.T) {
	store := newTestStore(t)
	fake := &fakeCompleter{text: map[string]string{}} // falls through to non-JSON text
	po := NewProductOwner(testOptions(store, fake))

	if err := po.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	doc, _ := store.Read()
	// the call itself succeeded, only the parse fell back
	if doc.ProductOwnerReasoning.Approach != "AI-driven client interrogation" {
		t.Errorf("unexpected approach %q", doc.ProductOwnerReasoning.Approach)
	}
	if doc.ProductOwnerAnalysis.BusinessContext != "This will improve workflow for "+testTask {
		t.Errorf("expected fallback business context, got %q", doc.ProductOwnerAnalysis.BusinessContext)
	}
}

func TestStaffEngineerTimesOutWithoutProductOwner(t *testing.T) {
	store := newTestStore(t)
	se := NewStaffEngineer(testOptions(store, newFake()))

	err := se.Run(context.Background())
	if err == nil {
		t.Fatal("expected timeout error")
	}
	var te *coord.TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
	if te.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", te.Attempts)
	}

	doc, _ := store.Read()
	if doc.Agents[StaffEngineerName].Status != coord.StatusError {
		t.Errorf("expected error status, got %s", doc.Agents[StaffEngineerName].Status)
	}
}

func TestFullHandshake(t *testing.T) {
	store := newTestStore(t)
	fake := newFake()
	opts := testOptions(store, fake)

	var usage []llm.Result
	opts.OnUsage = func(r llm.Result) { usage = append(usage, r) }

	for _, agent := range []Agent{
		NewProductOwner(opts),
		NewStaffEngineer(opts),
		NewEngineeringManager(opts),
	} {
		if err := agent.Run(context.Background()); err != nil {
			t.Fatalf("%s: %v", agent.Name(), err)
		}
	}

	doc, err := store.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	for _, name := range Roles {
		if doc.Agents[name].Status != coord.StatusCompleted {
			t.Errorf("%s: expected completed, got %s", name, doc.Agents[name].Status)
		}
	}
	if doc.WorkflowState != coord.StateReadyForImplementation {
		t.Errorf("expected workflow state %q, got %q", coord.StateReadyForImplementation, doc.WorkflowState)
	}
	if doc.EngineeringManagerCoordination == nil {
		t.Fatal("expected coordination payload")
	}
	if got := doc.EngineeringManagerCoordination.PriorityAssessment.PriorityLevel; got != "high" {
		t.Errorf("expected high priority, got %q", got)
	}

	// clean plan, so both upstream agents get implementation_ready
	if _, ok := doc.Messages[ProductOwnerName]["implementation_ready"]; !ok {
		t.Error("expected implementation_ready message for product owner")
	}
	if _, ok := doc.Messages[StaffEngineerName]["implementation_ready"]; !ok {
		t.Error("expected implementation_ready message for staff engineer")
	}

	// downstream agents drained their inboxes while building prompts
	if !doc.Messages[StaffEngineerName]["client_interrogation"].Read {
		t.Error("expected staff engineer to have read the interrogation message")
	}
	if !doc.Messages[EngineeringManagerName]["architecture_ready"].Read {
		t.Error("expected manager to have read the architecture message")
	}

	if len(usage) != 3 {
		t.Errorf("expected 3 usage records, got %d", len(usage))
	}
}

func TestEngineeringManagerConflictFeedback(t *testing.T) {
	store := newTestStore(t)
	fake := newFake()
	fake.text["Engineering Manager AI agent"] = `{
  "coordination": {
    "conflicts_identified": ["Spec assumes synchronous flow", "No rate limiting defined"],
    "resolutions": ["Make the callback async", "Add per-IP rate limits"]
  },
  "implementation_prompts": ["Prompt 1"],
  "execution_plan": ["Step 1"],
  "quality_gates": ["Gate 1"],
  "priority_assessment": {"priority_level": "medium", "business_impact": "x", "recommended_timeline": "3 weeks"}
}`
	opts := testOptions(store, fake)

	for _, agent := range []Agent{NewProductOwner(opts), NewStaffEngineer(opts), NewEngineeringManager(opts)} {
		if err := agent.Run(context.Background()); err != nil {
			t.Fatalf("%s: %v", agent.Name(), err)
		}
	}

	doc, _ := store.Read()
	msg, ok := doc.Messages[ProductOwnerName]["coordination_feedback"]
	if !ok {
		t.Fatal("expected coordination_feedback message for product owner")
	}
	if !strings.Contains(msg.Content, "Spec assumes synchronous flow") {
		t.Errorf("expected conflict detail in feedback, got %q", msg.Content)
	}
	if _, ok := doc.Messages[StaffEngineerName]["coordination_feedback"]; !ok {
		t.Error("expected coordination_feedback message for staff engineer")
	}
	if _, ok := doc.Messages[ProductOwnerName]["implementation_ready"]; ok {
		t.Error("did not expect implementation_ready when conflicts were found")
	}
}

func TestPeerStatusesLoggedAtCompletion(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	store := newTestStore(t)
	po := NewProductOwner(testOptions(store, newFake()))
	if err := po.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	logs := buf.String()
	if !strings.Contains(logs, "peer statuses") {
		t.Fatalf("expected peer statuses in logs, got:\n%s", logs)
	}
	for _, peer := range []string{StaffEngineerName, EngineeringManagerName} {
		if !strings.Contains(logs, peer+"=pending") {
			t.Errorf("expected %s=pending in peer status log, got:\n%s", peer, logs)
		}
	}
}
