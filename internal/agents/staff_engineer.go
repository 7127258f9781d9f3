package agents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mkaravel/synergo/internal/coord"
	"github.com/mkaravel/synergo/internal/llm"
)

const staffEngineerSystem = `You are a Staff Engineer AI agent. Your job is to:
1. Question the Product Owner's specifications from a technical perspective
2. Identify missing technical requirements and edge cases
3. Define system architecture and technology choices
4. Estimate complexity and technical risks
5. Challenge assumptions with engineering expertise

You work with other AI agents. Be direct and technical.
Focus on architecture, scalability, and implementation details.`

// StaffEngineer questions the product owner's specifications and publishes a
// technical architecture. It blocks until the product owner's analysis is in
// the document.
type StaffEngineer struct {
	part *coord.Participant
	opts Options
}

func NewStaffEngineer(opts Options) *StaffEngineer {
	return &StaffEngineer{
		part: coord.NewParticipant(opts.Store, StaffEngineerName),
		opts: opts,
	}
}

func (a *StaffEngineer) Name() string {
	return StaffEngineerName
}

func (a *StaffEngineer) Run(ctx context.Context) error {
	if err := a.part.UpdateStatus(coord.StatusInitializing, ""); err != nil {
		return err
	}

	slog.Info("waiting for product owner analysis", "agent", a.Name())
	err := a.part.WaitFor(ctx, func(doc *coord.Document) bool {
		po := doc.Agents[ProductOwnerName]
		return po != nil && po.Status == coord.StatusCompleted && doc.ProductOwnerAnalysis != nil
	}, a.opts.Backoff)
	if err != nil {
		a.fail(err)
		return fmt.Errorf("wait for product owner analysis: %w", err)
	}

	doc, err := a.part.Read()
	if err != nil {
		a.fail(err)
		return err
	}
	task := doc.Task
	poAnalysis := doc.ProductOwnerAnalysis

	slog.Info("questioning specifications", "agent", a.Name(), "task", task,
		"specifications", len(poAnalysis.Specifications))
	analysis, apiUsed := a.architect(ctx, task, poAnalysis)

	doc, err = a.part.Read()
	if err != nil {
		a.fail(err)
		return err
	}
	approach := "AI-driven architecture analysis"
	if !apiUsed {
		approach = "Fallback technical analysis"
	}
	doc.StaffEngineerAnalysis = analysis
	doc.StaffEngineerReasoning = &coord.Reasoning{
		Approach:  approach,
		AgentType: "Staff Engineer AI Agent",
		Focus: []string{
			"Questioned Product Owner specifications from technical perspective",
			"Defined system architecture and component breakdown",
			"Identified technical risks and complexity factors",
			"Prepared detailed implementation phases",
		},
	}
	if err := a.part.Write(doc); err != nil {
		a.fail(err)
		return err
	}

	err = a.part.Send(ProductOwnerName, "technical_questions", fmt.Sprintf(
		"I've reviewed your specifications. I need clarification on these technical aspects:\n%s",
		bulletList(analysis.TechnicalQuestions)))
	if err != nil {
		a.fail(err)
		return err
	}
	err = a.part.Send(EngineeringManagerName, "architecture_ready", fmt.Sprintf(
		"I've defined the technical architecture for '%s' with %d implementation phases. Ready for coordination.",
		task, len(analysis.ImplementationPhases)))
	if err != nil {
		a.fail(err)
		return err
	}

	if err := a.part.UpdateStatus(coord.StatusCompleted, "Technical architecture and analysis completed"); err != nil {
		return err
	}

	slog.Info("technical analysis completed", "agent", a.Name(),
		"phases", len(analysis.ImplementationPhases),
		"effort", analysis.ComplexityAnalysis.EstimatedEffort)
	logPeerStatuses(a.part, a.Name())
	return nil
}

func (a *StaffEngineer) fail(cause error) {
	if err := a.part.UpdateStatus(coord.StatusError, cause.Error()); err != nil {
		slog.Warn("error status update failed", "agent", a.Name(), "error", err)
	}
}

func (a *StaffEngineer) architect(ctx context.Context, task string, po *coord.ProductOwnerAnalysis) (*coord.StaffEngineerAnalysis, bool) {
	if err := a.part.UpdateStatus(coord.StatusWorking, "Questioning specifications and defining architecture"); err != nil {
		slog.Warn("status update failed", "agent", a.Name(), "error", err)
	}

	agentContext, err := inboxContext(a.part, "Messages from other agents:")
	if err != nil {
		slog.Warn("inbox read failed", "agent", a.Name(), "error", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\nStack: %s\n\n", task, a.opts.Stack)
	if agentContext != "" {
		b.WriteString(agentContext)
		b.WriteString("\n")
	}
	b.WriteString("Product Owner Analysis:\nQuestions:\n")
	b.WriteString(bulletList(po.Questions))
	b.WriteString("\nAssumptions:\n")
	b.WriteString(bulletList(po.Assumptions))
	b.WriteString("\nSpecifications:\n")
	b.WriteString(bulletList(po.Specifications))
	fmt.Fprintf(&b, "\nBusiness Context: %s\n\n", po.BusinessContext)
	b.WriteString(`As a Staff Engineer AI, you need to:

1. TECHNICAL_QUESTIONS: Ask 5-7 technical questions about the PO's specifications
2. ARCHITECTURE: Define the system architecture (components, data flow, APIs)
3. TECHNOLOGY_DECISIONS: Justify technology choices and alternatives
4. COMPLEXITY_ANALYSIS: Identify technical complexity and risks
5. IMPLEMENTATION_PHASES: Break down into technical implementation phases
6. SCALABILITY_CONCERNS: Address performance and scaling considerations

Format as JSON:
{
  "technical_questions": ["Technical question 1?", "Technical question 2?"],
  "architecture": {
    "components": ["Component 1", "Component 2"],
    "data_flow": "Description of data flow",
    "apis": ["API 1", "API 2"]
  },
  "technology_decisions": ["Decision 1: Justification", "Decision 2: Justification"],
  "complexity_analysis": {
    "high_risk": ["Risk 1", "Risk 2"],
    "estimated_effort": "X weeks/months",
    "technical_debt": ["Debt 1", "Debt 2"]
  },
  "implementation_phases": ["Phase 1: Description", "Phase 2: Description"],
  "scalability_concerns": ["Concern 1", "Concern 2"]
}
`)

	res, err := a.opts.Completer.Complete(ctx, staffEngineerSystem, b.String())
	if err != nil {
		slog.Warn("completion failed, using fallback analysis", "agent", a.Name(), "error", err)
		return fallbackStaffEngineerAnalysis(a.opts.Stack), false
	}
	a.opts.recordUsage(res)

	analysis := fallbackStaffEngineerAnalysis(a.opts.Stack)
	llm.DecodeInto(res.Text, analysis)
	return analysis, true
}

func fallbackStaffEngineerAnalysis(stack string) *coord.StaffEngineerAnalysis {
	return &coord.StaffEngineerAnalysis{
		TechnicalQuestions: []string{
			"What is the expected data volume?",
			"How many concurrent users?",
		},
		Architecture: coord.Architecture{
			Components: []string{"Backend API", "Frontend App", "Database"},
			DataFlow:   "Standard client-server architecture",
			APIs:       []string{"REST API endpoints"},
		},
		TechnologyDecisions: []string{fmt.Sprintf("Using %s as specified", stack)},
		ComplexityAnalysis: coord.ComplexityAnalysis{
			HighRisk:        []string{"Integration complexity"},
			EstimatedEffort: "2-4 weeks",
			TechnicalDebt:   []string{"Potential performance bottlenecks"},
		},
		ImplementationPhases: []string{"Phase 1: Backend setup", "Phase 2: Frontend implementation"},
		ScalabilityConcerns:  []string{"Database performance under load"},
	}
}
