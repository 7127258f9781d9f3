package agents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mkaravel/synergo/internal/coord"
	"github.com/mkaravel/synergo/internal/llm"
)

const engineeringManagerSystem = `You are an Engineering Manager AI agent. Your job is to:
1. Facilitate collaboration between Product Owner and Staff Engineer agents
2. Resolve conflicts and fill gaps between business specs and technical architecture
3. Generate specific, actionable prompts for automated implementation of the solution
4. Coordinate the implementation process and ensure quality

You work with other AI agents and generate prompts for automated development.
Focus on creating clear, executable prompts that a coding agent can follow.`

const noConflicts = "No major conflicts identified"

// EngineeringManager waits for both upstream analyses, reconciles them, and
// marks the workflow ready for implementation.
type EngineeringManager struct {
	part *coord.Participant
	opts Options
}

func NewEngineeringManager(opts Options) *EngineeringManager {
	return &EngineeringManager{
		part: coord.NewParticipant(opts.Store, EngineeringManagerName),
		opts: opts,
	}
}

func (a *EngineeringManager) Name() string {
	return EngineeringManagerName
}

func (a *EngineeringManager) Run(ctx context.Context) error {
	if err := a.part.UpdateStatus(coord.StatusInitializing, ""); err != nil {
		return err
	}

	slog.Info("waiting for upstream analyses", "agent", a.Name())
	err := a.part.WaitFor(ctx, func(doc *coord.Document) bool {
		po := doc.Agents[ProductOwnerName]
		se := doc.Agents[StaffEngineerName]
		return po != nil && po.Status == coord.StatusCompleted &&
			se != nil && se.Status == coord.StatusCompleted &&
			doc.ProductOwnerAnalysis != nil && doc.StaffEngineerAnalysis != nil
	}, a.opts.Backoff)
	if err != nil {
		a.fail(err)
		return fmt.Errorf("wait for upstream analyses: %w", err)
	}

	doc, err := a.part.Read()
	if err != nil {
		a.fail(err)
		return err
	}
	task := doc.Task

	slog.Info("coordinating analyses", "agent", a.Name(), "task", task,
		"specifications", len(doc.ProductOwnerAnalysis.Specifications),
		"phases", len(doc.StaffEngineerAnalysis.ImplementationPhases))
	coordination, apiUsed := a.coordinate(ctx, task, doc.ProductOwnerAnalysis, doc.StaffEngineerAnalysis)

	if err := a.notifyAgents(task, coordination); err != nil {
		a.fail(err)
		return err
	}

	doc, err = a.part.Read()
	if err != nil {
		a.fail(err)
		return err
	}
	approach := "AI-driven coordination and prompt generation"
	if !apiUsed {
		approach = "Fallback coordination"
	}
	doc.EngineeringManagerCoordination = coordination
	doc.EngineeringManagerReasoning = &coord.Reasoning{
		Approach:  approach,
		AgentType: "Engineering Manager AI Agent",
		Focus: []string{
			"Facilitated collaboration between Product Owner and Staff Engineer",
			"Resolved conflicts between business specs and technical architecture",
			"Generated implementation prompts for automated development",
			"Created quality gates and execution timeline",
		},
	}
	doc.WorkflowState = coord.StateReadyForImplementation
	if err := a.part.Write(doc); err != nil {
		a.fail(err)
		return err
	}

	if err := a.part.UpdateStatus(coord.StatusCompleted, "Coordination completed, implementation prompts generated"); err != nil {
		return err
	}

	slog.Info("coordination completed", "agent", a.Name(),
		"conflicts", len(coordination.Coordination.ConflictsIdentified),
		"prompts", len(coordination.ImplementationPrompts),
		"priority", coordination.PriorityAssessment.PriorityLevel)
	logPeerStatuses(a.part, a.Name())
	return nil
}

func (a *EngineeringManager) fail(cause error) {
	if err := a.part.UpdateStatus(coord.StatusError, cause.Error()); err != nil {
		slog.Warn("error status update failed", "agent", a.Name(), "error", err)
	}
}

// notifyAgents tells the upstream agents whether conflicts were found or the
// plan is clean.
func (a *EngineeringManager) notifyAgents(task string, c *coord.ManagerCoordination) error {
	conflicts := c.Coordination.ConflictsIdentified
	resolutions := c.Coordination.Resolutions

	if len(conflicts) > 0 && conflicts[0] != noConflicts {
		err := a.part.Send(ProductOwnerName, "coordination_feedback", fmt.Sprintf(
			"Identified conflicts: %s. Resolutions: %s",
			strings.Join(head(conflicts, 2), "; "), strings.Join(head(resolutions, 2), "; ")))
		if err != nil {
			return err
		}
		return a.part.Send(StaffEngineerName, "coordination_feedback", fmt.Sprintf(
			"Technical conflicts resolved: %s. Ready for implementation.",
			strings.Join(head(resolutions, 2), "; ")))
	}

	err := a.part.Send(ProductOwnerName, "implementation_ready", fmt.Sprintf(
		"No conflicts identified. Generated %d implementation prompts.",
		len(c.ImplementationPrompts)))
	if err != nil {
		return err
	}
	return a.part.Send(StaffEngineerName, "implementation_ready", fmt.Sprintf(
		"Architecture validated. %d execution steps planned.",
		len(c.ExecutionPlan)))
}

func head(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func (a *EngineeringManager) coordinate(ctx context.Context, task string, po *coord.ProductOwnerAnalysis, se *coord.StaffEngineerAnalysis) (*coord.ManagerCoordination, bool) {
	if err := a.part.UpdateStatus(coord.StatusWorking, "Coordinating agents and generating implementation prompts"); err != nil {
		slog.Warn("status update failed", "agent", a.Name(), "error", err)
	}

	agentContext, err := inboxContext(a.part, "Messages from other agents:")
	if err != nil {
		slog.Warn("inbox read failed", "agent", a.Name(), "error", err)
	}

	effort := se.ComplexityAnalysis.EstimatedEffort
	if effort == "" {
		effort = "2-4 weeks"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\nStack: %s\n\n", task, a.opts.Stack)
	if agentContext != "" {
		b.WriteString(agentContext)
		b.WriteString("\n")
	}
	b.WriteString("Product Owner Analysis:\nSpecifications:\n")
	b.WriteString(bulletList(po.Specifications))
	b.WriteString("\nQuestions from PO:\n")
	b.WriteString(bulletList(po.Questions))
	b.WriteString("\nStaff Engineer Analysis:\nTechnical Questions:\n")
	b.WriteString(bulletList(se.TechnicalQuestions))
	b.WriteString("\nImplementation Phases:\n")
	b.WriteString(bulletList(se.ImplementationPhases))
	fmt.Fprintf(&b, "\nArchitecture components: %s\n", strings.Join(se.Architecture.Components, ", "))
	fmt.Fprintf(&b, "Estimated Effort: %s\n\n", effort)
	b.WriteString(`As an Engineering Manager AI, you need to:

1. COORDINATION: Identify conflicts between PO specs and technical architecture
2. RESOLUTION: Provide solutions to bridge any gaps
3. IMPLEMENTATION_PROMPTS: Generate 3-5 specific prompts for a coding agent to implement this
4. EXECUTION_PLAN: Create a step-by-step execution plan
5. QUALITY_GATES: Define validation checkpoints
6. PRIORITY_ASSESSMENT: Evaluate project priority and resource allocation

Format as JSON:
{
  "coordination": {
    "conflicts_identified": ["Conflict 1", "Conflict 2"],
    "resolutions": ["Resolution 1", "Resolution 2"]
  },
  "implementation_prompts": [
    "Prompt 1: Create the database schema for...",
    "Prompt 2: Implement the backend API endpoints for...",
    "Prompt 3: Build the frontend components for..."
  ],
  "execution_plan": [
    "Step 1: Execute first implementation prompt",
    "Step 2: Execute second implementation prompt",
    "Step 3: Integration and testing"
  ],
  "quality_gates": [
    "Gate 1: Database schema validated",
    "Gate 2: API endpoints tested",
    "Gate 3: Frontend integration working"
  ],
  "priority_assessment": {
    "priority_level": "high/medium/low",
    "business_impact": "Description of business impact",
    "recommended_timeline": "X weeks"
  }
}
`)

	res, err := a.opts.Completer.Complete(ctx, engineeringManagerSystem, b.String())
	if err != nil {
		slog.Warn("completion failed, using fallback coordination", "agent", a.Name(), "error", err)
		return fallbackCoordination(task, effort), false
	}
	a.opts.recordUsage(res)

	coordination := fallbackCoordination(task, effort)
	llm.DecodeInto(res.Text, coordination)
	return coordination, true
}

func fallbackCoordination(task, effort string) *coord.ManagerCoordination {
	return &coord.ManagerCoordination{
		Coordination: coord.CoordinationNotes{
			ConflictsIdentified: []string{noConflicts},
			Resolutions:         []string{"Proceed with implementation as planned"},
		},
		ImplementationPrompts: []string{
			fmt.Sprintf("Create database schema for %s", task),
			fmt.Sprintf("Implement backend API for %s", task),
			fmt.Sprintf("Build frontend components for %s", task),
		},
		ExecutionPlan: []string{
			"Execute database setup",
			"Implement backend services",
			"Build frontend interface",
			"Integration testing",
		},
		QualityGates: []string{
			"Database schema validated",
			"API endpoints tested",
			"Frontend functionality verified",
		},
		PriorityAssessment: coord.PriorityAssessment{
			PriorityLevel:       "medium",
			BusinessImpact:      fmt.Sprintf("Implementation of %s will improve user workflow", task),
			RecommendedTimeline: effort,
		},
	}
}
