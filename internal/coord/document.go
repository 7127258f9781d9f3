package coord

import "time"

// Status is an agent's lifecycle state within a workflow run.
type Status string

const (
	StatusPending      Status = "pending"
	StatusInitializing Status = "initializing"
	StatusWorking      Status = "working"
	StatusCompleted    Status = "completed"
	StatusError        Status = "error"
)

// Terminal reports whether the status is a final state for the run.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// WorkflowState values. Informational only; nothing enforces transitions.
const (
	StateInitialized            = "initialized"
	StateReadyForImplementation = "ready_for_implementation"
)

// AgentRecord is the per-agent status entry in the shared document.
type AgentRecord struct {
	Status     Status    `json:"status"`
	Message    string    `json:"message,omitempty"`
	LastUpdate time.Time `json:"last_update,omitzero"`
}

// Message is an addressed note left for another agent. Once Read is set it is
// never cleared, and messages are never deleted.
type Message struct {
	Content   string    `json:"content"`
	From      string    `json:"from"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
}

// Document is the single shared artifact coordinating one workflow run. It is
// mutated whole-document at a time; there is no field-level update path.
type Document struct {
	Task          string                         `json:"task"`
	WorkflowState string                         `json:"workflow_state"`
	Agents        map[string]*AgentRecord        `json:"agents"`
	Messages      map[string]map[string]*Message `json:"messages,omitempty"`
	Iterations    int                            `json:"iterations"`
	MaxIterations int                            `json:"max_iterations"`

	ProductOwnerAnalysis           *ProductOwnerAnalysis   `json:"product_owner_analysis,omitempty"`
	ProductOwnerReasoning          *Reasoning              `json:"product_owner_reasoning,omitempty"`
	StaffEngineerAnalysis          *StaffEngineerAnalysis  `json:"staff_engineer_analysis,omitempty"`
	StaffEngineerReasoning         *Reasoning              `json:"staff_engineer_reasoning,omitempty"`
	EngineeringManagerCoordination *ManagerCoordination    `json:"engineering_manager_coordination,omitempty"`
	EngineeringManagerReasoning    *Reasoning              `json:"engineering_manager_reasoning,omitempty"`
}

// NewDocument creates a run document with every named agent pending.
func NewDocument(task string, agents []string, maxIterations int) *Document {
	doc := &Document{
		Task:          task,
		WorkflowState: StateInitialized,
		Agents:        make(map[string]*AgentRecord, len(agents)),
		MaxIterations: maxIterations,
	}
	for _, name := range agents {
		doc.Agents[name] = &AgentRecord{Status: StatusPending}
	}
	return doc
}

// ProductOwnerAnalysis is the product owner's output payload.
type ProductOwnerAnalysis struct {
	Questions       []string `json:"questions"`
	Assumptions     []string `json:"assumptions"`
	Specifications  []string `json:"specifications"`
	BusinessContext string   `json:"business_context"`
}

// Architecture describes the system design proposed by the staff engineer.
type Architecture struct {
	Components []string `json:"components"`
	DataFlow   string   `json:"data_flow"`
	APIs       []string `json:"apis"`
}

type ComplexityAnalysis struct {
	HighRisk        []string `json:"high_risk"`
	EstimatedEffort string   `json:"estimated_effort"`
	TechnicalDebt   []string `json:"technical_debt"`
}

// StaffEngineerAnalysis is the staff engineer's output payload.
type StaffEngineerAnalysis struct {
	TechnicalQuestions   []string           `json:"technical_questions"`
	Architecture         Architecture       `json:"architecture"`
	TechnologyDecisions  []string           `json:"technology_decisions"`
	ComplexityAnalysis   ComplexityAnalysis `json:"complexity_analysis"`
	ImplementationPhases []string           `json:"implementation_phases"`
	ScalabilityConcerns  []string           `json:"scalability_concerns"`
}

type CoordinationNotes struct {
	ConflictsIdentified []string `json:"conflicts_identified"`
	Resolutions         []string `json:"resolutions"`
}

type PriorityAssessment struct {
	PriorityLevel       string `json:"priority_level"`
	BusinessImpact      string `json:"business_impact"`
	RecommendedTimeline string `json:"recommended_timeline"`
}

// ManagerCoordination is the engineering manager's output payload.
type ManagerCoordination struct {
	Coordination          CoordinationNotes  `json:"coordination"`
	ImplementationPrompts []string           `json:"implementation_prompts"`
	ExecutionPlan         []string           `json:"execution_plan"`
	QualityGates          []string           `json:"quality_gates"`
	PriorityAssessment    PriorityAssessment `json:"priority_assessment"`
}

// Reasoning records how an agent produced its payload.
type Reasoning struct {
	Approach  string   `json:"approach"`
	AgentType string   `json:"agent_type"`
	Focus     []string `json:"focus"`
}
