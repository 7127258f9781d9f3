package chat

import "time"

// Pipeline step names, in execution order.
const (
	StepInputProcessing    = "input_processing"
	StepContextBuilding    = "context_building"
	StepIntentAnalysis     = "intent_analysis"
	StepResponseGeneration = "response_generation"
	StepOutputFormatting   = "output_formatting"
	StepCompleted          = "completed"
)

// HistoryMessage is one turn in the conversation history.
type HistoryMessage struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// ProcessedInput is the first stage's output.
type ProcessedInput struct {
	Text        string    `json:"text"`
	Timestamp   time.Time `json:"timestamp"`
	Length      int       `json:"length"`
	WordCount   int       `json:"word_count"`
	HasQuestion bool      `json:"has_question"`
}

// Context is the second stage's output plus the running history.
type Context struct {
	History         []HistoryMessage `json:"conversation_history"`
	SessionStart    time.Time        `json:"session_start,omitzero"`
	RelevantContext string           `json:"relevant_context"`
}

// Entity is a simple pattern-matched token from the user's input.
type Entity struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Intent is the third stage's output.
type Intent struct {
	Primary      string   `json:"primary_intent"`
	Confidence   float64  `json:"confidence"`
	Entities     []Entity `json:"entities"`
	NeedsContext bool     `json:"context_needed"`
}

// Response is the fourth stage's output.
type Response struct {
	Text      string `json:"generated_text"`
	Reasoning string `json:"reasoning"`
	Model     string `json:"model"`
}

// Output is the final formatted turn.
type Output struct {
	Text              string    `json:"formatted_response"`
	Timestamp         time.Time `json:"timestamp"`
	Intent            string    `json:"intent"`
	Confidence        float64   `json:"confidence"`
	ProcessingSeconds float64   `json:"processing_seconds"`
	Length            int       `json:"response_length"`
}

// State is the whole conversation state for one project. The pipeline
// mutates it stage by stage and persists it after every stage.
type State struct {
	ProjectName string         `json:"project_name"`
	CreatedAt   time.Time      `json:"created_at"`
	CurrentStep string         `json:"current_step"`
	Position    int            `json:"pipeline_position"`
	UserInput   string         `json:"user_input"`
	Processed   ProcessedInput `json:"processed_input"`
	Context     Context        `json:"context"`
	Intent      Intent         `json:"intent"`
	Response    Response       `json:"response"`
	Output      Output         `json:"final_output"`
}

func newState(name string) *State {
	return &State{
		ProjectName: name,
		CreatedAt:   time.Now(),
		CurrentStep: StepInputProcessing,
	}
}
