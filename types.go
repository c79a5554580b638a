package cairn

import "encoding/json"

// --- Plan types (planner output, executor input) ---

// ActionType discriminates the two Action variants.
type ActionType string

const (
	// ActionTool invokes a named tool with free-form parameters.
	ActionTool ActionType = "tool_use"
	// ActionConfirm asks the user to approve the action it gates.
	ActionConfirm ActionType = "confirmation"
)

// Action is one unit of work in a Plan: either a tool invocation or a
// user-confirmation prompt. The Executor switches exhaustively on Type.
type Action struct {
	Type ActionType `json:"type"`

	// Tool variant.
	ToolName string         `json:"tool_name,omitempty"`
	Params   map[string]any `json:"parameters,omitempty"`

	// Confirmation variant.
	Message     string `json:"message,omitempty"`
	Destructive bool   `json:"destructive,omitempty"`
}

// PlanMeta carries advisory metadata attached to a Plan. It influences loop
// termination but never overrides an empty plan or a critical failure.
type PlanMeta struct {
	Confidence     float64 `json:"confidence"`
	IsFinal        bool    `json:"is_final"`
	ExpectFollowUp bool    `json:"expected_follow_up"`
	Reasoning      string  `json:"reasoning"`
}

// DefaultPlanMeta returns the metadata assumed when the model omits it.
func DefaultPlanMeta() PlanMeta {
	return PlanMeta{Confidence: 0.5, ExpectFollowUp: true}
}

// Plan is an ordered sequence of Actions for a single step. Order is
// execution order; a confirmation gating a destructive tool action appears
// immediately after it.
type Plan struct {
	Actions []Action
	Meta    PlanMeta
}

// Empty reports whether the plan carries no actions. An empty plan after
// the first step is the terminal signal to the Driver.
func (p Plan) Empty() bool { return len(p.Actions) == 0 }

// HasToolActions reports whether any action in the plan invokes a tool.
func (p Plan) HasToolActions() bool {
	for _, a := range p.Actions {
		if a.Type == ActionTool {
			return true
		}
	}
	return false
}

// --- Execution types ---

// StepResult is the outcome of executing one Action. Error is non-empty
// exactly when Success is false. Description is a short human label
// produced by the Executor ("tool(params)" or "Confirmation: msg").
type StepResult struct {
	Success     bool   `json:"success"`
	Output      string `json:"output,omitempty"`
	Error       string `json:"error,omitempty"`
	Description string `json:"action_description"`
}

// LogEntry pairs an executed Action with its result, in execution order.
// The Driver serializes the full log into the session record.
type LogEntry struct {
	Action Action     `json:"action"`
	Result StepResult `json:"result"`
}

// --- Tool contract types ---

// ToolResult is what a tool itself returns. Tool-level failures travel
// in Error rather than as Go errors so the loop can degrade per action.
type ToolResult struct {
	Content string `json:"content"`
	Error   string `json:"error,omitempty"`
}

// ToolDefinition describes one callable tool function: its name, a
// description for prompt injection, a JSON Schema for its parameters, and
// whether executing it mutates durable state (files, VCS).
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
	Destructive bool            `json:"destructive"`
}

// --- Per-request context ---

// Context is the transient per-request snapshot fed to the Planner.
type Context struct {
	Prompt          string
	Commit          string // "unknown" outside a repo
	ModifiedFiles   []string
	RecentSummaries []string // newest last
	Debug           bool
}

// --- Persistent records ---

// SessionRecord is the append-only row persisted once per completed
// request. IDs are assigned by the store and strictly increase.
type SessionRecord struct {
	ID            int64           `json:"id"`
	Timestamp     string          `json:"timestamp"`
	Prompt        string          `json:"user_prompt"`
	Commit        string          `json:"commit_hash"`
	ModifiedFiles []string        `json:"modified_files"`
	Summary       string          `json:"summary"`
	ExecutionLog  json.RawMessage `json:"execution_log,omitempty"`
}

// CachedFile is one commit-scoped cache entry. Path is the primary key;
// the entry is valid only for the commit it was stored under.
// ContentHash is stored for future integrity checks but never consulted.
type CachedFile struct {
	Path        string `json:"file_path"`
	Commit      string `json:"commit_hash"`
	ContentHash string `json:"content_hash"`
	Content     string `json:"content"`
	Summary     string `json:"summary,omitempty"`
	LastUpdated string `json:"last_updated"`
}

// ModelInteraction is an optional audit row recording one planner exchange.
type ModelInteraction struct {
	SessionID int64           `json:"session_id"`
	Step      int             `json:"step_number"`
	Timestamp string          `json:"timestamp"`
	Prompt    string          `json:"prompt"`
	Response  string          `json:"response"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}
