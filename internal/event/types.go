package event

// Mode selects whether a run may touch the outside world.
type Mode string

const (
	// ModeDryRun never invokes an adapter; tool results are synthesized.
	ModeDryRun Mode = "dry_run"

	// ModeApply dispatches tool calls through the selected adapter.
	ModeApply Mode = "apply"
)

// Valid reports whether the mode is one of the two defined modes.
func (m Mode) Valid() bool {
	return m == ModeDryRun || m == ModeApply
}

// Status is the lifecycle state of a run row.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Event types, closed set. The router emits these and nothing else.
const (
	TypeRunStarted        = "RUN_STARTED"
	TypeDispatchSelected  = "DISPATCH_SELECTED"
	TypePlanCreated       = "PLAN_CREATED"
	TypeStepStarted       = "STEP_STARTED"
	TypeToolCallRequested = "TOOL_CALL_REQUESTED"
	TypeToolCallSucceeded = "TOOL_CALL_SUCCEEDED"
	TypeToolCallFailed    = "TOOL_CALL_FAILED"
	TypeStepCompleted     = "STEP_COMPLETED"
	TypeRunCompleted      = "RUN_COMPLETED"
	TypeRunFailed         = "RUN_FAILED"
)

// Types lists all event types in emission-order groups.
// Used by the replay checker and by tests that assert closure.
var Types = []string{
	TypeRunStarted,
	TypeDispatchSelected,
	TypePlanCreated,
	TypeStepStarted,
	TypeToolCallRequested,
	TypeToolCallSucceeded,
	TypeToolCallFailed,
	TypeStepCompleted,
	TypeRunCompleted,
	TypeRunFailed,
}

// IsTerminal reports whether the event type ends a run.
func IsTerminal(eventType string) bool {
	return eventType == TypeRunCompleted || eventType == TypeRunFailed
}

// Run is the header row for a run. Created at RUN_STARTED and mutated
// only via terminal status transitions.
type Run struct {
	RunID     string `json:"run_id"`
	Goal      string `json:"goal"`
	Mode      Mode   `json:"mode"`
	Status    Status `json:"status"`
	CreatedAt string `json:"created_at"`
}

// CanonicalMap returns the run as a plain map for canonical serialization.
func (r Run) CanonicalMap() map[string]any {
	return map[string]any{
		"run_id":     r.RunID,
		"goal":       r.Goal,
		"mode":       string(r.Mode),
		"status":     string(r.Status),
		"created_at": r.CreatedAt,
	}
}

// Event is one immutable state transition of a run.
//
// Seq is a 0-based, per-run, contiguous integer. EventID is globally
// unique within a store. Payload shape depends on Type.
type Event struct {
	EventID string         `json:"event_id"`
	RunID   string         `json:"run_id"`
	Seq     int64          `json:"seq"`
	Type    string         `json:"type"`
	TS      string         `json:"ts"`
	Payload map[string]any `json:"payload"`
}

// CanonicalMap returns the event as a plain map for canonical serialization.
func (e Event) CanonicalMap() map[string]any {
	payload := e.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	return map[string]any{
		"event_id": e.EventID,
		"run_id":   e.RunID,
		"seq":      e.Seq,
		"type":     e.Type,
		"ts":       e.TS,
		"payload":  payload,
	}
}

// Call identifies a single tool invocation: which tool, which method,
// and the structured arguments.
type Call struct {
	Tool   string         `json:"tool"`
	Method string         `json:"method"`
	Args   map[string]any `json:"args"`
}

// CanonicalMap returns the call as a plain map for event payloads.
func (c Call) CanonicalMap() map[string]any {
	args := c.Args
	if args == nil {
		args = map[string]any{}
	}
	return map[string]any{
		"tool":   c.Tool,
		"method": c.Method,
		"args":   args,
	}
}

// Step is one entry of a plan. Order within the plan is execution order.
type Step struct {
	StepID string `json:"step_id"`
	Intent string `json:"intent,omitempty"`
	Call   Call   `json:"call"`
}

// CanonicalMap returns the step as a plain map for event payloads.
func (s Step) CanonicalMap() map[string]any {
	return map[string]any{
		"step_id": s.StepID,
		"intent":  s.Intent,
		"call":    s.Call.CanonicalMap(),
	}
}
