package router

import (
	"github.com/roach88/relay/internal/adapter"
	"github.com/roach88/relay/internal/event"
	"github.com/roach88/relay/internal/policy"
	"github.com/roach88/relay/internal/provenance"
)

// DispatchSpec selects and constrains the adapter for a run.
type DispatchSpec struct {
	// AdapterID selects an adapter explicitly. Empty uses the
	// registry default.
	AdapterID string `json:"adapter_id,omitempty"`

	// RequireCapabilities lists capabilities the selected adapter
	// must declare, in addition to those implied by the mode.
	RequireCapabilities []string `json:"require_capabilities,omitempty"`
}

// Request is a declarative run request. Plan is the fixture-driven
// plan; the router performs no search or planning of its own.
type Request struct {
	// RunID pins the run identifier. Empty allocates a fresh one.
	RunID string `json:"run_id,omitempty"`

	Goal     string         `json:"goal"`
	Mode     event.Mode     `json:"mode"`
	Policy   *policy.Policy `json:"policy,omitempty"`
	Dispatch *DispatchSpec  `json:"dispatch,omitempty"`
	Plan     []event.Step   `json:"plan_override"`
}

// DispatchInfo reports the adapter selection made for a run.
type DispatchInfo struct {
	AdapterID       string `json:"adapter_id"`
	AdapterKind     string `json:"adapter_kind"`
	SelectionSource string `json:"selection_source"`
}

// Selection sources.
const (
	SelectionRequest = "request"
	SelectionDefault = "default"
)

// Summary aggregates a run's step outcomes.
type Summary struct {
	AdapterID  string `json:"adapter_id"`
	StepsTotal int    `json:"steps_total"`
	StepsOK    int    `json:"steps_ok"`
	StepsError int    `json:"steps_error"`
	DurationMS int64  `json:"duration_ms"`
}

// StepResult is the per-step outcome echoed in the response.
type StepResult struct {
	StepID    string         `json:"step_id"`
	Status    string         `json:"status"`
	Simulated bool           `json:"simulated"`
	Output    map[string]any `json:"output,omitempty"`
	ErrorCode string         `json:"error_code,omitempty"`
}

// ErrorInfo carries the terminal error of a failed run.
type ErrorInfo struct {
	ErrorCode string         `json:"error_code"`
	Details   map[string]any `json:"details,omitempty"`
}

// Response is the caller-visible outcome of a run. Run and Summary are
// always populated once the run has started; Error is set only for
// failed runs.
type Response struct {
	Run        event.Run              `json:"run"`
	Dispatch   *DispatchInfo          `json:"dispatch,omitempty"`
	Summary    Summary                `json:"summary"`
	Results    []StepResult           `json:"results"`
	Provenance *provenance.Provenance `json:"provenance,omitempty"`
	Error      *ErrorInfo             `json:"error,omitempty"`
}

// Step statuses recorded in STEP_COMPLETED payloads.
const (
	StepStatusOK    = "ok"
	StepStatusError = "error"
)

// requiredCapabilities is the union of the request's explicit
// requirements with those implied by the mode, deduplicated in order.
func requiredCapabilities(spec *DispatchSpec, mode event.Mode) []adapter.Capability {
	var caps []adapter.Capability
	seen := make(map[adapter.Capability]bool)
	add := func(c adapter.Capability) {
		if !seen[c] {
			seen[c] = true
			caps = append(caps, c)
		}
	}
	if spec != nil {
		for _, c := range spec.RequireCapabilities {
			add(adapter.Capability(c))
		}
	}
	if mode == event.ModeApply {
		add(adapter.CapApply)
	}
	return caps
}
