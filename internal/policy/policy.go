// Package policy gates run execution before any step dispatches.
package policy

import (
	"github.com/roach88/relay/internal/event"
	"github.com/roach88/relay/internal/relayerr"
)

// Policy is the per-request execution policy. Zero value allows
// everything.
type Policy struct {
	// AllowApply gates apply-mode runs. Nil means allowed.
	AllowApply *bool `json:"allow_apply,omitempty" yaml:"allow_apply,omitempty"`

	// MaxSteps caps the plan length. Zero means unlimited.
	MaxSteps int `json:"max_steps,omitempty" yaml:"max_steps,omitempty"`
}

// Bool is a convenience for building AllowApply literals.
func Bool(v bool) *bool { return &v }

// Gate evaluates the policy against the run mode and plan size.
// Returns a POLICY_DENIED or MAX_STEPS_EXCEEDED operational error on
// denial, nil otherwise.
func (p Policy) Gate(mode event.Mode, planLen int) error {
	if mode == event.ModeApply && p.AllowApply != nil && !*p.AllowApply {
		return relayerr.NewOperational(relayerr.CodePolicyDenied,
			"apply mode denied by policy").
			WithDetail("allow_apply", false)
	}
	if p.MaxSteps > 0 && planLen > p.MaxSteps {
		return relayerr.Operationalf(relayerr.CodeMaxStepsExceeded,
			"plan has %d steps, policy allows %d", planLen, p.MaxSteps).
			WithDetail("plan_steps", planLen).
			WithDetail("max_steps", p.MaxSteps)
	}
	return nil
}
