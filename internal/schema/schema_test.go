package schema

import (
	"strings"
	"testing"

	"github.com/roach88/relay/internal/event"
)

func TestValidateRequest_Valid(t *testing.T) {
	data := `{
		"goal": "demo",
		"mode": "dry_run",
		"policy": {"allow_apply": false, "max_steps": 3},
		"dispatch": {"adapter_id": "null", "require_capabilities": ["dry_run"]},
		"plan_override": [
			{"step_id": "s1", "intent": "read", "call": {"tool": "fs", "method": "read_file", "args": {"path": "/x"}}}
		]
	}`
	if err := ValidateRequest([]byte(data)); err != nil {
		t.Errorf("valid request rejected: %v", err)
	}
}

func TestValidateRequest_MinimalValid(t *testing.T) {
	data := `{"goal": "g", "mode": "apply", "plan_override": []}`
	if err := ValidateRequest([]byte(data)); err != nil {
		t.Errorf("minimal request rejected: %v", err)
	}
}

func TestValidateRequest_Invalid(t *testing.T) {
	cases := map[string]string{
		"not json":          `{{{`,
		"missing goal":      `{"mode": "dry_run", "plan_override": []}`,
		"missing mode":      `{"goal": "g", "plan_override": []}`,
		"bad mode":          `{"goal": "g", "mode": "wet_run", "plan_override": []}`,
		"missing plan":      `{"goal": "g", "mode": "dry_run"}`,
		"empty goal":        `{"goal": "", "mode": "dry_run", "plan_override": []}`,
		"unknown field":     `{"goal": "g", "mode": "dry_run", "plan_override": [], "extra": 1}`,
		"unknown cap":       `{"goal": "g", "mode": "dry_run", "plan_override": [], "dispatch": {"require_capabilities": ["telepathy"]}}`,
		"step missing call": `{"goal": "g", "mode": "dry_run", "plan_override": [{"step_id": "s1"}]}`,
		"call no method":    `{"goal": "g", "mode": "dry_run", "plan_override": [{"step_id": "s1", "call": {"tool": "t"}}]}`,
		"negative steps":    `{"goal": "g", "mode": "dry_run", "plan_override": [], "policy": {"max_steps": -1}}`,
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			if err := ValidateRequest([]byte(data)); err == nil {
				t.Errorf("invalid request accepted: %s", data)
			}
		})
	}
}

func TestValidateRequest_DuplicateStepID(t *testing.T) {
	data := `{
		"goal": "g", "mode": "dry_run",
		"plan_override": [
			{"step_id": "s1", "call": {"tool": "t", "method": "m"}},
			{"step_id": "s1", "call": {"tool": "t", "method": "m"}}
		]
	}`
	err := ValidateRequest([]byte(data))
	if err == nil || !strings.Contains(err.Error(), "duplicate step_id") {
		t.Errorf("duplicate step_id not rejected: %v", err)
	}
}

func TestValidatePlan(t *testing.T) {
	plan := []event.Step{
		{StepID: "s1", Call: event.Call{Tool: "t", Method: "m"}},
		{StepID: "s2", Call: event.Call{Tool: "t", Method: "m"}},
	}
	if err := ValidatePlan(plan); err != nil {
		t.Errorf("valid plan rejected: %v", err)
	}

	plan[1].StepID = "s1"
	if err := ValidatePlan(plan); err == nil {
		t.Error("duplicate step_id accepted")
	}

	if err := ValidatePlan([]event.Step{{Call: event.Call{Tool: "t", Method: "m"}}}); err == nil {
		t.Error("empty step_id accepted")
	}
}
