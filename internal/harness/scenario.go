package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/relay/internal/policy"
)

// Scenario is a declarative test case: one run request plus the fake
// adapter behavior it runs against.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Goal is the run's stated goal.
	Goal string `yaml:"goal"`

	// Mode is "dry_run" or "apply".
	Mode string `yaml:"mode"`

	// RunID pins the run identifier. Empty uses "run-0001".
	RunID string `yaml:"run_id,omitempty"`

	// Policy applies to the run. Nil allows everything.
	Policy *policy.Policy `yaml:"policy,omitempty"`

	// AdapterID selects an adapter explicitly. Empty uses the
	// harness default, the fake adapter.
	AdapterID string `yaml:"adapter_id,omitempty"`

	// RequireCapabilities lists extra capabilities the run demands.
	RequireCapabilities []string `yaml:"require_capabilities,omitempty"`

	// AdapterCapabilities overrides the fake adapter's declared
	// capability set. Empty keeps the default (dry_run, apply,
	// timeout).
	AdapterCapabilities []string `yaml:"adapter_capabilities,omitempty"`

	// Plan is the run's step list, executed in order.
	Plan []ScenarioStep `yaml:"plan"`

	// Responses configures the fake adapter per (tool, method).
	Responses []ResponseRule `yaml:"responses,omitempty"`
}

// ScenarioStep is one plan entry in scenario form.
type ScenarioStep struct {
	StepID string         `yaml:"step_id"`
	Intent string         `yaml:"intent,omitempty"`
	Tool   string         `yaml:"tool"`
	Method string         `yaml:"method"`
	Args   map[string]any `yaml:"args,omitempty"`
}

// ResponseRule configures the fake adapter's answer for one
// (tool, method) pair. Exactly one of Output or ErrorCode applies;
// with ErrorCode set the call fails operationally.
type ResponseRule struct {
	Tool         string         `yaml:"tool"`
	Method       string         `yaml:"method"`
	Output       map[string]any `yaml:"output,omitempty"`
	ErrorCode    string         `yaml:"error_code,omitempty"`
	ErrorMessage string         `yaml:"error_message,omitempty"`
}

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	var sc Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := validateScenario(&sc); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &sc, nil
}

func validateScenario(sc *Scenario) error {
	if sc.Name == "" {
		return fmt.Errorf("missing name")
	}
	if sc.Goal == "" {
		return fmt.Errorf("missing goal")
	}
	if sc.Mode != "dry_run" && sc.Mode != "apply" {
		return fmt.Errorf("mode must be dry_run or apply, got %q", sc.Mode)
	}
	seen := make(map[string]bool, len(sc.Plan))
	for i, step := range sc.Plan {
		if step.StepID == "" {
			return fmt.Errorf("plan[%d]: missing step_id", i)
		}
		if seen[step.StepID] {
			return fmt.Errorf("plan[%d]: duplicate step_id %q", i, step.StepID)
		}
		seen[step.StepID] = true
		if step.Tool == "" || step.Method == "" {
			return fmt.Errorf("plan[%d]: missing tool or method", i)
		}
	}
	for i, rule := range sc.Responses {
		if rule.Tool == "" || rule.Method == "" {
			return fmt.Errorf("responses[%d]: missing tool or method", i)
		}
		if rule.Output != nil && rule.ErrorCode != "" {
			return fmt.Errorf("responses[%d]: output and error_code are mutually exclusive", i)
		}
	}
	return nil
}
