// Package schema validates run requests before they reach the router.
//
// Validation is the upstream guard for constraints the core treats as
// bugs when violated, duplicate step ids in particular.
package schema

import (
	"bytes"
	_ "embed"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/roach88/relay/internal/event"
)

//go:embed request.schema.json
var requestSchemaJSON []byte

var compileRequestSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(requestSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("parse embedded request schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("request.schema.json", doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	sch, err := c.Compile("request.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile request schema: %w", err)
	}
	return sch, nil
})

// ValidateRequest checks raw request JSON against the run request
// schema and rejects duplicate step ids.
func ValidateRequest(data []byte) error {
	sch, err := compileRequestSchema()
	if err != nil {
		return err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("request is not valid JSON: %w", err)
	}
	if err := sch.Validate(inst); err != nil {
		return fmt.Errorf("request validation: %w", err)
	}
	return checkUniqueStepIDs(inst)
}

// checkUniqueStepIDs enforces step id uniqueness, which JSON Schema
// cannot express over an array of objects.
func checkUniqueStepIDs(inst any) error {
	root, ok := inst.(map[string]any)
	if !ok {
		return nil
	}
	plan, ok := root["plan_override"].([]any)
	if !ok {
		return nil
	}
	seen := make(map[string]bool, len(plan))
	for _, raw := range plan {
		step, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		id, _ := step["step_id"].(string)
		if seen[id] {
			return fmt.Errorf("request validation: duplicate step_id %q", id)
		}
		seen[id] = true
	}
	return nil
}

// ValidatePlan checks an already-decoded plan for duplicate step ids.
func ValidatePlan(plan []event.Step) error {
	seen := make(map[string]bool, len(plan))
	for _, step := range plan {
		if step.StepID == "" {
			return fmt.Errorf("plan step missing step_id")
		}
		if seen[step.StepID] {
			return fmt.Errorf("duplicate step_id %q", step.StepID)
		}
		seen[step.StepID] = true
	}
	return nil
}
