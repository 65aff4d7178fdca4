package adapter

import "context"

// Null returns deterministic placeholder outputs without side effects.
//
// Used as the registry default for dry_run runs, for development, and
// for tests that need no external dependencies. It deliberately lacks
// the apply capability so that apply-mode runs cannot be routed to it.
type Null struct {
	id string
}

// NewNull creates a null adapter with id "null".
func NewNull() *Null {
	return &Null{id: "null"}
}

// NewNullWithID creates a null adapter with a custom id.
func NewNullWithID(id string) *Null {
	return &Null{id: id}
}

func (n *Null) ID() string   { return n.id }
func (n *Null) Kind() string { return "null" }

func (n *Null) Capabilities() CapabilitySet {
	return NewCapabilitySet(CapDryRun)
}

// Call returns a deterministic placeholder result echoing the request.
func (n *Null) Call(_ context.Context, tool, method string, _ map[string]any) (map[string]any, error) {
	return map[string]any{
		"ok":        true,
		"simulated": true,
		"tool":      tool,
		"method":    method,
	}, nil
}
