package adapter

import (
	"fmt"
	"sort"

	"github.com/roach88/relay/internal/relayerr"
)

// Info is the introspection record for one registered adapter.
type Info struct {
	ID           string   `json:"adapter_id"`
	Kind         string   `json:"adapter_kind"`
	Capabilities []string `json:"capabilities"`
}

// Registry maps adapter ids to adapters and designates a default.
//
// Registries carry no process-wide state: each router receives its own
// instance. Not safe for concurrent registration; register everything
// before handing the registry to a router.
type Registry struct {
	defaultID string
	adapters  map[string]Adapter
}

// NewRegistry creates a registry with the given default adapter id.
// The default may be registered after construction; resolution fails
// until it is.
func NewRegistry(defaultID string) *Registry {
	return &Registry{
		defaultID: defaultID,
		adapters:  make(map[string]Adapter),
	}
}

// NewSingleAdapterRegistry wraps one adapter as a registry with that
// adapter as the default. Legacy construction path.
func NewSingleAdapterRegistry(a Adapter) *Registry {
	r := NewRegistry(a.ID())
	r.adapters[a.ID()] = a
	return r
}

// DefaultID returns the configured default adapter id.
func (r *Registry) DefaultID() string { return r.defaultID }

// Register adds an adapter. Re-registering the same instance under the
// same id is a no-op; a different instance under an existing id fails.
func (r *Registry) Register(a Adapter) error {
	id := a.ID()
	if id == "" {
		return fmt.Errorf("adapter id must not be empty")
	}
	if existing, ok := r.adapters[id]; ok {
		if existing == a {
			return nil
		}
		return fmt.Errorf("adapter %q already registered with a different instance", id)
	}
	for _, c := range a.Capabilities().Sorted() {
		if !ValidCapability(Capability(c)) {
			return fmt.Errorf("adapter %q declares unknown capability %q", id, c)
		}
	}
	r.adapters[id] = a
	return nil
}

// Get resolves an adapter by id.
func (r *Registry) Get(id string) (Adapter, error) {
	a, ok := r.adapters[id]
	if !ok {
		return nil, relayerr.Operationalf(relayerr.CodeUnknownAdapter,
			"unknown adapter: %s", id).
			WithDetail("adapter_id", id).
			WithDetail("registered", r.ListIDs())
	}
	return a, nil
}

// GetDefault resolves the default adapter.
func (r *Registry) GetDefault() (Adapter, error) {
	return r.Get(r.defaultID)
}

// ListIDs returns registered ids in sorted order.
func (r *Registry) ListIDs() []string {
	ids := make([]string, 0, len(r.adapters))
	for id := range r.adapters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ListAdapters returns introspection records in id order.
func (r *Registry) ListAdapters() []Info {
	ids := r.ListIDs()
	out := make([]Info, 0, len(ids))
	for _, id := range ids {
		a := r.adapters[id]
		out = append(out, Info{
			ID:           a.ID(),
			Kind:         a.Kind(),
			Capabilities: a.Capabilities().Sorted(),
		})
	}
	return out
}

// FindByCapability returns the ids of adapters declaring cap, sorted.
func (r *Registry) FindByCapability(cap Capability) []string {
	var ids []string
	for id, a := range r.adapters {
		if a.Capabilities().Has(cap) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// HasCapability reports whether the adapter exists and declares cap.
func (r *Registry) HasCapability(id string, cap Capability) bool {
	a, ok := r.adapters[id]
	return ok && a.Capabilities().Has(cap)
}

// RequireCapability resolves the adapter and fails with
// CAPABILITY_MISSING if it does not declare cap.
func (r *Registry) RequireCapability(id string, cap Capability) (Adapter, error) {
	a, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	if !a.Capabilities().Has(cap) {
		return nil, relayerr.Operationalf(relayerr.CodeCapabilityMissing,
			"adapter %s lacks capability %s", id, cap).
			WithDetail("adapter_id", id).
			WithDetail("required_capability", string(cap)).
			WithDetail("declared_capabilities", a.Capabilities().Sorted())
	}
	return a, nil
}
