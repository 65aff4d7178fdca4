// Package adapter defines the dispatch boundary for tool calls.
//
// The router decides what to call; an adapter decides how to call it.
// Adapters declare capabilities from a closed set and are treated as
// stateless by the router: any internal state is the adapter's own
// concern.
package adapter

import (
	"context"
	"sort"
)

// Capability describes a guarantee an adapter provides. The set is
// closed and core-governed; adapters cannot invent capabilities.
type Capability string

const (
	// CapDryRun marks adapters usable for simulated runs.
	CapDryRun Capability = "dry_run"

	// CapApply marks adapters allowed to perform real side effects.
	CapApply Capability = "apply"

	// CapTimeout marks adapters that enforce their own call deadlines.
	CapTimeout Capability = "timeout"

	// CapExternal marks adapters that leave the process boundary.
	CapExternal Capability = "external"
)

// AllCapabilities lists the closed capability set.
var AllCapabilities = []Capability{CapDryRun, CapApply, CapTimeout, CapExternal}

// ValidCapability reports whether c belongs to the closed set.
func ValidCapability(c Capability) bool {
	for _, known := range AllCapabilities {
		if c == known {
			return true
		}
	}
	return false
}

// CapabilitySet is an immutable-by-convention set of capabilities.
// Construct with NewCapabilitySet; do not mutate after handing it to
// an adapter.
type CapabilitySet map[Capability]struct{}

// NewCapabilitySet builds a set from the given capabilities.
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	set := make(CapabilitySet, len(caps))
	for _, c := range caps {
		set[c] = struct{}{}
	}
	return set
}

// Has reports membership.
func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

// Sorted returns the capabilities as sorted strings, the form used in
// event payloads and error details.
func (s CapabilitySet) Sorted() []string {
	out := make([]string, 0, len(s))
	for c := range s {
		out = append(out, string(c))
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy.
func (s CapabilitySet) Clone() CapabilitySet {
	out := make(CapabilitySet, len(s))
	for c := range s {
		out[c] = struct{}{}
	}
	return out
}

// Adapter executes a single tool call.
//
// Call must be a pure function of its arguments except where documented
// (wall time, generated ids). Implementations must not mutate
// process-wide state or call other adapters.
//
// Failure contract: expected failures return an
// *relayerr.OperationalError with a stable code; implementation bugs
// return (or panic into) a *relayerr.BugError. Anything else is treated
// as UNKNOWN_ERROR by the router.
type Adapter interface {
	// ID is the unique, stable identifier of this adapter instance.
	ID() string

	// Kind names the adapter family (e.g. "null", "fake", "subprocess").
	Kind() string

	// Capabilities returns the adapter's declared capability set.
	Capabilities() CapabilitySet

	// Call executes one tool call and returns a structured,
	// JSON-serializable result. Must respect context cancellation
	// for long-running transports.
	Call(ctx context.Context, tool, method string, args map[string]any) (map[string]any, error)
}
