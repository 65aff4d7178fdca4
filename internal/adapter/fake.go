package adapter

import (
	"context"
	"sync"

	"github.com/roach88/relay/internal/relayerr"
)

// ResponseFunc produces a result (or error) for a configured call.
type ResponseFunc func(args map[string]any) (map[string]any, error)

// DefaultResponseFunc produces a result for calls with no specific
// response configured.
type DefaultResponseFunc func(tool, method string, args map[string]any) (map[string]any, error)

// LoggedCall records one call received by a Fake adapter.
type LoggedCall struct {
	Tool   string
	Method string
	Args   map[string]any
}

type callKey struct {
	tool   string
	method string
}

// Fake is a test adapter with configurable per-call responses and a
// call log. Safe for concurrent use.
type Fake struct {
	id   string
	caps CapabilitySet

	mu        sync.Mutex
	responses map[callKey]ResponseFunc
	fallback  DefaultResponseFunc
	callLog   []LoggedCall
}

// NewFake creates a fake adapter with id "fake" and the full
// capability set minus external.
func NewFake() *Fake {
	return NewFakeWithID("fake")
}

// NewFakeWithID creates a fake adapter with a custom id.
func NewFakeWithID(id string) *Fake {
	return &Fake{
		id:        id,
		caps:      NewCapabilitySet(CapDryRun, CapApply, CapTimeout),
		responses: make(map[callKey]ResponseFunc),
	}
}

// WithCapabilities overrides the declared capability set. Returns the
// receiver for chaining at construction.
func (f *Fake) WithCapabilities(caps ...Capability) *Fake {
	f.caps = NewCapabilitySet(caps...)
	return f
}

func (f *Fake) ID() string                  { return f.id }
func (f *Fake) Kind() string                { return "fake" }
func (f *Fake) Capabilities() CapabilitySet { return f.caps.Clone() }

// SetResponse configures the result returned for (tool, method).
func (f *Fake) SetResponse(tool, method string, result map[string]any) {
	f.SetResponseFunc(tool, method, func(map[string]any) (map[string]any, error) {
		return result, nil
	})
}

// SetResponseFunc configures a response function for (tool, method).
func (f *Fake) SetResponseFunc(tool, method string, fn ResponseFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[callKey{tool, method}] = fn
}

// SetDefaultResponse configures the fallback for unregistered calls.
func (f *Fake) SetDefaultResponse(fn DefaultResponseFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fallback = fn
}

// SetOperationalError configures (tool, method) to fail with an
// operational error.
func (f *Fake) SetOperationalError(tool, method string, code relayerr.Code, message string) {
	f.SetResponseFunc(tool, method, func(map[string]any) (map[string]any, error) {
		return nil, relayerr.NewOperational(code, message)
	})
}

// SetBugError configures (tool, method) to fail with a bug error.
func (f *Fake) SetBugError(tool, method, message string) {
	f.SetResponseFunc(tool, method, func(map[string]any) (map[string]any, error) {
		return nil, relayerr.NewBug(message)
	})
}

// Call executes the configured response, logging the call.
func (f *Fake) Call(_ context.Context, tool, method string, args map[string]any) (map[string]any, error) {
	f.mu.Lock()
	f.callLog = append(f.callLog, LoggedCall{Tool: tool, Method: method, Args: args})
	fn, ok := f.responses[callKey{tool, method}]
	fallback := f.fallback
	f.mu.Unlock()

	if ok {
		return fn(args)
	}
	if fallback != nil {
		return fallback(tool, method, args)
	}
	return map[string]any{
		"fake":   true,
		"tool":   tool,
		"method": method,
	}, nil
}

// CallLog returns a copy of the calls received so far.
func (f *Fake) CallLog() []LoggedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]LoggedCall, len(f.callLog))
	copy(out, f.callLog)
	return out
}

// Reset clears configured responses and the call log.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = make(map[callKey]ResponseFunc)
	f.fallback = nil
	f.callLog = nil
}
