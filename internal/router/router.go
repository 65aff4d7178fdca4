// Package router drives a declarative plan of tool calls to a terminal
// outcome, recording every state transition as an event append.
//
// A run moves through Initialized, Dispatching, Planning, Executing and
// one of the two terminal states. Each transition commits by appending
// exactly one event; the event log is the source of truth, the runs row
// status is derived bookkeeping.
package router

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/roach88/relay/internal/adapter"
	"github.com/roach88/relay/internal/store"
)

// Router orchestrates runs against one event store and one adapter
// registry. Single-threaded per run; callers wanting parallel runs use
// one Router per goroutine and must not share Router state.
type Router struct {
	store    *store.Store
	registry *adapter.Registry
	log      *slog.Logger
	newRunID func() string
}

// Option configures a Router.
type Option func(*routerConfig)

type routerConfig struct {
	registry *adapter.Registry
	single   adapter.Adapter
	log      *slog.Logger
	newRunID func() string
}

// WithRegistry supplies the adapter registry.
func WithRegistry(r *adapter.Registry) Option {
	return func(c *routerConfig) { c.registry = r }
}

// WithAdapter wraps one adapter into a single-entry registry. Legacy
// construction path; mutually exclusive with WithRegistry.
func WithAdapter(a adapter.Adapter) Option {
	return func(c *routerConfig) { c.single = a }
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(c *routerConfig) { c.log = log }
}

// WithRunIDGenerator overrides run id allocation. Tests use this for
// deterministic ids.
func WithRunIDGenerator(fn func() string) Option {
	return func(c *routerConfig) { c.newRunID = fn }
}

// New creates a Router. Supplying both WithRegistry and WithAdapter is
// a configuration error. With neither, a registry holding only the
// null adapter is used.
func New(st *store.Store, opts ...Option) (*Router, error) {
	cfg := routerConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.registry != nil && cfg.single != nil {
		return nil, fmt.Errorf("cannot combine single adapter with adapter registry")
	}

	registry := cfg.registry
	if registry == nil {
		if cfg.single != nil {
			registry = adapter.NewSingleAdapterRegistry(cfg.single)
		} else {
			registry = adapter.NewSingleAdapterRegistry(adapter.NewNull())
		}
	}

	log := cfg.log
	if log == nil {
		log = slog.Default()
	}
	newRunID := cfg.newRunID
	if newRunID == nil {
		newRunID = func() string { return uuid.Must(uuid.NewV7()).String() }
	}

	return &Router{
		store:    st,
		registry: registry,
		log:      log,
		newRunID: newRunID,
	}, nil
}

// Registry exposes the router's adapter registry for introspection.
func (r *Router) Registry() *adapter.Registry { return r.registry }
