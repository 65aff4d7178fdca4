package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/relay/internal/adapter"
	"github.com/roach88/relay/internal/event"
	"github.com/roach88/relay/internal/relayerr"
	"github.com/roach88/relay/internal/router"
	"github.com/roach88/relay/internal/store"
)

// Result holds everything a scenario execution produced: the router's
// response and the full trace read back from the store.
type Result struct {
	Response *router.Response
	Run      event.Run
	Events   []event.Event
}

// scenarioEpoch is the fixed clock base for scenario runs. Every
// timestamp call advances the clock by one second, so each event
// carries a distinct, reproducible ts.
var scenarioEpoch = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

// tickingClock returns a clock that starts at base and advances by
// step on every call.
func tickingClock(base time.Time, step time.Duration) func() time.Time {
	next := base
	return func() time.Time {
		now := next
		next = next.Add(step)
		return now
	}
}

// sequentialIDs returns a generator producing prefix-0001,
// prefix-0002, and so on.
func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%04d", prefix, n)
	}
}

// Run executes a scenario against a fresh in-memory store.
//
// The fake adapter is the registry default; the null adapter is also
// registered so scenarios can dispatch to it by id. Bug-classified
// outcomes surface as errors, matching the router's contract.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(store.MemoryPath,
		store.WithTimestampFunc(tickingClock(scenarioEpoch, time.Second)),
		store.WithIDGenerator(sequentialIDs("evt")),
	)
	if err != nil {
		return nil, fmt.Errorf("open scenario store: %w", err)
	}
	defer st.Close()

	fake := adapter.NewFake()
	if len(scenario.AdapterCapabilities) > 0 {
		caps := make([]adapter.Capability, len(scenario.AdapterCapabilities))
		for i, c := range scenario.AdapterCapabilities {
			caps[i] = adapter.Capability(c)
		}
		fake.WithCapabilities(caps...)
	}
	for _, rule := range scenario.Responses {
		if rule.ErrorCode != "" {
			fake.SetOperationalError(rule.Tool, rule.Method,
				relayerr.Code(rule.ErrorCode), rule.ErrorMessage)
			continue
		}
		fake.SetResponse(rule.Tool, rule.Method, rule.Output)
	}

	registry := adapter.NewRegistry(fake.ID())
	if err := registry.Register(fake); err != nil {
		return nil, err
	}
	if err := registry.Register(adapter.NewNull()); err != nil {
		return nil, err
	}

	runID := scenario.RunID
	if runID == "" {
		runID = "run-0001"
	}
	rt, err := router.New(st,
		router.WithRegistry(registry),
		router.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		router.WithRunIDGenerator(func() string { return runID }),
	)
	if err != nil {
		return nil, fmt.Errorf("build scenario router: %w", err)
	}

	req := router.Request{
		Goal:   scenario.Goal,
		Mode:   event.Mode(scenario.Mode),
		Policy: scenario.Policy,
		Plan:   planSteps(scenario.Plan),
	}
	if scenario.AdapterID != "" || len(scenario.RequireCapabilities) > 0 {
		req.Dispatch = &router.DispatchSpec{
			AdapterID:           scenario.AdapterID,
			RequireCapabilities: scenario.RequireCapabilities,
		}
	}

	ctx := context.Background()
	resp, err := rt.Run(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("scenario run: %w", err)
	}

	run, err := st.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("read scenario run: %w", err)
	}
	events, err := st.ReadEvents(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("read scenario events: %w", err)
	}
	return &Result{Response: resp, Run: *run, Events: events}, nil
}

func planSteps(plan []ScenarioStep) []event.Step {
	steps := make([]event.Step, len(plan))
	for i, s := range plan {
		steps[i] = event.Step{
			StepID: s.StepID,
			Intent: s.Intent,
			Call: event.Call{
				Tool:   s.Tool,
				Method: s.Method,
				Args:   s.Args,
			},
		}
	}
	return steps
}
