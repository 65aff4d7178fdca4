package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/relay/internal/event"
)

// TraceSnapshot is the golden-file form of a scenario execution: the
// run header plus every event, serialized canonically.
type TraceSnapshot struct {
	ScenarioName string
	Run          event.Run
	Events       []event.Event
}

// toCanonicalMap converts the snapshot to the plain-map form
// MarshalCanonical accepts, normalizing volatile fields. Durations
// are wall-clock measurements and are zeroed so traces stay
// byte-identical across machines.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	eventList := make([]any, len(s.Events))
	for i, evt := range s.Events {
		m := evt.CanonicalMap()
		m["payload"] = normalizeDurations(m["payload"])
		eventList[i] = m
	}
	return map[string]any{
		"scenario_name": s.ScenarioName,
		"run":           s.Run.CanonicalMap(),
		"events":        eventList,
	}
}

// normalizeDurations zeroes every duration_ms field, at any depth.
func normalizeDurations(v any) any {
	switch vv := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(vv))
		for k, item := range vv {
			if k == "duration_ms" {
				out[k] = 0
				continue
			}
			out[k] = normalizeDurations(item)
		}
		return out
	case []any:
		out := make([]any, len(vv))
		for i, item := range vv {
			out[i] = normalizeDurations(item)
		}
		return out
	default:
		return v
	}
}

// Marshal renders the snapshot as canonical JSON.
func (s *TraceSnapshot) Marshal() ([]byte, error) {
	return event.MarshalCanonical(s.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an already-executed result against the golden
// file for scenarioName.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Run:          result.Run,
		Events:       result.Events,
	}
	traceJSON, err := snapshot.Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
	return nil
}
