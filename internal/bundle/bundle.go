// Package bundle implements the portable run format: content-addressed
// export bundles and their verified import.
package bundle

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/relay/internal/event"
	"github.com/roach88/relay/internal/provenance"
)

// SchemaVersion of bundles this package reads and writes.
const SchemaVersion = "0.3"

// Bundle is a self-contained serialized run: the only artifact needed
// to recreate the run in another store.
type Bundle struct {
	SchemaVersion string                 `json:"schema_version"`
	Run           event.Run              `json:"run"`
	Events        []event.Event          `json:"events"`
	Provenance    *provenance.Provenance `json:"provenance,omitempty"`
}

// Digest recomputes the content digest over the bundle's run and
// events.
func (b *Bundle) Digest() (string, error) {
	return provenance.Digest(b.Run, b.Events)
}

// canonicalMap renders the bundle in the fixed key layout used for
// encoding. Field order is irrelevant (keys sort), but the set of keys
// is: schema_version, run, events, and provenance when present.
func (b *Bundle) canonicalMap() map[string]any {
	events := make([]any, len(b.Events))
	for i, evt := range b.Events {
		events[i] = evt.CanonicalMap()
	}
	m := map[string]any{
		"schema_version": b.SchemaVersion,
		"run":            b.Run.CanonicalMap(),
		"events":         events,
	}
	if b.Provenance != nil {
		m["provenance"] = map[string]any{
			"digest":    b.Provenance.Digest,
			"method_id": b.Provenance.MethodID,
		}
	}
	return m
}

// Encode serializes the bundle as canonical JSON. Encoding the same
// bundle twice yields identical bytes.
func Encode(b *Bundle) ([]byte, error) {
	data, err := event.MarshalCanonical(b.canonicalMap())
	if err != nil {
		return nil, fmt.Errorf("encode bundle: %w", err)
	}
	return data, nil
}

// Decode parses bundle bytes, rejecting unknown schema versions.
// Payloads keep their JSON number literals so a decode/encode round
// trip is byte stable.
func Decode(data []byte) (*Bundle, error) {
	m, err := event.DecodeJSON(data)
	if err != nil {
		return nil, fmt.Errorf("decode bundle: %w", err)
	}

	version, _ := m["schema_version"].(string)
	if version != SchemaVersion {
		return nil, fmt.Errorf("unsupported bundle schema_version %q, want %q", version, SchemaVersion)
	}

	b := &Bundle{SchemaVersion: version}

	runMap, ok := m["run"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("bundle missing run object")
	}
	b.Run = event.Run{
		RunID:     stringField(runMap, "run_id"),
		Goal:      stringField(runMap, "goal"),
		Mode:      event.Mode(stringField(runMap, "mode")),
		Status:    event.Status(stringField(runMap, "status")),
		CreatedAt: stringField(runMap, "created_at"),
	}
	if b.Run.RunID == "" {
		return nil, fmt.Errorf("bundle run missing run_id")
	}

	rawEvents, ok := m["events"].([]any)
	if !ok {
		return nil, fmt.Errorf("bundle missing events array")
	}
	b.Events = make([]event.Event, 0, len(rawEvents))
	for i, raw := range rawEvents {
		em, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("bundle event %d is not an object", i)
		}
		seq, err := intField(em, "seq")
		if err != nil {
			return nil, fmt.Errorf("bundle event %d: %w", i, err)
		}
		payload, _ := em["payload"].(map[string]any)
		b.Events = append(b.Events, event.Event{
			EventID: stringField(em, "event_id"),
			RunID:   stringField(em, "run_id"),
			Seq:     seq,
			Type:    stringField(em, "type"),
			TS:      stringField(em, "ts"),
			Payload: payload,
		})
	}

	if provMap, ok := m["provenance"].(map[string]any); ok {
		b.Provenance = &provenance.Provenance{
			Digest:   stringField(provMap, "digest"),
			MethodID: stringField(provMap, "method_id"),
		}
	}
	return b, nil
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func intField(m map[string]any, key string) (int64, error) {
	n, ok := m[key].(json.Number)
	if !ok {
		return 0, fmt.Errorf("field %s is not a number", key)
	}
	v, err := n.Int64()
	if err != nil {
		return 0, fmt.Errorf("field %s: %w", key, err)
	}
	return v, nil
}
