package bundle

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/roach88/relay/internal/event"
	"github.com/roach88/relay/internal/replay"
	"github.com/roach88/relay/internal/store"
)

// ImportMode controls run_id conflict resolution.
type ImportMode string

const (
	// RejectOnConflict fails when the run already exists.
	RejectOnConflict ImportMode = "reject_on_conflict"

	// NewRunID allocates a fresh run id and remaps all references.
	NewRunID ImportMode = "new_run_id"

	// Overwrite atomically replaces an existing run.
	Overwrite ImportMode = "overwrite"
)

// Valid reports whether m is a known import mode.
func (m ImportMode) Valid() bool {
	switch m {
	case RejectOnConflict, NewRunID, Overwrite:
		return true
	}
	return false
}

// DigestMismatchError reports a bundle whose content does not match
// its recorded provenance digest.
type DigestMismatchError struct {
	Expected string
	Actual   string
}

func (e *DigestMismatchError) Error() string {
	return fmt.Sprintf("bundle digest mismatch: recorded %s, computed %s", e.Expected, e.Actual)
}

// ReplayRejectedError reports a bundle whose events violate the run
// invariants.
type ReplayRejectedError struct {
	Violations []replay.Violation
}

func (e *ReplayRejectedError) Error() string {
	return fmt.Sprintf("bundle events violate %d run invariant(s)", len(e.Violations))
}

// ImportOptions tune verification and id allocation.
type ImportOptions struct {
	Mode ImportMode

	// SkipDigestVerify disables digest verification. Verification is
	// on by default and only applies to bundles carrying provenance.
	SkipDigestVerify bool

	// SkipReplayVerify disables the invariant check on the incoming
	// events. On by default.
	SkipReplayVerify bool

	// NewRunIDFunc and NewEventIDFunc override id allocation under
	// NewRunID mode. Tests use these for determinism.
	NewRunIDFunc   func() string
	NewEventIDFunc func() string
}

// ImportResult reports where the bundle landed.
type ImportResult struct {
	RunID  string `json:"run_id"`
	Remap  bool   `json:"remapped"`
	Digest string `json:"digest"`
}

// Import writes a bundle into the store. The write is a single
// transaction: any failure leaves the store unchanged. Verification
// happens before anything touches the store.
func Import(ctx context.Context, s *store.Store, b *Bundle, opts ImportOptions) (*ImportResult, error) {
	mode := opts.Mode
	if mode == "" {
		mode = RejectOnConflict
	}
	if !mode.Valid() {
		return nil, fmt.Errorf("invalid import mode: %q", opts.Mode)
	}

	digest, err := b.Digest()
	if err != nil {
		return nil, fmt.Errorf("compute digest: %w", err)
	}
	if !opts.SkipDigestVerify && b.Provenance != nil && b.Provenance.Digest != digest {
		return nil, &DigestMismatchError{Expected: b.Provenance.Digest, Actual: digest}
	}

	if !opts.SkipReplayVerify {
		if violations := replay.CheckEvents(b.Events); len(violations) > 0 {
			return nil, &ReplayRejectedError{Violations: violations}
		}
	}

	run := b.Run
	events := append([]event.Event(nil), b.Events...)
	remapped := false

	if mode == NewRunID {
		newRunID := allocID(opts.NewRunIDFunc)
		newEventID := opts.NewEventIDFunc
		if newEventID == nil {
			newEventID = func() string { return uuid.Must(uuid.NewV7()).String() }
		}
		events = remapEvents(events, run.RunID, newRunID, newEventID)
		run.RunID = newRunID
		remapped = true
	}

	if err := s.ImportRun(ctx, run, events, mode == Overwrite); err != nil {
		return nil, err
	}
	return &ImportResult{RunID: run.RunID, Remap: remapped, Digest: digest}, nil
}

func allocID(fn func() string) string {
	if fn != nil {
		return fn()
	}
	return uuid.Must(uuid.NewV7()).String()
}

// remapEvents rewrites the run id on every event, allocates fresh
// event ids, and chases old run id references into payloads (nested
// summaries and echoes included).
func remapEvents(events []event.Event, oldID, newID string, newEventID func() string) []event.Event {
	out := make([]event.Event, len(events))
	for i, evt := range events {
		evt.EventID = newEventID()
		evt.RunID = newID
		if evt.Payload != nil {
			evt.Payload = remapValue(evt.Payload, oldID, newID).(map[string]any)
		}
		out[i] = evt
	}
	return out
}

func remapValue(v any, oldID, newID string) any {
	switch vv := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(vv))
		for k, item := range vv {
			out[k] = remapValue(item, oldID, newID)
		}
		return out
	case []any:
		out := make([]any, len(vv))
		for i, item := range vv {
			out[i] = remapValue(item, oldID, newID)
		}
		return out
	case string:
		if vv == oldID {
			return newID
		}
		return vv
	default:
		return v
	}
}
