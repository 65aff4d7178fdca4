package bundle

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relay/internal/event"
	"github.com/roach88/relay/internal/replay"
	"github.com/roach88/relay/internal/router"
	"github.com/roach88/relay/internal/store"
)

func deterministicStore(t *testing.T) *store.Store {
	t.Helper()
	base := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	tick := 0
	seq := 0
	s, err := store.Open(store.MemoryPath,
		store.WithTimestampFunc(func() time.Time {
			tick++
			return base.Add(time.Duration(tick) * time.Millisecond)
		}),
		store.WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("evt-%04d", seq)
		}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// seedRun drives a small dry-run through the router so the exported
// content is a realistic event stream.
func seedRun(t *testing.T, s *store.Store, runID string) {
	t.Helper()
	r, err := router.New(s, router.WithRunIDGenerator(func() string { return runID }))
	require.NoError(t, err)

	_, err = r.Run(context.Background(), router.Request{
		Goal: "bundle fixture",
		Mode: event.ModeDryRun,
		Plan: []event.Step{
			{StepID: "s1", Intent: "first", Call: event.Call{Tool: "fs", Method: "read_file",
				Args: map[string]any{"path": "/tmp/in"}}},
			{StepID: "s2", Intent: "second", Call: event.Call{Tool: "fs", Method: "write_file",
				Args: map[string]any{"path": "/tmp/out"}}},
		},
	})
	require.NoError(t, err)
}

func TestExport_MissingRun(t *testing.T) {
	s := deterministicStore(t)

	_, err := Export(context.Background(), s, "nope", true)
	assert.True(t, store.IsRunNotFound(err))
}

func TestExport_Idempotent(t *testing.T) {
	s := deterministicStore(t)
	seedRun(t, s, "run-x")
	ctx := context.Background()

	b1, err := Export(ctx, s, "run-x", true)
	require.NoError(t, err)
	b2, err := Export(ctx, s, "run-x", true)
	require.NoError(t, err)

	data1, err := Encode(b1)
	require.NoError(t, err)
	data2, err := Encode(b2)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data1, data2), "repeated exports must be byte-identical")
}

func TestExport_ProvenanceOptional(t *testing.T) {
	s := deterministicStore(t)
	seedRun(t, s, "run-x")
	ctx := context.Background()

	with, err := Export(ctx, s, "run-x", true)
	require.NoError(t, err)
	require.NotNil(t, with.Provenance)
	assert.Len(t, with.Provenance.Digest, 64)

	without, err := Export(ctx, s, "run-x", false)
	require.NoError(t, err)
	assert.Nil(t, without.Provenance)

	// Provenance does not change the content digest.
	d1, err := with.Digest()
	require.NoError(t, err)
	d2, err := without.Digest()
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
}

func TestEncodeDecode_RoundTripStable(t *testing.T) {
	s := deterministicStore(t)
	seedRun(t, s, "run-x")

	b, err := Export(context.Background(), s, "run-x", true)
	require.NoError(t, err)

	data, err := Encode(b)
	require.NoError(t, err)
	decoded, err := Decode(data)
	require.NoError(t, err)

	redata, err := Encode(decoded)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, redata), "decode/encode must be byte stable")

	assert.Equal(t, b.Run, decoded.Run)
	assert.Equal(t, len(b.Events), len(decoded.Events))
	assert.Equal(t, b.Provenance.Digest, decoded.Provenance.Digest)
}

func TestDecode_UnsupportedSchemaVersion(t *testing.T) {
	_, err := Decode([]byte(`{"schema_version":"9.9","run":{"run_id":"r"},"events":[]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema_version")
}

func TestDecode_Malformed(t *testing.T) {
	for name, data := range map[string]string{
		"not json":    `{{{`,
		"missing run": `{"schema_version":"0.3","events":[]}`,
		"bad seq":     `{"schema_version":"0.3","run":{"run_id":"r"},"events":[{"event_id":"e","seq":"zero"}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(data))
			assert.Error(t, err)
		})
	}
}

func TestImport_RoundTrip(t *testing.T) {
	src := deterministicStore(t)
	seedRun(t, src, "run-x")
	ctx := context.Background()

	b, err := Export(ctx, src, "run-x", true)
	require.NoError(t, err)
	originalDigest, err := b.Digest()
	require.NoError(t, err)

	dst := deterministicStore(t)
	result, err := Import(ctx, dst, b, ImportOptions{Mode: RejectOnConflict})
	require.NoError(t, err)
	assert.Equal(t, "run-x", result.RunID)
	assert.False(t, result.Remap)

	// Replay of the imported run is clean.
	rep, err := replay.Replay(ctx, dst, "run-x", true)
	require.NoError(t, err)
	assert.True(t, rep.OK, "violations: %+v", rep.Violations)

	// Re-export preserves the digest.
	reexported, err := Export(ctx, dst, "run-x", true)
	require.NoError(t, err)
	assert.Equal(t, originalDigest, reexported.Provenance.Digest)
}

func TestImport_DigestMismatch(t *testing.T) {
	src := deterministicStore(t)
	seedRun(t, src, "run-x")
	ctx := context.Background()

	b, err := Export(ctx, src, "run-x", true)
	require.NoError(t, err)
	b.Run.Goal = "tampered"

	dst := deterministicStore(t)
	_, err = Import(ctx, dst, b, ImportOptions{Mode: RejectOnConflict})
	var mismatch *DigestMismatchError
	require.ErrorAs(t, err, &mismatch)

	// Nothing written.
	run, err := dst.GetRun(ctx, "run-x")
	require.NoError(t, err)
	assert.Nil(t, run)
}

func TestImport_SkipDigestVerify(t *testing.T) {
	src := deterministicStore(t)
	seedRun(t, src, "run-x")
	ctx := context.Background()

	b, err := Export(ctx, src, "run-x", true)
	require.NoError(t, err)
	b.Provenance.Digest = "0000"

	dst := deterministicStore(t)
	_, err = Import(ctx, dst, b, ImportOptions{Mode: RejectOnConflict, SkipDigestVerify: true})
	assert.NoError(t, err)
}

func TestImport_RejectOnConflict(t *testing.T) {
	src := deterministicStore(t)
	seedRun(t, src, "run-x")
	ctx := context.Background()

	b, err := Export(ctx, src, "run-x", true)
	require.NoError(t, err)

	// Importing into the source store collides.
	_, err = Import(ctx, src, b, ImportOptions{Mode: RejectOnConflict})
	assert.True(t, store.IsRunExists(err))
}

func TestImport_NewRunID(t *testing.T) {
	src := deterministicStore(t)
	seedRun(t, src, "run-x")
	ctx := context.Background()

	b, err := Export(ctx, src, "run-x", true)
	require.NoError(t, err)

	n := 0
	result, err := Import(ctx, src, b, ImportOptions{
		Mode:         NewRunID,
		NewRunIDFunc: func() string { return "run-y" },
		NewEventIDFunc: func() string {
			n++
			return fmt.Sprintf("new-%04d", n)
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "run-y", result.RunID)
	assert.True(t, result.Remap)

	events, err := src.ReadEvents(ctx, "run-y")
	require.NoError(t, err)
	require.NotEmpty(t, events)

	originals, err := src.ReadEvents(ctx, "run-x")
	require.NoError(t, err)
	require.Equal(t, len(originals), len(events))

	originalIDs := make(map[string]bool)
	for _, evt := range originals {
		originalIDs[evt.EventID] = true
	}
	for i, evt := range events {
		assert.Equal(t, "run-y", evt.RunID)
		assert.False(t, originalIDs[evt.EventID], "event ids must be fresh")
		assert.Equal(t, originals[i].Seq, evt.Seq, "seq preserved")
		assert.Equal(t, originals[i].TS, evt.TS, "ts preserved")
	}

	// Replay of the remapped run is clean.
	rep, err := replay.Replay(ctx, src, "run-y", true)
	require.NoError(t, err)
	assert.True(t, rep.OK, "violations: %+v", rep.Violations)
}

func TestImport_NewRunID_RemapsPayloadReferences(t *testing.T) {
	ctx := context.Background()
	s := deterministicStore(t)

	run := event.Run{
		RunID: "old-run", Goal: "g", Mode: event.ModeDryRun,
		Status: event.StatusCompleted, CreatedAt: "2026-01-01T00:00:00.000Z",
	}
	events := []event.Event{
		{EventID: "a", RunID: "old-run", Seq: 0, Type: event.TypeRunStarted,
			TS: "2026-01-01T00:00:00.001Z", Payload: map[string]any{"goal": "g"}},
		{EventID: "b", RunID: "old-run", Seq: 1, Type: event.TypeRunCompleted,
			TS: "2026-01-01T00:00:00.002Z",
			Payload: map[string]any{
				"summary": map[string]any{"run_id": "old-run"},
				"related": []any{"old-run", "unrelated"},
			}},
	}
	b := &Bundle{SchemaVersion: SchemaVersion, Run: run, Events: events}

	result, err := Import(ctx, s, b, ImportOptions{
		Mode:         NewRunID,
		NewRunIDFunc: func() string { return "new-run" },
	})
	require.NoError(t, err)

	imported, err := s.ReadEvents(ctx, result.RunID)
	require.NoError(t, err)
	summary := imported[1].Payload["summary"].(map[string]any)
	assert.Equal(t, "new-run", summary["run_id"])
	related := imported[1].Payload["related"].([]any)
	assert.Equal(t, "new-run", related[0])
	assert.Equal(t, "unrelated", related[1])
}

func TestImport_Overwrite(t *testing.T) {
	src := deterministicStore(t)
	seedRun(t, src, "run-x")
	ctx := context.Background()

	b, err := Export(ctx, src, "run-x", true)
	require.NoError(t, err)

	// Overwrite the run with itself after tampering with the goal in
	// the store copy.
	result, err := Import(ctx, src, b, ImportOptions{Mode: Overwrite})
	require.NoError(t, err)
	assert.Equal(t, "run-x", result.RunID)

	events, err := src.ReadEvents(ctx, "run-x")
	require.NoError(t, err)
	assert.Equal(t, len(b.Events), len(events))
}

func TestImport_ReplayVerifyRejectsCorruptBundle(t *testing.T) {
	ctx := context.Background()
	s := deterministicStore(t)

	b := &Bundle{
		SchemaVersion: SchemaVersion,
		Run: event.Run{RunID: "r", Goal: "g", Mode: event.ModeDryRun,
			Status: event.StatusCompleted, CreatedAt: "2026-01-01T00:00:00.000Z"},
		Events: []event.Event{
			// No RUN_STARTED, no terminal.
			{EventID: "a", RunID: "r", Seq: 0, Type: event.TypePlanCreated,
				TS: "2026-01-01T00:00:00.001Z", Payload: map[string]any{}},
		},
	}

	_, err := Import(ctx, s, b, ImportOptions{Mode: RejectOnConflict})
	var rejected *ReplayRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.NotEmpty(t, rejected.Violations)

	run, err := s.GetRun(ctx, "r")
	require.NoError(t, err)
	assert.Nil(t, run)
}

func TestImport_InvalidMode(t *testing.T) {
	s := deterministicStore(t)
	b := &Bundle{SchemaVersion: SchemaVersion, Run: event.Run{RunID: "r"}}

	_, err := Import(context.Background(), s, b, ImportOptions{Mode: "upsert"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid import mode")
}
