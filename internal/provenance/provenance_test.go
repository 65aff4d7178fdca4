package provenance

import (
	"testing"

	"github.com/roach88/relay/internal/event"
)

func sampleRun() (event.Run, []event.Event) {
	run := event.Run{
		RunID:     "run-1",
		Goal:      "demo",
		Mode:      event.ModeDryRun,
		Status:    event.StatusCompleted,
		CreatedAt: "2026-03-14T09:26:53.000Z",
	}
	events := []event.Event{
		{EventID: "e-0", RunID: "run-1", Seq: 0, Type: event.TypeRunStarted,
			TS: "2026-03-14T09:26:53.001Z", Payload: map[string]any{"goal": "demo"}},
		{EventID: "e-1", RunID: "run-1", Seq: 1, Type: event.TypeRunCompleted,
			TS: "2026-03-14T09:26:53.002Z", Payload: map[string]any{}},
	}
	return run, events
}

func TestDigest_Stable(t *testing.T) {
	run, events := sampleRun()

	a, err := Digest(run, events)
	if err != nil {
		t.Fatalf("Digest() failed: %v", err)
	}
	b, err := Digest(run, events)
	if err != nil {
		t.Fatalf("Digest() failed: %v", err)
	}
	if a != b {
		t.Errorf("digest not stable: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("digest length = %d, want 64 hex chars", len(a))
	}
}

func TestDigest_SensitiveToContent(t *testing.T) {
	run, events := sampleRun()
	base, err := Digest(run, events)
	if err != nil {
		t.Fatalf("Digest() failed: %v", err)
	}

	modRun := run
	modRun.Goal = "different"
	changed, err := Digest(modRun, events)
	if err != nil {
		t.Fatalf("Digest() failed: %v", err)
	}
	if changed == base {
		t.Error("digest unchanged after run mutation")
	}

	modEvents := append([]event.Event(nil), events...)
	modEvents[1].Payload = map[string]any{"extra": true}
	changed, err = Digest(run, modEvents)
	if err != nil {
		t.Fatalf("Digest() failed: %v", err)
	}
	if changed == base {
		t.Error("digest unchanged after payload mutation")
	}
}

func TestDigest_InsensitiveToKeyOrder(t *testing.T) {
	run, events := sampleRun()
	events[0].Payload = map[string]any{"b": int64(2), "a": int64(1)}
	a, err := Digest(run, events)
	if err != nil {
		t.Fatalf("Digest() failed: %v", err)
	}

	events[0].Payload = map[string]any{"a": int64(1), "b": int64(2)}
	b, err := Digest(run, events)
	if err != nil {
		t.Fatalf("Digest() failed: %v", err)
	}
	if a != b {
		t.Error("digest depends on map key order")
	}
}

func TestDigest_EmptyEvents(t *testing.T) {
	run, _ := sampleRun()

	if _, err := Digest(run, nil); err != nil {
		t.Errorf("Digest() with no events failed: %v", err)
	}
}

func TestDerive(t *testing.T) {
	run, events := sampleRun()

	p, err := Derive(run, events)
	if err != nil {
		t.Fatalf("Derive() failed: %v", err)
	}
	if p.MethodID != MethodID {
		t.Errorf("MethodID = %s, want %s", p.MethodID, MethodID)
	}
	digest, _ := Digest(run, events)
	if p.Digest != digest {
		t.Error("Derive digest differs from Digest")
	}
}
