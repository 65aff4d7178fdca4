package adapter

import (
	"context"
	"testing"

	"github.com/roach88/relay/internal/relayerr"
)

func TestFake_ConfiguredResponse(t *testing.T) {
	f := NewFake()
	f.SetResponse("fs", "read_file", map[string]any{"content": "hello"})

	result, err := f.Call(context.Background(), "fs", "read_file", map[string]any{"path": "/x"})
	if err != nil {
		t.Fatalf("Call() failed: %v", err)
	}
	if result["content"] != "hello" {
		t.Errorf("content = %v, want hello", result["content"])
	}
}

func TestFake_UnconfiguredReturnsPlaceholder(t *testing.T) {
	f := NewFake()

	result, err := f.Call(context.Background(), "fs", "stat", nil)
	if err != nil {
		t.Fatalf("Call() failed: %v", err)
	}
	if result["fake"] != true {
		t.Errorf("placeholder missing: %+v", result)
	}
}

func TestFake_DefaultResponse(t *testing.T) {
	f := NewFake()
	f.SetDefaultResponse(func(tool, method string, _ map[string]any) (map[string]any, error) {
		return map[string]any{"routed": tool + "." + method}, nil
	})

	result, err := f.Call(context.Background(), "a", "b", nil)
	if err != nil {
		t.Fatalf("Call() failed: %v", err)
	}
	if result["routed"] != "a.b" {
		t.Errorf("routed = %v, want a.b", result["routed"])
	}
}

func TestFake_OperationalError(t *testing.T) {
	f := NewFake()
	f.SetOperationalError("net", "get", relayerr.CodeTimeout, "deadline exceeded")

	_, err := f.Call(context.Background(), "net", "get", nil)
	if relayerr.CodeOf(err) != relayerr.CodeTimeout {
		t.Errorf("CodeOf = %s, want TIMEOUT", relayerr.CodeOf(err))
	}
}

func TestFake_BugError(t *testing.T) {
	f := NewFake()
	f.SetBugError("net", "get", "nil dereference in handler")

	_, err := f.Call(context.Background(), "net", "get", nil)
	if !relayerr.IsBug(err) {
		t.Errorf("expected bug error, got %v", err)
	}
}

func TestFake_CallLog(t *testing.T) {
	f := NewFake()

	f.Call(context.Background(), "fs", "read_file", map[string]any{"path": "/a"})
	f.Call(context.Background(), "fs", "write_file", map[string]any{"path": "/b"})

	log := f.CallLog()
	if len(log) != 2 {
		t.Fatalf("len(log) = %d, want 2", len(log))
	}
	if log[0].Method != "read_file" || log[1].Method != "write_file" {
		t.Errorf("log order wrong: %+v", log)
	}
}

func TestFake_Reset(t *testing.T) {
	f := NewFake()
	f.SetResponse("a", "b", map[string]any{"x": 1})
	f.Call(context.Background(), "a", "b", nil)

	f.Reset()

	if len(f.CallLog()) != 0 {
		t.Error("Reset did not clear call log")
	}
	result, _ := f.Call(context.Background(), "a", "b", nil)
	if result["fake"] != true {
		t.Errorf("Reset did not clear responses: %+v", result)
	}
}

func TestFake_WithCapabilities(t *testing.T) {
	f := NewFakeWithID("limited").WithCapabilities(CapDryRun)
	if f.Capabilities().Has(CapApply) {
		t.Error("override did not remove apply")
	}
	if !f.Capabilities().Has(CapDryRun) {
		t.Error("override lost dry_run")
	}
}
