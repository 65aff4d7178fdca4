package harness

import (
	"testing"
)

func TestRun_DryRunSuccess(t *testing.T) {
	result, err := Run(&Scenario{
		Name: "t",
		Goal: "demo",
		Mode: "dry_run",
		Plan: []ScenarioStep{
			{StepID: "s1", Tool: "fs", Method: "read_file", Args: map[string]any{"path": "/x"}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Response.Error != nil {
		t.Fatalf("unexpected run error: %+v", result.Response.Error)
	}
	if result.Run.Status != "completed" {
		t.Errorf("status = %q", result.Run.Status)
	}
	if got := result.Response.Summary.StepsOK; got != 1 {
		t.Errorf("steps_ok = %d", got)
	}
	if len(result.Events) != 8 {
		t.Errorf("events = %d, want 8", len(result.Events))
	}
	if !result.Response.Results[0].Simulated {
		t.Error("dry_run step not marked simulated")
	}
}

func TestRun_ConfiguredResponses(t *testing.T) {
	result, err := Run(&Scenario{
		Name: "t",
		Goal: "apply",
		Mode: "apply",
		Responses: []ResponseRule{
			{Tool: "db", Method: "migrate", Output: map[string]any{"applied": 3}},
			{Tool: "db", Method: "vacuum", ErrorCode: "TIMEOUT", ErrorMessage: "too slow"},
		},
		Plan: []ScenarioStep{
			{StepID: "s1", Tool: "db", Method: "migrate"},
			{StepID: "s2", Tool: "db", Method: "vacuum"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Run.Status != "completed" {
		t.Errorf("status = %q", result.Run.Status)
	}
	if result.Response.Summary.StepsOK != 1 || result.Response.Summary.StepsError != 1 {
		t.Errorf("summary = %+v", result.Response.Summary)
	}
	if result.Response.Results[1].ErrorCode != "TIMEOUT" {
		t.Errorf("error_code = %q", result.Response.Results[1].ErrorCode)
	}
}

func TestRun_CapabilityOverride(t *testing.T) {
	result, err := Run(&Scenario{
		Name:                "t",
		Goal:                "apply without capability",
		Mode:                "apply",
		AdapterCapabilities: []string{"dry_run"},
		Plan: []ScenarioStep{
			{StepID: "s1", Tool: "fs", Method: "delete"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Response.Error == nil || result.Response.Error.ErrorCode != "CAPABILITY_MISSING" {
		t.Errorf("error = %+v", result.Response.Error)
	}
	if result.Run.Status != "failed" {
		t.Errorf("status = %q", result.Run.Status)
	}
}

func TestRun_ExplicitNullAdapter(t *testing.T) {
	result, err := Run(&Scenario{
		Name:      "t",
		Goal:      "simulate",
		Mode:      "dry_run",
		AdapterID: "null",
		Plan: []ScenarioStep{
			{StepID: "s1", Tool: "fs", Method: "read_file"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Response.Dispatch.AdapterID != "null" {
		t.Errorf("adapter_id = %q", result.Response.Dispatch.AdapterID)
	}
	if result.Response.Dispatch.SelectionSource != "request" {
		t.Errorf("selection_source = %q", result.Response.Dispatch.SelectionSource)
	}
}

func TestRun_PinnedRunID(t *testing.T) {
	result, err := Run(&Scenario{
		Name:  "t",
		Goal:  "pinned",
		Mode:  "dry_run",
		RunID: "run-custom",
		Plan:  nil,
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Run.RunID != "run-custom" {
		t.Errorf("run_id = %q", result.Run.RunID)
	}
}
