package harness

import (
	"path/filepath"
	"testing"
)

// TestScenarios_Golden runs every scenario under testdata/scenarios
// and compares its trace against the matching golden file.
func TestScenarios_Golden(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) == 0 {
		t.Fatal("no scenario files found")
	}

	for _, path := range paths {
		scenario, err := LoadScenario(path)
		if err != nil {
			t.Fatalf("load %s: %v", path, err)
		}
		t.Run(scenario.Name, func(t *testing.T) {
			if err := RunWithGolden(t, scenario); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestSnapshot_Deterministic(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "dry-run-success.yaml"))
	if err != nil {
		t.Fatal(err)
	}

	first, err := Run(scenario)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Run(scenario)
	if err != nil {
		t.Fatal(err)
	}

	a, err := (&TraceSnapshot{ScenarioName: scenario.Name, Run: first.Run, Events: first.Events}).Marshal()
	if err != nil {
		t.Fatal(err)
	}
	b, err := (&TraceSnapshot{ScenarioName: scenario.Name, Run: second.Run, Events: second.Events}).Marshal()
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Error("two executions of the same scenario produced different traces")
	}
}
