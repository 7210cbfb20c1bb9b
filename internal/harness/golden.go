package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/vizbridge/internal/ir"
)

// TraceSnapshot captures the observable behavior of a scenario execution:
// the trace and every engine's call log.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEvent `json:"trace"`
	Engines      [][]string   `json:"engines"`
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical
// JSON serialization. ir.MarshalCanonical only handles IR types and plain
// Go values.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	trace := make([]any, len(s.Trace))
	for i, ev := range s.Trace {
		m := map[string]any{
			"seq":  ev.Seq,
			"type": ev.Type,
			"name": ev.Name,
		}
		if len(ev.Detail) > 0 {
			m["detail"] = ev.Detail
		}
		trace[i] = m
	}

	engines := make([]any, len(s.Engines))
	for i, log := range s.Engines {
		calls := make([]any, len(log))
		for j, c := range log {
			calls[j] = c
		}
		engines[i] = calls
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         trace,
		"engines":       engines,
	}
}

// Marshal returns the snapshot as canonical JSON.
func (s *TraceSnapshot) Marshal() ([]byte, error) {
	return ir.MarshalCanonical(s.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails. Test failure (via goldie)
// occurs if the snapshot doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
		Engines:      result.Engines,
	}
	data, err := snapshot.Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
