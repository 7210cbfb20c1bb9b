package harness

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vizbridge/internal/bridge"
	"github.com/roach88/vizbridge/internal/ir"
)

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return s
}

func TestRun_Scenarios(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".yaml")
		t.Run(name, func(t *testing.T) {
			s, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Empty(t, result.Errors)
		})
	}
}

func TestRun_MinimalScenario(t *testing.T) {
	scenario := &Scenario{
		Name:        "minimal",
		Description: "Minimal mount",
		Props:       PropsFixture{ID: "g1", Nodes: []string{"a"}},
		Steps:       []Step{{Action: ActionMount}},
		Assertions:  []Assertion{{Type: AssertReadyCount, Count: 1}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Engines, 1)
	assert.Equal(t, []string{"construct", "set_options", "render", "render_done"}, result.Engines[0])

	assert.Equal(t, TraceStep, result.Trace[0].Type)
	assert.Equal(t, ActionMount, result.Trace[0].Name)
	for i := 1; i < len(result.Trace); i++ {
		assert.Less(t, result.Trace[i-1].Seq, result.Trace[i].Seq)
	}
	assert.Equal(t, 1, result.Count(TraceLifecycle, bridge.KindPublish))
}

func TestRun_GeneratedIDWhenPropsHaveNone(t *testing.T) {
	scenario := &Scenario{
		Name:        "generated_id",
		Description: "Fallback identifier is stable across revisions",
		Props:       PropsFixture{Nodes: []string{"a"}},
		Steps: []Step{
			{Action: ActionMount},
			{Action: ActionSetProps, Props: &PropsFixture{Nodes: []string{"a", "b"}}},
			{Action: ActionUnmount},
			{Action: ActionMount},
		},
		Assertions: []Assertion{{Type: AssertEngineCount, Count: 2}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	var containers []ir.Value
	for _, ev := range result.Trace {
		if ev.Type == TraceLifecycle && ev.Name == bridge.KindMount {
			containers = append(containers, ev.Detail["container"])
		}
	}
	assert.Equal(t, []ir.Value{ir.String("graph-1"), ir.String("graph-2")}, containers)
}

func TestRun_StepErrorMismatchFails(t *testing.T) {
	scenario := &Scenario{
		Name:        "mismatch",
		Description: "Expected error that does not happen",
		Props:       PropsFixture{ID: "g1"},
		Steps: []Step{
			{Action: ActionMount, Error: "already_mounted"},
			{Action: ActionReleaseRender},
		},
		Assertions: []Assertion{{Type: AssertReadyCount, Count: 1}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "expected error already_mounted, got none")
	assert.Contains(t, result.Errors[1], "unexpected error")
	assert.Contains(t, result.Errors[1], "no render pending")
}

func TestRun_AssertionFailureReported(t *testing.T) {
	scenario := &Scenario{
		Name:        "wrong_count",
		Description: "Assertion that does not hold",
		Props:       PropsFixture{ID: "g1"},
		Steps:       []Step{{Action: ActionMount}, {Action: ActionUnmount}},
		Assertions: []Assertion{
			{Type: AssertCallCount, Op: "destroy", Count: 2},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "destroy called 2 times")
}

func TestRun_CUEGraph(t *testing.T) {
	result, err := Run(loadTestScenario(t, "cue_graph"))
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Engines, 1)
	assert.Contains(t, result.Engines[0], "on:afterdraw")
	assert.Equal(t, 2, result.Count(TraceHandler, "node:click"))
}

func TestRun_SpecErrors(t *testing.T) {
	dir := t.TempDir()
	spec := filepath.Join(dir, "bad.cue")
	require.NoError(t, os.WriteFile(spec, []byte(`graph: g: data: edges: [{source: "a", target: "ghost"}]`), 0644))

	_, err := Run(&Scenario{
		Name:        "bad_spec",
		Description: "Dangling edge",
		Spec:        spec,
		Graph:       "g",
		Steps:       []Step{{Action: ActionMount}},
		Assertions:  []Assertion{{Type: AssertReadyCount, Count: 1}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E111")

	_, err = Run(&Scenario{
		Name:        "missing_graph",
		Description: "Unknown graph name",
		Spec:        spec,
		Graph:       "other",
		Steps:       []Step{{Action: ActionMount}},
		Assertions:  []Assertion{{Type: AssertReadyCount, Count: 1}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `graph "other" not found`)
}
