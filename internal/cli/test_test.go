package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingScenario = `name: mount_unmount
description: "Mount then unmount"
props:
  id: g1
  width: 600
  height: 400
  nodes: [a]
steps:
  - action: mount
  - action: unmount
assertions:
  - type: engine_count
    count: 1
  - type: call_count
    op: destroy
    count: 1
`

const failingScenario = `name: wrong_count
description: "Expects two engines from a single mount"
props:
  id: g2
  nodes: [a]
steps:
  - action: mount
  - action: unmount
assertions:
  - type: engine_count
    count: 2
`

func writeScenarios(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

func TestTest_PassingScenario(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"mount_unmount.yaml": passingScenario})

	stdout, _, err := execute(t, NewTestCommand(testRootOpts("text")), dir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ mount_unmount")
	assert.Contains(t, stdout, "Test Summary: 1 passed, 0 failed, 1 total")
	assert.Contains(t, stdout, "✓ All scenarios passed")
}

func TestTest_FailingScenario(t *testing.T) {
	dir := writeScenarios(t, map[string]string{
		"mount_unmount.yaml": passingScenario,
		"wrong_count.yaml":   failingScenario,
	})

	stdout, _, err := execute(t, NewTestCommand(testRootOpts("text")), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "✗ wrong_count")
	assert.Contains(t, stdout, "Test Summary: 1 passed, 1 failed, 2 total")
}

func TestTest_Filter(t *testing.T) {
	dir := writeScenarios(t, map[string]string{
		"mount_unmount.yaml": passingScenario,
		"wrong_count.yaml":   failingScenario,
	})

	stdout, _, err := execute(t, NewTestCommand(testRootOpts("text")), dir, "--filter", "mount_*")
	require.NoError(t, err)
	assert.Contains(t, stdout, "1 total")
	assert.NotContains(t, stdout, "wrong_count")

	stdout, _, err = execute(t, NewTestCommand(testRootOpts("text")), dir, "--filter", "nothing_*")
	require.NoError(t, err)
	assert.Contains(t, stdout, "No scenarios found.")
}

func TestTest_UpdateThenCompareGolden(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"mount_unmount.yaml": passingScenario})
	goldenPath := filepath.Join(dir, "golden", "mount_unmount.golden")

	stdout, _, err := execute(t, NewTestCommand(testRootOpts("text")), dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ mount_unmount (golden updated)")

	golden, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.Contains(t, string(golden), "mount_unmount")

	stdout, _, err = execute(t, NewTestCommand(testRootOpts("text")), dir)
	require.NoError(t, err, stdout)
	assert.Contains(t, stdout, "✓ mount_unmount")

	require.NoError(t, os.WriteFile(goldenPath, []byte(`{"scenario":"stale"}`), 0644))
	stdout, _, err = execute(t, NewTestCommand(testRootOpts("text")), dir)
	require.Error(t, err)
	assert.Contains(t, stdout, "trace does not match golden file")
}

func TestTest_JSONOutput(t *testing.T) {
	dir := writeScenarios(t, map[string]string{
		"mount_unmount.yaml": passingScenario,
		"wrong_count.yaml":   failingScenario,
	})

	stdout, _, err := execute(t, NewTestCommand(testRootOpts("json")), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Passed)
	assert.Equal(t, 1, resp.Data.Failed)
}

func TestTest_BadScenarioFile(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"broken.yaml": "name: [unclosed"})

	stdout, _, err := execute(t, NewTestCommand(testRootOpts("text")), dir)
	require.Error(t, err)
	assert.Contains(t, stdout, "✗ broken.yaml")
	assert.Contains(t, stdout, "failed to load scenario")
}

func TestTest_MissingDirectory(t *testing.T) {
	_, _, err := execute(t, NewTestCommand(testRootOpts("text")), "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t, filepath.Join("s", "golden", "x.golden"), goldenFilePath(filepath.Join("s", "x.yaml")))
}
