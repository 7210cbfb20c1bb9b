package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vizbridge/internal/compiler"
)

func TestValidate_ValidGraphs(t *testing.T) {
	stdout, _, err := execute(t, NewValidateCommand(testRootOpts("text")), graphsDir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ All graphs valid (2)")
}

func TestValidate_ValidGraphsJSON(t *testing.T) {
	stdout, _, err := execute(t, NewValidateCommand(testRootOpts("json")), graphsDir)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, []string{"social", "tree"}, resp.Data.Graphs)
}

func TestValidate_VerboseGoesToStderr(t *testing.T) {
	opts := testRootOpts("json")
	opts.Verbose = true

	stdout, stderr, err := execute(t, NewValidateCommand(opts), graphsDir)
	require.NoError(t, err)
	assert.Contains(t, stderr, "Validating graph: social")
	assert.NotContains(t, stdout, "Validating")
}

func TestValidate_NonExistentDirectory(t *testing.T) {
	stdout, _, err := execute(t, NewValidateCommand(testRootOpts("text")), "/nonexistent/directory/path")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeNotFound)
	assert.Contains(t, stdout, "not found")
}

func TestValidate_EmptyDirectory(t *testing.T) {
	_, _, err := execute(t, NewValidateCommand(testRootOpts("text")), t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeNoFiles)
}

func TestValidate_DanglingEdge(t *testing.T) {
	stdout, _, err := execute(t, NewValidateCommand(testRootOpts("text")), invalidDir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "✗ Validation failed")
	assert.Contains(t, stdout, "graph dangling")
	assert.Contains(t, stdout, compiler.ErrDanglingEdge+": data.edges[0].target")
}

func TestValidate_DanglingEdgeJSON(t *testing.T) {
	stdout, _, err := execute(t, NewValidateCommand(testRootOpts("json")), invalidDir)
	require.Error(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.Len(t, resp.Data.Errors, 1)
	assert.Equal(t, "dangling", resp.Data.Errors[0].Graph)
	assert.Equal(t, compiler.ErrDanglingEdge, resp.Error.Code)
}

func TestValidate_CompileErrorHasLine(t *testing.T) {
	stdout, _, err := execute(t, NewValidateCommand(testRootOpts("json")), brokenDir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Data ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	require.Len(t, resp.Data.Errors, 1)
	issue := resp.Data.Errors[0]
	assert.Equal(t, "load", issue.Field)
	assert.Equal(t, compiler.ErrMissingElementID, issue.Code)
	assert.Contains(t, issue.Message, "data.nodes[0].id")
	assert.Greater(t, issue.Line, 0)
}
