package cli

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "vizbridge", cmd.Use)
	assert.Contains(t, cmd.Long, "CUE graph definitions")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"validate", "render", "test", "trace"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
	assert.Equal(t, "false", verbose.DefValue)

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)

	require.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}

func TestRenderCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	render, _, err := cmd.Find([]string{"render"})
	require.NoError(t, err)

	graph := render.Flags().Lookup("graph")
	require.NotNil(t, graph)
	assert.Equal(t, "g", graph.Shorthand)
	require.NotNil(t, render.Flags().Lookup("db"))
	require.NotNil(t, render.Flags().Lookup("emit"))
}

func TestRoot_InvalidFormat(t *testing.T) {
	_, _, err := execute(t, NewRootCommand(), "--format", "xml", "validate", graphsDir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestRoot_LoadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "vizbridge.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`log_level = "verbose"`), 0644))

	_, _, err := execute(t, NewRootCommand(), "--config", cfgPath, "validate", graphsDir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeConfig)
	assert.Contains(t, err.Error(), "log_level")
}

func TestRoot_ValidateThroughRoot(t *testing.T) {
	before := slog.Default()
	t.Cleanup(func() { slog.SetDefault(before) })

	stdout, _, err := execute(t, NewRootCommand(), "validate", graphsDir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ All graphs valid (2)")
}

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		level   string
		verbose bool
		want    slog.Level
	}{
		{"info", false, slog.LevelInfo},
		{"info", true, slog.LevelDebug},
		{"debug", false, slog.LevelDebug},
		{"trace", false, LevelTrace},
		{"trace", true, LevelTrace},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l := newLogger(&bytes.Buffer{}, tt.level, tt.verbose)
			assert.True(t, l.Enabled(context.Background(), tt.want))
			assert.False(t, l.Enabled(context.Background(), tt.want-1))
		})
	}
}

func TestNewLogger_TraceLevelName(t *testing.T) {
	buf := &bytes.Buffer{}
	l := newLogger(buf, "trace", false)
	l.Log(context.Background(), LevelTrace, "lifecycle", "kind", "mount")

	line := strings.TrimSpace(buf.String())
	assert.Contains(t, line, "level=TRACE")
	assert.Contains(t, line, "kind=mount")
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(assert.AnError))
	assert.Equal(t, ExitCommandError, GetExitCode(WrapExitError(ExitCommandError, "boom", assert.AnError)))
}
