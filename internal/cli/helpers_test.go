package cli

import (
	"bytes"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"

	"github.com/roach88/vizbridge/internal/config"
)

var (
	graphsDir  = filepath.Join("testdata", "graphs")
	invalidDir = filepath.Join("testdata", "invalid")
	brokenDir  = filepath.Join("testdata", "broken")
)

// testRootOpts returns options as the root pre-run hook would set them.
func testRootOpts(format string) *RootOptions {
	return &RootOptions{
		Format: format,
		Config: config.Default(),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// execute runs cmd with args and returns stdout and stderr.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}
