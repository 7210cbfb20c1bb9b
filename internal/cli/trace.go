package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/vizbridge/internal/bridge"
	"github.com/roach88/vizbridge/internal/ir"
	"github.com/roach88/vizbridge/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	GraphID  string
	Kind     string // optional - filter lifecycle events by kind
}

// TraceEvent is one lifecycle event in the timeline.
type TraceEvent struct {
	Seq    int64     `json:"seq"`
	Kind   string    `json:"kind"`
	Detail ir.Object `json:"detail,omitempty"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	GraphID  string               `json:"graph_id"`
	Timeline []TraceEvent         `json:"timeline"`
	Frames   []store.FrameSummary `json:"frames"`
	Stats    TraceStats           `json:"stats"`
}

// TraceStats holds summary statistics for a graph.
type TraceStats struct {
	TotalEvents int `json:"total_events"`
	Frames      int `json:"frames"`
	Mounts      int `json:"mounts"`
	Pushes      int `json:"pushes"`
	Ready       int `json:"ready"`
	Failed      int `json:"failed"`
	Stale       int `json:"stale"`
	Skipped     int `json:"skipped"`
	// Mounted is true when the last mount has no matching unmount.
	Mounted bool `json:"mounted"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the recorded lifecycle of a graph",
		Long: `Show the lifecycle events and frames recorded for a graph.

The output includes:
- Timeline: lifecycle events in seq order (mount, bind, push, ready, ...)
- Frames: every rendered frame with its options hash and element counts
- Stats: summary counts for the graph

Without --graph, lists the graph ids in the database.

Examples:
  vizbridge trace --db ./vizbridge.db
  vizbridge trace --db ./vizbridge.db --graph social
  vizbridge trace --db ./vizbridge.db --graph social --kind push_failed
  vizbridge trace --db ./vizbridge.db --graph social --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().StringVarP(&opts.GraphID, "graph", "g", "", "graph id to trace")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "filter lifecycle events by kind")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	path := opts.Database
	if path == "" {
		path = opts.Config.DB
	}
	// Open creates missing files; a trace of a database that was never
	// written is a usage error.
	if _, err := os.Stat(path); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("database not found: %s", path), nil)
	}

	st, err := store.Open(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}
	defer st.Close()

	if opts.GraphID == "" {
		return listGraphs(ctx, st, formatter)
	}

	events, err := st.ReadLifecycle(ctx, opts.GraphID)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}
	frames, err := st.ReadFrames(ctx, opts.GraphID)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}
	if len(events) == 0 && len(frames) == 0 {
		return formatter.Fail(ExitFailure, ErrCodeUnknownGraph, fmt.Sprintf("no records for graph %q", opts.GraphID), nil)
	}

	result := buildTraceResult(opts.GraphID, events, frames, opts.Kind)

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	printTrace(formatter.Writer, result)
	return nil
}

func listGraphs(ctx context.Context, st *store.Store, formatter *OutputFormatter) error {
	graphs, err := st.Graphs(ctx)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}
	if formatter.Format == "json" {
		return formatter.Success(map[string]any{"graphs": graphs})
	}
	if len(graphs) == 0 {
		fmt.Fprintln(formatter.Writer, "No graphs recorded.")
		return nil
	}
	for _, g := range graphs {
		fmt.Fprintln(formatter.Writer, g)
	}
	return nil
}

// buildTraceResult computes stats over every event and applies the kind
// filter to the timeline only.
func buildTraceResult(graphID string, events []bridge.LifecycleEvent, frames []store.FrameSummary, kind string) TraceResult {
	result := TraceResult{
		GraphID:  graphID,
		Timeline: []TraceEvent{},
		Frames:   frames,
	}

	for _, ev := range events {
		switch ev.Kind {
		case bridge.KindMount:
			result.Stats.Mounts++
			result.Stats.Mounted = true
		case bridge.KindUnmount:
			result.Stats.Mounted = false
		case bridge.KindPush:
			result.Stats.Pushes++
		case bridge.KindReady:
			result.Stats.Ready++
		case bridge.KindPushFailed:
			result.Stats.Failed++
		case bridge.KindPushStale:
			result.Stats.Stale++
		case bridge.KindPushSkipped:
			result.Stats.Skipped++
		}

		if kind != "" && ev.Kind != kind {
			continue
		}
		var detail ir.Object
		if len(ev.Detail) > 0 {
			detail = ev.Detail
		}
		result.Timeline = append(result.Timeline, TraceEvent{Seq: ev.Seq, Kind: ev.Kind, Detail: detail})
	}

	result.Stats.TotalEvents = len(events)
	result.Stats.Frames = len(frames)
	return result
}

// printTrace writes the timeline with frames interleaved by seq.
func printTrace(w io.Writer, r TraceResult) {
	type line struct {
		seq  int64
		text string
	}
	lines := make([]line, 0, len(r.Timeline)+len(r.Frames))
	for _, ev := range r.Timeline {
		text := ev.Kind
		if len(ev.Detail) > 0 {
			if data, err := json.Marshal(ev.Detail); err == nil {
				text += " " + string(data)
			}
		}
		lines = append(lines, line{ev.Seq, text})
	}
	for _, f := range r.Frames {
		lines = append(lines, line{f.Seq, fmt.Sprintf("frame %dx%d nodes=%d edges=%d combos=%d hash=%s",
			f.Width, f.Height, f.Nodes, f.Edges, f.Combos, shortHash(f.OptionsHash))})
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].seq < lines[j].seq })

	fmt.Fprintf(w, "Graph: %s\n\n", r.GraphID)
	for _, l := range lines {
		fmt.Fprintf(w, "  [%3d] %s\n", l.seq, l.text)
	}

	s := r.Stats
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Stats: %d events, %d frames, %d mounts, %d pushes (%d ready, %d failed, %d stale, %d skipped)\n",
		s.TotalEvents, s.Frames, s.Mounts, s.Pushes, s.Ready, s.Failed, s.Stale, s.Skipped)
	if s.Mounted {
		fmt.Fprintln(w, "Status: mounted")
	} else {
		fmt.Fprintln(w, "Status: unmounted")
	}
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
