package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/roach88/vizbridge/internal/bridge"
	"github.com/roach88/vizbridge/internal/compiler"
	"github.com/roach88/vizbridge/internal/engine"
	"github.com/roach88/vizbridge/internal/reactive"
	"github.com/roach88/vizbridge/internal/store"
	"github.com/roach88/vizbridge/internal/telemetry"
)

const tracerName = "github.com/roach88/vizbridge/internal/cli"

// RenderOptions holds flags for the render command.
type RenderOptions struct {
	*RootOptions
	GraphName string
	DBPath    string
	Emit      []string // "event" or "event=target"
}

// RenderResult summarizes one headless render.
type RenderResult struct {
	Graph       string         `json:"graph"`
	GraphID     string         `json:"graph_id"`
	Frames      int            `json:"frames"`
	Seq         int64          `json:"seq"`
	OptionsHash string         `json:"options_hash"`
	Nodes       int            `json:"nodes"`
	Edges       int            `json:"edges"`
	Combos      int            `json:"combos"`
	Events      map[string]int `json:"events,omitempty"`
}

func (r RenderResult) String() string {
	s := fmt.Sprintf("✓ Rendered graph %s (id %s): %d nodes, %d edges, %d combos, frame #%d",
		r.Graph, r.GraphID, r.Nodes, r.Edges, r.Combos, r.Seq)
	if len(r.Events) > 0 {
		names := make([]string, 0, len(r.Events))
		for name := range r.Events {
			names = append(names, name)
		}
		sort.Strings(names)
		parts := make([]string, len(names))
		for i, name := range names {
			parts[i] = fmt.Sprintf("%s=%d", name, r.Events[name])
		}
		s += "\n  events: " + strings.Join(parts, " ")
	}
	return s
}

// NewRenderCommand creates the render command.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RenderOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "render <graphs-dir>",
		Short: "Mount a graph on the headless engine and record its frames",
		Long: `Mount one graph definition through the bridge on the headless engine.

The first render is awaited (bounded by render_timeout), then the graph is
unmounted. Frames and lifecycle events are written to the SQLite database
and can be inspected with 'vizbridge trace'.

Examples:
  vizbridge render ./graphs --graph social --db frames.db
  vizbridge render ./graphs --graph social --emit node:click=alice`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.GraphName, "graph", "g", "", "graph to render (optional when the directory defines one graph)")
	cmd.Flags().StringVar(&opts.DBPath, "db", "", "database path (default from config)")
	cmd.Flags().StringArrayVar(&opts.Emit, "emit", nil, "event to emit after the first render, as event or event=target (repeatable)")

	return cmd
}

func runRender(opts *RenderOptions, graphsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := opts.logger()
	cfg := opts.Config

	loadResult, loadErrors := LoadGraphs(graphsDir, LoadModeFailFast)
	if len(loadErrors) > 0 {
		var loadErr *LoadError
		if !errors.As(loadErrors[0], &loadErr) {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, loadErrors[0].Error(), nil)
		}
		if loadResult == nil {
			return formatter.Fail(ExitCommandError, loadErr.Code, loadErr.Message, nil)
		}
		return formatter.Fail(ExitFailure, loadErr.Code, loadErr.Message, nil)
	}

	spec, err := selectGraph(loadResult, opts.GraphName)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeUnknownGraph, err.Error(), loadResult.Names())
	}
	if err := validateAndFirstError(spec); err != nil {
		var vErr compiler.ValidationError
		if errors.As(err, &vErr) {
			return formatter.Fail(ExitFailure, vErr.Code, vErr.Error(), nil)
		}
		return formatter.Fail(ExitFailure, ErrCodeGeneric, err.Error(), nil)
	}

	emits, err := parseEmits(opts.Emit)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}

	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = cfg.DB
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	shutdown, err := telemetry.Setup(ctx, telemetry.ServiceName, cfg.OTelEndpoint)
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Warn("flush traces", "error", err)
		}
	}()

	ctx, span := otel.Tracer(tracerName).Start(ctx, "vizbridge.render")
	span.SetAttributes(attribute.String("graph.name", spec.Name))
	defer span.End()
	var traceID string
	if sc := span.SpanContext(); sc.HasTraceID() {
		traceID = sc.TraceID().String()
	}

	counter := newEventCounter(logger)
	props := spec.Props(counter.handler)
	if props.Width == 0 {
		props.Width = cfg.DefaultWidth
	}
	if props.Height == 0 {
		props.Height = cfg.DefaultHeight
	}

	var start int64
	if props.ID != "" {
		if start, err = st.LastSeq(ctx, props.ID); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
		}
	}

	renderErrs := make(chan error, 1)
	clock := engine.NewClockAt(start)
	ctrl := bridge.New(reactive.NewSignal(props),
		engine.HeadlessFactory(
			engine.WithFrameSink(st),
			engine.WithClock(clock),
			engine.WithLogger(logger),
		),
		bridge.WithLogger(logger),
		bridge.WithRecorder(&tracingRecorder{next: st, logger: logger}),
		bridge.WithClock(clock),
		bridge.WithErrorHandler(func(err error) {
			select {
			case renderErrs <- err:
			default:
			}
		}),
	)

	formatter.VerboseLog("Mounting graph %s", spec.Name)
	if err := ctrl.Mount(ctx); err != nil {
		return formatter.Fail(ExitFailure, ErrCodeMount, err.Error(), nil)
	}
	defer ctrl.Unmount()
	graphID := ctrl.ID()

	select {
	case <-ctrl.Settled():
	case <-time.After(cfg.RenderTimeout):
		return formatter.Fail(ExitFailure, ErrCodeRender,
			fmt.Sprintf("first render of %s did not finish within %s", spec.Name, cfg.RenderTimeout), nil)
	case <-ctx.Done():
		return formatter.Fail(ExitFailure, ErrCodeRender, ctx.Err().Error(), nil)
	}
	select {
	case err := <-renderErrs:
		return formatter.Fail(ExitFailure, ErrCodeRender, err.Error(), nil)
	default:
	}

	eng := ctrl.Handle().Load()
	for _, ev := range emits {
		formatter.VerboseLog("Emitting %s on %q", ev.Type, ev.Target)
		eng.Emit(ev)
	}
	ctrl.Unmount()

	all, err := st.ReadFrames(ctx, graphID)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}
	var frames []store.FrameSummary
	for _, f := range all {
		if f.Seq > start {
			frames = append(frames, f)
		}
	}
	if len(frames) == 0 {
		return formatter.Fail(ExitFailure, ErrCodeRender, "no frame recorded for "+graphID, nil)
	}
	last := frames[len(frames)-1]

	return formatter.SuccessWithTrace(RenderResult{
		Graph:       spec.Name,
		GraphID:     graphID,
		Frames:      len(frames),
		Seq:         last.Seq,
		OptionsHash: last.OptionsHash,
		Nodes:       last.Nodes,
		Edges:       last.Edges,
		Combos:      last.Combos,
		Events:      counter.counts(),
	}, traceID)
}

// selectGraph picks the named graph, or the only one when name is empty.
func selectGraph(result *LoadResult, name string) (*compiler.GraphSpec, error) {
	if name == "" {
		if len(result.Graphs) == 1 {
			return result.Graphs[0], nil
		}
		return nil, fmt.Errorf("--graph is required: %d graphs defined", len(result.Graphs))
	}
	g, ok := result.Graph(name)
	if !ok {
		return nil, fmt.Errorf("graph %q not found", name)
	}
	return g, nil
}

// parseEmits parses --emit values. The target follows the first '='.
func parseEmits(values []string) ([]engine.Event, error) {
	events := make([]engine.Event, 0, len(values))
	for _, v := range values {
		name, target, _ := strings.Cut(v, "=")
		if name == "" {
			return nil, fmt.Errorf("invalid --emit %q: event name is required", v)
		}
		if !compiler.KnownEvent(name) {
			return nil, fmt.Errorf("invalid --emit %q: unknown event %s", v, name)
		}
		events = append(events, engine.Event{Type: name, Target: target})
	}
	return events, nil
}

// eventCounter counts handled events by name.
type eventCounter struct {
	logger *slog.Logger

	mu   sync.Mutex
	seen map[string]int
}

func newEventCounter(logger *slog.Logger) *eventCounter {
	return &eventCounter{logger: logger, seen: map[string]int{}}
}

func (c *eventCounter) handler(event string) engine.Handler {
	return func(ev engine.Event) {
		c.mu.Lock()
		c.seen[event]++
		c.mu.Unlock()
		c.logger.Debug("event handled", "event", event, "target", ev.Target)
	}
}

func (c *eventCounter) counts() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.seen) == 0 {
		return nil
	}
	out := make(map[string]int, len(c.seen))
	for k, v := range c.seen {
		out[k] = v
	}
	return out
}

// tracingRecorder logs every lifecycle event at trace level before
// recording it.
type tracingRecorder struct {
	next   bridge.Recorder
	logger *slog.Logger
}

func (r *tracingRecorder) RecordLifecycle(ctx context.Context, ev bridge.LifecycleEvent) error {
	r.logger.Log(ctx, LevelTrace, "lifecycle", "graph", ev.GraphID, "seq", ev.Seq, "kind", ev.Kind)
	return r.next.RecordLifecycle(ctx, ev)
}
