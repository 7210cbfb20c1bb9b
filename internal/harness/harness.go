package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/vizbridge/internal/bridge"
	"github.com/roach88/vizbridge/internal/compiler"
	"github.com/roach88/vizbridge/internal/engine"
	"github.com/roach88/vizbridge/internal/ir"
	"github.com/roach88/vizbridge/internal/reactive"
	"github.com/roach88/vizbridge/internal/testutil"
)

// Hook names used in the trace.
const (
	HookInit    = "init"
	HookReady   = "ready"
	HookDestroy = "destroy"
)

const defaultQuiesceTimeout = 5 * time.Second

var (
	errNoPendingRender = errors.New("harness: no render pending")
	errNoEngine        = errors.New("harness: no such engine")
	errRenderFailed    = errors.New("harness: render failed")
)

// ErrorNames maps the names accepted by Step.Error to the errors they match
// with errors.Is.
var ErrorNames = map[string]error{
	"used_outside_provider": bridge.ErrUsedOutsideProvider,
	"already_mounted":       bridge.ErrAlreadyMounted,
	"not_mounted":           bridge.ErrNotMounted,
	"construct":             testutil.ErrConstruct,
	"no_pending_render":     errNoPendingRender,
	"no_engine":             errNoEngine,
}

// Option configures a scenario run.
type Option func(*runner)

// WithLogger sets the logger handed to the controller. Defaults to a
// discarding logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *runner) {
		r.logger = l
	}
}

// WithQuiesceTimeout bounds the wait for in-flight pushes after each step.
func WithQuiesceTimeout(d time.Duration) Option {
	return func(r *runner) {
		r.timeout = d
	}
}

// runner executes one scenario.
//
// After every step the runner waits until each push the controller started
// has either settled or is blocked on a gated render, so the trace of a run
// is deterministic.
type runner struct {
	scenario *Scenario
	logger   *slog.Logger
	timeout  time.Duration

	ctx     context.Context
	clock   *engine.Clock
	factory *testutil.FakeFactory
	props   *reactive.Signal[bridge.Props]
	ctrl    *bridge.Controller
	wg      sync.WaitGroup

	mu       sync.Mutex
	trace    []TraceEvent
	started  int
	inflight int
}

// Run executes a scenario against a fresh controller and fake engine
// factory and returns the result.
//
// Execution flow:
//  1. Build the initial Props (inline fixture or compiled CUE graph)
//  2. Execute steps, waiting for the bridge to go quiet after each one
//  3. Snapshot the trace and the engine call logs
//  4. Evaluate assertions against the snapshot
//  5. Unmount and release any renders still pending
//
// A returned error means the scenario could not be executed. Step and
// assertion failures are reported in Result.Errors.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	r := &runner{
		scenario: scenario,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		timeout:  defaultQuiesceTimeout,
		clock:    engine.NewClock(),
		factory:  testutil.NewFakeFactory(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if scenario.Gated {
		r.factory.Gated()
	}
	if scenario.FailConstruct {
		r.factory.FailWith(testutil.ErrConstruct)
	}

	initial, err := r.initialProps()
	if err != nil {
		return nil, err
	}
	r.props = reactive.NewSignal(initial)

	ctrlOpts := []bridge.Option{
		bridge.WithLogger(r.logger),
		bridge.WithClock(r.clock),
		bridge.WithIDGenerator(&sequentialIDs{}),
		bridge.WithRecorder(bridge.RecorderFunc(r.recordLifecycle)),
		bridge.WithErrorHandler(func(err error) {
			r.logger.Debug("render failed", "scenario", scenario.Name, "error", err)
		}),
	}
	if scenario.LatestReadyOnly {
		ctrlOpts = append(ctrlOpts, bridge.WithLatestReadyOnly())
	}
	r.ctrl = bridge.New(r.props, r.factory.Factory(), ctrlOpts...)

	ctx, cancel := context.WithCancel(context.Background())
	r.ctx = ctx
	defer func() {
		r.ctrl.Unmount()
		for _, f := range r.factory.Engines() {
			f.ReleaseAll()
		}
		cancel()
		r.wg.Wait()
	}()

	result := NewResult()
	for i, step := range scenario.Steps {
		detail := r.traceStep(step)
		err := r.execute(step, detail)
		if err != nil {
			r.mu.Lock()
			detail["error"] = ir.String(err.Error())
			r.mu.Unlock()
		}
		checkStepError(i, step, err, result)

		if err := r.quiesce(); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Action, err)
		}
	}

	r.snapshot(result)
	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// initialProps builds the first Props revision with the harness hooks.
func (r *runner) initialProps() (bridge.Props, error) {
	if r.scenario.Spec == "" {
		return r.withHooks(r.scenario.Props.Props(r.handler)), nil
	}

	data, err := os.ReadFile(r.scenario.Spec)
	if err != nil {
		return bridge.Props{}, fmt.Errorf("failed to read spec: %w", err)
	}
	v := cuecontext.New().CompileBytes(data, cue.Filename(r.scenario.Spec))
	if err := v.Err(); err != nil {
		return bridge.Props{}, fmt.Errorf("failed to compile spec: %w", err)
	}
	gv := v.LookupPath(cue.MakePath(cue.Str("graph"), cue.Str(r.scenario.Graph)))
	if !gv.Exists() {
		return bridge.Props{}, fmt.Errorf("graph %q not found in %s", r.scenario.Graph, r.scenario.Spec)
	}
	spec, err := compiler.CompileGraph(gv)
	if err != nil {
		return bridge.Props{}, err
	}
	if errs := compiler.Validate(spec); len(errs) > 0 {
		return bridge.Props{}, fmt.Errorf("graph %q: %w", r.scenario.Graph, errs[0])
	}
	return r.withHooks(spec.Props(r.handler)), nil
}

func (r *runner) withHooks(p bridge.Props) bridge.Props {
	p.OnInit = func(engine.Engine) { r.add(TraceHook, HookInit, nil) }
	p.OnReady = func(engine.Engine) { r.add(TraceHook, HookReady, nil) }
	p.OnDestroy = func(engine.Engine) { r.add(TraceHook, HookDestroy, nil) }
	return p
}

// handler returns the traced handler for event.
func (r *runner) handler(event string) engine.Handler {
	return func(ev engine.Event) {
		var detail ir.Object
		if ev.Target != "" {
			detail = ir.Obj(ir.O("target", ir.String(ev.Target)))
		}
		r.add(TraceHandler, event, detail)
	}
}

// execute performs one step. detail is the step's trace detail; it may be
// extended under r.mu.
func (r *runner) execute(step Step, detail ir.Object) error {
	switch step.Action {
	case ActionMount:
		return r.ctrl.Mount(r.ctx)

	case ActionUnmount:
		r.ctrl.Unmount()
		return nil

	case ActionSetProps:
		r.props.Set(r.withHooks(step.Props.Props(r.handler)))
		return nil

	case ActionEmit:
		f, err := r.engine(step.Engine)
		if err != nil {
			return err
		}
		times := step.Times
		if times == 0 {
			times = 1
		}
		for range times {
			f.Emit(engine.Event{Type: step.Event, Target: step.Target})
		}
		return nil

	case ActionReconfigure:
		return r.reconfigure(step, detail)

	case ActionReleaseRender, ActionFailRender:
		f, err := r.engine(step.Engine)
		if err != nil {
			return err
		}
		var ok bool
		if step.Action == ActionReleaseRender {
			ok = f.Release()
		} else {
			renderErr := errRenderFailed
			if step.Message != "" {
				renderErr = errors.New(step.Message)
			}
			ok = f.Fail(renderErr)
		}
		if !ok {
			return errNoPendingRender
		}
		return nil

	case ActionUse:
		ctx := r.ctrl.Context(r.ctx)
		if step.Outside {
			ctx = context.Background()
		}
		_, err := bridge.Use(ctx)
		return err

	default:
		return fmt.Errorf("unknown action %q", step.Action)
	}
}

// reconfigure pushes through the provided graph, like a descendant would.
// With gated renders the push cannot finish inside the step, so it runs in
// the background and its outcome shows up in the lifecycle trace.
func (r *runner) reconfigure(step Step, detail ir.Object) error {
	g, err := bridge.Use(r.ctrl.Context(r.ctx))
	if err != nil {
		return err
	}
	opts := step.Props.Options()

	if !r.scenario.Gated {
		o, err := g.Push(r.ctx, opts)
		r.mu.Lock()
		detail["status"] = ir.String(o.Status.String())
		r.mu.Unlock()
		return err
	}

	r.mu.Lock()
	before := r.started
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if _, err := g.Push(r.ctx, opts); err != nil {
			r.logger.Debug("background reconfigure", "error", err)
		}
	}()

	return r.waitFor(func() bool { return r.started > before })
}

// engine returns the engine at index, or the most recent one.
func (r *runner) engine(index *int) (*testutil.FakeEngine, error) {
	engines := r.factory.Engines()
	if index == nil {
		if len(engines) == 0 {
			return nil, errNoEngine
		}
		return engines[len(engines)-1], nil
	}
	if *index >= len(engines) {
		return nil, errNoEngine
	}
	return engines[*index], nil
}

// recordLifecycle receives the controller's lifecycle events.
func (r *runner) recordLifecycle(_ context.Context, ev bridge.LifecycleEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev.Kind {
	case bridge.KindPush:
		r.started++
		r.inflight++
	case bridge.KindPushSkipped:
		r.started++
	case bridge.KindReady, bridge.KindPushStale, bridge.KindPushSuperseded, bridge.KindPushFailed:
		r.inflight--
	}

	// Option hashes change with any fixture tweak; generations identify
	// pushes well enough in a trace.
	detail := ev.Detail.Clone()
	delete(detail, "options_hash")
	r.trace = append(r.trace, TraceEvent{
		Seq:    ev.Seq,
		Type:   TraceLifecycle,
		Name:   ev.Kind,
		Detail: detail,
	})
	return nil
}

func (r *runner) traceStep(step Step) ir.Object {
	detail := ir.Object{}
	if step.Event != "" {
		detail["event"] = ir.String(step.Event)
	}
	if step.Target != "" {
		detail["target"] = ir.String(step.Target)
	}
	r.add(TraceStep, step.Action, detail)
	return detail
}

func (r *runner) add(typ, name string, detail ir.Object) {
	seq := r.clock.Next()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trace = append(r.trace, TraceEvent{Seq: seq, Type: typ, Name: name, Detail: detail})
}

// quiesce waits until every in-flight push is blocked on a pending render.
func (r *runner) quiesce() error {
	return r.waitFor(func() bool {
		pending := 0
		for _, f := range r.factory.Engines() {
			pending += f.Pending()
		}
		return r.inflight == pending
	})
}

// waitFor polls cond, evaluated under r.mu, until it holds or the quiesce
// timeout passes.
func (r *runner) waitFor(cond func() bool) error {
	deadline := time.Now().Add(r.timeout)
	for {
		r.mu.Lock()
		ok := cond()
		inflight := r.inflight
		r.mu.Unlock()
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("bridge did not go quiet within %s (%d pushes in flight)", r.timeout, inflight)
		}
		time.Sleep(time.Millisecond)
	}
}

// snapshot copies the trace, ordered by seq, and the engine call logs into
// result.
func (r *runner) snapshot(result *Result) {
	r.mu.Lock()
	trace := make([]TraceEvent, len(r.trace))
	copy(trace, r.trace)
	r.mu.Unlock()

	sort.SliceStable(trace, func(i, j int) bool { return trace[i].Seq < trace[j].Seq })
	result.Trace = trace

	for _, f := range r.factory.Engines() {
		calls := f.Calls()
		log := make([]string, len(calls))
		for i, c := range calls {
			log[i] = c.Op
			if c.Event != "" {
				log[i] += ":" + c.Event
			}
		}
		result.Engines = append(result.Engines, log)
	}
}

// checkStepError compares a step's error with the one it expects.
func checkStepError(index int, step Step, err error, result *Result) {
	switch {
	case step.Error == "" && err != nil:
		result.AddError(fmt.Sprintf("steps[%d] %s: unexpected error: %v", index, step.Action, err))
	case step.Error != "" && err == nil:
		result.AddError(fmt.Sprintf("steps[%d] %s: expected error %s, got none", index, step.Action, step.Error))
	case step.Error != "" && !errors.Is(err, ErrorNames[step.Error]):
		result.AddError(fmt.Sprintf("steps[%d] %s: expected error %s, got %v", index, step.Action, step.Error, err))
	}
}

// sequentialIDs names graphs graph-1, graph-2, ... in mount order.
type sequentialIDs struct {
	mu sync.Mutex
	n  int
}

func (g *sequentialIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("graph-%d", g.n)
}
