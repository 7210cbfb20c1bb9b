package bridge_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vizbridge/internal/bridge"
	"github.com/roach88/vizbridge/internal/engine"
	"github.com/roach88/vizbridge/internal/ir"
	"github.com/roach88/vizbridge/internal/reactive"
	"github.com/roach88/vizbridge/internal/testutil"
)

const waitFor = 2 * time.Second

// hookLog collects hook invocations from any goroutine.
type hookLog struct {
	mu      sync.Mutex
	entries []string
	ready   int
}

func (l *hookLog) add(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, s)
	if s == "ready" {
		l.ready++
	}
}

func (l *hookLog) Entries() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *hookLog) Ready() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ready
}

// memRecorder keeps lifecycle events in memory.
type memRecorder struct {
	mu     sync.Mutex
	events []bridge.LifecycleEvent
}

func (r *memRecorder) RecordLifecycle(_ context.Context, ev bridge.LifecycleEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *memRecorder) Kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

func (r *memRecorder) Has(kind string) bool {
	for _, k := range r.Kinds() {
		if k == kind {
			return true
		}
	}
	return false
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func twoNodes() ir.GraphData {
	return ir.GraphData{Nodes: []ir.NodeData{{ID: "n1"}, {ID: "n2"}}}
}

func baseProps(log *hookLog) bridge.Props {
	return bridge.Props{
		Width:  800,
		Height: 600,
		Data:   twoNodes(),
		OnInit: func(engine.Engine) { log.add("init") },
		OnReady: func(engine.Engine) {
			log.add("ready")
		},
		OnDestroy: func(engine.Engine) { log.add("destroy") },
	}
}

func newController(t *testing.T, props *reactive.Signal[bridge.Props], ff *testutil.FakeFactory, opts ...bridge.Option) *bridge.Controller {
	t.Helper()
	opts = append([]bridge.Option{
		bridge.WithLogger(quietLogger()),
		bridge.WithIDGenerator(engine.NewFixedGenerator("graph-test-1", "graph-test-2", "graph-test-3")),
	}, opts...)
	return bridge.New(props, ff.Factory(), opts...)
}

func waitSettled(t *testing.T, c *bridge.Controller) {
	t.Helper()
	select {
	case <-c.Settled():
	case <-time.After(waitFor):
		t.Fatal("settle push did not end")
	}
}

func TestMount_ConstructsBindsInitsPublishesThenPushes(t *testing.T) {
	log := &hookLog{}
	ff := testutil.NewFakeFactory()
	var clicks []string

	props := baseProps(log)
	props.Events = bridge.EventMap{
		engine.EventNodeClick: bridge.HandlerFunc(func(ev engine.Event) { clicks = append(clicks, ev.Target) }),
	}

	var c *bridge.Controller
	var opsAtInit []string
	var publishedAtInit bool
	props.OnInit = func(eng engine.Engine) {
		opsAtInit = eng.(*testutil.FakeEngine).Ops()
		publishedAtInit = c.Handle().Populated()
		log.add("init")
	}

	c = newController(t, reactive.NewSignal(props), ff)
	require.NoError(t, c.Mount(context.Background()))
	defer c.Unmount()
	waitSettled(t, c)

	assert.Equal(t, []string{testutil.OpConstruct, testutil.OpOn}, opsAtInit)
	assert.False(t, publishedAtInit, "handle must not be published before OnInit returns")
	assert.True(t, c.Handle().Populated())

	f := ff.Last()
	assert.Equal(t, []string{
		testutil.OpConstruct,
		testutil.OpOn,
		testutil.OpSetOptions,
		testutil.OpRender,
		testutil.OpRenderDone,
	}, f.Ops())
	assert.Equal(t, []string{"init", "ready"}, log.Entries())

	f.Emit(engine.Event{Type: engine.EventNodeClick, Target: "n1"})
	assert.Equal(t, []string{"n1"}, clicks)
}

func TestMount_ConstructionOptionsExcludeContainerFields(t *testing.T) {
	ff := testutil.NewFakeFactory()
	props := bridge.Props{
		ID:     "my-graph",
		Class:  "graph",
		Style:  ir.Obj(ir.O("border", ir.String("1px solid"))),
		Width:  320,
		Height: 200,
		Data:   twoNodes(),
	}

	c := newController(t, reactive.NewSignal(props), ff)
	require.NoError(t, c.Mount(context.Background()))
	defer c.Unmount()

	f := ff.Last()
	container, ok := f.Container().(bridge.Container)
	require.True(t, ok)
	assert.Equal(t, "my-graph", container.ID)
	assert.Equal(t, "graph", container.Class)
	assert.Equal(t, ir.String("100%"), container.Style["width"])
	assert.Equal(t, ir.String("1px solid"), container.Style["border"])

	construct := f.Calls()[0]
	assert.Equal(t, 320, construct.Options.Width)
	assert.Len(t, construct.Options.Data.Nodes, 2)
	assert.Equal(t, "my-graph", c.ID())
}

func TestMount_DefaultIDStableAcrossRevisions(t *testing.T) {
	ff := testutil.NewFakeFactory()
	props := reactive.NewSignal(bridge.Props{Data: twoNodes()})

	c := newController(t, props, ff)
	require.NoError(t, c.Mount(context.Background()))
	defer c.Unmount()

	assert.Equal(t, "graph-test-1", c.ID())
	props.Set(bridge.Props{Width: 10})
	cfg, ok := c.Config()
	require.True(t, ok)
	assert.Equal(t, "graph-test-1", cfg.ID)
	assert.NotNil(t, cfg.Options.Data.Nodes, "missing data defaults to empty slices")
}

func TestMount_Twice(t *testing.T) {
	ff := testutil.NewFakeFactory()
	c := newController(t, reactive.NewSignal(bridge.Props{}), ff)
	require.NoError(t, c.Mount(context.Background()))
	defer c.Unmount()

	assert.ErrorIs(t, c.Mount(context.Background()), bridge.ErrAlreadyMounted)
	assert.Len(t, ff.Engines(), 1)
}

func TestPropsChange_OneSetOptionsPerRevision(t *testing.T) {
	log := &hookLog{}
	ff := testutil.NewFakeFactory()
	props := reactive.NewSignal(baseProps(log))

	c := newController(t, props, ff)
	require.NoError(t, c.Mount(context.Background()))
	defer c.Unmount()
	waitSettled(t, c)

	for i, width := range []int{900, 1000, 1100} {
		p := baseProps(log)
		p.Width = width
		props.Set(p)

		calls := ff.Last().SetOptionsCalls()
		require.Len(t, calls, i+2, "SetOptions runs synchronously with the revision")
		assert.Equal(t, width, calls[i+1].Width)
	}

	require.Eventually(t, func() bool { return log.Ready() == 4 }, waitFor, time.Millisecond)
	assert.Equal(t, 4, ff.Last().Count(testutil.OpRender))
}

func TestPropsChange_RapidRevisionsEachPushedWithoutCoalescing(t *testing.T) {
	log := &hookLog{}
	ff := testutil.NewFakeFactory().Gated()
	props := reactive.NewSignal(baseProps(log))

	c := newController(t, props, ff)
	require.NoError(t, c.Mount(context.Background()))
	defer c.Unmount()

	f := ff.Last()
	for _, w := range []int{1, 2, 3} {
		p := baseProps(log)
		p.Width = w
		props.Set(p)
	}

	require.Eventually(t, func() bool { return f.Pending() == 4 }, waitFor, time.Millisecond)
	assert.Equal(t, 4, f.Count(testutil.OpSetOptions))
	assert.Equal(t, 0, log.Ready(), "no render has resolved yet")

	f.ReleaseAll()
	require.Eventually(t, func() bool { return log.Ready() == 4 }, waitFor, time.Millisecond)
}

func TestPropsChange_LatestReadyOnly(t *testing.T) {
	log := &hookLog{}
	rec := &memRecorder{}
	ff := testutil.NewFakeFactory().Gated()
	props := reactive.NewSignal(baseProps(log))

	c := newController(t, props, ff, bridge.WithLatestReadyOnly(), bridge.WithRecorder(rec))
	require.NoError(t, c.Mount(context.Background()))
	defer c.Unmount()

	f := ff.Last()
	p := baseProps(log)
	p.Width = 5
	props.Set(p)

	require.Eventually(t, func() bool { return f.Pending() == 2 }, waitFor, time.Millisecond)
	f.ReleaseAll()

	require.Eventually(t, func() bool { return log.Ready() == 1 }, waitFor, time.Millisecond)
	require.Eventually(t, func() bool { return rec.Has(bridge.KindPushSuperseded) }, waitFor, time.Millisecond)
	assert.Equal(t, 1, log.Ready())
}

func TestRenderFailure_ReportedUndecoratedAndReadySkipped(t *testing.T) {
	log := &hookLog{}
	ff := testutil.NewFakeFactory()
	props := reactive.NewSignal(baseProps(log))
	boom := errors.New("layout failed")

	errs := make(chan error, 1)
	c := newController(t, props, ff, bridge.WithErrorHandler(func(err error) { errs <- err }))
	require.NoError(t, c.Mount(context.Background()))
	defer c.Unmount()
	waitSettled(t, c)

	ff.Last().FailRenders(boom)
	props.Set(baseProps(log))

	select {
	case err := <-errs:
		assert.Same(t, boom, err)
	case <-time.After(waitFor):
		t.Fatal("render failure was not reported")
	}
	assert.Equal(t, 1, log.Ready())
}

func TestUnmount_UnbindsIndividuallyDestroysAndClears(t *testing.T) {
	log := &hookLog{}
	ff := testutil.NewFakeFactory()
	props := baseProps(log)
	props.Events = bridge.EventMap{
		engine.EventNodeClick:   bridge.HandlerFunc(func(engine.Event) {}),
		engine.EventAfterDraw:   bridge.Once(func(engine.Event) {}),
		engine.EventCanvasClick: nil,
	}

	c := newController(t, reactive.NewSignal(props), ff)
	require.NoError(t, c.Mount(context.Background()))
	waitSettled(t, c)

	f := ff.Last()
	// A handler installed by someone else survives teardown.
	f.On(engine.EventNodeClick, func(engine.Event) {}, false)

	var sawCleared bool
	unsub := c.Handle().Subscribe(func(eng engine.Engine) {
		if eng == nil {
			sawCleared = true
		}
	})
	defer unsub()

	c.Unmount()

	assert.Equal(t, 2, f.Count(testutil.OpOff))
	assert.Equal(t, 0, f.Count(testutil.OpOffAll))
	assert.Equal(t, 1, f.Count(testutil.OpDestroy))
	assert.Equal(t, 1, f.Listeners(engine.EventNodeClick))
	assert.True(t, sawCleared)
	assert.False(t, c.Handle().Populated())
	assert.Equal(t, []string{"init", "ready", "destroy"}, log.Entries())

	ops := f.Ops()
	assert.Equal(t, testutil.OpDestroy, ops[len(ops)-1])
}

func TestHandlerFunc_FiresEveryEmitUntilUnmount(t *testing.T) {
	log := &hookLog{}
	ff := testutil.NewFakeFactory()
	clicks := 0

	props := baseProps(log)
	props.Events = bridge.EventMap{
		engine.EventNodeClick: bridge.HandlerFunc(func(engine.Event) { clicks++ }),
	}

	c := newController(t, reactive.NewSignal(props), ff)
	require.NoError(t, c.Mount(context.Background()))
	waitSettled(t, c)

	f := ff.Last()
	f.Emit(engine.Event{Type: engine.EventNodeClick, Target: "n1"})
	f.Emit(engine.Event{Type: engine.EventNodeClick, Target: "n2"})
	assert.Equal(t, 2, clicks)
	assert.Equal(t, 1, f.Listeners(engine.EventNodeClick))

	c.Unmount()
	assert.Equal(t, 0, f.Listeners(engine.EventNodeClick))

	f.Emit(engine.Event{Type: engine.EventNodeClick, Target: "n1"})
	assert.Equal(t, 2, clicks)
}

func TestMount_RevisionDuringConstructionIsPushed(t *testing.T) {
	log := &hookLog{}
	ff := testutil.NewFakeFactory()
	props := reactive.NewSignal(baseProps(log))

	factory := ff.Factory()
	var constructed bool
	racing := func(container engine.Container, opts ir.Options) (engine.Engine, error) {
		if !constructed {
			constructed = true
			p := baseProps(log)
			p.Width = 1234
			props.Set(p)
		}
		return factory(container, opts)
	}

	c := bridge.New(props, racing,
		bridge.WithLogger(quietLogger()),
		bridge.WithIDGenerator(engine.NewFixedGenerator("graph-test-1")),
	)
	require.NoError(t, c.Mount(context.Background()))
	defer c.Unmount()

	calls := ff.Last().SetOptionsCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, 800, calls[0].Width)
	assert.Equal(t, 1234, calls[1].Width)
	require.Eventually(t, func() bool { return log.Ready() == 2 }, waitFor, time.Millisecond)
}

func TestUnmount_StopsPropertyTracking(t *testing.T) {
	log := &hookLog{}
	ff := testutil.NewFakeFactory()
	props := reactive.NewSignal(baseProps(log))

	c := newController(t, props, ff)
	require.NoError(t, c.Mount(context.Background()))
	waitSettled(t, c)
	c.Unmount()

	props.Set(baseProps(log))
	assert.Equal(t, 1, ff.Last().Count(testutil.OpSetOptions))
	assert.Equal(t, 0, props.Subscribers())

	c.Unmount()
	assert.Equal(t, 1, ff.Last().Count(testutil.OpDestroy), "second unmount is a no-op")
}

func TestUnmount_RenderResolvingAfterTeardownSkipsReady(t *testing.T) {
	log := &hookLog{}
	rec := &memRecorder{}
	ff := testutil.NewFakeFactory().Gated()
	props := reactive.NewSignal(baseProps(log))

	c := newController(t, props, ff, bridge.WithRecorder(rec))
	require.NoError(t, c.Mount(context.Background()))

	f := ff.Last()
	require.Eventually(t, func() bool { return f.Pending() == 1 }, waitFor, time.Millisecond)

	c.Unmount()
	f.Release()

	require.Eventually(t, func() bool { return rec.Has(bridge.KindPushStale) }, waitFor, time.Millisecond)
	assert.Equal(t, 0, log.Ready())
}

func TestPush_EngineDestroyedOutsideControllerSkipsReady(t *testing.T) {
	log := &hookLog{}
	rec := &memRecorder{}
	ff := testutil.NewFakeFactory().Gated()
	props := reactive.NewSignal(baseProps(log))

	c := newController(t, props, ff, bridge.WithRecorder(rec))
	require.NoError(t, c.Mount(context.Background()))
	defer c.Unmount()

	f := ff.Last()
	require.Eventually(t, func() bool { return f.Pending() == 1 }, waitFor, time.Millisecond)

	f.Destroy()
	f.Release()

	require.Eventually(t, func() bool { return rec.Has(bridge.KindPushStale) }, waitFor, time.Millisecond)
	assert.Equal(t, 0, log.Ready())
}

func TestMount_ConstructionFailureFailsClosed(t *testing.T) {
	log := &hookLog{}
	ff := testutil.NewFakeFactory().FailWith(testutil.ErrConstruct)

	c := newController(t, reactive.NewSignal(baseProps(log)), ff)
	err := c.Mount(context.Background())

	require.Error(t, err)
	assert.True(t, bridge.IsConstructError(err))
	assert.ErrorIs(t, err, testutil.ErrConstruct)
	assert.False(t, c.Handle().Populated())
	assert.Empty(t, log.Entries())
	assert.Equal(t, "", c.ID())

	ctx := c.Context(context.Background())
	_, err = bridge.Use(ctx)
	assert.ErrorIs(t, err, bridge.ErrUsedOutsideProvider)
}

func TestMount_ConstructionPanicBecomesError(t *testing.T) {
	ff := testutil.NewFakeFactory().Panic()
	c := newController(t, reactive.NewSignal(bridge.Props{}), ff)

	err := c.Mount(context.Background())
	var ce *bridge.ConstructError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "graph-test-1", ce.GraphID)
	assert.Contains(t, ce.Error(), "panic")
}

func TestMount_RemountBuildsFreshEngine(t *testing.T) {
	log := &hookLog{}
	ff := testutil.NewFakeFactory()
	c := newController(t, reactive.NewSignal(baseProps(log)), ff)

	require.NoError(t, c.Mount(context.Background()))
	waitSettled(t, c)
	c.Unmount()
	require.NoError(t, c.Mount(context.Background()))
	waitSettled(t, c)
	defer c.Unmount()

	engines := ff.Engines()
	require.Len(t, engines, 2)
	assert.True(t, engines[0].Destroyed())
	assert.False(t, engines[1].Destroyed())
	assert.Equal(t, "graph-test-2", c.ID())
}

func TestRecorder_LifecycleOrder(t *testing.T) {
	log := &hookLog{}
	rec := &memRecorder{}
	ff := testutil.NewFakeFactory()

	c := newController(t, reactive.NewSignal(baseProps(log)), ff, bridge.WithRecorder(rec))
	require.NoError(t, c.Mount(context.Background()))
	waitSettled(t, c)
	c.Unmount()

	assert.Equal(t, []string{
		bridge.KindMount,
		bridge.KindBind,
		bridge.KindInit,
		bridge.KindPublish,
		bridge.KindPush,
		bridge.KindReady,
		bridge.KindUnbind,
		bridge.KindDestroy,
		bridge.KindUnmount,
	}, rec.Kinds())

	rec.mu.Lock()
	defer rec.mu.Unlock()
	for i := 1; i < len(rec.events); i++ {
		assert.Greater(t, rec.events[i].Seq, rec.events[i-1].Seq)
	}
}

func TestRecorder_ErrorsDoNotInterruptLifecycle(t *testing.T) {
	ff := testutil.NewFakeFactory()
	failing := bridge.RecorderFunc(func(context.Context, bridge.LifecycleEvent) error {
		return errors.New("disk full")
	})

	c := newController(t, reactive.NewSignal(bridge.Props{}), ff, bridge.WithRecorder(failing))
	require.NoError(t, c.Mount(context.Background()))
	waitSettled(t, c)
	c.Unmount()
	assert.True(t, ff.Last().Destroyed())
}
