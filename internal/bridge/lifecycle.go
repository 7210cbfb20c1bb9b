package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/vizbridge/internal/engine"
	"github.com/roach88/vizbridge/internal/ir"
	"github.com/roach88/vizbridge/internal/reactive"
)

const tracerName = "github.com/roach88/vizbridge/internal/bridge"

// Component is a descendant mounted inside a graph. Mount receives a context
// on which Use succeeds.
type Component interface {
	Mount(ctx context.Context) error
	Unmount()
}

// Controller owns one engine instance per mount.
//
// Lifecycle: New → Mount → (Props revisions) → Unmount. A controller may be
// mounted again after Unmount; each mount builds a fresh engine.
//
// Thread-safety: Mount and Unmount are serialized. Hooks and components run
// synchronously inside them and must not call Mount or Unmount on the same
// controller from the calling goroutine.
type Controller struct {
	props   *reactive.Signal[Props]
	factory engine.Factory
	handle  *HandleStore

	logger          *slog.Logger
	recorder        Recorder
	tracer          trace.Tracer
	clock           *engine.Clock
	ids             engine.IDGenerator
	children        []Component
	onError         func(error)
	latestReadyOnly bool

	mu   sync.Mutex
	live atomic.Pointer[session]
}

// session is the state of one mount.
type session struct {
	id         string
	fallbackID string
	eng        engine.Engine
	bindings   *bindingTable
	sync       *synchronizer
	cfg        atomic.Pointer[Config]
	unwatch    func()
	mounted    []Component
	closed     atomic.Bool
	settled    chan struct{}
	// ctx is the mount context without its cancellation.
	ctx context.Context
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// WithRecorder receives every lifecycle event.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) {
		c.recorder = r
	}
}

// WithTracerProvider sets the tracer provider. Defaults to the global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Controller) {
		c.tracer = tp.Tracer(tracerName)
	}
}

// WithClock sets the clock that sequences lifecycle events.
func WithClock(clock *engine.Clock) Option {
	return func(c *Controller) {
		c.clock = clock
	}
}

// WithIDGenerator sets the generator used when Props.ID is empty.
func WithIDGenerator(g engine.IDGenerator) Option {
	return func(c *Controller) {
		c.ids = g
	}
}

// WithChildren sets the descendants mounted inside the graph.
func WithChildren(children ...Component) Option {
	return func(c *Controller) {
		c.children = append(c.children, children...)
	}
}

// WithErrorHandler receives render failures of property-driven pushes.
// The default logs them at error level.
func WithErrorHandler(fn func(error)) Option {
	return func(c *Controller) {
		c.onError = fn
	}
}

// WithLatestReadyOnly skips OnReady for a push when a newer push started
// before its render resolved.
func WithLatestReadyOnly() Option {
	return func(c *Controller) {
		c.latestReadyOnly = true
	}
}

// New creates an unmounted controller reading its configuration from props.
func New(props *reactive.Signal[Props], factory engine.Factory, opts ...Option) *Controller {
	c := &Controller{
		props:    props,
		factory:  factory,
		handle:   NewHandleStore(),
		logger:   slog.Default(),
		recorder: nopRecorder{},
		tracer:   otel.Tracer(tracerName),
		clock:    engine.NewClock(),
		ids:      engine.UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.onError == nil {
		c.onError = func(err error) {
			c.logger.Error("render failed", "graph", c.ID(), "error", err)
		}
	}
	return c
}

// Handle returns the controller's handle store.
func (c *Controller) Handle() *HandleStore {
	return c.handle
}

// ID returns the identifier of the current mount, or "" when unmounted.
func (c *Controller) ID() string {
	if sess := c.live.Load(); sess != nil {
		return sess.id
	}
	return ""
}

// Config returns the configuration of the most recent Props revision seen
// by the current mount.
func (c *Controller) Config() (Config, bool) {
	sess := c.live.Load()
	if sess == nil {
		return Config{}, false
	}
	return *sess.cfg.Load(), true
}

// Settled returns a channel closed when the current mount's first push has
// ended. It is closed immediately when the controller is not mounted.
func (c *Controller) Settled() <-chan struct{} {
	if sess := c.live.Load(); sess != nil {
		return sess.settled
	}
	ch := make(chan struct{})
	close(ch)
	return ch
}

// Mount constructs the engine, binds events, calls OnInit, publishes the
// handle, pushes the construction options and starts tracking Props.
// Descendants are mounted last.
//
// On a construction failure nothing is published and a *ConstructError is
// returned. A descendant failure tears the graph down and returns a
// *ChildMountError.
func (c *Controller) Mount(ctx context.Context) (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.live.Load() != nil {
		return ErrAlreadyMounted
	}

	props, version := c.props.Snapshot()
	fallbackID := props.ID
	if fallbackID == "" {
		fallbackID = c.ids.Generate()
	}
	cfg := Merge(props, fallbackID)

	ctx, span := c.tracer.Start(ctx, "bridge.mount", trace.WithAttributes(
		attribute.String("graph.id", cfg.ID),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	c.record(ctx, cfg.ID, KindMount, ir.Obj(ir.O("container", ir.String(cfg.ID))))

	eng, err := c.construct(cfg)
	if err != nil {
		c.record(ctx, cfg.ID, KindConstructFailed, ir.Obj(ir.O("error", ir.String(err.Error()))))
		c.logger.Error("construct engine", "graph", cfg.ID, "error", err)
		return err
	}

	sess := &session{
		id:         cfg.ID,
		fallbackID: fallbackID,
		eng:        eng,
		settled:    make(chan struct{}),
		ctx:        context.WithoutCancel(ctx),
	}
	sess.cfg.Store(&cfg)
	sess.sync = &synchronizer{c: c, sess: sess}

	sess.bindings = bindEvents(eng, cfg.Events)
	bound := make(ir.Array, 0, len(sess.bindings.bindings))
	for _, name := range sess.bindings.events() {
		bound = append(bound, ir.String(name))
	}
	c.record(ctx, sess.id, KindBind, ir.Obj(ir.O("events", bound)))

	if cfg.OnInit != nil {
		cfg.OnInit(eng)
		c.record(ctx, sess.id, KindInit, nil)
	}

	c.live.Store(sess)
	c.handle.publish(eng)
	c.record(ctx, sess.id, KindPublish, nil)
	c.logger.Debug("graph mounted", "graph", sess.id, "events", len(bound))

	sess.sync.fire(sess.ctx, cfg.Options, cfg.OnReady, func() { close(sess.settled) })

	sess.unwatch = c.props.Subscribe(func(p Props) {
		c.onProps(sess, p)
	})
	// A revision set between the read above and the subscription.
	if latest, v := c.props.Snapshot(); v != version {
		c.onProps(sess, latest)
	}

	childCtx := c.Context(ctx)
	for i, child := range c.children {
		if err := child.Mount(childCtx); err != nil {
			c.teardown(sess)
			return &ChildMountError{Index: i, Err: err}
		}
		sess.mounted = append(sess.mounted, child)
	}
	return nil
}

// Unmount tears down the current mount. It is a no-op when unmounted.
func (c *Controller) Unmount() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if sess := c.live.Load(); sess != nil {
		c.teardown(sess)
	}
}

// teardown runs the unmount sequence. The handle is cleared even if a
// descendant or OnDestroy panics.
func (c *Controller) teardown(sess *session) {
	ctx, span := c.tracer.Start(sess.ctx, "bridge.unmount", trace.WithAttributes(
		attribute.String("graph.id", sess.id),
	))
	defer span.End()

	defer func() {
		c.live.Store(nil)
		c.handle.clear()
		c.record(ctx, sess.id, KindUnmount, nil)
		c.logger.Debug("graph unmounted", "graph", sess.id)
	}()

	for i := len(sess.mounted) - 1; i >= 0; i-- {
		sess.mounted[i].Unmount()
	}
	sess.mounted = nil

	if sess.unwatch != nil {
		sess.unwatch()
	}
	sess.closed.Store(true)

	n := sess.bindings.unbind()
	c.record(ctx, sess.id, KindUnbind, ir.Obj(ir.O("count", ir.Int(n))))

	sess.eng.Destroy()
	c.record(ctx, sess.id, KindDestroy, nil)

	if cfg := sess.cfg.Load(); cfg.OnDestroy != nil {
		cfg.OnDestroy(sess.eng)
	}
}

// onProps merges a Props revision and pushes it.
func (c *Controller) onProps(sess *session, p Props) {
	if sess.closed.Load() {
		return
	}
	cfg := Merge(p, sess.fallbackID)
	sess.cfg.Store(&cfg)
	sess.sync.fire(sess.ctx, cfg.Options, cfg.OnReady, nil)
}

// construct calls the factory, converting a panic into an error.
func (c *Controller) construct(cfg Config) (eng engine.Engine, err error) {
	defer func() {
		if r := recover(); r != nil {
			eng = nil
			err = &ConstructError{GraphID: cfg.ID, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	eng, err = c.factory(cfg.Container(), cfg.Options)
	if err != nil {
		return nil, &ConstructError{GraphID: cfg.ID, Err: err}
	}
	if eng == nil {
		return nil, &ConstructError{GraphID: cfg.ID, Err: errors.New("factory returned no engine")}
	}
	return eng, nil
}

func (c *Controller) record(ctx context.Context, graphID, kind string, detail ir.Object) {
	ev := LifecycleEvent{
		GraphID: graphID,
		Seq:     c.clock.Next(),
		Kind:    kind,
		Detail:  detail,
	}
	if err := c.recorder.RecordLifecycle(ctx, ev); err != nil {
		c.logger.Warn("record lifecycle event", "graph", graphID, "kind", kind, "error", err)
	}
}
