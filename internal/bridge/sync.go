package bridge

import (
	"context"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/vizbridge/internal/engine"
	"github.com/roach88/vizbridge/internal/ir"
)

// PushStatus is how a push ended.
type PushStatus int

const (
	// PushReady: the render resolved while mounted and OnReady ran.
	PushReady PushStatus = iota
	// PushSkipped: no live engine, nothing was sent.
	PushSkipped
	// PushStale: the render resolved after teardown began.
	PushStale
	// PushSuperseded: a newer push started before the render resolved and
	// the controller only signals readiness for the latest push.
	PushSuperseded
	// PushFailed: the render returned an error.
	PushFailed
)

// String returns the lowercase status name.
func (s PushStatus) String() string {
	switch s {
	case PushReady:
		return "ready"
	case PushSkipped:
		return "skipped"
	case PushStale:
		return "stale"
	case PushSuperseded:
		return "superseded"
	case PushFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// PushOutcome reports the end of one push.
type PushOutcome struct {
	// Generation numbers pushes of one mount from 1. Skipped pushes are 0.
	Generation uint64
	Status     PushStatus
	Err        error
}

// synchronizer sends options to the engine of one mount.
//
// Thread-safety: start may be called from any goroutine. Pushes are not
// serialized against each other; each one awaits its own render.
type synchronizer struct {
	c    *Controller
	sess *session
	gen  atomic.Uint64
}

// fire starts a push whose failure goes to the controller's error handler.
// after, if set, runs once the push has ended.
func (s *synchronizer) fire(ctx context.Context, opts ir.Options, onReady Hook, after func()) {
	s.start(ctx, opts, onReady, func(o PushOutcome) {
		if o.Status == PushFailed {
			s.c.onError(o.Err)
		}
		if after != nil {
			after()
		}
	})
}

// start performs the synchronous half of a push (guard and SetOptions) on
// the calling goroutine and awaits the render on a new one. done is called
// exactly once with the outcome.
//
// The render is never cancelled: ctx only carries values (trace parent).
func (s *synchronizer) start(ctx context.Context, opts ir.Options, onReady Hook, done func(PushOutcome)) {
	ctx = context.WithoutCancel(ctx)

	eng, ok := s.c.handle.Live()
	if !ok || eng != s.sess.eng || s.sess.closed.Load() {
		s.c.record(ctx, s.sess.id, KindPushSkipped, nil)
		done(PushOutcome{Status: PushSkipped})
		return
	}

	gen := s.gen.Add(1)
	ctx, span := s.c.tracer.Start(ctx, "bridge.push", trace.WithAttributes(
		attribute.String("graph.id", s.sess.id),
		attribute.Int64("push.generation", int64(gen)),
	))

	eng.SetOptions(opts)

	detail := ir.Obj(ir.O("generation", ir.Int(gen)))
	if hash, err := ir.OptionsHash(opts); err == nil {
		detail["options_hash"] = ir.String(hash)
	} else {
		s.c.logger.Debug("hash pushed options", "graph", s.sess.id, "error", err)
	}
	s.c.record(ctx, s.sess.id, KindPush, detail)

	go func() {
		defer span.End()
		err := eng.Render(ctx)
		o := s.settle(ctx, gen, eng, err, onReady)
		span.SetAttributes(attribute.String("push.status", o.Status.String()))
		if o.Err != nil {
			span.RecordError(o.Err)
			span.SetStatus(codes.Error, o.Err.Error())
		}
		done(o)
	}()
}

// settle classifies a finished render and calls onReady when it counts.
// The teardown check and onReady are not atomic: an Unmount racing between
// them can still hand onReady an engine that is being destroyed.
func (s *synchronizer) settle(ctx context.Context, gen uint64, eng engine.Engine, err error, onReady Hook) PushOutcome {
	detail := ir.Obj(ir.O("generation", ir.Int(gen)))
	switch {
	case s.sess.closed.Load() || eng.Destroyed():
		// Includes errors caused by the destroy itself, and engines
		// destroyed behind the controller's back.
		if err != nil {
			detail["error"] = ir.String(err.Error())
		}
		s.c.logger.Debug("render resolved after teardown", "graph", s.sess.id, "generation", gen, "error", err)
		s.c.record(ctx, s.sess.id, KindPushStale, detail)
		return PushOutcome{Generation: gen, Status: PushStale}

	case err != nil:
		detail["error"] = ir.String(err.Error())
		s.c.record(ctx, s.sess.id, KindPushFailed, detail)
		return PushOutcome{Generation: gen, Status: PushFailed, Err: err}

	case s.c.latestReadyOnly && gen != s.gen.Load():
		s.c.record(ctx, s.sess.id, KindPushSuperseded, detail)
		return PushOutcome{Generation: gen, Status: PushSuperseded}
	}

	if onReady != nil {
		onReady(eng)
	}
	s.c.record(ctx, s.sess.id, KindReady, detail)
	return PushOutcome{Generation: gen, Status: PushReady}
}
