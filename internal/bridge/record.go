package bridge

import (
	"context"

	"github.com/roach88/vizbridge/internal/ir"
)

// Lifecycle event kinds written to a Recorder.
const (
	KindMount           = "mount"
	KindConstructFailed = "construct_failed"
	KindBind            = "bind"
	KindInit            = "init"
	KindPublish         = "publish"
	KindPush            = "push"
	KindReady           = "ready"
	KindPushSkipped     = "push_skipped"
	KindPushStale       = "push_stale"
	KindPushSuperseded  = "push_superseded"
	KindPushFailed      = "push_failed"
	KindUnbind          = "unbind"
	KindDestroy         = "destroy"
	KindUnmount         = "unmount"
)

// LifecycleEvent is one observable step of a graph's lifecycle.
type LifecycleEvent struct {
	GraphID string
	// Seq orders events of one controller. It is strictly increasing.
	Seq    int64
	Kind   string
	Detail ir.Object
}

// Recorder persists lifecycle events. Record errors are logged and never
// interrupt the lifecycle.
type Recorder interface {
	RecordLifecycle(ctx context.Context, ev LifecycleEvent) error
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, ev LifecycleEvent) error

// RecordLifecycle implements Recorder.
func (fn RecorderFunc) RecordLifecycle(ctx context.Context, ev LifecycleEvent) error {
	return fn(ctx, ev)
}

type nopRecorder struct{}

func (nopRecorder) RecordLifecycle(context.Context, LifecycleEvent) error { return nil }
