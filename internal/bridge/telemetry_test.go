package bridge_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/roach88/vizbridge/internal/bridge"
	"github.com/roach88/vizbridge/internal/reactive"
	"github.com/roach88/vizbridge/internal/testutil"
)

func newSpanRecorder() (*tracetest.SpanRecorder, bridge.Option) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	return sr, bridge.WithTracerProvider(tp)
}

func endedSpans(sr *tracetest.SpanRecorder, name string) []sdktrace.ReadOnlySpan {
	var out []sdktrace.ReadOnlySpan
	for _, s := range sr.Ended() {
		if s.Name() == name {
			out = append(out, s)
		}
	}
	return out
}

func spanAttr(s sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range s.Attributes() {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracing_MountPushUnmountSpans(t *testing.T) {
	sr, withTP := newSpanRecorder()
	props := baseProps(&hookLog{})
	props.ID = "traced"

	c := newController(t, reactive.NewSignal(props), testutil.NewFakeFactory(), withTP)
	require.NoError(t, c.Mount(context.Background()))
	waitSettled(t, c)
	c.Unmount()

	require.Eventually(t, func() bool {
		return len(endedSpans(sr, "bridge.push")) == 1
	}, waitFor, time.Millisecond)

	mounts := endedSpans(sr, "bridge.mount")
	require.Len(t, mounts, 1)
	id, ok := spanAttr(mounts[0], "graph.id")
	require.True(t, ok)
	assert.Equal(t, "traced", id.AsString())

	push := endedSpans(sr, "bridge.push")[0]
	assert.Equal(t, mounts[0].SpanContext().TraceID(), push.SpanContext().TraceID())
	status, ok := spanAttr(push, "push.status")
	require.True(t, ok)
	assert.Equal(t, bridge.PushReady.String(), status.AsString())
	gen, ok := spanAttr(push, "push.generation")
	require.True(t, ok)
	assert.Equal(t, int64(1), gen.AsInt64())

	unmounts := endedSpans(sr, "bridge.unmount")
	require.Len(t, unmounts, 1)
	assert.Equal(t, mounts[0].SpanContext().TraceID(), unmounts[0].SpanContext().TraceID())
}

func TestTracing_FailedPushMarksSpan(t *testing.T) {
	sr, withTP := newSpanRecorder()
	ff := testutil.NewFakeFactory()
	props := reactive.NewSignal(baseProps(&hookLog{}))

	c := newController(t, props, ff, withTP, bridge.WithErrorHandler(func(error) {}))
	require.NoError(t, c.Mount(context.Background()))
	defer c.Unmount()
	waitSettled(t, c)

	ff.Last().FailRenders(errors.New("layout failed"))
	props.Set(baseProps(&hookLog{}))

	require.Eventually(t, func() bool {
		return len(endedSpans(sr, "bridge.push")) == 2
	}, waitFor, time.Millisecond)

	var failed sdktrace.ReadOnlySpan
	for _, s := range endedSpans(sr, "bridge.push") {
		if s.Status().Code == codes.Error {
			failed = s
		}
	}
	require.NotNil(t, failed)
	assert.Equal(t, "layout failed", failed.Status().Description)
	status, _ := spanAttr(failed, "push.status")
	assert.Equal(t, bridge.PushFailed.String(), status.AsString())
}

func TestTracing_ConstructFailureMarksMountSpan(t *testing.T) {
	sr, withTP := newSpanRecorder()
	ff := testutil.NewFakeFactory().FailWith(testutil.ErrConstruct)

	c := newController(t, reactive.NewSignal(baseProps(&hookLog{})), ff, withTP)
	require.Error(t, c.Mount(context.Background()))

	mounts := endedSpans(sr, "bridge.mount")
	require.Len(t, mounts, 1)
	assert.Equal(t, codes.Error, mounts[0].Status().Code)
	assert.Empty(t, endedSpans(sr, "bridge.push"))
}
