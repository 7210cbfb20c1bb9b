package engine

import (
	"context"

	"github.com/roach88/vizbridge/internal/ir"
)

// Well-known event names emitted by engines. Engines may emit others.
const (
	EventNodeClick    = "node:click"
	EventEdgeClick    = "edge:click"
	EventComboClick   = "combo:click"
	EventCanvasClick  = "canvas:click"
	EventBeforeRender = "beforerender"
	EventAfterRender  = "afterrender"
	EventBeforeDraw   = "beforedraw"
	EventAfterDraw    = "afterdraw"
	EventDestroy      = "destroy"
)

// Event is delivered to subscribed handlers.
type Event struct {
	// Type is the event name ("node:click").
	Type string
	// Target is the ID of the element the event concerns, if any.
	Target string
	// Payload carries engine-specific detail.
	Payload ir.Object
}

// Handler receives engine events.
type Handler func(Event)

// Subscription identifies one On call so it can be removed with Off.
// The zero value is never issued.
type Subscription uint64

// Container is the host element an engine renders into.
type Container interface {
	ContainerID() string
}

// ContainerID is a Container identified only by its ID.
type ContainerID string

// ContainerID implements Container.
func (c ContainerID) ContainerID() string {
	return string(c)
}

// Engine is the live visualization instance.
type Engine interface {
	// SetOptions replaces the engine's options wholesale.
	SetOptions(opts ir.Options)
	// Options returns the options most recently set.
	Options() ir.Options
	// Render draws the current options and blocks until the frame is done
	// or ctx ends.
	Render(ctx context.Context) error
	// Data returns a snapshot of the current nodes, edges and combos.
	Data() ir.GraphData
	// On subscribes h to the named event. With once=true the handler is
	// removed after its first invocation.
	On(event string, h Handler, once bool) Subscription
	// Off removes a single subscription. Unknown subscriptions are ignored.
	Off(sub Subscription)
	// OffAll removes every subscription, including ones installed by other
	// owners of the instance.
	OffAll()
	// Emit dispatches an event to subscribers.
	Emit(ev Event)
	// Destroy releases the instance. It is idempotent.
	Destroy()
	// Destroyed reports whether Destroy has run.
	Destroyed() bool
}

// Factory constructs an engine for a container with initial options.
type Factory func(container Container, opts ir.Options) (Engine, error)
