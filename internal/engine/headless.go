package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/vizbridge/internal/ir"
)

// Headless is an Engine that renders into Frames instead of pixels.
//
// Every command takes the instance lock, so SetOptions, Render and Destroy
// issued from different goroutines are applied one at a time. Render holds
// the lock only while it builds the frame; the sink write happens outside it.
type Headless struct {
	Emitter

	mu        sync.Mutex
	container Container
	opts      ir.Options
	destroyed bool
	renders   int
	last      *Frame

	clock  *Clock
	sink   FrameSink
	logger *slog.Logger
}

// HeadlessOption configures a Headless engine.
type HeadlessOption func(*Headless)

// WithFrameSink sends every rendered frame to sink.
func WithFrameSink(sink FrameSink) HeadlessOption {
	return func(h *Headless) {
		h.sink = sink
	}
}

// WithClock stamps frames from the given clock (default: a fresh clock).
// Share one clock between engines writing to the same store.
func WithClock(c *Clock) HeadlessOption {
	return func(h *Headless) {
		h.clock = c
	}
}

// WithLogger sets the engine's logger (default: slog.Default()).
func WithLogger(l *slog.Logger) HeadlessOption {
	return func(h *Headless) {
		h.logger = l
	}
}

// NewHeadless validates opts and returns a live engine bound to container.
func NewHeadless(container Container, opts ir.Options, options ...HeadlessOption) (*Headless, error) {
	if container == nil || container.ContainerID() == "" {
		return nil, &OptionsError{Field: "container", Message: "container is required"}
	}
	if err := ValidateOptions(opts); err != nil {
		return nil, err
	}

	h := &Headless{
		container: container,
		opts:      opts,
		clock:     NewClock(),
		logger:    slog.Default(),
	}
	for _, o := range options {
		o(h)
	}
	return h, nil
}

// HeadlessFactory returns a Factory that builds Headless engines.
func HeadlessFactory(options ...HeadlessOption) Factory {
	return func(container Container, opts ir.Options) (Engine, error) {
		return NewHeadless(container, opts, options...)
	}
}

// SetOptions implements Engine. It is a no-op after Destroy.
func (h *Headless) SetOptions(opts ir.Options) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.destroyed {
		return
	}
	h.opts = opts
}

// Options implements Engine.
func (h *Headless) Options() ir.Options {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.opts
}

// Data implements Engine.
func (h *Headless) Data() ir.GraphData {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.opts.Data.Clone()
}

// Render implements Engine. It validates the current options, builds a frame
// and writes it to the sink before returning.
func (h *Headless) Render(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.Lock()
	if h.destroyed {
		h.mu.Unlock()
		return ErrDestroyed
	}
	opts := h.opts
	if err := ValidateOptions(opts); err != nil {
		h.mu.Unlock()
		return err
	}
	frame, err := BuildFrame(h.container.ContainerID(), h.clock.Next(), opts)
	if err != nil {
		h.mu.Unlock()
		return fmt.Errorf("build frame: %w", err)
	}
	h.renders++
	h.last = &frame
	h.mu.Unlock()

	h.Emit(Event{Type: EventBeforeRender, Target: frame.GraphID})

	if h.sink != nil {
		if err := h.sink.WriteFrame(ctx, frame); err != nil {
			return fmt.Errorf("write frame: %w", err)
		}
	}

	h.logger.Debug("frame rendered",
		"container", frame.GraphID,
		"seq", frame.Seq,
		"nodes", len(frame.Nodes),
		"edges", len(frame.Edges),
		"combos", len(frame.Combos),
	)

	h.Emit(Event{Type: EventAfterRender, Target: frame.GraphID})
	return nil
}

// Emit implements Engine. Events emitted after Destroy are dropped.
func (h *Headless) Emit(ev Event) {
	if h.Destroyed() {
		return
	}
	h.Emitter.Emit(ev)
}

// Destroy implements Engine. Subscribers receive a final "destroy" event,
// then every subscription is dropped.
func (h *Headless) Destroy() {
	h.mu.Lock()
	if h.destroyed {
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()

	h.Emitter.Emit(Event{Type: EventDestroy, Target: h.container.ContainerID()})

	h.mu.Lock()
	h.destroyed = true
	h.mu.Unlock()
	h.Emitter.OffAll()
}

// Destroyed implements Engine.
func (h *Headless) Destroyed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.destroyed
}

// LastFrame returns the most recent frame, or false before the first render.
func (h *Headless) LastFrame() (Frame, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.last == nil {
		return Frame{}, false
	}
	return *h.last, true
}

// Renders returns the number of completed frame builds.
func (h *Headless) Renders() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.renders
}

// ValidateOptions checks the invariants a headless render depends on:
// non-negative size, unique node and combo IDs, edges that reference
// existing nodes or combos.
func ValidateOptions(opts ir.Options) error {
	if opts.Width < 0 {
		return &OptionsError{Field: "width", Message: fmt.Sprintf("must be >= 0, got %d", opts.Width)}
	}
	if opts.Height < 0 {
		return &OptionsError{Field: "height", Message: fmt.Sprintf("must be >= 0, got %d", opts.Height)}
	}

	ids := make(map[string]bool, len(opts.Data.Nodes)+len(opts.Data.Combos))
	for i, n := range opts.Data.Nodes {
		if n.ID == "" {
			return &OptionsError{Field: fmt.Sprintf("data.nodes[%d].id", i), Message: "id is required"}
		}
		if ids[n.ID] {
			return &OptionsError{Field: fmt.Sprintf("data.nodes[%d].id", i), Message: fmt.Sprintf("duplicate id %q", n.ID)}
		}
		ids[n.ID] = true
	}
	for i, c := range opts.Data.Combos {
		if c.ID == "" {
			return &OptionsError{Field: fmt.Sprintf("data.combos[%d].id", i), Message: "id is required"}
		}
		if ids[c.ID] {
			return &OptionsError{Field: fmt.Sprintf("data.combos[%d].id", i), Message: fmt.Sprintf("duplicate id %q", c.ID)}
		}
		ids[c.ID] = true
	}
	for i, e := range opts.Data.Edges {
		if !ids[e.Source] {
			return &OptionsError{Field: fmt.Sprintf("data.edges[%d].source", i), Message: fmt.Sprintf("unknown element %q", e.Source)}
		}
		if !ids[e.Target] {
			return &OptionsError{Field: fmt.Sprintf("data.edges[%d].target", i), Message: fmt.Sprintf("unknown element %q", e.Target)}
		}
	}
	return nil
}
