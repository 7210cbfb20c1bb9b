package bridge

import (
	"context"

	"github.com/roach88/vizbridge/internal/engine"
	"github.com/roach88/vizbridge/internal/ir"
)

type providerKey struct{}

// Context returns a child of parent through which descendants reach this
// controller's graph with Use. The provider is active only while the handle
// is populated.
func (c *Controller) Context(parent context.Context) context.Context {
	return context.WithValue(parent, providerKey{}, c)
}

// Use returns the graph provided on ctx. It fails with
// ErrUsedOutsideProvider when ctx carries no controller or the controller's
// handle is empty.
func Use(ctx context.Context) (*Graph, error) {
	c, _ := ctx.Value(providerKey{}).(*Controller)
	if c == nil {
		return nil, ErrUsedOutsideProvider
	}
	sess := c.live.Load()
	if sess == nil || !c.handle.Populated() {
		return nil, ErrUsedOutsideProvider
	}
	return &Graph{c: c, sess: sess}, nil
}

// MustUse is like Use but panics on failure.
func MustUse(ctx context.Context) *Graph {
	g, err := Use(ctx)
	if err != nil {
		panic(err)
	}
	return g
}

// Graph is the value shared with descendants: the engine of one mount, a
// data accessor and an imperative reconfiguration entry point. A Graph
// outlives its mount harmlessly; once the mount is torn down Engine returns
// nil, Data returns empty data and Reconfigure does nothing.
type Graph struct {
	c    *Controller
	sess *session
}

// ID returns the graph identifier.
func (g *Graph) ID() string {
	return g.sess.id
}

// Engine returns the live engine, or nil after teardown.
func (g *Graph) Engine() engine.Engine {
	if g.sess.closed.Load() || g.c.handle.Load() != g.sess.eng {
		return nil
	}
	return g.sess.eng
}

// Data returns the engine's current data.
func (g *Graph) Data() ir.GraphData {
	eng := g.Engine()
	if eng == nil {
		return ir.EmptyGraphData()
	}
	return eng.Data()
}

// Reconfigure pushes opts to the engine and waits for its render. Render
// failures are returned undecorated. If ctx ends first, Reconfigure returns
// ctx.Err() and the render continues. OnReady is the one from the latest
// Props revision.
func (g *Graph) Reconfigure(ctx context.Context, opts ir.Options) error {
	_, err := g.push(ctx, opts)
	return err
}

// Reconfigure pushes opts to the live mount on behalf of the owner. It
// returns ErrNotMounted when the controller is not mounted.
func (c *Controller) Reconfigure(ctx context.Context, opts ir.Options) error {
	sess := c.live.Load()
	if sess == nil {
		return ErrNotMounted
	}
	return (&Graph{c: c, sess: sess}).Reconfigure(ctx, opts)
}

// Push is Reconfigure returning the push outcome as well.
func (g *Graph) Push(ctx context.Context, opts ir.Options) (PushOutcome, error) {
	return g.push(ctx, opts)
}

func (g *Graph) push(ctx context.Context, opts ir.Options) (PushOutcome, error) {
	var onReady Hook
	if cfg := g.sess.cfg.Load(); cfg != nil {
		onReady = cfg.OnReady
	}

	done := make(chan PushOutcome, 1)
	g.sess.sync.start(ctx, opts, onReady, func(o PushOutcome) {
		done <- o
	})

	select {
	case o := <-done:
		return o, o.Err
	case <-ctx.Done():
		return PushOutcome{}, ctx.Err()
	}
}
