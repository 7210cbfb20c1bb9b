// Package testutil provides deterministic engine doubles for tests and the
// scenario harness.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/roach88/vizbridge/internal/engine"
	"github.com/roach88/vizbridge/internal/ir"
)

// Operation names recorded by FakeEngine.
const (
	OpConstruct  = "construct"
	OpSetOptions = "set_options"
	OpRender     = "render"
	OpRenderDone = "render_done"
	OpOn         = "on"
	OpOff        = "off"
	OpOffAll     = "off_all"
	OpEmit       = "emit"
	OpDestroy    = "destroy"
)

// Call is one recorded engine operation.
type Call struct {
	Op string
	// Event is set for on, off and emit.
	Event string
	// Options is set for construct and set_options.
	Options ir.Options
	// Err is set for render_done.
	Err error
}

// FakeEngine is an engine.Engine that records every call. Renders resolve
// immediately unless the engine is gated, in which case each Render blocks
// until Release, ReleaseAll or Fail resolves it in FIFO order.
//
// Thread-safety: all methods are safe for concurrent use.
type FakeEngine struct {
	emitter engine.Emitter

	mu        sync.Mutex
	container engine.Container
	opts      ir.Options
	calls     []Call
	subs      map[engine.Subscription]string
	gated     bool
	pending   []chan error
	renderErr error
	destroyed bool
	renders   int
}

// NewFakeEngine returns an ungated fake constructed with opts.
func NewFakeEngine(container engine.Container, opts ir.Options) *FakeEngine {
	f := &FakeEngine{
		container: container,
		opts:      opts,
		subs:      make(map[engine.Subscription]string),
	}
	f.calls = append(f.calls, Call{Op: OpConstruct, Options: opts})
	return f
}

// Gate makes subsequent renders block until released.
func (f *FakeEngine) Gate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gated = true
}

// FailRenders makes every following render return err. Pass nil to restore.
func (f *FakeEngine) FailRenders(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renderErr = err
}

// Release resolves the oldest pending render successfully. It reports
// whether a render was pending.
func (f *FakeEngine) Release() bool {
	return f.resolve(nil)
}

// Fail resolves the oldest pending render with err.
func (f *FakeEngine) Fail(err error) bool {
	return f.resolve(err)
}

// ReleaseAll resolves every pending render successfully and returns how many
// were released.
func (f *FakeEngine) ReleaseAll() int {
	n := 0
	for f.resolve(nil) {
		n++
	}
	return n
}

func (f *FakeEngine) resolve(err error) bool {
	f.mu.Lock()
	if len(f.pending) == 0 {
		f.mu.Unlock()
		return false
	}
	ch := f.pending[0]
	f.pending = f.pending[1:]
	f.mu.Unlock()
	ch <- err
	return true
}

// Pending returns the number of renders waiting for release.
func (f *FakeEngine) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// Container returns the container the engine was constructed with.
func (f *FakeEngine) Container() engine.Container {
	return f.container
}

// SetOptions implements engine.Engine.
func (f *FakeEngine) SetOptions(opts ir.Options) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Op: OpSetOptions, Options: opts})
	if !f.destroyed {
		f.opts = opts
	}
}

// Options implements engine.Engine.
func (f *FakeEngine) Options() ir.Options {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opts
}

// Data implements engine.Engine.
func (f *FakeEngine) Data() ir.GraphData {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opts.Data.Clone()
}

// Render implements engine.Engine.
func (f *FakeEngine) Render(ctx context.Context) error {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Op: OpRender})
	if f.destroyed {
		f.calls = append(f.calls, Call{Op: OpRenderDone, Err: engine.ErrDestroyed})
		f.mu.Unlock()
		return engine.ErrDestroyed
	}
	injected := f.renderErr
	var wait chan error
	if f.gated {
		wait = make(chan error, 1)
		f.pending = append(f.pending, wait)
	}
	f.mu.Unlock()

	err := injected
	if wait != nil {
		select {
		case released := <-wait:
			if released != nil {
				err = released
			}
		case <-ctx.Done():
			err = ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Op: OpRenderDone, Err: err})
	if err == nil {
		f.renders++
	}
	return err
}

// On implements engine.Engine.
func (f *FakeEngine) On(event string, h engine.Handler, once bool) engine.Subscription {
	sub := f.emitter.On(event, h, once)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Op: OpOn, Event: event})
	f.subs[sub] = event
	return sub
}

// Off implements engine.Engine.
func (f *FakeEngine) Off(sub engine.Subscription) {
	f.emitter.Off(sub)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Op: OpOff, Event: f.subs[sub]})
	delete(f.subs, sub)
}

// OffAll implements engine.Engine.
func (f *FakeEngine) OffAll() {
	f.emitter.OffAll()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Op: OpOffAll})
	clear(f.subs)
}

// Emit implements engine.Engine. Events emitted after Destroy are dropped.
func (f *FakeEngine) Emit(ev engine.Event) {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Op: OpEmit, Event: ev.Type})
	destroyed := f.destroyed
	f.mu.Unlock()
	if destroyed {
		return
	}
	f.emitter.Emit(ev)
}

// Destroy implements engine.Engine. Pending renders stay pending.
func (f *FakeEngine) Destroy() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Op: OpDestroy})
	f.destroyed = true
}

// Destroyed implements engine.Engine.
func (f *FakeEngine) Destroyed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.destroyed
}

// Listeners returns the number of live subscriptions for event.
func (f *FakeEngine) Listeners(event string) int {
	return f.emitter.Listeners(event)
}

// Renders returns the number of renders that resolved successfully.
func (f *FakeEngine) Renders() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.renders
}

// Calls returns a copy of the call log.
func (f *FakeEngine) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// Ops returns the operation names of the call log.
func (f *FakeEngine) Ops() []string {
	calls := f.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Op
	}
	return out
}

// Count returns how many times op was called.
func (f *FakeEngine) Count(op string) int {
	n := 0
	for _, c := range f.Calls() {
		if c.Op == op {
			n++
		}
	}
	return n
}

// SetOptionsCalls returns the options of every set_options call in order.
func (f *FakeEngine) SetOptionsCalls() []ir.Options {
	var out []ir.Options
	for _, c := range f.Calls() {
		if c.Op == OpSetOptions {
			out = append(out, c.Options)
		}
	}
	return out
}

// ErrConstruct is returned by a failing FakeFactory.
var ErrConstruct = errors.New("fake engine: construction failed")

// FakeFactory builds FakeEngines and remembers them.
type FakeFactory struct {
	mu      sync.Mutex
	engines []*FakeEngine
	gated   bool
	fail    error
	panics  bool
}

// NewFakeFactory returns a factory producing ungated engines.
func NewFakeFactory() *FakeFactory {
	return &FakeFactory{}
}

// Gated makes every engine built from now on gated.
func (ff *FakeFactory) Gated() *FakeFactory {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	ff.gated = true
	return ff
}

// FailWith makes construction return err. Pass nil to restore.
func (ff *FakeFactory) FailWith(err error) *FakeFactory {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	ff.fail = err
	return ff
}

// Panic makes construction panic.
func (ff *FakeFactory) Panic() *FakeFactory {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	ff.panics = true
	return ff
}

// Factory returns the engine.Factory bound to ff.
func (ff *FakeFactory) Factory() engine.Factory {
	return func(container engine.Container, opts ir.Options) (engine.Engine, error) {
		ff.mu.Lock()
		defer ff.mu.Unlock()
		if ff.panics {
			panic(fmt.Sprintf("fake engine: construct %s", container.ContainerID()))
		}
		if ff.fail != nil {
			return nil, ff.fail
		}
		f := NewFakeEngine(container, opts)
		if ff.gated {
			f.gated = true
		}
		ff.engines = append(ff.engines, f)
		return f, nil
	}
}

// Engines returns every engine built so far.
func (ff *FakeFactory) Engines() []*FakeEngine {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	out := make([]*FakeEngine, len(ff.engines))
	copy(out, ff.engines)
	return out
}

// Last returns the most recent engine, or nil.
func (ff *FakeFactory) Last() *FakeEngine {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	if len(ff.engines) == 0 {
		return nil
	}
	return ff.engines[len(ff.engines)-1]
}
