package bridge

import (
	"github.com/roach88/vizbridge/internal/engine"
	"github.com/roach88/vizbridge/internal/reactive"
)

// HandleStore holds the current engine instance, or nil before mount and
// after teardown. Only the Controller writes it.
type HandleStore struct {
	sig *reactive.Signal[engine.Engine]
}

// NewHandleStore creates an empty store.
func NewHandleStore() *HandleStore {
	return &HandleStore{sig: reactive.NewSignal[engine.Engine](nil)}
}

// Load returns the stored engine, which may be nil or destroyed.
func (h *HandleStore) Load() engine.Engine {
	return h.sig.Get()
}

// Live returns the stored engine if there is one and it is not destroyed.
func (h *HandleStore) Live() (engine.Engine, bool) {
	eng := h.sig.Get()
	if eng == nil || eng.Destroyed() {
		return nil, false
	}
	return eng, true
}

// Populated reports whether the store holds an engine.
func (h *HandleStore) Populated() bool {
	return h.sig.Get() != nil
}

// Subscribe calls fn with the new engine (nil on clear) on every transition.
func (h *HandleStore) Subscribe(fn func(engine.Engine)) (unsubscribe func()) {
	return h.sig.Subscribe(fn)
}

func (h *HandleStore) publish(eng engine.Engine) {
	h.sig.Set(eng)
}

func (h *HandleStore) clear() {
	if h.sig.Get() == nil {
		return
	}
	h.sig.Set(nil)
}
