package bridge

import (
	"sort"

	"github.com/roach88/vizbridge/internal/engine"
)

// Listener is an entry of an EventMap: either a HandlerFunc or an
// EventDescriptor.
type Listener interface {
	descriptor() EventDescriptor
}

// HandlerFunc is a bare event handler. It always fires.
type HandlerFunc func(engine.Event)

func (f HandlerFunc) descriptor() EventDescriptor {
	if f == nil {
		return EventDescriptor{}
	}
	return EventDescriptor{Handler: engine.Handler(f)}
}

// EventDescriptor pairs a handler with a one-shot flag.
type EventDescriptor struct {
	Handler engine.Handler
	Once    bool
}

func (d EventDescriptor) descriptor() EventDescriptor {
	return d
}

// Once wraps h in a one-shot descriptor.
func Once(h engine.Handler) EventDescriptor {
	return EventDescriptor{Handler: h, Once: true}
}

// EventMap maps event names to listeners. Nil listeners and descriptors
// without a handler are skipped.
type EventMap map[string]Listener

// binding is one subscription made by a bindingTable.
type binding struct {
	event string
	sub   engine.Subscription
}

// bindingTable records the subscriptions made for one mount so teardown can
// remove exactly those, leaving handlers installed by anyone else alone.
type bindingTable struct {
	eng      engine.Engine
	bindings []binding
}

// bindEvents subscribes every usable listener of events to eng, in sorted
// event-name order.
func bindEvents(eng engine.Engine, events EventMap) *bindingTable {
	names := make([]string, 0, len(events))
	for name := range events {
		names = append(names, name)
	}
	sort.Strings(names)

	t := &bindingTable{eng: eng}
	for _, name := range names {
		l := events[name]
		if l == nil {
			continue
		}
		d := l.descriptor()
		if d.Handler == nil {
			continue
		}
		sub := eng.On(name, d.Handler, d.Once)
		t.bindings = append(t.bindings, binding{event: name, sub: sub})
	}
	return t
}

// events returns the bound event names in binding order.
func (t *bindingTable) events() []string {
	out := make([]string, len(t.bindings))
	for i, b := range t.bindings {
		out[i] = b.event
	}
	return out
}

// unbind removes every recorded subscription once. Later calls do nothing.
// It returns the number of subscriptions removed.
func (t *bindingTable) unbind() int {
	n := len(t.bindings)
	for _, b := range t.bindings {
		t.eng.Off(b.sub)
	}
	t.bindings = nil
	return n
}
