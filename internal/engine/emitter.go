package engine

import "sync"

// Emitter is a subscription table with one-shot support. Engines embed it to
// implement On, Off, OffAll and Emit.
//
// The zero value is ready to use. Handlers run outside the internal lock, so
// a handler may subscribe or unsubscribe without deadlocking.
type Emitter struct {
	mu     sync.Mutex
	last   Subscription
	byName map[string][]subscriber
	names  map[Subscription]string
}

type subscriber struct {
	id   Subscription
	h    Handler
	once bool
}

// On registers h for the named event and returns its subscription.
func (e *Emitter) On(event string, h Handler, once bool) Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.byName == nil {
		e.byName = make(map[string][]subscriber)
		e.names = make(map[Subscription]string)
	}

	e.last++
	id := e.last
	e.byName[event] = append(e.byName[event], subscriber{id: id, h: h, once: once})
	e.names[id] = event
	return id
}

// Off removes one subscription. Unknown or already-removed ids are ignored.
func (e *Emitter) Off(sub Subscription) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.removeLocked(sub)
}

func (e *Emitter) removeLocked(sub Subscription) bool {
	event, ok := e.names[sub]
	if !ok {
		return false
	}
	delete(e.names, sub)

	subs := e.byName[event]
	for i, s := range subs {
		if s.id == sub {
			subs = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(subs) == 0 {
		delete(e.byName, event)
	} else {
		e.byName[event] = subs
	}
	return true
}

// OffAll removes every subscription.
func (e *Emitter) OffAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.byName = nil
	e.names = nil
}

// Emit calls every handler subscribed to ev.Type in subscription order.
// One-shot handlers are removed before they run; when two goroutines race on
// the same one-shot subscription only the one that removes it calls it.
func (e *Emitter) Emit(ev Event) {
	e.mu.Lock()
	snapshot := make([]subscriber, len(e.byName[ev.Type]))
	copy(snapshot, e.byName[ev.Type])
	e.mu.Unlock()

	for _, s := range snapshot {
		if s.once {
			e.mu.Lock()
			removed := e.removeLocked(s.id)
			e.mu.Unlock()
			if !removed {
				continue
			}
		} else if !e.active(s.id) {
			continue
		}
		s.h(ev)
	}
}

func (e *Emitter) active(sub Subscription) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.names[sub]
	return ok
}

// Listeners returns the number of live subscriptions for an event.
func (e *Emitter) Listeners(event string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.byName[event])
}

// Total returns the number of live subscriptions across all events.
func (e *Emitter) Total() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.names)
}
