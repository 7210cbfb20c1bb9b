// Package reactive provides the change-notification cells the bridge is
// driven by.
//
// A Signal holds one value and notifies subscribers synchronously, in
// subscription order, every time Set is called. There is no equality check:
// setting a value equal to the current one still notifies, because the
// values flowing through a bridge (option structs with maps and style
// functions) have no meaningful equality.
package reactive

import "sync"

// Signal is a value cell with change notification.
//
// Thread-safety: Get, Set and Subscribe are safe for concurrent use.
// Notifications for one Set are delivered on the goroutine that called Set,
// after the new value is visible to Get, and outside the internal lock so a
// subscriber may read the signal or Set other signals.
type Signal[T any] struct {
	mu      sync.RWMutex
	value   T
	version uint64
	nextID  uint64
	subs    []subscription[T]
}

type subscription[T any] struct {
	id uint64
	fn func(T)
}

// NewSignal creates a signal holding initial.
func NewSignal[T any](initial T) *Signal[T] {
	return &Signal[T]{value: initial}
}

// Get returns the current value.
func (s *Signal[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Version returns the number of Set calls so far.
func (s *Signal[T]) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Snapshot returns the current value and the version it was set at,
// read together.
func (s *Signal[T]) Snapshot() (T, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value, s.version
}

// Set stores v and notifies every subscriber with it.
func (s *Signal[T]) Set(v T) {
	s.mu.Lock()
	s.value = v
	s.version++
	subs := make([]subscription[T], len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		if s.subscribed(sub.id) {
			sub.fn(v)
		}
	}
}

// Update applies fn to the current value and sets the result.
func (s *Signal[T]) Update(fn func(T) T) {
	s.Set(fn(s.Get()))
}

// Subscribe registers fn for future changes and returns a function that
// removes it. The returned function is idempotent. fn is not called with the
// current value.
func (s *Signal[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscription[T]{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Subscribers returns the number of live subscriptions.
func (s *Signal[T]) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

func (s *Signal[T]) subscribed(id uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sub := range s.subs {
		if sub.id == id {
			return true
		}
	}
	return false
}

// Derived is a read-only view computed from a source signal. It recomputes
// on every source change and notifies its own subscribers with the result.
type Derived[S, T any] struct {
	out   *Signal[T]
	unsub func()
}

// Derive creates a view of src through fn. The view holds fn(src.Get())
// immediately and follows every later Set on src until Stop is called.
func Derive[S, T any](src *Signal[S], fn func(S) T) *Derived[S, T] {
	d := &Derived[S, T]{out: NewSignal(fn(src.Get()))}
	d.unsub = src.Subscribe(func(v S) {
		d.out.Set(fn(v))
	})
	return d
}

// Get returns the latest computed value.
func (d *Derived[S, T]) Get() T {
	return d.out.Get()
}

// Subscribe registers fn for recomputed values.
func (d *Derived[S, T]) Subscribe(fn func(T)) func() {
	return d.out.Subscribe(fn)
}

// Stop detaches the view from its source.
func (d *Derived[S, T]) Stop() {
	d.unsub()
}
