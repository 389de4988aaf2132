package store

import "sync"

// Selection is a live handle over a derived value. Value returns the current
// derivation; Subscribe observes future changes. Notifications fire only when
// the derived value's reference changes, so selectors that preserve
// references on unrelated updates stay silent.
type Selection[R any] struct {
	mu        sync.Mutex
	current   R
	listeners map[int]func(R)
	nextID    int
	detach    func()
}

func newSelection[R any](initial R) *Selection[R] {
	return &Selection[R]{
		current:   initial,
		listeners: make(map[int]func(R)),
	}
}

// Value returns the current derived value.
func (sel *Selection[R]) Value() R {
	sel.mu.Lock()
	defer sel.mu.Unlock()
	return sel.current
}

// Subscribe registers a listener invoked with every changed derived value.
// The returned function removes the listener.
func (sel *Selection[R]) Subscribe(listener func(R)) func() {
	if listener == nil {
		return func() {}
	}
	sel.mu.Lock()
	id := sel.nextID
	sel.nextID++
	sel.listeners[id] = listener
	sel.mu.Unlock()
	return func() {
		sel.mu.Lock()
		delete(sel.listeners, id)
		sel.mu.Unlock()
	}
}

// Close detaches the selection from its container. Value keeps returning the
// last derivation; no further notifications fire.
func (sel *Selection[R]) Close() {
	if sel.detach != nil {
		sel.detach()
	}
}

// publish stores value and notifies listeners when the reference changed.
func (sel *Selection[R]) publish(value R) {
	sel.mu.Lock()
	if sameRef(sel.current, value) {
		sel.mu.Unlock()
		return
	}
	sel.current = value
	listeners := make([]func(R), 0, len(sel.listeners))
	for _, listener := range sel.listeners {
		listeners = append(listeners, listener)
	}
	sel.mu.Unlock()
	for _, listener := range listeners {
		listener(value)
	}
}

// Select returns a live derived-value handle bound to s. The selector runs
// once immediately and then on every published snapshot; memoized selectors
// keep their short-circuiting behaviour because the handle only notifies on
// reference changes.
func Select[R any](s *Store, selector Selector[Snapshot, R]) *Selection[R] {
	sel := newSelection(selector(s.Snapshot()))
	sel.detach = s.Subscribe(func(snapshot Snapshot) {
		sel.publish(selector(snapshot))
	})
	return sel
}
