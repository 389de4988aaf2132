package store

import (
	"slices"
	"sync"
)

type actionListener func(Action)

// actionQueue serialises dispatched actions into one strictly ordered stream.
// Listeners are notified for every action, in dispatch order, one action at a
// time. A dispatch issued from inside a listener (re-entrant dispatch) only
// enqueues: the buffered action is processed after the current action's
// listener notifications complete, never interleaved with them.
type actionQueue struct {
	mu        sync.Mutex
	buffer    []Action
	draining  bool
	listeners []actionListener
}

func newActionQueue() *actionQueue {
	return &actionQueue{}
}

// subscribe registers a listener on the action stream. Listeners registered
// mid-drain observe subsequent actions only.
func (q *actionQueue) subscribe(listener actionListener) {
	if listener == nil {
		return
	}
	q.mu.Lock()
	q.listeners = append(q.listeners, listener)
	q.mu.Unlock()
}

// dispatch enqueues action and drains the buffer unless a drain is already in
// progress, either higher up this goroutine's call stack or on another
// goroutine. The queue is unbounded; no action is ever dropped.
func (q *actionQueue) dispatch(action Action) {
	q.mu.Lock()
	q.buffer = append(q.buffer, action)
	if q.draining {
		q.mu.Unlock()
		return
	}
	q.draining = true
	for len(q.buffer) > 0 {
		next := q.buffer[0]
		q.buffer = q.buffer[1:]
		listeners := slices.Clone(q.listeners)
		q.mu.Unlock()
		for _, listener := range listeners {
			listener(next)
		}
		q.mu.Lock()
	}
	q.draining = false
	q.mu.Unlock()
}
