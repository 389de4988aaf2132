// Package history provides the undo-capture extension: a meta-reducer that
// buffers processed actions so individual ones can later be removed from the
// timeline and the state recomputed without them.
package history

import (
	"reflect"
	"sync"

	store "github.com/goliatone/go-store"
)

// DefaultBufferSize bounds the replay window when no explicit size is given.
const DefaultBufferSize = 100

// Option configures an UndoExtension.
type Option func(*UndoExtension)

// WithBufferSize sets how many actions stay replayable. Actions older than the
// window are folded into the base state and can no longer be undone.
func WithBufferSize(size int) Option {
	return func(e *UndoExtension) {
		if size > 0 {
			e.size = size
		}
	}
}

// UndoExtension is the undo-capture extension. One value may be installed into
// many containers; each installation gets its own buffer.
type UndoExtension struct {
	size int
}

// New constructs an undo-capture extension.
func New(opts ...Option) *UndoExtension {
	e := &UndoExtension{size: DefaultBufferSize}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Kind identifies this extension as undo-capture.
func (e *UndoExtension) Kind() store.ExtensionKind {
	return store.ExtensionKindUndoCapture
}

// Init returns the capturing meta-reducer. Each wrapped reducer keeps a base
// state plus the window of actions applied since; an undo request drops every
// buffered action equal to the target and replays the remainder on top of the
// base.
func (e *UndoExtension) Init() store.MetaReducer {
	size := e.size
	return func(next store.Reducer) store.Reducer {
		var (
			mu       sync.Mutex
			base     any
			seeded   bool
			buffered []store.Action
		)
		return func(state any, action store.Action) any {
			mu.Lock()
			defer mu.Unlock()
			if !seeded {
				base = state
				seeded = true
			}
			if target, ok := store.UndoTarget(action); ok {
				kept := make([]store.Action, 0, len(buffered))
				for _, entry := range buffered {
					if !actionsEqual(entry, target) {
						kept = append(kept, entry)
					}
				}
				buffered = kept
				result := base
				for _, replay := range buffered {
					result = next(result, replay)
				}
				return result
			}

			result := next(state, action)
			buffered = append(buffered, action)
			if overflow := len(buffered) - size; overflow > 0 {
				for _, folded := range buffered[:overflow] {
					base = next(base, folded)
				}
				buffered = append([]store.Action(nil), buffered[overflow:]...)
			}
			return result
		}
	}
}

// actionsEqual matches an undo target against a buffered action. Function
// payloads, which carry component state transitions, compare by identity;
// everything else compares structurally.
func actionsEqual(a, b store.Action) bool {
	if a.Type != b.Type {
		return false
	}
	if a.Payload == nil || b.Payload == nil {
		return a.Payload == nil && b.Payload == nil
	}
	av := reflect.ValueOf(a.Payload)
	bv := reflect.ValueOf(b.Payload)
	if av.Kind() == reflect.Func || bv.Kind() == reflect.Func {
		return av.Kind() == bv.Kind() && av.Pointer() == bv.Pointer()
	}
	return reflect.DeepEqual(a.Payload, b.Payload)
}
