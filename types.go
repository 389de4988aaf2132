package store

import "reflect"

// Reducer computes the next slice state from the previous state and an action.
// Reducers must be pure and total: they never mutate their input, and they
// return the previous state unchanged (same reference) when the action does
// not concern them, which is what enables no-op detection downstream.
type Reducer func(state any, action Action) any

// MetaReducer wraps a reducer, producing another reducer of the same
// signature. Composition order is observable: outer meta-reducers see the
// results of inner ones.
type MetaReducer func(next Reducer) Reducer

// Snapshot is the immutable mapping from slice key to slice state. A snapshot
// is replaced, never mutated in place, so concurrent readers always observe a
// complete, consistent value. Its key set always equals the set of currently
// registered slices.
type Snapshot map[string]any

// sameRef reports whether a and b are the same value under the strict
// reference semantics the selector cache and no-op detection rely on.
// Pointers, maps, slices, channels, and functions compare by identity;
// comparable scalars compare by value, the closest analogue of reference
// equality for primitives.
func sameRef(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	av := reflect.ValueOf(a)
	bv := reflect.ValueOf(b)
	if av.Type() != bv.Type() {
		return false
	}
	switch av.Kind() {
	case reflect.Pointer, reflect.Chan, reflect.Func, reflect.UnsafePointer, reflect.Map:
		return av.Pointer() == bv.Pointer()
	case reflect.Slice:
		return av.Pointer() == bv.Pointer() && av.Len() == bv.Len()
	default:
		if av.Comparable() {
			return a == b
		}
		return false
	}
}

// sameSnapshot compares snapshots by map identity.
func sameSnapshot(a, b Snapshot) bool {
	return sameRef(a, b)
}
