// Package store implements a single-process reactive state container: a
// central state snapshot mutated only through pure reducers driven by typed
// actions.
//
// The process-wide Store owns a mapping from slice keys to reducer functions.
// Dispatched actions flow through a strictly ordered queue, each producing a
// new immutable snapshot. Memoized selectors derive values from snapshots,
// effects turn asynchronous activity back into dispatched actions, and
// extensions contribute cross-cutting meta-reducers (logging, immutability
// enforcement, undo capture, devtools mirroring).
//
// Component containers offer the same machinery for independently-lifecycled
// local state that is not part of the process-wide snapshot.
package store
