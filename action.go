package store

import (
	"fmt"
	"strings"
)

// Action is an immutable message describing a state-change intent. Type is an
// opaque identifier; Payload carries arbitrary plain data.
type Action struct {
	Type    string
	Payload any
}

// Internal action types follow the convention
// "@store/<operation>[/<slice-or-field-name>]". The format is stable so
// logging and devtools consumers can rely on it; the engine itself never
// pattern-matches these strings except to recognise its own lifecycle events.
const (
	actionNamespace = "@store"

	opInit      = "init"
	opDestroy   = "destroy"
	opSetState  = "set-state"
	opConnect   = "connect"
	opUndo      = "undo"
	opDestroyed = "destroyed"
)

func internalActionType(op, name string) string {
	if name == "" {
		return fmt.Sprintf("%s/%s", actionNamespace, op)
	}
	return fmt.Sprintf("%s/%s/%s", actionNamespace, op, name)
}

// SliceInitAction is dispatched after a slice is registered so meta-reducers
// and extensions observe the event.
func SliceInitAction(key string) Action {
	return Action{Type: internalActionType(opInit, key)}
}

// SliceDestroyAction is dispatched before a slice is torn down, while its last
// state is still part of the snapshot.
func SliceDestroyAction(key string) Action {
	return Action{Type: internalActionType(opDestroy, key)}
}

// sliceDestroyTarget extracts the slice key from a slice-destroyed action. It
// reports false for any other action.
func sliceDestroyTarget(action Action) (string, bool) {
	prefix := internalActionType(opDestroy, "") + "/"
	key, found := strings.CutPrefix(action.Type, prefix)
	if !found || key == "" {
		return "", false
	}
	return key, true
}

// UndoAction wraps target into the internal action consumed by an undo-capture
// extension.
func UndoAction(target Action) Action {
	return Action{Type: internalActionType(opUndo, ""), Payload: target}
}

// UndoTarget extracts the action an undo request refers to. It reports false
// for any action that is not an undo request.
func UndoTarget(action Action) (Action, bool) {
	if action.Type != internalActionType(opUndo, "") {
		return Action{}, false
	}
	target, ok := action.Payload.(Action)
	return target, ok
}
