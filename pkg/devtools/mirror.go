// Package devtools forwards processed actions and the snapshots they produced
// to an external inspection tool.
package devtools

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	store "github.com/goliatone/go-store"
)

// Entry is one recorded dispatch: the action, the state it produced, and when
// the container processed it.
type Entry struct {
	ID         string    `json:"id"`
	ActionType string    `json:"action_type"`
	Payload    any       `json:"payload,omitempty"`
	State      any       `json:"state"`
	RecordedAt time.Time `json:"recorded_at"`
}

// ToJSON renders the entry for transports that speak JSON.
func (e Entry) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// Mirror receives entries as the container processes actions. Record is
// called synchronously from the dispatch path and must not dispatch.
type Mirror interface {
	Record(entry Entry) error
}

// MirrorFunc allows plain functions to satisfy Mirror.
type MirrorFunc func(entry Entry) error

// Record invokes the wrapped function.
func (f MirrorFunc) Record(entry Entry) error {
	return f(entry)
}

// Option configures a MirrorExtension.
type Option func(*MirrorExtension)

// WithOnError registers a callback for mirror delivery failures. Failures
// never interrupt dispatch.
func WithOnError(handler func(error)) Option {
	return func(e *MirrorExtension) {
		e.onError = handler
	}
}

// MirrorExtension observes every processed action and forwards it to the
// configured mirror. It contributes no meta-reducer.
type MirrorExtension struct {
	mirror  Mirror
	onError func(error)
}

// New constructs a devtools-mirror extension around mirror.
func New(mirror Mirror, opts ...Option) *MirrorExtension {
	e := &MirrorExtension{mirror: mirror}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Kind identifies this extension as a devtools mirror.
func (e *MirrorExtension) Kind() store.ExtensionKind {
	return store.ExtensionKindDevtoolsMirror
}

// Init returns nil; the extension only observes.
func (e *MirrorExtension) Init() store.MetaReducer {
	return nil
}

// Observe records the processed action with the snapshot it produced.
func (e *MirrorExtension) Observe(state any, action store.Action) {
	if e.mirror == nil {
		return
	}
	entry := Entry{
		ID:         uuid.NewString(),
		ActionType: action.Type,
		Payload:    action.Payload,
		State:      state,
		RecordedAt: time.Now().UTC(),
	}
	if err := e.mirror.Record(entry); err != nil && e.onError != nil {
		e.onError(err)
	}
}
