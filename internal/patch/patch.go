// Package patch applies partial-state updates onto typed state values.
package patch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
)

// Apply overlays fields onto state and returns the patched value. A
// map[string]any state is overlaid directly, key by key. Any other state goes
// through a JSON round-trip: field names follow the state type's JSON tags,
// and unknown fields are rejected so a mistyped field name surfaces as an
// error instead of a silent no-op.
func Apply[T any](state T, fields map[string]any) (T, error) {
	if len(fields) == 0 {
		return state, nil
	}

	if m, ok := any(state).(map[string]any); ok {
		out := make(map[string]any, len(m)+len(fields))
		maps.Copy(out, m)
		maps.Copy(out, fields)
		return any(out).(T), nil
	}

	var zero T
	encoded, err := json.Marshal(state)
	if err != nil {
		return zero, fmt.Errorf("patch: marshal state: %w", err)
	}
	var base map[string]any
	if err := json.Unmarshal(encoded, &base); err != nil {
		return zero, fmt.Errorf("patch: state is not patchable: %w", err)
	}
	if base == nil {
		base = map[string]any{}
	}
	maps.Copy(base, fields)

	merged, err := json.Marshal(base)
	if err != nil {
		return zero, fmt.Errorf("patch: marshal patched state: %w", err)
	}
	decoder := json.NewDecoder(bytes.NewReader(merged))
	decoder.DisallowUnknownFields()
	var result T
	if err := decoder.Decode(&result); err != nil {
		return zero, fmt.Errorf("patch: decode patched state: %w", err)
	}
	return result, nil
}
