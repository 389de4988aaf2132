package store

import "slices"

// ExtensionKind enumerates the closed set of extension categories.
type ExtensionKind int

const (
	ExtensionKindUnknown ExtensionKind = iota
	// ExtensionKindLogging logs every processed action.
	ExtensionKindLogging
	// ExtensionKindDevtoolsMirror forwards snapshot changes to an external
	// tool.
	ExtensionKindDevtoolsMirror
	// ExtensionKindUndoCapture buffers actions so individual ones can be
	// undone. At most one may be active per container.
	ExtensionKindUndoCapture
	// ExtensionKindImmutability detaches changed state from references the
	// producing reducer may still hold. Always applied outermost.
	ExtensionKindImmutability
)

func (k ExtensionKind) String() string {
	switch k {
	case ExtensionKindLogging:
		return "logging"
	case ExtensionKindDevtoolsMirror:
		return "devtools-mirror"
	case ExtensionKindUndoCapture:
		return "undo-capture"
	case ExtensionKindImmutability:
		return "immutability"
	default:
		return "unknown"
	}
}

// Extension contributes a meta-reducer and/or a snapshot observation hook to
// a container. One registration yields at most one executing instance, but an
// Extension value may be reused as a class of behaviour across many
// containers: Init is invoked once per installation.
type Extension interface {
	Kind() ExtensionKind
	// Init returns the extension's meta-reducer, or nil when the extension
	// only observes.
	Init() MetaReducer
}

// Observer is implemented by extensions that want to see every published
// state alongside the action that produced it. The received state is the
// container's immutable snapshot and must not be mutated.
type Observer interface {
	Observe(state any, action Action)
}

// extensionPriority is the fixed ordering table applied at installation,
// independent of call-site order. Lower priorities sit closer to the slice
// reducer; the immutability category sorts last so every downstream observer
// already sees a detached result, and undo-capture observes state before
// immutability finalises it.
func extensionPriority(kind ExtensionKind) int {
	switch kind {
	case ExtensionKindLogging:
		return 10
	case ExtensionKindDevtoolsMirror:
		return 20
	case ExtensionKindUndoCapture:
		return 30
	case ExtensionKindImmutability:
		return 100
	default:
		return 0
	}
}

// MergeExtensions combines store-wide and scoped extension lists. Scoped
// entries take precedence over store-wide entries of the same kind; entries
// of distinct kinds from both levels are all kept. The result is sorted by
// the fixed priority table, stable within equal priorities.
func MergeExtensions(global, scoped []Extension) []Extension {
	seen := make(map[ExtensionKind]struct{}, len(scoped))
	merged := make([]Extension, 0, len(global)+len(scoped))
	for _, ext := range scoped {
		if ext == nil {
			continue
		}
		if _, exists := seen[ext.Kind()]; exists {
			continue
		}
		seen[ext.Kind()] = struct{}{}
		merged = append(merged, ext)
	}
	for _, ext := range global {
		if ext == nil {
			continue
		}
		if _, exists := seen[ext.Kind()]; exists {
			continue
		}
		seen[ext.Kind()] = struct{}{}
		merged = append(merged, ext)
	}
	return sortExtensions(merged)
}

func sortExtensions(extensions []Extension) []Extension {
	sorted := slices.Clone(extensions)
	slices.SortStableFunc(sorted, func(a, b Extension) int {
		return extensionPriority(a.Kind()) - extensionPriority(b.Kind())
	})
	return sorted
}

func hasUndoCapture(extensions []Extension) bool {
	for _, ext := range extensions {
		if ext != nil && ext.Kind() == ExtensionKindUndoCapture {
			return true
		}
	}
	return false
}
