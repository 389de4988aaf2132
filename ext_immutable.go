package store

// ImmutableStateExtension deep-clones every changed slice result so state held
// by consumers cannot be mutated through shared references. Unchanged results
// pass through untouched, preserving the reference equality that no-op
// detection and selector memoization depend on. The extension pipeline always
// applies this category outermost.
type ImmutableStateExtension struct{}

// NewImmutableStateExtension constructs the immutability-enforcement
// extension.
func NewImmutableStateExtension() *ImmutableStateExtension {
	return &ImmutableStateExtension{}
}

// Kind implements Extension.
func (e *ImmutableStateExtension) Kind() ExtensionKind {
	return ExtensionKindImmutability
}

// Init implements Extension.
func (e *ImmutableStateExtension) Init() MetaReducer {
	return func(next Reducer) Reducer {
		return func(state any, action Action) any {
			result := next(state, action)
			if sameRef(state, result) {
				return result
			}
			return Clone(result)
		}
	}
}
