package store

import (
	"slices"
	"sync"
)

// sliceRegistration is the record owned by the reducer manager for one
// registered slice. It is created once, never mutated, and destroyed on
// explicit teardown.
type sliceRegistration struct {
	key     string
	reducer Reducer
	initial any

	// effective is the slice reducer wrapped by its local meta-reducers
	// (innermost) and the store-wide chain (outermost). Recomputed whenever
	// the store-wide chain changes.
	effective Reducer
}

// reducerManager owns the slice registration records and the store-wide
// meta-reducer chain, and computes snapshot transitions.
type reducerManager struct {
	mu      sync.Mutex
	order   []string
	records map[string]*sliceRegistration
	locals  map[string][]MetaReducer

	// chain holds store-wide meta-reducers in application order: the last
	// entry is applied outermost. The extension pipeline guarantees the
	// immutability-enforcement category sorts last.
	chain []MetaReducer
}

func newReducerManager() *reducerManager {
	return &reducerManager{
		records: make(map[string]*sliceRegistration),
		locals:  make(map[string][]MetaReducer),
	}
}

// register adds a slice record. The snapshot entry for key materialises on the
// next reduction: the slice's reducer sees its initial state (or nil when none
// was supplied, letting the reducer apply its own default).
func (m *reducerManager) register(key string, reducer Reducer, metaReducers []MetaReducer, initial any) error {
	if key == "" {
		return newConfigurationError("register slice", key, ErrUnknownKey)
	}
	if reducer == nil {
		return newConfigurationError("register slice", key, errNilReducer)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.records[key]; exists {
		return newConfigurationError("register slice", key, ErrDuplicateKey)
	}
	record := &sliceRegistration{
		key:     key,
		reducer: reducer,
		initial: initial,
	}
	m.records[key] = record
	m.locals[key] = slices.Clone(metaReducers)
	m.order = append(m.order, key)
	m.recombineLocked(record)
	return nil
}

// unregister removes the record for key. The caller is responsible for
// dispatching the slice-destroyed action beforehand and for publishing the
// shrunk snapshot afterwards.
func (m *reducerManager) unregister(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.records[key]; !exists {
		return newConfigurationError("unregister slice", key, ErrUnknownKey)
	}
	delete(m.records, key)
	delete(m.locals, key)
	m.order = slices.DeleteFunc(m.order, func(k string) bool { return k == key })
	return nil
}

func (m *reducerManager) registered(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records[key]
	return ok
}

// keys returns the registered slice keys in registration order.
func (m *reducerManager) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.order)
}

// addMetaReducers appends to the store-wide chain. Each new meta-reducer wraps
// the existing effective reducer of every slice in place, so state held by
// already-installed meta-reducer closures survives the change. The change is
// not retroactive: only the next dispatched action observes the new chain.
func (m *reducerManager) addMetaReducers(metaReducers ...MetaReducer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, meta := range metaReducers {
		if meta == nil {
			continue
		}
		m.chain = append(m.chain, meta)
		for _, key := range m.order {
			record := m.records[key]
			record.effective = meta(record.effective)
		}
	}
}

// recombineLocked rebuilds the effective reducer for record: local
// meta-reducers wrap the slice reducer first (the first local is the
// outermost of the locals), then the store-wide chain wraps the result, last
// entry outermost.
func (m *reducerManager) recombineLocked(record *sliceRegistration) {
	effective := record.reducer
	locals := m.locals[record.key]
	for i := len(locals) - 1; i >= 0; i-- {
		if locals[i] == nil {
			continue
		}
		effective = locals[i](effective)
	}
	for _, meta := range m.chain {
		effective = meta(effective)
	}
	record.effective = effective
}

// reduce applies action to every registered slice in registration order and
// collects the results into a new snapshot. When no slice result differs by
// reference from its previous value and the key set is unchanged, the
// previous snapshot is returned as-is so downstream consumers can
// short-circuit on reference equality.
func (m *reducerManager) reduce(snapshot Snapshot, action Action) Snapshot {
	m.mu.Lock()
	keys := slices.Clone(m.order)
	reducers := make([]Reducer, len(keys))
	initials := make([]any, len(keys))
	for i, key := range keys {
		reducers[i] = m.records[key].effective
		initials[i] = m.records[key].initial
	}
	m.mu.Unlock()

	next := make(Snapshot, len(keys))
	changed := false
	sameKeys := len(snapshot) == len(keys)
	for i, key := range keys {
		prev, seeded := snapshot[key]
		if !seeded {
			prev = initials[i]
			sameKeys = false
		}
		result := reducers[i](prev, action)
		next[key] = result
		if !seeded || !sameRef(prev, result) {
			changed = true
		}
	}
	if !changed && sameKeys {
		return snapshot
	}
	return next
}
