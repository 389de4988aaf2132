package store

import (
	"slices"
	"sort"
	"sync"
)

// Config seeds a store at configuration time. Every field is optional.
type Config struct {
	// Reducers registers one slice per key before the first dispatch.
	Reducers map[string]Reducer
	// InitialState supplies per-key initial values for the slices in
	// Reducers. Keys without an entry fall back to the reducer's own default
	// applied to nil.
	InitialState Snapshot
	// MetaReducers appends to the store-wide chain.
	MetaReducers []MetaReducer
	// Extensions is the store-wide extension configuration. It may be
	// supplied at most once per store, here or via UseExtensions.
	Extensions []Extension
	// Logger receives store log events. Defaults to a noop.
	Logger Logger
	// Projector evaluates Query expressions. Defaults to the expr engine.
	Projector Projector
	// ProgramCache caches compiled query programs for the default projector.
	ProgramCache ProgramCache
	// Functions exposes custom functions to query expressions.
	Functions *FunctionRegistry
	// OnEffectError receives terminal effect failures in addition to the
	// logger.
	OnEffectError func(*EffectError)
}

// Store is the process-wide state container: one reducer manager, one action
// queue, one effect runtime, and the canonical snapshot. It is an explicit,
// explicitly-constructed context object meant to be injected into consumers;
// the one-per-process invariant is enforced as a contract (Configure fails on
// the second call), not through a package-level singleton.
type Store struct {
	mu            sync.Mutex
	configured    bool
	extConfigured bool

	queue   *actionQueue
	manager *reducerManager
	effects *effectRuntime

	extensions    []Extension
	observers     []Observer
	undoAvailable bool

	logger        Logger
	projector     Projector
	programCache  ProgramCache
	functions     *FunctionRegistry
	onEffectError func(*EffectError)

	stateMu   sync.RWMutex
	snapshot  Snapshot
	listeners map[int]func(Snapshot)
	nextID    int
}

// New constructs an unconfigured store. Slice registration and dispatch work
// immediately; Configure may follow later without losing anything.
func New() *Store {
	s := &Store{
		logger:    noopLogger{},
		listeners: make(map[int]func(Snapshot)),
	}
	s.init()
	return s
}

func (s *Store) init() {
	s.queue = newActionQueue()
	s.manager = newReducerManager()
	s.effects = newEffectRuntime(s.Dispatch, s.reportEffectError)
	s.snapshot = Snapshot{}
	s.queue.subscribe(s.onAction)
}

// Configure applies cfg. It may run at most once per store; a second call
// fails with ConfigurationError and changes nothing.
func (s *Store) Configure(cfg Config) error {
	s.mu.Lock()
	if s.configured {
		s.mu.Unlock()
		return newConfigurationError("configure", "", ErrAlreadyConfigured)
	}
	if len(cfg.Extensions) > 0 && s.extConfigured {
		s.mu.Unlock()
		return newConfigurationError("configure", "", ErrExtensionsConfigured)
	}
	s.configured = true
	if cfg.Logger != nil {
		s.logger = cfg.Logger
	}
	if cfg.Projector != nil {
		s.projector = cfg.Projector
	}
	if cfg.ProgramCache != nil {
		s.programCache = cfg.ProgramCache
	}
	if cfg.Functions != nil {
		s.functions = cfg.Functions.Clone()
	}
	if cfg.OnEffectError != nil {
		s.onEffectError = cfg.OnEffectError
	}
	s.mu.Unlock()

	if len(cfg.Extensions) > 0 {
		if err := s.UseExtensions(cfg.Extensions...); err != nil {
			return err
		}
	}
	if len(cfg.MetaReducers) > 0 {
		s.manager.addMetaReducers(cfg.MetaReducers...)
	}

	keys := make([]string, 0, len(cfg.Reducers))
	for key := range cfg.Reducers {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		opts := []SliceOption{}
		if initial, ok := cfg.InitialState[key]; ok {
			opts = append(opts, WithInitialState(initial))
		}
		if err := s.RegisterSlice(key, cfg.Reducers[key], opts...); err != nil {
			return err
		}
	}
	return nil
}

// UseExtensions installs the store-wide extension configuration. It may be
// supplied at most once per store; installation order is re-sorted by the
// fixed priority table regardless of call-site order.
func (s *Store) UseExtensions(extensions ...Extension) error {
	s.mu.Lock()
	if s.extConfigured {
		s.mu.Unlock()
		return newConfigurationError("use extensions", "", ErrExtensionsConfigured)
	}
	undoSeen := false
	for _, ext := range extensions {
		if ext == nil || ext.Kind() != ExtensionKindUndoCapture {
			continue
		}
		if undoSeen {
			s.mu.Unlock()
			return newConfigurationError("use extensions", "", errDuplicateUndo)
		}
		undoSeen = true
	}
	s.extConfigured = true
	sorted := sortExtensions(extensions)
	s.extensions = sorted
	metas := make([]MetaReducer, 0, len(sorted))
	for _, ext := range sorted {
		if ext == nil {
			continue
		}
		if meta := ext.Init(); meta != nil {
			metas = append(metas, meta)
		}
		if observer, ok := ext.(Observer); ok {
			s.observers = append(s.observers, observer)
		}
		if ext.Kind() == ExtensionKindUndoCapture {
			s.undoAvailable = true
		}
	}
	s.mu.Unlock()

	if len(metas) > 0 {
		s.manager.addMetaReducers(metas...)
	}
	return nil
}

// Extensions returns the installed store-wide extensions in priority order.
// Component containers merge these with their scoped configuration.
func (s *Store) Extensions() []Extension {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.extensions)
}

// SliceOption configures a slice registration.
type SliceOption func(*sliceConfig)

type sliceConfig struct {
	metaReducers []MetaReducer
	initial      any
}

// WithInitialState seeds the slice with an explicit initial value instead of
// the reducer's default.
func WithInitialState(initial any) SliceOption {
	return func(cfg *sliceConfig) {
		cfg.initial = initial
	}
}

// WithSliceMetaReducers attaches meta-reducers local to this slice. They wrap
// the slice reducer innermost, before the store-wide chain.
func WithSliceMetaReducers(metaReducers ...MetaReducer) SliceOption {
	return func(cfg *sliceConfig) {
		cfg.metaReducers = append(cfg.metaReducers, metaReducers...)
	}
}

// RegisterSlice adds a slice to the store. Registration fails with
// ConfigurationError when key is already present, leaving the prior
// registration untouched. On success the slice-initialized action is
// dispatched synchronously, seeding the snapshot entry and letting
// meta-reducers observe the event.
func (s *Store) RegisterSlice(key string, reducer Reducer, opts ...SliceOption) error {
	cfg := sliceConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if err := s.manager.register(key, reducer, cfg.metaReducers, cfg.initial); err != nil {
		return err
	}
	s.Dispatch(SliceInitAction(key))
	return nil
}

// UnregisterSlice tears a slice down by dispatching the slice-destroyed
// action. Teardown happens while that action is processed: meta-reducers and
// extensions observe it with the slice's last state still part of the
// snapshot, then the key is removed and the shrunk snapshot published. The
// ordering holds even when the call is made re-entrantly from a listener,
// where the action is processed once the current drain reaches it.
func (s *Store) UnregisterSlice(key string) error {
	if !s.manager.registered(key) {
		return newConfigurationError("unregister slice", key, ErrUnknownKey)
	}
	s.Dispatch(SliceDestroyAction(key))
	return nil
}

// AddMetaReducers appends to the store-wide meta-reducer chain. The next
// dispatched action observes the new chain; previous reductions are not
// replayed.
func (s *Store) AddMetaReducers(metaReducers ...MetaReducer) {
	s.manager.addMetaReducers(metaReducers...)
}

// Dispatch enqueues action for processing and returns without a synchronous
// state-update result. Actions dispatched re-entrantly from listeners or
// reducers' observers are processed strictly after the current action.
func (s *Store) Dispatch(action Action) {
	s.queue.dispatch(action)
}

// Snapshot returns the current state snapshot. The returned map must be
// treated as immutable.
func (s *Store) Snapshot() Snapshot {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.snapshot
}

// Subscribe registers a listener invoked with every published snapshot. The
// returned function removes the listener.
func (s *Store) Subscribe(listener func(Snapshot)) func() {
	if listener == nil {
		return func() {}
	}
	s.stateMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = listener
	s.stateMu.Unlock()
	return func() {
		s.stateMu.Lock()
		delete(s.listeners, id)
		s.stateMu.Unlock()
	}
}

// RegisterEffect subscribes source to this store's effect runtime. Emitted
// actions feed back into the dispatch queue unless the effect was registered
// with WithoutDispatch.
func (s *Store) RegisterEffect(source EffectSource, opts ...EffectOption) *EffectSubscription {
	return s.effects.register(source, opts...)
}

// Undo requests that a previously dispatched action be undone. It fails fast
// with UndoUnavailableError when no undo-capture extension is installed.
func (s *Store) Undo(action Action) error {
	s.mu.Lock()
	available := s.undoAvailable
	s.mu.Unlock()
	if !available {
		return &UndoUnavailableError{Container: "store"}
	}
	s.Dispatch(UndoAction(action))
	return nil
}

// onAction runs inside the queue drain: it computes the next snapshot,
// publishes it when changed, and notifies observers. Reduction is synchronous
// with respect to the action, so a panicking reducer surfaces at the dispatch
// call site with the previous snapshot intact.
func (s *Store) onAction(action Action) {
	s.stateMu.RLock()
	prev := s.snapshot
	s.stateMu.RUnlock()

	next := s.manager.reduce(prev, action)
	if !sameSnapshot(prev, next) {
		s.stateMu.Lock()
		s.snapshot = next
		s.stateMu.Unlock()
		s.notifyListeners(next)
	}
	s.notifyObservers(next, action)

	if key, ok := sliceDestroyTarget(action); ok {
		s.finishUnregister(key)
	}
}

// finishUnregister removes the slice record once its destroy action has been
// reduced and observed, then publishes the shrunk snapshot. It runs inside
// the queue drain so teardown lands in strict dispatch order.
func (s *Store) finishUnregister(key string) {
	if err := s.manager.unregister(key); err != nil {
		return
	}

	s.stateMu.Lock()
	next := make(Snapshot, len(s.snapshot))
	for k, v := range s.snapshot {
		if k != key {
			next[k] = v
		}
	}
	s.snapshot = next
	s.stateMu.Unlock()

	s.notifyListeners(next)
}

func (s *Store) notifyListeners(snapshot Snapshot) {
	s.stateMu.RLock()
	listeners := make([]func(Snapshot), 0, len(s.listeners))
	for _, listener := range s.listeners {
		listeners = append(listeners, listener)
	}
	s.stateMu.RUnlock()
	for _, listener := range listeners {
		listener(snapshot)
	}
}

func (s *Store) notifyObservers(snapshot Snapshot, action Action) {
	s.mu.Lock()
	observers := slices.Clone(s.observers)
	s.mu.Unlock()
	for _, observer := range observers {
		observer.Observe(snapshot, action)
	}
}

func (s *Store) reportEffectError(err *EffectError) {
	s.mu.Lock()
	logger := s.logger
	handler := s.onEffectError
	s.mu.Unlock()
	logger.Log(LogEvent{Err: err})
	if handler != nil {
		handler(err)
	}
}
