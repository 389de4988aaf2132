package store

import (
	"context"
	"sort"
	"sync"

	"github.com/goliatone/go-store/internal/patch"
)

// Source feeds asynchronous emissions into a connected component field. It
// follows the same lifetime contract as EffectSource: run until ctx is
// cancelled, return the terminal error if production fails.
type Source func(ctx context.Context, emit func(any)) error

// stateSetter is the payload of component-internal set-state actions. Keeping
// the transition inside the action makes it replayable by an undo-capture
// extension.
type stateSetter func(state any) any

// ComponentOption configures a component container.
type ComponentOption func(*componentConfig)

type componentConfig struct {
	parent        *Store
	extensions    []Extension
	logger        Logger
	onEffectError func(*EffectError)
}

// WithParent merges the parent store's store-wide extensions underneath the
// component's scoped extensions and inherits its logger.
func WithParent(parent *Store) ComponentOption {
	return func(cfg *componentConfig) {
		cfg.parent = parent
	}
}

// WithComponentExtensions supplies the component-scoped extension
// configuration. Scoped entries override parent entries of the same kind.
func WithComponentExtensions(extensions ...Extension) ComponentOption {
	return func(cfg *componentConfig) {
		cfg.extensions = append(cfg.extensions, extensions...)
	}
}

// WithComponentLogger attaches a logger to the component.
func WithComponentLogger(logger Logger) ComponentOption {
	return func(cfg *componentConfig) {
		cfg.logger = logger
	}
}

// WithComponentEffectErrorHandler receives terminal effect failures in
// addition to the logger.
func WithComponentEffectErrorHandler(handler func(*EffectError)) ComponentOption {
	return func(cfg *componentConfig) {
		cfg.onEffectError = handler
	}
}

// Component is an independently-lifecycled state container. Its state is a
// private value, not a slice of any store's snapshot; it has its own action
// queue, effect runtime, and merged extension pipeline. After Destroy no
// further state change is observable and no further side effect fires.
type Component[T any] struct {
	queue   *actionQueue
	effects *effectRuntime
	reducer Reducer

	observers     []Observer
	undoAvailable bool
	logger        Logger
	onEffectError func(*EffectError)

	stateMu    sync.RWMutex
	state      T
	listeners  map[int]func(T)
	nextID     int
	destroying bool
	destroyed  bool
}

// NewComponent constructs a component container seeded with initial.
func NewComponent[T any](initial T, opts ...ComponentOption) *Component[T] {
	cfg := componentConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	c := &Component[T]{
		state:     initial,
		listeners: make(map[int]func(T)),
		logger:    noopLogger{},
	}
	if cfg.parent != nil && cfg.parent.logger != nil {
		c.logger = cfg.parent.logger
	}
	if cfg.logger != nil {
		c.logger = cfg.logger
	}
	c.onEffectError = cfg.onEffectError

	var global []Extension
	if cfg.parent != nil {
		global = cfg.parent.Extensions()
	}
	merged := MergeExtensions(global, cfg.extensions)

	effective := Reducer(setStateReducer)
	for _, ext := range merged {
		if meta := ext.Init(); meta != nil {
			effective = meta(effective)
		}
		if observer, ok := ext.(Observer); ok {
			c.observers = append(c.observers, observer)
		}
	}
	c.undoAvailable = hasUndoCapture(merged)
	c.reducer = effective

	c.queue = newActionQueue()
	c.queue.subscribe(c.onAction)
	c.effects = newEffectRuntime(c.dispatch, c.reportEffectError)
	return c
}

// setStateReducer applies the transition carried by a set-state action and
// leaves state untouched for anything else.
func setStateReducer(state any, action Action) any {
	setter, ok := action.Payload.(stateSetter)
	if !ok {
		return state
	}
	return setter(state)
}

// State returns the current state value.
func (c *Component[T]) State() T {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// Subscribe registers a listener invoked with every changed state value. The
// returned function removes the listener.
func (c *Component[T]) Subscribe(listener func(T)) func() {
	if listener == nil {
		return func() {}
	}
	c.stateMu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = listener
	c.stateMu.Unlock()
	return func() {
		c.stateMu.Lock()
		delete(c.listeners, id)
		c.stateMu.Unlock()
	}
}

// Update computes the next state from the current state and dispatches one
// descriptive internal action whose type encodes the optional name. The
// dispatched action is returned so it can later be passed to Undo.
func (c *Component[T]) Update(updater func(T) T, name ...string) Action {
	if updater == nil {
		return Action{}
	}
	setter := stateSetter(func(state any) any {
		current, _ := state.(T)
		return updater(current)
	})
	action := Action{Type: internalActionType(opSetState, firstName(name)), Payload: setter}
	c.dispatch(action)
	return action
}

// Patch merges a partial-state patch into the current state. Struct states
// are patched by JSON field name, map states by key; a malformed patch is
// logged and leaves state unchanged. The dispatched action is returned so it
// can later be passed to Undo.
func (c *Component[T]) Patch(fields map[string]any, name ...string) Action {
	actionType := internalActionType(opSetState, firstName(name))
	action := Action{Type: actionType, Payload: c.patchSetter(actionType, fields)}
	c.dispatch(action)
	return action
}

// Connect subscribes each source and applies every emission as a patch of the
// corresponding field, tagging the dispatched action's type with the field
// name. Subscriptions are released on Destroy.
func (c *Component[T]) Connect(sources map[string]Source) {
	fields := make([]string, 0, len(sources))
	for field := range sources {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		source := sources[field]
		if source == nil {
			continue
		}
		field := field
		c.effects.register(func(ctx context.Context, emit func(any)) error {
			return source(ctx, func(value any) {
				actionType := internalActionType(opConnect, field)
				emit(Action{
					Type:    actionType,
					Payload: c.patchSetter(actionType, map[string]any{field: value}),
				})
			})
		})
	}
}

func (c *Component[T]) patchSetter(actionType string, fields map[string]any) stateSetter {
	return func(state any) any {
		current, _ := state.(T)
		next, err := patch.Apply(current, fields)
		if err != nil {
			c.logger.Log(LogEvent{ActionType: actionType, Err: err})
			return state
		}
		return next
	}
}

// RegisterEffect subscribes source to this component's effect runtime.
func (c *Component[T]) RegisterEffect(source EffectSource, opts ...EffectOption) *EffectSubscription {
	return c.effects.register(source, opts...)
}

// Undo requests that a previously dispatched action be undone. It fails fast
// with UndoUnavailableError when the merged extension configuration contains
// no undo-capture extension.
func (c *Component[T]) Undo(action Action) error {
	if !c.undoAvailable {
		return &UndoUnavailableError{Container: "component"}
	}
	c.dispatch(UndoAction(action))
	return nil
}

// Destroy dispatches the terminal internal action, then synchronously
// releases every effect and Connect subscription owned by this component.
// Calling Destroy again is a no-op.
func (c *Component[T]) Destroy() {
	c.stateMu.Lock()
	if c.destroying {
		c.stateMu.Unlock()
		return
	}
	c.destroying = true
	c.stateMu.Unlock()

	c.dispatch(Action{Type: internalActionType(opDestroyed, "")})

	c.stateMu.Lock()
	c.destroyed = true
	c.stateMu.Unlock()

	c.effects.releaseAll()
}

func (c *Component[T]) dispatch(action Action) {
	c.queue.dispatch(action)
}

func (c *Component[T]) onAction(action Action) {
	c.stateMu.RLock()
	destroyed := c.destroyed
	prev := c.state
	c.stateMu.RUnlock()
	if destroyed && action.Type != internalActionType(opDestroyed, "") {
		return
	}

	next := c.reducer(prev, action)
	if !sameRef(prev, next) {
		typed, ok := next.(T)
		if !ok {
			return
		}
		c.stateMu.Lock()
		c.state = typed
		c.stateMu.Unlock()
		c.notifyListeners(typed)
	}
	c.notifyObservers(next, action)
}

func (c *Component[T]) notifyListeners(state T) {
	c.stateMu.RLock()
	listeners := make([]func(T), 0, len(c.listeners))
	for _, listener := range c.listeners {
		listeners = append(listeners, listener)
	}
	c.stateMu.RUnlock()
	for _, listener := range listeners {
		listener(state)
	}
}

func (c *Component[T]) notifyObservers(state any, action Action) {
	for _, observer := range c.observers {
		observer.Observe(state, action)
	}
}

func (c *Component[T]) reportEffectError(err *EffectError) {
	c.logger.Log(LogEvent{Err: err})
	if c.onEffectError != nil {
		c.onEffectError(err)
	}
}

// SelectFrom returns a live derived-value handle over c's state. The
// projector is memoized on the state reference, so updates that leave the
// state value untouched do not re-invoke it.
func SelectFrom[T, R any](c *Component[T], projector func(T) R) *Selection[R] {
	memo := CreateSelector(func(state T) T { return state }, projector)
	sel := newSelection(memo(c.State()))
	sel.detach = c.Subscribe(func(state T) {
		sel.publish(memo(state))
	})
	return sel
}

func firstName(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return names[0]
}
