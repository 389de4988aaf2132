package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// EffectSource produces a sequence of values on its own goroutine. Each value
// passed to emit that is an Action is forwarded to the owning container's
// dispatch, unless the subscription was registered as non-dispatching. The
// source should return promptly once ctx is cancelled; returning a non-nil
// error (or panicking) terminates this effect only.
type EffectSource func(ctx context.Context, emit func(any)) error

// EffectOption configures an effect subscription.
type EffectOption func(*effectConfig)

type effectConfig struct {
	nonDispatching bool
}

// WithoutDispatch marks the effect non-dispatching: emitted values are
// consumed for their side effects only and never forwarded as actions.
func WithoutDispatch() EffectOption {
	return func(cfg *effectConfig) {
		cfg.nonDispatching = true
	}
}

func applyEffectOptions(opts []EffectOption) effectConfig {
	cfg := effectConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// EffectSubscription is the live binding between an effect source and a
// container's dispatch. Release is synchronous and idempotent: once it
// returns, no further delivery begins. A delivery already in flight when
// Release is called completes, since it began before the release.
type EffectSubscription struct {
	id     string
	cancel context.CancelFunc

	mu          sync.Mutex
	released    bool
	dispatching bool
	dispatch    func(Action)
}

// ID returns the subscription identifier used in effect error reports.
func (s *EffectSubscription) ID() string {
	return s.id
}

// Release ends the subscription. Safe to call multiple times; only the first
// call has any effect.
func (s *EffectSubscription) Release() {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	s.released = true
	s.mu.Unlock()
	s.cancel()
}

// emit forwards one produced value. The released gate is checked immediately
// before delivery begins; the dispatch itself runs outside the lock, so a
// listener reacting to the delivered action may call Release on this very
// subscription without deadlocking.
func (s *EffectSubscription) emit(value any) {
	action, ok := value.(Action)
	if !ok {
		return
	}
	s.mu.Lock()
	if s.released || !s.dispatching {
		s.mu.Unlock()
		return
	}
	dispatch := s.dispatch
	s.mu.Unlock()
	dispatch(action)
}

// effectRuntime subscribes effect pipelines to a container, isolates their
// failures, and feeds resulting actions back into the container's queue.
type effectRuntime struct {
	dispatch func(Action)
	report   func(*EffectError)

	mu   sync.Mutex
	subs map[string]*EffectSubscription
}

func newEffectRuntime(dispatch func(Action), report func(*EffectError)) *effectRuntime {
	if report == nil {
		report = func(*EffectError) {}
	}
	return &effectRuntime{
		dispatch: dispatch,
		report:   report,
		subs:     make(map[string]*EffectSubscription),
	}
}

// register starts source on its own goroutine and returns its subscription.
func (r *effectRuntime) register(source EffectSource, opts ...EffectOption) *EffectSubscription {
	cfg := applyEffectOptions(opts)
	ctx, cancel := context.WithCancel(context.Background())
	sub := &EffectSubscription{
		id:          uuid.NewString(),
		cancel:      cancel,
		dispatching: !cfg.nonDispatching,
		dispatch:    r.dispatch,
	}

	r.mu.Lock()
	r.subs[sub.id] = sub
	r.mu.Unlock()

	go r.run(ctx, source, sub)
	return sub
}

// run drives one effect to completion. Failures are contained here: an error
// or recovered panic terminates this subscription only and is reported, never
// propagated to the queue or to sibling effects.
func (r *effectRuntime) run(ctx context.Context, source EffectSource, sub *EffectSubscription) {
	defer func() {
		if rec := recover(); rec != nil {
			r.report(&EffectError{
				SubscriptionID: sub.id,
				Err:            fmt.Errorf("panic: %v", rec),
			})
		}
		sub.Release()
		r.forget(sub.id)
	}()

	if err := source(ctx, sub.emit); err != nil && !errors.Is(err, context.Canceled) {
		r.report(&EffectError{SubscriptionID: sub.id, Err: err})
	}
}

func (r *effectRuntime) forget(id string) {
	r.mu.Lock()
	delete(r.subs, id)
	r.mu.Unlock()
}

// releaseAll synchronously releases every live subscription. Used on
// container teardown; afterwards no subscription owned by this runtime can
// dispatch.
func (r *effectRuntime) releaseAll() {
	r.mu.Lock()
	subs := make([]*EffectSubscription, 0, len(r.subs))
	for _, sub := range r.subs {
		subs = append(subs, sub)
	}
	r.subs = make(map[string]*EffectSubscription)
	r.mu.Unlock()

	for _, sub := range subs {
		sub.Release()
	}
}
