package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func waitFor(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func TestEffectEmissionsDispatchActions(t *testing.T) {
	var mu sync.Mutex
	var dispatched []Action
	received := make(chan struct{})

	runtime := newEffectRuntime(func(action Action) {
		mu.Lock()
		dispatched = append(dispatched, action)
		mu.Unlock()
		received <- struct{}{}
	}, nil)

	sub := runtime.register(func(ctx context.Context, emit func(any)) error {
		emit(Action{Type: "effect/tick"})
		emit("not an action")
		<-ctx.Done()
		return ctx.Err()
	})
	defer sub.Release()

	waitFor(t, received, "effect emission")
	mu.Lock()
	defer mu.Unlock()
	if len(dispatched) != 1 {
		t.Fatalf("expected 1 dispatch, got %d", len(dispatched))
	}
	if dispatched[0].Type != "effect/tick" {
		t.Fatalf("unexpected action %q", dispatched[0].Type)
	}
}

func TestEffectWithoutDispatchNeverForwards(t *testing.T) {
	dispatched := make(chan Action, 1)
	done := make(chan struct{})

	runtime := newEffectRuntime(func(action Action) {
		dispatched <- action
	}, nil)

	runtime.register(func(ctx context.Context, emit func(any)) error {
		emit(Action{Type: "effect/tick"})
		close(done)
		return nil
	}, WithoutDispatch())

	waitFor(t, done, "effect completion")
	select {
	case action := <-dispatched:
		t.Fatalf("unexpected dispatch %q", action.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEffectErrorIsIsolatedAndReported(t *testing.T) {
	reported := make(chan *EffectError, 1)
	runtime := newEffectRuntime(func(Action) {}, func(err *EffectError) {
		reported <- err
	})

	failure := errors.New("stream broke")
	sub := runtime.register(func(ctx context.Context, emit func(any)) error {
		return failure
	})

	select {
	case err := <-reported:
		if !errors.Is(err, failure) {
			t.Fatalf("expected wrapped failure, got %v", err)
		}
		if err.SubscriptionID != sub.ID() {
			t.Fatalf("expected subscription %s, got %s", sub.ID(), err.SubscriptionID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for effect error")
	}
}

func TestEffectPanicIsRecoveredAndReported(t *testing.T) {
	reported := make(chan *EffectError, 1)
	runtime := newEffectRuntime(func(Action) {}, func(err *EffectError) {
		reported <- err
	})

	runtime.register(func(ctx context.Context, emit func(any)) error {
		panic("boom")
	})

	select {
	case err := <-reported:
		if err.Err == nil {
			t.Fatal("expected a wrapped panic error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for panic report")
	}
}

func TestEffectContextCancellationIsNotAnError(t *testing.T) {
	reported := make(chan *EffectError, 1)
	runtime := newEffectRuntime(func(Action) {}, func(err *EffectError) {
		reported <- err
	})

	started := make(chan struct{})
	sub := runtime.register(func(ctx context.Context, emit func(any)) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})

	waitFor(t, started, "effect start")
	sub.Release()

	select {
	case err := <-reported:
		t.Fatalf("unexpected report after release: %v", err)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestReleaseStopsFurtherDispatch(t *testing.T) {
	var mu sync.Mutex
	count := 0
	runtime := newEffectRuntime(func(Action) {
		mu.Lock()
		count++
		mu.Unlock()
	}, nil)

	proceed := make(chan struct{})
	delivered := make(chan struct{})
	sub := runtime.register(func(ctx context.Context, emit func(any)) error {
		emit(Action{Type: "effect/tick"})
		close(delivered)
		<-proceed
		emit(Action{Type: "effect/tick"})
		return nil
	})

	waitFor(t, delivered, "first emission")
	sub.Release()
	sub.Release() // idempotent
	close(proceed)

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Fatalf("expected exactly 1 dispatch, got %d", count)
	}
}

func TestReleaseAllEndsEverySubscription(t *testing.T) {
	runtime := newEffectRuntime(func(Action) {}, nil)

	const effects = 3
	started := make(chan struct{}, effects)
	stopped := make(chan struct{}, effects)
	for i := 0; i < effects; i++ {
		runtime.register(func(ctx context.Context, emit func(any)) error {
			started <- struct{}{}
			<-ctx.Done()
			stopped <- struct{}{}
			return ctx.Err()
		})
	}
	for i := 0; i < effects; i++ {
		waitFor(t, started, "effect start")
	}

	runtime.releaseAll()
	for i := 0; i < effects; i++ {
		waitFor(t, stopped, "effect stop")
	}
}
