package store

import (
	"sync"
	"testing"
)

func TestQueueNotifiesInDispatchOrder(t *testing.T) {
	q := newActionQueue()
	var seen []string
	q.subscribe(func(action Action) {
		seen = append(seen, action.Type)
	})

	q.dispatch(Action{Type: "first"})
	q.dispatch(Action{Type: "second"})
	q.dispatch(Action{Type: "third"})

	want := []string{"first", "second", "third"}
	if len(seen) != len(want) {
		t.Fatalf("expected %d actions, got %d", len(want), len(seen))
	}
	for i, typ := range want {
		if seen[i] != typ {
			t.Fatalf("position %d: expected %q, got %q", i, typ, seen[i])
		}
	}
}

func TestQueueReentrantDispatchRunsAfterCurrentAction(t *testing.T) {
	q := newActionQueue()
	var seen []string
	q.subscribe(func(action Action) {
		seen = append(seen, "a:"+action.Type)
		if action.Type == "outer" {
			q.dispatch(Action{Type: "inner"})
			seen = append(seen, "after-enqueue")
		}
	})
	q.subscribe(func(action Action) {
		seen = append(seen, "b:"+action.Type)
	})

	q.dispatch(Action{Type: "outer"})

	want := []string{"a:outer", "after-enqueue", "b:outer", "a:inner", "b:inner"}
	if len(seen) != len(want) {
		t.Fatalf("expected %v, got %v", want, seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, seen)
		}
	}
}

func TestQueueDeeplyNestedDispatchStaysOrdered(t *testing.T) {
	q := newActionQueue()
	var seen []string
	q.subscribe(func(action Action) {
		seen = append(seen, action.Type)
		switch action.Type {
		case "start":
			q.dispatch(Action{Type: "level-1"})
		case "level-1":
			q.dispatch(Action{Type: "level-2"})
		}
	})

	q.dispatch(Action{Type: "start"})

	want := []string{"start", "level-1", "level-2"}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, seen)
		}
	}
}

func TestQueueConcurrentDispatchDeliversEveryAction(t *testing.T) {
	q := newActionQueue()
	var mu sync.Mutex
	count := 0
	q.subscribe(func(Action) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	const goroutines = 8
	const perGoroutine = 50
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				q.dispatch(Action{Type: "tick"})
			}
		}()
	}
	wg.Wait()

	mu.Lock()
	got := count
	mu.Unlock()
	if got != goroutines*perGoroutine {
		t.Fatalf("expected %d deliveries, got %d", goroutines*perGoroutine, got)
	}
}

func TestQueueNilListenerIgnored(t *testing.T) {
	q := newActionQueue()
	q.subscribe(nil)
	q.dispatch(Action{Type: "noop"})
}
