package store

import (
	"errors"
	"testing"
	"time"
)

var projectorFactories = []struct {
	name string
	new  func(cache ProgramCache, registry *FunctionRegistry) Projector
}{
	{
		name: "expr",
		new: func(cache ProgramCache, registry *FunctionRegistry) Projector {
			opts := []ExprProjectorOption{}
			if cache != nil {
				opts = append(opts, ExprWithProgramCache(cache))
			}
			if registry != nil {
				opts = append(opts, ExprWithFunctionRegistry(registry))
			}
			return NewExprProjector(opts...)
		},
	},
	{
		name: "cel",
		new: func(cache ProgramCache, registry *FunctionRegistry) Projector {
			opts := []CELProjectorOption{}
			if cache != nil {
				opts = append(opts, CELWithProgramCache(cache))
			}
			if registry != nil {
				opts = append(opts, CELWithFunctionRegistry(registry))
			}
			return NewCELProjector(opts...)
		},
	},
	{
		name: "js",
		new: func(cache ProgramCache, registry *FunctionRegistry) Projector {
			opts := []JSProjectorOption{}
			if cache != nil {
				opts = append(opts, JSWithProgramCache(cache))
			}
			if registry != nil {
				opts = append(opts, JSWithFunctionRegistry(registry))
			}
			return NewJSProjector(opts...)
		},
	},
}

func asInt64(t *testing.T, value any) int64 {
	t.Helper()
	switch v := value.(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	default:
		t.Fatalf("unexpected numeric type %T", value)
		return 0
	}
}

func TestProjectorsEvaluateSnapshotVariables(t *testing.T) {
	for _, factory := range projectorFactories {
		factory := factory
		t.Run(factory.name, func(t *testing.T) {
			projector := factory.new(nil, nil)
			if projector == nil {
				t.Skip("engine unavailable in this build")
			}
			result, err := projector.Project(ProjectionContext{
				Snapshot: Snapshot{"counter": 2},
			}, "counter * 3")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := asInt64(t, result); got != 6 {
				t.Fatalf("expected 6, got %v", result)
			}
		})
	}
}

func TestProjectorsRejectEmptyExpression(t *testing.T) {
	for _, factory := range projectorFactories {
		factory := factory
		t.Run(factory.name, func(t *testing.T) {
			projector := factory.new(nil, nil)
			if projector == nil {
				t.Skip("engine unavailable in this build")
			}
			if _, err := projector.Project(ProjectionContext{}, ""); err == nil {
				t.Fatal("expected error for empty expression")
			}
		})
	}
}

func TestProjectorsCallRegisteredFunctions(t *testing.T) {
	for _, factory := range projectorFactories {
		factory := factory
		t.Run(factory.name, func(t *testing.T) {
			registry := NewFunctionRegistry()
			if err := registry.Register("double", func(args ...any) (any, error) {
				if len(args) != 1 {
					return nil, errors.New("double wants one argument")
				}
				return asAnyInt(args[0]) * 2, nil
			}); err != nil {
				t.Fatalf("register: %v", err)
			}

			projector := factory.new(nil, registry)
			if projector == nil {
				t.Skip("engine unavailable in this build")
			}
			result, err := projector.Project(ProjectionContext{
				Snapshot: Snapshot{"counter": 4},
			}, `call("double", counter)`)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := asInt64(t, result); got != 8 {
				t.Fatalf("expected 8, got %v", result)
			}
		})
	}
}

func asAnyInt(value any) int64 {
	switch v := value.(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	default:
		return 0
	}
}

type countingCache struct {
	programs map[string]any
	hits     int
	misses   int
}

func (c *countingCache) Get(key string) (any, bool) {
	if c.programs == nil {
		c.programs = make(map[string]any)
	}
	value, ok := c.programs[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return value, ok
}

func (c *countingCache) Set(key string, value any) {
	if c.programs == nil {
		c.programs = make(map[string]any)
	}
	c.programs[key] = value
}

func TestProjectorsReuseCachedPrograms(t *testing.T) {
	for _, factory := range projectorFactories {
		factory := factory
		t.Run(factory.name, func(t *testing.T) {
			cache := &countingCache{}
			projector := factory.new(cache, nil)
			if projector == nil {
				t.Skip("engine unavailable in this build")
			}
			ctx := ProjectionContext{Snapshot: Snapshot{"counter": 1}}
			for i := 0; i < 3; i++ {
				if _, err := projector.Project(ctx, "counter + 1"); err != nil {
					t.Fatalf("iteration %d: %v", i, err)
				}
			}
			if cache.misses != 1 {
				t.Fatalf("expected 1 miss, got %d", cache.misses)
			}
			if cache.hits != 2 {
				t.Fatalf("expected 2 hits, got %d", cache.hits)
			}
		})
	}
}

func TestCompiledProjectionsRunAgainstFreshSnapshots(t *testing.T) {
	for _, factory := range projectorFactories {
		factory := factory
		t.Run(factory.name, func(t *testing.T) {
			projector := factory.new(NewMemoryProgramCache(), nil)
			if projector == nil {
				t.Skip("engine unavailable in this build")
			}
			compiled, err := projector.Compile("counter + 1")
			if err != nil {
				t.Fatalf("compile: %v", err)
			}
			first, err := compiled.Project(ProjectionContext{Snapshot: Snapshot{"counter": 1}})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := asInt64(t, first); got != 2 {
				t.Fatalf("expected 2, got %v", first)
			}
			second, err := compiled.Project(ProjectionContext{Snapshot: Snapshot{"counter": 10}})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := asInt64(t, second); got != 11 {
				t.Fatalf("expected 11, got %v", second)
			}
		})
	}
}

func TestStoreQueryUsesDefaultExprEngine(t *testing.T) {
	s := newConfiguredStore(t)
	s.Dispatch(Action{Type: "counter/add", Payload: 6})

	result, err := s.Query("counter / 2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := asInt64(t, result); got != 3 {
		t.Fatalf("expected 3, got %v", result)
	}
}

func TestStoreQueryLogsEngineAndDuration(t *testing.T) {
	var events []LogEvent
	s := New()
	err := s.Configure(Config{
		Reducers:     map[string]Reducer{"counter": testCounterReducer},
		InitialState: Snapshot{"counter": 1},
		Logger: LoggerFunc(func(event LogEvent) {
			if event.Engine != "" {
				events = append(events, event)
			}
		}),
	})
	if err != nil {
		t.Fatalf("configure: %v", err)
	}

	if _, err := s.Query("counter"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 query log event, got %d", len(events))
	}
	if events[0].Engine != "expr" {
		t.Fatalf("expected expr engine, got %q", events[0].Engine)
	}
	if events[0].Expr != "counter" {
		t.Fatalf("unexpected expression %q", events[0].Expr)
	}
	if events[0].Duration < 0 {
		t.Fatalf("unexpected duration %v", events[0].Duration)
	}
}

func TestStoreQueryWrapsEngineErrors(t *testing.T) {
	s := newConfiguredStore(t)

	_, err := s.Query("counter +")
	if err == nil {
		t.Fatal("expected a compile error")
	}
	var queryErr *QueryError
	if !errors.As(err, &queryErr) {
		t.Fatalf("expected QueryError, got %T", err)
	}
	if queryErr.Engine != "expr" {
		t.Fatalf("expected expr engine, got %q", queryErr.Engine)
	}
	if queryErr.Expr != "counter +" {
		t.Fatalf("unexpected expression %q", queryErr.Expr)
	}
}

func TestStoreQueryWithExplicitContext(t *testing.T) {
	s := newConfiguredStore(t)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	result, err := s.QueryWith(ProjectionContext{
		Snapshot: Snapshot{"counter": 40},
		Now:      &now,
		Args:     map[string]any{"offset": 2},
	}, "counter + args.offset")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := asInt64(t, result); got != 42 {
		t.Fatalf("expected 42, got %v", result)
	}
}

func TestStoreQueryHonoursConfiguredProjector(t *testing.T) {
	s := New()
	err := s.Configure(Config{
		Reducers:     map[string]Reducer{"counter": testCounterReducer},
		InitialState: Snapshot{"counter": 5},
		Projector:    NewCELProjector(),
	})
	if err != nil {
		t.Fatalf("configure: %v", err)
	}

	result, err := s.Query("counter * 2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := asInt64(t, result); got != 10 {
		t.Fatalf("expected 10, got %v", result)
	}
}

func TestQueryAs(t *testing.T) {
	s := newConfiguredStore(t)
	s.Dispatch(Action{Type: "counter/add", Payload: 2})

	value, err := QueryAs[int](s, "counter")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != 2 {
		t.Fatalf("expected 2, got %d", value)
	}

	if _, err := QueryAs[string](s, "counter"); err == nil {
		t.Fatal("expected a type mismatch error")
	}
}

func TestProjectorEngineNames(t *testing.T) {
	if got := projectorEngineName(NewExprProjector()); got != "expr" {
		t.Fatalf("expected expr, got %q", got)
	}
	if got := projectorEngineName(NewCELProjector()); got != "cel" {
		t.Fatalf("expected cel, got %q", got)
	}
	if jsProjectorAvailable() {
		if got := projectorEngineName(NewJSProjector()); got != "js" {
			t.Fatalf("expected js, got %q", got)
		}
	}
}
