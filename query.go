package store

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoProjector reports that query evaluation was requested but no projector
// could be resolved.
var ErrNoProjector = errors.New("store: no projector configured")

// Query evaluates expression against the current snapshot using the store's
// projector. The snapshot keys are exposed as top-level variables alongside
// now, args, and metadata.
func (s *Store) Query(expression string) (any, error) {
	return s.QueryWith(ProjectionContext{}, expression)
}

// QueryWith evaluates expression with a caller-supplied projection context.
// A nil ctx.Snapshot defaults to the store's current snapshot.
func (s *Store) QueryWith(ctx ProjectionContext, expression string) (any, error) {
	projector := s.resolveProjector()
	if projector == nil {
		return nil, ErrNoProjector
	}
	if ctx.Snapshot == nil {
		ctx.Snapshot = s.Snapshot()
	}
	engine := projectorEngineName(projector)

	start := time.Now()
	result, err := projector.Project(ctx, expression)
	duration := time.Since(start)

	s.mu.Lock()
	logger := s.logger
	s.mu.Unlock()
	logger.Log(LogEvent{
		Engine:   engine,
		Expr:     expression,
		Duration: duration,
		Err:      err,
	})
	if err != nil {
		return nil, wrapQueryError(engine, expression, err)
	}
	return result, nil
}

// QueryAs evaluates expression and asserts the result to T.
func QueryAs[T any](s *Store, expression string) (T, error) {
	var zero T
	result, err := s.Query(expression)
	if err != nil {
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("store: query result is %T, not %T", result, zero)
	}
	return typed, nil
}

// resolveProjector returns the configured projector, building the default
// expr engine on first use. The default inherits the store's program cache and
// function registry.
func (s *Store) resolveProjector() Projector {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.projector != nil {
		return s.projector
	}
	opts := []ExprProjectorOption{}
	if s.programCache != nil {
		opts = append(opts, ExprWithProgramCache(s.programCache))
	}
	if s.functions != nil {
		opts = append(opts, ExprWithFunctionRegistry(s.functions))
	}
	s.projector = NewExprProjector(opts...)
	return s.projector
}

func projectorEngineName(p Projector) string {
	switch fmt.Sprintf("%T", p) {
	case "*store.exprProjector":
		return "expr"
	case "*store.celProjector":
		return "cel"
	case "*store.jsProjector":
		return "js"
	default:
		return "custom"
	}
}
