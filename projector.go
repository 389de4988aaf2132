package store

import "time"

// ProjectionContext carries the inputs needed when evaluating a query
// expression against a state snapshot.
type ProjectionContext struct {
	Snapshot any
	Now      *time.Time
	Args     map[string]any
	Metadata map[string]any
}

func (ctx ProjectionContext) withDefaultNow() ProjectionContext {
	if ctx.Now != nil {
		return ctx
	}
	now := time.Now()
	ctx.Now = &now
	return ctx
}

func (ctx ProjectionContext) timestamp() time.Time {
	ctx = ctx.withDefaultNow()
	return *ctx.Now
}

func (ctx ProjectionContext) withDefaultMaps() ProjectionContext {
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx ProjectionContext) withDefaults() ProjectionContext {
	return ctx.withDefaultNow().withDefaultMaps()
}

// Projector evaluates query expressions against a projection context. Used by
// the Query surface for debugging and devtools-style inspection of state.
type Projector interface {
	Project(ctx ProjectionContext, expr string) (any, error)
	Compile(expr string, opts ...CompileOption) (CompiledProjection, error)
}

// CompiledProjection represents a reusable query program.
type CompiledProjection interface {
	Project(ctx ProjectionContext) (any, error)
}

// CompileOption configures projector compile behaviour.
type CompileOption interface {
	applyCompileOption(*compileConfig)
}

type compileConfig struct{}

type compileOptionFunc func(*compileConfig)

func (f compileOptionFunc) applyCompileOption(cfg *compileConfig) {
	if f != nil {
		f(cfg)
	}
}

func snapshotAsMap(value any) map[string]any {
	if value == nil {
		return map[string]any{}
	}
	switch m := value.(type) {
	case Snapshot:
		return m
	case map[string]any:
		return m
	default:
		return map[string]any{}
	}
}
