package store

import (
	"fmt"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// CELProjectorOption configures the CEL projector.
type CELProjectorOption func(*celProjector)

// CELWithProgramCache wires a ProgramCache into the CEL projector.
func CELWithProgramCache(cache ProgramCache) CELProjectorOption {
	return func(p *celProjector) {
		p.cache = cache
	}
}

// CELWithFunctionRegistry wires a FunctionRegistry into the CEL projector.
func CELWithFunctionRegistry(registry *FunctionRegistry) CELProjectorOption {
	return func(p *celProjector) {
		if registry == nil {
			return
		}
		p.registry = registry.Clone()
	}
}

type celProgram struct {
	env     *celgo.Env
	program celgo.Program
}

type celProjector struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewCELProjector constructs a Projector backed by cel-go.
func NewCELProjector(opts ...CELProjectorOption) Projector {
	p := &celProjector{}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

func (p *celProjector) Project(ctx ProjectionContext, expression string) (any, error) {
	if expression == "" {
		return nil, fmt.Errorf("expression must not be empty")
	}
	ctx = ctx.withDefaults()
	snapshot := snapshotAsMap(ctx.Snapshot)
	program, err := p.loadOrCompile(expression, snapshot)
	if err != nil {
		return nil, err
	}
	out, _, err := program.program.Eval(p.activation(ctx, snapshot))
	if err != nil {
		return nil, err
	}
	return out.Value(), nil
}

func (p *celProjector) Compile(expression string, _ ...CompileOption) (CompiledProjection, error) {
	if expression == "" {
		return nil, fmt.Errorf("expression must not be empty")
	}
	return &celCompiledProjection{
		projector:  p,
		expression: expression,
	}, nil
}

func (p *celProjector) loadOrCompile(expression string, snapshot map[string]any) (*celProgram, error) {
	if snapshot == nil {
		snapshot = map[string]any{}
	}
	if p.cache != nil {
		if cached, ok := p.cache.Get(expression); ok {
			if program, ok := cached.(*celProgram); ok {
				return program, nil
			}
		}
	}

	env, err := p.buildEnv(snapshot)
	if err != nil {
		return nil, err
	}
	ast, issues := env.Parse(expression)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	checked, issues := env.Check(ast)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	prg, err := env.Program(checked)
	if err != nil {
		return nil, err
	}

	bundle := &celProgram{
		env:     env,
		program: prg,
	}
	if p.cache != nil {
		p.cache.Set(expression, bundle)
	}
	return bundle, nil
}

func (p *celProjector) buildEnv(snapshot map[string]any) (*celgo.Env, error) {
	opts := []celgo.EnvOption{
		celgo.Variable("now", celgo.TimestampType),
		celgo.Variable("args", celgo.DynType),
		celgo.Variable("metadata", celgo.DynType),
	}
	if p.registry != nil {
		opts = append(opts, p.callFunction())
	}
	for key := range snapshot {
		opts = append(opts, celgo.Variable(key, celgo.DynType))
	}
	return celgo.NewEnv(opts...)
}

func (p *celProjector) activation(ctx ProjectionContext, snapshot map[string]any) map[string]any {
	activation := map[string]any{
		"now":      ctx.timestamp(),
		"args":     ctx.Args,
		"metadata": ctx.Metadata,
	}
	for key, value := range snapshot {
		activation[key] = value
	}
	if p.registry != nil {
		activation["call"] = func(name string, arguments ...any) (any, error) {
			return p.registry.Call(name, arguments...)
		}
	}
	return activation
}

type celCompiledProjection struct {
	projector  *celProjector
	expression string
}

func (c *celCompiledProjection) Project(ctx ProjectionContext) (any, error) {
	if c.projector == nil {
		return nil, fmt.Errorf("store: cel compiled projection missing projector")
	}
	ctx = ctx.withDefaults()
	snapshot := snapshotAsMap(ctx.Snapshot)
	program, err := c.projector.loadOrCompile(c.expression, snapshot)
	if err != nil {
		return nil, err
	}
	out, _, err := program.program.Eval(c.projector.activation(ctx, snapshot))
	if err != nil {
		return nil, err
	}
	return out.Value(), nil
}

// callFunction declares the "call" helper. CEL overloads are fixed-arity, so
// the declaration enumerates one overload per supported argument count, all
// sharing one variadic binding.
func (p *celProjector) callFunction() celgo.EnvOption {
	const maxCallArgs = 6
	argTypes := []*celgo.Type{celgo.StringType}
	overloads := make([]celgo.FunctionOpt, 0, maxCallArgs+1)
	for i := 0; i <= maxCallArgs; i++ {
		overloads = append(overloads, celgo.Overload(
			fmt.Sprintf("call_dyn_%d", i),
			append([]*celgo.Type(nil), argTypes...),
			celgo.DynType,
			celgo.FunctionBinding(p.callBinding()),
		))
		argTypes = append(argTypes, celgo.DynType)
	}
	return celgo.Function("call", overloads...)
}

func (p *celProjector) callBinding() func(...ref.Val) ref.Val {
	return func(values ...ref.Val) ref.Val {
		if p.registry == nil {
			return types.NewErr("store: function registry not configured")
		}
		if len(values) == 0 {
			return types.NewErr("store: call requires function name")
		}
		name, ok := values[0].Value().(string)
		if !ok {
			return types.NewErr("store: call name must be string")
		}
		args := make([]any, 0, len(values)-1)
		for _, val := range values[1:] {
			args = append(args, val.Value())
		}
		result, err := p.registry.Call(name, args...)
		if err != nil {
			return types.NewErr(err.Error())
		}
		if result == nil {
			return types.NullValue
		}
		return types.DefaultTypeAdapter.NativeToValue(result)
	}
}
