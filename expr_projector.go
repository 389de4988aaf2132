package store

import (
	"fmt"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

// ExprProjectorOption configures an expr projector instance.
type ExprProjectorOption func(*exprProjector)

// ExprWithProgramCache wires a ProgramCache into the expr projector.
func ExprWithProgramCache(cache ProgramCache) ExprProjectorOption {
	return func(p *exprProjector) {
		p.cache = cache
	}
}

// ExprWithFunctionRegistry wires a FunctionRegistry into the expr projector.
func ExprWithFunctionRegistry(registry *FunctionRegistry) ExprProjectorOption {
	return func(p *exprProjector) {
		if registry == nil {
			return
		}
		p.registry = registry.Clone()
	}
}

// exprProjector evaluates query expressions using github.com/expr-lang/expr.
type exprProjector struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewExprProjector constructs a Projector backed by expr-lang/expr.
func NewExprProjector(opts ...ExprProjectorOption) Projector {
	p := &exprProjector{}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Project compiles and runs expression against ctx.Snapshot.
func (p *exprProjector) Project(ctx ProjectionContext, expression string) (any, error) {
	if expression == "" {
		return nil, wrapProjectorError("expr", fmt.Errorf("expression must not be empty"))
	}
	ctx = ctx.withDefaults()
	env := p.environment(ctx)
	if p.cache == nil {
		result, err := exprlang.Eval(expression, env)
		if err != nil {
			return nil, wrapQueryError("expr", expression, err)
		}
		return result, nil
	}
	program, err := p.loadOrCompile(expression)
	if err != nil {
		return nil, err
	}
	result, err := exprlang.Run(program, env)
	if err != nil {
		return nil, wrapQueryError("expr", expression, err)
	}
	return result, nil
}

// Compile returns a compiled projection that evaluates expression per
// invocation.
func (p *exprProjector) Compile(expression string, _ ...CompileOption) (CompiledProjection, error) {
	if expression == "" {
		return nil, wrapProjectorError("expr", fmt.Errorf("expression must not be empty"))
	}
	program, err := p.loadOrCompile(expression)
	if err != nil {
		return nil, err
	}
	return &exprCompiledProjection{
		projector:  p,
		program:    program,
		expression: expression,
	}, nil
}

func (p *exprProjector) loadOrCompile(expression string) (*exprvm.Program, error) {
	if p.cache != nil {
		if cached, ok := p.cache.Get(expression); ok {
			if program, ok := cached.(*exprvm.Program); ok {
				return program, nil
			}
		}
	}
	options := []exprlang.Option{
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
	}
	for _, name := range p.registryNames() {
		fn := p.registryFunction(name)
		options = append(options, exprlang.Function(name, fn))
	}
	program, err := exprlang.Compile(expression, options...)
	if err != nil {
		return nil, wrapQueryError("expr", expression, err)
	}
	if p.cache != nil {
		p.cache.Set(expression, program)
	}
	return program, nil
}

func (p *exprProjector) environment(ctx ProjectionContext) map[string]any {
	env := map[string]any{
		"now":      ctx.timestamp(),
		"args":     ctx.Args,
		"metadata": ctx.Metadata,
	}
	for key, value := range snapshotAsMap(ctx.Snapshot) {
		env[key] = value
	}
	if p.registry != nil {
		env["call"] = func(name string, arguments ...any) (any, error) {
			return p.registry.Call(name, arguments...)
		}
	}
	return env
}

func (p *exprProjector) registryNames() []string {
	if p.registry == nil {
		return nil
	}
	return p.registry.Names()
}

func (p *exprProjector) registryFunction(name string) func(params ...any) (any, error) {
	return func(params ...any) (any, error) {
		return p.registry.Call(name, params...)
	}
}

type exprCompiledProjection struct {
	projector  *exprProjector
	program    *exprvm.Program
	expression string
}

func (c *exprCompiledProjection) Project(ctx ProjectionContext) (any, error) {
	if c.projector == nil {
		return nil, fmt.Errorf("store: expr compiled projection missing projector")
	}
	ctx = ctx.withDefaults()
	result, err := exprlang.Run(c.program, c.projector.environment(ctx))
	if err != nil {
		return nil, wrapQueryError("expr", c.expression, err)
	}
	return result, nil
}
