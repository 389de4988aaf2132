//go:build js_eval

package store

import (
	"fmt"

	"github.com/dop251/goja"
)

type jsProjector struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewJSProjector constructs a Projector backed by goja.
func NewJSProjector(opts ...JSProjectorOption) Projector {
	cfg := applyJSProjectorOptions(opts)
	return &jsProjector{
		cache:    cfg.cache,
		registry: cfg.registry,
	}
}

func (p *jsProjector) Project(ctx ProjectionContext, expression string) (any, error) {
	if expression == "" {
		return nil, fmt.Errorf("expression must not be empty")
	}
	ctx = ctx.withDefaults()
	if p.cache == nil {
		return p.run(ctx, expression, nil)
	}
	program, err := p.loadOrCompile(expression)
	if err != nil {
		return nil, err
	}
	return p.run(ctx, expression, program)
}

func (p *jsProjector) Compile(expression string, _ ...CompileOption) (CompiledProjection, error) {
	if expression == "" {
		return nil, fmt.Errorf("expression must not be empty")
	}
	program, err := p.loadOrCompile(expression)
	if err != nil {
		return nil, err
	}
	return &jsCompiledProjection{
		projector:  p,
		expression: expression,
		program:    program,
	}, nil
}

func (p *jsProjector) loadOrCompile(expression string) (*goja.Program, error) {
	if p.cache != nil {
		if cached, ok := p.cache.Get(expression); ok {
			if program, ok := cached.(*goja.Program); ok {
				return program, nil
			}
		}
	}
	program, err := goja.Compile("", p.wrapExpression(expression), false)
	if err != nil {
		return nil, err
	}
	if p.cache != nil {
		p.cache.Set(expression, program)
	}
	return program, nil
}

func (p *jsProjector) run(ctx ProjectionContext, expression string, program *goja.Program) (any, error) {
	vm := goja.New()
	p.injectContext(vm, ctx)
	if program != nil {
		value, err := vm.RunProgram(program)
		if err != nil {
			return nil, err
		}
		return value.Export(), nil
	}
	value, err := vm.RunString(p.wrapExpression(expression))
	if err != nil {
		return nil, err
	}
	return value.Export(), nil
}

func (p *jsProjector) injectContext(vm *goja.Runtime, ctx ProjectionContext) {
	vm.Set("now", ctx.timestamp())
	vm.Set("args", ctx.Args)
	vm.Set("metadata", ctx.Metadata)
	for key, value := range snapshotAsMap(ctx.Snapshot) {
		vm.Set(key, value)
	}
	if p.registry != nil {
		vm.Set("call", func(name string, arguments ...any) (any, error) {
			return p.registry.Call(name, arguments...)
		})
		for _, name := range p.registry.Names() {
			fn := name
			vm.Set(fn, func(arguments ...any) (any, error) {
				return p.registry.Call(fn, arguments...)
			})
		}
	}
}

func (p *jsProjector) wrapExpression(expression string) string {
	return fmt.Sprintf("(function(){ return (%s); })()", expression)
}

type jsCompiledProjection struct {
	projector  *jsProjector
	expression string
	program    *goja.Program
}

func (c *jsCompiledProjection) Project(ctx ProjectionContext) (any, error) {
	if c.projector == nil {
		return nil, fmt.Errorf("store: js compiled projection missing projector")
	}
	ctx = ctx.withDefaults()
	return c.projector.run(ctx, c.expression, c.program)
}

func jsProjectorAvailable() bool {
	return true
}
