//go:build js_eval

package filter

import (
	"fmt"

	"github.com/dop251/goja"
)

type jsEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewJSEvaluator constructs an Evaluator backed by goja.
func NewJSEvaluator(opts ...EvaluatorOption) Evaluator {
	cfg := applyEvaluatorOptions(opts)
	return &jsEvaluator{
		cache:    cfg.cache,
		registry: cfg.registry,
	}
}

func (e *jsEvaluator) Engine() Engine { return EngineJS }

func (e *jsEvaluator) Compile(expression string) (CompiledRule, error) {
	if expression == "" {
		return nil, wrapEvaluationError(EngineJS, "", 0, ErrEmptyExpression)
	}
	program, err := e.loadOrCompile(expression)
	if err != nil {
		return nil, wrapEvaluationError(EngineJS, expression, 0, err)
	}
	return &jsCompiledRule{
		registry:   e.registry,
		expression: expression,
		program:    program,
	}, nil
}

func (e *jsEvaluator) loadOrCompile(expression string) (*goja.Program, error) {
	key := cacheKey(EngineJS, expression)
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			if program, ok := cached.(*goja.Program); ok {
				return program, nil
			}
		}
	}
	program, err := goja.Compile("", fmt.Sprintf("(function(){ return (%s); })()", expression), false)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Set(key, program)
	}
	return program, nil
}

type jsCompiledRule struct {
	registry   *FunctionRegistry
	expression string
	program    *goja.Program
}

func (r *jsCompiledRule) Engine() Engine     { return EngineJS }
func (r *jsCompiledRule) Expression() string { return r.expression }

func (r *jsCompiledRule) Evaluate(ctx RuleContext) (any, error) {
	ctx = ctx.withDefaults()
	vm := goja.New()
	vm.Set("line", ctx.Line)
	vm.Set("number", ctx.Number)
	vm.Set("now", ctx.Now)
	vm.Set("args", ctx.Args)
	vm.Set("metadata", ctx.Metadata)
	for _, name := range r.registry.Names() {
		vm.Set(name, func(args ...any) (any, error) {
			return r.registry.Call(name, args...)
		})
	}
	value, err := vm.RunProgram(r.program)
	if err != nil {
		return nil, wrapEvaluationError(EngineJS, r.expression, ctx.Number, err)
	}
	return value.Export(), nil
}
