package filter

import (
	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
)

type celEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewCELEvaluator constructs an Evaluator backed by cel-go. Registered
// functions are callable by name with a single argument, or through
// call(name, [args...]) for any arity.
func NewCELEvaluator(opts ...EvaluatorOption) Evaluator {
	cfg := applyEvaluatorOptions(opts)
	return &celEvaluator{
		cache:    cfg.cache,
		registry: cfg.registry,
	}
}

func (e *celEvaluator) Engine() Engine { return EngineCEL }

func (e *celEvaluator) Compile(expression string) (CompiledRule, error) {
	if expression == "" {
		return nil, wrapEvaluationError(EngineCEL, "", 0, ErrEmptyExpression)
	}
	program, err := e.loadOrCompile(expression)
	if err != nil {
		return nil, wrapEvaluationError(EngineCEL, expression, 0, err)
	}
	return &celCompiledRule{program: program, expression: expression}, nil
}

func (e *celEvaluator) loadOrCompile(expression string) (celgo.Program, error) {
	key := cacheKey(EngineCEL, expression)
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			if program, ok := cached.(celgo.Program); ok {
				return program, nil
			}
		}
	}

	env, err := e.buildEnv()
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
	program, err := env.Program(checked)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Set(key, program)
	}
	return program, nil
}

func (e *celEvaluator) buildEnv() (*celgo.Env, error) {
	opts := []celgo.EnvOption{
		celgo.Variable("line", celgo.StringType),
		celgo.Variable("number", celgo.IntType),
		celgo.Variable("now", celgo.TimestampType),
		celgo.Variable("args", celgo.MapType(celgo.StringType, celgo.DynType)),
		celgo.Variable("metadata", celgo.MapType(celgo.StringType, celgo.DynType)),
	}
	if e.registry == nil {
		return celgo.NewEnv(opts...)
	}
	registry := e.registry
	opts = append(opts, celgo.Function("call",
		celgo.Overload("call_string_list",
			[]*celgo.Type{celgo.StringType, celgo.ListType(celgo.DynType)},
			celgo.DynType,
			celgo.BinaryBinding(func(name, list ref.Val) ref.Val {
				fn, ok := name.Value().(string)
				if !ok {
					return types.NewErr("filter: call name must be string")
				}
				lister, ok := list.(traits.Lister)
				if !ok {
					return types.NewErr("filter: call arguments must be a list")
				}
				size, _ := lister.Size().(types.Int)
				args := make([]any, 0, int(size))
				for i := types.Int(0); i < size; i++ {
					args = append(args, lister.Get(i).Value())
				}
				return celResult(registry.Call(fn, args...))
			}),
		),
	))
	for _, name := range registry.Names() {
		bound := registry.bind(name)
		opts = append(opts, celgo.Function(name,
			celgo.Overload(name+"_dyn",
				[]*celgo.Type{celgo.DynType},
				celgo.DynType,
				celgo.UnaryBinding(func(arg ref.Val) ref.Val {
					return celResult(bound(arg.Value()))
				}),
			),
		))
	}
	return celgo.NewEnv(opts...)
}

func celResult(result any, err error) ref.Val {
	if err != nil {
		return types.NewErr("%s", err.Error())
	}
	if result == nil {
		return types.NullValue
	}
	return types.DefaultTypeAdapter.NativeToValue(result)
}

type celCompiledRule struct {
	program    celgo.Program
	expression string
}

func (r *celCompiledRule) Engine() Engine     { return EngineCEL }
func (r *celCompiledRule) Expression() string { return r.expression }

func (r *celCompiledRule) Evaluate(ctx RuleContext) (any, error) {
	ctx = ctx.withDefaults()
	out, _, err := r.program.Eval(map[string]any{
		"line":     ctx.Line,
		"number":   int64(ctx.Number),
		"now":      ctx.Now,
		"args":     ctx.Args,
		"metadata": ctx.Metadata,
	})
	if err != nil {
		return nil, wrapEvaluationError(EngineCEL, r.expression, ctx.Number, err)
	}
	return out.Value(), nil
}
