package filter

import (
	"errors"
	"fmt"
)

var (
	ErrNoEvaluator       = errors.New("filter: evaluator not configured")
	ErrUnknownEngine     = errors.New("filter: unknown engine")
	ErrEngineUnavailable = errors.New("filter: engine unavailable")
	ErrEmptyExpression   = errors.New("filter: expression must not be empty")
	ErrNotBool           = errors.New("filter: rule did not return a bool")
	ErrClosed            = errors.New("filter: writer closed")
)

// EvaluationError captures evaluator metadata alongside the originating error.
type EvaluationError struct {
	Engine Engine
	Expr   string
	Line   int
	Err    error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Line > 0 {
		return fmt.Sprintf("filter: %s evaluator %s line=%d: %v", e.Engine, describeExpression(e.Expr), e.Line, e.Err)
	}
	return fmt.Sprintf("filter: %s evaluator %s: %v", e.Engine, describeExpression(e.Expr), e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describeExpression(expr string) string {
	if expr == "" {
		return "expr=<empty>"
	}
	return fmt.Sprintf("expr=%q", expr)
}

func wrapEvaluationError(engine Engine, expr string, line int, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		if evalErr.Engine == "" {
			evalErr.Engine = engine
		}
		if evalErr.Expr == "" {
			evalErr.Expr = expr
		}
		if evalErr.Line == 0 {
			evalErr.Line = line
		}
		return evalErr
	}

	return &EvaluationError{
		Engine: engine,
		Expr:   expr,
		Line:   line,
		Err:    err,
	}
}
