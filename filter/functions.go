package filter

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

var (
	ErrFunctionNotFound = errors.New("filter: function not registered")
	ErrFunctionName     = errors.New("filter: invalid function name")
)

// Function is a helper callable from rules, e.g. `redact(line) != line`.
// Arguments arrive as the engine's native Go values.
type Function func(args ...any) (any, error)

var functionName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// reservedNames are the rule variables every engine binds, plus the CEL
// call() dispatcher.
var reservedNames = map[string]struct{}{
	"line": {}, "number": {}, "now": {}, "args": {}, "metadata": {}, "call": {},
}

// FunctionRegistry holds the helpers exposed to rules. Names are matched
// case-insensitively and must be identifiers that do not shadow a rule
// variable. Evaluators take a snapshot at construction, so registering later
// does not affect compiled rules.
type FunctionRegistry struct {
	mu        sync.RWMutex
	functions map[string]Function
}

// NewFunctionRegistry constructs an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{functions: make(map[string]Function)}
}

// Register adds fn under name.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	key := strings.ToLower(strings.TrimSpace(name))
	if !functionName.MatchString(key) {
		return fmt.Errorf("%w: %q is not an identifier", ErrFunctionName, name)
	}
	if _, reserved := reservedNames[key]; reserved {
		return fmt.Errorf("%w: %q is a rule variable", ErrFunctionName, name)
	}
	if fn == nil {
		return fmt.Errorf("filter: function %q is nil", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.functions == nil {
		r.functions = make(map[string]Function)
	}
	if _, exists := r.functions[key]; exists {
		return fmt.Errorf("filter: function %q already registered", name)
	}
	r.functions[key] = fn
	return nil
}

// MustRegister is Register that panics on error, for package-level setup.
func (r *FunctionRegistry) MustRegister(name string, fn Function) *FunctionRegistry {
	if err := r.Register(name, fn); err != nil {
		panic(err)
	}
	return r
}

// Clone returns a registry holding the same functions.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := &FunctionRegistry{functions: make(map[string]Function, len(r.functions))}
	for name, fn := range r.functions {
		clone.functions[name] = fn
	}
	return clone
}

// Call runs the helper registered for name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	var fn Function
	if r != nil {
		r.mu.RLock()
		fn = r.functions[strings.ToLower(name)]
		r.mu.RUnlock()
	}
	if fn == nil {
		return nil, fmt.Errorf("%w: %q", ErrFunctionNotFound, name)
	}
	result, err := fn(args...)
	if err != nil {
		return nil, fmt.Errorf("filter: %s(): %w", name, err)
	}
	return result, nil
}

// Names returns the registered names in the order engines bind them.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.functions))
	for name := range r.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *FunctionRegistry) bind(name string) Function {
	return func(args ...any) (any, error) {
		return r.Call(name, args...)
	}
}
