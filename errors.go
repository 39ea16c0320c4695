package ambient

import (
	"errors"
	"fmt"

	"github.com/goliatone/go-ambient/cell"
)

var (
	// ErrReentrancy indicates an access or scope installation was attempted
	// while an access callback on the same registry was still running.
	ErrReentrancy = errors.New("ambient: reentrancy detected")
	// ErrScopeOrder indicates a scope was restored while it was not the
	// innermost one, which only happens when a registry is shared across
	// goroutines.
	ErrScopeOrder = errors.New("ambient: scope restored out of order")
	// ErrReleased is returned by writes through a Handle after its access
	// callback returned or its scope exited.
	ErrReleased = errors.New("ambient: handle used after release")
	// ErrNilRegistry indicates a scope was requested on a nil *Registry.
	ErrNilRegistry = errors.New("ambient: registry is nil")
)

// ReentrancyError is the panic value raised when a registry is borrowed
// twice. It matches both ErrReentrancy and cell.ErrReentrancy.
type ReentrancyError struct {
	// Op is the rejected call: "access", "scope" or "current".
	Op string
	// Scope describes the scope lent to the running access callback, when
	// known.
	Scope ScopeInfo
}

func (e *ReentrancyError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Scope.isZero() {
		return fmt.Sprintf("%s: %s", ErrReentrancy.Error(), e.Op)
	}
	return fmt.Sprintf("%s: %s while scope %s is borrowed", ErrReentrancy.Error(), e.Op, e.Scope.label())
}

func (e *ReentrancyError) Unwrap() []error {
	return []error{ErrReentrancy, cell.ErrReentrancy}
}
