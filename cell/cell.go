// Package cell provides a generic wrapper that arbitrates exclusive access to
// a value. At most one borrow may be live at any instant; a second borrow
// while the first is still running is a programming error and panics.
package cell

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrReentrancy indicates a borrow was attempted while another borrow of the
// same cell was still in progress.
var ErrReentrancy = errors.New("cell: reentrancy detected")

// BorrowError is the panic value raised on a reentrant borrow.
type BorrowError struct {
	// Type names the wrapped value type, for diagnostics only.
	Type string
}

func (e *BorrowError) Error() string {
	if e == nil || e.Type == "" {
		return ErrReentrancy.Error()
	}
	return fmt.Sprintf("%s (cell of %s)", ErrReentrancy.Error(), e.Type)
}

func (e *BorrowError) Unwrap() error {
	return ErrReentrancy
}

// Cell holds a value of type T. The zero value is ready to use and wraps the
// zero value of T. A Cell must not be copied after first use.
type Cell[T any] struct {
	value     T
	borrowing atomic.Bool
}

// New returns a Cell wrapping value.
func New[T any](value T) *Cell[T] {
	return &Cell[T]{value: value}
}

// With runs fn with exclusive access to the value in c and returns its
// result. The borrow is released when fn returns, panics or the goroutine
// exits. If c is already borrowed, With panics with a *BorrowError before fn
// is called.
func With[T, R any](c *Cell[T], fn func(*T) R) R {
	if !c.borrowing.CompareAndSwap(false, true) {
		panic(&BorrowError{Type: fmt.Sprintf("%T", c.value)})
	}
	defer c.borrowing.Store(false)
	return fn(&c.value)
}

// Borrow is With for callbacks that produce no result.
func (c *Cell[T]) Borrow(fn func(*T)) {
	With(c, func(v *T) struct{} {
		fn(v)
		return struct{}{}
	})
}

// Borrowed reports whether a borrow is currently in progress.
func (c *Cell[T]) Borrowed() bool {
	return c.borrowing.Load()
}
