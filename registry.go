package ambient

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/goliatone/go-ambient/cell"
	"github.com/goliatone/go-ambient/pkg/activity"
)

// Registry holds the ambient writer for one task. Scopes installed on it
// nest as a stack; the innermost one is the ambient writer.
//
// A Registry belongs to one goroutine at a time. Hand a child goroutine its
// own registry with Detach instead of sharing one. Scope bodies and access
// callbacks must run to completion without parking the registry for other
// work on the same goroutine.
//
// The zero value is ready to use. A Registry must not be copied after first
// use.
type Registry struct {
	slot    cell.Cell[*registration]
	lender  atomic.Pointer[registration]
	cfg     config
	emitter *activity.Emitter
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...Option) *Registry {
	cfg := applyOptions(opts)
	return &Registry{
		cfg: cfg,
		emitter: activity.NewEmitter(cfg.hooks, activity.Config{
			Enabled: true,
			Channel: cfg.channel,
		}),
	}
}

// fork returns an empty registry sharing r's configuration.
func (r *Registry) fork() *Registry {
	if r == nil {
		return NewRegistry()
	}
	return &Registry{cfg: r.cfg, emitter: r.emitter}
}

// ScopedIn installs w as the ambient writer of r, runs body and restores the
// previously installed writer. Restoration runs however body exits,
// including panics and runtime.Goexit. A nil w mutes ambient output for the
// extent of body.
//
// ScopedIn panics with a *ReentrancyError when called from inside an access
// callback on r.
func ScopedIn[R any](r *Registry, w io.Writer, body func() R, opts ...ScopeOption) R {
	return scoped(context.Background(), r, w, body, opts)
}

// AccessIn calls fn with the ambient writer of r and returns its result with
// true. When no writer is installed, or the innermost scope is muted, fn is
// not called and AccessIn returns the zero R and false.
//
// The Handle passed to fn is valid only until fn returns. AccessIn panics
// with a *ReentrancyError when called again from inside fn.
func AccessIn[R any](r *Registry, fn func(*Handle) R) (R, bool) {
	return access(context.Background(), r, fn)
}

// Scoped is ScopedIn for bodies without a result.
func (r *Registry) Scoped(w io.Writer, body func(), opts ...ScopeOption) {
	ScopedIn(r, w, func() struct{} {
		body()
		return struct{}{}
	}, opts...)
}

// Access is AccessIn for callbacks without a result. It reports whether fn
// ran.
func (r *Registry) Access(fn func(*Handle)) bool {
	_, ok := AccessIn(r, func(h *Handle) struct{} {
		fn(h)
		return struct{}{}
	})
	return ok
}

// Current describes the innermost scope, muted or not. It panics like
// AccessIn when called from inside an access callback; use Handle.Info there.
func (r *Registry) Current() (ScopeInfo, bool) {
	if r == nil {
		return ScopeInfo{}, false
	}
	r.guard(context.Background(), "current")
	var (
		info ScopeInfo
		ok   bool
	)
	r.slot.Borrow(func(top **registration) {
		if *top != nil {
			info, ok = (*top).info.clone(), true
		}
	})
	return info, ok
}

// Installed reports whether an access would reach a writer.
func (r *Registry) Installed() bool {
	info, ok := r.Current()
	return ok && !info.Muted
}

// Depth returns the number of active scopes.
func (r *Registry) Depth() int {
	info, _ := r.Current()
	return info.Depth
}

func scoped[R any](ctx context.Context, r *Registry, w io.Writer, body func() R, opts []ScopeOption) R {
	if r == nil {
		panic(ErrNilRegistry)
	}
	reg := r.install(ctx, w, opts)
	completed := false
	defer func() {
		r.restore(ctx, reg, !completed)
	}()
	r.announce(ctx, reg)
	result := body()
	completed = true
	return result
}

func access[R any](ctx context.Context, r *Registry, fn func(*Handle) R) (R, bool) {
	var (
		result R
		ok     bool
	)
	if r == nil {
		return result, false
	}
	r.guard(ctx, "access")
	r.slot.Borrow(func(top **registration) {
		reg := *top
		if reg == nil || reg.sink == nil {
			return
		}
		handle := &Handle{reg: reg}
		r.lender.Store(reg)
		defer func() {
			handle.release()
			r.lender.Store(nil)
		}()
		result, ok = fn(handle), true
	})
	return result, ok
}

func (r *Registry) install(ctx context.Context, w io.Writer, opts []ScopeOption) *registration {
	r.guard(ctx, "scope")
	reg := newRegistration(w, opts, r.cfg.now())
	r.slot.Borrow(func(top **registration) {
		reg.link(*top)
		*top = reg
	})
	return reg
}

// announce reports an installed scope. It runs after the restore is deferred
// so a panicking logger or hook still unwinds the scope.
func (r *Registry) announce(ctx context.Context, reg *registration) {
	r.logger().LogScope(ScopeEvent{Kind: EventInstalled, Scope: reg.info.clone()})
	r.emit(ctx, activity.BuildScopeEnteredEvent(reg.eventInput()))
}

func (r *Registry) restore(ctx context.Context, reg *registration, unwound bool) {
	r.slot.Borrow(func(top **registration) {
		if *top != reg {
			panic(fmt.Errorf("%w: %s is not the innermost scope", ErrScopeOrder, reg.info.label()))
		}
		*top = reg.prev
	})
	reg.closed.Store(true)

	event := ScopeEvent{
		Kind:     EventRestored,
		Scope:    reg.info.clone(),
		Duration: r.cfg.now().Sub(reg.started),
		Bytes:    reg.written.Load(),
	}
	input := reg.eventInput()
	input.Duration = event.Duration
	build := activity.BuildScopeExitedEvent
	if unwound {
		event.Kind = EventUnwound
		build = activity.BuildScopeUnwoundEvent
	}
	r.logger().LogScope(event)
	r.emit(ctx, build(input))
}

// guard panics with a *ReentrancyError if an access callback holds r.
func (r *Registry) guard(ctx context.Context, op string) {
	if !r.slot.Borrowed() {
		return
	}
	err := &ReentrancyError{Op: op}
	input := activity.ScopeEventInput{Operation: op}
	if reg := r.lender.Load(); reg != nil {
		err.Scope = reg.info.clone()
		input = reg.eventInput()
		input.Operation = op
	}
	r.logger().LogScope(ScopeEvent{Kind: EventReentrancy, Scope: err.Scope, Err: err})
	r.emit(ctx, activity.BuildReentrancyEvent(input))
	panic(err)
}

func (r *Registry) emit(ctx context.Context, event activity.Event) {
	if !r.emitter.Enabled() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := r.emitter.Emit(ctx, event); err != nil {
		r.logger().LogScope(ScopeEvent{Kind: EventHookError, Err: err})
	}
}

func (r *Registry) logger() Logger {
	if r.cfg.logger != nil {
		return r.cfg.logger
	}
	return noopLogger{}
}
