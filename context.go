package ambient

import (
	"context"
	"io"
)

type registryKey struct{}

// WithRegistry returns a copy of ctx carrying r.
func WithRegistry(ctx context.Context, r *Registry) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if r == nil {
		return ctx
	}
	return context.WithValue(ctx, registryKey{}, r)
}

// RegistryFrom returns the registry carried by ctx.
func RegistryFrom(ctx context.Context) (*Registry, bool) {
	if ctx == nil {
		return nil, false
	}
	r, ok := ctx.Value(registryKey{}).(*Registry)
	return r, ok && r != nil
}

// Detach returns a copy of ctx carrying a new, empty registry configured
// like the one in ctx. Use it before handing ctx to another goroutine: the
// child starts with no ambient writer and cannot disturb the parent's
// scopes.
func Detach(ctx context.Context) context.Context {
	r, _ := RegistryFrom(ctx)
	return WithRegistry(ctx, r.fork())
}

// Scoped installs w on the registry carried by ctx, creating one when ctx
// has none, and runs body with a context carrying that registry. The
// previously installed writer is restored however body exits.
func Scoped[R any](ctx context.Context, w io.Writer, body func(context.Context) R, opts ...ScopeOption) R {
	if ctx == nil {
		ctx = context.Background()
	}
	r, ok := RegistryFrom(ctx)
	if !ok {
		r = NewRegistry()
		ctx = WithRegistry(ctx, r)
	}
	return scoped(ctx, r, w, func() R {
		return body(ctx)
	}, opts)
}

// Access calls fn with the ambient writer of the registry carried by ctx.
// It returns the zero R and false when ctx carries no registry or no writer
// is installed.
func Access[R any](ctx context.Context, fn func(*Handle) R) (R, bool) {
	r, ok := RegistryFrom(ctx)
	if !ok {
		var zero R
		return zero, false
	}
	return access(ctx, r, fn)
}
