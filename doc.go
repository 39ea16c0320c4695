// Package ambient provides an ambient output sink: a writer installed for
// the dynamic extent of a closure and reachable from any code running inside
// that extent without being passed down explicitly.
//
// Writers are installed on a Registry, one per task. The registry travels in
// a context.Context, so code that already receives ctx can write to the
// ambient writer:
//
//	var buf bytes.Buffer
//	ambient.Scoped(ctx, &buf, func(ctx context.Context) struct{} {
//		render(ctx)
//		return struct{}{}
//	})
//
//	func render(ctx context.Context) {
//		_ = ambient.Printf(ctx, "The answer is %d", 42)
//	}
//
// Scopes nest. The innermost scope's writer is ambient until that scope
// returns, after which the enclosing writer is ambient again. Restoration is
// deferred, so it also happens when the body panics.
//
// Access lends the writer to a callback through a Handle. Only one callback
// may hold the writer of a registry at a time: calling Access, Scoped or
// Registry.Current from inside a callback panics with a *ReentrancyError.
// When no writer is installed Access skips the callback and reports false,
// and Lines, Println and Printf write nothing.
//
// A Registry is not meant to be shared between goroutines. Use Detach to give
// a child goroutine its own empty registry.
package ambient
