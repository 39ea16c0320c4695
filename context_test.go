package ambient

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestScopedCreatesRegistryWhenMissing(t *testing.T) {
	var buf bytes.Buffer
	base := context.Background()

	Scoped(base, &buf, func(ctx context.Context) struct{} {
		if _, ok := RegistryFrom(ctx); !ok {
			t.Fatalf("expected body context to carry a registry")
		}
		deep(ctx, 3)
		return struct{}{}
	})

	if _, ok := RegistryFrom(base); ok {
		t.Fatalf("expected base context untouched")
	}
	if want := "depth 3\ndepth 2\ndepth 1\n"; buf.String() != want {
		t.Fatalf("want %q got %q", want, buf.String())
	}
	if _, ok := Access(base, func(*Handle) int { return 1 }); ok {
		t.Fatalf("expected no ambient writer outside scope")
	}
}

func deep(ctx context.Context, n int) {
	if n == 0 {
		return
	}
	_ = Printf(ctx, "depth %d", n)
	deep(ctx, n-1)
}

func TestScopedReusesRegistryFromContext(t *testing.T) {
	r := NewRegistry()
	ctx := WithRegistry(context.Background(), r)
	var a, b bytes.Buffer

	Scoped(ctx, &a, func(ctx context.Context) struct{} {
		if got, _ := RegistryFrom(ctx); got != r {
			t.Fatalf("expected registry from context to be reused")
		}
		Scoped(ctx, &b, func(ctx context.Context) struct{} {
			_ = Lines(ctx, "inner")
			return struct{}{}
		})
		_ = Lines(ctx, "outer")
		// The registry is shared, so the non-ctx form sees the same writer.
		_ = r.Lines("direct")
		return struct{}{}
	})

	if a.String() != "outer\ndirect\n" || b.String() != "inner\n" {
		t.Fatalf("unexpected sinks a=%q b=%q", a.String(), b.String())
	}
}

func TestNilContextAndNilRegistry(t *testing.T) {
	//nolint:staticcheck // nil contexts are tolerated
	if _, ok := RegistryFrom(nil); ok {
		t.Fatalf("expected no registry in nil context")
	}
	ctx := WithRegistry(context.Background(), nil)
	if _, ok := RegistryFrom(ctx); ok {
		t.Fatalf("expected nil registry to be ignored")
	}
}

func TestDetachStartsEmpty(t *testing.T) {
	var parent, child bytes.Buffer

	Scoped(context.Background(), &parent, func(ctx context.Context) struct{} {
		detached := Detach(ctx)
		if _, ok := Access(detached, func(*Handle) int { return 1 }); ok {
			t.Fatalf("expected detached context to start without writer")
		}
		Scoped(detached, &child, func(ctx context.Context) struct{} {
			_ = Lines(ctx, "child")
			return struct{}{}
		})
		_ = Lines(ctx, "parent")
		return struct{}{}
	})

	if parent.String() != "parent\n" || child.String() != "child\n" {
		t.Fatalf("unexpected sinks parent=%q child=%q", parent.String(), child.String())
	}
}

func TestConcurrentTasksAreIsolated(t *testing.T) {
	const tasks = 16
	sinks := make([]bytes.Buffer, tasks)

	Scoped(context.Background(), &bytes.Buffer{}, func(ctx context.Context) struct{} {
		g, gctx := errgroup.WithContext(ctx)
		for i := 0; i < tasks; i++ {
			taskCtx := Detach(gctx)
			g.Go(func() error {
				return Scoped(taskCtx, &sinks[i], func(ctx context.Context) error {
					for j := 0; j < 50; j++ {
						if err := Printf(ctx, "task %d line %d", i, j); err != nil {
							return err
						}
					}
					return nil
				})
			})
		}
		if err := g.Wait(); err != nil {
			t.Fatalf("tasks: %v", err)
		}
		return struct{}{}
	})

	for i := range sinks {
		var want bytes.Buffer
		for j := 0; j < 50; j++ {
			fmt.Fprintf(&want, "task %d line %d\n", i, j)
		}
		if sinks[i].String() != want.String() {
			t.Fatalf("task %d sink mixed with other tasks", i)
		}
	}
}
