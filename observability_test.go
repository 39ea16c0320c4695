package ambient

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/goliatone/go-ambient/pkg/activity"
)

type recordingLogger struct {
	events []ScopeEvent
}

func (l *recordingLogger) LogScope(event ScopeEvent) {
	l.events = append(l.events, event)
}

func (l *recordingLogger) kinds() []EventKind {
	out := make([]EventKind, len(l.events))
	for i, event := range l.events {
		out[i] = event.Kind
	}
	return out
}

func equalKinds(a, b []EventKind) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func stepClock(step time.Duration) func() time.Time {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(step)
		return now
	}
}

func TestLoggerReceivesLifecycleEvents(t *testing.T) {
	logger := &recordingLogger{}
	r := NewRegistry(WithLogger(logger), WithClock(stepClock(time.Second)))
	var buf bytes.Buffer

	r.Scoped(&buf, func() {
		_ = r.Lines("hello")
	}, WithScopeName("greeting"))

	want := []EventKind{EventInstalled, EventRestored}
	if !equalKinds(logger.kinds(), want) {
		t.Fatalf("want kinds %v got %v", want, logger.kinds())
	}
	restored := logger.events[1]
	if restored.Scope.Name != "greeting" || restored.Scope.Depth != 1 {
		t.Fatalf("unexpected scope on restore event: %+v", restored.Scope)
	}
	if restored.Bytes != int64(len("hello\n")) {
		t.Fatalf("expected %d bytes, got %d", len("hello\n"), restored.Bytes)
	}
	if restored.Duration != time.Second {
		t.Fatalf("expected one clock step, got %v", restored.Duration)
	}
}

func TestLoggerSeesUnwindAndReentrancy(t *testing.T) {
	logger := &recordingLogger{}
	r := NewRegistry(WithLogger(LoggerFunc(logger.LogScope)))

	_ = capturePanic(func() {
		r.Scoped(io.Discard, func() {
			r.Access(func(*Handle) {
				r.Access(func(*Handle) {})
			})
		})
	})

	want := []EventKind{EventInstalled, EventReentrancy, EventUnwound}
	if !equalKinds(logger.kinds(), want) {
		t.Fatalf("want kinds %v got %v", want, logger.kinds())
	}
	if !errors.Is(logger.events[1].Err, ErrReentrancy) {
		t.Fatalf("expected reentrancy error on event, got %v", logger.events[1].Err)
	}
}

func TestActivityHooksReceiveScopeEvents(t *testing.T) {
	capture := &activity.CaptureHook{}
	r := NewRegistry(WithActivityHooks(activity.Hooks{capture, nil}), WithActivityChannel("trace"))
	ctx := WithRegistry(context.Background(), r)

	Scoped(ctx, io.Discard, func(ctx context.Context) struct{} {
		Scoped(ctx, io.Discard, func(context.Context) struct{} {
			return struct{}{}
		}, WithScopeName("inner"))
		return struct{}{}
	}, WithScopeName("outer"), WithScopeMetadata(map[string]any{"actor_id": "actor-1"}))

	verbs := capture.Verbs()
	want := []string{
		activity.VerbScopeEntered,
		activity.VerbScopeEntered,
		activity.VerbScopeExited,
		activity.VerbScopeExited,
	}
	if len(verbs) != len(want) {
		t.Fatalf("want verbs %v got %v", want, verbs)
	}
	for i := range want {
		if verbs[i] != want[i] {
			t.Fatalf("want verbs %v got %v", want, verbs)
		}
	}

	events := capture.Events()
	if events[0].Channel != "trace" || events[0].ActorID != "actor-1" {
		t.Fatalf("unexpected outer entered event: %+v", events[0])
	}
	if events[1].Metadata["scope_name"] != "inner" || events[1].Metadata["parent_id"] != events[0].ObjectID {
		t.Fatalf("expected inner scope linked to outer, got %+v", events[1].Metadata)
	}
}

func TestActivityHooksReportUnwindAndReentrancy(t *testing.T) {
	capture := &activity.CaptureHook{}
	r := NewRegistry(WithActivityHooks(activity.Hooks{capture}))

	_ = capturePanic(func() {
		r.Scoped(io.Discard, func() {
			r.Access(func(h *Handle) {
				r.Scoped(h, func() {})
			})
		})
	})

	verbs := capture.Verbs()
	want := []string{activity.VerbScopeEntered, activity.VerbAccessReentrant, activity.VerbScopeUnwound}
	if len(verbs) != len(want) || verbs[1] != want[1] || verbs[2] != want[2] {
		t.Fatalf("want verbs %v got %v", want, verbs)
	}
	if op := capture.Events()[1].Metadata["operation"]; op != "scope" {
		t.Fatalf("expected operation 'scope', got %v", op)
	}
}

func TestHookErrorsAreLogged(t *testing.T) {
	boom := errors.New("hook down")
	logger := &recordingLogger{}
	r := NewRegistry(
		WithLogger(logger),
		WithActivityHooks(activity.Hooks{activity.HookFunc(func(context.Context, activity.Event) error {
			return boom
		})}),
	)

	r.Scoped(io.Discard, func() {})

	var hookErrors int
	for _, event := range logger.events {
		if event.Kind == EventHookError {
			hookErrors++
			if !errors.Is(event.Err, boom) {
				t.Fatalf("expected hook error, got %v", event.Err)
			}
		}
	}
	if hookErrors != 2 {
		t.Fatalf("expected hook errors for entry and exit, got %d", hookErrors)
	}
}

func TestDetachKeepsConfiguration(t *testing.T) {
	capture := &activity.CaptureHook{}
	ctx := WithRegistry(context.Background(), NewRegistry(WithActivityHooks(activity.Hooks{capture})))

	Scoped(Detach(ctx), io.Discard, func(context.Context) struct{} { return struct{}{} })

	if n := len(capture.Events()); n != 2 {
		t.Fatalf("expected detached registry to keep hooks, got %d events", n)
	}
}

func TestPanickingLoggerOnInstallStillRestores(t *testing.T) {
	var outer, inner bytes.Buffer
	armed := false
	r := NewRegistry(WithLogger(LoggerFunc(func(event ScopeEvent) {
		if armed && event.Kind == EventInstalled {
			armed = false
			panic("logger down")
		}
	})))

	r.Scoped(&outer, func() {
		armed = true
		if p := capturePanic(func() {
			r.Scoped(&inner, func() {
				t.Fatalf("body must not run when install reporting panics")
			})
		}); p == nil {
			t.Fatalf("expected logger panic to propagate")
		}
		if depth := r.Depth(); depth != 1 {
			t.Fatalf("expected outer scope only, got depth %d", depth)
		}
		_ = r.Printf("after %d", 1)
	})

	if r.Installed() {
		t.Fatalf("expected no scope after exit")
	}
	if inner.Len() != 0 {
		t.Fatalf("expected nothing written to the unwound sink, got %q", inner.String())
	}
	if outer.String() != "after 1\n" {
		t.Fatalf("expected outer sink restored, got %q", outer.String())
	}
}

func TestPanickingHookOnEnterStillRestores(t *testing.T) {
	var buf bytes.Buffer
	r := NewRegistry(WithActivityHooks(activity.Hooks{activity.HookFunc(func(_ context.Context, event activity.Event) error {
		if event.Verb == activity.VerbScopeEntered {
			panic("hook down")
		}
		return nil
	})}))

	if p := capturePanic(func() {
		r.Scoped(&buf, func() {})
	}); p == nil {
		t.Fatalf("expected hook panic to propagate")
	}
	if r.Installed() || r.Depth() != 0 {
		t.Fatalf("expected registry empty after unwinding, depth %d", r.Depth())
	}
	if err := r.Printf("leaked %d", 1); err != nil || buf.Len() != 0 {
		t.Fatalf("expected no output after unwinding, got %q (err %v)", buf.String(), err)
	}
}

func TestScopeMetadataCopiedWhenOptionIsBuilt(t *testing.T) {
	capture := &activity.CaptureHook{}
	r := NewRegistry(WithActivityHooks(activity.Hooks{capture}))
	meta := map[string]any{"tenant_id": "acme"}
	opt := WithScopeMetadata(meta)
	meta["tenant_id"] = "changed"
	meta["extra"] = true

	r.Scoped(io.Discard, func() {}, opt)

	event := capture.Events()[0]
	if event.TenantID != "acme" {
		t.Fatalf("expected tenant from original metadata, got %q", event.TenantID)
	}
	if _, ok := event.Metadata["extra"]; ok {
		t.Fatalf("expected later keys to stay out of the scope, got %+v", event.Metadata)
	}
}
