package ambient

import "time"

// EventKind classifies a ScopeEvent.
type EventKind string

const (
	EventInstalled  EventKind = "installed"
	EventRestored   EventKind = "restored"
	EventUnwound    EventKind = "unwound"
	EventReentrancy EventKind = "reentrancy"
	EventHookError  EventKind = "hook_error"
)

// ScopeEvent describes a registry transition for logging.
type ScopeEvent struct {
	Kind     EventKind
	Scope    ScopeInfo
	Duration time.Duration
	Bytes    int64
	Err      error
}

// Logger records registry events. Implementations are called on the
// goroutine that owns the registry and must not call back into it.
type Logger interface {
	LogScope(ScopeEvent)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(ScopeEvent)

// LogScope implements Logger.
func (f LoggerFunc) LogScope(event ScopeEvent) {
	if f != nil {
		f(event)
	}
}

type noopLogger struct{}

func (noopLogger) LogScope(ScopeEvent) {}
