package activity

import (
	"strings"
	"time"
)

// Verbs emitted for scope lifecycle events.
const (
	VerbScopeEntered    = "ambient.scope.entered"
	VerbScopeExited     = "ambient.scope.exited"
	VerbScopeUnwound    = "ambient.scope.unwound"
	VerbAccessReentrant = "ambient.access.reentrant"
)

// ObjectTypeScope is the object type attached to every scope event.
const ObjectTypeScope = "ambient.scope"

// ScopeEventInput describes the fields shared by scope lifecycle events.
type ScopeEventInput struct {
	ScopeID    string
	ParentID   string
	Name       string
	Depth      int
	Bytes      int64
	Duration   time.Duration
	Operation  string
	ActorID    string
	UserID     string
	TenantID   string
	Channel    string
	Metadata   map[string]any
	OccurredAt time.Time
}

// BuildScopeEnteredEvent describes a writer being installed.
func BuildScopeEnteredEvent(input ScopeEventInput) Event {
	return buildScopeEvent(VerbScopeEntered, input)
}

// BuildScopeExitedEvent describes a scope returning normally.
func BuildScopeExitedEvent(input ScopeEventInput) Event {
	return buildScopeEvent(VerbScopeExited, input)
}

// BuildScopeUnwoundEvent describes a scope restored while its body was
// panicking.
func BuildScopeUnwoundEvent(input ScopeEventInput) Event {
	return buildScopeEvent(VerbScopeUnwound, input)
}

// BuildReentrancyEvent describes a rejected nested borrow. input.Operation
// names the call that was rejected ("access" or "scope").
func BuildReentrancyEvent(input ScopeEventInput) Event {
	return buildScopeEvent(VerbAccessReentrant, input)
}

func buildScopeEvent(verb string, input ScopeEventInput) Event {
	metadata := cloneMap(input.Metadata)
	set := func(key string, value any) {
		if metadata == nil {
			metadata = map[string]any{}
		}
		metadata[key] = value
	}

	set("depth", input.Depth)
	if name := strings.TrimSpace(input.Name); name != "" {
		set("scope_name", name)
	}
	if parent := strings.TrimSpace(input.ParentID); parent != "" {
		set("parent_id", parent)
	}
	if input.Bytes > 0 {
		set("bytes", input.Bytes)
	}
	if input.Duration > 0 {
		set("duration_ms", input.Duration.Milliseconds())
	}
	if op := strings.TrimSpace(input.Operation); op != "" {
		set("operation", op)
	}

	objectID := strings.TrimSpace(input.ScopeID)
	if objectID == "" {
		objectID = strings.TrimSpace(input.Name)
	}
	if objectID == "" {
		objectID = ObjectTypeScope
	}

	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		UserID:     strings.TrimSpace(input.UserID),
		TenantID:   strings.TrimSpace(input.TenantID),
		ObjectType: ObjectTypeScope,
		ObjectID:   objectID,
		Channel:    strings.TrimSpace(input.Channel),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}
