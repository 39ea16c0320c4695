package ambient

import (
	"io"
	"sync/atomic"
	"time"

	"github.com/goliatone/go-ambient/pkg/activity"
	"github.com/google/uuid"
)

// ScopeInfo describes an installed scope.
type ScopeInfo struct {
	ID       uuid.UUID
	ParentID uuid.UUID
	Name     string
	// Depth is 1 for the outermost scope of a registry.
	Depth    int
	Metadata map[string]any
	// Muted is true when the scope installed a nil writer.
	Muted bool
}

func (s ScopeInfo) isZero() bool {
	return s.ID == uuid.Nil && s.Name == "" && s.Depth == 0
}

func (s ScopeInfo) label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID.String()
}

func (s ScopeInfo) clone() ScopeInfo {
	s.Metadata = copyMetadata(s.Metadata)
	return s
}

// ScopeOption configures a single scope installation.
type ScopeOption func(*scopeConfig)

type scopeConfig struct {
	name     string
	metadata map[string]any
}

// WithScopeName labels the scope in logs and activity events.
func WithScopeName(name string) ScopeOption {
	return func(cfg *scopeConfig) {
		cfg.name = name
	}
}

// WithScopeMetadata attaches metadata to the scope. The map is copied. The
// string keys "actor_id", "user_id" and "tenant_id" are lifted onto activity
// events.
func WithScopeMetadata(metadata map[string]any) ScopeOption {
	copied := copyMetadata(metadata)
	return func(cfg *scopeConfig) {
		cfg.metadata = copied
	}
}

// registration is the registry's record of one installed writer. It stays
// reachable from the slot only while its scope is running.
type registration struct {
	info    ScopeInfo
	sink    io.Writer
	prev    *registration
	started time.Time
	written atomic.Int64
	closed  atomic.Bool
}

func newRegistration(w io.Writer, opts []ScopeOption, started time.Time) *registration {
	cfg := scopeConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &registration{
		info: ScopeInfo{
			ID:       uuid.New(),
			Name:     cfg.name,
			Depth:    1,
			Metadata: cfg.metadata,
			Muted:    w == nil,
		},
		sink:    w,
		started: started,
	}
}

func (reg *registration) link(prev *registration) {
	reg.prev = prev
	if prev != nil {
		reg.info.ParentID = prev.info.ID
		reg.info.Depth = prev.info.Depth + 1
	}
}

func (reg *registration) eventInput() activity.ScopeEventInput {
	input := activity.ScopeEventInput{
		ScopeID:  reg.info.ID.String(),
		Name:     reg.info.Name,
		Depth:    reg.info.Depth,
		Bytes:    reg.written.Load(),
		ActorID:  metadataString(reg.info.Metadata, "actor_id"),
		UserID:   metadataString(reg.info.Metadata, "user_id"),
		TenantID: metadataString(reg.info.Metadata, "tenant_id"),
		Metadata: reg.info.Metadata,
	}
	if reg.info.ParentID != uuid.Nil {
		input.ParentID = reg.info.ParentID.String()
	}
	return input
}

func metadataString(metadata map[string]any, key string) string {
	value, _ := metadata[key].(string)
	return value
}

func copyMetadata(origin map[string]any) map[string]any {
	if len(origin) == 0 {
		return nil
	}
	out := make(map[string]any, len(origin))
	for key, value := range origin {
		out[key] = value
	}
	return out
}
