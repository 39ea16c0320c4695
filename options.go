package ambient

import (
	"time"

	"github.com/goliatone/go-ambient/pkg/activity"
)

// Option configures a Registry.
type Option func(*config)

type config struct {
	logger  Logger
	hooks   activity.Hooks
	channel string
	clock   func() time.Time
}

func applyOptions(opts []Option) config {
	cfg := config{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithLogger attaches a scope logger. A nil logger disables logging.
func WithLogger(logger Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

// WithActivityHooks attaches activity hooks notified on scope entry, exit,
// unwinding and rejected reentrant borrows. Nil entries are dropped. Hooks
// run on the goroutine that owns the scope and must not block.
func WithActivityHooks(hooks activity.Hooks) Option {
	normalized := hooks.Clone()
	return func(cfg *config) {
		cfg.hooks = normalized
	}
}

// WithActivityChannel overrides the channel stamped on activity events.
func WithActivityChannel(channel string) Option {
	return func(cfg *config) {
		cfg.channel = channel
	}
}

// WithClock overrides the time source used for scope durations.
func WithClock(clock func() time.Time) Option {
	return func(cfg *config) {
		cfg.clock = clock
	}
}

func (cfg config) now() time.Time {
	if cfg.clock != nil {
		return cfg.clock()
	}
	return time.Now()
}
