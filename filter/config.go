package filter

import (
	"fmt"
	"io"
	"strings"

	"github.com/goliatone/go-ambient/internal/hydrate"
)

// Config describes a filter in YAML.
//
//	engine: cel
//	rule: 'line.startsWith("AUDIT") || metadata.verbose'
//	fail_open: true
//	metadata:
//	  verbose: false
type Config struct {
	Engine   Engine         `yaml:"engine"`
	Rule     string         `yaml:"rule"`
	FailOpen bool           `yaml:"fail_open"`
	Args     map[string]any `yaml:"args"`
	Metadata map[string]any `yaml:"metadata"`
}

// LoadConfig reads a Config from r. Unknown keys are rejected, engine names
// are normalised and an empty rule is an error. A non-empty section selects
// a top-level key of the document.
func LoadConfig(r io.Reader, source, section string) (Config, error) {
	decoder := hydrate.NewDecoder[Config](
		hydrate.WithKnownFields[Config](),
		hydrate.WithPreHook[Config](normalizeConfigPayload),
		hydrate.WithPostHook[Config](validateConfig),
	)
	return decoder.DecodeReader(hydrate.Context{Source: source, Section: section}, r)
}

func normalizeConfigPayload(_ hydrate.Context, payload map[string]any) (map[string]any, error) {
	raw, _ := payload["engine"].(string)
	engine, err := ParseEngine(raw)
	if err != nil {
		return nil, err
	}
	payload["engine"] = string(engine)
	if rule, ok := payload["rule"].(string); ok {
		payload["rule"] = strings.TrimSpace(rule)
	}
	return payload, nil
}

func validateConfig(ctx hydrate.Context, cfg *Config) error {
	if cfg.Rule == "" {
		return fmt.Errorf("%w in %q", ErrEmptyExpression, ctx.Source)
	}
	return nil
}

// NewWriterFromConfig compiles cfg and returns a Writer filtering into dst.
// Options apply after cfg, so they may override its args, metadata and
// fail-open setting.
func NewWriterFromConfig(dst io.Writer, cfg Config, opts ...WriterOption) (*Writer, error) {
	base := []WriterOption{
		WithFailOpen(cfg.FailOpen),
		WithArgs(cfg.Args),
		WithMetadata(cfg.Metadata),
	}
	opts = append(base, opts...)

	wcfg := writerConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&wcfg)
		}
	}
	evaluator, err := NewEvaluator(cfg.Engine, wcfg.evaluators...)
	if err != nil {
		return nil, err
	}
	rule, err := evaluator.Compile(cfg.Rule)
	if err != nil {
		return nil, err
	}
	return NewWriter(dst, rule, opts...), nil
}
