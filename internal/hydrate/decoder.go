package hydrate

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Context identifies the document being decoded.
type Context struct {
	// Source names the document, e.g. a file path.
	Source string
	// Section selects a top-level key of the document to decode. Empty
	// decodes the whole document.
	Section string
}

// PreHook lets callers mutate or normalise the payload before decoding.
type PreHook func(Context, map[string]any) (map[string]any, error)

// PostHook lets callers adjust or validate the hydrated struct after decoding.
type PostHook[T any] func(Context, *T) error

// CustomDecoder replaces the default YAML decoding when provided.
type CustomDecoder[T any] func(Context, map[string]any) (T, error)

// DecoderOption configures a Decoder instance.
type DecoderOption[T any] func(*Decoder[T])

// Decoder converts YAML payloads into strongly typed structs.
type Decoder[T any] struct {
	preHooks    []PreHook
	postHooks   []PostHook[T]
	knownFields bool
	custom      CustomDecoder[T]
}

// WithPreHook applies hook prior to decoding.
func WithPreHook[T any](hook PreHook) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.preHooks = append(d.preHooks, hook)
	}
}

// WithPostHook applies hook after decoding completes.
func WithPostHook[T any](hook PostHook[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.postHooks = append(d.postHooks, hook)
	}
}

// WithKnownFields rejects keys that have no matching field in T.
func WithKnownFields[T any]() DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.knownFields = true
	}
}

// WithCustomDecoder replaces the default YAML decoding path.
func WithCustomDecoder[T any](decoder CustomDecoder[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.custom = decoder
	}
}

func NewDecoder[T any](opts ...DecoderOption[T]) *Decoder[T] {
	d := &Decoder[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// DecodeReader reads one YAML document from r and decodes it. An empty
// document decodes as an empty payload.
func (d *Decoder[T]) DecodeReader(ctx Context, r io.Reader) (T, error) {
	var zero T
	payload := map[string]any{}
	if err := yaml.NewDecoder(r).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		return zero, fmt.Errorf("hydrate: read %s: %w", describe(ctx), err)
	}
	if payload == nil {
		payload = map[string]any{}
	}
	if ctx.Section != "" {
		section, ok := payload[ctx.Section].(map[string]any)
		if !ok {
			return zero, fmt.Errorf("hydrate: section missing in %s", describe(ctx))
		}
		payload = section
	}
	return d.Decode(ctx, payload)
}

// Decode converts payload into the target struct T applying configured hooks.
func (d *Decoder[T]) Decode(ctx Context, payload map[string]any) (T, error) {
	var zero T

	if payload == nil {
		return zero, fmt.Errorf("hydrate: payload is nil for %s", describe(ctx))
	}

	current, err := clonePayload(payload)
	if err != nil {
		return zero, fmt.Errorf("hydrate: clone payload for %s: %w", describe(ctx), err)
	}

	for _, hook := range d.preHooks {
		if hook == nil {
			continue
		}
		next, err := hook(ctx, current)
		if err != nil {
			return zero, fmt.Errorf("hydrate: pre-hook for %s failed: %w", describe(ctx), err)
		}
		if next != nil {
			current = next
		}
	}

	var result T
	if d.custom != nil {
		result, err = d.custom(ctx, current)
		if err != nil {
			return zero, fmt.Errorf("hydrate: custom decoder for %s failed: %w", describe(ctx), err)
		}
	} else {
		buffer, err := yaml.Marshal(current)
		if err != nil {
			return zero, fmt.Errorf("hydrate: marshal payload for %s: %w", describe(ctx), err)
		}
		decoder := yaml.NewDecoder(bytes.NewReader(buffer))
		decoder.KnownFields(d.knownFields)
		if err := decoder.Decode(&result); err != nil && !errors.Is(err, io.EOF) {
			return zero, fmt.Errorf("hydrate: decode %s: %w", describe(ctx), err)
		}
	}

	for _, hook := range d.postHooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, &result); err != nil {
			return zero, fmt.Errorf("hydrate: post-hook for %s failed: %w", describe(ctx), err)
		}
	}

	return result, nil
}

func describe(ctx Context) string {
	source := ctx.Source
	if source == "" {
		source = "<input>"
	}
	if ctx.Section != "" {
		return fmt.Sprintf("%q section %q", source, ctx.Section)
	}
	return fmt.Sprintf("%q", source)
}

func clonePayload(payload map[string]any) (map[string]any, error) {
	buffer, err := yaml.Marshal(payload)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := yaml.Unmarshal(buffer, &out); err != nil {
		return nil, err
	}
	return out, nil
}
