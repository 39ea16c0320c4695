package filter

import (
	"bytes"
	"fmt"
	"io"
	"time"
)

// WriterOption configures a Writer.
type WriterOption func(*writerConfig)

type writerConfig struct {
	args       map[string]any
	metadata   map[string]any
	clock      func() time.Time
	failOpen   bool
	logger     EvaluatorLogger
	evaluators []EvaluatorOption
}

// WithArgs exposes args to rules as `args`.
func WithArgs(args map[string]any) WriterOption {
	return func(cfg *writerConfig) {
		cfg.args = cloneMap(args)
	}
}

// WithMetadata exposes metadata to rules as `metadata`.
func WithMetadata(metadata map[string]any) WriterOption {
	return func(cfg *writerConfig) {
		cfg.metadata = cloneMap(metadata)
	}
}

// WithClock overrides the time source bound to `now`.
func WithClock(clock func() time.Time) WriterOption {
	return func(cfg *writerConfig) {
		cfg.clock = clock
	}
}

// WithFailOpen keeps lines whose rule evaluation fails instead of returning
// the error from Write.
func WithFailOpen(enabled bool) WriterOption {
	return func(cfg *writerConfig) {
		cfg.failOpen = enabled
	}
}

// WithEvaluatorLogger attaches a logger called once per evaluated line.
func WithEvaluatorLogger(logger EvaluatorLogger) WriterOption {
	return func(cfg *writerConfig) {
		if logger == nil {
			cfg.logger = noopEvaluatorLogger{}
			return
		}
		cfg.logger = logger
	}
}

// WithEvaluatorOptions passes options to the evaluator built by
// NewWriterFromConfig.
func WithEvaluatorOptions(opts ...EvaluatorOption) WriterOption {
	return func(cfg *writerConfig) {
		cfg.evaluators = append(cfg.evaluators, opts...)
	}
}

// Stats counts lines by outcome.
type Stats struct {
	Kept    int
	Dropped int
	Failed  int
}

// Writer forwards the lines of its input for which rule returns true.
// Input is split on '\n'; the rule sees each line without its terminator.
// A trailing partial line is held until Flush or Close. A Writer is not safe
// for concurrent use; install it in one scope at a time.
type Writer struct {
	dst    io.Writer
	rule   CompiledRule
	cfg    writerConfig
	buf    []byte
	number int
	stats  Stats
	closed bool
}

// NewWriter returns a Writer that filters into dst with rule. A nil rule
// keeps every line.
func NewWriter(dst io.Writer, rule CompiledRule, opts ...WriterOption) *Writer {
	cfg := writerConfig{logger: noopEvaluatorLogger{}}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Writer{dst: dst, rule: rule, cfg: cfg}
}

// Write buffers p and evaluates every completed line. It reports len(p)
// consumed even when a line fails, since the failing line is discarded.
func (w *Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, ErrClosed
	}
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		line := string(w.buf[:i])
		w.buf = w.buf[i+1:]
		if err := w.emit(line, true); err != nil {
			return len(p), err
		}
	}
	return len(p), nil
}

// WriteString implements io.StringWriter.
func (w *Writer) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

// Flush evaluates a buffered partial line, writing it without a terminator
// when kept.
func (w *Writer) Flush() error {
	if w.closed {
		return ErrClosed
	}
	if len(w.buf) == 0 {
		return nil
	}
	line := string(w.buf)
	w.buf = nil
	return w.emit(line, false)
}

// Close flushes the writer. Later writes fail with ErrClosed. The
// destination is left open.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	err := w.Flush()
	w.closed = true
	return err
}

// Stats returns the line counters.
func (w *Writer) Stats() Stats {
	return w.stats
}

func (w *Writer) emit(line string, terminated bool) error {
	w.number++
	keep, err := w.evaluate(line)
	if err != nil {
		w.stats.Failed++
		if !w.cfg.failOpen {
			return err
		}
		keep = true
	}
	if !keep {
		w.stats.Dropped++
		return nil
	}
	w.stats.Kept++
	if terminated {
		line += "\n"
	}
	_, err = io.WriteString(w.dst, line)
	return err
}

func (w *Writer) evaluate(line string) (bool, error) {
	if w.rule == nil {
		return true, nil
	}
	ctx := RuleContext{
		Line:     line,
		Number:   w.number,
		Now:      w.now(),
		Args:     w.cfg.args,
		Metadata: w.cfg.metadata,
	}
	start := time.Now()
	result, err := w.rule.Evaluate(ctx)
	keep, ok := result.(bool)
	if err == nil && !ok {
		err = fmt.Errorf("%w: got %T", ErrNotBool, result)
	}
	err = wrapEvaluationError(w.rule.Engine(), w.rule.Expression(), w.number, err)
	w.cfg.logger.LogEvaluation(EvaluatorLogEvent{
		Engine:   w.rule.Engine(),
		Expr:     w.rule.Expression(),
		Line:     w.number,
		Kept:     err == nil && keep,
		Duration: time.Since(start),
		Err:      err,
	})
	if err != nil {
		return false, err
	}
	return keep, nil
}

func (w *Writer) now() time.Time {
	if w.cfg.clock != nil {
		return w.cfg.clock()
	}
	return time.Now()
}

func cloneMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
