// Package zapsink bridges ambient output and registry events to zap.
package zapsink

import (
	"bytes"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Option configures a Writer.
type Option func(*Writer)

// WithLevel sets the level lines are logged at. The default is info.
func WithLevel(level zapcore.Level) Option {
	return func(w *Writer) {
		w.level = level
	}
}

// WithFields attaches fields to every logged line.
func WithFields(fields ...zap.Field) Option {
	return func(w *Writer) {
		w.fields = append(w.fields, fields...)
	}
}

// WithLineNumbers adds a "line" field counting lines from 1.
func WithLineNumbers() Option {
	return func(w *Writer) {
		w.numbered = true
	}
}

// Writer logs each '\n'-terminated line written to it as one zap entry.
// Empty lines are logged as empty messages. A trailing partial line is held
// until Sync.
type Writer struct {
	logger   *zap.Logger
	level    zapcore.Level
	fields   []zap.Field
	numbered bool

	mu     sync.Mutex
	buf    []byte
	number int
}

// NewWriter returns a Writer logging through logger. A nil logger discards.
func NewWriter(logger *zap.Logger, opts ...Option) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Writer{logger: logger, level: zapcore.InfoLevel}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w
}

// Write implements io.Writer.
func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.log(string(w.buf[:i]))
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

// Sync logs any partial line and syncs the logger.
func (w *Writer) Sync() error {
	w.mu.Lock()
	if len(w.buf) > 0 {
		w.log(string(w.buf))
		w.buf = nil
	}
	w.mu.Unlock()
	return w.logger.Sync()
}

func (w *Writer) log(line string) {
	w.number++
	ce := w.logger.Check(w.level, line)
	if ce == nil {
		return
	}
	if w.numbered {
		fields := w.fields[:len(w.fields):len(w.fields)]
		ce.Write(append(fields, zap.Int("line", w.number))...)
		return
	}
	ce.Write(w.fields...)
}
