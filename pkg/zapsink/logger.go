package zapsink

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	ambient "github.com/goliatone/go-ambient"
	"github.com/goliatone/go-ambient/filter"
)

// Logger adapts zap to ambient.Logger and filter.EvaluatorLogger.
type Logger struct {
	log *zap.Logger
}

var (
	_ ambient.Logger         = (*Logger)(nil)
	_ filter.EvaluatorLogger = (*Logger)(nil)
)

// NewLogger wraps logger. A nil logger discards.
func NewLogger(logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{log: logger}
}

// LogScope implements ambient.Logger. Installs and restores log at debug,
// unwinds at warn and reentrancy or hook failures at error.
func (l *Logger) LogScope(event ambient.ScopeEvent) {
	level := zapcore.DebugLevel
	switch event.Kind {
	case ambient.EventUnwound:
		level = zapcore.WarnLevel
	case ambient.EventReentrancy, ambient.EventHookError:
		level = zapcore.ErrorLevel
	}
	ce := l.log.Check(level, "ambient scope "+string(event.Kind))
	if ce == nil {
		return
	}
	fields := []zap.Field{zap.String("event", string(event.Kind))}
	if event.Scope.ID != uuid.Nil {
		fields = append(fields,
			zap.String("scope_id", event.Scope.ID.String()),
			zap.Int("depth", event.Scope.Depth),
		)
	}
	if event.Scope.Name != "" {
		fields = append(fields, zap.String("scope", event.Scope.Name))
	}
	if event.Scope.ParentID != uuid.Nil {
		fields = append(fields, zap.String("parent_id", event.Scope.ParentID.String()))
	}
	if event.Scope.Muted {
		fields = append(fields, zap.Bool("muted", true))
	}
	if event.Kind == ambient.EventRestored || event.Kind == ambient.EventUnwound {
		fields = append(fields,
			zap.Int64("bytes", event.Bytes),
			zap.Duration("duration", event.Duration),
		)
	}
	if event.Err != nil {
		fields = append(fields, zap.Error(event.Err))
	}
	ce.Write(fields...)
}

// LogEvaluation implements filter.EvaluatorLogger. Failed evaluations log at
// warn, the rest at debug.
func (l *Logger) LogEvaluation(event filter.EvaluatorLogEvent) {
	level := zapcore.DebugLevel
	if event.Err != nil {
		level = zapcore.WarnLevel
	}
	ce := l.log.Check(level, "filter rule evaluated")
	if ce == nil {
		return
	}
	fields := []zap.Field{
		zap.String("engine", string(event.Engine)),
		zap.String("expr", event.Expr),
		zap.Int("line", event.Line),
		zap.Bool("kept", event.Kept),
		zap.Duration("duration", event.Duration),
	}
	if event.Err != nil {
		fields = append(fields, zap.Error(event.Err))
	}
	ce.Write(fields...)
}
