// Package logger wraps zap's sugared logger with request and trace
// correlation helpers.
package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the service-wide structured logger.
type Logger struct {
	*zap.SugaredLogger
}

// New builds a logger. Production gets JSON output, anything else the
// colored console encoder. Unknown levels fall back to info.
func New(level, environment string) *Logger {
	var config zap.Config
	if environment == "production" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		parsed = zapcore.InfoLevel
	}
	config.Level = zap.NewAtomicLevelAt(parsed)

	zapLog, err := config.Build()
	if err != nil {
		panic(err)
	}

	return &Logger{SugaredLogger: zapLog.Sugar()}
}

// NewLogger wraps an existing zap.Logger. Tests use this with zaptest
// to capture output.
func NewLogger(zapLog *zap.Logger) *Logger {
	return &Logger{SugaredLogger: zapLog.Sugar()}
}

// Fatal logs msg with structured fields and exits.
func (l *Logger) Fatal(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Fatalw(msg, keysAndValues...)
}

// ForRequest returns a child logger stamped with the request identity.
func (l *Logger) ForRequest(requestID, method, path string) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(
		"request_id", requestID,
		"method", method,
		"path", path,
	)}
}

// WithContext returns a child logger carrying the trace and span IDs
// from ctx so log lines join up with traces. Without an active span it
// returns the logger unchanged.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return l
	}

	return &Logger{SugaredLogger: l.SugaredLogger.With(
		"trace_id", sc.TraceID().String(),
		"span_id", sc.SpanID().String(),
	)}
}

// Zap returns the unsugared logger for callers that want typed fields.
func (l *Logger) Zap() *zap.Logger {
	return l.SugaredLogger.Desugar()
}
