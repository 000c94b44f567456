package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// -----------------------------------------------------------------------------

// Logger provides structured logging functionality
type Logger struct {
	name   string
	logger *zap.Logger
}

// -----------------------------------------------------------------------------

// NewLogger creates a new Logger instance. level is one of DEBUG, INFO,
// WARNING, ERROR; DEBUG also switches to the human readable console encoder.
func NewLogger(level string, name string) *Logger {
	level = strings.ToUpper(level)

	var cfg zap.Config
	if level == "DEBUG" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "time"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	cfg.DisableStacktrace = true

	z, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: falling back to nop logger: %v\n", err)
		z = zap.NewNop()
	}

	return &Logger{name: name, logger: z.Named(name)}
}

// NewNop returns a logger that discards everything. Used by tests.
func NewNop() *Logger {
	return &Logger{name: "nop", logger: zap.NewNop()}
}

// FromZap wraps an existing zap logger.
func FromZap(z *zap.Logger, name string) *Logger {
	return &Logger{name: name, logger: z.Named(name)}
}

// -----------------------------------------------------------------------------

func parseLevel(level string) zapcore.Level {
	switch level {
	case "DEBUG":
		return zapcore.DebugLevel
	case "WARNING", "WARN":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// -----------------------------------------------------------------------------

// Named derives a child logger for a component.
func (l *Logger) Named(name string) *Logger {
	return &Logger{name: name, logger: l.logger.Named(name)}
}

// With returns a logger that adds fields to every record.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{name: l.name, logger: l.logger.With(fields...)}
}

// Zap exposes the underlying zap logger for libraries that want one.
func (l *Logger) Zap() *zap.Logger {
	return l.logger
}

// -----------------------------------------------------------------------------

// Debug logs diagnostic messages
func (l *Logger) Debug(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// -----------------------------------------------------------------------------

// Warning logs recoverable problems
func (l *Logger) Warning(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

// -----------------------------------------------------------------------------

// Info logs informational messages
func (l *Logger) Info(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

// -----------------------------------------------------------------------------

// Error logs error messages
func (l *Logger) Error(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

// -----------------------------------------------------------------------------

// Event logs a structured warning event keyed by name.
func (l *Logger) Event(event string, fields ...zap.Field) {
	l.logger.Warn(event, append([]zap.Field{zap.String("event", event)}, fields...)...)
}

// -----------------------------------------------------------------------------

// Critical logs critical errors and exits the application
func (l *Logger) Critical(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...), zap.String("severity", "CRITICAL"))
	_ = l.logger.Sync()
	os.Exit(1)
}

// -----------------------------------------------------------------------------

// Sync flushes buffered records.
func (l *Logger) Sync() {
	_ = l.logger.Sync()
}
