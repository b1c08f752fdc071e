package tracekit

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with tracekit-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithTrace adds the trace name to every record.
func (l *Logger) WithTrace(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("trace", name),
	}
}

// LogOpen logs opening a trace.
func (l *Logger) LogOpen(ctx context.Context, format string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "open failed",
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "trace opened",
			"format", format,
		)
	}
}

// LogScan logs a completed scan.
func (l *Logger) LogScan(ctx context.Context, lines int, words int64, distinct int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "scan failed",
			"lines", lines,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "scan completed",
			"lines", lines,
			"words", words,
			"distinct", distinct,
		)
	}
}

// LogReset logs a parser reset.
func (l *Logger) LogReset(ctx context.Context, lines int) {
	l.DebugContext(ctx, "parser reset",
		"lines", lines,
	)
}

// LogClose logs closing a parser.
func (l *Logger) LogClose(ctx context.Context, err error) {
	if err != nil {
		l.WarnContext(ctx, "close failed",
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "trace closed")
	}
}
