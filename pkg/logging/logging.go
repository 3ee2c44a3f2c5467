// Package logging provides the structured logger used across claimdeck
// components. Output is JSON on stdout with a component field, so dashboard
// deployments can route slice, realtime, and bulk-op logs independently.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Logger is a structured logger scoped to one component.
type Logger struct {
	*slog.Logger
}

// New creates a logger for the named component.
func New(component string, level slog.Level) *Logger {
	return NewWithWriter(os.Stdout, component, level)
}

// NewWithWriter creates a logger writing to w. Tests pass a buffer here.
func NewWithWriter(w io.Writer, component string, level slog.Level) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	logger := slog.New(handler).With(
		slog.String("component", component),
		slog.String("system", "claimdeck"),
	)
	return &Logger{Logger: logger}
}

// Discard returns a logger that drops everything. Used in tests.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// WithTable returns a logger with the entity table attached.
func (l *Logger) WithTable(table string) *Logger {
	return &Logger{Logger: l.Logger.With(slog.String("table", table))}
}

// WithOperation returns a logger with a user-visible operation name attached
// (submit_claim, bulk_delete, ...).
func (l *Logger) WithOperation(op string) *Logger {
	return &Logger{Logger: l.Logger.With(slog.String("operation", op))}
}
