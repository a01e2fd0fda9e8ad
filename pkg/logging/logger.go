// Package logging provides the structured logger used across offload.
//
// Engine components take a Logger that may be nil. Component turns it into a
// usable logger tagged with the component name.
package logging

import (
	"context"
)

// Level represents log severity
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// Fields represents structured log fields
type Fields map[string]interface{}

// Logger defines the interface for logging
type Logger interface {
	// Debug logs a debug message
	Debug(ctx context.Context, msg string, fields Fields)

	// Info logs an info message
	Info(ctx context.Context, msg string, fields Fields)

	// Warn logs a warning message
	Warn(ctx context.Context, msg string, fields Fields)

	// Error logs an error message
	Error(ctx context.Context, msg string, err error, fields Fields)

	// WithFields returns a logger with additional fields
	WithFields(fields Fields) Logger

	// Close flushes and closes the logger
	Close() error
}

// Component returns l tagged with component=name, or a NullLogger when l is nil
func Component(l Logger, name string) Logger {
	if l == nil {
		return NewNullLogger()
	}
	return l.WithFields(Fields{"component": name})
}

// NullLogger discards everything. It backs disabled logging.
type NullLogger struct{}

// NewNullLogger creates a new null logger
func NewNullLogger() *NullLogger {
	return &NullLogger{}
}

func (l *NullLogger) Debug(context.Context, string, Fields) {}
func (l *NullLogger) Info(context.Context, string, Fields) {}
func (l *NullLogger) Warn(context.Context, string, Fields) {}
func (l *NullLogger) Error(context.Context, string, error, Fields) {}
func (l *NullLogger) WithFields(Fields) Logger { return l }
func (l *NullLogger) Close() error { return nil }
