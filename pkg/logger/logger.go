// Package logger provides structured logging for the launcher and its install engine.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// LogFilePermissions defines the file permissions for log files (owner read/write only).
const LogFilePermissions = 0o600

// Logger provides structured logging interface.
type Logger interface {
	// Debug logs debug-level messages with optional key-value pairs.
	Debug(msg string, keysAndValues ...any)

	// Info logs info-level messages with optional key-value pairs.
	Info(msg string, keysAndValues ...any)

	// Error logs error-level messages with optional key-value pairs.
	Error(msg string, keysAndValues ...any)

	// With returns a new logger with additional key-value pairs.
	With(keysAndValues ...any) Logger
}

// SlogAdapter implements Logger on top of a slog.Logger using CustomHandler.
type SlogAdapter struct {
	log     *slog.Logger
	handler *CustomHandler
}

// NewFileLogger opens (or creates) the log file at filePath and returns a logger
// writing to it. Missing parent directories are created.
func NewFileLogger(filePath string, debugMode, traceMode bool) (*SlogAdapter, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	handler, err := NewFileHandler(filePath, LevelFromFlags(debugMode, traceMode))
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return &SlogAdapter{log: slog.New(handler), handler: handler}, nil
}

// NewFileLoggerWithWriter creates a logger writing to w.
func NewFileLoggerWithWriter(w io.Writer, debugMode, traceMode bool) *SlogAdapter {
	handler := NewWriterHandler(w, LevelFromFlags(debugMode, traceMode))

	return &SlogAdapter{log: slog.New(handler), handler: handler}
}

// Debug logs debug-level messages.
func (a *SlogAdapter) Debug(msg string, keysAndValues ...any) {
	a.log.Log(context.Background(), slog.LevelDebug, msg, keysAndValues...)
}

// Info logs info-level messages.
func (a *SlogAdapter) Info(msg string, keysAndValues ...any) {
	a.log.Log(context.Background(), slog.LevelInfo, msg, keysAndValues...)
}

// Error logs error-level messages.
func (a *SlogAdapter) Error(msg string, keysAndValues ...any) {
	a.log.Log(context.Background(), slog.LevelError, msg, keysAndValues...)
}

// With returns a new logger with additional base key-value pairs.
//
//nolint:ireturn // With is intended to return an interface for chaining
func (a *SlogAdapter) With(keysAndValues ...any) Logger {
	return &SlogAdapter{log: a.log.With(keysAndValues...), handler: a.handler}
}

// Close closes the underlying log file, if any.
func (a *SlogAdapter) Close() error {
	return a.handler.Close()
}

// NoOpLogger is a logger that does nothing.
type NoOpLogger struct{}

// NewNoOpLogger creates a new NoOpLogger.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

// Debug does nothing.
func (*NoOpLogger) Debug(string, ...any) {}

// Info does nothing.
func (*NoOpLogger) Info(string, ...any) {}

// Error does nothing.
func (*NoOpLogger) Error(string, ...any) {}

// With returns the same NoOpLogger.
//
//nolint:ireturn // With is intended to return an interface for chaining
func (n *NoOpLogger) With(...any) Logger {
	return n
}
