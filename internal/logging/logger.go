// Package logging provides the module-prefixed key/value logger used across
// the toolkit. Output goes to stderr because stdout carries the MCP protocol.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	mu      sync.RWMutex
	level                = new(slog.LevelVar)
	handler slog.Handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
)

// Logger provides structured logging for one component
type Logger struct {
	prefix string
	logger *slog.Logger
}

// NewLogger creates a new logger with a prefix
func NewLogger(prefix string) *Logger {
	mu.RLock()
	h := handler
	mu.RUnlock()
	return &Logger{
		prefix: prefix,
		logger: slog.New(h).With("module", prefix),
	}
}

// SetLevel changes the global level. Unknown names fall back to info.
func SetLevel(name string) {
	level.Set(ParseLevel(name))
}

// ParseLevel maps debug/info/warn/error to a slog level.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetOutput redirects every logger created afterwards. Tests use it to
// capture output.
func SetOutput(w io.Writer) {
	mu.Lock()
	handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	mu.Unlock()
}

// With returns a child logger carrying extra key/value pairs.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{prefix: l.prefix, logger: l.logger.With(keysAndValues...)}
}

// Info logs an informational message with key-value pairs
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg, keysAndValues...)
}

// Warn logs a warning message with key-value pairs
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn(msg, keysAndValues...)
}

// Error logs an error message with key-value pairs
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, keysAndValues...)
}

// Debug logs a debug message with key-value pairs
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}
