// Package logging is a thin structured-logging layer over log/slog so the
// rest of the service depends on one small surface and tests can swap in a
// silent logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger wraps *slog.Logger.
type Logger struct {
	internal *slog.Logger
}

// New builds a text-handler logger writing to stdout at the given level
// ("debug", "info", "warn", "error"; anything else means info).
func New(level string) *Logger {
	return &Logger{internal: slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(level),
	}))}
}

// Discard returns a logger that drops everything. Used in tests.
func Discard() *Logger {
	return &Logger{internal: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// With returns a logger carrying additional key/value pairs.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{internal: l.internal.With(args...)}
}

func (l *Logger) Debug(msg string, args ...any) { l.internal.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.internal.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.internal.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.internal.Error(msg, args...) }

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
