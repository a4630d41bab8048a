// Package obslog installs the default slog logger used across this
// repository, matching the log/slog idiom the teacher's bufferpool
// package already uses (package-prefixed debug messages through the
// default logger rather than a per-package logger instance).
package obslog

import (
	"log/slog"
	"os"
	"strings"
)

// Setup parses level ("debug"|"info"|"warn"|"error", case-insensitive)
// and installs a slog.TextHandler writing to stderr as the default
// logger, returning it for callers that want to hold a reference.
func Setup(level string) *slog.Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
