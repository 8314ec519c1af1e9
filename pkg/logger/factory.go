package logger

import (
	"log/slog"
	"os"
	"strings"
)

// New creates a JSON-formatted logger at the given level with optional
// context extractors.
func New(level slog.Level, extractors ...ContextExtractor) *slog.Logger {
	log := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(NewLogHandlerDecorator(log, extractors...))
}

// ParseLevel maps a LOG_LEVEL env value to a slog.Level, defaulting to Info
// for anything unrecognized.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
