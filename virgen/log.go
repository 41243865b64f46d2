package virgen

import (
	"log/slog"
	"os"
)

// NewLogger builds the driver's structured logger at cfg's configured
// level, writing to stderr so stdout stays reserved for emitted RTL.
func NewLogger(cfg Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
