// Package obsv is the server's ambient observability stack: structured
// logging, Prometheus metrics, and a correlation-hash helper so canonical
// messages and signatures never hit the log stream in the clear.
package obsv

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds a JSON structured logger at the given level name
// ("debug", "info", "warn", "error"; unrecognized values fall back to
// info), writing to stdout.
func NewLogger(levelName string) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(levelName) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}
