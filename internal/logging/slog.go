package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// #region init
// Init sets the process-wide default slog logger on stderr. JSON output is
// meant for log shippers, text for a terminal.
func Init(json bool, level slog.Level) {
	slog.SetDefault(slog.New(NewHandler(os.Stderr, json, level)))
}

// NewHandler builds the handler Init installs, writing to w.
func NewHandler(w io.Writer, json bool, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if json {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// ParseLevel converts "debug", "info", "warn" or "error" to a slog.Level.
// Unknown strings default to LevelInfo.
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
// #endregion init
