package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

var levelVar = new(slog.LevelVar)

// L is the process-wide JSON logger. Its level is shared with every logger
// returned by New.
var L = New(os.Stdout)

// New returns a JSON logger writing to w at the global level.
func New(w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: levelVar}))
}

// Component returns L tagged with the component name.
func Component(name string) *slog.Logger {
	return L.With("component", name)
}

// SetLevel configures the global log level (debug, info, warn, error).
func SetLevel(lvl string) {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		levelVar.Set(slog.LevelDebug)
	case "warn", "warning":
		levelVar.Set(slog.LevelWarn)
	case "error":
		levelVar.Set(slog.LevelError)
	default:
		levelVar.Set(slog.LevelInfo)
	}
}

// Level reports the current global level.
func Level() slog.Level {
	return levelVar.Level()
}
