// Package logging builds the slog logger shared by the saga commands.
// Diagnostic output goes to stderr; user-facing text is printed by the
// commands themselves.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// VerboseEnv enables debug logging when set to a truthy value.
const VerboseEnv = "SAGA_VERBOSE"

// New returns a text logger writing to w. Verbose loggers emit Debug and up,
// otherwise only warnings and errors are shown.
func New(w io.Writer, verbose bool) *slog.Logger {
	if w == nil {
		w = io.Discard
	}
	level := slog.LevelWarn
	if verbose || VerboseFromEnv() {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		},
	})
	return slog.New(handler)
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func VerboseFromEnv() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(VerboseEnv))) {
	case "", "0", "false", "no", "off":
		return false
	default:
		return true
	}
}
