// Package logging builds the slog loggers used by schedctl. Diagnostics go
// to stderr so that tables printed on stdout stay pipeable; every package
// takes a *slog.Logger and tags it with Component.
package logging

import (
	"io"
	"log/slog"
	"strings"
)

// App is attached to JSON records so they can be told apart in a shared
// log stream.
const App = "schedctl"

// New returns a logger writing to w at the named level. format "json" emits
// one JSON object per record; anything else is slog's key=value text.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)).With("app", App)
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Component tags logger with the name of the package using it. A nil
// logger yields a discarding one.
func Component(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		logger = Discard()
	}
	return logger.With("component", name)
}

// ParseLevel maps a --log-level value onto a slog level. "warning" is
// accepted next to slog's own names (including offsets such as "debug+2");
// anything unrecognised is info.
func ParseLevel(s string) slog.Level {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "warning") {
		return slog.LevelWarn
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}
