// Package notify delivers user-facing success and error feedback for
// lifecycle actions.
package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Level is the severity of a notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// Notification is one piece of feedback shown to the user.
type Notification struct {
	Level   Level
	Title   string
	Message string
	TaskID  string
	At      time.Time
}

// Notifier defines the interface for sending notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Multi fans a notification out to several notifiers. Every notifier is
// attempted; the first error is returned.
type Multi struct {
	notifiers []Notifier
}

func NewMulti(notifiers ...Notifier) *Multi {
	return &Multi{notifiers: notifiers}
}

func (m *Multi) Notify(ctx context.Context, n Notification) error {
	var first error
	for _, nt := range m.notifiers {
		if err := nt.Notify(ctx, n); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Nop does nothing.
type Nop struct{}

func (Nop) Notify(context.Context, Notification) error { return nil }

// Log writes notifications to a structured logger.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Notify(ctx context.Context, n Notification) error {
	if l.Logger == nil {
		return nil
	}
	level := slog.LevelInfo
	if n.Level == LevelError {
		level = slog.LevelWarn
	}
	l.Logger.Log(ctx, level, n.Title, "level", string(n.Level), "message", n.Message, "task_id", n.TaskID)
	return nil
}

// Writer prints one line per notification, for terminal output.
type Writer struct {
	W io.Writer
}

func (w Writer) Notify(_ context.Context, n Notification) error {
	prefix := "i"
	switch n.Level {
	case LevelSuccess:
		prefix = "✓"
	case LevelError:
		prefix = "✗"
	}
	line := fmt.Sprintf("%s %s", prefix, n.Title)
	if n.Message != "" {
		line += ": " + n.Message
	}
	_, err := fmt.Fprintln(w.W, line)
	return err
}

// DefaultHistorySize bounds History.
const DefaultHistorySize = 300

// History keeps the most recent notifications in memory.
type History struct {
	mu    sync.Mutex
	limit int
	items []Notification
}

// NewHistory creates a history holding at most limit entries
// (DefaultHistorySize when limit <= 0).
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistorySize
	}
	return &History{limit: limit}
}

func (h *History) Notify(_ context.Context, n Notification) error {
	if n.At.IsZero() {
		n.At = time.Now()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items = append(h.items, n)
	if len(h.items) > h.limit {
		h.items = h.items[len(h.items)-h.limit:]
	}
	return nil
}

// Items returns a copy of the stored notifications, oldest first.
func (h *History) Items() []Notification {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Notification(nil), h.items...)
}

// Last returns the most recent notification.
func (h *History) Last() (Notification, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.items) == 0 {
		return Notification{}, false
	}
	return h.items[len(h.items)-1], true
}

// Count returns how many stored notifications have the given level.
func (h *History) Count(level Level) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, it := range h.items {
		if it.Level == level {
			n++
		}
	}
	return n
}
