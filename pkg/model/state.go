package model

import "strings"

// Status is the lifecycle status shared by Tasks and Jobs.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusEnqueued  Status = "enqueued"
	StatusStarted   Status = "started"
	StatusFinished  Status = "finished"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

// StatusAll is the filter sentinel meaning "no status constraint".
// It is never a valid Status of a Task or Job.
const StatusAll = "all"

// Statuses lists the known statuses in lifecycle order.
var Statuses = []Status{
	StatusScheduled,
	StatusEnqueued,
	StatusStarted,
	StatusFinished,
	StatusFailed,
	StatusCanceled,
}

// statusAliases maps names used by some scheduler versions onto the canonical set.
var statusAliases = map[string]Status{
	"new":       StatusScheduled,
	"running":   StatusStarted,
	"completed": StatusFinished,
	"recovery":  StatusEnqueued,
	"cancelled": StatusCanceled,
}

// ParseStatus normalizes a backend status string. Unknown values are kept
// verbatim (lower-cased) so they can still be displayed.
func ParseStatus(s string) Status {
	v := strings.ToLower(strings.TrimSpace(s))
	if alias, ok := statusAliases[v]; ok {
		return alias
	}
	return Status(v)
}

// UnmarshalText implements encoding.TextUnmarshaler so JSON decoding
// normalizes aliases.
func (s *Status) UnmarshalText(b []byte) error {
	*s = ParseStatus(string(b))
	return nil
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// Known reports whether s is one of the enumerated statuses.
func (s Status) Known() bool {
	for _, k := range Statuses {
		if s == k {
			return true
		}
	}
	return false
}

// IsTerminal returns true for finished, failed and canceled.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusFinished, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// IsActive returns true for scheduled, enqueued and started, and for any
// status the client does not recognize: an unknown status keeps polling.
func (s Status) IsActive() bool {
	return !s.IsTerminal()
}

// IsTerminal is the function form of Status.IsTerminal.
func IsTerminal(s Status) bool { return s.IsTerminal() }

// IsActive is the function form of Status.IsActive.
func IsActive(s Status) bool { return s.IsActive() }

// rank orders statuses along the job progression. Terminal statuses share
// the highest rank.
func (s Status) rank() int {
	switch s {
	case StatusScheduled:
		return 0
	case StatusEnqueued:
		return 1
	case StatusStarted:
		return 2
	case StatusFinished, StatusFailed, StatusCanceled:
		return 3
	}
	return -1
}

// CanTransitionTo returns true if a job may move from s to next. Progress is
// strictly forward; terminal statuses are final. Cancellation is allowed from
// any non-terminal status.
func (s Status) CanTransitionTo(next Status) bool {
	if s.IsTerminal() || !s.Known() || !next.Known() {
		return false
	}
	if next == StatusCanceled {
		return true
	}
	return next.rank() > s.rank()
}
