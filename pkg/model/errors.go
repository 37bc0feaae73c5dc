package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies failures reported by the scheduler client.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindConflict   ErrorKind = "conflict"
	KindNotFound   ErrorKind = "not_found"
	KindState      ErrorKind = "state"
	KindAuth       ErrorKind = "auth"
	KindTransport  ErrorKind = "transport"
	KindInternal   ErrorKind = "internal"
)

// Sentinels for errors.Is. Any *Error with the same Kind matches.
var (
	ErrValidation = &Error{Kind: KindValidation}
	ErrConflict   = &Error{Kind: KindConflict}
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrState      = &Error{Kind: KindState}
	ErrAuth       = &Error{Kind: KindAuth}
	ErrTransport  = &Error{Kind: KindTransport}
	ErrInternal   = &Error{Kind: KindInternal}
)

// Error is a classified scheduler client failure.
type Error struct {
	Kind ErrorKind
	// Op is the operation that failed, e.g. "cancel task".
	Op string
	// Message is the backend-provided message, if any.
	Message    string
	StatusCode int
	Details    []FieldError
	Err        error
}

// FieldError describes a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	for _, d := range e.Details {
		if d.Field != "" {
			fmt.Fprintf(&b, "; %s: %s", d.Field, d.Message)
		} else {
			fmt.Fprintf(&b, "; %s", d.Message)
		}
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same Kind, so the package sentinels work with
// errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// UserMessage returns the backend-provided message when present, else a
// generic message for the kind of failure.
func (e *Error) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	switch e.Kind {
	case KindValidation:
		return "the request is invalid"
	case KindConflict:
		return "an equivalent task already exists"
	case KindNotFound:
		return "the task no longer exists"
	case KindState:
		return "the action is not allowed in the task's current status"
	case KindAuth:
		return "the session has expired"
	case KindTransport:
		return "the scheduler could not be reached"
	}
	return "the scheduler failed to process the request"
}

// KindOf returns the kind of err, or "" if err is not a classified error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsAuth reports whether err is an authentication failure.
func IsAuth(err error) bool {
	return errors.Is(err, ErrAuth)
}

// IsRecoverable reports whether polling or a retry may clear err without
// user intervention.
func IsRecoverable(err error) bool {
	switch KindOf(err) {
	case KindTransport, KindInternal, KindNotFound:
		return true
	}
	return false
}

// UserMessage extracts a user-facing message from any error.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.UserMessage()
	}
	if err == nil {
		return ""
	}
	return (&Error{Kind: KindTransport}).UserMessage()
}

// NewValidationError creates a validation error with field details.
func NewValidationError(op, msg string, details ...FieldError) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: msg, Details: details}
}

// NewNotFoundError creates a not-found error for the given resource.
func NewNotFoundError(op, resource, id string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Op:      op,
		Message: fmt.Sprintf("%s '%s' not found", resource, id),
	}
}

// NewStateError is returned when a lifecycle action is invalid for the
// current status.
func NewStateError(op string, taskID string, current Status, action string) *Error {
	return &Error{
		Kind:    KindState,
		Op:      op,
		Message: fmt.Sprintf("cannot %s task %s while it is %s", action, taskID, current),
	}
}

// NewTransportError wraps a network-level failure.
func NewTransportError(op string, err error) *Error {
	return &Error{Kind: KindTransport, Op: op, Err: err}
}
