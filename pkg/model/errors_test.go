package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Error(t *testing.T) {
	err := &Error{Kind: KindNotFound, Op: "get task", Message: "task 'abc' not found"}
	want := "get task: not_found: task 'abc' not found"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestError_Is(t *testing.T) {
	err := fmt.Errorf("cancel: %w", &Error{Kind: KindState, Message: "no"})
	if !errors.Is(err, ErrState) {
		t.Error("errors.Is(err, ErrState) = false")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("errors.Is(err, ErrNotFound) = true")
	}
	if KindOf(err) != KindState {
		t.Errorf("KindOf = %q, want state", KindOf(err))
	}
	if KindOf(errors.New("plain")) != "" {
		t.Error("KindOf(plain) should be empty")
	}
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("create task", "invalid",
		FieldError{Field: "backend", Message: "required"},
		FieldError{Field: "uri", Message: "required"},
	)
	if err.Kind != KindValidation {
		t.Errorf("Kind = %q, want %q", err.Kind, KindValidation)
	}
	if len(err.Details) != 2 {
		t.Errorf("Details length = %d, want 2", len(err.Details))
	}
	want := "create task: validation: invalid; backend: required; uri: required"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"backend message", &Error{Kind: KindConflict, Message: "Task already exists"}, "Task already exists"},
		{"transport generic", NewTransportError("list tasks", errors.New("dial tcp: refused")), "the scheduler could not be reached"},
		{"unclassified", errors.New("boom"), "the scheduler could not be reached"},
		{"nil", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.want {
				t.Errorf("UserMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewStateError(t *testing.T) {
	err := NewStateError("reschedule task", "t1", StatusStarted, "reschedule")
	if !errors.Is(err, ErrState) {
		t.Fatal("expected state error")
	}
	want := "cannot reschedule task t1 while it is started"
	if err.Message != want {
		t.Errorf("Message = %q, want %q", err.Message, want)
	}
}

func TestIsAuth(t *testing.T) {
	if !IsAuth(fmt.Errorf("wrapped: %w", &Error{Kind: KindAuth})) {
		t.Error("IsAuth(auth) = false")
	}
	if IsAuth(&Error{Kind: KindTransport}) {
		t.Error("IsAuth(transport) = true")
	}
}
