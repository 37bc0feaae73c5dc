// Package schedclient defines the port through which the client reads and
// mutates scheduler state, and its HTTP adapter.
package schedclient

import (
	"context"

	"github.com/me/schedctl/pkg/model"
)

// Port is the capability set the lifecycle client needs from the scheduler.
//
// ListTasks, GetTask, ListJobs, GetJob and GetJobLogs are pure reads.
// CreateTask, CancelTask, RescheduleTask and DeleteTask are not idempotent and
// must never be retried blindly. Every method may fail with a transport or
// auth error (see model.ErrorKind).
type Port interface {
	ListTasks(ctx context.Context, q model.Query) (model.Page[model.Task], error)
	GetTask(ctx context.Context, id string) (model.Task, error)

	ListJobs(ctx context.Context, taskID string, q model.Query) (model.Page[model.Job], error)
	GetJob(ctx context.Context, taskID, jobID string) (model.Job, error)
	GetJobLogs(ctx context.Context, taskID, jobID string) ([]string, error)

	// CreateTask fails with a validation error when backend type, category
	// or URI is missing and with a conflict error when an equivalent task
	// already exists.
	CreateTask(ctx context.Context, spec model.TaskSpec) (model.Task, error)
	// CancelTask, RescheduleTask and DeleteTask fail with a not-found error
	// for unknown ids and a state error for transitions the task's current
	// status does not allow.
	CancelTask(ctx context.Context, id string) error
	RescheduleTask(ctx context.Context, id string) error
	DeleteTask(ctx context.Context, id string) error
}

// TokenSource supplies the session credential attached to each request.
type TokenSource interface {
	Token() string
}

// AuthHandler is told about authentication failures so it can invalidate
// the session.
type AuthHandler interface {
	HandleAuthError(err error)
}

// StaticToken is a TokenSource with a fixed value.
type StaticToken string

func (t StaticToken) Token() string { return string(t) }
