// Package lifecycle runs the mutating task actions: it checks the local
// preconditions, calls the scheduler, reports the outcome to the user and
// refreshes the affected listing once on success.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/me/schedctl/internal/events"
	"github.com/me/schedctl/internal/logging"
	"github.com/me/schedctl/internal/metrics"
	"github.com/me/schedctl/internal/notify"
	"github.com/me/schedctl/internal/schedclient"
	"github.com/me/schedctl/pkg/model"
)

// DefaultConfirmTTL is how long a delete confirmation stays valid.
const DefaultConfirmTTL = 30 * time.Second

// Action names a lifecycle action.
type Action string

const (
	ActionCreate     Action = "create"
	ActionCancel     Action = "cancel"
	ActionReschedule Action = "reschedule"
	ActionDelete     Action = "delete"
)

// Refresher re-fetches a listing. Page 0 means the current page.
// pager.Engine implements it.
type Refresher interface {
	Reload(ctx context.Context, page int) error
}

// Confirmation is a pending destructive action awaiting the user's OK.
type Confirmation struct {
	ID        string
	TaskID    string
	Action    Action
	ExpiresAt time.Time
}

// Orchestrator wraps every mutating Port call. It never changes task state
// locally; the follow-up reload is the only source of new state.
type Orchestrator struct {
	port      schedclient.Port
	refresher Refresher
	notifier  notify.Notifier
	auth      schedclient.AuthHandler
	bus       *events.Bus
	logger    *slog.Logger
	ttl       time.Duration
	now       func() time.Time

	mu      sync.Mutex
	pending *Confirmation
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithNotifier sets where success and error feedback goes.
func WithNotifier(n notify.Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

// WithAuthHandler sets the session collaborator that takes over auth
// failures.
func WithAuthHandler(h schedclient.AuthHandler) Option {
	return func(o *Orchestrator) { o.auth = h }
}

// WithBus publishes a task-mutated event after each successful action.
func WithBus(b *events.Bus) Option {
	return func(o *Orchestrator) { o.bus = b }
}

// WithConfirmTTL overrides DefaultConfirmTTL.
func WithConfirmTTL(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.ttl = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an orchestrator. refresher may be nil when no listing is
// shown.
func New(port schedclient.Port, refresher Refresher, logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		port:      port,
		refresher: refresher,
		notifier:  notify.Nop{},
		logger:    logging.Component(logger, "lifecycle"),
		ttl:       DefaultConfirmTTL,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Create validates spec, creates the task and reloads the first page.
func (o *Orchestrator) Create(ctx context.Context, spec model.TaskSpec) (model.Task, error) {
	if err := spec.Validate(); err != nil {
		o.reject(ctx, ActionCreate, "", err)
		return model.Task{}, err
	}
	task, err := o.port.CreateTask(ctx, spec)
	if err != nil {
		o.fail(ctx, ActionCreate, "", err)
		return model.Task{}, err
	}
	o.succeed(ctx, ActionCreate, task.ID, 1, fmt.Sprintf("Task '%s' created.", task.ID))
	return task, nil
}

// CreateMany creates each candidate definition in order. The listing is
// reloaded once at the end if at least one task was created. Failures are
// collected, one per candidate, into the returned error.
func (o *Orchestrator) CreateMany(ctx context.Context, specs []model.TaskSpec) ([]model.Task, error) {
	var created []model.Task
	var errs []error
	for i, spec := range specs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		err := spec.Validate()
		if err == nil {
			var task model.Task
			task, err = o.port.CreateTask(ctx, spec)
			if err == nil {
				created = append(created, task)
				metrics.RecordAction(string(ActionCreate), metrics.OutcomeSuccess)
				continue
			}
		}
		metrics.RecordAction(string(ActionCreate), outcomeOf(err))
		if model.IsAuth(err) {
			o.handOff(err)
			errs = append(errs, err)
			break
		}
		errs = append(errs, fmt.Errorf("candidate %d (%s): %w", i+1, spec.URI, err))
	}

	if len(created) > 0 {
		o.reload(ctx, 1)
		o.bus.Publish(events.Event{Kind: events.TaskMutated, Action: string(ActionCreate)})
	}
	err := errors.Join(errs...)
	level := notify.LevelSuccess
	if err != nil {
		level = notify.LevelError
	}
	if !model.IsAuth(err) {
		o.notify(ctx, notify.Notification{
			Level:   level,
			Title:   "Create tasks",
			Message: fmt.Sprintf("%d of %d tasks created.", len(created), len(specs)),
		})
	}
	o.logger.Info("bulk create finished", "created", len(created), "failed", len(errs))
	return created, err
}

// Cancel stops a task. A task in a terminal status is rejected locally; an
// unrecognized status counts as active and is sent to the scheduler.
func (o *Orchestrator) Cancel(ctx context.Context, task model.Task) error {
	if task.Status.Known() && !task.Status.CanTransitionTo(model.StatusCanceled) {
		err := model.NewStateError("cancel task", task.ID, task.Status, string(ActionCancel))
		o.reject(ctx, ActionCancel, task.ID, err)
		return err
	}
	if err := o.port.CancelTask(ctx, task.ID); err != nil {
		o.fail(ctx, ActionCancel, task.ID, err)
		return err
	}
	o.succeed(ctx, ActionCancel, task.ID, 0, fmt.Sprintf("Task '%s' canceled.", task.ID))
	return nil
}

// Reschedule resumes a canceled task. Any other status is rejected locally
// without calling the scheduler.
func (o *Orchestrator) Reschedule(ctx context.Context, task model.Task) error {
	if task.Status != model.StatusCanceled {
		err := model.NewStateError("reschedule task", task.ID, task.Status, string(ActionReschedule))
		o.reject(ctx, ActionReschedule, task.ID, err)
		return err
	}
	if err := o.port.RescheduleTask(ctx, task.ID); err != nil {
		o.fail(ctx, ActionReschedule, task.ID, err)
		return err
	}
	o.succeed(ctx, ActionReschedule, task.ID, 0, fmt.Sprintf("Task '%s' rescheduled.", task.ID))
	return nil
}

// RequestDelete records a pending delete for task and returns it. A newer
// request replaces an older one.
func (o *Orchestrator) RequestDelete(task model.Task) Confirmation {
	c := Confirmation{
		ID:        uuid.NewString(),
		TaskID:    task.ID,
		Action:    ActionDelete,
		ExpiresAt: o.now().Add(o.ttl),
	}
	o.mu.Lock()
	o.pending = &c
	o.mu.Unlock()
	o.logger.Debug("delete requested", "task_id", task.ID, "confirmation", c.ID)
	return c
}

// Pending returns the confirmation awaiting an answer, if any.
func (o *Orchestrator) Pending() (Confirmation, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pending == nil || !o.now().Before(o.pending.ExpiresAt) {
		return Confirmation{}, false
	}
	return *o.pending, true
}

// Dismiss drops the pending confirmation.
func (o *Orchestrator) Dismiss() {
	o.mu.Lock()
	o.pending = nil
	o.mu.Unlock()
}

// Confirm runs the pending action identified by id. An unknown or expired
// id is a state error and nothing is sent to the scheduler.
func (o *Orchestrator) Confirm(ctx context.Context, id string) error {
	o.mu.Lock()
	c := o.pending
	valid := c != nil && c.ID == id && o.now().Before(c.ExpiresAt)
	if c != nil && (valid || !o.now().Before(c.ExpiresAt)) {
		o.pending = nil
	}
	o.mu.Unlock()

	if !valid {
		err := &model.Error{
			Kind:    model.KindState,
			Op:      "confirm",
			Message: "no pending confirmation " + id + " (it may have expired)",
		}
		o.reject(ctx, ActionDelete, "", err)
		return err
	}

	if err := o.port.DeleteTask(ctx, c.TaskID); err != nil {
		o.fail(ctx, ActionDelete, c.TaskID, err)
		return err
	}
	o.succeed(ctx, ActionDelete, c.TaskID, 0, fmt.Sprintf("Task '%s' deleted.", c.TaskID))
	return nil
}

// succeed reloads exactly once and reports success.
func (o *Orchestrator) succeed(ctx context.Context, action Action, taskID string, page int, msg string) {
	metrics.RecordAction(string(action), metrics.OutcomeSuccess)
	o.logger.Info("task action succeeded", "action", action, "task_id", taskID)
	o.reload(ctx, page)
	o.bus.Publish(events.Event{Kind: events.TaskMutated, TaskID: taskID, Action: string(action)})
	o.notify(ctx, notify.Notification{
		Level:   notify.LevelSuccess,
		Title:   title(action),
		Message: msg,
		TaskID:  taskID,
	})
}

// reject reports a failed local precondition.
func (o *Orchestrator) reject(ctx context.Context, action Action, taskID string, err error) {
	metrics.RecordAction(string(action), metrics.OutcomeRejected)
	o.logger.Info("task action rejected", "action", action, "task_id", taskID, "error", err)
	o.notifyError(ctx, action, taskID, err)
}

// fail reports a scheduler-side failure. Auth failures go to the session
// collaborator instead of the user.
func (o *Orchestrator) fail(ctx context.Context, action Action, taskID string, err error) {
	metrics.RecordAction(string(action), outcomeOf(err))
	o.logger.Warn("task action failed", "action", action, "task_id", taskID, "error", err)
	if model.IsAuth(err) {
		o.handOff(err)
		return
	}
	o.notifyError(ctx, action, taskID, err)
}

func (o *Orchestrator) handOff(err error) {
	if o.auth != nil {
		o.auth.HandleAuthError(err)
	}
}

func (o *Orchestrator) notifyError(ctx context.Context, action Action, taskID string, err error) {
	o.notify(ctx, notify.Notification{
		Level:   notify.LevelError,
		Title:   title(action) + " failed",
		Message: model.UserMessage(err),
		TaskID:  taskID,
	})
}

func (o *Orchestrator) notify(ctx context.Context, n notify.Notification) {
	if n.At.IsZero() {
		n.At = o.now()
	}
	if err := o.notifier.Notify(ctx, n); err != nil {
		o.logger.Warn("notification failed", "title", n.Title, "error", err)
	}
}

func (o *Orchestrator) reload(ctx context.Context, page int) {
	if o.refresher == nil {
		return
	}
	if err := o.refresher.Reload(ctx, page); err != nil {
		o.logger.Warn("reload after action failed", "page", page, "error", err)
	}
}

func outcomeOf(err error) string {
	if model.KindOf(err) == model.KindValidation {
		return metrics.OutcomeRejected
	}
	return metrics.OutcomeError
}

func title(a Action) string {
	switch a {
	case ActionCreate:
		return "Create task"
	case ActionCancel:
		return "Cancel task"
	case ActionReschedule:
		return "Reschedule task"
	case ActionDelete:
		return "Delete task"
	}
	return string(a)
}
