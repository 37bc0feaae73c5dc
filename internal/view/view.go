// Package view assembles the task and job list screens: each view owns its
// pager engine, its poll loop and its event bus, and tears them down on
// Close.
package view

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/me/schedctl/internal/events"
	"github.com/me/schedctl/internal/lifecycle"
	"github.com/me/schedctl/internal/logging"
	"github.com/me/schedctl/internal/notify"
	"github.com/me/schedctl/internal/pager"
	"github.com/me/schedctl/internal/poller"
	"github.com/me/schedctl/internal/schedclient"
	"github.com/me/schedctl/pkg/model"
)

// Options configures a view.
type Options struct {
	PageSize   int
	Filters    model.Filters
	Notifier   notify.Notifier
	Auth       schedclient.AuthHandler
	ConfirmTTL time.Duration
	Logger     *slog.Logger
}

// UpdateFunc receives the page after every poll or reload, with the error
// of that fetch. On error the page is the last good one.
type UpdateFunc[T any] func(page model.Page[T], err error)

type list[T any] struct {
	engine *pager.Engine[T]
	poller *poller.Controller
	bus    *events.Bus
	logger *slog.Logger

	mu      sync.Mutex
	updates []UpdateFunc[T]
	unsubs  []func()
}

func newList[T any](engine *pager.Engine[T], bus *events.Bus, logger *slog.Logger) *list[T] {
	l := &list[T]{
		engine: engine,
		bus:    bus,
		logger: logger,
	}
	l.poller = poller.New(engine.Name(), engine, logger)
	l.poller.Observe(func(r poller.Result) { l.emit(r.Err) })
	return l
}

// Open subscribes to the view's events and starts polling.
func (l *list[T]) Open(ctx context.Context, interval time.Duration) {
	l.mu.Lock()
	if l.unsubs == nil {
		trigger := func(events.Event) { l.poller.Trigger() }
		for _, k := range []events.Kind{events.PageChanged, events.StatusChanged, events.FiltersChanged} {
			l.unsubs = append(l.unsubs, l.bus.Subscribe(k, trigger))
		}
	}
	l.mu.Unlock()
	l.poller.Start(ctx, interval)
}

// Close stops polling and drops the event subscriptions. The view can be
// opened again.
func (l *list[T]) Close() {
	l.poller.Stop()
	l.mu.Lock()
	unsubs := l.unsubs
	l.unsubs = nil
	l.mu.Unlock()
	for _, u := range unsubs {
		u()
	}
}

// OnUpdate registers fn for every committed fetch.
func (l *list[T]) OnUpdate(fn UpdateFunc[T]) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.updates = append(l.updates, fn)
}

// Snapshot returns the current page.
func (l *list[T]) Snapshot() model.Page[T] {
	return l.engine.Current()
}

// LastError returns the error of the last fetch, if it failed.
func (l *list[T]) LastError() error {
	return l.engine.LastError()
}

// Query returns the view's current query.
func (l *list[T]) Query() model.Query {
	return l.engine.Query()
}

// Polling reports whether the view is refreshing.
func (l *list[T]) Polling() bool {
	return l.poller.Polling()
}

// SetPage moves to page n; an open view fetches it right away.
func (l *list[T]) SetPage(n int) {
	l.engine.SetPage(n)
}

// SetStatus filters by status (model.StatusAll for none); an open view
// fetches the first page right away.
func (l *list[T]) SetStatus(status string) {
	l.engine.SetStatus(status)
}

// SetFilters replaces the filters; an open view fetches the first page
// right away.
func (l *list[T]) SetFilters(f model.Filters) {
	l.engine.SetFilters(f)
}

// Refresh fetches the current page once, outside the poll schedule.
func (l *list[T]) Refresh(ctx context.Context) (model.Page[T], error) {
	return l.fetch(ctx, 0)
}

// Reload implements lifecycle.Refresher.
func (l *list[T]) Reload(ctx context.Context, page int) error {
	_, err := l.fetch(ctx, page)
	return err
}

func (l *list[T]) fetch(ctx context.Context, page int) (model.Page[T], error) {
	var opts []pager.Option
	if page > 0 {
		opts = append(opts, pager.AtPage(page))
	}
	p, err := l.engine.Fetch(ctx, opts...)
	l.emit(err)
	return p, err
}

func (l *list[T]) emit(err error) {
	l.mu.Lock()
	updates := append([]UpdateFunc[T](nil), l.updates...)
	l.mu.Unlock()
	page := l.engine.Current()
	for _, fn := range updates {
		fn(page, err)
	}
}

// TaskList is the paginated, filterable task overview.
type TaskList struct {
	*list[model.Task]
	orch *lifecycle.Orchestrator
}

// NewTaskList creates a closed task list view.
func NewTaskList(port schedclient.Port, opts Options) *TaskList {
	logger := logging.Component(opts.Logger, "view").With("view", "tasks")
	bus := events.NewBus()
	engine := pager.NewTaskEngine(port, pager.Options{
		PageSize: opts.PageSize,
		Filters:  opts.Filters,
		Bus:      bus,
		Auth:     opts.Auth,
		Logger:   opts.Logger,
	})
	v := &TaskList{list: newList(engine, bus, logger)}

	orchOpts := []lifecycle.Option{
		lifecycle.WithBus(bus),
		lifecycle.WithConfirmTTL(opts.ConfirmTTL),
	}
	if opts.Notifier != nil {
		orchOpts = append(orchOpts, lifecycle.WithNotifier(opts.Notifier))
	}
	if opts.Auth != nil {
		orchOpts = append(orchOpts, lifecycle.WithAuthHandler(opts.Auth))
	}
	v.orch = lifecycle.New(port, v.list, opts.Logger, orchOpts...)
	return v
}

// Orchestrator returns the action runner bound to this view.
func (v *TaskList) Orchestrator() *lifecycle.Orchestrator {
	return v.orch
}

// Summary counts the tasks on the current page by display bucket.
func (v *TaskList) Summary() model.TaskSummary {
	var s model.TaskSummary
	for _, t := range v.Snapshot().Items {
		s.Total++
		switch t.Status {
		case model.StatusFinished:
			s.Finished++
		case model.StatusFailed:
			s.Failed++
		case model.StatusCanceled:
			s.Canceled++
		default:
			s.Active++
		}
	}
	return s
}

// JobList is the paginated job history of one task.
type JobList struct {
	*list[model.Job]
	taskID string
}

// NewJobList creates a closed job list view for taskID.
func NewJobList(port schedclient.Port, taskID string, opts Options) *JobList {
	logger := logging.Component(opts.Logger, "view").With("view", "jobs", "task_id", taskID)
	bus := events.NewBus()
	engine := pager.NewJobEngine(port, taskID, pager.Options{
		PageSize: opts.PageSize,
		Filters:  opts.Filters,
		Bus:      bus,
		Auth:     opts.Auth,
		Logger:   opts.Logger,
	})
	return &JobList{list: newList(engine, bus, logger), taskID: taskID}
}

// TaskID returns the task whose jobs are listed.
func (v *JobList) TaskID() string {
	return v.taskID
}

// Settled reports whether every job on the current page is terminal.
func (v *JobList) Settled() bool {
	for _, j := range v.Snapshot().Items {
		if j.Status.IsActive() {
			return false
		}
	}
	return true
}
