// Package pager keeps the page and filter state of one list view and
// fetches pages through the scheduler port.
package pager

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/me/schedctl/internal/events"
	"github.com/me/schedctl/internal/logging"
	"github.com/me/schedctl/internal/schedclient"
	"github.com/me/schedctl/pkg/model"
)

// FetchFunc retrieves one page for a query.
type FetchFunc[T any] func(ctx context.Context, q model.Query) (model.Page[T], error)

// Options configures an Engine.
type Options struct {
	PageSize int
	Filters  model.Filters
	// Bus receives page-changed, filters-changed and status-changed events.
	Bus    *events.Bus
	Auth   schedclient.AuthHandler
	Logger *slog.Logger
}

// Engine holds the query and the last successfully fetched page of a
// listing. It never retries on its own.
type Engine[T any] struct {
	name   string
	fetch  FetchFunc[T]
	bus    *events.Bus
	auth   schedclient.AuthHandler
	logger *slog.Logger

	mu      sync.Mutex
	query   model.Query
	version uint64
	// started numbers loads in start order; applied is the number of the
	// load whose outcome is committed.
	started uint64
	applied uint64
	current model.Page[T]
	lastErr error
}

// New creates an engine around fetch. name identifies the listing in logs.
func New[T any](name string, fetch FetchFunc[T], opts Options) *Engine[T] {
	q := model.DefaultQuery()
	if opts.PageSize > 0 {
		q.Size = opts.PageSize
	}
	q.Filters = opts.Filters.Normalize()
	q.Clamp()
	return &Engine[T]{
		name:   name,
		fetch:  fetch,
		bus:    opts.Bus,
		auth:   opts.Auth,
		logger: logging.Component(opts.Logger, "pager").With("listing", name),
		query:  q,
		current: model.Page[T]{
			Items:   []T{},
			Number:  q.Page,
			Size:    q.Size,
			Filters: q.Filters,
		},
	}
}

// NewTaskEngine pages through all tasks.
func NewTaskEngine(port schedclient.Port, opts Options) *Engine[model.Task] {
	return New[model.Task]("tasks", port.ListTasks, opts)
}

// NewJobEngine pages through the jobs of one task.
func NewJobEngine(port schedclient.Port, taskID string, opts Options) *Engine[model.Job] {
	return New[model.Job]("jobs", func(ctx context.Context, q model.Query) (model.Page[model.Job], error) {
		return port.ListJobs(ctx, taskID, q)
	}, opts)
}

// Option adjusts the query before a Fetch.
type Option func(*model.Query)

// AtPage requests page n.
func AtPage(n int) Option {
	return func(q *model.Query) {
		q.Page = n
	}
}

// WithFilters replaces the filters.
func WithFilters(f model.Filters) Option {
	return func(q *model.Query) {
		q.Filters = f.Normalize()
	}
}

// Name returns the listing name.
func (e *Engine[T]) Name() string {
	return e.name
}

// Current returns the last committed page.
func (e *Engine[T]) Current() model.Page[T] {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Query returns a copy of the current query.
func (e *Engine[T]) Query() model.Query {
	e.mu.Lock()
	defer e.mu.Unlock()
	q := e.query
	q.Filters = q.Filters.Clone()
	return q
}

// LastError returns the error of the most recent committed fetch, or nil if
// it succeeded.
func (e *Engine[T]) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// Fetch applies opts to the query and fetches. On failure the previous page
// is returned unchanged together with the error.
func (e *Engine[T]) Fetch(ctx context.Context, opts ...Option) (model.Page[T], error) {
	if len(opts) > 0 {
		e.mu.Lock()
		for _, opt := range opts {
			opt(&e.query)
		}
		e.query.Clamp()
		e.version++
		e.mu.Unlock()
	}
	commit, err := e.Load(ctx)
	commit()
	return e.Current(), err
}

// Reload fetches page, or the current page when page is 0.
func (e *Engine[T]) Reload(ctx context.Context, page int) error {
	var opts []Option
	if page > 0 {
		opts = append(opts, AtPage(page))
	}
	_, err := e.Fetch(ctx, opts...)
	return err
}

// Load fetches with the query as it is now and returns a commit function
// that applies the outcome. Nothing changes until commit is called; commit
// is a no-op when the query changed in the meantime or when a load started
// later has already committed. commit is never nil.
func (e *Engine[T]) Load(ctx context.Context) (commit func(), err error) {
	e.mu.Lock()
	q := e.query
	q.Filters = q.Filters.Clone()
	version := e.version
	e.started++
	seq := e.started
	e.mu.Unlock()

	page, err := e.fetch(ctx, q)
	if err != nil && model.KindOf(err) == model.KindNotFound && q.Page > 1 {
		// Beyond the last page: show nothing rather than fail.
		e.logger.Debug("page out of range", "page", q.Page)
		page, err = e.outOfRange(q), nil
	}
	if err != nil {
		e.logger.Warn("fetch failed", "page", q.Page, "error", err)
		if model.IsAuth(err) && e.auth != nil {
			e.auth.HandleAuthError(err)
		}
		return e.committer(version, seq, func() { e.lastErr = err }), err
	}

	if page.Items == nil {
		page.Items = []T{}
	}
	if page.Empty() && q.Page > 1 {
		page.Number = q.Page
	}
	return e.committer(version, seq, func() {
		e.current = page
		e.lastErr = nil
	}), nil
}

func (e *Engine[T]) committer(version, seq uint64, apply func()) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			if e.version != version || seq < e.applied {
				e.logger.Debug("dropping superseded result", "load", seq, "applied", e.applied)
				return
			}
			e.applied = seq
			apply()
		})
	}
}

func (e *Engine[T]) outOfRange(q model.Query) model.Page[T] {
	e.mu.Lock()
	prev := e.current
	e.mu.Unlock()
	return model.Page[T]{
		Items:      []T{},
		Number:     q.Page,
		TotalPages: prev.TotalPages,
		TotalCount: prev.TotalCount,
		Size:       q.Size,
		Filters:    q.Filters.Normalize(),
	}
}

// SetPage changes the requested page without fetching.
func (e *Engine[T]) SetPage(n int) {
	e.mu.Lock()
	e.query.Page = n
	e.query.Clamp()
	n = e.query.Page
	e.version++
	e.mu.Unlock()
	e.bus.Publish(events.Event{Kind: events.PageChanged, Page: n})
}

// SetFilters replaces the filters and returns to the first page.
func (e *Engine[T]) SetFilters(f model.Filters) {
	e.mu.Lock()
	e.query.Filters = f.Normalize()
	e.query.Page = 1
	e.version++
	e.mu.Unlock()
	e.bus.Publish(events.Event{Kind: events.FiltersChanged, Page: 1})
}

// SetStatus constrains the listing to status, or lifts the constraint for
// "" and model.StatusAll, and returns to the first page.
func (e *Engine[T]) SetStatus(status string) {
	status = strings.ToLower(strings.TrimSpace(status))
	e.mu.Lock()
	f := e.query.Filters.Clone()
	if status == "" || status == model.StatusAll {
		delete(f, model.FilterStatus)
	} else {
		f[model.FilterStatus] = status
	}
	e.query.Filters = f.Normalize()
	e.query.Page = 1
	e.version++
	e.mu.Unlock()
	if status == "" {
		status = model.StatusAll
	}
	e.bus.Publish(events.Event{Kind: events.StatusChanged, Status: status, Page: 1})
}
