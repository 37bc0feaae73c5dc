// Package poller drives the recurring refresh of a list view with a
// self-rescheduling timer: the next fetch is armed only after the previous
// one completed, so fetches never overlap.
package poller

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/me/schedctl/internal/logging"
	"github.com/me/schedctl/internal/metrics"
)

// DefaultInterval is the refresh period used when Start gets a non-positive
// interval.
const DefaultInterval = 30 * time.Second

// Loader fetches with the parameters current at call time. The returned
// commit applies the outcome and is only called if the result is still
// wanted. pager.Engine implements Loader.
type Loader interface {
	Load(ctx context.Context) (commit func(), err error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context) (func(), error)

func (f LoaderFunc) Load(ctx context.Context) (func(), error) { return f(ctx) }

// Result describes one completed, committed fetch.
type Result struct {
	Seq      uint64
	Err      error
	Duration time.Duration
	At       time.Time
}

type state int

const (
	stateIdle state = iota
	statePolling
	stateStopped
)

// Controller owns the poll loop of one view. Failed fetches are logged,
// counted and reported to observers; they never stop the loop.
type Controller struct {
	name   string
	loader Loader
	logger *slog.Logger

	mu        sync.Mutex
	state     state
	gen       uint64
	seq       uint64
	interval  time.Duration
	ctx       context.Context
	stopCtx   func() bool
	timer     *time.Timer
	timerSeq  uint64 // token of the armed timer
	inFlight  bool
	pending   bool
	observers []func(Result)
}

// New creates an idle controller. name labels logs and metrics.
func New(name string, loader Loader, logger *slog.Logger) *Controller {
	return &Controller{
		name:   name,
		loader: loader,
		logger: logging.Component(logger, "poller").With("view", name),
	}
}

// Observe registers fn to receive every committed result. fn runs on the
// poll goroutine and may call Trigger or Stop.
func (c *Controller) Observe(fn func(Result)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// Polling reports whether the loop is running.
func (c *Controller) Polling() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == statePolling
}

// Start fetches immediately and then every interval after each completion.
// It is a no-op while already polling. Cancelling ctx stops the loop.
func (c *Controller) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == statePolling {
		return
	}
	c.state = statePolling
	c.gen++
	c.interval = interval
	c.ctx = ctx
	c.stopCtx = context.AfterFunc(ctx, c.Stop)
	metrics.ActivePollers.Inc()
	c.logger.Debug("polling started", "interval", interval)

	if c.inFlight {
		// A fetch from before the last Stop is still running; go again as
		// soon as it returns.
		c.pending = true
		return
	}
	c.launch(c.gen)
}

// Stop cancels the pending timer. A fetch in flight completes but its result
// is discarded. Stop is idempotent and the controller can be started again.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != statePolling {
		return
	}
	c.state = stateStopped
	c.disarm()
	c.pending = false
	if c.stopCtx != nil {
		c.stopCtx()
		c.stopCtx = nil
	}
	metrics.ActivePollers.Dec()
	c.logger.Debug("polling stopped")
}

// Trigger requests a fetch now instead of at the next tick. While a fetch
// is in flight the request is coalesced into one follow-up fetch.
func (c *Controller) Trigger() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != statePolling {
		return
	}
	if c.inFlight {
		c.pending = true
		return
	}
	c.disarm()
	c.launch(c.gen)
}

// arm schedules the next fetch. The caller must hold c.mu.
func (c *Controller) arm(gen uint64) {
	c.timerSeq++
	token := c.timerSeq
	c.timer = time.AfterFunc(c.interval, func() { c.fire(gen, token) })
}

// disarm stops the armed timer. A timer that already fired is invalidated
// too, so its fire call finds a stale token. The caller must hold c.mu.
func (c *Controller) disarm() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.timerSeq++
}

// launch starts a fetch for generation gen. The caller must hold c.mu.
func (c *Controller) launch(gen uint64) {
	c.inFlight = true
	c.seq++
	go c.run(c.ctx, gen, c.seq)
}

func (c *Controller) fire(gen, token uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen || c.timerSeq != token || c.state != statePolling || c.inFlight {
		return
	}
	c.timer = nil
	c.launch(gen)
}

func (c *Controller) run(ctx context.Context, gen, seq uint64) {
	start := time.Now()
	commit, err := c.loader.Load(ctx)
	dur := time.Since(start)

	c.mu.Lock()
	if c.gen != gen || c.state != statePolling {
		c.inFlight = false
		metrics.RecordPollDiscarded(c.name)
		c.logger.Debug("discarding result of stopped poll", "seq", seq)
		if c.state == statePolling && c.pending {
			c.pending = false
			c.launch(c.gen)
		}
		c.mu.Unlock()
		return
	}
	if commit != nil {
		commit()
	}
	observers := slices.Clone(c.observers)
	c.mu.Unlock()

	metrics.RecordPoll(c.name, dur, err)
	if err != nil {
		c.logger.Warn("poll failed", "seq", seq, "duration", dur, "error", err)
	} else {
		c.logger.Debug("poll completed", "seq", seq, "duration", dur)
	}
	res := Result{Seq: seq, Err: err, Duration: dur, At: start.Add(dur)}
	for _, fn := range observers {
		fn(res)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight = false
	if c.gen != gen || c.state != statePolling {
		if c.state == statePolling && c.pending {
			c.pending = false
			c.launch(c.gen)
		}
		return
	}
	if c.pending {
		c.pending = false
		c.launch(gen)
		return
	}
	c.arm(gen)
}
