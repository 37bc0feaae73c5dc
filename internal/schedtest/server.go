// Package schedtest is an in-memory scheduler backend speaking the
// scheduler's HTTP API, for exercising the client in tests.
package schedtest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/me/schedctl/pkg/model"
)

const prefix = "/api/v1/scheduler"

// Request is a recorded incoming request. Path excludes the API prefix.
type Request struct {
	Method    string
	Path      string
	Query     url.Values
	RequestID string
	Auth      string
	Body      []byte
}

type fault struct {
	method     string
	pathPrefix string
	status     int
	body       any
}

type taskRecord struct {
	task model.Task
	jobs []*model.Job // ascending job number
}

// Server is the fake scheduler.
type Server struct {
	router chi.Router
	now    func() time.Time

	mu       sync.Mutex
	token    string
	order    []string
	tasks    map[string]*taskRecord
	logs     map[string][]string
	requests []Request
	faults   []fault
}

// New creates an empty fake scheduler.
func New() *Server {
	s := &Server{
		router: chi.NewRouter(),
		now:    func() time.Time { return time.Now().UTC().Truncate(time.Second) },
		tasks:  make(map[string]*taskRecord),
		logs:   make(map[string][]string),
	}
	s.routes()
	return s
}

// Start serves the fake on an httptest server closed at test cleanup and
// returns its base URL.
func (s *Server) Start(t testing.TB) string {
	t.Helper()
	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)
	return ts.URL
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(s.recordMiddleware)
	r.Use(s.authMiddleware)
	r.Use(s.faultMiddleware)

	r.Route(prefix+"/tasks", func(r chi.Router) {
		r.Get("/", s.handleListTasks)
		r.Post("/", s.handleCreateTask)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetTask)
			r.Delete("/", s.handleDeleteTask)
			r.Post("/cancel", s.handleCancelTask)
			r.Post("/reschedule", s.handleRescheduleTask)
			r.Route("/jobs", func(r chi.Router) {
				r.Get("/", s.handleListJobs)
				r.Get("/{jid}", s.handleGetJob)
				r.Get("/{jid}/logs", s.handleGetJobLogs)
			})
		})
	})
}

// RequireToken makes every request without "Bearer <token>" fail with the
// scheduler's unauthenticated 403.
func (s *Server) RequireToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// FailNext makes the next request matching method and path prefix (without
// the API prefix) fail with status and body. Status 0 drops the connection.
func (s *Server) FailNext(method, pathPrefix string, status int, body any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = append(s.faults, fault{method: method, pathPrefix: pathPrefix, status: status, body: body})
}

// Requests returns a copy of the recorded requests.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.requests)
}

// Count returns how many recorded requests match method and exact path.
func (s *Server) Count(method, path string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == method && strings.TrimSuffix(r.Path, "/") == strings.TrimSuffix(path, "/") {
			n++
		}
	}
	return n
}

// ResetRequests clears the request log.
func (s *Server) ResetRequests() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
}

// AddTask stores a task as-is (its RecentJobs are ignored) and returns its id.
func (s *Server) AddTask(t model.Task) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = model.StatusScheduled
	}
	t.RecentJobs = nil
	s.tasks[t.ID] = &taskRecord{task: t}
	s.order = append(s.order, t.ID)
	return t.ID
}

// AddJob appends a job to a task, numbering it and mirroring its status onto
// the task.
func (s *Server) AddJob(taskID string, status model.Status) model.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.tasks[taskID]
	if rec == nil {
		panic(fmt.Sprintf("schedtest: unknown task %s", taskID))
	}
	return *s.appendJob(rec, status)
}

// SetLogs sets the log lines of a job.
func (s *Server) SetLogs(jobID string, lines ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[jobID] = lines
}

// Advance moves a task's current job to status, as a worker would.
func (s *Server) Advance(taskID string, status model.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.tasks[taskID]
	if rec == nil || len(rec.jobs) == 0 {
		return
	}
	s.setJobStatus(rec, rec.jobs[len(rec.jobs)-1], status)
}

// Task returns the stored task as the API would render it.
func (s *Server) Task(id string) (model.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.tasks[id]
	if !ok {
		return model.Task{}, false
	}
	return s.render(rec), true
}

// TaskCount returns the number of stored tasks.
func (s *Server) TaskCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *Server) appendJob(rec *taskRecord, status model.Status) *model.Job {
	now := s.now()
	job := &model.Job{JobSummary: model.JobSummary{
		ID:          uuid.NewString(),
		JobNumber:   len(rec.jobs) + 1,
		ScheduledAt: &now,
		Queue:       "default",
	}}
	rec.jobs = append(rec.jobs, job)
	s.setJobStatus(rec, job, status)
	return job
}

func (s *Server) setJobStatus(rec *taskRecord, job *model.Job, status model.Status) {
	now := s.now()
	job.Status = status
	if status == model.StatusStarted && job.StartedAt == nil {
		job.StartedAt = &now
	}
	if status.IsTerminal() {
		job.FinishedAt = &now
		if status == model.StatusFinished {
			job.Progress = map[string]any{"summary": map[string]any{"fetched": 0}}
		}
	} else {
		job.FinishedAt = nil
	}
	if status == model.StatusFinished || status == model.StatusFailed {
		rec.task.Runs++
		rec.task.LastRun = &now
	}
	if status == model.StatusFailed {
		rec.task.Failures++
	}
	if rec.jobs[len(rec.jobs)-1] == job {
		rec.task.Status = status
		rec.task.ScheduledAt = job.ScheduledAt
	}
}

// render returns the API view of a task with its most recent jobs.
func (s *Server) render(rec *taskRecord) model.Task {
	t := rec.task
	t.RecentJobs = nil
	for i := len(rec.jobs) - 1; i >= 0 && len(t.RecentJobs) < model.MaxRecentJobs; i-- {
		t.RecentJobs = append(t.RecentJobs, rec.jobs[i].JobSummary)
	}
	return t
}
