package schedclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/me/schedctl/internal/logging"
	"github.com/me/schedctl/internal/metrics"
	"github.com/me/schedctl/pkg/model"
)

// APIPrefix is the path under which the scheduler API is mounted.
const APIPrefix = "/api/v1/scheduler"

// Config holds the HTTP adapter settings.
type Config struct {
	BaseURL string
	// Timeout bounds every request; exceeding it yields a transport error.
	Timeout time.Duration
	// RatePerSec paces outgoing requests. Zero disables pacing.
	RatePerSec float64
}

// Client is an HTTP implementation of Port.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	tokens     TokenSource
	auth       AuthHandler
	limiter    *rate.Limiter
}

var _ Port = (*Client)(nil)

// Option configures optional Client dependencies.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTokenSource sets where the session credential comes from.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) {
		c.tokens = ts
	}
}

// WithAuthHandler sets the session invalidation callback.
func WithAuthHandler(h AuthHandler) Option {
	return func(c *Client) {
		c.auth = h
	}
}

// NewClient creates a scheduler API client.
func NewClient(cfg Config, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/") + APIPrefix,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logging.Component(logger, "schedclient"),
	}
	if cfg.RatePerSec > 0 {
		burst := int(cfg.RatePerSec)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// request describes one API call. endpoint is the route template used as a
// metrics label.
type request struct {
	op       string
	method   string
	path     string
	endpoint string
	query    url.Values
	body     any
}

// do performs an HTTP request, classifies failures and decodes the reply
// into out when out is non-nil.
func (c *Client) do(ctx context.Context, r request, out any) error {
	err := c.send(ctx, r, out)
	if err != nil && model.IsAuth(err) && c.auth != nil {
		c.auth.HandleAuthError(err)
	}
	return err
}

func (c *Client) send(ctx context.Context, r request, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return model.NewTransportError(r.op, err)
		}
	}

	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	var bodyReader io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return &model.Error{Kind: model.KindInternal, Op: r.op, Err: fmt.Errorf("marshal request: %w", err)}
		}
		bodyReader = bytes.NewReader(data)
		c.logger.Debug("HTTP request body", "body", string(data))
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, bodyReader)
	if err != nil {
		return &model.Error{Kind: model.KindInternal, Op: r.op, Err: fmt.Errorf("create request: %w", err)}
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if tok := c.tokens.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	c.logger.Debug("HTTP request", "method", r.method, "url", target, "request_id", reqID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordHTTPRequest(r.method, r.endpoint, "error", time.Since(start))
		terr := model.NewTransportError(r.op, err)
		if IsTimeout(err) {
			terr.Message = "the scheduler did not respond in time"
		}
		return terr
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	metrics.RecordHTTPRequest(r.method, r.endpoint, strconv.Itoa(resp.StatusCode), time.Since(start))
	if err != nil {
		return model.NewTransportError(r.op, fmt.Errorf("read response: %w", err))
	}

	c.logger.Debug("HTTP response", "status", resp.StatusCode, "body", string(respBody), "request_id", reqID)

	if resp.StatusCode >= 400 {
		return classify(r.op, resp.StatusCode, respBody)
	}
	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &model.Error{
			Kind:       model.KindTransport,
			Op:         r.op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("parse response: %w", err),
		}
	}
	return nil
}

// unauthenticatedMarkers identify a 403 caused by a missing or expired
// session rather than a forbidden action.
var unauthenticatedMarkers = []string{
	"unauthenticated",
	"not_authenticated",
	"authentication credentials were not provided",
}

// classify maps an HTTP error reply onto the error taxonomy.
func classify(op string, status int, body []byte) *model.Error {
	msg, code, details := parseErrorBody(body)
	e := &model.Error{Op: op, Message: msg, StatusCode: status, Details: details}

	switch {
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		e.Kind = model.KindValidation
	case status == http.StatusUnauthorized:
		e.Kind = model.KindAuth
	case status == http.StatusForbidden:
		e.Kind = model.KindState
		lower := strings.ToLower(code + " " + msg)
		for _, m := range unauthenticatedMarkers {
			if strings.Contains(lower, m) {
				e.Kind = model.KindAuth
				break
			}
		}
	case status == http.StatusNotFound:
		e.Kind = model.KindNotFound
	case status == http.StatusConflict:
		e.Kind = model.KindConflict
		if code == "invalid_transition" {
			e.Kind = model.KindState
		}
	case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests ||
		status == http.StatusBadGateway || status == http.StatusServiceUnavailable ||
		status == http.StatusGatewayTimeout:
		e.Kind = model.KindTransport
	default:
		e.Kind = model.KindInternal
	}
	return e
}

// parseErrorBody extracts a message, an error code and field errors from the
// shapes the scheduler uses: {"message"|"detail", "code"}, a list of strings,
// or a field → messages map.
func parseErrorBody(body []byte) (msg, code string, details []model.FieldError) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return "", "", nil
	}

	var mr model.MessageResponse
	if err := json.Unmarshal(body, &mr); err == nil && (mr.Text() != "" || mr.Code != "") {
		msg, code = mr.Text(), mr.Code
	}

	var list []string
	if err := json.Unmarshal(body, &list); err == nil && len(list) > 0 {
		return strings.Join(list, " "), "", nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err == nil {
		for field, raw := range fields {
			switch field {
			case "message", "detail", "code", "uuid":
				continue
			}
			var msgs []string
			if json.Unmarshal(raw, &msgs) == nil {
				for _, m := range msgs {
					details = append(details, model.FieldError{Field: field, Message: m})
				}
				continue
			}
			var one string
			if json.Unmarshal(raw, &one) == nil {
				details = append(details, model.FieldError{Field: field, Message: one})
			}
		}
		return msg, code, details
	}

	if msg == "" && !json.Valid(body) {
		msg = string(body)
	}
	return msg, code, details
}

func taskPath(id string) string {
	return "/tasks/" + url.PathEscape(id)
}

func jobPath(taskID, jobID string) string {
	return taskPath(taskID) + "/jobs/" + url.PathEscape(jobID)
}

func queryValues(q model.Query) url.Values {
	v := url.Values{}
	for k, val := range q.Values() {
		v.Set(k, val)
	}
	return v
}

// ListTasks fetches one page of tasks.
func (c *Client) ListTasks(ctx context.Context, q model.Query) (model.Page[model.Task], error) {
	q.Clamp()
	var resp model.ListResponse[model.Task]
	err := c.do(ctx, request{
		op: "list tasks", method: http.MethodGet, path: "/tasks", endpoint: "/tasks",
		query: queryValues(q),
	}, &resp)
	if err != nil {
		return model.Page[model.Task]{}, err
	}
	return resp.ToPage(q), nil
}

// GetTask fetches a single task.
func (c *Client) GetTask(ctx context.Context, id string) (model.Task, error) {
	var task model.Task
	err := c.do(ctx, request{
		op: "get task", method: http.MethodGet, path: taskPath(id), endpoint: "/tasks/{id}",
	}, &task)
	return task, err
}

// ListJobs fetches one page of a task's jobs, most recent first.
func (c *Client) ListJobs(ctx context.Context, taskID string, q model.Query) (model.Page[model.Job], error) {
	q.Clamp()
	var resp model.ListResponse[model.Job]
	err := c.do(ctx, request{
		op: "list jobs", method: http.MethodGet, path: taskPath(taskID) + "/jobs", endpoint: "/tasks/{id}/jobs",
		query: queryValues(q),
	}, &resp)
	if err != nil {
		return model.Page[model.Job]{}, err
	}
	return resp.ToPage(q), nil
}

// GetJob fetches a single job, including its progress payload.
func (c *Client) GetJob(ctx context.Context, taskID, jobID string) (model.Job, error) {
	var job model.Job
	err := c.do(ctx, request{
		op: "get job", method: http.MethodGet, path: jobPath(taskID, jobID), endpoint: "/tasks/{id}/jobs/{job}",
	}, &job)
	return job, err
}

// GetJobLogs fetches the log lines of a job.
func (c *Client) GetJobLogs(ctx context.Context, taskID, jobID string) ([]string, error) {
	var resp model.LogsResponse
	err := c.do(ctx, request{
		op: "get job logs", method: http.MethodGet, path: jobPath(taskID, jobID) + "/logs", endpoint: "/tasks/{id}/jobs/{job}/logs",
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Logs == nil {
		resp.Logs = []string{}
	}
	return resp.Logs, nil
}

// CreateTask validates spec locally, submits it, and returns the created
// task as reported by the scheduler.
func (c *Client) CreateTask(ctx context.Context, spec model.TaskSpec) (model.Task, error) {
	if err := spec.Validate(); err != nil {
		return model.Task{}, err
	}
	spec = spec.WithDefaults()

	var resp json.RawMessage
	err := c.do(ctx, request{
		op: "create task", method: http.MethodPost, path: "/tasks", endpoint: "/tasks",
		body: spec.Request(),
	}, &resp)
	if err != nil {
		return model.Task{}, err
	}

	id := createdID(resp)
	if id != "" {
		task, err := c.GetTask(ctx, id)
		if err == nil {
			return task, nil
		}
		if model.IsAuth(err) {
			return model.Task{}, err
		}
		c.logger.Debug("fetch created task", "task_id", id, "error", err)
	}

	req := spec.Request()
	return model.Task{
		ID:          id,
		BackendType: spec.BackendType,
		Category:    spec.Category,
		BackendArgs: req.TaskArgs.BackendArgs,
		Status:      model.StatusScheduled,
		JobInterval: spec.JobInterval,
		MaxRetries:  *spec.MaxRetries,
		Burst:       spec.Burst,
	}, nil
}

// createdID finds the new task id in a create reply: the "uuid" field, or
// the quoted id in a "Task '<id>' created." message.
func createdID(body []byte) string {
	var mr model.MessageResponse
	if json.Unmarshal(body, &mr) == nil {
		if mr.UUID != "" {
			return mr.UUID
		}
		if id := quoted(mr.Text()); id != "" {
			return id
		}
	}
	var list []string
	if json.Unmarshal(body, &list) == nil && len(list) > 0 {
		return quoted(list[0])
	}
	return ""
}

func quoted(s string) string {
	start := strings.IndexByte(s, '\'')
	if start < 0 {
		return ""
	}
	end := strings.IndexByte(s[start+1:], '\'')
	if end < 0 {
		return ""
	}
	return s[start+1 : start+1+end]
}

// CancelTask asks the scheduler to stop scheduling a task.
func (c *Client) CancelTask(ctx context.Context, id string) error {
	return c.do(ctx, request{
		op: "cancel task", method: http.MethodPost, path: taskPath(id) + "/cancel", endpoint: "/tasks/{id}/cancel",
	}, nil)
}

// RescheduleTask asks the scheduler to resume a canceled task.
func (c *Client) RescheduleTask(ctx context.Context, id string) error {
	return c.do(ctx, request{
		op: "reschedule task", method: http.MethodPost, path: taskPath(id) + "/reschedule", endpoint: "/tasks/{id}/reschedule",
	}, nil)
}

// DeleteTask removes a task and its jobs.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, request{
		op: "delete task", method: http.MethodDelete, path: taskPath(id), endpoint: "/tasks/{id}",
	}, nil)
}

// IsTimeout reports whether err was caused by the transport timeout.
func IsTimeout(err error) bool {
	var ne interface{ Timeout() bool }
	return errors.As(err, &ne) && ne.Timeout()
}
