package schedtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/me/schedctl/pkg/model"
)

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, prefix+path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, prefix+path, nil)
	}
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("invalid JSON %q: %v", w.Body.String(), err)
	}
	return v
}

func TestListTasks_Pagination(t *testing.T) {
	s := New()
	for range 30 {
		s.AddTask(model.Task{BackendType: "git", Category: "commit"})
	}

	w := do(t, s, "GET", "/tasks?page=2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", w.Code, w.Body.String())
	}
	resp := decode[model.ListResponse[model.Task]](t, w)
	if resp.Count != 30 || resp.TotalPages != 2 || resp.Page != 2 || len(resp.Results) != 5 {
		t.Errorf("got count=%d pages=%d page=%d items=%d", resp.Count, resp.TotalPages, resp.Page, len(resp.Results))
	}

	w = do(t, s, "GET", "/tasks?page=3", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("page 3 status = %d, want 404", w.Code)
	}
}

func TestListTasks_EmptyFirstPage(t *testing.T) {
	s := New()
	w := do(t, s, "GET", "/tasks", "")
	resp := decode[model.ListResponse[model.Task]](t, w)
	if w.Code != http.StatusOK || resp.Count != 0 || resp.TotalPages != 1 {
		t.Errorf("status=%d count=%d pages=%d", w.Code, resp.Count, resp.TotalPages)
	}
}

func TestListTasks_StatusFilter(t *testing.T) {
	s := New()
	a := s.AddTask(model.Task{BackendType: "git"})
	s.AddJob(a, model.StatusStarted)
	b := s.AddTask(model.Task{BackendType: "git"})
	s.AddJob(b, model.StatusFailed)

	resp := decode[model.ListResponse[model.Task]](t, do(t, s, "GET", "/tasks?status=failed", ""))
	if len(resp.Results) != 1 || resp.Results[0].ID != b {
		t.Errorf("results = %+v, want only %s", resp.Results, b)
	}
}

func TestCreateTask(t *testing.T) {
	s := New()
	body := `{"task_args":{"datasource_type":"git","datasource_category":"commit","backend_args":{"uri":"https://x/y"}},"scheduler":{"job_interval":604800,"job_max_retries":3}}`

	w := do(t, s, "POST", "/tasks", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body=%s", w.Code, w.Body.String())
	}
	msg := decode[model.MessageResponse](t, w)
	if msg.Message != "Task '"+msg.UUID+"' created." {
		t.Errorf("message = %q", msg.Message)
	}

	task, ok := s.Task(msg.UUID)
	if !ok {
		t.Fatal("created task not stored")
	}
	if task.Status != model.StatusScheduled || len(task.RecentJobs) != 1 || task.RecentJobs[0].JobNumber != 1 {
		t.Errorf("task = %+v", task)
	}

	w = do(t, s, "POST", "/tasks", body)
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate status = %d, want 409", w.Code)
	}
}

func TestCreateTask_MissingFields(t *testing.T) {
	s := New()
	w := do(t, s, "POST", "/tasks", `{"task_args":{"backend_args":{}}}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	fields := decode[map[string][]string](t, w)
	for _, f := range []string{"datasource_type", "datasource_category", "uri"} {
		if len(fields[f]) == 0 {
			t.Errorf("missing error for %s", f)
		}
	}
}

func TestCancelAndReschedule(t *testing.T) {
	s := New()
	id := s.AddTask(model.Task{BackendType: "git"})
	s.AddJob(id, model.StatusStarted)

	if w := do(t, s, "POST", "/tasks/"+id+"/reschedule", ""); w.Code != http.StatusConflict {
		t.Errorf("reschedule started: status = %d, want 409", w.Code)
	}
	if w := do(t, s, "POST", "/tasks/"+id+"/cancel", ""); w.Code != http.StatusOK {
		t.Fatalf("cancel: status = %d", w.Code)
	}
	task, _ := s.Task(id)
	if task.Status != model.StatusCanceled || task.RecentJobs[0].FinishedAt == nil {
		t.Errorf("after cancel: %+v", task)
	}
	w := do(t, s, "POST", "/tasks/"+id+"/cancel", "")
	if w.Code != http.StatusConflict || decode[model.MessageResponse](t, w).Code != "invalid_transition" {
		t.Errorf("second cancel: status = %d body=%s", w.Code, w.Body.String())
	}

	if w := do(t, s, "POST", "/tasks/"+id+"/reschedule", ""); w.Code != http.StatusOK {
		t.Fatalf("reschedule: status = %d", w.Code)
	}
	task, _ = s.Task(id)
	if task.Status != model.StatusEnqueued || task.RecentJobs[0].JobNumber != 2 {
		t.Errorf("after reschedule: %+v", task)
	}
	if err := task.CheckConsistency(); err != nil {
		t.Error(err)
	}
}

func TestDeleteTask(t *testing.T) {
	s := New()
	id := s.AddTask(model.Task{})
	if w := do(t, s, "DELETE", "/tasks/"+id, ""); w.Code != http.StatusNoContent {
		t.Fatalf("status = %d", w.Code)
	}
	if w := do(t, s, "DELETE", "/tasks/"+id, ""); w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", w.Code)
	}
}

func TestJobsAndLogs(t *testing.T) {
	s := New()
	id := s.AddTask(model.Task{})
	for range 12 {
		s.AddJob(id, model.StatusFinished)
	}
	last := s.AddJob(id, model.StatusStarted)
	s.SetLogs(last.ID, "fetching", "done")

	task, _ := s.Task(id)
	if len(task.RecentJobs) != model.MaxRecentJobs || task.RecentJobs[0].JobNumber != 13 {
		t.Errorf("recent jobs = %d, first #%d", len(task.RecentJobs), task.RecentJobs[0].JobNumber)
	}

	resp := decode[model.ListResponse[model.Job]](t, do(t, s, "GET", "/tasks/"+id+"/jobs?size=5", ""))
	if resp.Count != 13 || resp.TotalPages != 3 || resp.Results[0].JobNumber != 13 {
		t.Errorf("jobs: count=%d pages=%d first=%d", resp.Count, resp.TotalPages, resp.Results[0].JobNumber)
	}

	logs := decode[model.LogsResponse](t, do(t, s, "GET", "/tasks/"+id+"/jobs/"+last.ID+"/logs", ""))
	if len(logs.Logs) != 2 {
		t.Errorf("logs = %v", logs.Logs)
	}
	if w := do(t, s, "GET", "/tasks/"+id+"/jobs/nope", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown job status = %d", w.Code)
	}
}

func TestRequireTokenAndFaults(t *testing.T) {
	s := New()
	s.RequireToken("secret")
	if w := do(t, s, "GET", "/tasks", ""); w.Code != http.StatusForbidden {
		t.Errorf("no token status = %d, want 403", w.Code)
	}

	s.RequireToken("")
	s.FailNext("GET", "/tasks", http.StatusServiceUnavailable, map[string]string{"detail": "down"})
	if w := do(t, s, "GET", "/tasks", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("fault status = %d", w.Code)
	}
	if w := do(t, s, "GET", "/tasks", ""); w.Code != http.StatusOK {
		t.Errorf("fault not consumed: status = %d", w.Code)
	}
	if got := s.Count("GET", "/tasks"); got != 3 {
		t.Errorf("Count = %d, want 3", got)
	}
}
