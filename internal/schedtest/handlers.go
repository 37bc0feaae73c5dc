package schedtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/me/schedctl/pkg/model"
)

const invalidPage = "Invalid page."

// paginate slices items the way the scheduler's paginator does. An empty
// listing still has one (empty) page; any other page outside the range is
// reported as not found.
func paginate[T any](w http.ResponseWriter, r *http.Request, items []T) (model.ListResponse[T], bool) {
	page := 1
	if v := r.URL.Query().Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			respondError(w, http.StatusNotFound, "", invalidPage)
			return model.ListResponse[T]{}, false
		}
		page = n
	}
	size := model.DefaultPageSize
	if v := r.URL.Query().Get("size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			size = min(n, model.MaxPageSize)
		}
	}

	pages := max(1, (len(items)+size-1)/size)
	if page > pages {
		respondError(w, http.StatusNotFound, "", invalidPage)
		return model.ListResponse[T]{}, false
	}
	start := (page - 1) * size
	end := min(start+size, len(items))
	return model.ListResponse[T]{
		Results:    slices.Clone(items[start:end]),
		Count:      len(items),
		TotalPages: pages,
		Page:       page,
	}, true
}

func matchFilter(q map[string][]string, key, value string) bool {
	want := ""
	if vs := q[key]; len(vs) > 0 {
		want = vs[0]
	}
	return want == "" || strings.EqualFold(want, value)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	s.mu.Lock()
	var tasks []model.Task
	for _, id := range s.order {
		t := s.render(s.tasks[id])
		lastRun := ""
		for _, j := range t.RecentJobs {
			if j.Status.IsTerminal() {
				lastRun = string(j.Status)
				break
			}
		}
		if !matchFilter(q, model.FilterStatus, string(t.Status)) ||
			!matchFilter(q, model.FilterLastRunStatus, lastRun) ||
			!matchFilter(q, model.FilterBackend, t.BackendType) ||
			!matchFilter(q, model.FilterCategory, t.Category) ||
			!matchFilter(q, model.FilterURI, t.URI()) {
			continue
		}
		tasks = append(tasks, t)
	}
	s.mu.Unlock()

	resp, ok := paginate(w, r, tasks)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req model.CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, []string{"Invalid JSON: " + err.Error()})
		return
	}

	uri, _ := req.TaskArgs.BackendArgs["uri"].(string)
	fieldErrs := map[string][]string{}
	if req.TaskArgs.DatasourceType == "" {
		fieldErrs["datasource_type"] = []string{"This field is required."}
	}
	if req.TaskArgs.DatasourceCategory == "" {
		fieldErrs["datasource_category"] = []string{"This field is required."}
	}
	if uri == "" {
		fieldErrs["uri"] = []string{"This field is required."}
	}
	if len(fieldErrs) > 0 {
		respondJSON(w, http.StatusBadRequest, fieldErrs)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.order {
		t := s.tasks[id].task
		if t.BackendType == req.TaskArgs.DatasourceType &&
			t.Category == req.TaskArgs.DatasourceCategory && t.URI() == uri {
			respondError(w, http.StatusConflict, "duplicate",
				fmt.Sprintf("Task for %s %s %s already exists.", t.BackendType, t.Category, uri))
			return
		}
	}

	rec := &taskRecord{task: model.Task{
		ID:          uuid.NewString(),
		BackendType: req.TaskArgs.DatasourceType,
		Category:    req.TaskArgs.DatasourceCategory,
		BackendArgs: req.TaskArgs.BackendArgs,
		JobInterval: req.Scheduler.JobInterval,
		MaxRetries:  req.Scheduler.JobMaxRetries,
		Burst:       req.Scheduler.Burst,
	}}
	s.tasks[rec.task.ID] = rec
	s.order = append(s.order, rec.task.ID)
	s.appendJob(rec, model.StatusScheduled)

	respondJSON(w, http.StatusCreated, model.MessageResponse{
		Message: fmt.Sprintf("Task '%s' created.", rec.task.ID),
		UUID:    rec.task.ID,
	})
}

// lookup returns the task named by the {id} URL parameter, answering 404
// itself when it does not exist. The caller must hold s.mu.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) *taskRecord {
	id := chi.URLParam(r, "id")
	rec, ok := s.tasks[id]
	if !ok {
		respondError(w, http.StatusNotFound, "not_found", fmt.Sprintf("Task '%s' not found.", id))
		return nil
	}
	return rec
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.lookup(w, r)
	if rec == nil {
		return
	}
	respondJSON(w, http.StatusOK, s.render(rec))
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.lookup(w, r)
	if rec == nil {
		return
	}
	for _, j := range rec.jobs {
		delete(s.logs, j.ID)
	}
	delete(s.tasks, rec.task.ID)
	s.order = slices.DeleteFunc(s.order, func(id string) bool { return id == rec.task.ID })
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.lookup(w, r)
	if rec == nil {
		return
	}
	if rec.task.Status == model.StatusCanceled {
		respondError(w, http.StatusConflict, "invalid_transition",
			fmt.Sprintf("Task '%s' is already canceled.", rec.task.ID))
		return
	}
	if n := len(rec.jobs); n > 0 && !rec.jobs[n-1].Status.IsTerminal() {
		s.setJobStatus(rec, rec.jobs[n-1], model.StatusCanceled)
	}
	rec.task.Status = model.StatusCanceled
	respondMessage(w, http.StatusOK, fmt.Sprintf("Task '%s' canceled.", rec.task.ID))
}

func (s *Server) handleRescheduleTask(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.lookup(w, r)
	if rec == nil {
		return
	}
	if rec.task.Status != model.StatusCanceled && rec.task.Status != model.StatusFailed {
		respondError(w, http.StatusConflict, "invalid_transition",
			fmt.Sprintf("Task '%s' is %s; only canceled or failed tasks can be rescheduled.", rec.task.ID, rec.task.Status))
		return
	}
	s.appendJob(rec, model.StatusEnqueued)
	respondMessage(w, http.StatusOK, fmt.Sprintf("Task '%s' rescheduled.", rec.task.ID))
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	rec := s.lookup(w, r)
	if rec == nil {
		s.mu.Unlock()
		return
	}
	status := r.URL.Query().Get(model.FilterStatus)
	var jobs []model.Job
	for i := len(rec.jobs) - 1; i >= 0; i-- {
		j := *rec.jobs[i]
		if status != "" && !strings.EqualFold(status, string(j.Status)) {
			continue
		}
		jobs = append(jobs, j)
	}
	s.mu.Unlock()

	resp, ok := paginate(w, r, jobs)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// job returns the job named by {jid} under the task named by {id}. The
// caller must hold s.mu.
func (s *Server) job(w http.ResponseWriter, r *http.Request) *model.Job {
	rec := s.lookup(w, r)
	if rec == nil {
		return nil
	}
	jid := chi.URLParam(r, "jid")
	for _, j := range rec.jobs {
		if j.ID == jid {
			return j
		}
	}
	respondError(w, http.StatusNotFound, "not_found", fmt.Sprintf("Job '%s' not found.", jid))
	return nil
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j := s.job(w, r); j != nil {
		respondJSON(w, http.StatusOK, j)
	}
}

func (s *Server) handleGetJobLogs(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := s.job(w, r)
	if j == nil {
		return
	}
	logs := s.logs[j.ID]
	if logs == nil {
		logs = []string{}
	}
	respondJSON(w, http.StatusOK, model.LogsResponse{Logs: logs})
}
