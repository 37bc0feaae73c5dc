package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

const taskJSON = `{
  "uuid": "7d7f2c1e",
  "status": "running",
  "runs": 4,
  "failures": 1,
  "last_run": "2024-05-01T10:00:00Z",
  "job_interval": 604800,
  "scheduled_at": "2024-05-08T10:00:00Z",
  "job_max_retries": 3,
  "task_args": {"uri": "https://github.com/chaoss/grimoirelab"},
  "datasource_type": "git",
  "datasource_category": "commit",
  "last_jobs": [
    {"uuid": "j4", "job_num": 4, "status": "running", "scheduled_at": "2024-05-08T10:00:00Z", "started_at": "2024-05-08T10:00:01Z", "finished_at": null},
    {"uuid": "j3", "job_num": 3, "status": "completed", "scheduled_at": "2024-05-01T10:00:00Z", "started_at": "2024-05-01T10:00:01Z", "finished_at": "2024-05-01T10:05:00Z"},
    {"uuid": "j2", "job_num": 2, "status": "failed", "scheduled_at": null, "started_at": null, "finished_at": "2024-04-24T10:05:00Z"}
  ]
}`

func TestTask_Decode(t *testing.T) {
	var task Task
	if err := json.Unmarshal([]byte(taskJSON), &task); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if task.Status != StatusStarted {
		t.Errorf("Status = %q, want started", task.Status)
	}
	if task.URI() != "https://github.com/chaoss/grimoirelab" {
		t.Errorf("URI() = %q", task.URI())
	}
	if task.Interval() != 7*24*time.Hour {
		t.Errorf("Interval() = %v", task.Interval())
	}
	if err := task.CheckConsistency(); err != nil {
		t.Errorf("CheckConsistency() = %v", err)
	}
	s := task.Summary()
	if s.Total != 3 || s.Active != 1 || s.Finished != 1 || s.Failed != 1 {
		t.Errorf("Summary() = %+v", s)
	}
}

func TestTask_CheckConsistency(t *testing.T) {
	task := Task{
		ID:     "t1",
		Status: StatusFinished,
		RecentJobs: []JobSummary{
			{ID: "j2", JobNumber: 2, Status: StatusEnqueued},
			{ID: "j1", JobNumber: 1, Status: StatusFinished},
		},
	}
	if err := task.CheckConsistency(); err == nil {
		t.Error("expected mismatch error")
	}

	task.Status = StatusEnqueued
	if err := task.CheckConsistency(); err != nil {
		t.Errorf("CheckConsistency() = %v", err)
	}

	task.RecentJobs[0], task.RecentJobs[1] = task.RecentJobs[1], task.RecentJobs[0]
	task.Status = StatusFinished
	if err := task.CheckConsistency(); err == nil {
		t.Error("expected ordering error")
	}

	if err := (Task{ID: "fresh", Status: StatusScheduled}).CheckConsistency(); err != nil {
		t.Errorf("task without jobs: %v", err)
	}
}

func TestJob_Validate(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name    string
		job     JobSummary
		wantErr bool
	}{
		{"running", JobSummary{ID: "a", JobNumber: 1, Status: StatusStarted}, false},
		{"finished", JobSummary{ID: "b", JobNumber: 2, Status: StatusFinished, FinishedAt: &now}, false},
		{"failed without finish", JobSummary{ID: "c", JobNumber: 1, Status: StatusFailed}, true},
		{"enqueued with finish", JobSummary{ID: "d", JobNumber: 1, Status: StatusEnqueued, FinishedAt: &now}, true},
		{"zero number", JobSummary{ID: "e", JobNumber: 0, Status: StatusScheduled}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.job.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestJob_DecodeProgress(t *testing.T) {
	var job Job
	body := `{"uuid":"j1","job_num":1,"status":"completed","finished_at":"2024-05-01T10:05:00Z","progress":{"summary":{"fetched":120}}}`
	if err := json.Unmarshal([]byte(body), &job); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if job.JobNumber != 1 || job.Status != StatusFinished {
		t.Errorf("job = %+v", job.JobSummary)
	}
	if job.Progress["summary"] == nil {
		t.Error("progress summary missing")
	}
	if err := job.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestTaskSpec_Validate(t *testing.T) {
	err := TaskSpec{}.Validate()
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("Validate() = %v, want validation error", err)
	}
	var e *Error
	errors.As(err, &e)
	if len(e.Details) != 3 {
		t.Errorf("Details = %v, want 3 entries", e.Details)
	}

	ok := TaskSpec{BackendType: "git", Category: "commit", URI: "https://x/y"}
	if err := ok.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}

	neg := -1
	bad := TaskSpec{BackendType: "git", Category: "commit", URI: "https://x/y", MaxRetries: &neg}
	if err := bad.Validate(); err == nil {
		t.Error("expected error for negative max_retries")
	}
}

func TestTaskSpec_Request(t *testing.T) {
	spec := TaskSpec{
		BackendType: "git",
		Category:    "commit",
		URI:         "https://x/y",
		BackendArgs: map[string]any{"branches": []string{"main"}},
		JobInterval: 604800,
	}
	req := spec.Request()
	if req.TaskArgs.BackendArgs["uri"] != "https://x/y" {
		t.Errorf("backend_args.uri = %v", req.TaskArgs.BackendArgs["uri"])
	}
	if req.TaskArgs.DatasourceType != "git" || req.TaskArgs.DatasourceCategory != "commit" {
		t.Errorf("task_args = %+v", req.TaskArgs)
	}
	if req.Scheduler.JobInterval != 604800 || req.Scheduler.JobMaxRetries != DefaultMaxRetries {
		t.Errorf("scheduler = %+v", req.Scheduler)
	}
	if _, ok := spec.BackendArgs["uri"]; ok {
		t.Error("Request() mutated TaskSpec.BackendArgs")
	}
}
