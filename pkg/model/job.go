package model

import (
	"fmt"
	"time"
)

// JobSummary is the lightweight job shape used in listings and in
// Task.RecentJobs.
type JobSummary struct {
	ID string `json:"uuid"`
	// JobNumber is task-scoped, starting at 1.
	JobNumber   int        `json:"job_num"`
	Status      Status     `json:"status"`
	ScheduledAt *time.Time `json:"scheduled_at"`
	StartedAt   *time.Time `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at"`
	Queue       string     `json:"queue,omitempty"`
}

// Job is one execution instance of a Task.
type Job struct {
	JobSummary
	// Progress is the backend-defined result payload. It is only present
	// once the job is near or at a terminal status.
	Progress map[string]any `json:"progress,omitempty"`
	// Logs are fetched on demand and never filled by list endpoints.
	Logs []string `json:"-"`
}

// Duration returns the run time of a started job. Running jobs are measured
// against now.
func (j JobSummary) Duration(now time.Time) time.Duration {
	if j.StartedAt == nil {
		return 0
	}
	end := now
	if j.FinishedAt != nil {
		end = *j.FinishedAt
	}
	if end.Before(*j.StartedAt) {
		return 0
	}
	return end.Sub(*j.StartedAt)
}

// Validate checks the job invariants: a positive job number, and a finish
// time exactly when the status is terminal.
func (j JobSummary) Validate() error {
	if j.JobNumber < 1 {
		return fmt.Errorf("job %s: job number %d must be >= 1", j.ID, j.JobNumber)
	}
	if j.Status.IsTerminal() && j.FinishedAt == nil {
		return fmt.Errorf("job %s: status %s requires finished_at", j.ID, j.Status)
	}
	if !j.Status.IsTerminal() && j.FinishedAt != nil {
		return fmt.Errorf("job %s: status %s must not have finished_at", j.ID, j.Status)
	}
	return nil
}
