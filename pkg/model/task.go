package model

import (
	"fmt"
	"time"
)

// MaxRecentJobs bounds Task.RecentJobs.
const MaxRecentJobs = 10

// Task is a persistent recurring collection definition as reported by the
// scheduler. The client never mutates a Task locally.
type Task struct {
	ID          string         `json:"uuid"`
	BackendType string         `json:"datasource_type"`
	Category    string         `json:"datasource_category"`
	BackendArgs map[string]any `json:"task_args"`
	Status      Status         `json:"status"`
	ScheduledAt *time.Time     `json:"scheduled_at"`
	LastRun     *time.Time     `json:"last_run"`
	// JobInterval is the recurrence period in seconds.
	JobInterval int  `json:"job_interval"`
	MaxRetries  int  `json:"job_max_retries"`
	Runs        int  `json:"runs"`
	Failures    int  `json:"failures"`
	Burst       bool `json:"burst,omitempty"`

	// RecentJobs holds the latest jobs, most recent first.
	RecentJobs []JobSummary `json:"last_jobs"`
}

// URI returns the target URI from the backend arguments.
func (t Task) URI() string {
	if t.BackendArgs == nil {
		return ""
	}
	uri, _ := t.BackendArgs["uri"].(string)
	return uri
}

// Interval returns JobInterval as a duration.
func (t Task) Interval() time.Duration {
	return time.Duration(t.JobInterval) * time.Second
}

// LatestJob returns the most recent job summary, if any.
func (t Task) LatestJob() (JobSummary, bool) {
	if len(t.RecentJobs) == 0 {
		return JobSummary{}, false
	}
	return t.RecentJobs[0], true
}

// CheckConsistency verifies that the task's status mirrors its current job.
func (t Task) CheckConsistency() error {
	job, ok := t.LatestJob()
	if !ok {
		return nil
	}
	if job.Status != t.Status {
		return fmt.Errorf("task %s status %s does not match job #%d status %s",
			t.ID, t.Status, job.JobNumber, job.Status)
	}
	if len(t.RecentJobs) > MaxRecentJobs {
		return fmt.Errorf("task %s carries %d recent jobs, max %d", t.ID, len(t.RecentJobs), MaxRecentJobs)
	}
	for i := 1; i < len(t.RecentJobs); i++ {
		if t.RecentJobs[i].JobNumber >= t.RecentJobs[i-1].JobNumber {
			return fmt.Errorf("task %s recent jobs are not ordered most recent first", t.ID)
		}
	}
	return nil
}

// Health counts the recent jobs per status.
func (t Task) Health() map[Status]int {
	h := make(map[Status]int, len(t.RecentJobs))
	for _, j := range t.RecentJobs {
		h[j.Status]++
	}
	return h
}

// TaskSummary is a compact view of a task's recent job health.
type TaskSummary struct {
	Total    int `json:"total"`
	Finished int `json:"finished"`
	Failed   int `json:"failed"`
	Active   int `json:"active"`
	Canceled int `json:"canceled"`
}

// Summary folds Health into the four display buckets.
func (t Task) Summary() TaskSummary {
	var s TaskSummary
	for status, n := range t.Health() {
		s.Total += n
		switch status {
		case StatusFinished:
			s.Finished += n
		case StatusFailed:
			s.Failed += n
		case StatusCanceled:
			s.Canceled += n
		default:
			s.Active += n
		}
	}
	return s
}
