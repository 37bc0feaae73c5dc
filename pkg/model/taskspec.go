package model

import (
	"maps"
	"strings"

	giturls "github.com/whilp/git-urls"
)

// Scheduling defaults applied to new tasks.
const (
	DefaultJobInterval = 604800 // one week, in seconds
	DefaultMaxRetries  = 3
)

// BackendGit is the collector kind for plain git repositories.
const BackendGit = "git"

// TaskSpec is the user input for creating a Task.
type TaskSpec struct {
	BackendType string         `json:"backend" yaml:"backend"`
	Category    string         `json:"category" yaml:"category"`
	URI         string         `json:"uri" yaml:"uri"`
	BackendArgs map[string]any `json:"backend_args,omitempty" yaml:"backend_args,omitempty"`
	JobInterval int            `json:"interval,omitempty" yaml:"interval,omitempty"`
	MaxRetries  *int           `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
	Burst       bool           `json:"burst,omitempty" yaml:"burst,omitempty"`
}

// WithDefaults fills the scheduling fields left unset.
func (s TaskSpec) WithDefaults() TaskSpec {
	if s.JobInterval <= 0 {
		s.JobInterval = DefaultJobInterval
	}
	if s.MaxRetries == nil {
		n := DefaultMaxRetries
		s.MaxRetries = &n
	}
	s.BackendType = strings.TrimSpace(s.BackendType)
	s.Category = strings.TrimSpace(s.Category)
	s.URI = strings.TrimSpace(s.URI)
	return s
}

// Validate reports every missing or malformed field at once.
func (s TaskSpec) Validate() error {
	var details []FieldError
	if strings.TrimSpace(s.BackendType) == "" {
		details = append(details, FieldError{Field: "backend", Message: "required"})
	}
	if strings.TrimSpace(s.Category) == "" {
		details = append(details, FieldError{Field: "category", Message: "required"})
	}
	uri := strings.TrimSpace(s.URI)
	if uri == "" {
		details = append(details, FieldError{Field: "uri", Message: "required"})
	} else if s.BackendType == BackendGit {
		if _, err := giturls.Parse(uri); err != nil {
			details = append(details, FieldError{Field: "uri", Message: "not a git URL: " + err.Error()})
		}
	}
	if s.JobInterval < 0 {
		details = append(details, FieldError{Field: "interval", Message: "must not be negative"})
	}
	if s.MaxRetries != nil && *s.MaxRetries < 0 {
		details = append(details, FieldError{Field: "max_retries", Message: "must not be negative"})
	}
	if len(details) > 0 {
		return NewValidationError("create task", "invalid task definition", details...)
	}
	return nil
}

// Request builds the wire body for the create endpoint.
func (s TaskSpec) Request() CreateTaskRequest {
	s = s.WithDefaults()
	args := maps.Clone(s.BackendArgs)
	if args == nil {
		args = map[string]any{}
	}
	args["uri"] = s.URI
	return CreateTaskRequest{
		TaskArgs: CreateTaskArgs{
			DatasourceType:     s.BackendType,
			DatasourceCategory: s.Category,
			BackendArgs:        args,
		},
		Scheduler: SchedulerArgs{
			JobInterval:   s.JobInterval,
			JobMaxRetries: *s.MaxRetries,
			Burst:         s.Burst,
		},
	}
}

// CreateTaskRequest is the body of POST /tasks.
type CreateTaskRequest struct {
	TaskArgs  CreateTaskArgs `json:"task_args"`
	Scheduler SchedulerArgs  `json:"scheduler"`
}

// CreateTaskArgs identifies what the task collects.
type CreateTaskArgs struct {
	DatasourceType     string         `json:"datasource_type"`
	DatasourceCategory string         `json:"datasource_category"`
	BackendArgs        map[string]any `json:"backend_args"`
}

// SchedulerArgs carries the recurrence policy.
type SchedulerArgs struct {
	JobInterval   int  `json:"job_interval"`
	JobMaxRetries int  `json:"job_max_retries"`
	Burst         bool `json:"burst,omitempty"`
}
