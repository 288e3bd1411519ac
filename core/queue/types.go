package queue

import (
	"encoding/json"
	"maps"
	"time"

	"github.com/google/uuid"
)

// Status tracks the lifecycle state of a job through the queue.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusRetrying   Status = "retrying"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether the status is final. Terminal jobs are never
// selected by the scheduler and never change state again, except through
// an explicit Retry of a failed job.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Valid checks if the status is one of the known lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted,
		StatusFailed, StatusRetrying, StatusCancelled:
		return true
	}
	return false
}

// Priority determines scheduling order. Higher priorities are always
// selected before lower ones; within the same priority jobs run in
// scheduled-time order (FIFO).
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
	PriorityDefault           = PriorityNormal
)

// Valid checks if the priority is one of the known levels.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// weight maps priorities to scheduling weights. Unknown priorities sort last.
func (p Priority) weight() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityNormal:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// Job represents a unit of work tracked by the queue.
type Job struct {
	ID          uuid.UUID         `json:"id"`
	Type        string            `json:"type"`
	Priority    Priority          `json:"priority"`
	Payload     json.RawMessage   `json:"payload,omitempty"`
	Status      Status            `json:"status"`
	Attempts    int               `json:"attempts"`
	MaxAttempts int               `json:"max_attempts"`
	RetryDelay  time.Duration     `json:"retry_delay"`
	Timeout     time.Duration     `json:"timeout"`
	UniqueKey   string            `json:"unique_key,omitempty"`
	Progress    int               `json:"progress"`
	Result      any               `json:"result,omitempty"`
	Error       string            `json:"error,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	ScheduledAt time.Time         `json:"scheduled_at"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// snapshot returns an independent copy of the job. All public APIs and event
// payloads carry snapshots so callers can never mutate queue-internal state.
func (j *Job) snapshot() Job {
	c := *j
	c.Metadata = maps.Clone(j.Metadata)
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return c
}
