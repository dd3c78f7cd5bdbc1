package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// JobStatus is the execution state of a job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Valid reports whether s is one of the known job states.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusQueued, JobStatusRunning, JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether s is a final state.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// Job is one asynchronous execution of a workflow (or an ad-hoc step list).
type Job struct {
	bun.BaseModel `bun:"table:jobs,alias:j"`

	ID           uuid.UUID  `bun:"type:uuid,pk"`
	WorkflowID   *uuid.UUID `bun:"type:uuid,nullzero"`
	Status       JobStatus  `bun:",notnull,default:'queued'"`
	InputDataID  *uuid.UUID `bun:"type:uuid,nullzero"`
	ResultDataID *uuid.UUID `bun:"type:uuid,nullzero"`

	// Progress is a percentage in [0, 100], written only while running.
	Progress int    `bun:",notnull,default:0"`
	Error    string `bun:",nullzero"`

	Metadata map[string]any `bun:"type:jsonb"`
	Logs     []string       `bun:"type:jsonb"`

	CreatedAt   time.Time  `bun:",notnull"`
	EnqueuedAt  *time.Time `bun:",nullzero"`
	StartedAt   *time.Time `bun:",nullzero"`
	CompletedAt *time.Time `bun:",nullzero"`
}
