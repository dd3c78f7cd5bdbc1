// Package lifecycle owns the job state machine. Every status change goes
// through the Manager, and every transition is a conditional persistence
// write so concurrent actors (API process, workers, cancel requests) cannot
// lose updates.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openprep/prepflow/pkg/db/models"
	"github.com/openprep/prepflow/pkg/engine"
	"github.com/openprep/prepflow/pkg/plog"
	"github.com/openprep/prepflow/pkg/queue"
)

// Job metadata keys.
const (
	MetaParameters  = "parameters"
	MetaSteps       = "steps"
	MetaStepResults = "step_metadata"
	MetaContext     = "context"
	MetaErrorKind   = "error_kind"
)

// Manager mediates all changes to job status and associated fields.
type Manager struct {
	store  Store
	queue  queue.Queue
	logger *plog.Logger
}

func NewManager(store Store, q queue.Queue, logger *plog.Logger) *Manager {
	if logger == nil {
		logger = plog.NewDefault()
	}
	return &Manager{store: store, queue: q, logger: logger}
}

// CreateParams describes a new job. Steps, when present, is the snapshot of
// the referenced workflow's step sequence taken at creation time; ad-hoc
// jobs instead carry their step list in Parameters under "steps".
type CreateParams struct {
	WorkflowID  *uuid.UUID
	InputDataID *uuid.UUID
	Parameters  map[string]any
	Steps       []engine.Step
}

// Create persists a new job in the queued state. It has no side effects
// beyond persistence; execution starts only via Enqueue.
func (m *Manager) Create(ctx context.Context, p CreateParams) (*models.Job, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate job id: %w", err)
	}

	metadata := map[string]any{}
	if p.Parameters != nil {
		metadata[MetaParameters] = p.Parameters
	}
	if len(p.Steps) > 0 {
		metadata[MetaSteps] = p.Steps
	}

	job := &models.Job{
		ID:          id,
		WorkflowID:  p.WorkflowID,
		InputDataID: p.InputDataID,
		Status:      models.JobStatusQueued,
		Progress:    0,
		Metadata:    metadata,
		CreatedAt:   time.Now().UTC(),
	}

	if err := m.store.Insert(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to persist job: %w", err)
	}

	m.logger.Debug("job created", "job_id", job.ID, "workflow_id", p.WorkflowID)
	return job, nil
}

// Enqueue hands a queued job to the task queue. A job can be enqueued once:
// re-executing a job that was already handed off (or is past queued) is an
// invalid transition.
func (m *Manager) Enqueue(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	ok, err := m.store.SetEnqueued(ctx, id, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if !ok {
		job, err := m.get(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: cannot execute job in status %q", ErrInvalidTransition, job.Status)
	}

	if err := m.queue.Enqueue(ctx, id.String()); err != nil {
		// Undo the hand-off marker so the push can be retried; otherwise
		// the job would stay queued but never executable.
		if ok, clearErr := m.store.ClearEnqueued(ctx, id); clearErr != nil || !ok {
			m.logger.Warn("failed to roll back enqueue marker", "job_id", id, "error", clearErr)
		}
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	m.logger.Info("job enqueued", "job_id", id)
	return m.get(ctx, id)
}

// Cancel transitions a queued or running job to cancelled. Cancel wins races
// against the worker unless a terminal state was already committed, in which
// case it is rejected.
func (m *Manager) Cancel(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	ok, err := m.store.SetCancelled(ctx, id, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if !ok {
		job, err := m.get(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: cannot cancel job in status %q", ErrInvalidTransition, job.Status)
	}

	m.logger.Info("job cancelled", "job_id", id)
	return m.get(ctx, id)
}

// Start transitions queued → running on worker pickup.
func (m *Manager) Start(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	ok, err := m.store.SetRunning(ctx, id, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if !ok {
		job, err := m.get(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: cannot start job in status %q", ErrInvalidTransition, job.Status)
	}
	return m.get(ctx, id)
}

// RecordProgress updates the progress percentage of a running job. Values
// outside [0, 100] are rejected; updates for non-running jobs are invalid
// transitions.
func (m *Manager) RecordProgress(ctx context.Context, id uuid.UUID, percent int) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("%w: progress %d out of range [0, 100]", ErrValidation, percent)
	}

	ok, err := m.store.SetProgress(ctx, id, percent)
	if err != nil {
		return err
	}
	if !ok {
		job, err := m.get(ctx, id)
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: cannot record progress in status %q", ErrInvalidTransition, job.Status)
	}
	return nil
}

// Complete transitions running → completed with the produced result.
func (m *Manager) Complete(ctx context.Context, id uuid.UUID, resultDataID *uuid.UUID, metadata map[string]any, logs []string) (*models.Job, error) {
	ok, err := m.store.SetCompleted(ctx, id, resultDataID, metadata, logs, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if !ok {
		job, err := m.get(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: cannot complete job in status %q", ErrInvalidTransition, job.Status)
	}

	m.logger.Info("job completed", "job_id", id)
	return m.get(ctx, id)
}

// Fail transitions running → failed, storing the message verbatim and the
// error kind tag in metadata.
func (m *Manager) Fail(ctx context.Context, id uuid.UUID, errMsg, kind string, metadata map[string]any, logs []string) (*models.Job, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	if kind != "" {
		metadata[MetaErrorKind] = kind
	}

	ok, err := m.store.SetFailed(ctx, id, errMsg, metadata, logs, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if !ok {
		job, err := m.get(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: cannot fail job in status %q", ErrInvalidTransition, job.Status)
	}

	m.logger.Warn("job failed", "job_id", id, "error", errMsg, "kind", kind)
	return m.get(ctx, id)
}

// Get returns the current job snapshot.
func (m *Manager) Get(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	return m.get(ctx, id)
}

// List returns jobs matching the filter, newest first.
func (m *Manager) List(ctx context.Context, f ListFilter) ([]models.Job, error) {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return m.store.List(ctx, f)
}

// Result describes the output of a completed job.
type Result struct {
	JobID        uuid.UUID
	ResultDataID *uuid.UUID
	Metadata     map[string]any
}

// GetResult returns the result of a completed job and rejects every other
// status as a precondition failure.
func (m *Manager) GetResult(ctx context.Context, id uuid.UUID) (*Result, error) {
	job, err := m.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != models.JobStatusCompleted {
		return nil, fmt.Errorf("%w: status is %q", ErrNotCompleted, job.Status)
	}
	return &Result{
		JobID:        job.ID,
		ResultDataID: job.ResultDataID,
		Metadata:     job.Metadata,
	}, nil
}

func (m *Manager) get(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	job, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return job, nil
}
