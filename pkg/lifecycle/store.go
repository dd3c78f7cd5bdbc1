package lifecycle

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/openprep/prepflow/pkg/db/models"
)

// ListFilter narrows a job listing. Limit defaults to DefaultListLimit
// when zero; results are ordered by creation time, descending.
type ListFilter struct {
	WorkflowID *uuid.UUID
	Status     *models.JobStatus
	Offset     int
	Limit      int
}

// DefaultListLimit is the page size applied when a filter has no limit.
const DefaultListLimit = 100

// Store is the persistence contract for jobs. The API process and the
// execution workers share no memory, so every transition is a conditional
// write: the Set* methods update the record only when its current state
// matches the transition's source states and report whether a row changed.
// A false return means the job was absent or in a conflicting state.
type Store interface {
	Insert(ctx context.Context, job *models.Job) error

	// Get returns (nil, nil) when the id does not exist.
	Get(ctx context.Context, id uuid.UUID) (*models.Job, error)

	List(ctx context.Context, f ListFilter) ([]models.Job, error)

	// SetEnqueued marks a queued, not-yet-enqueued job as handed to the
	// task queue.
	SetEnqueued(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)

	// ClearEnqueued removes the hand-off marker from a still-queued job,
	// so a failed queue push can be retried.
	ClearEnqueued(ctx context.Context, id uuid.UUID) (bool, error)

	// SetRunning transitions queued → running, setting started_at and
	// resetting progress to zero.
	SetRunning(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)

	// SetProgress updates progress for a running job.
	SetProgress(ctx context.Context, id uuid.UUID, percent int) (bool, error)

	// SetCompleted transitions running → completed with the result
	// artifact reference, progress 100, and completed_at.
	SetCompleted(ctx context.Context, id uuid.UUID, resultDataID *uuid.UUID, metadata map[string]any, logs []string, at time.Time) (bool, error)

	// SetFailed transitions running → failed, recording the error message.
	// Progress keeps its last reported value.
	SetFailed(ctx context.Context, id uuid.UUID, errMsg string, metadata map[string]any, logs []string, at time.Time) (bool, error)

	// SetCancelled transitions queued or running → cancelled.
	SetCancelled(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}
