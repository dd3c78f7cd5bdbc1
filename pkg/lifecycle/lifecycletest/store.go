// Package lifecycletest provides in-memory fakes for the lifecycle store
// and the task queue, with the same conditional-write semantics as the
// Postgres-backed implementations.
package lifecycletest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openprep/prepflow/pkg/db/models"
	"github.com/openprep/prepflow/pkg/lifecycle"
	"github.com/openprep/prepflow/pkg/queue"
)

// MemStore is a mutex-guarded, map-backed lifecycle.Store.
type MemStore struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*models.Job
}

func NewMemStore() *MemStore {
	return &MemStore{jobs: make(map[uuid.UUID]*models.Job)}
}

func copyJob(j *models.Job) *models.Job {
	cp := *j
	return &cp
}

func (s *MemStore) Insert(ctx context.Context, job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = copyJob(job)
	return nil
}

func (s *MemStore) Get(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	return copyJob(job), nil
}

func (s *MemStore) List(ctx context.Context, f lifecycle.ListFilter) ([]models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Job
	for _, job := range s.jobs {
		if f.WorkflowID != nil && (job.WorkflowID == nil || *job.WorkflowID != *f.WorkflowID) {
			continue
		}
		if f.Status != nil && job.Status != *f.Status {
			continue
		}
		out = append(out, *copyJob(job))
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if f.Offset >= len(out) {
		return nil, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *MemStore) SetEnqueued(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.Status != models.JobStatusQueued || job.EnqueuedAt != nil {
		return false, nil
	}
	job.EnqueuedAt = &at
	return true, nil
}

func (s *MemStore) ClearEnqueued(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.Status != models.JobStatusQueued || job.EnqueuedAt == nil {
		return false, nil
	}
	job.EnqueuedAt = nil
	return true, nil
}

func (s *MemStore) SetRunning(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.Status != models.JobStatusQueued {
		return false, nil
	}
	job.Status = models.JobStatusRunning
	job.StartedAt = &at
	job.Progress = 0
	return true, nil
}

func (s *MemStore) SetProgress(ctx context.Context, id uuid.UUID, percent int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.Status != models.JobStatusRunning {
		return false, nil
	}
	job.Progress = percent
	return true, nil
}

func (s *MemStore) SetCompleted(ctx context.Context, id uuid.UUID, resultDataID *uuid.UUID, metadata map[string]any, logs []string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.Status != models.JobStatusRunning {
		return false, nil
	}
	job.Status = models.JobStatusCompleted
	job.ResultDataID = resultDataID
	if metadata != nil {
		job.Metadata = metadata
	}
	if logs != nil {
		job.Logs = logs
	}
	job.Progress = 100
	job.CompletedAt = &at
	return true, nil
}

func (s *MemStore) SetFailed(ctx context.Context, id uuid.UUID, errMsg string, metadata map[string]any, logs []string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.Status != models.JobStatusRunning {
		return false, nil
	}
	job.Status = models.JobStatusFailed
	job.Error = errMsg
	if metadata != nil {
		job.Metadata = metadata
	}
	if logs != nil {
		job.Logs = logs
	}
	job.CompletedAt = &at
	return true, nil
}

func (s *MemStore) SetCancelled(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return false, nil
	}
	if job.Status != models.JobStatusQueued && job.Status != models.JobStatusRunning {
		return false, nil
	}
	job.Status = models.JobStatusCancelled
	job.CompletedAt = &at
	return true, nil
}

var _ lifecycle.Store = (*MemStore)(nil)

// MemQueue is an in-memory queue.Queue and queue.Consumer.
type MemQueue struct {
	mu  sync.Mutex
	ids []string
}

func NewMemQueue() *MemQueue {
	return &MemQueue{}
}

func (q *MemQueue) Enqueue(ctx context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ids = append(q.ids, jobID)
	return nil
}

func (q *MemQueue) Dequeue(ctx context.Context, timeout time.Duration) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.ids) == 0 {
		return "", queue.ErrEmpty
	}
	id := q.ids[0]
	q.ids = q.ids[1:]
	return id, nil
}

// Len returns the number of queued ids.
func (q *MemQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ids)
}

var (
	_ queue.Queue    = (*MemQueue)(nil)
	_ queue.Consumer = (*MemQueue)(nil)
)
