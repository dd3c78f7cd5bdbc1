package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/openprep/prepflow/pkg/db/models"
	"github.com/openprep/prepflow/pkg/lifecycle"
)

// JobStore is the Postgres-backed lifecycle.Store. Transitions are
// expressed as conditional UPDATEs guarded on the current status, checked
// through rows-affected, so concurrent writers cannot clobber each other.
type JobStore struct {
	db *bun.DB
}

func NewJobStore(bunDB *bun.DB) *JobStore {
	return &JobStore{db: bunDB}
}

func (s *JobStore) Insert(ctx context.Context, job *models.Job) error {
	_, err := s.db.NewInsert().Model(job).Exec(ctx)
	return err
}

func (s *JobStore) Get(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	job := new(models.Job)
	err := s.db.NewSelect().Model(job).Where("j.id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return job, nil
}

func (s *JobStore) List(ctx context.Context, f lifecycle.ListFilter) ([]models.Job, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = lifecycle.DefaultListLimit
	}

	var jobs []models.Job
	q := s.db.NewSelect().
		Model(&jobs).
		Order("j.created_at DESC").
		Offset(f.Offset).
		Limit(limit)

	if f.WorkflowID != nil {
		q = q.Where("j.workflow_id = ?", *f.WorkflowID)
	}
	if f.Status != nil {
		q = q.Where("j.status = ?", *f.Status)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return jobs, nil
}

func (s *JobStore) SetEnqueued(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res, err := s.db.NewUpdate().
		Model((*models.Job)(nil)).
		Set("enqueued_at = ?", at).
		Where("j.id = ?", id).
		Where("j.status = ?", models.JobStatusQueued).
		Where("j.enqueued_at IS NULL").
		Exec(ctx)
	return oneRowChanged(res, err)
}

func (s *JobStore) ClearEnqueued(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.db.NewUpdate().
		Model((*models.Job)(nil)).
		Set("enqueued_at = NULL").
		Where("j.id = ?", id).
		Where("j.status = ?", models.JobStatusQueued).
		Where("j.enqueued_at IS NOT NULL").
		Exec(ctx)
	return oneRowChanged(res, err)
}

func (s *JobStore) SetRunning(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res, err := s.db.NewUpdate().
		Model((*models.Job)(nil)).
		Set("status = ?", models.JobStatusRunning).
		Set("started_at = ?", at).
		Set("progress = 0").
		Where("j.id = ?", id).
		Where("j.status = ?", models.JobStatusQueued).
		Exec(ctx)
	return oneRowChanged(res, err)
}

func (s *JobStore) SetProgress(ctx context.Context, id uuid.UUID, percent int) (bool, error) {
	res, err := s.db.NewUpdate().
		Model((*models.Job)(nil)).
		Set("progress = ?", percent).
		Where("j.id = ?", id).
		Where("j.status = ?", models.JobStatusRunning).
		Exec(ctx)
	return oneRowChanged(res, err)
}

func (s *JobStore) SetCompleted(ctx context.Context, id uuid.UUID, resultDataID *uuid.UUID, metadata map[string]any, logs []string, at time.Time) (bool, error) {
	q := s.db.NewUpdate().
		Model((*models.Job)(nil)).
		Set("status = ?", models.JobStatusCompleted).
		Set("result_data_id = ?", resultDataID).
		Set("progress = 100").
		Set("completed_at = ?", at).
		Where("j.id = ?", id).
		Where("j.status = ?", models.JobStatusRunning)

	q, err := setJSON(q, "metadata", metadata)
	if err != nil {
		return false, err
	}
	q, err = setJSON(q, "logs", logs)
	if err != nil {
		return false, err
	}

	res, err := q.Exec(ctx)
	return oneRowChanged(res, err)
}

func (s *JobStore) SetFailed(ctx context.Context, id uuid.UUID, errMsg string, metadata map[string]any, logs []string, at time.Time) (bool, error) {
	q := s.db.NewUpdate().
		Model((*models.Job)(nil)).
		Set("status = ?", models.JobStatusFailed).
		Set("error = ?", errMsg).
		Set("completed_at = ?", at).
		Where("j.id = ?", id).
		Where("j.status = ?", models.JobStatusRunning)

	q, err := setJSON(q, "metadata", metadata)
	if err != nil {
		return false, err
	}
	q, err = setJSON(q, "logs", logs)
	if err != nil {
		return false, err
	}

	res, err := q.Exec(ctx)
	return oneRowChanged(res, err)
}

func (s *JobStore) SetCancelled(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res, err := s.db.NewUpdate().
		Model((*models.Job)(nil)).
		Set("status = ?", models.JobStatusCancelled).
		Set("completed_at = ?", at).
		Where("j.id = ?", id).
		Where("j.status IN (?, ?)", models.JobStatusQueued, models.JobStatusRunning).
		Exec(ctx)
	return oneRowChanged(res, err)
}

// setJSON adds a SET column = jsonb clause for a non-nil value.
func setJSON(q *bun.UpdateQuery, column string, value any) (*bun.UpdateQuery, error) {
	switch v := value.(type) {
	case map[string]any:
		if v == nil {
			return q, nil
		}
	case []string:
		if v == nil {
			return q, nil
		}
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", column, err)
	}
	return q.Set(column+" = ?", string(raw)), nil
}

func oneRowChanged(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

var _ lifecycle.Store = (*JobStore)(nil)
