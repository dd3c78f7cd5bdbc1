package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/openprep/prepflow/pkg/db/models"
)

// WorkflowStore persists workflow definitions.
type WorkflowStore struct {
	db *bun.DB
}

func NewWorkflowStore(bunDB *bun.DB) *WorkflowStore {
	return &WorkflowStore{db: bunDB}
}

func (s *WorkflowStore) Insert(ctx context.Context, wf *models.Workflow) error {
	_, err := s.db.NewInsert().Model(wf).Exec(ctx)
	return err
}

// Get returns (nil, nil) when the id does not exist.
func (s *WorkflowStore) Get(ctx context.Context, id uuid.UUID) (*models.Workflow, error) {
	wf := new(models.Workflow)
	err := s.db.NewSelect().Model(wf).Where("w.id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return wf, nil
}

func (s *WorkflowStore) List(ctx context.Context, offset, limit int) ([]models.Workflow, error) {
	var wfs []models.Workflow
	err := s.db.NewSelect().
		Model(&wfs).
		Order("w.created_at DESC").
		Offset(offset).
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return wfs, nil
}

// Update overwrites the mutable fields of a workflow and bumps updated_at.
// Returns false when the id does not exist.
func (s *WorkflowStore) Update(ctx context.Context, wf *models.Workflow) (bool, error) {
	wf.UpdatedAt = time.Now().UTC()
	res, err := s.db.NewUpdate().
		Model(wf).
		Column("name", "description", "steps", "global_config", "updated_at").
		Where("w.id = ?", wf.ID).
		Exec(ctx)
	return oneRowChanged(res, err)
}

// Delete removes a workflow. Returns false when the id does not exist.
func (s *WorkflowStore) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.db.NewDelete().
		Model((*models.Workflow)(nil)).
		Where("w.id = ?", id).
		Exec(ctx)
	return oneRowChanged(res, err)
}
