package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/openprep/prepflow/pkg/db/models"
)

// ArtifactStore persists data artifact records. The bytes themselves live
// in the blob store; rows here only reference them.
type ArtifactStore struct {
	db *bun.DB
}

func NewArtifactStore(bunDB *bun.DB) *ArtifactStore {
	return &ArtifactStore{db: bunDB}
}

func (s *ArtifactStore) Insert(ctx context.Context, a *models.DataArtifact) error {
	_, err := s.db.NewInsert().Model(a).Exec(ctx)
	return err
}

// Get returns (nil, nil) when the id does not exist.
func (s *ArtifactStore) Get(ctx context.Context, id uuid.UUID) (*models.DataArtifact, error) {
	a := new(models.DataArtifact)
	err := s.db.NewSelect().Model(a).Where("a.id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

func (s *ArtifactStore) List(ctx context.Context, offset, limit int) ([]models.DataArtifact, error) {
	var artifacts []models.DataArtifact
	err := s.db.NewSelect().
		Model(&artifacts).
		Order("a.created_at DESC").
		Offset(offset).
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return artifacts, nil
}

// Delete removes an artifact record. Returns false when the id does not
// exist.
func (s *ArtifactStore) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.db.NewDelete().
		Model((*models.DataArtifact)(nil)).
		Where("a.id = ?", id).
		Exec(ctx)
	return oneRowChanged(res, err)
}
