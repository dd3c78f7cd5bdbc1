package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/openprep/prepflow/pkg/db/models"
)

// UserStore persists registered accounts.
type UserStore struct {
	db *bun.DB
}

func NewUserStore(bunDB *bun.DB) *UserStore {
	return &UserStore{db: bunDB}
}

func (s *UserStore) Insert(ctx context.Context, u *models.User) error {
	_, err := s.db.NewInsert().Model(u).Exec(ctx)
	return err
}

// Get returns (nil, nil) when the id does not exist.
func (s *UserStore) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u := new(models.User)
	err := s.db.NewSelect().Model(u).Where("u.id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

// GetByUsername returns (nil, nil) when no such user exists.
func (s *UserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	u := new(models.User)
	err := s.db.NewSelect().Model(u).Where("u.username = ?", username).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

// GetByEmail returns (nil, nil) when no such user exists.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	u := new(models.User)
	err := s.db.NewSelect().Model(u).Where("u.email = ?", email).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}
