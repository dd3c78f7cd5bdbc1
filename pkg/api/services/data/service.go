// Package data manages data artifacts: records in the database, bytes in
// the blob store.
package data

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/openprep/prepflow/pkg/blob"
	"github.com/openprep/prepflow/pkg/db/models"
	"github.com/openprep/prepflow/pkg/plog"
)

var (
	ErrNotFound    = errors.New("artifact not found")
	ErrTooLarge    = errors.New("artifact exceeds the upload size limit")
	ErrBadFilename = errors.New("invalid filename")
)

// DefaultSampleBytes is how much of an artifact the preview endpoint reads.
const DefaultSampleBytes = 4096

// ArtifactStore is the slice of artifact persistence the service needs.
type ArtifactStore interface {
	Insert(ctx context.Context, a *models.DataArtifact) error
	// Get returns (nil, nil) when the id does not exist.
	Get(ctx context.Context, id uuid.UUID) (*models.DataArtifact, error)
	List(ctx context.Context, offset, limit int) ([]models.DataArtifact, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

// Service owns the artifact lifecycle. Records and bytes are written
// blob-first so a crash never leaves a record pointing at nothing.
type Service struct {
	store    ArtifactStore
	blobs    blob.Store
	maxBytes int64
	logger   *plog.Logger
}

func NewService(store ArtifactStore, blobs blob.Store, maxBytes int64, logger *plog.Logger) *Service {
	if logger == nil {
		logger = plog.NewDefault()
	}
	return &Service{store: store, blobs: blobs, maxBytes: maxBytes, logger: logger}
}

// Upload stores the reader's bytes and records the artifact. The reader is
// capped at the configured upload limit.
func (s *Service) Upload(ctx context.Context, filename, contentType string, r io.Reader) (*models.DataArtifact, error) {
	filename = sanitizeFilename(filename)
	if filename == "" {
		return nil, ErrBadFilename
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}

	limited := io.LimitReader(r, s.maxBytes+1)
	key := blob.ArtifactKey(id.String(), filename)
	if _, err := s.blobs.Save(ctx, key, limited); err != nil {
		return nil, fmt.Errorf("failed to store artifact: %w", err)
	}

	size, err := s.blobs.Size(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to stat artifact: %w", err)
	}
	if size > s.maxBytes {
		_ = s.blobs.Delete(ctx, key)
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, s.maxBytes)
	}

	artifact := &models.DataArtifact{
		ID:          id,
		Filename:    filename,
		StoragePath: key,
		SizeBytes:   size,
		ContentType: contentType,
		Metadata:    map[string]any{"kind": "upload"},
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.Insert(ctx, artifact); err != nil {
		_ = s.blobs.Delete(ctx, key)
		return nil, fmt.Errorf("failed to record artifact: %w", err)
	}

	s.logger.Info("artifact uploaded", "artifact_id", id, "filename", filename, "size", size)
	return artifact, nil
}

// Get returns the artifact record.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.DataArtifact, error) {
	artifact, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if artifact == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return artifact, nil
}

// List returns artifact records, newest first.
func (s *Service) List(ctx context.Context, offset, limit int) ([]models.DataArtifact, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.List(ctx, offset, limit)
}

// Open returns the artifact record together with its stored bytes.
func (s *Service) Open(ctx context.Context, id uuid.UUID) (*models.DataArtifact, []byte, error) {
	artifact, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	content, err := s.blobs.Load(ctx, artifact.StoragePath)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: bytes missing for %s", ErrNotFound, id)
		}
		return nil, nil, err
	}
	return artifact, content, nil
}

// Sample returns the leading bytes of an artifact for preview, coerced to
// valid UTF-8.
func (s *Service) Sample(ctx context.Context, id uuid.UUID, maxBytes int) (*models.DataArtifact, string, bool, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultSampleBytes
	}

	artifact, content, err := s.Open(ctx, id)
	if err != nil {
		return nil, "", false, err
	}

	truncated := len(content) > maxBytes
	if truncated {
		content = content[:maxBytes]
	}
	return artifact, strings.ToValidUTF8(string(content), string(utf8.RuneError)), truncated, nil
}

// Delete removes the record and the stored bytes. Blob deletion is
// best-effort after the record is gone.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	artifact, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	ok, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if err := s.blobs.Delete(ctx, artifact.StoragePath); err != nil {
		s.logger.Warn("failed to delete artifact bytes", "artifact_id", id, "error", err)
	}

	s.logger.Info("artifact deleted", "artifact_id", id)
	return nil
}

// sanitizeFilename strips any path components, keeping just the base name.
func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, "/\\"); i >= 0 {
		name = name[i+1:]
	}
	if name == "." || name == ".." {
		return ""
	}
	return name
}
