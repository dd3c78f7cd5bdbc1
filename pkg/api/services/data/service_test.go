package data_test

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openprep/prepflow/pkg/api/services/data"
	"github.com/openprep/prepflow/pkg/blob"
	"github.com/openprep/prepflow/pkg/db/models"
)

type memArtifacts struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*models.DataArtifact
}

func newMemArtifacts() *memArtifacts {
	return &memArtifacts{rows: make(map[uuid.UUID]*models.DataArtifact)}
}

func (m *memArtifacts) Insert(ctx context.Context, a *models.DataArtifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.rows[a.ID] = &cp
	return nil
}

func (m *memArtifacts) Get(ctx context.Context, id uuid.UUID) (*models.DataArtifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (m *memArtifacts) List(ctx context.Context, offset, limit int) ([]models.DataArtifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.DataArtifact
	for _, a := range m.rows {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memArtifacts) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return false, nil
	}
	delete(m.rows, id)
	return true, nil
}

func newService(t *testing.T, maxBytes int64) (*data.Service, *blob.LocalStore) {
	t.Helper()
	blobs, err := blob.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	return data.NewService(newMemArtifacts(), blobs, maxBytes, nil), blobs
}

func TestUploadAndOpenRoundTrip(t *testing.T) {
	svc, _ := newService(t, 1<<20)
	ctx := context.Background()

	artifact, err := svc.Upload(ctx, "input.csv", "text/csv", strings.NewReader("a,b\n1,2\n"))
	require.NoError(t, err)
	assert.Equal(t, "input.csv", artifact.Filename)
	assert.Equal(t, int64(8), artifact.SizeBytes)
	assert.Equal(t, "text/csv", artifact.ContentType)

	got, content, err := svc.Open(ctx, artifact.ID)
	require.NoError(t, err)
	assert.Equal(t, artifact.ID, got.ID)
	assert.Equal(t, "a,b\n1,2\n", string(content))
}

func TestUploadStripsPathComponents(t *testing.T) {
	svc, _ := newService(t, 1<<20)

	artifact, err := svc.Upload(context.Background(), "../../etc/passwd", "", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, "passwd", artifact.Filename)

	_, err = svc.Upload(context.Background(), "..", "", strings.NewReader("x"))
	require.ErrorIs(t, err, data.ErrBadFilename)
}

func TestUploadEnforcesSizeLimit(t *testing.T) {
	svc, _ := newService(t, 8)

	_, err := svc.Upload(context.Background(), "big.bin", "", strings.NewReader("123456789"))
	require.ErrorIs(t, err, data.ErrTooLarge)
}

func TestSampleTruncates(t *testing.T) {
	svc, _ := newService(t, 1<<20)
	ctx := context.Background()

	artifact, err := svc.Upload(ctx, "data.txt", "text/plain", strings.NewReader("hello world"))
	require.NoError(t, err)

	_, sample, truncated, err := svc.Sample(ctx, artifact.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, "hello", sample)
	assert.True(t, truncated)

	_, sample, truncated, err = svc.Sample(ctx, artifact.ID, 100)
	require.NoError(t, err)
	assert.Equal(t, "hello world", sample)
	assert.False(t, truncated)
}

func TestDeleteRemovesRecordAndBytes(t *testing.T) {
	svc, blobs := newService(t, 1<<20)
	ctx := context.Background()

	artifact, err := svc.Upload(ctx, "gone.txt", "", strings.NewReader("bye"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, artifact.ID))

	_, err = svc.Get(ctx, artifact.ID)
	require.ErrorIs(t, err, data.ErrNotFound)

	exists, err := blobs.Exists(ctx, artifact.StoragePath)
	require.NoError(t, err)
	assert.False(t, exists)

	// Deleting again reports not found.
	require.ErrorIs(t, svc.Delete(ctx, artifact.ID), data.ErrNotFound)
}

func TestGetUnknownArtifact(t *testing.T) {
	svc, _ := newService(t, 1<<20)

	_, err := svc.Get(context.Background(), uuid.New())
	require.ErrorIs(t, err, data.ErrNotFound)
}
