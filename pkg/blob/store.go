// Package blob provides key-addressed byte storage for data artifacts,
// backed by the local filesystem or S3-compatible object storage.
package blob

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when a key does not exist in the backend.
var ErrNotFound = errors.New("blob: key not found")

// Store is the storage backend contract. Keys are opaque, unique per
// artifact, and written by a single writer, so no locking is needed.
type Store interface {
	// Save writes the reader's bytes under key and returns the backend
	// location (a filesystem path or object URL).
	Save(ctx context.Context, key string, r io.Reader) (string, error)

	// Load reads all bytes stored under key. Returns ErrNotFound if the
	// key does not exist.
	Load(ctx context.Context, key string) ([]byte, error)

	// Delete removes the key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether the key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// Size returns the stored size in bytes. Returns ErrNotFound if the
	// key does not exist.
	Size(ctx context.Context, key string) (int64, error)
}

// ArtifactKey returns the storage key for an uploaded artifact.
func ArtifactKey(artifactID, filename string) string {
	return "artifacts/" + artifactID + "/" + filename
}

// ResultKey returns the storage key for a job result artifact.
func ResultKey(artifactID, filename string) string {
	return "results/" + artifactID + "/" + filename
}
