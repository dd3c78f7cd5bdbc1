package cmd

import (
	"context"
	"fmt"

	"github.com/openprep/prepflow/pkg/api/config"
	"github.com/openprep/prepflow/pkg/blob"
)

// newBlobStore builds the artifact storage backend selected by config.
func newBlobStore(ctx context.Context, cfg *config.EnvConfig) (blob.Store, error) {
	switch cfg.StorageBackend {
	case "s3":
		store, err := blob.NewS3Store(blob.S3Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			UseSSL:    cfg.S3UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize s3 storage: %w", err)
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure bucket: %w", err)
		}
		return store, nil
	default:
		store, err := blob.NewLocalStore(cfg.LocalStoragePath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize local storage: %w", err)
		}
		return store, nil
	}
}
