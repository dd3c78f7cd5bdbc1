package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DataArtifact is a record of bytes held in the blob store. Artifacts live
// independently of the jobs that reference them.
type DataArtifact struct {
	bun.BaseModel `bun:"table:data_artifacts,alias:a"`

	ID          uuid.UUID      `bun:"type:uuid,pk"`
	Filename    string         `bun:",notnull"`
	StoragePath string         `bun:",notnull"`
	SizeBytes   int64          `bun:",notnull,default:0"`
	ContentType string         `bun:",nullzero"`
	Metadata    map[string]any `bun:"type:jsonb"`

	CreatedAt time.Time `bun:",notnull"`
}
