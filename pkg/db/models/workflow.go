package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/openprep/prepflow/pkg/engine"
)

// Workflow is a named, ordered step configuration. Jobs snapshot the step
// sequence at creation time, so editing a workflow never changes jobs that
// already exist.
type Workflow struct {
	bun.BaseModel `bun:"table:workflows,alias:w"`

	ID           uuid.UUID      `bun:"type:uuid,pk"`
	Name         string         `bun:",notnull"`
	Description  string         `bun:",nullzero"`
	Steps        []engine.Step  `bun:"type:jsonb,notnull"`
	GlobalConfig map[string]any `bun:"type:jsonb"`

	CreatedAt time.Time `bun:",notnull"`
	UpdatedAt time.Time `bun:",notnull"`
}
