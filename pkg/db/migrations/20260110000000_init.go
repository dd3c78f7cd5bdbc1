package migrations

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/openprep/prepflow/pkg/db/models"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		for _, model := range []any{
			(*models.User)(nil),
			(*models.Workflow)(nil),
			(*models.DataArtifact)(nil),
			(*models.Job)(nil),
		} {
			if _, err := db.NewCreateTable().
				Model(model).
				IfNotExists().
				Exec(ctx); err != nil {
				return err
			}
		}

		for _, stmt := range []string{
			"CREATE INDEX IF NOT EXISTS jobs_status_idx ON jobs (status)",
			"CREATE INDEX IF NOT EXISTS jobs_workflow_id_idx ON jobs (workflow_id)",
			"CREATE INDEX IF NOT EXISTS jobs_created_at_idx ON jobs (created_at DESC)",
			"CREATE INDEX IF NOT EXISTS data_artifacts_created_at_idx ON data_artifacts (created_at DESC)",
			"CREATE INDEX IF NOT EXISTS workflows_name_idx ON workflows (name)",
		} {
			if _, err := db.NewRaw(stmt).Exec(ctx); err != nil {
				return err
			}
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		for _, model := range []any{
			(*models.Job)(nil),
			(*models.DataArtifact)(nil),
			(*models.Workflow)(nil),
			(*models.User)(nil),
		} {
			if _, err := db.NewDropTable().
				Model(model).
				IfExists().
				Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}
