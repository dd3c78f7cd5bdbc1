package db

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	"github.com/openprep/prepflow/pkg/db/migrations"
	"github.com/openprep/prepflow/pkg/plog"
)

// Migrate runs the database migrations.
func Migrate(ctx context.Context, bunDB *bun.DB, logger *plog.Logger) error {
	migrator := migrate.NewMigrator(bunDB, migrations.Migrations)

	if err := migrator.Init(ctx); err != nil {
		return fmt.Errorf("failed to init migrations: %w", err)
	}

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}

	if group.ID == 0 {
		logger.Info("database is up to date")
		return nil
	}

	logger.Info("migrated database", "group", group.String())
	return nil
}
