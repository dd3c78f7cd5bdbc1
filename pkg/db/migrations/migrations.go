// Package migrations registers the schema migrations applied by db.Migrate.
package migrations

import "github.com/uptrace/bun/migrate"

var Migrations = migrate.NewMigrations()
