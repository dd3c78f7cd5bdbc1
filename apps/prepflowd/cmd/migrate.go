package cmd

import (
	"context"
	"log"

	"github.com/spf13/cobra"

	"github.com/openprep/prepflow/pkg/api/config"
	"github.com/openprep/prepflow/pkg/db"
	"github.com/openprep/prepflow/pkg/plog"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Run:   runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	cfg, err := config.ValidateEnv()
	if err != nil {
		log.Fatalf("❌ %v\n", err)
	}

	database, err := db.New(ctx, db.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Database: cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	})
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	defer database.Close()

	if err := db.Migrate(ctx, database, plog.NewDefault()); err != nil {
		log.Fatalf("migration failed: %v", err)
	}
}
