package cmd

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/openprep/prepflow/pkg/api/config"
	"github.com/openprep/prepflow/pkg/db"
	"github.com/openprep/prepflow/pkg/lifecycle"
	"github.com/openprep/prepflow/pkg/plog"
	"github.com/openprep/prepflow/pkg/queue"
	"github.com/openprep/prepflow/pkg/worker"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run an execution worker",
	Long:  `Starts a worker that consumes the job queue and executes jobs until interrupted.`,
	Run:   runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.ValidateEnv()
	if err != nil {
		log.Fatalf("❌ %v\n", err)
	}

	logger := plog.NewDefault()

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

	q, err := queue.NewRedisQueue(queue.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		log.Fatalf("failed to initialize queue: %v", err)
	}
	defer q.Close()

	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to initialize storage: %v", err)
	}

	manager := lifecycle.NewManager(db.NewJobStore(database), q, logger)

	w := worker.New(
		manager,
		db.NewArtifactStore(database),
		db.NewWorkflowStore(database),
		blobs,
		q,
		worker.Options{
			MaxJobRuntime: time.Duration(cfg.MaxJobRuntimeSeconds) * time.Second,
		},
		logger,
	)

	if err := w.Run(ctx); err != nil {
		log.Fatalf("worker error: %v", err)
	}
}
