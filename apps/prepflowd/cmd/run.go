package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/openprep/prepflow/pkg/api"
	"github.com/openprep/prepflow/pkg/api/config"
	"github.com/openprep/prepflow/pkg/api/routes"
	"github.com/openprep/prepflow/pkg/api/services"
	"github.com/openprep/prepflow/pkg/db"
	"github.com/openprep/prepflow/pkg/kv"
	"github.com/openprep/prepflow/pkg/plog"
	"github.com/openprep/prepflow/pkg/queue"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the API server",
	Long:  `Starts the HTTP API server: typed REST operations, artifact upload/download, and the job status websocket.`,
	Run:   run,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func run(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	cfg, err := config.ValidateEnv()
	if err != nil {
		log.Fatalf("❌ %v\n", err)
	}

	cfg.Print(log.Printf)

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

	kvStore, err := kv.NewRedisStore(kv.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		log.Fatalf("failed to initialize kv store: %v", err)
	}
	defer kvStore.Close()

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

	svcs, err := services.NewServices(cfg, database, kvStore, q, blobs, logger)
	if err != nil {
		log.Fatalf("failed to initialize services: %v", err)
	}

	a := api.NewApi()
	a.Api.UseMiddleware(svcs.IAM.Middleware())
	routes.RegisterAPI(a.Api, svcs)
	routes.RegisterRawHandlers(a.Router, svcs, logger)

	addr := fmt.Sprintf(":%s", cfg.Port)

	log.Printf("🚀 API server starting on %s\n", addr)
	log.Printf("📚 OpenAPI docs: http://localhost%s/docs\n", addr)
	log.Printf("📄 OpenAPI spec: http://localhost%s/openapi.json\n", addr)

	if err := http.ListenAndServe(addr, a.Router); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}
