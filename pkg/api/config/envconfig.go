package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type EnvConfig struct {
	Port        string `envconfig:"PORT" default:"8000"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	AuthSecret      string `envconfig:"AUTH_SECRET" required:"true"`
	AccessTokenTTL  int    `envconfig:"ACCESS_TOKEN_TTL" default:"3600"`
	RefreshTokenTTL int    `envconfig:"REFRESH_TOKEN_TTL" default:"2592000"` // 30 days

	DBHost     string `envconfig:"DB_HOST" default:"localhost"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"prepflow"`
	DBPassword string `envconfig:"DB_PASSWORD" default:"password"`
	DBName     string `envconfig:"DB_NAME" default:"prepflow"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// StorageBackend selects where artifact bytes live: "local" or "s3".
	StorageBackend   string `envconfig:"STORAGE_BACKEND" default:"local"`
	LocalStoragePath string `envconfig:"LOCAL_STORAGE_PATH" default:"./data/storage"`
	S3Endpoint       string `envconfig:"S3_ENDPOINT"`
	S3AccessKey      string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey      string `envconfig:"S3_SECRET_KEY"`
	S3Bucket         string `envconfig:"S3_BUCKET" default:"prepflow"`
	S3UseSSL         bool   `envconfig:"S3_USE_SSL" default:"false"`

	// MaxJobRuntimeSeconds bounds a single job run on the worker.
	MaxJobRuntimeSeconds int `envconfig:"MAX_JOB_RUNTIME" default:"600"`

	// MaxUploadBytes bounds multipart artifact uploads.
	MaxUploadBytes int64 `envconfig:"MAX_UPLOAD_BYTES" default:"104857600"` // 100 MiB
}

func IsDev() bool {
	env := os.Getenv("ENVIRONMENT")
	return env == "" || env == "development"
}

func ValidateEnv() (*EnvConfig, error) {
	if IsDev() {
		if err := godotenv.Load(); err != nil {
			log.Println("ℹ No .env file found")
		} else {
			log.Println("✓ Loaded .env file")
		}
	}

	var cfg EnvConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var errors []string

	if len(cfg.AuthSecret) < 32 {
		errors = append(errors, "  ❌ AUTH_SECRET must be at least 32 characters")
	}

	switch cfg.StorageBackend {
	case "local":
		if cfg.LocalStoragePath == "" {
			errors = append(errors, "  ❌ LOCAL_STORAGE_PATH is required when STORAGE_BACKEND=local")
		}
	case "s3":
		if cfg.S3Endpoint == "" || cfg.S3AccessKey == "" || cfg.S3SecretKey == "" {
			errors = append(errors, "  ❌ S3_ENDPOINT, S3_ACCESS_KEY and S3_SECRET_KEY are required when STORAGE_BACKEND=s3")
		}
	default:
		errors = append(errors, fmt.Sprintf("  ❌ STORAGE_BACKEND must be \"local\" or \"s3\", got %q", cfg.StorageBackend))
	}

	if cfg.MaxJobRuntimeSeconds <= 0 {
		errors = append(errors, "  ❌ MAX_JOB_RUNTIME must be positive")
	}

	if len(errors) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n%s", strings.Join(errors, "\n"))
	}

	return &cfg, nil
}

func MaskSecret(secret string) string {
	if secret == "" {
		return "<not set>"
	}
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}

func (c *EnvConfig) Print(fmtr func(string, ...interface{})) {
	fmtr("📋 Configuration:\n")
	fmtr("  Environment: %s\n", c.Environment)
	fmtr("  Port: %s\n", c.Port)
	fmtr("  Auth Secret: %s\n", MaskSecret(c.AuthSecret))
	fmtr("  Database: %s@%s:%d/%s (sslmode=%s)\n", c.DBUser, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
	fmtr("  Redis: %s (db %d)\n", c.RedisAddr, c.RedisDB)
	fmtr("  Refresh TTL: %ds\n", c.RefreshTokenTTL)
	fmtr("  Max job runtime: %ds\n", c.MaxJobRuntimeSeconds)

	if c.StorageBackend == "s3" {
		fmtr("  Storage: s3 (%s, bucket %s)\n", c.S3Endpoint, c.S3Bucket)
		fmtr("    Access Key: %s\n", MaskSecret(c.S3AccessKey))
	} else {
		fmtr("  Storage: local (%s)\n", c.LocalStoragePath)
	}
}
