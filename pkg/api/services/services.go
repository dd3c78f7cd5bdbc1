package services

import (
	"github.com/uptrace/bun"

	"github.com/openprep/prepflow/pkg/api/config"
	"github.com/openprep/prepflow/pkg/api/services/accounts"
	"github.com/openprep/prepflow/pkg/api/services/data"
	"github.com/openprep/prepflow/pkg/api/services/iam"
	"github.com/openprep/prepflow/pkg/blob"
	"github.com/openprep/prepflow/pkg/db"
	"github.com/openprep/prepflow/pkg/kv"
	"github.com/openprep/prepflow/pkg/lifecycle"
	"github.com/openprep/prepflow/pkg/notify"
	"github.com/openprep/prepflow/pkg/plog"
	"github.com/openprep/prepflow/pkg/queue"
)

type Services struct {
	Auth      *accounts.AuthService
	IAM       *iam.IAMService
	Jobs      *lifecycle.Manager
	Workflows *db.WorkflowStore
	Data      *data.Service
	Hub       *notify.Hub
}

func NewServices(cfg *config.EnvConfig, bunDB *bun.DB, kvStore kv.Store, q queue.Queue, blobs blob.Store, logger *plog.Logger) (*Services, error) {
	if logger == nil {
		logger = plog.NewDefault()
	}

	authSvc := accounts.NewAuthService(cfg, db.NewUserStore(bunDB), kvStore, logger)
	iamSvc := iam.NewIAMService(authSvc)

	jobs := lifecycle.NewManager(db.NewJobStore(bunDB), q, logger)
	dataSvc := data.NewService(db.NewArtifactStore(bunDB), blobs, cfg.MaxUploadBytes, logger)
	hub := notify.NewHub(jobs, notify.DefaultPollInterval, logger)

	return &Services{
		Auth:      authSvc,
		IAM:       iamSvc,
		Jobs:      jobs,
		Workflows: db.NewWorkflowStore(bunDB),
		Data:      dataSvc,
		Hub:       hub,
	}, nil
}
