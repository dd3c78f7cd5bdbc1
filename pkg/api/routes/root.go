package routes

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/openprep/prepflow/pkg/api/schemas"
	"github.com/openprep/prepflow/pkg/api/services"
	"github.com/openprep/prepflow/pkg/api/services/data"
	"github.com/openprep/prepflow/pkg/api/services/iam"
	"github.com/openprep/prepflow/pkg/lifecycle"
)

type Tag string

func (t Tag) String() string { return string(t) }

const (
	TagAuth      Tag = "Auth"
	TagIam       Tag = "IAM"
	TagWorkflows Tag = "Workflows"
	TagJobs      Tag = "Jobs"
	TagData      Tag = "Data"
	TagSystem    Tag = "System"
)

// BearerAuth marks an operation as requiring the bearer security scheme.
var BearerAuth = []map[string][]string{{"bearer": {}}}

// RegisterAPI registers every typed operation.
func RegisterAPI(api huma.API, svcs *services.Services) {
	RegisterHealth(api)
	RegisterAuth(api, svcs.Auth, svcs.IAM)
	RegisterWorkflows(api, svcs.Workflows, svcs.Jobs, svcs.IAM)
	RegisterJobs(api, svcs.Jobs, svcs.Workflows, svcs.IAM)
	RegisterData(api, svcs.Data, svcs.IAM)
}

// principal resolves the authenticated user or rejects with 401.
func principal(ctx context.Context, svc *iam.IAMService) (*schemas.User, error) {
	user, _ := svc.Get(ctx)
	if user == nil {
		return nil, huma.Error401Unauthorized("Authentication required")
	}
	return user, nil
}

// mapError converts domain errors into HTTP problem responses.
func mapError(err error) error {
	switch {
	case errors.Is(err, lifecycle.ErrNotFound), errors.Is(err, data.ErrNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, lifecycle.ErrNotCompleted),
		errors.Is(err, lifecycle.ErrValidation),
		errors.Is(err, data.ErrBadFilename):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, data.ErrTooLarge):
		// huma ships no 413 constructor.
		return huma.NewError(http.StatusRequestEntityTooLarge, err.Error())
	default:
		return huma.Error500InternalServerError(err.Error())
	}
}
