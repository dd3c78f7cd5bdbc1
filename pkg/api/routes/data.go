package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/openprep/prepflow/pkg/api/schemas"
	"github.com/openprep/prepflow/pkg/api/services/data"
	"github.com/openprep/prepflow/pkg/api/services/iam"
	"github.com/openprep/prepflow/pkg/db/models"
)

// GetArtifactInput defines the input for getting an artifact record
type GetArtifactInput struct {
	ArtifactID string `path:"artifactId" doc:"Artifact ID"`
}

// ArtifactOutput is the response carrying a single artifact record
type ArtifactOutput struct {
	Body schemas.ArtifactResponse
}

// ListArtifactsInput defines the input for listing artifacts
type ListArtifactsInput struct {
	Offset int `query:"offset" minimum:"0" doc:"Items to skip" required:"false"`
	Limit  int `query:"limit" minimum:"1" maximum:"500" doc:"Page size" required:"false"`
}

// ListArtifactsOutput is the response for listing artifacts
type ListArtifactsOutput struct {
	Body struct {
		Artifacts []schemas.ArtifactResponse `json:"artifacts" doc:"List of artifacts"`
	}
}

// SampleArtifactInput defines the input for previewing artifact content
type SampleArtifactInput struct {
	ArtifactID string `path:"artifactId" doc:"Artifact ID"`
	MaxBytes   int    `query:"max_bytes" minimum:"1" maximum:"65536" doc:"Sample size in bytes" required:"false"`
}

// SampleArtifactOutput is the response for previewing artifact content
type SampleArtifactOutput struct {
	Body schemas.ArtifactSampleResponse
}

// DeleteArtifactInput defines the input for deleting an artifact
type DeleteArtifactInput struct {
	ArtifactID string `path:"artifactId" doc:"Artifact ID"`
}

// RegisterData registers artifact record routes. Upload and download move
// raw bytes and live on the router directly; see RegisterRawHandlers.
func RegisterData(api huma.API, svc *data.Service, iamSvc *iam.IAMService) {
	huma.Register(api, huma.Operation{
		OperationID: "list-artifacts",
		Method:      http.MethodGet,
		Path:        "/api/v1/data",
		Summary:     "List data artifacts",
		Tags:        []string{TagData.String()},
		Security:    BearerAuth,
	}, func(ctx context.Context, input *ListArtifactsInput) (*ListArtifactsOutput, error) {
		if _, err := principal(ctx, iamSvc); err != nil {
			return nil, err
		}

		artifacts, err := svc.List(ctx, input.Offset, input.Limit)
		if err != nil {
			return nil, mapError(err)
		}

		resp := &ListArtifactsOutput{}
		resp.Body.Artifacts = make([]schemas.ArtifactResponse, len(artifacts))
		for i := range artifacts {
			resp.Body.Artifacts[i] = toArtifactResponse(&artifacts[i])
		}
		return resp, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-artifact",
		Method:      http.MethodGet,
		Path:        "/api/v1/data/{artifactId}",
		Summary:     "Get artifact details",
		Tags:        []string{TagData.String()},
		Security:    BearerAuth,
	}, func(ctx context.Context, input *GetArtifactInput) (*ArtifactOutput, error) {
		if _, err := principal(ctx, iamSvc); err != nil {
			return nil, err
		}

		id, err := uuid.Parse(input.ArtifactID)
		if err != nil {
			return nil, huma.Error400BadRequest("invalid artifact ID")
		}
		artifact, err := svc.Get(ctx, id)
		if err != nil {
			return nil, mapError(err)
		}
		return &ArtifactOutput{Body: toArtifactResponse(artifact)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "sample-artifact",
		Method:      http.MethodGet,
		Path:        "/api/v1/data/{artifactId}/sample",
		Summary:     "Preview artifact content",
		Description: "Returns the leading bytes of the artifact for inspection.",
		Tags:        []string{TagData.String()},
		Security:    BearerAuth,
	}, func(ctx context.Context, input *SampleArtifactInput) (*SampleArtifactOutput, error) {
		if _, err := principal(ctx, iamSvc); err != nil {
			return nil, err
		}

		id, err := uuid.Parse(input.ArtifactID)
		if err != nil {
			return nil, huma.Error400BadRequest("invalid artifact ID")
		}
		artifact, sample, truncated, err := svc.Sample(ctx, id, input.MaxBytes)
		if err != nil {
			return nil, mapError(err)
		}

		resp := &SampleArtifactOutput{}
		resp.Body = schemas.ArtifactSampleResponse{
			ID:          artifact.ID.String(),
			Filename:    artifact.Filename,
			ContentType: artifact.ContentType,
			Sample:      sample,
			Truncated:   truncated,
		}
		return resp, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-artifact",
		Method:      http.MethodDelete,
		Path:        "/api/v1/data/{artifactId}",
		Summary:     "Delete an artifact",
		Description: "Removes the record and the stored bytes.",
		Tags:        []string{TagData.String()},
		Security:    BearerAuth,
	}, func(ctx context.Context, input *DeleteArtifactInput) (*struct{}, error) {
		if _, err := principal(ctx, iamSvc); err != nil {
			return nil, err
		}

		id, err := uuid.Parse(input.ArtifactID)
		if err != nil {
			return nil, huma.Error400BadRequest("invalid artifact ID")
		}
		if err := svc.Delete(ctx, id); err != nil {
			return nil, mapError(err)
		}
		return &struct{}{}, nil
	})
}

func toArtifactResponse(a *models.DataArtifact) schemas.ArtifactResponse {
	return schemas.ArtifactResponse{
		ID:          a.ID.String(),
		Filename:    a.Filename,
		SizeBytes:   a.SizeBytes,
		ContentType: a.ContentType,
		Metadata:    a.Metadata,
		CreatedAt:   a.CreatedAt.Format(time.RFC3339),
	}
}
