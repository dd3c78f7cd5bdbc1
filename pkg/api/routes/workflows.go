package routes

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/openprep/prepflow/pkg/api/schemas"
	"github.com/openprep/prepflow/pkg/api/services/iam"
	"github.com/openprep/prepflow/pkg/db/models"
	"github.com/openprep/prepflow/pkg/engine"
	"github.com/openprep/prepflow/pkg/lifecycle"
)

// WorkflowStore is the persistence surface the workflow routes need.
type WorkflowStore interface {
	Insert(ctx context.Context, wf *models.Workflow) error
	Get(ctx context.Context, id uuid.UUID) (*models.Workflow, error)
	List(ctx context.Context, offset, limit int) ([]models.Workflow, error)
	Update(ctx context.Context, wf *models.Workflow) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

// CreateWorkflowInput defines the input for creating a workflow
type CreateWorkflowInput struct {
	Body schemas.WorkflowRequest
}

// WorkflowOutput is the response carrying a single workflow
type WorkflowOutput struct {
	Status int
	Body   schemas.WorkflowResponse
}

// GetWorkflowInput defines the input for getting a workflow
type GetWorkflowInput struct {
	WorkflowID string `path:"workflowId" doc:"Workflow ID"`
}

// UpdateWorkflowInput defines the input for updating a workflow
type UpdateWorkflowInput struct {
	WorkflowID string `path:"workflowId" doc:"Workflow ID"`
	Body       schemas.WorkflowRequest
}

// DeleteWorkflowInput defines the input for deleting a workflow
type DeleteWorkflowInput struct {
	WorkflowID string `path:"workflowId" doc:"Workflow ID"`
}

// ListWorkflowsInput defines the input for listing workflows
type ListWorkflowsInput struct {
	Offset int `query:"offset" minimum:"0" doc:"Items to skip" required:"false"`
	Limit  int `query:"limit" minimum:"1" maximum:"500" doc:"Page size" required:"false"`
}

// ListWorkflowsOutput is the response for listing workflows
type ListWorkflowsOutput struct {
	Body struct {
		Workflows []schemas.WorkflowResponse `json:"workflows" doc:"List of workflows"`
	}
}

// ExecuteWorkflowInput defines the input for executing a workflow
type ExecuteWorkflowInput struct {
	WorkflowID string `path:"workflowId" doc:"Workflow ID"`
	Body       struct {
		InputDataID string         `json:"input_data_id,omitempty" doc:"Input artifact"`
		Parameters  map[string]any `json:"parameters,omitempty" doc:"Execution parameters"`
	}
}

// RegisterWorkflows registers workflow CRUD and execution routes
func RegisterWorkflows(api huma.API, store WorkflowStore, jobs *lifecycle.Manager, iamSvc *iam.IAMService) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-workflow",
		Method:        http.MethodPost,
		Path:          "/api/v1/workflows",
		Summary:       "Create a workflow",
		Tags:          []string{TagWorkflows.String()},
		Security:      BearerAuth,
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *CreateWorkflowInput) (*WorkflowOutput, error) {
		if _, err := principal(ctx, iamSvc); err != nil {
			return nil, err
		}

		steps, err := toEngineSteps(input.Body.Steps)
		if err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}

		id, err := uuid.NewV7()
		if err != nil {
			return nil, mapError(err)
		}

		now := time.Now().UTC()
		wf := &models.Workflow{
			ID:           id,
			Name:         input.Body.Name,
			Description:  input.Body.Description,
			Steps:        steps,
			GlobalConfig: input.Body.GlobalConfig,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := store.Insert(ctx, wf); err != nil {
			return nil, mapError(err)
		}

		return &WorkflowOutput{Status: http.StatusCreated, Body: toWorkflowResponse(wf)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-workflows",
		Method:      http.MethodGet,
		Path:        "/api/v1/workflows",
		Summary:     "List workflows",
		Tags:        []string{TagWorkflows.String()},
		Security:    BearerAuth,
	}, func(ctx context.Context, input *ListWorkflowsInput) (*ListWorkflowsOutput, error) {
		if _, err := principal(ctx, iamSvc); err != nil {
			return nil, err
		}

		limit := input.Limit
		if limit <= 0 {
			limit = 100
		}
		wfs, err := store.List(ctx, input.Offset, limit)
		if err != nil {
			return nil, mapError(err)
		}

		resp := &ListWorkflowsOutput{}
		resp.Body.Workflows = make([]schemas.WorkflowResponse, len(wfs))
		for i := range wfs {
			resp.Body.Workflows[i] = toWorkflowResponse(&wfs[i])
		}
		return resp, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-workflow",
		Method:      http.MethodGet,
		Path:        "/api/v1/workflows/{workflowId}",
		Summary:     "Get workflow details",
		Tags:        []string{TagWorkflows.String()},
		Security:    BearerAuth,
	}, func(ctx context.Context, input *GetWorkflowInput) (*WorkflowOutput, error) {
		if _, err := principal(ctx, iamSvc); err != nil {
			return nil, err
		}

		id, err := uuid.Parse(input.WorkflowID)
		if err != nil {
			return nil, huma.Error400BadRequest("invalid workflow ID")
		}
		wf, err := store.Get(ctx, id)
		if err != nil {
			return nil, mapError(err)
		}
		if wf == nil {
			return nil, huma.Error404NotFound("workflow not found")
		}
		return &WorkflowOutput{Body: toWorkflowResponse(wf)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-workflow",
		Method:      http.MethodPut,
		Path:        "/api/v1/workflows/{workflowId}",
		Summary:     "Update a workflow",
		Description: "Replaces the workflow definition. Jobs created earlier keep the step sequence they snapshotted.",
		Tags:        []string{TagWorkflows.String()},
		Security:    BearerAuth,
	}, func(ctx context.Context, input *UpdateWorkflowInput) (*WorkflowOutput, error) {
		if _, err := principal(ctx, iamSvc); err != nil {
			return nil, err
		}

		id, err := uuid.Parse(input.WorkflowID)
		if err != nil {
			return nil, huma.Error400BadRequest("invalid workflow ID")
		}
		steps, err := toEngineSteps(input.Body.Steps)
		if err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}

		wf := &models.Workflow{
			ID:           id,
			Name:         input.Body.Name,
			Description:  input.Body.Description,
			Steps:        steps,
			GlobalConfig: input.Body.GlobalConfig,
		}
		ok, err := store.Update(ctx, wf)
		if err != nil {
			return nil, mapError(err)
		}
		if !ok {
			return nil, huma.Error404NotFound("workflow not found")
		}

		updated, err := store.Get(ctx, id)
		if err != nil {
			return nil, mapError(err)
		}
		return &WorkflowOutput{Body: toWorkflowResponse(updated)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-workflow",
		Method:      http.MethodDelete,
		Path:        "/api/v1/workflows/{workflowId}",
		Summary:     "Delete a workflow",
		Description: "Deletes the definition. Existing jobs keep their snapshotted steps and are not affected.",
		Tags:        []string{TagWorkflows.String()},
		Security:    BearerAuth,
	}, func(ctx context.Context, input *DeleteWorkflowInput) (*struct{}, error) {
		if _, err := principal(ctx, iamSvc); err != nil {
			return nil, err
		}

		id, err := uuid.Parse(input.WorkflowID)
		if err != nil {
			return nil, huma.Error400BadRequest("invalid workflow ID")
		}
		ok, err := store.Delete(ctx, id)
		if err != nil {
			return nil, mapError(err)
		}
		if !ok {
			return nil, huma.Error404NotFound("workflow not found")
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "execute-workflow",
		Method:        http.MethodPost,
		Path:          "/api/v1/workflows/{workflowId}/execute",
		Summary:       "Execute a workflow",
		Description:   "Creates a job from the workflow's current step sequence and hands it to the execution queue.",
		Tags:          []string{TagWorkflows.String()},
		Security:      BearerAuth,
		DefaultStatus: http.StatusAccepted,
	}, func(ctx context.Context, input *ExecuteWorkflowInput) (*JobOutput, error) {
		if _, err := principal(ctx, iamSvc); err != nil {
			return nil, err
		}

		id, err := uuid.Parse(input.WorkflowID)
		if err != nil {
			return nil, huma.Error400BadRequest("invalid workflow ID")
		}
		wf, err := store.Get(ctx, id)
		if err != nil {
			return nil, mapError(err)
		}
		if wf == nil {
			return nil, huma.Error404NotFound("workflow not found")
		}

		params := lifecycle.CreateParams{
			WorkflowID: &wf.ID,
			Parameters: input.Body.Parameters,
			Steps:      wf.Steps,
		}
		if input.Body.InputDataID != "" {
			inputID, err := uuid.Parse(input.Body.InputDataID)
			if err != nil {
				return nil, huma.Error400BadRequest("invalid input data ID")
			}
			params.InputDataID = &inputID
		}

		job, err := jobs.Create(ctx, params)
		if err != nil {
			return nil, mapError(err)
		}
		enqueued, err := jobs.Enqueue(ctx, job.ID)
		if err != nil {
			return nil, mapError(err)
		}

		return &JobOutput{Status: http.StatusAccepted, Body: toJobResponse(enqueued)}, nil
	})
}

// toEngineSteps validates and converts API step payloads.
func toEngineSteps(in []schemas.WorkflowStep) ([]engine.Step, error) {
	steps := make([]engine.Step, len(in))
	for i, s := range in {
		t := engine.StepType(s.Type)
		switch t {
		case engine.StepLoading, engine.StepPreparing, engine.StepValidation:
		default:
			return nil, fmt.Errorf("step %d: unknown step type %q", i, s.Type)
		}
		steps[i] = engine.Step{
			Type:            t,
			Config:          s.Config,
			RequireApproval: s.RequireApproval,
		}
	}
	return steps, nil
}

func toSchemaSteps(in []engine.Step) []schemas.WorkflowStep {
	steps := make([]schemas.WorkflowStep, len(in))
	for i, s := range in {
		steps[i] = schemas.WorkflowStep{
			Type:            string(s.Type),
			Config:          s.Config,
			RequireApproval: s.RequireApproval,
		}
	}
	return steps
}

func toWorkflowResponse(wf *models.Workflow) schemas.WorkflowResponse {
	return schemas.WorkflowResponse{
		ID:           wf.ID.String(),
		Name:         wf.Name,
		Description:  wf.Description,
		Steps:        toSchemaSteps(wf.Steps),
		GlobalConfig: wf.GlobalConfig,
		CreatedAt:    wf.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    wf.UpdatedAt.Format(time.RFC3339),
	}
}
