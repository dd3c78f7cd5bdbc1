package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/openprep/prepflow/pkg/api/schemas"
	"github.com/openprep/prepflow/pkg/api/services/iam"
	"github.com/openprep/prepflow/pkg/db/models"
	"github.com/openprep/prepflow/pkg/lifecycle"
)

// CreateJobInput defines the input for creating a job
type CreateJobInput struct {
	Body schemas.CreateJobRequest
}

// JobOutput is the response carrying a single job
type JobOutput struct {
	Status int
	Body   schemas.JobResponse
}

// GetJobInput defines the input for getting a job
type GetJobInput struct {
	JobID string `path:"jobId" doc:"Job ID"`
}

// ExecuteJobInput defines the input for executing a job
type ExecuteJobInput struct {
	JobID string `path:"jobId" doc:"Job ID"`
}

// CancelJobInput defines the input for cancelling a job
type CancelJobInput struct {
	JobID string `path:"jobId" doc:"Job ID"`
}

// GetJobResultInput defines the input for fetching a job result
type GetJobResultInput struct {
	JobID string `path:"jobId" doc:"Job ID"`
}

// GetJobResultOutput is the response for fetching a job result
type GetJobResultOutput struct {
	Body schemas.JobResultResponse
}

// ListJobsInput defines the input for listing jobs
type ListJobsInput struct {
	WorkflowID string `query:"workflow_id" doc:"Filter by workflow" required:"false"`
	Status     string `query:"status" doc:"Filter by status" enum:"queued,running,completed,failed,cancelled" required:"false"`
	Offset     int    `query:"offset" minimum:"0" doc:"Items to skip" required:"false"`
	Limit      int    `query:"limit" minimum:"1" maximum:"500" doc:"Page size" required:"false"`
}

// ListJobsOutput is the response for listing jobs
type ListJobsOutput struct {
	Body struct {
		Jobs []schemas.JobResponse `json:"jobs" doc:"List of jobs"`
	}
}

// RegisterJobs registers job lifecycle routes
func RegisterJobs(api huma.API, jobs *lifecycle.Manager, workflows WorkflowStore, iamSvc *iam.IAMService) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-job",
		Method:        http.MethodPost,
		Path:          "/api/v1/jobs",
		Summary:       "Create a job",
		Description:   "Creates a job in the queued state. Execution starts only when the job is executed.",
		Tags:          []string{TagJobs.String()},
		Security:      BearerAuth,
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *CreateJobInput) (*JobOutput, error) {
		if _, err := principal(ctx, iamSvc); err != nil {
			return nil, err
		}

		if input.Body.WorkflowID == "" && len(input.Body.Steps) == 0 {
			return nil, huma.Error400BadRequest("either workflow_id or steps is required")
		}

		params := lifecycle.CreateParams{
			Parameters: input.Body.Parameters,
		}

		if input.Body.WorkflowID != "" {
			wfID, err := uuid.Parse(input.Body.WorkflowID)
			if err != nil {
				return nil, huma.Error400BadRequest("invalid workflow ID")
			}
			wf, err := workflows.Get(ctx, wfID)
			if err != nil {
				return nil, mapError(err)
			}
			if wf == nil {
				return nil, huma.Error404NotFound("workflow not found")
			}
			params.WorkflowID = &wf.ID
			// Snapshot the step sequence so later workflow edits do not
			// change this job.
			params.Steps = wf.Steps
		} else {
			steps, err := toEngineSteps(input.Body.Steps)
			if err != nil {
				return nil, huma.Error400BadRequest(err.Error())
			}
			params.Steps = steps
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
		return &JobOutput{Status: http.StatusCreated, Body: toJobResponse(job)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-jobs",
		Method:      http.MethodGet,
		Path:        "/api/v1/jobs",
		Summary:     "List jobs",
		Tags:        []string{TagJobs.String()},
		Security:    BearerAuth,
	}, func(ctx context.Context, input *ListJobsInput) (*ListJobsOutput, error) {
		if _, err := principal(ctx, iamSvc); err != nil {
			return nil, err
		}

		filter := lifecycle.ListFilter{Offset: input.Offset, Limit: input.Limit}
		if input.WorkflowID != "" {
			wfID, err := uuid.Parse(input.WorkflowID)
			if err != nil {
				return nil, huma.Error400BadRequest("invalid workflow ID")
			}
			filter.WorkflowID = &wfID
		}
		if input.Status != "" {
			status := models.JobStatus(input.Status)
			if !status.Valid() {
				return nil, huma.Error400BadRequest("invalid status filter")
			}
			filter.Status = &status
		}

		list, err := jobs.List(ctx, filter)
		if err != nil {
			return nil, mapError(err)
		}

		resp := &ListJobsOutput{}
		resp.Body.Jobs = make([]schemas.JobResponse, len(list))
		for i := range list {
			resp.Body.Jobs[i] = toJobResponse(&list[i])
		}
		return resp, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-job",
		Method:      http.MethodGet,
		Path:        "/api/v1/jobs/{jobId}",
		Summary:     "Get job details",
		Tags:        []string{TagJobs.String()},
		Security:    BearerAuth,
	}, func(ctx context.Context, input *GetJobInput) (*JobOutput, error) {
		if _, err := principal(ctx, iamSvc); err != nil {
			return nil, err
		}

		id, err := uuid.Parse(input.JobID)
		if err != nil {
			return nil, huma.Error400BadRequest("invalid job ID")
		}
		job, err := jobs.Get(ctx, id)
		if err != nil {
			return nil, mapError(err)
		}
		return &JobOutput{Body: toJobResponse(job)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "execute-job",
		Method:        http.MethodPost,
		Path:          "/api/v1/jobs/{jobId}/execute",
		Summary:       "Execute a job",
		Description:   "Hands a queued job to the execution queue. A job can be executed once.",
		Tags:          []string{TagJobs.String()},
		Security:      BearerAuth,
		DefaultStatus: http.StatusAccepted,
	}, func(ctx context.Context, input *ExecuteJobInput) (*JobOutput, error) {
		if _, err := principal(ctx, iamSvc); err != nil {
			return nil, err
		}

		id, err := uuid.Parse(input.JobID)
		if err != nil {
			return nil, huma.Error400BadRequest("invalid job ID")
		}
		job, err := jobs.Enqueue(ctx, id)
		if err != nil {
			return nil, mapError(err)
		}
		return &JobOutput{Status: http.StatusAccepted, Body: toJobResponse(job)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "cancel-job",
		Method:      http.MethodPost,
		Path:        "/api/v1/jobs/{jobId}/cancel",
		Summary:     "Cancel a job",
		Description: "Cancels a queued or running job. Terminal jobs cannot be cancelled.",
		Tags:        []string{TagJobs.String()},
		Security:    BearerAuth,
	}, func(ctx context.Context, input *CancelJobInput) (*JobOutput, error) {
		if _, err := principal(ctx, iamSvc); err != nil {
			return nil, err
		}

		id, err := uuid.Parse(input.JobID)
		if err != nil {
			return nil, huma.Error400BadRequest("invalid job ID")
		}
		job, err := jobs.Cancel(ctx, id)
		if err != nil {
			return nil, mapError(err)
		}
		return &JobOutput{Body: toJobResponse(job)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-job-result",
		Method:      http.MethodGet,
		Path:        "/api/v1/jobs/{jobId}/result",
		Summary:     "Get job result",
		Description: "Returns the result of a completed job. Other statuses are rejected.",
		Tags:        []string{TagJobs.String()},
		Security:    BearerAuth,
	}, func(ctx context.Context, input *GetJobResultInput) (*GetJobResultOutput, error) {
		if _, err := principal(ctx, iamSvc); err != nil {
			return nil, err
		}

		id, err := uuid.Parse(input.JobID)
		if err != nil {
			return nil, huma.Error400BadRequest("invalid job ID")
		}
		result, err := jobs.GetResult(ctx, id)
		if err != nil {
			return nil, mapError(err)
		}

		resp := &GetJobResultOutput{}
		resp.Body = schemas.JobResultResponse{
			JobID:    result.JobID.String(),
			Metadata: result.Metadata,
		}
		if result.ResultDataID != nil {
			s := result.ResultDataID.String()
			resp.Body.ResultDataID = &s
		}
		return resp, nil
	})
}

// toJobResponse converts a models.Job to a schemas.JobResponse
func toJobResponse(job *models.Job) schemas.JobResponse {
	resp := schemas.JobResponse{
		ID:        job.ID.String(),
		Status:    string(job.Status),
		Progress:  job.Progress,
		Error:     job.Error,
		Metadata:  job.Metadata,
		Logs:      job.Logs,
		CreatedAt: job.CreatedAt.Format(time.RFC3339),
	}

	if job.WorkflowID != nil {
		s := job.WorkflowID.String()
		resp.WorkflowID = &s
	}
	if job.InputDataID != nil {
		s := job.InputDataID.String()
		resp.InputDataID = &s
	}
	if job.ResultDataID != nil {
		s := job.ResultDataID.String()
		resp.ResultDataID = &s
	}
	if job.StartedAt != nil {
		s := job.StartedAt.Format(time.RFC3339)
		resp.StartedAt = &s
	}
	if job.CompletedAt != nil {
		s := job.CompletedAt.Format(time.RFC3339)
		resp.CompletedAt = &s
	}

	return resp
}
