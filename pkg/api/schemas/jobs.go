package schemas

// CreateJobRequest represents the payload for creating a job. A job either
// references a workflow or carries an ad-hoc step list; supplying neither is
// rejected.
type CreateJobRequest struct {
	WorkflowID  string         `json:"workflow_id,omitempty" doc:"Workflow to execute"`
	InputDataID string         `json:"input_data_id,omitempty" doc:"Input artifact"`
	Parameters  map[string]any `json:"parameters,omitempty" doc:"Execution parameters passed to the agents"`
	Steps       []WorkflowStep `json:"steps,omitempty" doc:"Ad-hoc step sequence for jobs without a workflow"`
}

// JobResponse represents a job execution record.
type JobResponse struct {
	ID           string         `json:"id" doc:"Job ID"`
	WorkflowID   *string        `json:"workflow_id,omitempty" doc:"Workflow reference"`
	Status       string         `json:"status" doc:"Job status" enum:"queued,running,completed,failed,cancelled"`
	Progress     int            `json:"progress" doc:"Progress percentage in [0, 100]"`
	InputDataID  *string        `json:"input_data_id,omitempty" doc:"Input artifact"`
	ResultDataID *string        `json:"result_data_id,omitempty" doc:"Result artifact, set on completion"`
	Error        string         `json:"error,omitempty" doc:"Failure message"`
	Metadata     map[string]any `json:"metadata,omitempty" doc:"Execution metadata"`
	Logs         []string       `json:"logs,omitempty" doc:"Execution log lines"`
	CreatedAt    string         `json:"created_at" doc:"Creation timestamp"`
	StartedAt    *string        `json:"started_at,omitempty" doc:"Start timestamp"`
	CompletedAt  *string        `json:"completed_at,omitempty" doc:"Terminal timestamp"`
}

// JobResultResponse represents the output of a completed job.
type JobResultResponse struct {
	JobID        string         `json:"job_id" doc:"Job ID"`
	ResultDataID *string        `json:"result_data_id,omitempty" doc:"Result artifact"`
	Metadata     map[string]any `json:"metadata,omitempty" doc:"Execution metadata"`
}
