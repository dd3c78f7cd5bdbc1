package schemas

// WorkflowStep is one entry in a workflow's ordered step sequence.
type WorkflowStep struct {
	Type            string         `json:"type" enum:"loading,preparing,validation" doc:"Agent that executes this step"`
	Config          map[string]any `json:"config,omitempty" doc:"Step configuration passed to the agent"`
	RequireApproval bool           `json:"require_approval,omitempty" doc:"Whether the step needs manual approval"`
}

// WorkflowRequest represents the payload for creating or updating a workflow.
type WorkflowRequest struct {
	Name         string         `json:"name" minLength:"1" maxLength:"255" doc:"Workflow name"`
	Description  string         `json:"description,omitempty" doc:"Free-text description"`
	Steps        []WorkflowStep `json:"steps" minItems:"1" doc:"Ordered step sequence"`
	GlobalConfig map[string]any `json:"global_config,omitempty" doc:"Configuration shared by all steps"`
}

// WorkflowResponse represents a stored workflow.
type WorkflowResponse struct {
	ID           string         `json:"id" doc:"Workflow ID"`
	Name         string         `json:"name" doc:"Workflow name"`
	Description  string         `json:"description,omitempty" doc:"Free-text description"`
	Steps        []WorkflowStep `json:"steps" doc:"Ordered step sequence"`
	GlobalConfig map[string]any `json:"global_config,omitempty" doc:"Configuration shared by all steps"`
	CreatedAt    string         `json:"created_at" doc:"Creation timestamp"`
	UpdatedAt    string         `json:"updated_at" doc:"Last update timestamp"`
}
