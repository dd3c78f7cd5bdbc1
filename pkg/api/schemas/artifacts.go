package schemas

// ArtifactResponse represents a stored data artifact.
type ArtifactResponse struct {
	ID          string         `json:"id" doc:"Artifact ID"`
	Filename    string         `json:"filename" doc:"Original filename"`
	SizeBytes   int64          `json:"size_bytes" doc:"Size in bytes"`
	ContentType string         `json:"content_type,omitempty" doc:"MIME type"`
	Metadata    map[string]any `json:"metadata,omitempty" doc:"Additional metadata"`
	CreatedAt   string         `json:"created_at" doc:"Upload timestamp"`
}

// ArtifactSampleResponse carries the first bytes of an artifact for preview.
type ArtifactSampleResponse struct {
	ID          string `json:"id" doc:"Artifact ID"`
	Filename    string `json:"filename" doc:"Original filename"`
	ContentType string `json:"content_type,omitempty" doc:"MIME type"`
	Sample      string `json:"sample" doc:"Leading bytes of the artifact, UTF-8 lossy"`
	Truncated   bool   `json:"truncated" doc:"Whether the artifact is larger than the sample"`
}
