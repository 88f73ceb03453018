package models

import "time"

// Capability names accepted by the trigger endpoint
const (
	CapabilitySummarize = "summarize"
	CapabilityClassify  = "classify"
	CapabilitySentiment = "sentiment"
	CapabilityReply     = "reply"
	CapabilityTasks     = "tasks"
	CapabilityEscalate  = "escalate"
)

// Per-capability trigger statuses
const (
	StatusCached     = "cached"
	StatusGenerated  = "generated"
	StatusFailed     = "failed"
	StatusProcessing = "processing"
)

// HealthResponse represents a basic health check response
// @Description Health check response
type HealthResponse struct {
	Status    string    `json:"status" example:"healthy"`                 // Health status
	Timestamp time.Time `json:"timestamp" example:"2023-01-01T00:00:00Z"` // Timestamp of the check
	Version   string    `json:"version" example:"1.0.0"`                  // Application version
}

// DBHealthResponse represents a database health check response
// @Description Database health check response
type DBHealthResponse struct {
	Status    string        `json:"status" example:"healthy"`                   // Health status
	Timestamp time.Time     `json:"timestamp" example:"2023-01-01T00:00:00Z"`   // Timestamp of the check
	Connected bool          `json:"connected" example:"true"`                   // Database connection status
	Latency   time.Duration `json:"latency" swaggertype:"string" example:"1ms"` // Database ping latency
	Error     string        `json:"error,omitempty" example:""`                 // Error message if any
}

// TriggerRequest is the body for on-demand AI processing
// @Description On-demand AI processing request
type TriggerRequest struct {
	ThreadID string   `json:"thread_id" example:"18c2f3a9b4d5e6f7"` // Internal or provider thread ID
	Tasks    []string `json:"tasks,omitempty"`                      // Capability subset; defaults to configured set
	Force    bool     `json:"force,omitempty" example:"false"`      // Regenerate even if a result exists
}

// CapabilityStatus reports the outcome of one capability within a trigger
// @Description Per-capability processing status
type CapabilityStatus struct {
	Status    string `json:"status" example:"generated"`         // cached, generated, failed, processing
	Reason    string `json:"reason,omitempty"`                   // Failure detail when status is failed
	Retryable bool   `json:"retryable,omitempty" example:"true"` // Whether the caller should retry shortly
}

// TriggerResponse is the per-capability status map for a trigger call
// @Description On-demand AI processing response
type TriggerResponse struct {
	JobID    string                      `json:"job_id"`
	ThreadID string                      `json:"thread_id"`
	Results  map[string]CapabilityStatus `json:"results"`
}

// RewriteRequest asks for a caller-supplied draft to be restyled
// @Description Reply rewrite request
type RewriteRequest struct {
	DraftText string `json:"draft_text"`
	Style     string `json:"style" example:"more formal"` // shorter, longer, more formal, friendlier, ...
}

// RewriteResponse carries the restyled draft
// @Description Reply rewrite response
type RewriteResponse struct {
	DraftText string `json:"draft_text"`
	Style     string `json:"style"`
}

// ResultNotFound is the 404 body for per-capability reads. Generated=false
// with an empty reason means the capability has not run yet; a non-empty
// reason means the last generation failed.
// @Description Missing result response
type ResultNotFound struct {
	Error     string `json:"error" example:"no summary generated for thread"`
	Generated bool   `json:"generated" example:"false"`
	Reason    string `json:"reason,omitempty"`
}

// ErrorResponse is a generic error body
// @Description Error response
type ErrorResponse struct {
	Error string `json:"error"`
}
