package api

import "time"

type (
	// RunFlowRequest contains parameters for triggering a flow run
	RunFlowRequest struct {
		Context string `json:"context,omitempty"`
	}

	// RunStartedResponse is returned when a run trigger succeeds
	RunStartedResponse struct {
		Message string `json:"message"`
		JobID   JobID  `json:"job_id"`
	}

	// JobDigest provides summary information about a job
	JobDigest struct {
		CreatedAt   time.Time `json:"created_at"`
		CompletedAt time.Time `json:"completed_at,omitempty"`
		ID          JobID     `json:"id"`
		FlowID      FlowID    `json:"flow_id"`
		Status      JobStatus `json:"status"`
		CurrentStep int       `json:"current_step"`
		Error       string    `json:"error,omitempty"`
	}

	// JobsListResponse contains a list of job summaries
	JobsListResponse struct {
		Jobs  []*JobDigest `json:"jobs"`
		Count int          `json:"count"`
	}

	// FlowsListResponse contains the stored flow definitions
	FlowsListResponse struct {
		Flows []*Flow `json:"flows"`
		Count int     `json:"count"`
	}

	// FlowSavedResponse is returned when a flow upsert succeeds
	FlowSavedResponse struct {
		Message string `json:"message"`
		FlowID  FlowID `json:"flow_id"`
	}

	// HealthResponse reports process liveness
	HealthResponse struct {
		Service string `json:"service"`
		Version string `json:"version"`
		Status  string `json:"status"`
	}

	// ErrorResponse is the standard error payload for the HTTP API
	ErrorResponse struct {
		Error  string `json:"error"`
		Status int    `json:"status"`
	}
)

// Digest produces the summary view of a job
func (j *Job) Digest() *JobDigest {
	return &JobDigest{
		ID:          j.ID,
		FlowID:      j.FlowID,
		Status:      j.Status,
		CurrentStep: j.CurrentStep,
		CreatedAt:   j.CreatedAt,
		CompletedAt: j.CompletedAt,
		Error:       j.Error,
	}
}
