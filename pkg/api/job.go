package api

import (
	"slices"
	"time"
)

type (
	// JobStatus represents the current state of a job
	JobStatus string

	// FailureCode classifies why a job failed
	FailureCode string

	// Job is one execution instance of a flow. It is created by the
	// orchestrator when a run is triggered and mutated only by the
	// orchestrator; once it reaches a terminal status it never changes
	// again
	Job struct {
		CreatedAt   time.Time   `json:"created_at"`
		UpdatedAt   time.Time   `json:"updated_at"`
		CompletedAt time.Time   `json:"completed_at,omitempty"`
		ID          JobID       `json:"id"`
		FlowID      FlowID      `json:"flow_id"`
		Steps       []StepID    `json:"steps"`
		Status      JobStatus   `json:"status"`
		CurrentStep int         `json:"current_step"`
		Failure     FailureCode `json:"failure,omitempty"`
		Error       string      `json:"error,omitempty"`
		Context     string      `json:"context,omitempty"`
	}
)

const (
	JobPending          JobStatus = "pending"
	JobRunning          JobStatus = "running"
	JobCompleted        JobStatus = "completed"
	JobCompletedNoItems JobStatus = "completed_no_items"
	JobFailed           JobStatus = "failed"
)

const (
	FailureException    FailureCode = "exception"
	FailureFlowNotFound FailureCode = "flow_not_found"
	FailureStepNotFound FailureCode = "step_not_found"
	FailureProvider     FailureCode = "provider_request"
	FailureTool         FailureCode = "tool_execution"
	FailureStorage      FailureCode = "storage"
	FailureCancelled    FailureCode = "cancelled"
)

// jobTransitions enumerates the legal status transitions. Terminal
// statuses have no successors
var jobTransitions = map[JobStatus][]JobStatus{
	JobPending: {JobRunning, JobFailed},
	JobRunning: {JobCompleted, JobCompletedNoItems, JobFailed},
}

// Terminal returns whether the status is a final one
func (s JobStatus) Terminal() bool {
	switch s {
	case JobCompleted, JobCompletedNoItems, JobFailed:
		return true
	default:
		return false
	}
}

// CanTransition reports whether a status change is legal. Transitions
// are monotonic: a terminal status never transitions again
func (s JobStatus) CanTransition(to JobStatus) bool {
	return slices.Contains(jobTransitions[s], to)
}

// Terminal returns whether the job has reached a final status
func (j *Job) Terminal() bool {
	return j.Status.Terminal()
}

// StepAt returns the step ID at the given position, or false if the
// position is out of range
func (j *Job) StepAt(index int) (StepID, bool) {
	if index < 0 || index >= len(j.Steps) {
		return "", false
	}
	return j.Steps[index], true
}

// LastStep returns whether the given position is the final step
func (j *Job) LastStep(index int) bool {
	return index == len(j.Steps)-1
}

// SetStatus returns a new Job with the updated status
func (j *Job) SetStatus(s JobStatus) *Job {
	res := *j
	res.Status = s
	return &res
}

// SetCurrentStep returns a new Job with the step cursor advanced. The
// cursor only moves forward
func (j *Job) SetCurrentStep(index int) *Job {
	res := *j
	if index > res.CurrentStep {
		res.CurrentStep = index
	}
	return &res
}

// SetFailure returns a new Job with the failure code and message set
func (j *Job) SetFailure(code FailureCode, msg string) *Job {
	res := *j
	res.Failure = code
	res.Error = msg
	return &res
}

// SetUpdatedAt returns a new Job with the last updated timestamp set
func (j *Job) SetUpdatedAt(t time.Time) *Job {
	res := *j
	res.UpdatedAt = t
	return &res
}

// SetCompletedAt returns a new Job with the completion timestamp set
func (j *Job) SetCompletedAt(t time.Time) *Job {
	res := *j
	res.CompletedAt = t
	return &res
}
