package api

import "time"

type (
	// JobEventType identifies a job lifecycle event
	JobEventType string

	// JobEvent is published on the engine's event topic as jobs move
	// through their lifecycle. Events are advisory; job state in the
	// store is authoritative
	JobEvent struct {
		Time   time.Time    `json:"time"`
		Type   JobEventType `json:"type"`
		JobID  JobID        `json:"job_id"`
		FlowID FlowID       `json:"flow_id"`
		StepID StepID       `json:"step_id,omitempty"`
		Status JobStatus    `json:"status,omitempty"`
		Error  string       `json:"error,omitempty"`
	}
)

const (
	JobEventCreated       JobEventType = "job_created"
	JobEventStepStarted   JobEventType = "step_started"
	JobEventStepCompleted JobEventType = "step_completed"
	JobEventCompleted     JobEventType = "job_completed"
	JobEventFailed        JobEventType = "job_failed"
)
