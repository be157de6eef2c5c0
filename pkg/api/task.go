package api

import "time"

// StepTask is the durable unit of work handed to the task queue. The
// packet payload travels by reference; workers load it from the packet
// repository before invoking the step
type StepTask struct {
	EnqueuedAt time.Time `json:"enqueued_at"`
	JobID      JobID     `json:"job_id"`
	StepID     StepID    `json:"step_id"`
	DataRef    string    `json:"data_ref,omitempty"`
}
