package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/datamill-io/datamill/internal/store"
	"github.com/datamill-io/datamill/pkg/api"
	"github.com/datamill-io/datamill/pkg/log"
)

var (
	ErrNoSteps   = errors.New("flow has no steps to run")
	ErrJobActive = errors.New("job has not reached a terminal status")
)

// CreateJob resolves the flow's ordered step list and persists a new
// pending job. The step list is snapshotted at creation; later edits to
// the flow do not affect the job
func (e *Engine) CreateJob(
	ctx context.Context, flowID api.FlowID, trigger string,
) (*api.Job, error) {
	flow, err := e.stores.Flows.Get(ctx, flowID)
	if err != nil {
		return nil, err
	}
	if len(flow.Steps) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSteps, flowID)
	}

	now := time.Now().UTC()
	job := &api.Job{
		ID:        api.NewJobID(),
		FlowID:    flowID,
		Steps:     flow.StepIDs(),
		Status:    api.JobPending,
		CreatedAt: now,
		UpdatedAt: now,
		Context:   trigger,
	}
	if err := e.stores.Jobs.Create(ctx, job); err != nil {
		return nil, err
	}

	e.events.Publish(&api.JobEvent{
		Type:   api.JobEventCreated,
		JobID:  job.ID,
		FlowID: flowID,
		Status: api.JobPending,
	})
	return job, nil
}

// CreateAndRun triggers a flow run: it creates the job and durably
// enqueues its first step, returning without waiting for execution
func (e *Engine) CreateAndRun(
	ctx context.Context, flowID api.FlowID, trigger string,
) (api.JobID, error) {
	job, err := e.CreateJob(ctx, flowID, trigger)
	if err != nil {
		return "", err
	}

	if err := e.EnqueueStep(ctx, job, job.Steps[0], nil); err != nil {
		return "", err
	}
	return job.ID, nil
}

// EnqueueStep persists the packet set and hands a durable step task to
// the queue. It returns as soon as the task is queued; a crash after
// this point leaves the job recoverable because the task already exists
func (e *Engine) EnqueueStep(
	ctx context.Context, job *api.Job, stepID api.StepID,
	packets []*api.DataPacket,
) error {
	var ref string
	if len(packets) > 0 {
		var err error
		ref, err = e.stores.Packets.Save(
			ctx, job.FlowID, job.ID, stepID, packets,
		)
		if err != nil {
			return err
		}
	}

	return e.stores.Queue.Enqueue(ctx, &api.StepTask{
		JobID:      job.ID,
		StepID:     stepID,
		DataRef:    ref,
		EnqueuedAt: time.Now().UTC(),
	})
}

// GetJob retrieves a job by ID
func (e *Engine) GetJob(ctx context.Context, id api.JobID) (*api.Job, error) {
	return e.stores.Jobs.Get(ctx, id)
}

// ListJobs returns jobs, optionally filtered to one flow
func (e *Engine) ListJobs(
	ctx context.Context, flowID api.FlowID,
) ([]*api.Job, error) {
	return e.stores.Jobs.List(ctx, flowID)
}

// FailJob marks the job failed with a structured reason. It is the
// single conversion point for step failures and also serves as
// cancellation: any task that later fires for the failed job is a
// no-op. Failing an already-terminal job is itself a no-op
func (e *Engine) FailJob(
	ctx context.Context, jobID api.JobID, code api.FailureCode, msg string,
) error {
	job, err := e.stores.Jobs.Transition(ctx, jobID,
		func(j *api.Job) (*api.Job, error) {
			return j.SetStatus(api.JobFailed).
				SetFailure(code, msg).
				SetCompletedAt(time.Now().UTC()), nil
		})
	if errors.Is(err, store.ErrJobTerminal) {
		return nil
	}
	if err != nil {
		return err
	}

	e.cleanupJob(ctx, job)

	slog.Error("Job failed",
		log.JobID(jobID),
		slog.String("reason", string(code)),
		log.ErrorString(msg))
	e.events.Publish(&api.JobEvent{
		Type:   api.JobEventFailed,
		JobID:  jobID,
		FlowID: job.FlowID,
		Status: api.JobFailed,
		Error:  msg,
	})
	return nil
}

func (e *Engine) completeJob(
	ctx context.Context, jobID api.JobID, status api.JobStatus,
	stepIndex int,
) error {
	job, err := e.stores.Jobs.Transition(ctx, jobID,
		func(j *api.Job) (*api.Job, error) {
			return j.SetStatus(status).
				SetCurrentStep(stepIndex).
				SetCompletedAt(time.Now().UTC()), nil
		})
	if errors.Is(err, store.ErrJobTerminal) {
		return nil
	}
	if err != nil {
		return err
	}

	e.cleanupJob(ctx, job)

	slog.Info("Job completed",
		log.JobID(jobID),
		log.Status(status))
	e.events.Publish(&api.JobEvent{
		Type:   api.JobEventCompleted,
		JobID:  jobID,
		FlowID: job.FlowID,
		Status: status,
	})
	return nil
}

// cleanupJob releases the job's side channel. Engine data lives exactly
// as long as its job is live
func (e *Engine) cleanupJob(ctx context.Context, job *api.Job) {
	if err := e.stores.Engine.Delete(ctx, job.ID); err != nil {
		slog.Error("Engine data cleanup failed",
			log.JobID(job.ID),
			log.Error(err))
	}
}

// DeleteJob removes a terminal job along with its stored packets
func (e *Engine) DeleteJob(ctx context.Context, id api.JobID) error {
	job, err := e.stores.Jobs.Get(ctx, id)
	if err != nil {
		return err
	}
	if !job.Terminal() {
		return fmt.Errorf("%w: %s", ErrJobActive, id)
	}

	if err := e.stores.Packets.DeleteJob(ctx, job.FlowID, id); err != nil {
		return err
	}
	return e.stores.Jobs.Delete(ctx, id)
}
