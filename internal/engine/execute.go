package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/datamill-io/datamill/internal/agent"
	"github.com/datamill-io/datamill/internal/store"
	"github.com/datamill-io/datamill/pkg/api"
	"github.com/datamill-io/datamill/pkg/log"
)

// ExecuteStep runs one queued step task to a decision. Step failures of
// any kind are converted into a failed job and reported as handled; an
// error return means the infrastructure prevented a decision and the
// task should be redelivered. Tasks for terminal jobs, and stale
// redeliveries of already-advanced steps, are absorbed as no-ops
func (e *Engine) ExecuteStep(ctx context.Context, task *api.StepTask) error {
	job, err := e.stores.Jobs.Get(ctx, task.JobID)
	if errors.Is(err, store.ErrJobNotFound) {
		slog.Warn("Dropping task for unknown job",
			log.JobID(task.JobID),
			log.StepID(task.StepID))
		return nil
	}
	if err != nil {
		return err
	}
	if job.Terminal() {
		return nil
	}

	stepIndex := slices.Index(job.Steps, task.StepID)
	if stepIndex < 0 {
		return e.FailJob(ctx, job.ID, api.FailureStepNotFound,
			fmt.Sprintf("step %s is not part of job %s",
				task.StepID, job.ID))
	}
	if stepIndex < job.CurrentStep {
		return nil
	}

	if job.Status == api.JobPending {
		job, err = e.stores.Jobs.Transition(ctx, job.ID,
			func(j *api.Job) (*api.Job, error) {
				return j.SetStatus(api.JobRunning), nil
			})
		if errors.Is(err, store.ErrJobTerminal) {
			return nil
		}
		if err != nil {
			return err
		}
	}

	flow, err := e.stores.Flows.Get(ctx, job.FlowID)
	if errors.Is(err, store.ErrFlowNotFound) {
		return e.FailJob(ctx, job.ID, api.FailureFlowNotFound, err.Error())
	}
	if err != nil {
		return err
	}

	flowStep, ok := flow.Step(task.StepID)
	if !ok {
		return e.FailJob(ctx, job.ID, api.FailureStepNotFound,
			fmt.Sprintf("flow %s has no step %s", flow.ID, task.StepID))
	}

	impl, err := e.registry.Resolve(flowStep.Type)
	if err != nil {
		return e.FailJob(ctx, job.ID, api.FailureStepNotFound, err.Error())
	}

	payload, err := e.buildPayload(ctx, job, flowStep, task.DataRef)
	if errors.Is(err, store.ErrPacketsNotFound) ||
		errors.Is(err, store.ErrBadPacketRef) {
		return e.FailJob(ctx, job.ID, api.FailureStorage, err.Error())
	}
	if err != nil {
		return err
	}

	slog.Info("Executing step",
		log.JobID(job.ID),
		log.FlowID(job.FlowID),
		log.StepID(task.StepID),
		slog.String("type", string(flowStep.Type)))
	e.events.Publish(&api.JobEvent{
		Type:   api.JobEventStepStarted,
		JobID:  job.ID,
		FlowID: job.FlowID,
		StepID: task.StepID,
		Status: api.JobRunning,
	})

	result, err := e.invokeStep(ctx, impl, payload)
	if err != nil {
		return e.FailJob(ctx, job.ID, failureCode(err), err.Error())
	}
	if result == nil {
		// A nil result with a nil error is the empty outcome
		result = &Result{}
	}
	return e.settleStep(ctx, job, task.StepID, stepIndex, result)
}

// settleStep persists the step's outcome: engine data first, then the
// packet hand-off to the next step, then the cursor advance or terminal
// status. Dedup claims are marked only after the durable hand-off so a
// crash before it never hides an unconsumed item
func (e *Engine) settleStep(
	ctx context.Context, job *api.Job, stepID api.StepID,
	stepIndex int, result *Result,
) error {
	if err := e.stores.Engine.Apply(ctx, job.ID, result.Engine); err != nil {
		return err
	}

	e.events.Publish(&api.JobEvent{
		Type:   api.JobEventStepCompleted,
		JobID:  job.ID,
		FlowID: job.FlowID,
		StepID: stepID,
		Status: api.JobRunning,
	})

	if result.Empty() && !job.LastStep(stepIndex) {
		return e.completeJob(
			ctx, job.ID, api.JobCompletedNoItems, stepIndex,
		)
	}
	if job.LastStep(stepIndex) {
		if err := e.completeJob(
			ctx, job.ID, api.JobCompleted, stepIndex,
		); err != nil {
			return err
		}
		e.markClaims(ctx, job.ID, result.Claims)
		return nil
	}

	next := job.Steps[stepIndex+1]
	if err := e.EnqueueStep(ctx, job, next, result.Packets); err != nil {
		return err
	}
	e.markClaims(ctx, job.ID, result.Claims)

	_, err := e.stores.Jobs.Transition(ctx, job.ID,
		func(j *api.Job) (*api.Job, error) {
			return j.SetCurrentStep(stepIndex + 1), nil
		})
	if errors.Is(err, store.ErrJobTerminal) {
		return nil
	}
	return err
}

func (e *Engine) buildPayload(
	ctx context.Context, job *api.Job, flowStep *api.FlowStep, ref string,
) (*Payload, error) {
	var packets []*api.DataPacket
	if ref != "" {
		var err error
		packets, err = e.stores.Packets.Load(ctx, ref)
		if err != nil {
			return nil, err
		}
	}

	engineData, err := e.stores.Engine.Get(ctx, job.ID)
	if err != nil {
		return nil, err
	}

	return &Payload{
		Engine:  engineData,
		Step:    flowStep,
		Packets: packets,
		JobID:   job.ID,
		FlowID:  job.FlowID,
		Trigger: job.Context,
	}, nil
}

// invokeStep is the recovery boundary: a panicking step fails its job
// instead of taking down the worker
func (e *Engine) invokeStep(
	ctx context.Context, impl Step, payload *Payload,
) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("step panic: %v", r)
		}
	}()
	return impl.Execute(ctx, payload)
}

// markClaims records consumed source items after the durable hand-off.
// A lost mark only risks reprocessing an item, never losing one, so
// failures are logged and not propagated
func (e *Engine) markClaims(
	ctx context.Context, jobID api.JobID, claims []Claim,
) {
	for _, c := range claims {
		_, err := e.stores.Dedup.MarkProcessed(
			ctx, c.StepID, c.Source, c.Item, jobID,
		)
		if err != nil {
			slog.Error("Dedup mark failed",
				log.JobID(jobID),
				log.StepID(c.StepID),
				log.Error(err))
		}
	}
}

func failureCode(err error) api.FailureCode {
	switch {
	case errors.Is(err, agent.ErrProviderRequest):
		return api.FailureProvider
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return api.FailureCancelled
	default:
		return api.FailureException
	}
}
