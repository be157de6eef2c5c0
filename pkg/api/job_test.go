package api_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/datamill-io/datamill/pkg/api"
)

func TestStatusTransitions(t *testing.T) {
	assert.True(t, api.JobPending.CanTransition(api.JobRunning))
	assert.True(t, api.JobPending.CanTransition(api.JobFailed))
	assert.True(t, api.JobRunning.CanTransition(api.JobCompleted))
	assert.True(t, api.JobRunning.CanTransition(api.JobCompletedNoItems))
	assert.True(t, api.JobRunning.CanTransition(api.JobFailed))

	assert.False(t, api.JobPending.CanTransition(api.JobCompleted))
	assert.False(t, api.JobRunning.CanTransition(api.JobPending))
}

func TestTerminalStatusNeverTransitions(t *testing.T) {
	terminal := []api.JobStatus{
		api.JobCompleted, api.JobCompletedNoItems, api.JobFailed,
	}
	all := []api.JobStatus{
		api.JobPending, api.JobRunning, api.JobCompleted,
		api.JobCompletedNoItems, api.JobFailed,
	}

	for _, from := range terminal {
		assert.True(t, from.Terminal())
		for _, to := range all {
			assert.False(t, from.CanTransition(to))
		}
	}

	assert.False(t, api.JobPending.Terminal())
	assert.False(t, api.JobRunning.Terminal())
}

func TestJobStepAt(t *testing.T) {
	job := &api.Job{Steps: []api.StepID{"fetch", "summarize"}}

	id, ok := job.StepAt(0)
	assert.True(t, ok)
	assert.Equal(t, api.StepID("fetch"), id)

	id, ok = job.StepAt(1)
	assert.True(t, ok)
	assert.Equal(t, api.StepID("summarize"), id)

	_, ok = job.StepAt(2)
	assert.False(t, ok)
	_, ok = job.StepAt(-1)
	assert.False(t, ok)
}

func TestJobLastStep(t *testing.T) {
	job := &api.Job{Steps: []api.StepID{"fetch", "publish"}}

	assert.False(t, job.LastStep(0))
	assert.True(t, job.LastStep(1))
}

func TestJobSettersAreImmutable(t *testing.T) {
	original := &api.Job{
		ID:     "job-1",
		Status: api.JobPending,
	}

	updated := original.SetStatus(api.JobRunning)
	assert.Equal(t, api.JobRunning, updated.Status)
	assert.Equal(t, api.JobPending, original.Status)

	failed := updated.SetFailure(api.FailureException, "boom")
	assert.Equal(t, api.FailureException, failed.Failure)
	assert.Equal(t, "boom", failed.Error)
	assert.Empty(t, updated.Failure)

	now := time.Now()
	stamped := failed.SetCompletedAt(now)
	assert.Equal(t, now, stamped.CompletedAt)
	assert.True(t, failed.CompletedAt.IsZero())
}

func TestCurrentStepNeverMovesBackward(t *testing.T) {
	job := &api.Job{CurrentStep: 2}

	assert.Equal(t, 3, job.SetCurrentStep(3).CurrentStep)
	assert.Equal(t, 2, job.SetCurrentStep(1).CurrentStep)
	assert.Equal(t, 2, job.SetCurrentStep(2).CurrentStep)
}

func TestJobDigest(t *testing.T) {
	job := &api.Job{
		ID:          "job-1",
		FlowID:      "daily-news",
		Status:      api.JobFailed,
		CurrentStep: 1,
		Error:       "boom",
	}

	digest := job.Digest()
	assert.Equal(t, job.ID, digest.ID)
	assert.Equal(t, job.FlowID, digest.FlowID)
	assert.Equal(t, job.Status, digest.Status)
	assert.Equal(t, 1, digest.CurrentStep)
	assert.Equal(t, "boom", digest.Error)
}
