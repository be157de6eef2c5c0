package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/datamill-io/datamill/internal/store"
	"github.com/datamill-io/datamill/pkg/api"
)

func newTask(jobID api.JobID, stepID api.StepID) *api.StepTask {
	return &api.StepTask{
		JobID:      jobID,
		StepID:     stepID,
		DataRef:    "inline:flows/daily-news/jobs/" + string(jobID) + "/fetch",
		EnqueuedAt: time.Now().UTC(),
	}
}

func TestQueueEnqueueClaimAck(t *testing.T) {
	as := assert.New(t)
	ctx := context.Background()
	queue := store.NewTaskQueue(newTestClient(t), testPrefix)

	as.NoError(queue.Enqueue(ctx, newTask("job-1", "fetch")))
	as.NoError(queue.Enqueue(ctx, newTask("job-2", "fetch")))

	pending, err := queue.Pending(ctx)
	as.NoError(err)
	as.Equal(int64(2), pending)

	// FIFO: first enqueued, first claimed
	claimed, err := queue.Claim(ctx)
	as.NoError(err)
	as.NotNil(claimed)
	as.Equal(api.JobID("job-1"), claimed.Task.JobID)

	as.NoError(queue.Ack(ctx, claimed))

	claimed, err = queue.Claim(ctx)
	as.NoError(err)
	as.NotNil(claimed)
	as.Equal(api.JobID("job-2"), claimed.Task.JobID)
	as.NoError(queue.Ack(ctx, claimed))

	claimed, err = queue.Claim(ctx)
	as.NoError(err)
	as.Nil(claimed)
}

func TestQueueReclaimStaleTasks(t *testing.T) {
	as := assert.New(t)
	ctx := context.Background()
	queue := store.NewTaskQueue(newTestClient(t), testPrefix)

	as.NoError(queue.Enqueue(ctx, newTask("job-1", "fetch")))

	claimed, err := queue.Claim(ctx)
	as.NoError(err)
	as.NotNil(claimed)

	// Unacked claim is not yet stale
	requeued, err := queue.Reclaim(ctx, time.Minute)
	as.NoError(err)
	as.Zero(requeued)

	// With a zero age everything claimed is stale
	requeued, err = queue.Reclaim(ctx, 0)
	as.NoError(err)
	as.Equal(1, requeued)

	reclaimed, err := queue.Claim(ctx)
	as.NoError(err)
	as.NotNil(reclaimed)
	as.Equal(api.JobID("job-1"), reclaimed.Task.JobID)
}

func TestQueueAckedTasksAreNotReclaimed(t *testing.T) {
	as := assert.New(t)
	ctx := context.Background()
	queue := store.NewTaskQueue(newTestClient(t), testPrefix)

	as.NoError(queue.Enqueue(ctx, newTask("job-1", "publish")))

	claimed, err := queue.Claim(ctx)
	as.NoError(err)
	as.NoError(queue.Ack(ctx, claimed))

	requeued, err := queue.Reclaim(ctx, 0)
	as.NoError(err)
	as.Zero(requeued)

	pending, err := queue.Pending(ctx)
	as.NoError(err)
	as.Zero(pending)
}
