package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/datamill-io/datamill/pkg/api"
)

type (
	// TaskQueue is a durable at-least-once queue of step tasks. Enqueue
	// pushes onto a pending list; Claim moves an entry onto a working
	// list where it stays until acked, so a worker crash after claim
	// leaves the task recoverable. Reclaim moves stale working entries
	// back to pending; the orchestrator's terminal-state guard makes the
	// resulting redelivery idempotent
	TaskQueue struct {
		client *redis.Client
		prefix string
	}

	// ClaimedTask pairs a decoded task with the raw queue entry used to
	// acknowledge it
	ClaimedTask struct {
		Task *api.StepTask
		raw  string
	}
)

var ErrQueueCorrupt = errors.New("undecodable queue entry")

// NewTaskQueue creates a task queue using the given client and prefix
func NewTaskQueue(client *redis.Client, prefix string) *TaskQueue {
	return &TaskQueue{client: client, prefix: prefix}
}

// Enqueue durably appends a step task to the pending list
func (q *TaskQueue) Enqueue(ctx context.Context, task *api.StepTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.pendingKey(), data).Err()
}

// Claim moves the oldest pending task to the working list and records
// the claim time. Returns nil when the queue is empty
func (q *TaskQueue) Claim(ctx context.Context) (*ClaimedTask, error) {
	raw, err := q.client.LMove(
		ctx, q.pendingKey(), q.workingKey(), "RIGHT", "LEFT",
	).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	now := strconv.FormatInt(time.Now().UTC().UnixMilli(), 10)
	if err := q.client.HSet(ctx, q.claimsKey(), raw, now).Err(); err != nil {
		return nil, err
	}

	var task api.StepTask
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		// Drop the entry rather than poison the queue
		_ = q.discard(ctx, raw)
		return nil, errors.Join(ErrQueueCorrupt, err)
	}
	return &ClaimedTask{Task: &task, raw: raw}, nil
}

// Ack removes a claimed task from the working list
func (q *TaskQueue) Ack(ctx context.Context, claimed *ClaimedTask) error {
	return q.discard(ctx, claimed.raw)
}

// Reclaim returns tasks that have been claimed for longer than the given
// age to the pending list. Returns the number of tasks requeued
func (q *TaskQueue) Reclaim(
	ctx context.Context, olderThan time.Duration,
) (int, error) {
	claims, err := q.client.HGetAll(ctx, q.claimsKey()).Result()
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().UTC().Add(-olderThan).UnixMilli()
	requeued := 0
	for raw, claimedAt := range claims {
		ms, err := strconv.ParseInt(claimedAt, 10, 64)
		if err != nil || ms > cutoff {
			continue
		}

		removed, err := q.client.LRem(ctx, q.workingKey(), 1, raw).Result()
		if err != nil {
			return requeued, err
		}
		if removed > 0 {
			if err := q.client.LPush(
				ctx, q.pendingKey(), raw,
			).Err(); err != nil {
				return requeued, err
			}
			requeued++
		}
		if err := q.client.HDel(ctx, q.claimsKey(), raw).Err(); err != nil {
			return requeued, err
		}
	}
	return requeued, nil
}

// Pending returns the number of tasks awaiting a worker
func (q *TaskQueue) Pending(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.pendingKey()).Result()
}

func (q *TaskQueue) discard(ctx context.Context, raw string) error {
	pipe := q.client.Pipeline()
	pipe.LRem(ctx, q.workingKey(), 1, raw)
	pipe.HDel(ctx, q.claimsKey(), raw)
	_, err := pipe.Exec(ctx)
	return err
}

func (q *TaskQueue) pendingKey() string {
	return key(q.prefix, "queue", "pending")
}

func (q *TaskQueue) workingKey() string {
	return key(q.prefix, "queue", "working")
}

func (q *TaskQueue) claimsKey() string {
	return key(q.prefix, "queue", "claims")
}
