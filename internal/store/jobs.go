package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/datamill-io/datamill/pkg/api"
)

// JobStore persists job rows. Status changes go through Transition,
// which retries on concurrent modification and enforces the monotonic
// status machine: a job that has reached a terminal status can never
// re-enter a live one
type JobStore struct {
	client *redis.Client
	prefix string
}

const transitionRetries = 5

var (
	ErrJobNotFound    = errors.New("job not found")
	ErrJobExists      = errors.New("job exists")
	ErrJobTerminal    = errors.New("job already terminal")
	ErrBadTransition  = errors.New("illegal job status transition")
	ErrStoreContended = errors.New("job store contention")
)

// NewJobStore creates a job store using the given client and key prefix
func NewJobStore(client *redis.Client, prefix string) *JobStore {
	return &JobStore{client: client, prefix: prefix}
}

// Create persists a new job row. Fails if the job ID is already taken
func (s *JobStore) Create(ctx context.Context, job *api.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}

	ok, err := s.client.SetNX(ctx, s.jobKey(job.ID), data, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobExists, job.ID)
	}

	pipe := s.client.Pipeline()
	pipe.SAdd(ctx, key(s.prefix, "jobs"), string(job.ID))
	pipe.SAdd(ctx, s.flowIndexKey(job.FlowID), string(job.ID))
	_, err = pipe.Exec(ctx)
	return err
}

// Get retrieves a job by ID
func (s *JobStore) Get(ctx context.Context, id api.JobID) (*api.Job, error) {
	data, err := s.client.Get(ctx, s.jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	var job api.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Transition loads the job, applies the mutation, and writes the result
// back under an optimistic WATCH. The mutation must return a job whose
// status is reachable from the loaded one; illegal transitions fail with
// ErrBadTransition, and mutations against a terminal job fail with
// ErrJobTerminal
func (s *JobStore) Transition(
	ctx context.Context, id api.JobID,
	mutate func(*api.Job) (*api.Job, error),
) (*api.Job, error) {
	var result *api.Job

	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, s.jobKey(id)).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("%w: %s", ErrJobNotFound, id)
		}
		if err != nil {
			return err
		}

		var job api.Job
		if err := json.Unmarshal(data, &job); err != nil {
			return err
		}
		if job.Terminal() {
			return fmt.Errorf("%w: %s is %s", ErrJobTerminal, id, job.Status)
		}

		next, err := mutate(&job)
		if err != nil {
			return err
		}
		if next.Status != job.Status &&
			!job.Status.CanTransition(next.Status) {
			return fmt.Errorf("%w: %s -> %s",
				ErrBadTransition, job.Status, next.Status)
		}
		if next.CurrentStep < job.CurrentStep {
			return fmt.Errorf("%w: step cursor moved backward",
				ErrBadTransition)
		}

		next = next.SetUpdatedAt(time.Now().UTC())
		out, err := json.Marshal(next)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.jobKey(id), out, 0)
			return nil
		})
		if err != nil {
			return err
		}
		result = next
		return nil
	}

	for range transitionRetries {
		err := s.client.Watch(ctx, txn, s.jobKey(id))
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrStoreContended, id)
}

// List returns all jobs for a flow, or all jobs when flowID is empty
func (s *JobStore) List(
	ctx context.Context, flowID api.FlowID,
) ([]*api.Job, error) {
	indexKey := key(s.prefix, "jobs")
	if flowID != "" {
		indexKey = s.flowIndexKey(flowID)
	}

	ids, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, err
	}

	jobs := make([]*api.Job, 0, len(ids))
	for _, id := range ids {
		job, err := s.Get(ctx, api.JobID(id))
		if errors.Is(err, ErrJobNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Delete removes a job row and its index entries
func (s *JobStore) Delete(ctx context.Context, id api.JobID) error {
	job, err := s.Get(ctx, id)
	if errors.Is(err, ErrJobNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.jobKey(id))
	pipe.SRem(ctx, key(s.prefix, "jobs"), string(id))
	pipe.SRem(ctx, s.flowIndexKey(job.FlowID), string(id))
	_, err = pipe.Exec(ctx)
	return err
}

func (s *JobStore) jobKey(id api.JobID) string {
	return key(s.prefix, "job", string(id))
}

func (s *JobStore) flowIndexKey(id api.FlowID) string {
	return key(s.prefix, "flow-jobs", string(id))
}
