package store

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/datamill-io/datamill/pkg/api"
)

// EngineDataStore persists the per-job side-channel map written by fetch
// steps and read by downstream publish steps. Entries live for the
// lifetime of their job and are deleted with it
type EngineDataStore struct {
	client *redis.Client
	prefix string
}

// NewEngineDataStore creates an engine data store
func NewEngineDataStore(client *redis.Client, prefix string) *EngineDataStore {
	return &EngineDataStore{client: client, prefix: prefix}
}

// Set writes one entry for the job
func (s *EngineDataStore) Set(
	ctx context.Context, jobID api.JobID, field, value string,
) error {
	return s.client.HSet(ctx, s.jobKey(jobID), field, value).Err()
}

// Apply writes all entries of the given map for the job
func (s *EngineDataStore) Apply(
	ctx context.Context, jobID api.JobID, data api.EngineData,
) error {
	if len(data) == 0 {
		return nil
	}
	fields := make(map[string]any, len(data))
	for k, v := range data {
		fields[k] = v
	}
	return s.client.HSet(ctx, s.jobKey(jobID), fields).Err()
}

// Get retrieves the full side-channel map for the job
func (s *EngineDataStore) Get(
	ctx context.Context, jobID api.JobID,
) (api.EngineData, error) {
	raw, err := s.client.HGetAll(ctx, s.jobKey(jobID)).Result()
	if err != nil {
		return nil, err
	}
	return api.EngineData(raw), nil
}

// Delete removes the job's side-channel map
func (s *EngineDataStore) Delete(ctx context.Context, jobID api.JobID) error {
	return s.client.Del(ctx, s.jobKey(jobID)).Err()
}

func (s *EngineDataStore) jobKey(id api.JobID) string {
	return key(s.prefix, "engine-data", string(id))
}
