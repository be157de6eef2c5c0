package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/datamill-io/datamill/pkg/api"
)

// FlowStore persists flow definitions. Definitions are read-only during
// job execution; jobs snapshot the step list at creation time
type FlowStore struct {
	client *redis.Client
	prefix string
}

var ErrFlowNotFound = errors.New("flow not found")

// NewFlowStore creates a flow store
func NewFlowStore(client *redis.Client, prefix string) *FlowStore {
	return &FlowStore{client: client, prefix: prefix}
}

// Put validates and upserts a flow definition
func (s *FlowStore) Put(ctx context.Context, flow *api.Flow) error {
	if err := flow.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(flow)
	if err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.flowKey(flow.ID), data, 0)
	pipe.SAdd(ctx, key(s.prefix, "flows"), string(flow.ID))
	_, err = pipe.Exec(ctx)
	return err
}

// Get retrieves a flow definition by ID
func (s *FlowStore) Get(ctx context.Context, id api.FlowID) (*api.Flow, error) {
	data, err := s.client.Get(ctx, s.flowKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrFlowNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	var flow api.Flow
	if err := json.Unmarshal(data, &flow); err != nil {
		return nil, err
	}
	return &flow, nil
}

// List returns all stored flow definitions
func (s *FlowStore) List(ctx context.Context) ([]*api.Flow, error) {
	ids, err := s.client.SMembers(ctx, key(s.prefix, "flows")).Result()
	if err != nil {
		return nil, err
	}

	flows := make([]*api.Flow, 0, len(ids))
	for _, id := range ids {
		flow, err := s.Get(ctx, api.FlowID(id))
		if errors.Is(err, ErrFlowNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		flows = append(flows, flow)
	}
	return flows, nil
}

// Delete removes a flow definition
func (s *FlowStore) Delete(ctx context.Context, id api.FlowID) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.flowKey(id))
	pipe.SRem(ctx, key(s.prefix, "flows"), string(id))
	_, err := pipe.Exec(ctx)
	return err
}

func (s *FlowStore) flowKey(id api.FlowID) string {
	return key(s.prefix, "flow", string(id))
}
