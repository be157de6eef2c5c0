package engine

import (
	"context"
	"errors"
	"time"

	"github.com/datamill-io/datamill/internal/store"
	"github.com/datamill-io/datamill/pkg/api"
)

// PutFlow validates and upserts a flow definition, stamping creation
// and update times. Jobs already running keep their snapshotted step
// list; the new definition only affects runs triggered afterwards
func (e *Engine) PutFlow(ctx context.Context, flow *api.Flow) error {
	now := time.Now().UTC()
	flow.UpdatedAt = now
	flow.CreatedAt = now

	prev, err := e.stores.Flows.Get(ctx, flow.ID)
	if err == nil {
		flow.CreatedAt = prev.CreatedAt
	} else if !errors.Is(err, store.ErrFlowNotFound) {
		return err
	}

	return e.stores.Flows.Put(ctx, flow)
}

// GetFlow retrieves a flow definition by ID
func (e *Engine) GetFlow(
	ctx context.Context, id api.FlowID,
) (*api.Flow, error) {
	return e.stores.Flows.Get(ctx, id)
}

// ListFlows returns all stored flow definitions
func (e *Engine) ListFlows(ctx context.Context) ([]*api.Flow, error) {
	return e.stores.Flows.List(ctx)
}

// DeleteFlow removes a flow definition
func (e *Engine) DeleteFlow(ctx context.Context, id api.FlowID) error {
	return e.stores.Flows.Delete(ctx, id)
}
