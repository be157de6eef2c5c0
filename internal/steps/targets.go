package steps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/datamill-io/datamill/internal/engine"
	"github.com/datamill-io/datamill/pkg/api"
	"github.com/datamill-io/datamill/pkg/log"
)

type (
	// Target delivers a packet to an external destination. Publish and
	// update steps share the interface; the step kind only selects which
	// config variant names the target
	Target interface {
		Deliver(context.Context, *Delivery) error
	}

	// Delivery is the unit of work handed to a target: one packet plus
	// the step settings and the job's side-channel values
	Delivery struct {
		Settings api.Args
		Engine   api.EngineData
		Packet   *api.DataPacket
		JobID    api.JobID
		FlowID   api.FlowID
	}

	// PublishStep delivers each incoming packet to a publish target
	PublishStep struct {
		targetStep
	}

	// UpdateStep delivers each incoming packet to an update target
	UpdateStep struct {
		targetStep
	}

	targetStep struct {
		targets map[string]Target
	}
)

var ErrTargetUnknown = errors.New("no target registered")

// NewPublishStep creates the publish step over the given targets
func NewPublishStep(targets map[string]Target) *PublishStep {
	return &PublishStep{targetStep{targets: targets}}
}

// NewUpdateStep creates the update step over the given targets
func NewUpdateStep(targets map[string]Target) *UpdateStep {
	return &UpdateStep{targetStep{targets: targets}}
}

// Execute delivers the incoming packets to the configured publish target
func (s *PublishStep) Execute(
	ctx context.Context, p *engine.Payload,
) (*engine.Result, error) {
	cfg := p.Step.Publish
	if cfg == nil {
		return nil, api.ErrPublishRequired
	}
	return s.deliver(ctx, p, cfg.Target, cfg.Settings)
}

// Execute delivers the incoming packets to the configured update target
func (s *UpdateStep) Execute(
	ctx context.Context, p *engine.Payload,
) (*engine.Result, error) {
	cfg := p.Step.Update
	if cfg == nil {
		return nil, api.ErrUpdateRequired
	}
	return s.deliver(ctx, p, cfg.Target, cfg.Settings)
}

func (s *targetStep) deliver(
	ctx context.Context, p *engine.Payload, name string, settings api.Args,
) (*engine.Result, error) {
	target, ok := s.targets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTargetUnknown, name)
	}

	for _, packet := range p.Packets {
		err := target.Deliver(ctx, &Delivery{
			Settings: settings,
			Engine:   p.Engine,
			Packet:   packet,
			JobID:    p.JobID,
			FlowID:   p.FlowID,
		})
		if err != nil {
			return nil, fmt.Errorf("target %s: %w", name, err)
		}
	}

	slog.Info("Delivered packets",
		log.JobID(p.JobID),
		log.StepID(p.Step.ID),
		slog.String("target", name),
		slog.Int("packets", len(p.Packets)))
	return &engine.Result{Packets: p.Packets}, nil
}
