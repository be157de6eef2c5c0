package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/datamill-io/datamill/pkg/api"
)

type (
	// Step is the uniform contract every step implementation honors.
	// Returning an empty result (no packets) means the step legitimately
	// found nothing to do; returning an error fails the job
	Step interface {
		Execute(context.Context, *Payload) (*Result, error)
	}

	// Payload is the execution context handed to a step
	Payload struct {
		Engine  api.EngineData
		Step    *api.FlowStep
		Packets []*api.DataPacket
		JobID   api.JobID
		FlowID  api.FlowID
		Trigger string
	}

	// Result is what a step hands back to the orchestrator. Engine
	// entries are persisted to the job's side channel; Claims are
	// marked in the dedup store only after the packets have been
	// durably handed off to the next step
	Result struct {
		Engine  api.EngineData
		Packets []*api.DataPacket
		Claims  []Claim
	}

	// Claim identifies a source item a fetch step consumed
	Claim struct {
		StepID api.StepID
		Source api.SourceType
		Item   api.ItemID
	}

	// Registry resolves step types to their implementations. It is
	// populated once at startup; AI steps are built in, fetch sources
	// and publish/update targets register through it
	Registry struct {
		steps map[api.StepType]Step
	}
)

var (
	ErrStepTypeUnknown = errors.New("no step registered for type")
	ErrStepRegistered  = errors.New("step type already registered")
)

// NewRegistry creates an empty step registry
func NewRegistry() *Registry {
	return &Registry{steps: map[api.StepType]Step{}}
}

// Register binds a step implementation to a step type
func (r *Registry) Register(t api.StepType, step Step) error {
	if _, ok := r.steps[t]; ok {
		return fmt.Errorf("%w: %s", ErrStepRegistered, t)
	}
	r.steps[t] = step
	return nil
}

// Resolve returns the step implementation for a type
func (r *Registry) Resolve(t api.StepType) (Step, error) {
	step, ok := r.steps[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStepTypeUnknown, t)
	}
	return step, nil
}

// Empty reports whether the result carried no packets
func (r *Result) Empty() bool {
	return len(r.Packets) == 0
}
