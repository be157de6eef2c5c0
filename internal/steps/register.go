package steps

import (
	"github.com/datamill-io/datamill/internal/engine"
	"github.com/datamill-io/datamill/pkg/api"
)

// RegisterAll binds the built-in step implementations to their step
// types in the dispatch registry
func RegisterAll(
	reg *engine.Registry, fetch *FetchStep, ai *AIStep,
	publish *PublishStep, update *UpdateStep,
) error {
	bindings := map[api.StepType]engine.Step{
		api.StepTypeFetch:   fetch,
		api.StepTypeAI:      ai,
		api.StepTypePublish: publish,
		api.StepTypeUpdate:  update,
	}
	for stepType, impl := range bindings {
		if err := reg.Register(stepType, impl); err != nil {
			return err
		}
	}
	return nil
}
