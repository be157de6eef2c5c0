package api

import (
	"errors"
	"fmt"
	"time"
)

type (
	// StepType identifies the kind of work a flow step performs
	StepType string

	// Flow is an ordered sequence of step configurations. Flows are
	// immutable during job execution; jobs snapshot the step list at
	// creation time
	Flow struct {
		CreatedAt time.Time   `json:"created_at"`
		UpdatedAt time.Time   `json:"updated_at"`
		ID        FlowID      `json:"id"`
		Name      string      `json:"name"`
		Steps     []*FlowStep `json:"steps"`
	}

	// FlowStep is the immutable configuration snapshot for one step in a
	// flow. Exactly one of the type-specific configs must be present,
	// selected by Type
	FlowStep struct {
		Fetch    *FetchConfig   `json:"fetch,omitempty"`
		AI       *AIConfig      `json:"ai,omitempty"`
		Publish  *PublishConfig `json:"publish,omitempty"`
		Update   *UpdateConfig  `json:"update,omitempty"`
		ID       StepID         `json:"id"`
		Type     StepType       `json:"type"`
		Position int            `json:"position"`
	}

	// FetchConfig configures a fetch step
	FetchConfig struct {
		Source   SourceType `json:"source"`
		Settings Args       `json:"settings,omitempty"`
	}

	// AIConfig configures an AI step
	AIConfig struct {
		Provider     string   `json:"provider"`
		Model        string   `json:"model"`
		SystemPrompt string   `json:"system_prompt,omitempty"`
		Directives   string   `json:"directives,omitempty"`
		MaxTurns     int      `json:"max_turns,omitempty"`
		Tools        []string `json:"tools,omitempty"`
		Settings     Args     `json:"settings,omitempty"`
	}

	// PublishConfig configures a publish step
	PublishConfig struct {
		Target   string `json:"target"`
		Settings Args   `json:"settings,omitempty"`
	}

	// UpdateConfig configures an update step
	UpdateConfig struct {
		Target   string `json:"target"`
		Settings Args   `json:"settings,omitempty"`
	}
)

const (
	StepTypeFetch   StepType = "fetch"
	StepTypeAI      StepType = "ai"
	StepTypePublish StepType = "publish"
	StepTypeUpdate  StepType = "update"
)

var (
	ErrFlowIDEmpty        = errors.New("flow ID empty")
	ErrFlowNoSteps        = errors.New("flow has no steps")
	ErrStepIDEmpty        = errors.New("step ID empty")
	ErrDuplicateStepID    = errors.New("duplicate step ID")
	ErrInvalidStepType    = errors.New("invalid step type")
	ErrFetchRequired      = errors.New("fetch config required")
	ErrAIRequired         = errors.New("ai config required")
	ErrPublishRequired    = errors.New("publish config required")
	ErrUpdateRequired     = errors.New("update config required")
	ErrConfigTypeMismatch = errors.New("config does not match step type")
	ErrSourceEmpty        = errors.New("fetch source empty")
	ErrProviderEmpty      = errors.New("ai provider empty")
	ErrModelEmpty         = errors.New("ai model empty")
	ErrTargetEmpty        = errors.New("target empty")
)

// StepIDs returns the ordered list of step identifiers in the flow
func (f *Flow) StepIDs() []StepID {
	ids := make([]StepID, len(f.Steps))
	for i, step := range f.Steps {
		ids[i] = step.ID
	}
	return ids
}

// Step returns the step with the given ID, or false if not present
func (f *Flow) Step(id StepID) (*FlowStep, bool) {
	for _, step := range f.Steps {
		if step.ID == id {
			return step, true
		}
	}
	return nil, false
}

// Validate checks the flow definition for structural problems
func (f *Flow) Validate() error {
	if f.ID == "" {
		return ErrFlowIDEmpty
	}
	if len(f.Steps) == 0 {
		return fmt.Errorf("%w: %s", ErrFlowNoSteps, f.ID)
	}

	seen := map[StepID]bool{}
	for _, step := range f.Steps {
		if seen[step.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateStepID, step.ID)
		}
		seen[step.ID] = true
		if err := step.Validate(); err != nil {
			return fmt.Errorf("step %s: %w", step.ID, err)
		}
	}
	return nil
}

// Validate checks that the step carries exactly the config its type
// requires
func (s *FlowStep) Validate() error {
	if s.ID == "" {
		return ErrStepIDEmpty
	}

	configs := 0
	for _, present := range []bool{
		s.Fetch != nil, s.AI != nil, s.Publish != nil, s.Update != nil,
	} {
		if present {
			configs++
		}
	}
	if configs > 1 {
		return fmt.Errorf("%w: %s", ErrConfigTypeMismatch, s.Type)
	}

	switch s.Type {
	case StepTypeFetch:
		if s.Fetch == nil {
			return ErrFetchRequired
		}
		if s.Fetch.Source == "" {
			return ErrSourceEmpty
		}
	case StepTypeAI:
		if s.AI == nil {
			return ErrAIRequired
		}
		if s.AI.Provider == "" {
			return ErrProviderEmpty
		}
		if s.AI.Model == "" {
			return ErrModelEmpty
		}
	case StepTypePublish:
		if s.Publish == nil {
			return ErrPublishRequired
		}
		if s.Publish.Target == "" {
			return ErrTargetEmpty
		}
	case StepTypeUpdate:
		if s.Update == nil {
			return ErrUpdateRequired
		}
		if s.Update.Target == "" {
			return ErrTargetEmpty
		}
	default:
		return fmt.Errorf("%w: %s", ErrInvalidStepType, s.Type)
	}
	return nil
}

// SettingsArgs returns the handler-specific settings for the step's
// active config variant
func (s *FlowStep) SettingsArgs() Args {
	switch s.Type {
	case StepTypeFetch:
		if s.Fetch != nil {
			return s.Fetch.Settings
		}
	case StepTypeAI:
		if s.AI != nil {
			return s.AI.Settings
		}
	case StepTypePublish:
		if s.Publish != nil {
			return s.Publish.Settings
		}
	case StepTypeUpdate:
		if s.Update != nil {
			return s.Update.Settings
		}
	}
	return nil
}
