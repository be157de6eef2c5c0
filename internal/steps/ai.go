package steps

import (
	"context"
	"errors"
	"fmt"

	"github.com/datamill-io/datamill/internal/agent"
	"github.com/datamill-io/datamill/internal/config"
	"github.com/datamill-io/datamill/internal/engine"
	"github.com/datamill-io/datamill/pkg/api"
)

type (
	// AIStep runs a flow step's conversation loop against a configured
	// model provider. Tool bindings are selected from the catalog per
	// invocation, so declarations always reflect the current step
	// configuration
	AIStep struct {
		providers map[string]agent.Provider
		catalog   map[string]*api.ToolMetadata
		cfg       *config.Config
	}
)

var (
	ErrProviderUnknown = errors.New("no provider registered")
	ErrToolUnknown     = errors.New("no tool registered")
)

// Step scope argument names handed to every tool handler
const (
	ScopeJobID  = api.Name("job_id")
	ScopeStepID = api.Name("flow_step_id")
)

// NewAIStep creates the AI step over the given provider and tool
// catalogs
func NewAIStep(
	cfg *config.Config, providers map[string]agent.Provider,
	catalog map[string]*api.ToolMetadata,
) *AIStep {
	return &AIStep{
		providers: providers,
		catalog:   catalog,
		cfg:       cfg,
	}
}

// Execute runs the conversation loop in pipeline mode and wraps its
// final content into the outgoing packet set. Turn exhaustion is not a
// failure; the partial content produced so far still moves downstream
func (s *AIStep) Execute(
	ctx context.Context, p *engine.Payload,
) (*engine.Result, error) {
	cfg := p.Step.AI
	if cfg == nil {
		return nil, api.ErrAIRequired
	}

	provider, ok := s.providers[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderUnknown, cfg.Provider)
	}

	tools, err := s.selectTools(cfg.Tools)
	if err != nil {
		return nil, err
	}

	maxTurns := cfg.MaxTurns
	if maxTurns == 0 {
		maxTurns = s.cfg.ClampedMaxTurns()
	}

	loop := agent.NewLoop(&agent.LoopConfig{
		Settings: cfg.Settings,
		Provider: provider,
		Executor: agent.NewToolExecutor(tools...),
		Seed:     seedMessages(cfg, p.Packets),
		Model:    cfg.Model,
		System:   cfg.SystemPrompt,
		MaxTurns: maxTurns,
		Timeout:  s.cfg.ProviderTimeout,
		Pipeline: true,
	})

	out, err := loop.Run(ctx, s.scope(p))
	if err != nil {
		return nil, err
	}
	return &engine.Result{Packets: s.outgoing(p, cfg, out)}, nil
}

// selectTools rebuilds the step's tool bindings from the catalog. An
// unknown tool name is a configuration error, fatal to the job
func (s *AIStep) selectTools(names []string) ([]*api.ToolMetadata, error) {
	tools := make([]*api.ToolMetadata, len(names))
	for i, name := range names {
		tool, ok := s.catalog[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrToolUnknown, name)
		}
		tools[i] = tool
	}
	return tools, nil
}

// scope builds the argument context merged under every tool call. Engine
// data rides along so handlers see side-channel values without the
// model ever being shown them
func (s *AIStep) scope(p *engine.Payload) api.Args {
	scope := api.Args{}.
		Set(ScopeJobID, string(p.JobID)).
		Set(ScopeStepID, string(p.Step.ID))
	for key, value := range p.Engine {
		scope = scope.Set(api.Name(key), value)
	}
	return scope
}

// outgoing wraps the loop's final content into the packet set handed to
// the next step. When the model produced no text, as happens when a
// handler tool performs the terminal action, the incoming packets pass
// through unchanged
func (s *AIStep) outgoing(
	p *engine.Payload, cfg *api.AIConfig, out *agent.Outcome,
) []*api.DataPacket {
	annotate := func(packet *api.DataPacket) *api.DataPacket {
		packet = packet.
			Annotate("ai_model", cfg.Model).
			Annotate("ai_turns", out.TurnCount)
		if out.MaxTurnsReached {
			packet = packet.Annotate("ai_partial", true)
		}
		return packet
	}

	if out.FinalContent == "" {
		res := make([]*api.DataPacket, len(p.Packets))
		for i, packet := range p.Packets {
			res[i] = annotate(packet)
		}
		return res
	}

	packet := api.TextPacket(out.FinalContent)
	if len(p.Packets) > 0 {
		// Carry the source identity forward so downstream steps keep
		// the item's metadata
		packet = p.Packets[0].SetContent(out.FinalContent)
	}
	return []*api.DataPacket{annotate(packet)}
}

// seedMessages builds the conversation's initial history: the step's
// directives followed by the content of each incoming packet
func seedMessages(
	cfg *api.AIConfig, packets []*api.DataPacket,
) []*api.Message {
	var seed []*api.Message
	if cfg.Directives != "" {
		seed = append(seed, api.TextMessage(api.RoleUser, cfg.Directives))
	}
	for _, packet := range packets {
		if packet.Content == "" {
			continue
		}
		seed = append(seed, api.TextMessage(api.RoleUser, packet.Content))
	}
	return seed
}
