package steps_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/datamill-io/datamill/internal/agent"
	"github.com/datamill-io/datamill/internal/config"
	"github.com/datamill-io/datamill/internal/engine"
	"github.com/datamill-io/datamill/internal/steps"
	"github.com/datamill-io/datamill/pkg/api"
)

// scriptedProvider returns its canned responses in order, then a plain
// completion
type scriptedProvider struct {
	responses []*api.Message
	requests  []*agent.Request
}

func (p *scriptedProvider) Generate(
	_ context.Context, req *agent.Request,
) (*api.Message, error) {
	p.requests = append(p.requests, req)
	if len(p.responses) == 0 {
		return api.TextMessage(api.RoleAssistant, "done"), nil
	}
	next := p.responses[0]
	p.responses = p.responses[1:]
	return next, nil
}

func callMessage(name string, args api.Args) *api.Message {
	return &api.Message{
		Role: api.RoleAssistant,
		Parts: []api.Part{{
			Call: &api.FunctionCall{ID: "call-1", Name: name, Args: args},
		}},
	}
}

func aiPayload(tools ...string) *engine.Payload {
	return &engine.Payload{
		JobID:  "job-1",
		FlowID: "daily-news",
		Step: &api.FlowStep{
			ID:   "summarize",
			Type: api.StepTypeAI,
			AI: &api.AIConfig{
				Provider:     "scripted",
				Model:        "test-model",
				SystemPrompt: "You summarize headlines",
				Directives:   "Summarize the items below",
				Tools:        tools,
			},
		},
	}
}

func newAIStep(
	provider agent.Provider, catalog map[string]*api.ToolMetadata,
) *steps.AIStep {
	return steps.NewAIStep(
		config.NewDefaultConfig(),
		map[string]agent.Provider{"scripted": provider},
		catalog,
	)
}

func TestAIStepWrapsFinalContent(t *testing.T) {
	provider := &scriptedProvider{responses: []*api.Message{
		api.TextMessage(api.RoleAssistant, "three stories today"),
	}}
	step := newAIStep(provider, nil)

	payload := aiPayload()
	payload.Packets = []*api.DataPacket{
		api.TextPacket("headline one").SetMeta(api.MetaItemID, "guid-1"),
	}

	result, err := step.Execute(context.Background(), payload)
	assert.NoError(t, err)
	assert.Len(t, result.Packets, 1)

	out := result.Packets[0]
	assert.Equal(t, "three stories today", out.Content)
	assert.Equal(t, "guid-1", out.Metadata.GetString(api.MetaItemID, ""))
	assert.Equal(t, "test-model",
		out.Processing.GetString("ai_model", ""))
	assert.Equal(t, 1, out.Processing.GetInt("ai_turns", 0))
}

func TestAIStepSeedsConversation(t *testing.T) {
	provider := &scriptedProvider{}
	step := newAIStep(provider, nil)

	payload := aiPayload()
	payload.Packets = []*api.DataPacket{
		api.TextPacket("headline one"),
		api.TextPacket("headline two"),
	}

	_, err := step.Execute(context.Background(), payload)
	assert.NoError(t, err)
	assert.Len(t, provider.requests, 1)

	req := provider.requests[0]
	assert.Equal(t, "test-model", req.Model)
	assert.Equal(t, "You summarize headlines", req.System)
	assert.Len(t, req.Messages, 3)
	assert.Equal(t, "Summarize the items below", req.Messages[0].Text())
	assert.Equal(t, "headline one", req.Messages[1].Text())
	assert.Equal(t, "headline two", req.Messages[2].Text())
}

func TestAIStepHandlerToolTerminates(t *testing.T) {
	var seen api.Args
	catalog := map[string]*api.ToolMetadata{
		"publish_post": {
			Declaration: api.ToolDeclaration{Name: "publish_post"},
			HandlerTool: true,
			Handler: func(
				_ context.Context, args api.Args,
			) (*api.ToolResult, error) {
				seen = args
				return api.OKResult(api.Args{"post_id": "42"}), nil
			},
		},
	}
	provider := &scriptedProvider{responses: []*api.Message{
		callMessage("publish_post", api.Args{"title": "Daily"}),
		api.TextMessage(api.RoleAssistant, "should never be requested"),
	}}
	step := newAIStep(provider, catalog)

	payload := aiPayload("publish_post")
	payload.Engine = api.EngineData{}.
		Set(api.EngineSourceURL, "https://example.com/post")
	payload.Packets = []*api.DataPacket{api.TextPacket("headline")}

	result, err := step.Execute(context.Background(), payload)
	assert.NoError(t, err)

	// Handler success in pipeline mode ends the loop after one turn
	assert.Len(t, provider.requests, 1)

	// Tool handlers see the call args merged over the step scope
	assert.Equal(t, "Daily", seen.GetString("title", ""))
	assert.Equal(t, "job-1", seen.GetString(steps.ScopeJobID, ""))
	assert.Equal(t, "summarize", seen.GetString(steps.ScopeStepID, ""))
	assert.Equal(t, "https://example.com/post",
		seen.GetString(api.EngineSourceURL, ""))

	// No final text: incoming packets pass through annotated
	assert.Len(t, result.Packets, 1)
	assert.Equal(t, "headline", result.Packets[0].Content)
	assert.Equal(t, 1, result.Packets[0].Processing.GetInt("ai_turns", 0))
}

func TestAIStepUnknownProvider(t *testing.T) {
	step := steps.NewAIStep(config.NewDefaultConfig(), nil, nil)

	_, err := step.Execute(context.Background(), aiPayload())
	assert.ErrorIs(t, err, steps.ErrProviderUnknown)
}

func TestAIStepUnknownTool(t *testing.T) {
	step := newAIStep(&scriptedProvider{}, nil)

	_, err := step.Execute(context.Background(), aiPayload("no_such_tool"))
	assert.ErrorIs(t, err, steps.ErrToolUnknown)
}

func TestAIStepMaxTurnsPartialResult(t *testing.T) {
	catalog := map[string]*api.ToolMetadata{
		"lookup": {
			Declaration: api.ToolDeclaration{Name: "lookup"},
			Handler: func(
				_ context.Context, _ api.Args,
			) (*api.ToolResult, error) {
				return api.OKResult(nil), nil
			},
		},
	}

	// Every turn requests a fresh tool call, so the loop only stops at
	// the turn bound
	var responses []*api.Message
	for i := range 5 {
		responses = append(responses, callMessage(
			"lookup", api.Args{"page": i},
		))
	}
	provider := &scriptedProvider{responses: responses}
	step := newAIStep(provider, catalog)

	payload := aiPayload("lookup")
	payload.Step.AI.MaxTurns = 2
	payload.Packets = []*api.DataPacket{api.TextPacket("headline")}

	result, err := step.Execute(context.Background(), payload)
	assert.NoError(t, err)
	assert.Len(t, provider.requests, 2)
	assert.Len(t, result.Packets, 1)
	assert.True(t,
		result.Packets[0].Processing.GetBool("ai_partial", false))
}

func TestAIStepClampsConfiguredTurnBound(t *testing.T) {
	catalog := map[string]*api.ToolMetadata{
		"lookup": {
			Declaration: api.ToolDeclaration{Name: "lookup"},
			Handler: func(
				_ context.Context, _ api.Args,
			) (*api.ToolResult, error) {
				return api.OKResult(nil), nil
			},
		},
	}

	var responses []*api.Message
	for i := range 5 {
		responses = append(responses, callMessage(
			"lookup", api.Args{"page": i},
		))
	}
	provider := &scriptedProvider{responses: responses}

	// A turn bound below the supported minimum still allows one turn
	cfg := config.NewDefaultConfig()
	cfg.MaxTurns = 0
	step := steps.NewAIStep(
		cfg, map[string]agent.Provider{"scripted": provider}, catalog,
	)

	payload := aiPayload("lookup")
	payload.Packets = []*api.DataPacket{api.TextPacket("headline")}

	result, err := step.Execute(context.Background(), payload)
	assert.NoError(t, err)
	assert.Len(t, provider.requests, 1)
	assert.Len(t, result.Packets, 1)
	assert.True(t,
		result.Packets[0].Processing.GetBool("ai_partial", false))
}

func TestAIStepProviderTimeout(t *testing.T) {
	provider := providerFunc(func(
		ctx context.Context, _ *agent.Request,
	) (*api.Message, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	cfg := config.NewDefaultConfig()
	cfg.ProviderTimeout = 10 * time.Millisecond
	step := steps.NewAIStep(
		cfg, map[string]agent.Provider{"scripted": provider}, nil,
	)

	_, err := step.Execute(context.Background(), aiPayload())
	assert.ErrorIs(t, err, agent.ErrProviderRequest)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type providerFunc func(context.Context, *agent.Request) (*api.Message, error)

func (f providerFunc) Generate(
	ctx context.Context, req *agent.Request,
) (*api.Message, error) {
	return f(ctx, req)
}
