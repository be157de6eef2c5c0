// Package helpers provides the miniredis-backed test environment and
// scripted fakes used across the engine's test suites
package helpers

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"

	"github.com/datamill-io/datamill/internal/agent"
	"github.com/datamill-io/datamill/internal/config"
	"github.com/datamill-io/datamill/internal/engine"
	"github.com/datamill-io/datamill/internal/steps"
	"github.com/datamill-io/datamill/internal/store"
	"github.com/datamill-io/datamill/pkg/api"
)

// TestEnv holds all the components needed for pipeline testing. The
// built-in steps are wired over scripted fakes: a queued source reader,
// a scripted model provider, and a recording target
type TestEnv struct {
	Engine   *engine.Engine
	Stores   *store.Stores
	Redis    *miniredis.Miniredis
	Config   *config.Config
	Registry *engine.Registry
	Source   *QueuedReader
	Provider *ScriptedProvider
	Target   *RecordingTarget
	Tools    map[string]*api.ToolMetadata
	Cleanup  func()
}

// Scripted binding names the test environment registers
const (
	TestSource   = api.SourceType("test-source")
	TestProvider = "test-provider"
	TestTarget   = "test-target"
)

// NewTestConfig creates a default configuration with debug logging and
// a short reclaim window suited to tests
func NewTestConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.LogLevel = "debug"
	cfg.ClaimTimeout = 100 * time.Millisecond
	cfg.ReclaimAfter = 500 * time.Millisecond
	cfg.ShutdownTimeout = 2 * time.Second
	return cfg
}

// NewTestEnv creates a fully configured test environment with an
// in-memory Redis backend, scripted step fakes, and the built-in steps
// registered
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	server, err := miniredis.Run()
	assert.NoError(t, err)

	cfg := NewTestConfig()
	cfg.Redis.Addr = server.Addr()
	cfg.Redis.Prefix = "test"

	stores := store.NewStores(store.NewClient(cfg.Redis), nil, cfg)
	reg := engine.NewRegistry()
	eng := engine.New(cfg, stores, reg)

	source := &QueuedReader{}
	provider := &ScriptedProvider{}
	target := &RecordingTarget{}
	tools := map[string]*api.ToolMetadata{}

	err = steps.RegisterAll(reg,
		steps.NewFetchStep(stores.Dedup,
			map[api.SourceType]steps.SourceReader{TestSource: source}),
		steps.NewAIStep(cfg,
			map[string]agent.Provider{TestProvider: provider}, tools),
		steps.NewPublishStep(map[string]steps.Target{TestTarget: target}),
		steps.NewUpdateStep(map[string]steps.Target{TestTarget: target}),
	)
	assert.NoError(t, err)

	cleanup := func() {
		_ = eng.Stop()
		server.Close()
	}

	return &TestEnv{
		Engine:   eng,
		Stores:   stores,
		Redis:    server,
		Config:   cfg,
		Registry: reg,
		Source:   source,
		Provider: provider,
		Target:   target,
		Tools:    tools,
		Cleanup:  cleanup,
	}
}

// NewEngineInstance creates a new engine instance sharing the same
// stores and registry. Used to simulate process restart after crash
func (e *TestEnv) NewEngineInstance() *engine.Engine {
	return engine.New(e.Config, e.Stores, e.Registry)
}

// BindTool adds a tool to the AI step's catalog
func (e *TestEnv) BindTool(tool *api.ToolMetadata) {
	e.Tools[tool.Declaration.Name] = tool
}

// NewTestFlow builds a three step fetch, summarize, publish flow over
// the environment's scripted bindings
func NewTestFlow(id api.FlowID, tools ...string) *api.Flow {
	return &api.Flow{
		ID:   id,
		Name: string(id),
		Steps: []*api.FlowStep{
			{
				ID:    "fetch",
				Type:  api.StepTypeFetch,
				Fetch: &api.FetchConfig{Source: TestSource},
			},
			{
				ID:       "summarize",
				Type:     api.StepTypeAI,
				Position: 1,
				AI: &api.AIConfig{
					Provider: TestProvider,
					Model:    "test-model",
					Tools:    tools,
				},
			},
			{
				ID:       "publish",
				Type:     api.StepTypePublish,
				Position: 2,
				Publish:  &api.PublishConfig{Target: TestTarget},
			},
		},
	}
}
