package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/datamill-io/datamill/internal/store"
	"github.com/datamill-io/datamill/pkg/api"
)

func newFlow(id api.FlowID) *api.Flow {
	return &api.Flow{
		ID:   id,
		Name: "Daily News",
		Steps: []*api.FlowStep{
			{
				ID:   "fetch",
				Type: api.StepTypeFetch,
				Fetch: &api.FetchConfig{
					Source: "rss",
					Settings: api.Args{
						"feed_url": "https://example.com/feed.xml",
					},
				},
			},
			{
				ID:       "summarize",
				Type:     api.StepTypeAI,
				Position: 1,
				AI: &api.AIConfig{
					Provider: "fake",
					Model:    "fake-small",
				},
			},
			{
				ID:       "publish",
				Type:     api.StepTypePublish,
				Position: 2,
				Publish:  &api.PublishConfig{Target: "site"},
			},
		},
	}
}

func TestFlowPutGetList(t *testing.T) {
	as := assert.New(t)
	ctx := context.Background()
	flows := store.NewFlowStore(newTestClient(t), testPrefix)

	as.NoError(flows.Put(ctx, newFlow("daily-news")))
	as.NoError(flows.Put(ctx, newFlow("weekly-digest")))

	flow, err := flows.Get(ctx, "daily-news")
	as.NoError(err)
	as.Equal([]api.StepID{"fetch", "summarize", "publish"}, flow.StepIDs())

	all, err := flows.List(ctx)
	as.NoError(err)
	as.Len(all, 2)

	as.NoError(flows.Delete(ctx, "weekly-digest"))
	_, err = flows.Get(ctx, "weekly-digest")
	as.ErrorIs(err, store.ErrFlowNotFound)
}

func TestFlowPutRejectsInvalid(t *testing.T) {
	as := assert.New(t)
	ctx := context.Background()
	flows := store.NewFlowStore(newTestClient(t), testPrefix)

	bad := newFlow("daily-news")
	bad.Steps = nil
	as.ErrorIs(flows.Put(ctx, bad), api.ErrFlowNoSteps)

	bad = newFlow("daily-news")
	bad.Steps[1].AI = nil
	as.ErrorIs(flows.Put(ctx, bad), api.ErrAIRequired)
}

func TestEngineDataLifecycle(t *testing.T) {
	as := assert.New(t)
	ctx := context.Background()
	engine := store.NewEngineDataStore(newTestClient(t), testPrefix)

	as.NoError(engine.Set(ctx, "job-1", api.EngineSourceURL,
		"https://example.com/item-42"))
	as.NoError(engine.Apply(ctx, "job-1", api.EngineData{
		api.EngineImageURL: "https://example.com/hero.jpg",
	}))

	data, err := engine.Get(ctx, "job-1")
	as.NoError(err)
	url, ok := data.Get(api.EngineSourceURL)
	as.True(ok)
	as.Equal("https://example.com/item-42", url)
	as.Len(data, 2)

	as.NoError(engine.Delete(ctx, "job-1"))
	data, err = engine.Get(ctx, "job-1")
	as.NoError(err)
	as.Empty(data)
}
