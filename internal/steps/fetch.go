// Package steps provides the built-in step implementations the
// orchestrator dispatches to: the dedup-aware fetch adapter, the AI
// step, and the publish/update target adapters. Concrete sources and
// targets plug in through the SourceReader and Target interfaces
package steps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/datamill-io/datamill/internal/engine"
	"github.com/datamill-io/datamill/internal/store"
	"github.com/datamill-io/datamill/pkg/api"
	"github.com/datamill-io/datamill/pkg/log"
)

type (
	// SourceReader lists candidate items from an external source.
	// Readers only enumerate; deduplication and packet emission belong
	// to the fetch adapter
	SourceReader interface {
		ReadItems(context.Context, api.Args) ([]*SourceItem, error)
	}

	// SourceItem is one candidate item produced by a reader
	SourceItem struct {
		FetchedAt time.Time
		Metadata  api.Args
		ID        api.ItemID
		Content   string
		SourceURL string
		ImageURL  string
	}

	// FetchStep adapts source readers to the step contract. It consults
	// the dedup store before emitting a packet for an item and reports
	// the emitted items as claims, which the orchestrator marks only
	// after the packets have been durably handed off
	FetchStep struct {
		readers map[api.SourceType]SourceReader
		dedup   *store.DedupStore
	}
)

var (
	ErrSourceUnknown = errors.New("no reader for source type")
	ErrItemIDEmpty   = errors.New("source item has no identifier")
)

// NewFetchStep creates the fetch adapter over the given readers
func NewFetchStep(
	dedup *store.DedupStore, readers map[api.SourceType]SourceReader,
) *FetchStep {
	return &FetchStep{readers: readers, dedup: dedup}
}

// Execute lists items from the configured source and emits a packet for
// each one the flow step has not consumed before. An empty result means
// every listed item was already processed
func (s *FetchStep) Execute(
	ctx context.Context, p *engine.Payload,
) (*engine.Result, error) {
	cfg := p.Step.Fetch
	if cfg == nil {
		return nil, api.ErrFetchRequired
	}

	reader, ok := s.readers[cfg.Source]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSourceUnknown, cfg.Source)
	}

	items, err := reader.ReadItems(ctx, cfg.Settings)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", cfg.Source, err)
	}

	result := &engine.Result{}
	for _, item := range items {
		if item.ID == "" {
			return nil, fmt.Errorf("%w: source %s", ErrItemIDEmpty,
				cfg.Source)
		}

		processed, err := s.dedup.IsProcessed(
			ctx, p.Step.ID, cfg.Source, item.ID,
		)
		if err != nil {
			return nil, err
		}
		if processed {
			slog.Debug("Skipping processed item",
				log.StepID(p.Step.ID),
				slog.String("item_id", string(item.ID)))
			continue
		}

		result.Packets = append(result.Packets, s.packet(cfg, item))
		result.Claims = append(result.Claims, engine.Claim{
			StepID: p.Step.ID,
			Source: cfg.Source,
			Item:   item.ID,
		})
		result.Engine = applyEngineData(result.Engine, item)
	}

	slog.Info("Fetch step finished",
		log.JobID(p.JobID),
		log.StepID(p.Step.ID),
		slog.Int("listed", len(items)),
		slog.Int("emitted", len(result.Packets)))
	return result, nil
}

func (s *FetchStep) packet(
	cfg *api.FetchConfig, item *SourceItem,
) *api.DataPacket {
	fetched := item.FetchedAt
	if fetched.IsZero() {
		fetched = time.Now()
	}

	packet := api.NewPacket(item.Content, cfg.Source, item.ID, fetched)
	for name, value := range item.Metadata {
		packet = packet.SetMeta(name, value)
	}
	if item.SourceURL != "" {
		packet = packet.SetMeta(api.MetaSourceURL, item.SourceURL)
	}
	return packet
}

// applyEngineData records the side-channel values downstream publish
// steps need without exposing them as AI-visible content
func applyEngineData(data api.EngineData, item *SourceItem) api.EngineData {
	if item.SourceURL != "" {
		data = data.Set(api.EngineSourceURL, item.SourceURL)
	}
	if item.ImageURL != "" {
		data = data.Set(api.EngineImageURL, item.ImageURL)
	}
	return data
}
