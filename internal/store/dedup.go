package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/datamill-io/datamill/pkg/api"
)

type (
	// DedupStore records which source items a flow step has already
	// consumed. The (step, source, item) triple is the unique key; the
	// NX write is the race arbiter, so two concurrent attempts to mark
	// the same item resolve to exactly one winner
	DedupStore struct {
		client    *redis.Client
		prefix    string
		retention time.Duration
	}

	// ProcessedItem is the stored dedup record
	ProcessedItem struct {
		CreatedAt time.Time `json:"created_at"`
		JobID     api.JobID `json:"job_id"`
	}
)

// NewDedupStore creates a dedup store. Records expire after the
// retention period; zero retention keeps them forever
func NewDedupStore(
	client *redis.Client, prefix string, retention time.Duration,
) *DedupStore {
	return &DedupStore{client: client, prefix: prefix, retention: retention}
}

// IsProcessed reports whether the item has already been consumed by the
// flow step
func (s *DedupStore) IsProcessed(
	ctx context.Context, step api.StepID, source api.SourceType,
	item api.ItemID,
) (bool, error) {
	n, err := s.client.Exists(ctx, s.itemKey(step, source, item)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkProcessed inserts the dedup record. Returns false when the triple
// was already recorded, which callers treat as already-processed
func (s *DedupStore) MarkProcessed(
	ctx context.Context, step api.StepID, source api.SourceType,
	item api.ItemID, jobID api.JobID,
) (bool, error) {
	record := ProcessedItem{
		JobID:     jobID,
		CreatedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(record)
	if err != nil {
		return false, err
	}

	return s.client.SetNX(
		ctx, s.itemKey(step, source, item), data, s.retention,
	).Result()
}

// Lookup returns the stored record for a processed item, if present
func (s *DedupStore) Lookup(
	ctx context.Context, step api.StepID, source api.SourceType,
	item api.ItemID,
) (*ProcessedItem, bool, error) {
	data, err := s.client.Get(
		ctx, s.itemKey(step, source, item),
	).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var record ProcessedItem
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, false, err
	}
	return &record, true, nil
}

func (s *DedupStore) itemKey(
	step api.StepID, source api.SourceType, item api.ItemID,
) string {
	// Item identifiers may contain arbitrary characters; hash them so
	// the triple remains a single well-formed key segment
	sum := sha256.Sum256([]byte(item))
	return key(s.prefix, "seen", string(step), string(source),
		hex.EncodeToString(sum[:]))
}
