// Package store provides the Redis-backed persistence layer for the
// pipeline engine: job rows, flow definitions, the durable step-task
// queue, processed-item dedup records, per-job engine data, and the
// packet repository
package store

import (
	"strings"

	"github.com/redis/go-redis/v9"
	"gocloud.dev/blob"

	"github.com/datamill-io/datamill/internal/config"
)

// Stores bundles the persistence layer handed to the orchestrator at
// construction time
type Stores struct {
	Jobs    *JobStore
	Flows   *FlowStore
	Queue   *TaskQueue
	Dedup   *DedupStore
	Engine  *EngineDataStore
	Packets *PacketRepository
}

// NewClient constructs a Redis client from configuration
func NewClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// NewStores wires the full persistence layer over one client. The
// bucket may be nil when no packet spillover is configured
func NewStores(
	client *redis.Client, bucket *blob.Bucket, cfg *config.Config,
) *Stores {
	prefix := cfg.Redis.Prefix
	return &Stores{
		Jobs:   NewJobStore(client, prefix),
		Flows:  NewFlowStore(client, prefix),
		Queue:  NewTaskQueue(client, prefix),
		Dedup:  NewDedupStore(client, prefix, cfg.DedupRetention),
		Engine: NewEngineDataStore(client, prefix),
		Packets: NewPacketRepository(
			client, bucket, prefix, cfg.PacketInlineLimit,
		),
	}
}

func key(prefix string, parts ...string) string {
	return prefix + ":" + strings.Join(parts, ":")
}
