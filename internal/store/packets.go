package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/redis/go-redis/v9"
	"gocloud.dev/blob"

	_ "gocloud.dev/blob/azureblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/datamill-io/datamill/pkg/api"
)

// PacketRepository stores the packet sets handed between steps. Small
// sets live inline in Redis; sets exceeding the inline limit spill to
// object storage via gocloud.dev/blob. Object keys are partitioned by
// flow so one flow can never read another's packets
type PacketRepository struct {
	client      *redis.Client
	bucket      *blob.Bucket
	prefix      string
	inlineLimit int
}

const (
	refSchemeInline = "inline:"
	refSchemeBlob   = "blob:"
)

var (
	ErrPacketsNotFound = errors.New("packet set not found")
	ErrBadPacketRef    = errors.New("malformed packet reference")
	ErrNoBucket        = errors.New("no packet bucket configured")
)

// NewPacketRepository creates a packet repository. The bucket may be nil,
// in which case all packet sets are stored inline regardless of size
func NewPacketRepository(
	client *redis.Client, bucket *blob.Bucket, prefix string, inlineLimit int,
) *PacketRepository {
	return &PacketRepository{
		client:      client,
		bucket:      bucket,
		prefix:      prefix,
		inlineLimit: inlineLimit,
	}
}

// Save persists a packet set for a job step and returns the reference a
// queued task carries in place of the data
func (r *PacketRepository) Save(
	ctx context.Context, flowID api.FlowID, jobID api.JobID,
	stepID api.StepID, packets []*api.DataPacket,
) (string, error) {
	data, err := json.Marshal(packets)
	if err != nil {
		return "", err
	}

	slot := r.slot(flowID, jobID, stepID)
	if r.bucket == nil || len(data) <= r.inlineLimit {
		if err := r.client.Set(
			ctx, r.inlineKey(slot), data, 0,
		).Err(); err != nil {
			return "", err
		}
		return refSchemeInline + slot, nil
	}

	if err := r.bucket.WriteAll(ctx, slot, data, nil); err != nil {
		return "", err
	}
	return refSchemeBlob + slot, nil
}

// Load reads a packet set back by reference
func (r *PacketRepository) Load(
	ctx context.Context, ref string,
) ([]*api.DataPacket, error) {
	var data []byte

	switch {
	case strings.HasPrefix(ref, refSchemeInline):
		slot := strings.TrimPrefix(ref, refSchemeInline)
		raw, err := r.client.Get(ctx, r.inlineKey(slot)).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrPacketsNotFound, ref)
		}
		if err != nil {
			return nil, err
		}
		data = raw

	case strings.HasPrefix(ref, refSchemeBlob):
		if r.bucket == nil {
			return nil, ErrNoBucket
		}
		slot := strings.TrimPrefix(ref, refSchemeBlob)
		raw, err := r.bucket.ReadAll(ctx, slot)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrPacketsNotFound, ref)
		}
		data = raw

	default:
		return nil, fmt.Errorf("%w: %s", ErrBadPacketRef, ref)
	}

	var packets []*api.DataPacket
	if err := json.Unmarshal(data, &packets); err != nil {
		return nil, err
	}
	return packets, nil
}

// DeleteJob removes every packet set stored for the job
func (r *PacketRepository) DeleteJob(
	ctx context.Context, flowID api.FlowID, jobID api.JobID,
) error {
	jobPrefix := r.slot(flowID, jobID, "")

	iter := r.client.Scan(
		ctx, 0, r.inlineKey(jobPrefix)+"*", 0,
	).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}

	if r.bucket == nil {
		return nil
	}

	list := r.bucket.List(&blob.ListOptions{Prefix: jobPrefix})
	for {
		obj, err := list.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := r.bucket.Delete(ctx, obj.Key); err != nil {
			return err
		}
	}
}

func (r *PacketRepository) slot(
	flowID api.FlowID, jobID api.JobID, stepID api.StepID,
) string {
	return fmt.Sprintf(
		"flows/%s/jobs/%s/%s", flowID, jobID, stepID,
	)
}

func (r *PacketRepository) inlineKey(slot string) string {
	return key(r.prefix, "packets", slot)
}
