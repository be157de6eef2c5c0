package store_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"gocloud.dev/blob/memblob"

	"github.com/datamill-io/datamill/internal/store"
	"github.com/datamill-io/datamill/pkg/api"
)

func samplePackets() []*api.DataPacket {
	packet := &api.DataPacket{
		Content: "Quantum lighthouse keeps ships honest",
		Metadata: api.Args{
			api.MetaSourceType: "rss",
			api.MetaItemID:     "item-42",
			api.MetaSourceURL:  "https://example.com/item-42",
		},
		Attachments: []api.Attachment{
			{Name: "hero.jpg", URL: "https://example.com/hero.jpg"},
		},
	}
	return []*api.DataPacket{packet.Annotate("summarized", true)}
}

func TestPacketRoundTripInline(t *testing.T) {
	as := assert.New(t)
	ctx := context.Background()
	repo := store.NewPacketRepository(
		newTestClient(t), nil, testPrefix, 1024,
	)

	packets := samplePackets()
	ref, err := repo.Save(ctx, "daily-news", "job-1", "fetch", packets)
	as.NoError(err)
	as.True(strings.HasPrefix(ref, "inline:"))

	loaded, err := repo.Load(ctx, ref)
	as.NoError(err)
	as.Equal(packets, loaded)
}

func TestPacketSpillsToBlobOverLimit(t *testing.T) {
	as := assert.New(t)
	ctx := context.Background()

	bucket := memblob.OpenBucket(nil)
	t.Cleanup(func() { _ = bucket.Close() })

	repo := store.NewPacketRepository(
		newTestClient(t), bucket, testPrefix, 8,
	)

	packets := samplePackets()
	ref, err := repo.Save(ctx, "daily-news", "job-1", "fetch", packets)
	as.NoError(err)
	as.True(strings.HasPrefix(ref, "blob:"))
	as.Contains(ref, "flows/daily-news/jobs/job-1/")

	loaded, err := repo.Load(ctx, ref)
	as.NoError(err)
	as.Equal(packets, loaded)
}

func TestPacketLoadErrors(t *testing.T) {
	as := assert.New(t)
	ctx := context.Background()
	repo := store.NewPacketRepository(
		newTestClient(t), nil, testPrefix, 1024,
	)

	_, err := repo.Load(ctx, "inline:flows/x/jobs/y/z")
	as.ErrorIs(err, store.ErrPacketsNotFound)

	_, err = repo.Load(ctx, "blob:flows/x/jobs/y/z")
	as.ErrorIs(err, store.ErrNoBucket)

	_, err = repo.Load(ctx, "bogus-ref")
	as.ErrorIs(err, store.ErrBadPacketRef)
}

func TestPacketDeleteJob(t *testing.T) {
	as := assert.New(t)
	ctx := context.Background()

	bucket := memblob.OpenBucket(nil)
	t.Cleanup(func() { _ = bucket.Close() })

	repo := store.NewPacketRepository(
		newTestClient(t), bucket, testPrefix, 8,
	)

	refA, err := repo.Save(ctx, "daily-news", "job-1", "fetch",
		samplePackets())
	as.NoError(err)
	refB, err := repo.Save(ctx, "daily-news", "job-1", "summarize",
		samplePackets())
	as.NoError(err)
	refOther, err := repo.Save(ctx, "daily-news", "job-2", "fetch",
		samplePackets())
	as.NoError(err)

	as.NoError(repo.DeleteJob(ctx, "daily-news", "job-1"))

	_, err = repo.Load(ctx, refA)
	as.ErrorIs(err, store.ErrPacketsNotFound)
	_, err = repo.Load(ctx, refB)
	as.ErrorIs(err, store.ErrPacketsNotFound)

	// Other jobs untouched
	loaded, err := repo.Load(ctx, refOther)
	as.NoError(err)
	as.NotEmpty(loaded)
}
