package store_test

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/datamill-io/datamill/internal/config"
	"github.com/datamill-io/datamill/internal/store"
)

const testPrefix = "test"

func newTestClient(t *testing.T) *redis.Client {
	t.Helper()

	server, err := miniredis.Run()
	assert.NoError(t, err)
	t.Cleanup(server.Close)

	return store.NewClient(config.RedisConfig{Addr: server.Addr()})
}
