package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redcache/redcache/internal/shared/config"
)

func TestNewRedisClient(t *testing.T) {
	ctx := context.Background()

	t.Run("connects and pings", func(t *testing.T) {
		mr := miniredis.RunT(t)

		client, err := NewRedisClient(ctx, &config.RedisConfig{
			Address:     mr.Addr(),
			DialTimeout: time.Second,
		})
		require.NoError(t, err)
		defer Close(client)

		assert.NoError(t, client.Set(ctx, "k", "v", 0).Err())
	})

	t.Run("fails when the store is unreachable", func(t *testing.T) {
		_, err := NewRedisClient(ctx, &config.RedisConfig{
			Address:     "127.0.0.1:1",
			DialTimeout: 100 * time.Millisecond,
		})
		assert.Error(t, err)
	})
}
