//go:build integration

package ratelimit

import (
	"context"
	"strings"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testcontainersredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func TestRedis_Allow_Integration(t *testing.T) {
	ctx := context.Background()

	container, err := testcontainersredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	defer func() { _ = container.Terminate(ctx) }()

	addr, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: strings.TrimPrefix(addr, "redis://")})
	defer client.Close()

	l := NewRedis(client)

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "shopify", "10.0.0.1", 2)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, err := l.Allow(ctx, "shopify", "10.0.0.1", 2)
	require.NoError(t, err)
	assert.False(t, ok)

	ttl, err := client.PTTL(ctx, "ratelimit:{shopify}:10.0.0.1").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl.Milliseconds(), int64(0))
}
