package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"taskscore/internal/platform/config"
)

func TestNilCacheIsNoop(t *testing.T) {
	var c *Cache
	ctx := context.Background()

	found, err := c.Get(ctx, "k", &struct{}{})
	require.NoError(t, err)
	require.False(t, found)
	require.NoError(t, c.Set(ctx, "k", 1))
	require.NoError(t, c.Invalidate(ctx, "t1"))
	require.NoError(t, c.Ping(ctx))
	require.NoError(t, c.Close())
}

func TestNewWithoutAddrDisablesCache(t *testing.T) {
	c, err := New(context.Background(), config.Config{})
	require.NoError(t, err)
	require.Nil(t, c)
}

func TestInvalidateRotatesKeys(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	c := NewWithClient(rdb, time.Minute)
	defer c.Close()

	tenantID := uuid.NewString()
	key, err := c.Key(ctx, tenantID, "leaderboard")
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, key, []string{"a", "b"}))

	var got []string
	found, err := c.Get(ctx, key, &got)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []string{"a", "b"}, got)

	require.NoError(t, c.Invalidate(ctx, tenantID))
	rotated, err := c.Key(ctx, tenantID, "leaderboard")
	require.NoError(t, err)
	require.NotEqual(t, key, rotated)

	found, err = c.Get(ctx, rotated, &got)
	require.NoError(t, err)
	require.False(t, found)
}

func TestHitCountsWithinWindow(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	c := NewWithClient(redis.NewClient(&redis.Options{Addr: addr}), time.Minute)
	defer c.Close()

	key := "test:" + uuid.NewString()
	for want := 1; want <= 3; want++ {
		count, resetIn, err := c.Hit(ctx, key, time.Minute)
		require.NoError(t, err)
		require.Equal(t, want, count)
		require.Greater(t, resetIn, 50*time.Second)
		require.LessOrEqual(t, resetIn, time.Minute)
	}

	count, _, err := c.Hit(ctx, key, time.Minute)
	require.NoError(t, err)
	require.Equal(t, 4, count)
}
