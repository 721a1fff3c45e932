package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisCache(client, time.Hour), mr
}

func TestOwned_Miss(t *testing.T) {
	c, _ := setupTestRedis(t)

	owned, err := c.Owned(context.Background(), "buyer", "1")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.False(t, owned)
}

func TestMarkOwned_ThenOwned(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.MarkOwned(ctx, "buyer", "1"))
	owned, err := c.Owned(ctx, "buyer", "1")
	require.NoError(t, err)
	assert.True(t, owned)

	_, err = c.Owned(ctx, "buyer", "2")
	assert.ErrorIs(t, err, ErrCacheMiss)

	ttl := mr.TTL(cacheKey("buyer", "1"))
	assert.GreaterOrEqual(t, ttl, time.Hour)
}

func TestOwned_Expires(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.MarkOwned(ctx, "buyer", "1"))
	mr.FastForward(3 * time.Hour)

	_, err := c.Owned(ctx, "buyer", "1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestOwned_RedisDown(t *testing.T) {
	c, mr := setupTestRedis(t)
	mr.Close()

	_, err := c.Owned(context.Background(), "buyer", "1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	client, err := NewRedisClient(context.Background(), addr)
	require.NoError(t, err)
	client.Close()

	mr.Close()
	_, err = NewRedisClient(context.Background(), addr)
	assert.Error(t, err)
}
