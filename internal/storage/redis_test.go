package storage

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewRedisCacheFromClient(client)
	t.Cleanup(func() { cache.Close() })
	return cache, mr
}

func TestScrapeCacheRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := testContext(t)

	_, ok, err := cache.GetFresh(ctx, "somehandle")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.MarkScraped(ctx, "somehandle", `{"profile":{}}`, time.Hour))

	payload, ok, err := cache.GetFresh(ctx, "somehandle")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"profile":{}}`, payload)
}

func TestScrapeCacheExpiry(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := testContext(t)

	require.NoError(t, cache.MarkScraped(ctx, "somehandle", "payload", time.Minute))
	mr.FastForward(2 * time.Minute)

	_, ok, err := cache.GetFresh(ctx, "somehandle")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestScrapeCacheInvalidate(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := testContext(t)

	require.NoError(t, cache.MarkScraped(ctx, "somehandle", "payload", time.Hour))
	require.NoError(t, cache.Invalidate(ctx, "somehandle"))

	_, ok, err := cache.GetFresh(ctx, "somehandle")
	require.NoError(t, err)
	assert.False(t, ok)
}
