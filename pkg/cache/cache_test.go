package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances only when told to
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	cache := NewMemoryCache(clock)

	require.NoError(t, cache.Set(ctx, "models:image", []byte(`["a"]`), time.Minute))

	value, ok, err := cache.Get(ctx, "models:image")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte(`["a"]`), value)

	// Just before expiry the entry is still live
	clock.Advance(59 * time.Second)
	_, ok, err = cache.Get(ctx, "models:image")
	require.NoError(t, err)
	assert.True(t, ok)

	// At the deadline it is gone
	clock.Advance(time.Second)
	_, ok, err = cache.Get(ctx, "models:image")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCacheInvalidate(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache(&fakeClock{now: time.Now()})

	require.NoError(t, cache.Set(ctx, "k", []byte("v"), time.Hour))
	require.NoError(t, cache.Invalidate(ctx, "k"))

	_, ok, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCacheMiss(t *testing.T) {
	_, ok, err := NewMemoryCache(nil).Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCacheCopiesValues(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache(&fakeClock{now: time.Now()})

	original := []byte("value")
	require.NoError(t, cache.Set(ctx, "k", original, time.Hour))
	original[0] = 'X'

	value, ok, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("value"), value)
}

func TestRedisCache(t *testing.T) {
	ctx := context.Background()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	cache := NewRedisCacheFromClient(client, "loom")

	require.NoError(t, cache.Set(ctx, "models:video", []byte(`["b"]`), time.Minute))

	value, ok, err := cache.Get(ctx, "models:video")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte(`["b"]`), value)

	// Keys are namespaced by the prefix
	assert.True(t, server.Exists("loom:models:video"))

	server.FastForward(2 * time.Minute)
	_, ok, err = cache.Get(ctx, "models:video")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, "k", []byte("v"), time.Minute))
	require.NoError(t, cache.Invalidate(ctx, "k"))
	_, ok, err = cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
