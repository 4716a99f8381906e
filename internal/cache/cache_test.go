package cache_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airsense/aqiforecast/internal/cache"
)

func TestMemoryCache_SetGet(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemoryCache()

	require.NoError(t, c.SetBytes(ctx, "k", []byte("value"), time.Minute))

	b, ok, err := c.GetBytes(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("value"), b)
}

func TestMemoryCache_Miss(t *testing.T) {
	b, ok, err := cache.NewMemoryCache().GetBytes(context.Background(), "missing")

	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, b)
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemoryCache()

	require.NoError(t, c.SetBytes(ctx, "k", []byte("v"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	_, ok, err := c.GetBytes(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestMemoryCache_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemoryCache()

	value := []byte("abc")
	require.NoError(t, c.SetBytes(ctx, "k", value, 0))
	value[0] = 'x'

	b, _, _ := c.GetBytes(ctx, "k")
	assert.Equal(t, []byte("abc"), b)

	b[1] = 'y'
	again, _, _ := c.GetBytes(ctx, "k")
	assert.Equal(t, []byte("abc"), again)
}

func TestMemoryCache_SweepRemovesUnreadExpiredEntries(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemoryCache(cache.WithCleanupInterval(10 * time.Millisecond))
	defer c.Close()

	for i := 0; i < 1000; i++ {
		require.NoError(t, c.SetBytes(ctx, fmt.Sprintf("forecast:28.61:77.2:%d", i), []byte("{}"), time.Millisecond))
	}
	require.NoError(t, c.SetBytes(ctx, "forecast:28.61:77.2:fresh", []byte("{}"), time.Minute))

	assert.Eventually(t, func() bool { return c.Len() == 1 }, time.Second, 10*time.Millisecond)

	_, ok, err := c.GetBytes(ctx, "forecast:28.61:77.2:fresh")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemoryCache(cache.WithMaxSize(2))
	defer c.Close()

	require.NoError(t, c.SetBytes(ctx, "delhi", []byte("1"), time.Minute))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, c.SetBytes(ctx, "mumbai", []byte("2"), time.Minute))
	time.Sleep(2 * time.Millisecond)

	_, ok, _ := c.GetBytes(ctx, "delhi")
	require.True(t, ok)
	time.Sleep(2 * time.Millisecond)

	require.NoError(t, c.SetBytes(ctx, "pune", []byte("3"), time.Minute))

	assert.Equal(t, 2, c.Len())
	_, ok, _ = c.GetBytes(ctx, "mumbai")
	assert.False(t, ok, "least recently used entry is evicted")
	_, ok, _ = c.GetBytes(ctx, "delhi")
	assert.True(t, ok)
	_, ok, _ = c.GetBytes(ctx, "pune")
	assert.True(t, ok)
}

func TestMemoryCache_OverwriteDoesNotEvict(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemoryCache(cache.WithMaxSize(2))
	defer c.Close()

	require.NoError(t, c.SetBytes(ctx, "delhi", []byte("1"), time.Minute))
	require.NoError(t, c.SetBytes(ctx, "mumbai", []byte("2"), time.Minute))
	require.NoError(t, c.SetBytes(ctx, "delhi", []byte("3"), time.Minute))

	assert.Equal(t, 2, c.Len())
	b, ok, _ := c.GetBytes(ctx, "delhi")
	require.True(t, ok)
	assert.Equal(t, []byte("3"), b)
}

func TestMemoryCache_CloseIsIdempotent(t *testing.T) {
	c := cache.NewMemoryCache()
	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}

func TestNewRedisCache_Unreachable(t *testing.T) {
	_, err := cache.NewRedisCache(context.Background(), cache.RedisConfig{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping")
}
