package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type entry struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func newTestCache(t *testing.T) (*CatalogCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCatalogCache(client, time.Minute, zap.NewNop()), mr
}

func TestCatalogCache_SetGet(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	var got entry
	version, hit := c.Get(ctx, "product", "runner", &got)
	assert.False(t, hit)
	assert.Equal(t, int64(1), version)

	c.Set(ctx, version, "product", "runner", entry{Name: "Runner", Count: 3})
	_, hit = c.Get(ctx, "product", "runner", &got)
	require.True(t, hit)
	assert.Equal(t, entry{Name: "Runner", Count: 3}, got)
}

func TestCatalogCache_InvalidateDropsEverything(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	var one entry
	var many []entry
	version, _ := c.Get(ctx, "product", "a", &one)
	c.Set(ctx, version, "product", "a", entry{Name: "A"})
	c.Set(ctx, version, "section", "featured", []entry{{Name: "A"}})

	require.NoError(t, c.Invalidate(ctx))

	version, hit := c.Get(ctx, "product", "a", &one)
	assert.False(t, hit)
	_, hit = c.Get(ctx, "section", "featured", &many)
	assert.False(t, hit)

	c.Set(ctx, version, "product", "a", entry{Name: "A2"})
	_, hit = c.Get(ctx, "product", "a", &one)
	require.True(t, hit)
	assert.Equal(t, "A2", one.Name)
}

func TestCatalogCache_LoadRacingInvalidateIsNeverServed(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	// reader misses, loads old rows, a write lands, then the reader stores
	var got entry
	missedOn, hit := c.Get(ctx, "product", "runner", &got)
	require.False(t, hit)

	require.NoError(t, c.Invalidate(ctx))
	c.Set(ctx, missedOn, "product", "runner", entry{Name: "Old name", Count: 1})

	version, hit := c.Get(ctx, "product", "runner", &got)
	assert.False(t, hit, "entry loaded before the write must not be served: %+v", got)
	assert.Greater(t, version, missedOn)

	c.Set(ctx, version, "product", "runner", entry{Name: "New name", Count: 2})
	_, hit = c.Get(ctx, "product", "runner", &got)
	require.True(t, hit)
	assert.Equal(t, "New name", got.Name)
}

func TestCatalogCache_TTLAndCorruptEntries(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	var got entry
	version, _ := c.Get(ctx, "product", "a", &got)
	c.Set(ctx, version, "product", "a", entry{Name: "A"})
	mr.FastForward(2 * time.Minute)

	_, hit := c.Get(ctx, "product", "a", &got)
	assert.False(t, hit)

	require.NoError(t, mr.Set(entryKey(version, "product", "bad"), "{not json"))
	_, hit = c.Get(ctx, "product", "bad", &got)
	assert.False(t, hit)
}

func TestCatalogCache_RedisDown(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	mr.Close()

	var got entry
	version, hit := c.Get(ctx, "product", "a", &got)
	assert.False(t, hit)
	assert.Zero(t, version)
	c.Set(ctx, version, "product", "a", entry{Name: "A"})
	assert.Error(t, c.Invalidate(ctx))
}
