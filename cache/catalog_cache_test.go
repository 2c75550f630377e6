package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"service-marketplace-server/models"
)

func newTestCache(t *testing.T) (*CatalogCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewCatalogCache(rdb, time.Minute, nil), mr
}

func TestCatalogCacheRoundTrip(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	_, ok := c.GetService(ctx, 7)
	assert.False(t, ok)

	c.SetService(ctx, &models.Service{ID: 7, Name: "Pipe repair", BasePrice: 80, ServiceType: "plumbing", IsActive: true})
	assert.True(t, mr.Exists("catalog:service:7"))
	assert.Equal(t, time.Minute, mr.TTL("catalog:service:7"))

	got, ok := c.GetService(ctx, 7)
	require.True(t, ok)
	assert.Equal(t, "Pipe repair", got.Name)
	assert.InDelta(t, 80.0, got.BasePrice, 1e-9)

	c.InvalidateService(ctx, 7)
	_, ok = c.GetService(ctx, 7)
	assert.False(t, ok)
}

func TestCatalogCacheExpires(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	c.SetService(ctx, &models.Service{ID: 1, Name: "Deep clean"})
	mr.FastForward(2 * time.Minute)
	_, ok := c.GetService(ctx, 1)
	assert.False(t, ok)
}

func TestCatalogCacheDropsCorruptEntries(t *testing.T) {
	c, mr := newTestCache(t)
	require.NoError(t, mr.Set("catalog:service:3", "{not json"))

	_, ok := c.GetService(context.Background(), 3)
	assert.False(t, ok)
	assert.False(t, mr.Exists("catalog:service:3"))
}

func TestCatalogCacheTreatsOutageAsMiss(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	c := NewCatalogCache(rdb, time.Minute, nil)
	mr.Close()

	c.SetService(context.Background(), &models.Service{ID: 2})
	_, ok := c.GetService(context.Background(), 2)
	assert.False(t, ok)
}

func TestConnectRejectsBadURL(t *testing.T) {
	_, err := Connect(context.Background(), "not-a-url")
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	rdb, err := Connect(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	_ = rdb.Close()
}
