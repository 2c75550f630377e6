package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"service-marketplace-server/models"
)

const defaultTTL = 5 * time.Minute

// CatalogCache is a read-through cache of catalog services in Redis.
// Redis failures are logged and treated as misses.
type CatalogCache struct {
	rdb *redis.Client
	ttl time.Duration
	log *zap.Logger
}

func NewCatalogCache(rdb *redis.Client, ttl time.Duration, log *zap.Logger) *CatalogCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CatalogCache{rdb: rdb, ttl: ttl, log: log.Named("catalog_cache")}
}

// Connect parses url, pings the server and returns a client.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

func serviceKey(id uint) string {
	return fmt.Sprintf("catalog:service:%d", id)
}

func (c *CatalogCache) GetService(ctx context.Context, id uint) (*models.Service, bool) {
	raw, err := c.rdb.Get(ctx, serviceKey(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("cache read failed", zap.Uint("service_id", id), zap.Error(err))
		}
		return nil, false
	}
	var service models.Service
	if err := json.Unmarshal(raw, &service); err != nil {
		c.log.Warn("dropping corrupt cache entry", zap.Uint("service_id", id), zap.Error(err))
		c.InvalidateService(ctx, id)
		return nil, false
	}
	return &service, true
}

func (c *CatalogCache) SetService(ctx context.Context, service *models.Service) {
	raw, err := json.Marshal(service)
	if err != nil {
		c.log.Warn("cache encode failed", zap.Uint("service_id", service.ID), zap.Error(err))
		return
	}
	if err := c.rdb.Set(ctx, serviceKey(service.ID), raw, c.ttl).Err(); err != nil {
		c.log.Warn("cache write failed", zap.Uint("service_id", service.ID), zap.Error(err))
	}
}

func (c *CatalogCache) InvalidateService(ctx context.Context, id uint) {
	if err := c.rdb.Del(ctx, serviceKey(id)).Err(); err != nil {
		c.log.Warn("cache invalidate failed", zap.Uint("service_id", id), zap.Error(err))
	}
}
