package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	keyPrefix  = "catalog:"
	versionKey = "catalog:version"
)

// CatalogCache stores read projections in redis under a shared version.
// Bumping the version invalidates every cached entry at once; stale entries
// expire through their TTL.
type CatalogCache struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewCatalogCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *CatalogCache {
	return &CatalogCache{redis: client, ttl: ttl, logger: logger}
}

// Get loads the entry of the given kind and id into dest and returns the
// version it looked under. Misses and redis failures both report false; a
// zero version means the cache is unavailable.
func (c *CatalogCache) Get(ctx context.Context, kind, id string, dest any) (int64, bool) {
	version, err := c.version(ctx)
	if err != nil {
		c.logger.Warn("Failed to read cache version", zap.Error(err))
		return 0, false
	}

	raw, err := c.redis.Get(ctx, entryKey(version, kind, id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Failed to read cache entry", zap.Error(err), zap.String("kind", kind), zap.String("id", id))
		}
		return version, false
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		c.logger.Warn("Failed to unmarshal cache entry", zap.Error(err), zap.String("kind", kind), zap.String("id", id))
		return version, false
	}
	return version, true
}

// Set stores value under the version a previous Get missed on. An Invalidate
// in between leaves the entry under a version no reader asks for again.
// Failures are logged only.
func (c *CatalogCache) Set(ctx context.Context, version int64, kind, id string, value any) {
	if version <= 0 {
		return
	}

	payload, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("Failed to marshal cache entry", zap.Error(err), zap.String("kind", kind))
		return
	}

	if err := c.redis.Set(ctx, entryKey(version, kind, id), payload, c.ttl).Err(); err != nil {
		c.logger.Warn("Failed to write cache entry", zap.Error(err), zap.String("kind", kind), zap.String("id", id))
	}
}

// Invalidate drops every cached projection by bumping the version
func (c *CatalogCache) Invalidate(ctx context.Context) error {
	next, err := c.redis.Incr(ctx, versionKey).Result()
	if err != nil {
		return fmt.Errorf("failed to invalidate catalog cache: %w", err)
	}
	c.logger.Debug("Catalog cache invalidated", zap.Int64("version", next))
	return nil
}

func (c *CatalogCache) version(ctx context.Context) (int64, error) {
	ver, err := c.redis.Get(ctx, versionKey).Int64()
	if err == nil {
		return ver, nil
	}
	if !errors.Is(err, redis.Nil) {
		return 0, err
	}

	// first reader seeds the version; a concurrent Incr wins over SetNX
	if err := c.redis.SetNX(ctx, versionKey, 1, 0).Err(); err != nil {
		return 0, err
	}
	return c.redis.Get(ctx, versionKey).Int64()
}

func entryKey(version int64, kind, id string) string {
	return fmt.Sprintf("%sv%d:%s:%s", keyPrefix, version, kind, id)
}
