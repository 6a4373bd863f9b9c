package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"podshare/internal/middleware"
	"podshare/internal/observability"

	"github.com/redis/go-redis/v9"
)

const (
	PodKeyPrefix     = "pod:%d"
	PodSlugKeyPrefix = "pod:slug:%s"
)

// DefaultPodTTL bounds how stale a cached pod may be if an invalidation is lost.
const DefaultPodTTL = 5 * time.Minute

func PodKey(podID uint) string {
	return fmt.Sprintf(PodKeyPrefix, podID)
}

func PodSlugKey(slug string) string {
	return fmt.Sprintf(PodSlugKeyPrefix, slug)
}

// Cache is a JSON cache over Redis. A Cache with a nil client misses every
// lookup and ignores writes.
type Cache struct {
	rdb *redis.Client
}

// New returns a cache backed by rdb, which may be nil.
func New(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

// GetJSON loads key into dest. It reports false, nil on a miss.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if c == nil || c.rdb == nil {
		return false, nil
	}
	s, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(s), dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON stores v under key for ttl.
func (c *Cache) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, b, ttl).Err()
}

// Aside serves dest from key when cached, otherwise calls fetch to fill dest
// and stores the result. Redis failures fall through to fetch.
func (c *Cache) Aside(ctx context.Context, name, key string, dest any, ttl time.Duration, fetch func() error) error {
	found, err := c.GetJSON(ctx, key, dest)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "cache read failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	if found {
		observability.CacheLookups.WithLabelValues(name, "hit").Inc()
		return nil
	}
	observability.CacheLookups.WithLabelValues(name, "miss").Inc()

	if err := fetch(); err != nil {
		return err
	}

	if err := c.SetJSON(ctx, key, dest, ttl); err != nil {
		middleware.Logger.WarnContext(ctx, "cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	return nil
}

// Invalidate deletes keys. Failures are logged, not returned.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	if c == nil || c.rdb == nil || len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		middleware.Logger.WarnContext(ctx, "cache invalidation failed", slog.Any("keys", keys), slog.String("error", err.Error()))
	}
}

// InvalidatePod drops the cached pod under both its id and slug keys.
func (c *Cache) InvalidatePod(ctx context.Context, podID uint, slug string) {
	keys := []string{PodKey(podID)}
	if slug != "" {
		keys = append(keys, PodSlugKey(slug))
	}
	c.Invalidate(ctx, keys...)
}
