package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"taskscore/internal/platform/config"
)

// Cache is a JSON value cache in Redis with per-tenant generations.
// Bumping a tenant's generation orphans every key built from the old one.
type Cache struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

// New returns nil when REDIS_ADDR is unset; a nil *Cache is a valid no-op.
func New(ctx context.Context, cfg config.Config) (*Cache, error) {
	if cfg.RedisAddr == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	slog.Info("redis connected", "addr", cfg.RedisAddr, "db", cfg.RedisDB)
	return NewWithClient(rdb, cfg.LeaderboardCacheTTL), nil
}

func NewWithClient(rdb *redis.Client, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl, prefix: "taskscore"}
}

func (c *Cache) generationKey(tenantID string) string {
	return fmt.Sprintf("%s:gen:%s", c.prefix, tenantID)
}

// Key builds a cache key scoped to the tenant's current generation.
func (c *Cache) Key(ctx context.Context, tenantID, name string) (string, error) {
	if c == nil {
		return "", nil
	}
	gen, err := c.rdb.Get(ctx, c.generationKey(tenantID)).Int64()
	if errors.Is(err, redis.Nil) {
		gen = 0
	} else if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%s:%d:%s", c.prefix, tenantID, gen, name), nil
}

func (c *Cache) Invalidate(ctx context.Context, tenantID string) error {
	if c == nil {
		return nil
	}
	return c.rdb.Incr(ctx, c.generationKey(tenantID)).Err()
}

func (c *Cache) Get(ctx context.Context, key string, dest any) (bool, error) {
	if c == nil {
		return false, nil
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Cache) Set(ctx context.Context, key string, value any) error {
	if c == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, raw, c.ttl).Err()
}

// Hit implements a fixed-window counter shared by every replica. The window
// starts with the first INCR on key.
func (c *Cache) Hit(ctx context.Context, key string, window time.Duration) (int, time.Duration, error) {
	key = c.prefix + ":rl:" + key
	count, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	if count == 1 {
		if err := c.rdb.PExpire(ctx, key, window).Err(); err != nil {
			return 0, 0, err
		}
		return 1, window, nil
	}
	ttl, err := c.rdb.PTTL(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	if ttl < 0 {
		// Expiry was lost between INCR and PEXPIRE.
		if err := c.rdb.PExpire(ctx, key, window).Err(); err != nil {
			return 0, 0, err
		}
		ttl = window
	}
	return int(count), ttl, nil
}

func (c *Cache) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.rdb.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}
