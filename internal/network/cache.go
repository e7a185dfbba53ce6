package network

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/term-proximity-network/pkg/redis"
)

const keyPrefix = "network:"

// Cache stores computed networks.
type Cache interface {
	GetOrCompute(ctx context.Context, key string, compute func() (*Network, error)) (*Network, bool, error)
	Invalidate(ctx context.Context) (int64, error)
	Stats() (hits, misses int64)
}

// KV is the subset of the Redis client the cache needs.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// RedisCache keeps networks in Redis and collapses concurrent computations of
// the same key with singleflight. Redis errors degrade to a cache miss.
type RedisCache struct {
	kv      KV
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

func NewRedisCache(kv KV, ttl time.Duration, m *metrics.Metrics) *RedisCache {
	return &RedisCache{
		kv:      kv,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "network-cache"),
	}
}

func (c *RedisCache) get(ctx context.Context, key string) (*Network, bool) {
	data, err := c.kv.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		return nil, false
	}
	var n Network
	if err := json.Unmarshal(data, &n); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		return nil, false
	}
	return &n, true
}

func (c *RedisCache) set(ctx context.Context, key string, n *Network) {
	data, err := json.Marshal(n)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.kv.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

func (c *RedisCache) GetOrCompute(ctx context.Context, key string, compute func() (*Network, error)) (*Network, bool, error) {
	if n, ok := c.get(ctx, key); ok {
		c.hit()
		c.logger.Debug("cache hit", "key", key)
		return n, true, nil
	}
	c.miss()
	val, err, _ := c.group.Do(key, func() (any, error) {
		if n, ok := c.get(ctx, key); ok {
			return n, nil
		}
		n, err := compute()
		if err != nil {
			return nil, err
		}
		c.set(ctx, key, n)
		return n, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*Network), false, nil
}

func (c *RedisCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.kv.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return deleted, nil
}

func (c *RedisCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *RedisCache) hit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *RedisCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// cacheKey hashes the whitespace-collapsed query together with the resolved
// reference term and the parameters that shape the result. Case is preserved.
func cacheKey(query, reference, fingerprint string) string {
	normalized := strings.Join(strings.Fields(query), " ")
	raw := fmt.Sprintf("%s|ref=%s|%s", normalized, reference, fingerprint)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
