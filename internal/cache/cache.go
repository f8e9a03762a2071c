// Package cache provides a Redis-backed cache for evaluated query results,
// keyed by the normalised plan so equivalent queries share an entry.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Hussein-Mohammed/ScriptSight/internal/query"
	"github.com/Hussein-Mohammed/ScriptSight/pkg/metrics"
	"github.com/Hussein-Mohammed/ScriptSight/pkg/redis"
	"github.com/Hussein-Mohammed/ScriptSight/pkg/resilience"
)

const keyPrefix = "ss:query:"

// Stats is a point-in-time snapshot of cache effectiveness.
type Stats struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
	Errors uint64 `json:"errors"`
}

// QueryCache caches full query results in Redis. Concurrent misses for the
// same key are collapsed through singleflight so the evaluator runs once,
// and a circuit breaker keeps a struggling Redis from slowing every query.
type QueryCache struct {
	client  *redis.Client
	ttl     time.Duration
	breaker *resilience.CircuitBreaker
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger

	hits   atomic.Uint64
	misses atomic.Uint64
	errors atomic.Uint64
}

func New(client *redis.Client, ttl time.Duration, m *metrics.Metrics, logger *slog.Logger) *QueryCache {
	return &QueryCache{
		client:  client,
		ttl:     ttl,
		breaker: resilience.NewCircuitBreaker("query-cache", resilience.CircuitBreakerConfig{}),
		metrics: m,
		logger:  logger.With("component", "query_cache"),
	}
}

// Key derives the cache key from the plan's canonical form. Pagination is
// applied after retrieval, so offset and limit never fragment the cache.
func Key(plan *query.Plan) string {
	sum := sha256.Sum256([]byte(plan.Normalize()))
	return keyPrefix + hex.EncodeToString(sum[:16])
}

// GetOrCompute returns the cached result for the plan, computing and
// storing it on a miss. With a nil cache (Redis disabled) compute runs
// directly.
func (c *QueryCache) GetOrCompute(ctx context.Context, plan *query.Plan, compute func(context.Context) (*query.Result, error)) (*query.Result, bool, error) {
	if c == nil || c.client == nil {
		result, err := compute(ctx)
		return result, false, err
	}

	key := Key(plan)
	if result, ok := c.get(ctx, key); ok {
		c.hits.Add(1)
		c.metrics.CacheHitsTotal.Inc()
		return result, true, nil
	}
	c.misses.Add(1)
	c.metrics.CacheMissesTotal.Inc()

	v, err, _ := c.group.Do(key, func() (any, error) {
		result, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.set(ctx, key, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(*query.Result), false, nil
}

func (c *QueryCache) get(ctx context.Context, key string) (*query.Result, bool) {
	var raw string
	var miss bool
	err := c.breaker.Execute(func() error {
		v, err := c.client.Get(ctx, key)
		if redis.IsNilError(err) {
			// A key miss is a healthy response, not a Redis failure.
			miss = true
			return nil
		}
		if err != nil {
			return err
		}
		raw = v
		return nil
	})
	if err != nil {
		c.errors.Add(1)
		c.logger.WarnContext(ctx, "cache read failed", "error", err)
		return nil, false
	}
	if miss {
		return nil, false
	}

	var result query.Result
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		c.errors.Add(1)
		c.logger.WarnContext(ctx, "cache entry corrupt, dropping", "key", key, "error", err)
		_ = c.client.Del(ctx, key)
		return nil, false
	}
	return &result, true
}

func (c *QueryCache) set(ctx context.Context, key string, result *query.Result) {
	raw, err := json.Marshal(result)
	if err != nil {
		c.errors.Add(1)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.client.Set(ctx, key, string(raw), c.ttl)
	})
	if err != nil {
		c.errors.Add(1)
		c.logger.WarnContext(ctx, "cache write failed", "error", err)
	}
}

// Invalidate drops every cached query result. Called after a catalogue
// reload so stale results never outlive the data they came from.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	return c.client.FlushByPattern(ctx, keyPrefix+"*")
}

// Stats returns hit/miss counters accumulated since startup.
func (c *QueryCache) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Errors: c.errors.Load(),
	}
}
