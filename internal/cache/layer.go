// Package cache holds the pooled TTL caches in front of the aggregate
// queries and the live-call session store.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/voicewise/insights/internal/metrics"
)

type Pool string

const (
	PoolTrend     Pool = "trend"
	PoolDashboard Pool = "dashboard"
	PoolBulk      Pool = "bulk"
	PoolChart     Pool = "chart"
	PoolSearch    Pool = "search"
	PoolLive      Pool = "live"
)

// Pools lists every pool in invalidation order.
var Pools = []Pool{PoolTrend, PoolDashboard, PoolBulk, PoolChart, PoolSearch, PoolLive}

type Policy struct {
	Capacity int
	TTL      time.Duration
}

func DefaultPolicies() map[Pool]Policy {
	return map[Pool]Policy{
		PoolTrend:     {Capacity: 1000, TTL: 5 * time.Minute},
		PoolDashboard: {Capacity: 100, TTL: 3 * time.Minute},
		PoolBulk:      {Capacity: 500, TTL: 10 * time.Minute},
		PoolChart:     {Capacity: 200, TTL: 5 * time.Minute},
		PoolSearch:    {Capacity: 300, TTL: 2 * time.Minute},
		PoolLive:      {Capacity: 1000, TTL: time.Hour},
	}
}

// Filter narrows an invalidation. The zero Filter matches the whole pool.
type Filter struct {
	TenantID  string
	Operation string
}

// Layer routes each pool to its backend. Pools never share keys, and
// invalidating one pool never touches another.
type Layer struct {
	backends map[Pool]Cache
	policies map[Pool]Policy
	group    singleflight.Group
	liveMu   sync.Mutex
	log      *logrus.Logger
	now      func() time.Time
}

// NewMemoryLayer gives every pool its own in-process LRU.
func NewMemoryLayer(policies map[Pool]Policy, log *logrus.Logger) *Layer {
	policies = withDefaults(policies)
	backends := make(map[Pool]Cache, len(policies))
	for pool, p := range policies {
		backends[pool] = NewMemoryCache(p.Capacity, p.TTL)
	}
	return newLayer(backends, policies, log)
}

// NewRedisLayer puts every pool on one shared Redis. Pool capacity is not
// enforced there; Redis eviction policy applies instead.
func NewRedisLayer(rc *RedisCache, policies map[Pool]Policy, log *logrus.Logger) *Layer {
	policies = withDefaults(policies)
	backends := make(map[Pool]Cache, len(policies))
	for pool := range policies {
		backends[pool] = rc
	}
	return newLayer(backends, policies, log)
}

func newLayer(backends map[Pool]Cache, policies map[Pool]Policy, log *logrus.Logger) *Layer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Layer{backends: backends, policies: policies, log: log, now: time.Now}
}

func withDefaults(policies map[Pool]Policy) map[Pool]Policy {
	out := DefaultPolicies()
	for pool, p := range policies {
		out[pool] = p
	}
	return out
}

func (l *Layer) TTL(pool Pool) time.Duration { return l.policies[pool].TTL }

func (l *Layer) backend(pool Pool) (Cache, error) {
	b, ok := l.backends[pool]
	if !ok {
		return nil, fmt.Errorf("unknown cache pool %q", pool)
	}
	return b, nil
}

// GetOrCompute returns the cached value for key in pool, or runs fn and
// caches its result. Concurrent misses on the same key share one fn call.
// Backend failures are logged and treated as misses; fn errors are returned
// and never cached.
func GetOrCompute[T any](ctx context.Context, l *Layer, pool Pool, key Key, fn func(context.Context) (T, error)) (T, error) {
	return getOrCompute(ctx, l, pool, key, fn, nil)
}

// getOrCompute is GetOrCompute with a keep predicate: results for which keep
// returns false are returned but not cached.
func getOrCompute[T any](ctx context.Context, l *Layer, pool Pool, key Key, fn func(context.Context) (T, error), keep func(T) bool) (T, error) {
	var zero T
	k := key.String(pool)
	fields := logrus.Fields{"pool": pool, "key": k}

	b, err := l.backend(pool)
	if err != nil {
		metrics.CacheRequests.WithLabelValues(string(pool), "error").Inc()
		l.log.WithFields(fields).WithError(err).Warn("cache pool unavailable")
		return fn(ctx)
	}

	var cached T
	hit, err := b.GetJSON(ctx, k, &cached)
	switch {
	case err != nil:
		metrics.CacheRequests.WithLabelValues(string(pool), "error").Inc()
		l.log.WithFields(fields).WithError(err).Warn("cache read failed")
	case hit:
		metrics.CacheRequests.WithLabelValues(string(pool), "hit").Inc()
		return cached, nil
	default:
		metrics.CacheRequests.WithLabelValues(string(pool), "miss").Inc()
	}

	v, err, _ := l.group.Do(k, func() (any, error) {
		val, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		if keep != nil && !keep(val) {
			return val, nil
		}
		if err := b.SetJSON(ctx, k, val, l.TTL(pool)); err != nil {
			l.log.WithFields(fields).WithError(err).Warn("cache write failed")
		}
		return val, nil
	})
	if err != nil {
		return zero, err
	}
	out, _ := v.(T)
	return out, nil
}

// Invalidate removes the entries of pool matching f.
func (l *Layer) Invalidate(ctx context.Context, pool Pool, f Filter) int {
	b, err := l.backend(pool)
	if err != nil {
		return 0
	}
	prefix := poolPrefix(pool, f.TenantID, f.Operation)
	n, err := b.DelPrefix(ctx, prefix)
	if err != nil {
		l.log.WithFields(logrus.Fields{"pool": pool, "prefix": prefix}).WithError(err).Warn("cache invalidation failed")
	}
	metrics.CacheInvalidations.WithLabelValues(string(pool)).Add(float64(n))
	return n
}

// InvalidateTenant runs after every write to a tenant's insights: trend,
// dashboard, chart and search entries for the tenant go, and the bulk pool
// is cleared outright.
func (l *Layer) InvalidateTenant(ctx context.Context, tenantID string) {
	var n int
	for _, pool := range []Pool{PoolTrend, PoolDashboard, PoolChart, PoolSearch} {
		n += l.Invalidate(ctx, pool, Filter{TenantID: tenantID})
		// cross-tenant aggregates are cached under the "_" tenant
		n += l.Invalidate(ctx, pool, Filter{TenantID: anyTenant})
	}
	n += l.Invalidate(ctx, PoolBulk, Filter{})
	l.log.WithFields(logrus.Fields{"tenant_id": tenantID, "removed": n}).Debug("tenant caches invalidated")
}

// ClearAll empties every pool, live-call state included.
func (l *Layer) ClearAll(ctx context.Context) {
	for _, pool := range Pools {
		l.Invalidate(ctx, pool, Filter{})
	}
}
