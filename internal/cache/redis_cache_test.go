package cache

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicewise/insights/internal/logger"
	"github.com/voicewise/insights/internal/models"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, NewRedisCache(rdb)
}

func TestRedisCacheRoundTripAndCorruption(t *testing.T) {
	ctx := context.Background()
	mr, rc := newRedis(t)

	require.NoError(t, rc.SetJSON(ctx, "k", map[string]int{"a": 1}, time.Minute))
	var got map[string]int
	hit, err := rc.GetJSON(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, got["a"])

	require.NoError(t, mr.Set("bad", "{not json"))
	hit, err = rc.GetJSON(ctx, "bad", &got)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.False(t, mr.Exists("bad"))
}

func TestRedisCacheDelPrefix(t *testing.T) {
	ctx := context.Background()
	_, rc := newRedis(t)
	for _, k := range []string{"trend:gym_001:a", "trend:gym_001:b", "trend:gym_0012:a", "chart:gym_001:a"} {
		require.NoError(t, rc.SetJSON(ctx, k, 1, time.Minute))
	}

	n, err := rc.DelPrefix(ctx, "trend:gym_001:")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	keys, err := rc.Keys(ctx, "trend:")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"trend:gym_0012:a"}, keys)

	// glob characters in a prefix match literally
	require.NoError(t, rc.SetJSON(ctx, "trend:gym*:x", 1, time.Minute))
	keys, err = rc.Keys(ctx, "trend:gym*")
	require.NoError(t, err)
	assert.Equal(t, []string{"trend:gym*:x"}, keys)
}

func TestRedisLayerComputeOnceThenExpire(t *testing.T) {
	ctx := context.Background()
	mr, rc := newRedis(t)
	l := NewRedisLayer(rc, nil, logger.Discard())
	key := Key{Op: "dashboard:summary", TenantID: "gym_001"}
	var calls int32
	fetch := func(context.Context) (models.DashboardSummary, error) {
		atomic.AddInt32(&calls, 1)
		return models.DashboardSummary{TenantID: "gym_001", TotalCalls: 12}, nil
	}

	for i := 0; i < 2; i++ {
		s, err := GetOrCompute(ctx, l, PoolDashboard, key, fetch)
		require.NoError(t, err)
		assert.Equal(t, 12, s.TotalCalls)
	}
	assert.EqualValues(t, 1, calls)
	assert.Equal(t, 3*time.Minute, mr.TTL(key.String(PoolDashboard)))

	mr.FastForward(3*time.Minute + time.Second)
	_, err := GetOrCompute(ctx, l, PoolDashboard, key, fetch)
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls)

	l.InvalidateTenant(ctx, "gym_001")
	_, err = GetOrCompute(ctx, l, PoolDashboard, key, fetch)
	require.NoError(t, err)
	assert.EqualValues(t, 3, calls)
}

func TestRedisLayerPoolsAreIsolated(t *testing.T) {
	ctx := context.Background()
	_, rc := newRedis(t)
	l := NewRedisLayer(rc, nil, logger.Discard())
	var calls int32
	_, _ = GetOrCompute(ctx, l, PoolTrend, Key{Op: "x", TenantID: "gym_001"}, counter(&calls, 1))
	require.NoError(t, l.SetLive(ctx, &models.LiveCallState{CallID: "c9"}))

	l.Invalidate(ctx, PoolTrend, Filter{})
	_, ok := l.GetLive(ctx, "c9")
	assert.True(t, ok)
	assert.Len(t, l.ListLive(ctx), 1)
}

func TestRedisReadFailureFallsBackToCompute(t *testing.T) {
	ctx := context.Background()
	mr, rc := newRedis(t)
	l := NewRedisLayer(rc, nil, logger.Discard())
	mr.Close()

	var calls int32
	v, err := GetOrCompute(ctx, l, PoolChart, Key{Op: "x"}, counter(&calls, 4))
	require.NoError(t, err)
	assert.Equal(t, 4, v)
	_, ok := l.GetLive(ctx, "c1")
	assert.False(t, ok)
}
