package cache

import (
	"context"
	"strings"
	"time"

	"github.com/voicewise/insights/internal/metrics"
	"github.com/voicewise/insights/internal/models"
)

const (
	// MaxChartLimit is the largest result cap a chart query may have and
	// still be cached.
	MaxChartLimit     = 200
	DefaultChartLimit = 100
)

// TrendFetcher loads trend points for days in [from, to].
type TrendFetcher func(ctx context.Context, from, to time.Time) ([]models.TrendPoint, error)

func trendKey(tenantID string, kind models.TrendKind, days int, suffix string) Key {
	op := "trend:" + string(kind)
	if suffix != "" {
		op += ":" + suffix
	}
	return Key{Op: op, TenantID: tenantID, Params: map[string]any{"days": days, "period": "day"}}
}

func (l *Layer) dayStart(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// windowStart is the first day of a days-long window ending today.
func (l *Layer) windowStart(todayStart time.Time, days int) time.Time {
	if days < 1 {
		days = 1
	}
	return todayStart.AddDate(0, 0, -(days - 1))
}

// Trend caches the whole series for the pool TTL.
func (l *Layer) Trend(ctx context.Context, tenantID string, kind models.TrendKind, days int, fetch TrendFetcher) ([]models.TrendPoint, error) {
	return GetOrCompute(ctx, l, PoolTrend, trendKey(tenantID, kind, days, ""), func(ctx context.Context) ([]models.TrendPoint, error) {
		now := l.now().UTC()
		return fetch(ctx, l.windowStart(l.dayStart(now), days), now)
	})
}

// TrendSmart caches only the days before today. Today's points are fetched
// on every call and appended to the cached history. The history key carries
// the current day, so a new day never reuses yesterday's history.
func (l *Layer) TrendSmart(ctx context.Context, tenantID string, kind models.TrendKind, days int, fetch TrendFetcher) ([]models.TrendPoint, error) {
	now := l.now().UTC()
	todayStart := l.dayStart(now)
	today := todayStart.Format(models.DateLayout)
	from := l.windowStart(todayStart, days)
	hk := trendKey(tenantID, kind, days, "historical")
	hk.Params["through"] = today
	key := hk.String(PoolTrend)
	b, err := l.backend(PoolTrend)
	if err != nil {
		return fetch(ctx, from, now)
	}

	var history []models.TrendPoint
	hit, err := b.GetJSON(ctx, key, &history)
	if err != nil {
		metrics.CacheRequests.WithLabelValues(string(PoolTrend), "error").Inc()
		l.log.WithField("pool", PoolTrend).WithError(err).Warn("cache read failed")
	}
	if hit {
		metrics.CacheRequests.WithLabelValues(string(PoolTrend), "hit").Inc()
		fresh, err := fetch(ctx, todayStart, now)
		if err != nil {
			return nil, err
		}
		return append(exceptDay(history, today), fresh...), nil
	}
	metrics.CacheRequests.WithLabelValues(string(PoolTrend), "miss").Inc()

	all, err := fetch(ctx, from, now)
	if err != nil {
		return nil, err
	}
	if err := b.SetJSON(ctx, key, exceptDay(all, today), l.TTL(PoolTrend)); err != nil {
		l.log.WithField("pool", PoolTrend).WithError(err).Warn("cache write failed")
	}
	return all, nil
}

func exceptDay(points []models.TrendPoint, day string) []models.TrendPoint {
	out := make([]models.TrendPoint, 0, len(points))
	for _, p := range points {
		if p.Date != day {
			out = append(out, p)
		}
	}
	return out
}

// Dashboard caches a summary per tenant and threshold set.
func (l *Layer) Dashboard(ctx context.Context, tenantID string, params map[string]any, fetch func(context.Context) (models.DashboardSummary, error)) (models.DashboardSummary, error) {
	return GetOrCompute(ctx, l, PoolDashboard, Key{Op: "dashboard:summary", TenantID: tenantID, Params: params}, fetch)
}

// BulkInsights caches a tenant's insight lookups keyed by the sorted id set.
func (l *Layer) BulkInsights(ctx context.Context, tenantID string, ids []string, fetch func(context.Context, []string) (map[string]models.Insight, error)) (map[string]models.Insight, error) {
	sorted := SortedIDs(ids)
	key := Key{Op: "bulk_insights", TenantID: tenantID, Params: map[string]any{"ids": strings.Join(sorted, ",")}}
	return GetOrCompute(ctx, l, PoolBulk, key, func(ctx context.Context) (map[string]models.Insight, error) {
		return fetch(ctx, sorted)
	})
}

// ChartCacheable reports whether q is eligible for the chart pool: both date
// bounds set and a small result cap. Open-ended and paginated queries would
// create unbounded key cardinality.
func ChartCacheable(q models.CallQuery) bool {
	return q.Bounded() && q.Limit <= MaxChartLimit
}

func (l *Layer) ChartRecords(ctx context.Context, q models.CallQuery, fetch func(context.Context, models.CallQuery) ([]models.CallPoint, error)) ([]models.CallPoint, error) {
	if q.Limit <= 0 {
		q.Limit = DefaultChartLimit
	}
	if !ChartCacheable(q) {
		metrics.CacheRequests.WithLabelValues(string(PoolChart), "bypass").Inc()
		return fetch(ctx, q)
	}
	key := Key{Op: "chart:calls", TenantID: q.TenantID, Params: q.Params()}
	return GetOrCompute(ctx, l, PoolChart, key, func(ctx context.Context) ([]models.CallPoint, error) {
		return fetch(ctx, q)
	})
}

// Search caches a result page per query. Degraded results are served but
// not cached, so the next request retries the semantic path.
func (l *Layer) Search(ctx context.Context, q models.SearchQuery, fetch func(context.Context) (models.SearchResult, error)) (models.SearchResult, error) {
	key := Key{Op: "search:" + string(q.Type), TenantID: q.TenantID, Params: q.Params()}
	return getOrCompute(ctx, l, PoolSearch, key, fetch, func(r models.SearchResult) bool { return !r.Degraded })
}
