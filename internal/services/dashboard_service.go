package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/voicewise/insights/internal/cache"
	"github.com/voicewise/insights/internal/models"
	"github.com/voicewise/insights/internal/repositories/postgres"
	"github.com/voicewise/insights/internal/retrieval"
	"github.com/voicewise/insights/internal/utils"
)

// SummaryOptions are the thresholds that shape a dashboard summary. They are
// part of the cache key.
type SummaryOptions struct {
	Days             int     `form:"days"`
	ChurnThreshold   float64 `form:"churn_threshold"`
	AnomalyThreshold float64 `form:"anomaly_threshold"`
	TopN             int     `form:"top_n"`
}

func (o SummaryOptions) withDefaults() SummaryOptions {
	if o.Days <= 0 {
		o.Days = 30
	}
	if o.ChurnThreshold <= 0 {
		o.ChurnThreshold = 0.7
	}
	if o.AnomalyThreshold <= 0 {
		o.AnomalyThreshold = 0.6
	}
	if o.TopN <= 0 {
		o.TopN = 5
	}
	return o
}

func (o SummaryOptions) params() map[string]any {
	return map[string]any{
		"days":              o.Days,
		"churn_threshold":   o.ChurnThreshold,
		"anomaly_threshold": o.AnomalyThreshold,
		"top_n":             o.TopN,
	}
}

type DashboardService interface {
	Summary(ctx context.Context, tenantID string, opts SummaryOptions) (models.DashboardSummary, error)
	Trend(ctx context.Context, kind models.TrendKind, tenantID string, days int) ([]models.TrendPoint, error)
	Calls(ctx context.Context, q models.CallQuery) ([]models.CallPoint, error)
	BulkInsights(ctx context.Context, tenantID string, callIDs []string) (map[string]models.Insight, error)
}

type dashboardService struct {
	records postgres.RecordRepo
	calls   postgres.CallRepo
	cache   *cache.Layer
	log     *logrus.Logger
	now     func() time.Time
}

func NewDashboardService(records postgres.RecordRepo, calls postgres.CallRepo, layer *cache.Layer, log *logrus.Logger) DashboardService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &dashboardService{records: records, calls: calls, cache: layer, log: log, now: time.Now}
}

func (s *dashboardService) Summary(ctx context.Context, tenantID string, opts SummaryOptions) (models.DashboardSummary, error) {
	const op = "DashboardService.Summary"

	opts = opts.withDefaults()
	sum, err := s.cache.Dashboard(ctx, tenantID, opts.params(), func(ctx context.Context) (models.DashboardSummary, error) {
		to := s.now().UTC()
		rows, err := s.records.RecordsBetween(ctx, tenantID, to.AddDate(0, 0, -opts.Days), to)
		if err != nil {
			return models.DashboardSummary{}, err
		}
		sum := Summarize(rows, opts)
		sum.TenantID = tenantID
		return sum, nil
	})
	if err != nil {
		return models.DashboardSummary{}, utils.E(utils.CodeInternal, op, "failed to build dashboard summary", err)
	}
	return sum, nil
}

func (s *dashboardService) Trend(ctx context.Context, kind models.TrendKind, tenantID string, days int) ([]models.TrendPoint, error) {
	const op = "DashboardService.Trend"

	if !kind.Valid() {
		return nil, utils.E(utils.CodeInvalidArgument, op, "trend must be churn, revenue or sentiment", nil)
	}
	if days <= 0 || days > 365 {
		days = 30
	}
	points, err := s.cache.TrendSmart(ctx, tenantID, kind, days, func(ctx context.Context, from, to time.Time) ([]models.TrendPoint, error) {
		rows, err := s.records.RecordsBetween(ctx, tenantID, from, to)
		if err != nil {
			return nil, err
		}
		return BucketTrend(rows, kind, from, to), nil
	})
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to load trend", err)
	}
	return points, nil
}

func (s *dashboardService) Calls(ctx context.Context, q models.CallQuery) ([]models.CallPoint, error) {
	const op = "DashboardService.Calls"

	if q.Limit > 1000 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "limit must be at most 1000", nil)
	}
	points, err := s.cache.ChartRecords(ctx, q, s.records.CallPoints)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list calls", err)
	}
	return points, nil
}

func (s *dashboardService) BulkInsights(ctx context.Context, tenantID string, callIDs []string) (map[string]models.Insight, error) {
	const op = "DashboardService.BulkInsights"

	if len(callIDs) == 0 {
		return map[string]models.Insight{}, nil
	}
	out, err := s.cache.BulkInsights(ctx, tenantID, callIDs, func(ctx context.Context, ids []string) (map[string]models.Insight, error) {
		return s.calls.InsightsByCallIDs(ctx, tenantID, ids)
	})
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to load insights", err)
	}
	return out, nil
}

// Summarize aggregates records into a dashboard summary.
func Summarize(rows []models.Record, opts SummaryOptions) models.DashboardSummary {
	opts = opts.withDefaults()
	sum := models.DashboardSummary{
		TotalCalls:       len(rows),
		TopPainPoints:    []models.TermCount{},
		TopOpportunities: []models.TermCount{},
	}
	var ratings []float64
	var pain, opps []string
	for _, r := range rows {
		if !r.HasInsight {
			continue
		}
		sum.AnalyzedCalls++
		sum.Sentiment.Add(r.Sentiment)
		if r.Rating != nil {
			ratings = append(ratings, float64(*r.Rating))
		}
		pain = append(pain, r.PainPoints...)
		opps = append(opps, r.Opportunities...)
		if r.RevenueScore != nil && *r.RevenueScore >= 0.5 {
			sum.RevenueOpportunities++
		}
		if r.ChurnScore != nil && *r.ChurnScore >= opts.ChurnThreshold {
			sum.HighChurnCalls++
		}
		if r.AnomalyScore != nil && *r.AnomalyScore >= opts.AnomalyThreshold {
			sum.Anomalies++
		}
	}
	if len(ratings) > 0 {
		m := retrieval.Mean(ratings)
		sum.AverageRating = &m
	}
	if t := retrieval.TopTerms(pain, opts.TopN); len(t) > 0 {
		sum.TopPainPoints = t
	}
	if t := retrieval.TopTerms(opps, opts.TopN); len(t) > 0 {
		sum.TopOpportunities = t
	}
	return sum
}

// BucketTrend groups analyzed records by UTC day, one point per day in
// [from, to] including empty days.
func BucketTrend(rows []models.Record, kind models.TrendKind, from, to time.Time) []models.TrendPoint {
	type acc struct {
		point models.TrendPoint
		sum   float64
		n     int
	}
	byDay := make(map[string]*acc)
	var order []string
	for d := startOfDay(from); !d.After(to); d = d.AddDate(0, 0, 1) {
		key := d.Format(models.DateLayout)
		byDay[key] = &acc{point: models.TrendPoint{Date: key}}
		order = append(order, key)
	}

	for _, r := range rows {
		if !r.HasInsight {
			continue
		}
		a, ok := byDay[r.CreatedAt.UTC().Format(models.DateLayout)]
		if !ok {
			continue
		}
		a.point.Count++
		var v *float64
		switch kind {
		case models.TrendChurn:
			v = r.ChurnScore
		case models.TrendRevenue:
			v = r.RevenueScore
		case models.TrendSentiment:
			a.point.Counts.Add(r.Sentiment)
		}
		if v != nil {
			a.sum += *v
			a.n++
		}
	}

	out := make([]models.TrendPoint, 0, len(order))
	for _, key := range order {
		a := byDay[key]
		if a.n > 0 {
			avg := a.sum / float64(a.n)
			a.point.Average = &avg
		}
		out = append(out, a.point)
	}
	return out
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
