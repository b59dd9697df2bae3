package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicewise/insights/internal/cache"
	"github.com/voicewise/insights/internal/logger"
	"github.com/voicewise/insights/internal/models"
)

func analyzed(id string, at time.Time, s models.Sentiment, churn float64) models.Record {
	return models.Record{
		CallID:       id,
		HasInsight:   true,
		Sentiment:    s,
		ChurnScore:   models.Float(churn),
		RevenueScore: models.Float(0.2),
		CreatedAt:    at,
	}
}

func TestSummarize(t *testing.T) {
	rows := []models.Record{
		{CallID: "pending"},
		{
			CallID: "a", HasInsight: true, Sentiment: models.SentimentNegative, Rating: models.Int(2),
			PainPoints: []string{"crowded", "Broken sauna"}, ChurnScore: models.Float(0.9),
			AnomalyScore: models.Float(0.7),
		},
		{
			CallID: "b", HasInsight: true, Sentiment: models.SentimentPositive, Rating: models.Int(8),
			PainPoints: []string{"Crowded"}, Opportunities: []string{"personal training"},
			RevenueScore: models.Float(0.6),
		},
	}
	sum := Summarize(rows, SummaryOptions{})

	assert.Equal(t, 3, sum.TotalCalls)
	assert.Equal(t, 2, sum.AnalyzedCalls)
	assert.Equal(t, models.SentimentCounts{Positive: 1, Negative: 1}, sum.Sentiment)
	require.NotNil(t, sum.AverageRating)
	assert.Equal(t, 5.0, *sum.AverageRating)
	require.NotEmpty(t, sum.TopPainPoints)
	assert.Equal(t, "Crowded", sum.TopPainPoints[0].Name)
	assert.Equal(t, 2, sum.TopPainPoints[0].Count)
	assert.Equal(t, 1, sum.RevenueOpportunities)
	assert.Equal(t, 1, sum.HighChurnCalls)
	assert.Equal(t, 1, sum.Anomalies)
}

func TestSummarizeEmpty(t *testing.T) {
	sum := Summarize(nil, SummaryOptions{})
	assert.Equal(t, 0, sum.TotalCalls)
	assert.Nil(t, sum.AverageRating)
	assert.NotNil(t, sum.TopPainPoints)
}

func TestBucketTrend(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 3, 15, 0, 0, 0, time.UTC)
	rows := []models.Record{
		analyzed("a", from.Add(2*time.Hour), models.SentimentNegative, 0.8),
		analyzed("b", from.Add(5*time.Hour), models.SentimentPositive, 0.2),
		analyzed("c", to.Add(-time.Hour), models.SentimentNeutral, 0.4),
		{CallID: "pending", CreatedAt: from},
		analyzed("outside", from.AddDate(0, 0, -3), models.SentimentNegative, 1),
	}

	churn := BucketTrend(rows, models.TrendChurn, from, to)
	require.Len(t, churn, 3)
	assert.Equal(t, "2026-03-01", churn[0].Date)
	assert.Equal(t, 2, churn[0].Count)
	assert.InDelta(t, 0.5, *churn[0].Average, 1e-9)
	assert.Equal(t, 0, churn[1].Count)
	assert.Nil(t, churn[1].Average)
	assert.InDelta(t, 0.4, *churn[2].Average, 1e-9)

	sent := BucketTrend(rows, models.TrendSentiment, from, to)
	assert.Equal(t, models.SentimentCounts{Positive: 1, Negative: 1}, sent[0].Counts)
	assert.Nil(t, sent[0].Average)
}

func TestDashboardSummaryIsCached(t *testing.T) {
	fetches := 0
	recs := &mockRecords{RecordsBetweenFunc: func(ctx context.Context, tenantID string, from, to time.Time) ([]models.Record, error) {
		fetches++
		return []models.Record{analyzed("a", to, models.SentimentNeutral, 0.1)}, nil
	}}
	layer := cache.NewMemoryLayer(nil, logger.Discard())
	svc := NewDashboardService(recs, newMemCalls(), layer, logger.Discard())
	ctx := context.Background()

	first, err := svc.Summary(ctx, "gym_001", SummaryOptions{})
	require.NoError(t, err)
	assert.Equal(t, "gym_001", first.TenantID)
	_, err = svc.Summary(ctx, "gym_001", SummaryOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, fetches)

	_, err = svc.Summary(ctx, "gym_001", SummaryOptions{ChurnThreshold: 0.5})
	require.NoError(t, err)
	assert.Equal(t, 2, fetches)

	layer.InvalidateTenant(ctx, "gym_001")
	_, err = svc.Summary(ctx, "gym_001", SummaryOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, fetches)
}

func TestDashboardTrendValidatesKind(t *testing.T) {
	svc := NewDashboardService(&mockRecords{}, newMemCalls(), cache.NewMemoryLayer(nil, logger.Discard()), logger.Discard())
	_, err := svc.Trend(context.Background(), "weather", "gym_001", 7)
	require.Error(t, err)
}

func TestDashboardTrendServesTodayFresh(t *testing.T) {
	var windows [][2]time.Time
	recs := &mockRecords{RecordsBetweenFunc: func(ctx context.Context, tenantID string, from, to time.Time) ([]models.Record, error) {
		windows = append(windows, [2]time.Time{from, to})
		return []models.Record{analyzed("a", to, models.SentimentNeutral, 0.3)}, nil
	}}
	svc := NewDashboardService(recs, newMemCalls(), cache.NewMemoryLayer(nil, logger.Discard()), logger.Discard())
	ctx := context.Background()

	first, err := svc.Trend(ctx, models.TrendChurn, "gym_001", 7)
	require.NoError(t, err)
	assert.Len(t, first, 7)

	second, err := svc.Trend(ctx, models.TrendChurn, "gym_001", 7)
	require.NoError(t, err)
	assert.Len(t, second, 7)
	require.Len(t, windows, 2)
	assert.True(t, windows[1][0].After(windows[0][0]))
	assert.Equal(t, first[len(first)-1].Date, second[len(second)-1].Date)
}

func TestDashboardCallsAndBulk(t *testing.T) {
	calls := newMemCalls(
		&models.Call{CallID: "c1", TenantID: "gym_001"},
		&models.Call{CallID: "c3", TenantID: "gym_002"},
	)
	calls.insights["c1"] = models.Insight{CallID: "c1"}
	calls.insights["c3"] = models.Insight{CallID: "c3"}
	pointFetches := 0
	recs := &mockRecords{CallPointsFunc: func(ctx context.Context, q models.CallQuery) ([]models.CallPoint, error) {
		pointFetches++
		assert.Equal(t, cache.DefaultChartLimit, q.Limit)
		return []models.CallPoint{{CallID: "c1"}}, nil
	}}
	svc := NewDashboardService(recs, calls, cache.NewMemoryLayer(nil, logger.Discard()), logger.Discard())
	ctx := context.Background()

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 7)
	q := models.CallQuery{TenantID: "gym_001", StartDate: &start, EndDate: &end}
	for i := 0; i < 2; i++ {
		pts, err := svc.Calls(ctx, q)
		require.NoError(t, err)
		assert.Len(t, pts, 1)
	}
	assert.Equal(t, 1, pointFetches)

	_, err := svc.Calls(ctx, models.CallQuery{Limit: 5000})
	require.Error(t, err)

	got, err := svc.BulkInsights(ctx, "gym_001", []string{"c1", "c2", "c3"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Contains(t, got, "c1")

	empty, err := svc.BulkInsights(ctx, "gym_001", nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
