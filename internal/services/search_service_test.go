package services

import (
	"context"
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicewise/insights/internal/cache"
	"github.com/voicewise/insights/internal/logger"
	"github.com/voicewise/insights/internal/models"
	"github.com/voicewise/insights/internal/utils"
)

type mockSearchRepo struct {
	ByPhoneFunc            func(ctx context.Context, tenantID, digits string, page models.Page) ([]models.Call, error)
	ByStatusFunc           func(ctx context.Context, tenantID, status string, page models.Page) ([]models.Call, error)
	BySentimentFunc        func(ctx context.Context, tenantID string, sentiment models.Sentiment, page models.Page) ([]models.Call, error)
	SemanticFunc           func(ctx context.Context, tenantID string, embedding []float32, maxDistance float64, page models.Page) ([]models.Call, error)
	TranscriptContainsFunc func(ctx context.Context, tenantID, text string, page models.Page) ([]models.Call, error)
	calls                  int
}

func (m *mockSearchRepo) ByPhone(ctx context.Context, tenantID, digits string, page models.Page) ([]models.Call, error) {
	m.calls++
	return m.ByPhoneFunc(ctx, tenantID, digits, page)
}

func (m *mockSearchRepo) ByStatus(ctx context.Context, tenantID, status string, page models.Page) ([]models.Call, error) {
	m.calls++
	return m.ByStatusFunc(ctx, tenantID, status, page)
}

func (m *mockSearchRepo) BySentiment(ctx context.Context, tenantID string, sentiment models.Sentiment, page models.Page) ([]models.Call, error) {
	m.calls++
	return m.BySentimentFunc(ctx, tenantID, sentiment, page)
}

func (m *mockSearchRepo) Semantic(ctx context.Context, tenantID string, embedding []float32, maxDistance float64, page models.Page) ([]models.Call, error) {
	m.calls++
	return m.SemanticFunc(ctx, tenantID, embedding, maxDistance, page)
}

func (m *mockSearchRepo) TranscriptContains(ctx context.Context, tenantID, text string, page models.Page) ([]models.Call, error) {
	m.calls++
	return m.TranscriptContainsFunc(ctx, tenantID, text, page)
}

type mockExpander struct {
	ExpandQueryFunc func(ctx context.Context, query string) (string, error)
}

func (m *mockExpander) ExpandQuery(ctx context.Context, query string) (string, error) {
	return m.ExpandQueryFunc(ctx, query)
}

func searchCall(id string, emb []float32, in *models.Insight) models.Call {
	c := models.Call{CallID: id, TenantID: "gym1", Status: "completed", Insight: in}
	if emb != nil {
		v := pgvector.NewVector(emb)
		c.TranscriptEmbedding = &v
	}
	return c
}

func searchInsight(sentiment string, confidence float64, revenue bool, topics ...string) *models.Insight {
	return &models.Insight{
		Sentiment:       &sentiment,
		Topics:          pq.StringArray(topics),
		PainPoints:      pq.StringArray{"parking"},
		RevenueInterest: &revenue,
		Confidence:      models.Float(confidence),
	}
}

func TestSearchPhoneKeepsDigitsOnly(t *testing.T) {
	var gotDigits string
	var gotPage models.Page
	repo := &mockSearchRepo{ByPhoneFunc: func(ctx context.Context, tenantID, digits string, page models.Page) ([]models.Call, error) {
		assert.Equal(t, "gym1", tenantID)
		gotDigits, gotPage = digits, page
		return []models.Call{searchCall("c1", nil, nil)}, nil
	}}
	svc := NewSearchService(SearchDeps{Repo: repo, Logger: logger.Discard()})

	res, err := svc.Search(context.Background(), models.SearchQuery{TenantID: "gym1", Query: " +1 (555) 010-22 ", Type: models.SearchPhone, Skip: 5})
	require.NoError(t, err)
	assert.Equal(t, "+155501022", gotDigits)
	assert.Equal(t, models.Page{Limit: DefaultSearchLimit, Skip: 5}, gotPage)
	assert.Equal(t, "+155501022", res.Query)
	assert.Equal(t, 1, res.TotalResults)
	assert.Nil(t, res.Calls[0].Insights)
	assert.Nil(t, res.Calls[0].Similarity)
}

func TestSearchRejectsBadQueries(t *testing.T) {
	svc := NewSearchService(SearchDeps{Repo: &mockSearchRepo{}, Logger: logger.Discard()})
	cases := map[string]models.SearchQuery{
		"empty":         {Query: "  "},
		"unknown type":  {Query: "x", Type: "fuzzy"},
		"phone letters": {Query: "abc", Type: models.SearchPhone},
		"sentiment":     {Query: "angry", Type: models.SearchSentiment},
		"limit":         {Query: "x", Limit: MaxSearchLimit + 1},
		"skip":          {Query: "x", Skip: -1},
		"threshold":     {Query: "x", MaxDistance: 2.5},
	}
	for name, q := range cases {
		t.Run(name, func(t *testing.T) {
			q.TenantID = "gym1"
			_, err := svc.Search(context.Background(), q)
			assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument), "got %v", err)
		})
	}
}

func TestSearchSentimentAndStatusNormalized(t *testing.T) {
	var gotSentiment models.Sentiment
	var gotStatus string
	repo := &mockSearchRepo{
		BySentimentFunc: func(ctx context.Context, tenantID string, s models.Sentiment, page models.Page) ([]models.Call, error) {
			gotSentiment = s
			return nil, nil
		},
		ByStatusFunc: func(ctx context.Context, tenantID, status string, page models.Page) ([]models.Call, error) {
			gotStatus = status
			return nil, nil
		},
	}
	svc := NewSearchService(SearchDeps{Repo: repo, Logger: logger.Discard()})

	res, err := svc.Search(context.Background(), models.SearchQuery{TenantID: "gym1", Query: "Negative", Type: models.SearchSentiment})
	require.NoError(t, err)
	assert.Equal(t, models.SentimentNegative, gotSentiment)
	assert.NotNil(t, res.Calls)
	assert.Equal(t, 0, res.Aggregated.TotalCalls)

	_, err = svc.Search(context.Background(), models.SearchQuery{TenantID: "gym1", Query: "COMPLETED", Type: models.SearchStatus})
	require.NoError(t, err)
	assert.Equal(t, "completed", gotStatus)
}

func TestSearchSemanticScoresHits(t *testing.T) {
	var gotDistance float64
	repo := &mockSearchRepo{SemanticFunc: func(ctx context.Context, tenantID string, emb []float32, maxDistance float64, page models.Page) ([]models.Call, error) {
		gotDistance = maxDistance
		return []models.Call{
			searchCall("same", []float32{1, 0}, searchInsight("positive", 0.9, true, "pricing")),
			searchCall("none", nil, nil),
		}, nil
	}}
	emb := &mockEmbedder{EmbedFunc: func(ctx context.Context, text string) ([]float32, error) {
		return []float32{1, 0}, nil
	}}
	svc := NewSearchService(SearchDeps{Repo: repo, Embedder: emb, Logger: logger.Discard()})

	res, err := svc.Search(context.Background(), models.SearchQuery{TenantID: "gym1", Query: "price questions"})
	require.NoError(t, err)
	assert.Equal(t, models.SearchNLP, res.Type)
	assert.Equal(t, DefaultSearchMaxDistance, gotDistance)
	assert.False(t, res.Degraded)
	require.Len(t, res.Calls, 2)
	require.NotNil(t, res.Calls[0].Similarity)
	assert.InDelta(t, 1.0, *res.Calls[0].Similarity, 1e-6)
	assert.Nil(t, res.Calls[1].Similarity)
	assert.Equal(t, models.SentimentPositive, res.Calls[0].Insights.Sentiment)
}

func TestSearchFallsBackToTranscriptText(t *testing.T) {
	var gotText string
	repo := &mockSearchRepo{TranscriptContainsFunc: func(ctx context.Context, tenantID, text string, page models.Page) ([]models.Call, error) {
		gotText = text
		return []models.Call{searchCall("c1", nil, nil)}, nil
	}}
	emb := &mockEmbedder{EmbedFunc: func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("model offline")
	}}
	layer := cache.NewMemoryLayer(nil, logger.Discard())
	svc := NewSearchService(SearchDeps{Repo: repo, Embedder: emb, Cache: layer, Logger: logger.Discard()})

	q := models.SearchQuery{TenantID: "gym1", Query: "sauna"}
	res, err := svc.Search(context.Background(), q)
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Equal(t, "sauna", gotText)
	assert.Equal(t, 1, res.TotalResults)

	// degraded pages are recomputed on the next request
	_, err = svc.Search(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.calls)
	assert.Equal(t, 2, emb.calls)
}

func TestSearchExpandsQueryWhenAsked(t *testing.T) {
	var embedded []string
	emb := &mockEmbedder{EmbedFunc: func(ctx context.Context, text string) ([]float32, error) {
		embedded = append(embedded, text)
		return []float32{0, 1}, nil
	}}
	repo := &mockSearchRepo{SemanticFunc: func(ctx context.Context, tenantID string, e []float32, maxDistance float64, page models.Page) ([]models.Call, error) {
		return nil, nil
	}}
	exp := &mockExpander{ExpandQueryFunc: func(ctx context.Context, query string) (string, error) {
		return query + " membership cancel quit", nil
	}}
	svc := NewSearchService(SearchDeps{Repo: repo, Embedder: emb, Expander: exp, Logger: logger.Discard()})

	res, err := svc.Search(context.Background(), models.SearchQuery{TenantID: "gym1", Query: "churn", Expand: true})
	require.NoError(t, err)
	assert.Equal(t, "churn membership cancel quit", res.ExpandedQuery)
	assert.Equal(t, "churn", res.Query)

	exp.ExpandQueryFunc = func(ctx context.Context, query string) (string, error) {
		return "", errors.New("llm down")
	}
	res, err = svc.Search(context.Background(), models.SearchQuery{TenantID: "gym1", Query: "refund", Expand: true})
	require.NoError(t, err)
	assert.Empty(t, res.ExpandedQuery)
	assert.Equal(t, []string{"churn membership cancel quit", "refund"}, embedded)
}

func TestSearchCachesPerTenant(t *testing.T) {
	repo := &mockSearchRepo{ByStatusFunc: func(ctx context.Context, tenantID, status string, page models.Page) ([]models.Call, error) {
		return []models.Call{searchCall("c-"+tenantID, nil, nil)}, nil
	}}
	layer := cache.NewMemoryLayer(nil, logger.Discard())
	svc := NewSearchService(SearchDeps{Repo: repo, Cache: layer, Logger: logger.Discard()})
	ctx := context.Background()

	a, err := svc.Search(ctx, models.SearchQuery{TenantID: "gym1", Query: "completed", Type: models.SearchStatus})
	require.NoError(t, err)
	_, err = svc.Search(ctx, models.SearchQuery{TenantID: "gym1", Query: "Completed ", Type: models.SearchStatus})
	require.NoError(t, err)
	assert.Equal(t, 1, repo.calls)

	b, err := svc.Search(ctx, models.SearchQuery{TenantID: "gym2", Query: "completed", Type: models.SearchStatus})
	require.NoError(t, err)
	assert.Equal(t, 2, repo.calls)
	assert.Equal(t, "c-gym1", a.Calls[0].CallID)
	assert.Equal(t, "c-gym2", b.Calls[0].CallID)

	layer.InvalidateTenant(ctx, "gym1")
	_, err = svc.Search(ctx, models.SearchQuery{TenantID: "gym1", Query: "completed", Type: models.SearchStatus})
	require.NoError(t, err)
	assert.Equal(t, 3, repo.calls)
}

func TestSearchRepoErrorIsInternal(t *testing.T) {
	repo := &mockSearchRepo{ByStatusFunc: func(ctx context.Context, tenantID, status string, page models.Page) ([]models.Call, error) {
		return nil, errors.New("connection reset")
	}}
	svc := NewSearchService(SearchDeps{Repo: repo, Logger: logger.Discard()})
	_, err := svc.Search(context.Background(), models.SearchQuery{TenantID: "gym1", Query: "failed", Type: models.SearchStatus})
	assert.True(t, utils.IsCode(err, utils.CodeInternal))
}

func TestAggregateSearch(t *testing.T) {
	dur := 30
	calls := []models.Call{
		searchCall("a", nil, searchInsight("positive", 0.9, true, "pricing", "classes")),
		searchCall("b", nil, searchInsight("Negative", 0.5, false, "pricing")),
		searchCall("pending", nil, nil),
	}
	calls[0].DurationSeconds = &dur
	calls[2].DurationSeconds = &dur
	calls[1].Insight.Confidence = nil

	agg := AggregateSearch(calls)
	assert.Equal(t, 3, agg.TotalCalls)
	assert.Equal(t, models.SentimentCounts{Positive: 1, Negative: 1}, agg.Sentiment)
	require.NotEmpty(t, agg.TopTopics)
	assert.Equal(t, models.TermCount{Name: "Pricing", Count: 2}, agg.TopTopics[0])
	assert.Equal(t, 2, agg.TopPainPoints[0].Count)
	assert.Equal(t, 1, agg.RevenueInterestCount)
	assert.InDelta(t, 0.45, agg.AverageConfidence, 1e-9)
	assert.Equal(t, 60, agg.TotalDurationSeconds)

	empty := AggregateSearch(nil)
	assert.NotNil(t, empty.TopTopics)
	assert.NotNil(t, empty.TopPainPoints)
	assert.Zero(t, empty.AverageConfidence)
}
