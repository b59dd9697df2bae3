package services

import (
	"context"
	"errors"
	"testing"

	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicewise/insights/internal/anomaly"
	"github.com/voicewise/insights/internal/logger"
	"github.com/voicewise/insights/internal/models"
	"github.com/voicewise/insights/internal/retrieval"
	"github.com/voicewise/insights/internal/utils"
)

func transcript(s string) *string { return &s }

type insightFixture struct {
	calls     *memCalls
	embedder  *mockEmbedder
	extractor *mockExtractor
	inval     *recordingInvalidator
	retrieval *mockRetrieval
	gotEmbed  []float32
	gotPrompt string
	svc       InsightService
}

func newInsightFixture(t *testing.T, calls ...*models.Call) *insightFixture {
	t.Helper()
	f := &insightFixture{
		calls: newMemCalls(calls...),
		embedder: &mockEmbedder{EmbedFunc: func(ctx context.Context, text string) ([]float32, error) {
			return []float32{0, 1, 0}, nil
		}},
		inval: &recordingInvalidator{},
	}
	f.extractor = &mockExtractor{ExtractFunc: func(ctx context.Context, transcript, contextText string, custom []string) (models.ExtractedInsight, error) {
		f.gotPrompt = contextText
		return models.ExtractedInsight{
			Sentiment:     models.SentimentNegative,
			Rating:        models.Int(3),
			PainPoints:    []string{"Broken sauna"},
			ChurnScore:    models.Float(0.8),
			Confidence:    models.Float(0.9),
			CustomAnswers: map[string]string{"Did they mention price?": "no"},
		}, nil
	}}
	rs := &mockRetrieval{RetrieveFunc: func(ctx context.Context, text, tenantID string, topK int, embedding []float32) *retrieval.Context {
		f.gotEmbed = embedding
		return &retrieval.Context{
			TenantID: tenantID,
			Embedded: len(embedding) > 0,
			Stats:    retrieval.AggregateStats{TotalRecords: 4, TopPainPoints: []retrieval.TermCount{{Name: "Broken sauna", Count: 2}}},
		}
	}}
	f.retrieval = rs
	f.svc = NewInsightService(InsightDeps{
		Calls:     f.calls,
		Retrieval: rs,
		Embedder:  f.embedder,
		Extractor: f.extractor,
		Scorer:    anomaly.NewScorer(anomaly.DefaultConfig(), logger.Discard()),
		Cache:     f.inval,
		Logger:    logger.Discard(),
	})
	return f
}

func TestAnalyzeAndStoreEmbedsAndPersists(t *testing.T) {
	f := newInsightFixture(t, &models.Call{CallID: "c1", TenantID: "gym_001", RawTranscript: transcript("The sauna has been broken for weeks.")})

	in, err := f.svc.AnalyzeAndStore(context.Background(), "c1")
	require.NoError(t, err)

	assert.Equal(t, 1, f.embedder.calls)
	assert.Equal(t, []float32{0, 1, 0}, f.gotEmbed)
	assert.Contains(t, f.gotPrompt, "GYM HISTORICAL BENCHMARKS:")

	stored, ok := f.calls.insights["c1"]
	require.True(t, ok)
	assert.Equal(t, "negative", *stored.Sentiment)
	require.NotNil(t, in.AnomalyScore)
	assert.GreaterOrEqual(t, *in.AnomalyScore, 0.0)
	assert.LessOrEqual(t, *in.AnomalyScore, 1.0)
	assert.JSONEq(t, `{"Did they mention price?":"no"}`, string(stored.CustomInstructionAnswers))

	assert.Equal(t, CallStatusAnalyzed, f.calls.status["c1"])
	assert.Equal(t, []string{"gym_001"}, f.inval.tenants)

	call, _ := f.calls.GetByCallID(context.Background(), "c1")
	assert.Equal(t, []float32{0, 1, 0}, call.Embedding())
	assert.Equal(t, []string{"c1"}, f.retrieval.excluded)
}

func TestAnalyzeAndStoreReusesStoredEmbedding(t *testing.T) {
	vec := pgvector.NewVector([]float32{1, 0, 0})
	f := newInsightFixture(t, &models.Call{CallID: "c1", TenantID: "gym_001", RawTranscript: transcript("Great classes."), TranscriptEmbedding: &vec})

	_, err := f.svc.AnalyzeAndStore(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 0, f.embedder.calls)
	assert.Equal(t, []float32{1, 0, 0}, f.gotEmbed)
}

func TestAnalyzeAndStoreDegradesWithoutEmbedding(t *testing.T) {
	f := newInsightFixture(t, &models.Call{CallID: "c1", TenantID: "gym_001", RawTranscript: transcript("ok")})
	f.embedder.EmbedFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, utils.E(utils.CodeUnavailable, "test", "down", nil)
	}

	_, err := f.svc.AnalyzeAndStore(context.Background(), "c1")
	require.NoError(t, err)
	assert.Nil(t, f.gotEmbed)
	assert.Contains(t, f.calls.insights, "c1")
}

func TestAnalyzeAndStoreExtractorFailure(t *testing.T) {
	f := newInsightFixture(t, &models.Call{CallID: "c1", TenantID: "gym_001", RawTranscript: transcript("ok")})
	f.extractor.ExtractFunc = func(ctx context.Context, transcript, contextText string, custom []string) (models.ExtractedInsight, error) {
		return models.ExtractedInsight{}, utils.E(utils.CodeTimeout, "llm", "deadline", context.DeadlineExceeded)
	}

	_, err := f.svc.AnalyzeAndStore(context.Background(), "c1")
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeTimeout))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, CallStatusFailed, f.calls.status["c1"])
	assert.Empty(t, f.inval.tenants)
}

func TestAnalyzeAndStoreValidation(t *testing.T) {
	f := newInsightFixture(t, &models.Call{CallID: "empty", TenantID: "gym_001"})

	_, err := f.svc.AnalyzeAndStore(context.Background(), "missing")
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))

	_, err = f.svc.AnalyzeAndStore(context.Background(), "empty")
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
}

func TestIngest(t *testing.T) {
	f := newInsightFixture(t)

	err := f.svc.Ingest(context.Background(), &models.Call{CallID: "c5", TenantID: "gym_001"})
	require.NoError(t, err)
	c, err := f.calls.GetByCallID(context.Background(), "c5")
	require.NoError(t, err)
	assert.Equal(t, CallStatusCompleted, c.Status)

	err = f.svc.Ingest(context.Background(), &models.Call{CallID: "c6"})
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
}
