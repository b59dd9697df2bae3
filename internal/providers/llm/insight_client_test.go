package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicewise/insights/internal/logger"
	"github.com/voicewise/insights/internal/models"
	"github.com/voicewise/insights/internal/utils"
)

type mockProvider struct {
	StreamFunc func(ctx context.Context, prompt string) ([]string, error)
	prompts    []string
}

func (m *mockProvider) StreamAnswer(ctx context.Context, prompt string) (<-chan string, <-chan error) {
	m.prompts = append(m.prompts, prompt)
	out := make(chan string, 16)
	errs := make(chan error, 1)
	chunks, err := m.StreamFunc(ctx, prompt)
	for _, c := range chunks {
		out <- c
	}
	if err != nil {
		errs <- err
	}
	close(out)
	close(errs)
	return out, errs
}

func (m *mockProvider) Close() error { return nil }

func reply(chunks ...string) func(context.Context, string) ([]string, error) {
	return func(context.Context, string) ([]string, error) { return chunks, nil }
}

func TestExtractInsightsParsesFencedJSON(t *testing.T) {
	p := &mockProvider{StreamFunc: reply(
		"```json\n{\"main_topics\": [\"equipment\", \" \"], \"sentiment\": \"Negative\",",
		" \"gym_rating\": 3.4, \"pain_points\": [\"old treadmills\"], \"opportunities\": [],",
		" \"revenue_interest\": false, \"revenue_interest_quote\": \"ignored\", \"churn_score\": 1.3,",
		" \"revenue_interest_score\": 0.1, \"confidence\": 0.82, \"custom_instruction_answers\": {\"Parking?\": \"yes\"}}\n```",
	)}
	c := NewInsightClient(p)

	x, err := c.ExtractInsights(context.Background(), "The treadmills are old.", "SIMILAR PAST CALLS:\n1. ...", []string{"Parking?"})
	require.NoError(t, err)
	assert.Equal(t, models.SentimentNegative, x.Sentiment)
	require.NotNil(t, x.Rating)
	assert.Equal(t, 3, *x.Rating)
	assert.Equal(t, []string{"equipment"}, x.Topics)
	assert.Equal(t, 1.0, *x.ChurnScore)
	assert.Equal(t, "", x.RevenueInterestQuote)
	assert.Equal(t, "yes", x.CustomAnswers["Parking?"])

	require.Len(t, p.prompts, 1)
	assert.Contains(t, p.prompts[0], "SIMILAR PAST CALLS:")
	assert.Contains(t, p.prompts[0], "1. Parking?")
	assert.Contains(t, p.prompts[0], "The treadmills are old.")
}

func TestExtractInsightsErrors(t *testing.T) {
	c := NewInsightClient(&mockProvider{StreamFunc: reply("not json at all")})
	_, err := c.ExtractInsights(context.Background(), "hello", "", nil)
	assert.True(t, utils.IsCode(err, utils.CodeUnavailable))

	_, err = c.ExtractInsights(context.Background(), "  ", "", nil)
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))

	c = NewInsightClient(&mockProvider{StreamFunc: func(context.Context, string) ([]string, error) {
		return []string{"{"}, context.DeadlineExceeded
	}})
	_, err = c.ExtractInsights(context.Background(), "hello", "", nil)
	assert.True(t, utils.IsCode(err, utils.CodeTimeout))
}

func TestAnalyzeLiveIncludesPreviousEstimate(t *testing.T) {
	p := &mockProvider{StreamFunc: reply(`Here you go: {"sentiment": "neutral", "churn_score": 0.4, "revenue_interest_score": 0.6, "confidence": 0.55}`)}
	c := NewInsightClient(p)

	e, err := c.AnalyzeLive(context.Background(), "I might cancel", models.LiveEstimate{
		Sentiment:  models.SentimentNegative,
		ChurnScore: models.Float(0.7),
	})
	require.NoError(t, err)
	assert.Equal(t, models.SentimentNeutral, e.Sentiment)
	assert.InDelta(t, 0.6, *e.RevenueScore, 1e-9)

	prompt := p.prompts[0]
	assert.Contains(t, prompt, "Previous sentiment: NEGATIVE")
	assert.Contains(t, prompt, "Previous churn_score: 0.7")
	assert.NotContains(t, prompt, "Previous revenue_interest_score")
	assert.True(t, strings.Contains(prompt, "I might cancel"))
}

func TestLivePromptWithoutHistory(t *testing.T) {
	assert.NotContains(t, livePrompt("hi", models.LiveEstimate{}), "PREVIOUS ANALYSIS")
}

func TestResilientOpensAfterRepeatedFailures(t *testing.T) {
	p := &mockProvider{StreamFunc: func(context.Context, string) ([]string, error) {
		return nil, errors.New("503 from model")
	}}
	r := NewResilient(NewInsightClient(p), logger.Discard())

	for i := 0; i < 5; i++ {
		_, err := r.AnalyzeLive(context.Background(), "x", models.LiveEstimate{})
		require.Error(t, err)
	}
	calls := len(p.prompts)
	_, err := r.AnalyzeLive(context.Background(), "x", models.LiveEstimate{})
	assert.True(t, utils.IsCode(err, utils.CodeUnavailable))
	assert.Equal(t, calls, len(p.prompts), "open breaker must not reach the provider")

	// extraction has its own breaker
	_, err = r.ExtractInsights(context.Background(), "x", "", nil)
	require.Error(t, err)
	assert.Equal(t, calls+1, len(p.prompts))
}

func TestExpandQuery(t *testing.T) {
	p := &mockProvider{StreamFunc: reply(`{"expanded_query": "trainers are rude, instructors are impolite"}`)}
	c := NewInsightClient(p)

	got, err := c.ExpandQuery(context.Background(), "  trainers are rude ")
	require.NoError(t, err)
	assert.Equal(t, "trainers are rude, instructors are impolite", got)
	require.Len(t, p.prompts, 1)
	assert.Contains(t, p.prompts[0], `"trainers are rude"`)

	// an empty expansion keeps the original query
	c = NewInsightClient(&mockProvider{StreamFunc: reply(`{"expanded_query": ""}`)})
	got, err = c.ExpandQuery(context.Background(), "sauna")
	require.NoError(t, err)
	assert.Equal(t, "sauna", got)

	_, err = c.ExpandQuery(context.Background(), " ")
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))

	c = NewInsightClient(&mockProvider{StreamFunc: reply("no json here")})
	_, err = c.ExpandQuery(context.Background(), "sauna")
	assert.True(t, utils.IsCode(err, utils.CodeUnavailable))
}
