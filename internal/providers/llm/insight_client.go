package llm

import (
	"context"
	"encoding/json"
	"math"
	"strings"

	"github.com/voicewise/insights/internal/models"
	"github.com/voicewise/insights/internal/utils"
)

// InsightClient implements Extractor and LiveAnalyzer on top of a text
// Provider.
type InsightClient struct {
	p Provider
}

func NewInsightClient(p Provider) *InsightClient {
	return &InsightClient{p: p}
}

type rawInsight struct {
	Topics          []string          `json:"main_topics"`
	Sentiment       string            `json:"sentiment"`
	Rating          *float64          `json:"gym_rating"`
	PainPoints      []string          `json:"pain_points"`
	Opportunities   []string          `json:"opportunities"`
	RevenueInterest bool              `json:"revenue_interest"`
	Quote           *string           `json:"revenue_interest_quote"`
	ChurnScore      *float64          `json:"churn_score"`
	RevenueScore    *float64          `json:"revenue_interest_score"`
	Confidence      *float64          `json:"confidence"`
	CustomAnswers   map[string]string `json:"custom_instruction_answers"`
}

type rawEstimate struct {
	Sentiment    string   `json:"sentiment"`
	ChurnScore   *float64 `json:"churn_score"`
	RevenueScore *float64 `json:"revenue_interest_score"`
	Confidence   *float64 `json:"confidence"`
}

func (c *InsightClient) ExtractInsights(ctx context.Context, transcript, contextText string, customInstructions []string) (models.ExtractedInsight, error) {
	const op = "InsightClient.ExtractInsights"

	if strings.TrimSpace(transcript) == "" {
		return models.ExtractedInsight{}, utils.E(utils.CodeInvalidArgument, op, "empty transcript", nil)
	}
	out, err := Collect(ctx, c.p, extractionPrompt(transcript, contextText, customInstructions))
	if err != nil {
		return models.ExtractedInsight{}, utils.Collaborator(op, "llm call failed", err)
	}

	var raw rawInsight
	if err := decodeJSON(out, &raw); err != nil {
		return models.ExtractedInsight{}, utils.E(utils.CodeUnavailable, op, "unparseable llm response", err)
	}

	x := models.ExtractedInsight{
		Sentiment:       models.ParseSentiment(raw.Sentiment),
		PainPoints:      cleanList(raw.PainPoints),
		Opportunities:   cleanList(raw.Opportunities),
		Topics:          cleanList(raw.Topics),
		ChurnScore:      unit(raw.ChurnScore),
		RevenueScore:    unit(raw.RevenueScore),
		Confidence:      unit(raw.Confidence),
		RevenueInterest: raw.RevenueInterest,
		CustomAnswers:   raw.CustomAnswers,
	}
	if raw.Rating != nil && !math.IsNaN(*raw.Rating) {
		r := int(math.Round(*raw.Rating))
		x.Rating = models.Int(min(10, max(1, r)))
	}
	if raw.RevenueInterest && raw.Quote != nil {
		x.RevenueInterestQuote = strings.TrimSpace(*raw.Quote)
	}
	return x, nil
}

func (c *InsightClient) AnalyzeLive(ctx context.Context, userText string, prev models.LiveEstimate) (models.LiveEstimate, error) {
	const op = "InsightClient.AnalyzeLive"

	out, err := Collect(ctx, c.p, livePrompt(userText, prev))
	if err != nil {
		return models.LiveEstimate{}, utils.Collaborator(op, "llm call failed", err)
	}
	var raw rawEstimate
	if err := decodeJSON(out, &raw); err != nil {
		return models.LiveEstimate{}, utils.E(utils.CodeUnavailable, op, "unparseable llm response", err)
	}
	return models.LiveEstimate{
		Sentiment:    models.ParseSentiment(raw.Sentiment),
		ChurnScore:   unit(raw.ChurnScore),
		RevenueScore: unit(raw.RevenueScore),
		Confidence:   unit(raw.Confidence),
	}, nil
}

// maxExpandedQuery bounds the expansion so it stays within the embedding
// model's input window.
const maxExpandedQuery = 1000

// ExpandQuery returns query rewritten for semantic search. An empty model
// answer yields the original query.
func (c *InsightClient) ExpandQuery(ctx context.Context, query string) (string, error) {
	const op = "InsightClient.ExpandQuery"

	query = strings.TrimSpace(query)
	if query == "" {
		return "", utils.E(utils.CodeInvalidArgument, op, "empty query", nil)
	}
	out, err := Collect(ctx, c.p, expansionPrompt(query))
	if err != nil {
		return "", utils.Collaborator(op, "llm call failed", err)
	}
	var raw struct {
		Expanded string `json:"expanded_query"`
	}
	if err := decodeJSON(out, &raw); err != nil {
		return "", utils.E(utils.CodeUnavailable, op, "unparseable llm response", err)
	}
	expanded := strings.TrimSpace(raw.Expanded)
	if expanded == "" {
		return query, nil
	}
	if r := []rune(expanded); len(r) > maxExpandedQuery {
		expanded = string(r[:maxExpandedQuery])
	}
	return expanded, nil
}

// decodeJSON parses a model reply, tolerating markdown fences and chatter
// around the object.
func decodeJSON(s string, dst any) error {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "```"); i >= 0 {
		body := s[i+3:]
		body = strings.TrimPrefix(body, "json")
		if j := strings.Index(body, "```"); j >= 0 {
			body = body[:j]
		}
		s = strings.TrimSpace(body)
	}
	if i, j := strings.Index(s, "{"), strings.LastIndex(s, "}"); i >= 0 && j > i {
		s = s[i : j+1]
	}
	return json.Unmarshal([]byte(s), dst)
}

func unit(v *float64) *float64 {
	if v == nil || math.IsNaN(*v) {
		return nil
	}
	return models.Float(math.Min(1, math.Max(0, *v)))
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
