package llm

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/voicewise/insights/internal/models"
	"github.com/voicewise/insights/internal/providers/breaker"
	"github.com/voicewise/insights/internal/utils"
)

// Resilient guards the LLM calls with one circuit breaker per use, so a
// struggling live-analysis path does not trip extraction or search.
type Resilient struct {
	base    *InsightClient
	extract *gobreaker.CircuitBreaker
	live    *gobreaker.CircuitBreaker
	expand  *gobreaker.CircuitBreaker
}

func NewResilient(base *InsightClient, log *logrus.Logger) *Resilient {
	return &Resilient{
		base:    base,
		extract: breaker.New(breaker.DefaultConfig("llm-extract"), log),
		live:    breaker.New(breaker.DefaultConfig("llm-live"), log),
		expand:  breaker.New(breaker.DefaultConfig("llm-expand"), log),
	}
}

func (r *Resilient) ExtractInsights(ctx context.Context, transcript, contextText string, customInstructions []string) (models.ExtractedInsight, error) {
	const op = "Resilient.ExtractInsights"
	x, err := breaker.Execute(r.extract, func() (models.ExtractedInsight, error) {
		return r.base.ExtractInsights(ctx, transcript, contextText, customInstructions)
	})
	if breaker.Open(err) {
		return x, utils.E(utils.CodeUnavailable, op, "llm circuit open", err)
	}
	return x, err
}

func (r *Resilient) AnalyzeLive(ctx context.Context, userText string, prev models.LiveEstimate) (models.LiveEstimate, error) {
	const op = "Resilient.AnalyzeLive"
	e, err := breaker.Execute(r.live, func() (models.LiveEstimate, error) {
		return r.base.AnalyzeLive(ctx, userText, prev)
	})
	if breaker.Open(err) {
		return e, utils.E(utils.CodeUnavailable, op, "llm circuit open", err)
	}
	return e, err
}

func (r *Resilient) ExpandQuery(ctx context.Context, query string) (string, error) {
	const op = "Resilient.ExpandQuery"
	q, err := breaker.Execute(r.expand, func() (string, error) {
		return r.base.ExpandQuery(ctx, query)
	})
	if breaker.Open(err) {
		return q, utils.E(utils.CodeUnavailable, op, "llm circuit open", err)
	}
	return q, err
}
