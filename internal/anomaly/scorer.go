// Package anomaly turns an extraction and its retrieval context into a single
// outlier score in [0,1].
package anomaly

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/voicewise/insights/internal/metrics"
	"github.com/voicewise/insights/internal/models"
	"github.com/voicewise/insights/internal/retrieval"
)

// FactorResult is one factor's contribution. Score is nil when the factor
// could not be computed.
type FactorResult struct {
	Name   string   `json:"name"`
	Score  *float64 `json:"score,omitempty"`
	Weight float64  `json:"weight"`
	Source Source   `json:"source,omitempty"`
}

func (f FactorResult) Available() bool { return f.Score != nil }

type Breakdown struct {
	Score   float64        `json:"score"`
	Factors []FactorResult `json:"factors"`
}

type Scorer interface {
	// Score never fails; a factor that cannot be computed is left out.
	Score(x models.ExtractedInsight, rc *retrieval.Context, tenantID string) float64
	Explain(x models.ExtractedInsight, rc *retrieval.Context, tenantID string) Breakdown
}

type scorer struct {
	cfg Config
	log *logrus.Logger
}

func NewScorer(cfg Config, log *logrus.Logger) Scorer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &scorer{cfg: cfg, log: log}
}

type factorFunc func(models.ExtractedInsight, *retrieval.Context) (*float64, Source)

func (s *scorer) Score(x models.ExtractedInsight, rc *retrieval.Context, tenantID string) float64 {
	return s.Explain(x, rc, tenantID).Score
}

func (s *scorer) Explain(x models.ExtractedInsight, rc *retrieval.Context, tenantID string) Breakdown {
	if rc == nil {
		rc = &retrieval.Context{TenantID: tenantID}
	}
	w := s.cfg.Weights
	factors := []struct {
		name   string
		weight float64
		fn     factorFunc
	}{
		{FactorRating, w.Rating, s.ratingFactor},
		{FactorSentimentConflict, w.SentimentConflict, s.sentimentConflictFactor},
		{FactorPattern, w.Pattern, s.patternFactor},
		{FactorConfidence, w.Confidence, s.confidenceFactor},
		{FactorChurn, w.Churn, s.churnFactor},
		{FactorRevenue, w.Revenue, s.revenueFactor},
	}

	out := Breakdown{Factors: make([]FactorResult, 0, len(factors))}
	var weighted, total float64
	for _, f := range factors {
		score, src := s.safe(f.name, tenantID, f.fn, x, rc)
		if score != nil && (math.IsNaN(*score) || math.IsInf(*score, 0)) {
			score = nil
		}
		res := FactorResult{Name: f.name, Score: score, Weight: f.weight, Source: src}
		out.Factors = append(out.Factors, res)
		if score == nil {
			metrics.AnomalyFactorUnavailable.WithLabelValues(f.name).Inc()
			continue
		}
		weighted += *score * f.weight
		total += f.weight
	}

	if total > 0 {
		out.Score = clamp01(weighted / total)
	}
	metrics.AnomalyScores.Observe(out.Score)

	if s.log.IsLevelEnabled(logrus.DebugLevel) {
		s.log.WithFields(logrus.Fields{
			"tenant_id": tenantID,
			"score":     out.Score,
			"factors":   out.Factors,
		}).Debug("anomaly score computed")
	}
	return out
}

// safe runs one factor, turning a panic into an unavailable factor.
func (s *scorer) safe(name, tenantID string, fn factorFunc, x models.ExtractedInsight, rc *retrieval.Context) (score *float64, src Source) {
	defer func() {
		if r := recover(); r != nil {
			s.log.WithFields(logrus.Fields{
				"tenant_id": tenantID,
				"factor":    name,
				"panic":     fmt.Sprint(r),
			}).Warn("anomaly factor failed")
			score, src = nil, SourceNone
		}
	}()
	return fn(x, rc)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
