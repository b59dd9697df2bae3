package anomaly

import (
	"math"

	"github.com/voicewise/insights/internal/models"
	"github.com/voicewise/insights/internal/retrieval"
)

// Source tells which baseline a factor was computed against.
type Source string

const (
	SourceNone     Source = ""
	SourceSimilar  Source = "similar"
	SourceTenant   Source = "tenant"
	SourceAbsolute Source = "tenant_mean"
)

// logistic maps a z-score to (0.5, 1) once it passes tau, and to 0.5 below it.
func logistic(z, tau float64) float64 {
	return 1 / (1 + math.Exp(-math.Max(0, z-tau)))
}

// zScore returns |value-mean|/std and false when std is not positive.
func zScore(value, mean, std float64) (float64, bool) {
	if !(std > 0) || math.IsNaN(mean) {
		return 0, false
	}
	return math.Abs(value-mean) / std, true
}

// numericFactor scores one numeric field. It prefers the similar-records
// sample, then a tenant mean/std pair, then an absolute deviation from the
// tenant mean when absFallback is set. Mean and std always come from the
// same sample.
func (s *scorer) numericFactor(value *float64, sample []float64, minSample int, tenantMean, tenantStd *float64, absFallback bool) (*float64, Source) {
	if value == nil {
		return nil, SourceNone
	}
	v := *value

	if len(sample) >= minSample {
		if z, ok := zScore(v, retrieval.Mean(sample), retrieval.StdDev(sample)); ok {
			return ptr(logistic(z, s.cfg.TauSimilar)), SourceSimilar
		}
	}

	if tenantMean != nil && tenantStd != nil {
		if z, ok := zScore(v, *tenantMean, *tenantStd); ok {
			return ptr(logistic(z, s.cfg.TauTenant)), SourceTenant
		}
	}

	if absFallback && tenantMean != nil {
		dev := math.Abs(v - *tenantMean)
		if dev > s.cfg.AbsDeviationThreshold {
			return ptr(math.Min(1, dev/s.cfg.AbsDeviationScale)), SourceAbsolute
		}
	}
	return nil, SourceNone
}

func (s *scorer) ratingFactor(x models.ExtractedInsight, rc *retrieval.Context) (*float64, Source) {
	if x.Rating == nil {
		return nil, SourceNone
	}
	var sample []float64
	for _, r := range rc.Similar {
		if r.Rating != nil {
			sample = append(sample, float64(*r.Rating))
		}
	}
	return s.numericFactor(ptr(float64(*x.Rating)), sample, s.cfg.MinSimilarValues,
		rc.Stats.RatingMean, rc.Stats.RatingStd, false)
}

func (s *scorer) confidenceFactor(x models.ExtractedInsight, rc *retrieval.Context) (*float64, Source) {
	var sample []float64
	for _, r := range rc.Similar {
		if r.Confidence != nil {
			sample = append(sample, *r.Confidence)
		}
	}
	return s.numericFactor(x.Confidence, sample, s.cfg.MinSimilarConfidenceValues,
		rc.Stats.MeanConfidence, nil, true)
}

func (s *scorer) churnFactor(x models.ExtractedInsight, rc *retrieval.Context) (*float64, Source) {
	var sample []float64
	for _, r := range rc.Similar {
		if r.ChurnScore != nil {
			sample = append(sample, *r.ChurnScore)
		}
	}
	return s.numericFactor(x.ChurnScore, sample, s.cfg.MinSimilarValues,
		rc.Stats.MeanChurn, nil, true)
}

func (s *scorer) revenueFactor(x models.ExtractedInsight, rc *retrieval.Context) (*float64, Source) {
	var sample []float64
	for _, r := range rc.Similar {
		if r.RevenueScore != nil {
			sample = append(sample, *r.RevenueScore)
		}
	}
	return s.numericFactor(x.RevenueScore, sample, s.cfg.MinSimilarValues,
		rc.Stats.MeanRevenue, nil, true)
}

// ExpectedSentiment is the sentiment a rating implies.
func ExpectedSentiment(rating int) models.Sentiment {
	switch {
	case rating >= 8:
		return models.SentimentPositive
	case rating <= 4:
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}

// conflicts reports whether a rated record's sentiment contradicts its rating.
// Mid-range ratings accept a positive sentiment as well as neutral.
func conflicts(rating int, s models.Sentiment) bool {
	switch {
	case rating >= 8:
		return s != models.SentimentPositive
	case rating <= 4:
		return s != models.SentimentNegative
	default:
		return s != models.SentimentNeutral && s != models.SentimentPositive
	}
}

func (s *scorer) sentimentConflictFactor(x models.ExtractedInsight, rc *retrieval.Context) (*float64, Source) {
	if x.Rating == nil || !x.Sentiment.Valid() {
		return nil, SourceNone
	}
	if x.Sentiment == ExpectedSentiment(*x.Rating) {
		return ptr(0), SourceNone
	}
	if len(rc.Similar) == 0 {
		return ptr(0.5), SourceNone
	}

	var n int
	for _, r := range rc.Similar {
		if r.Rating != nil && r.Sentiment.Valid() && conflicts(*r.Rating, r.Sentiment) {
			n++
		}
	}
	rate := float64(n) / float64(len(rc.Similar))
	switch {
	case rate < 0.2:
		return ptr(0.7), SourceSimilar
	case rate < 0.5:
		return ptr(0.4), SourceSimilar
	default:
		return ptr(0.2), SourceSimilar
	}
}

func (s *scorer) patternFactor(x models.ExtractedInsight, rc *retrieval.Context) (*float64, Source) {
	if len(rc.Similar) < s.cfg.MinPatternNeighbors {
		return nil, SourceNone
	}
	var devs []float64

	if x.Sentiment.Valid() {
		if d, ok := sentimentDeviation(x.Sentiment, rc.Similar); ok {
			devs = append(devs, d)
		}
	}

	var neighborPain, neighborOpps []string
	for _, r := range rc.Similar {
		neighborPain = append(neighborPain, r.PainPoints...)
		neighborOpps = append(neighborOpps, r.Opportunities...)
	}
	if d, ok := noveltyRate(x.PainPoints, neighborPain); ok {
		devs = append(devs, d)
	}
	if d, ok := noveltyRate(x.Opportunities, neighborOpps); ok {
		devs = append(devs, d)
	}

	if len(devs) == 0 {
		return nil, SourceNone
	}
	var sum float64
	for _, d := range devs {
		sum += d
	}
	return ptr(sum / float64(len(devs))), SourceSimilar
}

// sentimentDeviation is 1 - frequency of s among neighbors, reported only
// when s is not a most frequent neighbor sentiment.
func sentimentDeviation(s models.Sentiment, similar []retrieval.ScoredRecord) (float64, bool) {
	counts := map[models.Sentiment]int{}
	var total, maxCount int
	for _, r := range similar {
		if !r.Sentiment.Valid() {
			continue
		}
		counts[r.Sentiment]++
		total++
		if counts[r.Sentiment] > maxCount {
			maxCount = counts[r.Sentiment]
		}
	}
	if total == 0 || counts[s] == maxCount {
		return 0, false
	}
	return 1 - float64(counts[s])/float64(total), true
}

// noveltyRate is the share of extracted items (normalized) absent from every
// neighbor. Undefined when either side is empty.
func noveltyRate(extracted, neighbors []string) (float64, bool) {
	seen := map[string]struct{}{}
	for _, n := range neighbors {
		if t := retrieval.NormalizeTerm(n); t != "" {
			seen[t] = struct{}{}
		}
	}
	items := map[string]struct{}{}
	for _, e := range extracted {
		if t := retrieval.NormalizeTerm(e); t != "" {
			items[t] = struct{}{}
		}
	}
	if len(seen) == 0 || len(items) == 0 {
		return 0, false
	}
	var novel int
	for t := range items {
		if _, ok := seen[t]; !ok {
			novel++
		}
	}
	return float64(novel) / float64(len(items)), true
}

func ptr(v float64) *float64 { return &v }
