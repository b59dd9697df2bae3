package anomaly

// Factor names, used as log fields and metric labels.
const (
	FactorRating            = "rating"
	FactorSentimentConflict = "sentiment_conflict"
	FactorPattern           = "pattern_deviation"
	FactorConfidence        = "confidence"
	FactorChurn             = "churn_score"
	FactorRevenue           = "revenue_score"
)

type Weights struct {
	Rating            float64
	SentimentConflict float64
	Pattern           float64
	Confidence        float64
	Churn             float64
	Revenue           float64
}

// Config holds the scoring thresholds. The defaults are empirical and meant
// to be tuned per deployment.
type Config struct {
	// TauSimilar is the z-score offset used with the similar-records sample.
	TauSimilar float64
	// TauTenant is the z-score offset used with tenant-wide stats.
	TauTenant float64

	MinSimilarValues           int // rating, churn, revenue
	MinSimilarConfidenceValues int
	MinPatternNeighbors        int

	// AbsDeviationThreshold and AbsDeviationScale drive the fallback used when
	// only a tenant mean is known: deviation above the threshold scores
	// deviation/scale, capped at 1.
	AbsDeviationThreshold float64
	AbsDeviationScale     float64

	Weights Weights
}

func DefaultConfig() Config {
	return Config{
		TauSimilar:                 1.35,
		TauTenant:                  2.0,
		MinSimilarValues:           3,
		MinSimilarConfidenceValues: 2,
		MinPatternNeighbors:        2,
		AbsDeviationThreshold:      0.4,
		AbsDeviationScale:          0.5,
		Weights: Weights{
			Rating:            0.2,
			SentimentConflict: 0.2,
			Pattern:           0.1,
			Confidence:        0.1,
			Churn:             0.2,
			Revenue:           0.2,
		},
	}
}
