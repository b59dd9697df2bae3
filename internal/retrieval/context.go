package retrieval

import "github.com/voicewise/insights/internal/models"

// ScoredRecord is a historical record trimmed to what prompting and scoring
// need, with its similarity to the query transcript.
type ScoredRecord struct {
	CallID        string
	Rating        *int
	Sentiment     models.Sentiment
	Confidence    *float64
	ChurnScore    *float64
	RevenueScore  *float64
	PainPoints    []string
	Opportunities []string
	Topics        []string
	Similarity    float64
}

func scored(r models.Record, sim float64) ScoredRecord {
	return ScoredRecord{
		CallID:        r.CallID,
		Rating:        r.Rating,
		Sentiment:     r.Sentiment,
		Confidence:    r.Confidence,
		ChurnScore:    r.ChurnScore,
		RevenueScore:  r.RevenueScore,
		PainPoints:    r.PainPoints,
		Opportunities: r.Opportunities,
		Topics:        r.Topics,
		Similarity:    sim,
	}
}

type (
	SentimentCounts = models.SentimentCounts
	TermCount       = models.TermCount
)

// AggregateStats are tenant-wide benchmarks over records that cleared the
// confidence floor. Nil pointers mean "no data".
type AggregateStats struct {
	TotalRecords     int             `json:"total_records"`
	RatingMean       *float64        `json:"avg_rating,omitempty"`
	RatingStd        *float64        `json:"std_rating,omitempty"`
	Sentiment        SentimentCounts `json:"sentiment_distribution"`
	TopPainPoints    []TermCount     `json:"top_pain_points,omitempty"`
	TopOpportunities []TermCount     `json:"top_opportunities,omitempty"`
	MeanConfidence   *float64        `json:"avg_confidence,omitempty"`
	MeanChurn        *float64        `json:"avg_churn_score,omitempty"`
	MeanRevenue      *float64        `json:"avg_revenue_interest_score,omitempty"`
}

func (s AggregateStats) Empty() bool { return s.TotalRecords == 0 }

// Context is built once per extraction and discarded afterwards.
type Context struct {
	TenantID  string
	Similar   []ScoredRecord
	Stats     AggregateStats
	Exemplars []ScoredRecord
	// Embedded reports whether a query embedding was available.
	Embedded bool
}
