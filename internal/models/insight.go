package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

type Insight struct {
	ID                       uint           `gorm:"column:id;primaryKey" json:"-"`
	CallID                   string         `gorm:"column:call_id;type:varchar(255);uniqueIndex" json:"call_id"`
	Topics                   pq.StringArray `gorm:"column:topics;type:text[]" json:"topics"`
	Sentiment                *string        `gorm:"column:sentiment;type:varchar(20);index" json:"sentiment,omitempty"`
	Rating                   *int           `gorm:"column:gym_rating" json:"rating,omitempty"`
	PainPoints               pq.StringArray `gorm:"column:pain_points;type:text[]" json:"pain_points"`
	Opportunities            pq.StringArray `gorm:"column:opportunities;type:text[]" json:"opportunities"`
	RevenueInterest          *bool          `gorm:"column:revenue_interest;index" json:"revenue_interest,omitempty"`
	RevenueInterestQuote     *string        `gorm:"column:revenue_interest_quote;type:text" json:"revenue_interest_quote,omitempty"`
	ChurnScore               *float64       `gorm:"column:churn_score" json:"churn_score,omitempty"`
	RevenueInterestScore     *float64       `gorm:"column:revenue_interest_score" json:"revenue_interest_score,omitempty"`
	Confidence               *float64       `gorm:"column:confidence" json:"confidence,omitempty"`
	AnomalyScore             *float64       `gorm:"column:anomaly_score" json:"anomaly_score,omitempty"`
	CustomInstructionAnswers datatypes.JSON `gorm:"column:custom_instruction_answers;type:jsonb" json:"custom_instruction_answers,omitempty"`
	ExtractedAt              time.Time      `gorm:"column:extracted_at;type:timestamptz;index" json:"extracted_at"`
}

func (Insight) TableName() string { return "insights" }

func (i *Insight) fill(r *Record) {
	r.HasInsight = true
	r.Rating = i.Rating
	if i.Sentiment != nil {
		r.Sentiment = ParseSentiment(*i.Sentiment)
	}
	r.PainPoints = []string(i.PainPoints)
	r.Opportunities = []string(i.Opportunities)
	r.Topics = []string(i.Topics)
	r.ChurnScore = i.ChurnScore
	r.RevenueScore = i.RevenueInterestScore
	r.Confidence = i.Confidence
	r.AnomalyScore = i.AnomalyScore
}

// Apply overwrites the insight fields with a fresh extraction.
func (i *Insight) Apply(x ExtractedInsight, anomalyScore float64, answers datatypes.JSON) {
	i.Topics = pq.StringArray(x.Topics)
	i.Sentiment = nil
	if x.Sentiment.Valid() {
		s := string(x.Sentiment)
		i.Sentiment = &s
	}
	i.Rating = x.Rating
	i.PainPoints = pq.StringArray(x.PainPoints)
	i.Opportunities = pq.StringArray(x.Opportunities)
	ri := x.RevenueInterest
	i.RevenueInterest = &ri
	i.RevenueInterestQuote = nil
	if x.RevenueInterestQuote != "" {
		q := x.RevenueInterestQuote
		i.RevenueInterestQuote = &q
	}
	i.ChurnScore = x.ChurnScore
	i.RevenueInterestScore = x.RevenueScore
	i.Confidence = x.Confidence
	i.AnomalyScore = &anomalyScore
	i.CustomInstructionAnswers = answers
	i.ExtractedAt = time.Now().UTC()
}
