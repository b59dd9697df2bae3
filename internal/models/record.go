package models

import (
	"strings"
	"time"
)

type Sentiment string

const (
	SentimentUnknown  Sentiment = ""
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// ParseSentiment folds case and whitespace; anything unrecognised is
// SentimentUnknown.
func ParseSentiment(v string) Sentiment {
	switch Sentiment(strings.ToLower(strings.TrimSpace(v))) {
	case SentimentPositive:
		return SentimentPositive
	case SentimentNeutral:
		return SentimentNeutral
	case SentimentNegative:
		return SentimentNegative
	default:
		return SentimentUnknown
	}
}

func (s Sentiment) Valid() bool { return s != SentimentUnknown }

// Record is one completed transcript unit with its (optional) extracted
// insight fields.
type Record struct {
	CallID        string
	TenantID      string
	Rating        *int
	Sentiment     Sentiment
	PainPoints    []string
	Opportunities []string
	Topics        []string
	ChurnScore    *float64
	RevenueScore  *float64
	Confidence    *float64
	AnomalyScore  *float64
	Embedding     []float32
	HasInsight    bool
	CreatedAt     time.Time
}

// ExtractedInsight is what the LLM extractor returns for one transcript.
type ExtractedInsight struct {
	Sentiment            Sentiment         `json:"sentiment"`
	Rating               *int              `json:"rating,omitempty"`
	PainPoints           []string          `json:"pain_points"`
	Opportunities        []string          `json:"opportunities"`
	Topics               []string          `json:"main_topics"`
	ChurnScore           *float64          `json:"churn_score,omitempty"`
	RevenueScore         *float64          `json:"revenue_interest_score,omitempty"`
	Confidence           *float64          `json:"confidence,omitempty"`
	RevenueInterest      bool              `json:"revenue_interest"`
	RevenueInterestQuote string            `json:"revenue_interest_quote,omitempty"`
	CustomAnswers        map[string]string `json:"custom_instruction_answers,omitempty"`
}

// Float and Int are small helpers for building optional fields.
func Float(v float64) *float64 { return &v }
func Int(v int) *int             { return &v }
