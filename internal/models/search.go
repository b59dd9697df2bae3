package models

import (
	"strings"
	"time"
)

type SearchType string

const (
	SearchPhone     SearchType = "phone"
	SearchStatus    SearchType = "status"
	SearchSentiment SearchType = "sentiment"
	SearchNLP       SearchType = "nlp"
)

func ParseSearchType(s string) (SearchType, bool) {
	switch t := SearchType(strings.ToLower(strings.TrimSpace(s))); t {
	case SearchPhone, SearchStatus, SearchSentiment, SearchNLP:
		return t, true
	case "":
		return SearchNLP, true
	}
	return "", false
}

// Page is an offset window over a result list.
type Page struct {
	Limit int
	Skip  int
}

// SearchQuery is one call search. MaxDistance only applies to nlp searches:
// 0 is strict, 2 accepts everything.
type SearchQuery struct {
	TenantID    string     `form:"-"`
	Query       string     `form:"q"`
	Type        SearchType `form:"type"`
	Limit       int        `form:"limit"`
	Skip        int        `form:"skip"`
	MaxDistance float64    `form:"threshold"`
	Expand      bool       `form:"expand"`
}

func (q SearchQuery) Params() map[string]any {
	p := map[string]any{
		"q":     q.Query,
		"type":  string(q.Type),
		"limit": q.Limit,
		"skip":  q.Skip,
	}
	if q.Type == SearchNLP {
		p["threshold"] = q.MaxDistance
		p["expand"] = q.Expand
	}
	return p
}

type SearchInsight struct {
	Sentiment            Sentiment `json:"sentiment,omitempty"`
	Topics               []string  `json:"topics"`
	PainPoints           []string  `json:"pain_points"`
	Opportunities        []string  `json:"opportunities"`
	RevenueInterest      bool      `json:"revenue_interest"`
	RevenueInterestQuote *string   `json:"revenue_interest_quote,omitempty"`
	Confidence           float64   `json:"confidence"`
}

type SearchHit struct {
	CallID          string         `json:"call_id"`
	TenantID        string         `json:"tenant_id"`
	PhoneNumber     string         `json:"phone_number"`
	Status          string         `json:"status"`
	CreatedAt       time.Time      `json:"created_at"`
	DurationSeconds *int           `json:"duration_seconds,omitempty"`
	RawTranscript   *string        `json:"raw_transcript,omitempty"`
	Similarity      *float64       `json:"similarity,omitempty"`
	Insights        *SearchInsight `json:"insights"`
}

func NewSearchHit(c *Call) SearchHit {
	h := SearchHit{
		CallID:          c.CallID,
		TenantID:        c.TenantID,
		PhoneNumber:     c.PhoneNumber,
		Status:          c.Status,
		CreatedAt:       c.CreatedAt,
		DurationSeconds: c.DurationSeconds,
		RawTranscript:   c.RawTranscript,
	}
	if in := c.Insight; in != nil {
		si := &SearchInsight{
			Topics:               nonNil(in.Topics),
			PainPoints:           nonNil(in.PainPoints),
			Opportunities:        nonNil(in.Opportunities),
			RevenueInterestQuote: in.RevenueInterestQuote,
		}
		if in.Sentiment != nil {
			si.Sentiment = ParseSentiment(*in.Sentiment)
		}
		if in.RevenueInterest != nil {
			si.RevenueInterest = *in.RevenueInterest
		}
		if in.Confidence != nil {
			si.Confidence = *in.Confidence
		}
		h.Insights = si
	}
	return h
}

func nonNil(xs []string) []string {
	if xs == nil {
		return []string{}
	}
	return xs
}

// SearchAggregate summarizes the insights of every hit in a result page.
type SearchAggregate struct {
	TotalCalls           int             `json:"total_calls"`
	Sentiment            SentimentCounts `json:"sentiment_distribution"`
	TopTopics            []TermCount     `json:"top_topics"`
	TopPainPoints        []TermCount     `json:"top_pain_points"`
	RevenueInterestCount int             `json:"revenue_interest_count"`
	AverageConfidence    float64         `json:"average_confidence"`
	TotalDurationSeconds int             `json:"total_duration_seconds"`
}

type SearchResult struct {
	Query         string          `json:"query"`
	ExpandedQuery string          `json:"expanded_query,omitempty"`
	Type          SearchType      `json:"search_type"`
	TotalResults  int             `json:"total_results"`
	Aggregated    SearchAggregate `json:"aggregated_insights"`
	Calls         []SearchHit     `json:"calls"`
	// Degraded is set when an nlp search fell back to transcript text
	// matching because the query could not be embedded.
	Degraded bool `json:"degraded,omitempty"`
}
