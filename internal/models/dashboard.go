package models

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

type SentimentCounts struct {
	Positive int `json:"positive"`
	Neutral  int `json:"neutral"`
	Negative int `json:"negative"`
}

func (c SentimentCounts) Total() int { return c.Positive + c.Neutral + c.Negative }

func (c *SentimentCounts) Add(s Sentiment) {
	switch s {
	case SentimentPositive:
		c.Positive++
	case SentimentNeutral:
		c.Neutral++
	case SentimentNegative:
		c.Negative++
	}
}

type TermCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type TrendKind string

const (
	TrendChurn     TrendKind = "churn"
	TrendRevenue   TrendKind = "revenue"
	TrendSentiment TrendKind = "sentiment"
)

func (k TrendKind) Valid() bool {
	switch k {
	case TrendChurn, TrendRevenue, TrendSentiment:
		return true
	}
	return false
}

// DateLayout is the day format used for trend buckets.
const DateLayout = "2006-01-02"

// TrendPoint is one day of a trend series. Average is set for churn and
// revenue series, the sentiment counts for sentiment series.
type TrendPoint struct {
	Date    string          `json:"date"`
	Count   int             `json:"count"`
	Average *float64        `json:"average,omitempty"`
	Counts  SentimentCounts `json:"sentiment"`
}

type DashboardSummary struct {
	TenantID             string          `json:"tenant_id,omitempty"`
	TotalCalls           int             `json:"total_calls"`
	AnalyzedCalls        int             `json:"analyzed_calls"`
	Sentiment            SentimentCounts `json:"sentiment_distribution"`
	AverageRating        *float64        `json:"avg_rating,omitempty"`
	TopPainPoints        []TermCount     `json:"top_pain_points"`
	TopOpportunities     []TermCount     `json:"top_opportunities"`
	RevenueOpportunities int             `json:"revenue_opportunities"`
	HighChurnCalls       int             `json:"high_churn_calls"`
	Anomalies            int             `json:"anomalies"`
}

// CallQuery filters chart-oriented call lists.
type CallQuery struct {
	TenantID        string     `form:"tenant_id"`
	Status          string     `form:"status"`
	Sentiment       string     `form:"sentiment"`
	PainPoint       string     `form:"pain_point"`
	Opportunity     string     `form:"opportunity"`
	RevenueInterest *bool      `form:"revenue_interest"`
	StartDate       *time.Time `form:"start_date" time_format:"2006-01-02" time_utc:"1"`
	EndDate         *time.Time `form:"end_date" time_format:"2006-01-02" time_utc:"1"`
	ChurnMinScore   *float64   `form:"churn_min_score"`
	RevenueMinScore *float64   `form:"revenue_min_score"`
	OrderBy         string     `form:"order_by"`
	Fields          []string   `form:"fields"`
	Limit           int        `form:"limit"`
}

// Bounded reports whether the query has both date bounds.
func (q CallQuery) Bounded() bool {
	return q.StartDate != nil && q.EndDate != nil
}

// Params lists the query's set parameters by name, for cache keys.
func (q CallQuery) Params() map[string]any {
	p := map[string]any{"limit": q.Limit}
	put := func(name, v string) {
		if v != "" {
			p[name] = v
		}
	}
	put("status", q.Status)
	put("sentiment", q.Sentiment)
	put("pain_point", q.PainPoint)
	put("opportunity", q.Opportunity)
	put("order_by", q.OrderBy)
	if q.RevenueInterest != nil {
		p["revenue_interest"] = strconv.FormatBool(*q.RevenueInterest)
	}
	if q.StartDate != nil {
		p["start_date"] = q.StartDate.UTC().Format(time.RFC3339)
	}
	if q.EndDate != nil {
		p["end_date"] = q.EndDate.UTC().Format(time.RFC3339)
	}
	if q.ChurnMinScore != nil {
		p["churn_min_score"] = *q.ChurnMinScore
	}
	if q.RevenueMinScore != nil {
		p["revenue_min_score"] = *q.RevenueMinScore
	}
	if len(q.Fields) > 0 {
		f := append([]string(nil), q.Fields...)
		sort.Strings(f)
		p["fields"] = strings.Join(f, ",")
	}
	return p
}

// CallPoint is one row of a chart-oriented call list.
type CallPoint struct {
	CallID          string    `json:"call_id"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	Sentiment       Sentiment `json:"sentiment,omitempty"`
	Rating          *int      `json:"rating,omitempty"`
	ChurnScore      *float64  `json:"churn_score,omitempty"`
	RevenueScore    *float64  `json:"revenue_interest_score,omitempty"`
	RevenueInterest *bool     `json:"revenue_interest,omitempty"`
	AnomalyScore    *float64  `json:"anomaly_score,omitempty"`
}

func NewCallPoint(c *Call) CallPoint {
	p := CallPoint{CallID: c.CallID, Status: c.Status, CreatedAt: c.CreatedAt}
	if in := c.Insight; in != nil {
		if in.Sentiment != nil {
			p.Sentiment = ParseSentiment(*in.Sentiment)
		}
		p.Rating = in.Rating
		p.ChurnScore = in.ChurnScore
		p.RevenueScore = in.RevenueInterestScore
		p.RevenueInterest = in.RevenueInterest
		p.AnomalyScore = in.AnomalyScore
	}
	return p
}
