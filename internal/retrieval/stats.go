package retrieval

import (
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/voicewise/insights/internal/models"
)

// ComputeStats aggregates records that already passed the confidence floor.
func ComputeStats(records []models.Record, topN int) AggregateStats {
	var st AggregateStats
	if len(records) == 0 {
		return st
	}
	st.TotalRecords = len(records)

	var ratings, confidences, churn, revenue []float64
	pain := newTermCounter()
	opps := newTermCounter()
	for _, r := range records {
		if r.Rating != nil {
			ratings = append(ratings, float64(*r.Rating))
		}
		st.Sentiment.Add(r.Sentiment)
		for _, p := range r.PainPoints {
			pain.add(p)
		}
		for _, o := range r.Opportunities {
			opps.add(o)
		}
		if r.Confidence != nil {
			confidences = append(confidences, *r.Confidence)
		}
		if r.ChurnScore != nil {
			churn = append(churn, *r.ChurnScore)
		}
		if r.RevenueScore != nil {
			revenue = append(revenue, *r.RevenueScore)
		}
	}

	st.RatingMean = meanPtr(ratings)
	if len(ratings) > 1 {
		sd := StdDev(ratings)
		st.RatingStd = &sd
	}
	st.TopPainPoints = pain.top(topN)
	st.TopOpportunities = opps.top(topN)
	st.MeanConfidence = meanPtr(confidences)
	st.MeanChurn = meanPtr(churn)
	st.MeanRevenue = meanPtr(revenue)
	return st
}

// Mean of xs; 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// StdDev is the population standard deviation (divides by n).
func StdDev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := Mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)))
}

func meanPtr(xs []float64) *float64 {
	if len(xs) == 0 {
		return nil
	}
	m := Mean(xs)
	return &m
}

// NormalizeTerm case-folds and trims a free-text item for counting and set
// comparison.
func NormalizeTerm(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

type termCounter struct {
	counts map[string]int
	order  []string
}

func newTermCounter() *termCounter {
	return &termCounter{counts: map[string]int{}}
}

func (c *termCounter) add(raw string) {
	t := NormalizeTerm(raw)
	if t == "" {
		return
	}
	if _, ok := c.counts[t]; !ok {
		c.order = append(c.order, t)
	}
	c.counts[t]++
}

// top returns the n most frequent terms; ties keep first-seen order.
func (c *termCounter) top(n int) []TermCount {
	if len(c.order) == 0 || n <= 0 {
		return nil
	}
	terms := append([]string(nil), c.order...)
	sort.SliceStable(terms, func(i, j int) bool {
		return c.counts[terms[i]] > c.counts[terms[j]]
	})
	if len(terms) > n {
		terms = terms[:n]
	}
	out := make([]TermCount, 0, len(terms))
	for _, t := range terms {
		out = append(out, TermCount{Name: capitalize(t), Count: c.counts[t]})
	}
	return out
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// TopTerms ranks free-text items by normalized frequency.
func TopTerms(items []string, n int) []TermCount {
	c := newTermCounter()
	for _, it := range items {
		c.add(it)
	}
	return c.top(n)
}
