package retrieval

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	promptSimilarLimit  = 5
	promptExemplarLimit = 3
	promptStatsTerms    = 3
)

// ToPromptText renders the context as a plain-text block for the extraction
// prompt. Sections without data are left out; an empty context renders "".
func (c *Context) ToPromptText() string {
	if c == nil {
		return ""
	}
	var lines []string

	if len(c.Similar) > 0 {
		lines = append(lines, "SIMILAR PAST CALLS:")
		for i, r := range head(c.Similar, promptSimilarLimit) {
			line := recordLine(i+1, r)
			if len(r.PainPoints) > 0 {
				line += ", Pain Points: " + strings.Join(r.PainPoints, ", ")
			}
			if len(r.Opportunities) > 0 {
				line += ", Opportunities: " + strings.Join(r.Opportunities, ", ")
			}
			lines = append(lines, line)
		}
		lines = append(lines, "")
	}

	if !c.Stats.Empty() {
		st := c.Stats
		lines = append(lines, "GYM HISTORICAL BENCHMARKS:")
		if st.RatingMean != nil {
			lines = append(lines, fmt.Sprintf("- Average Rating: %.2f/10", *st.RatingMean))
		}
		if st.Sentiment.Total() > 0 {
			lines = append(lines, fmt.Sprintf("- Sentiment: %d positive, %d neutral, %d negative",
				st.Sentiment.Positive, st.Sentiment.Neutral, st.Sentiment.Negative))
		}
		if len(st.TopPainPoints) > 0 {
			lines = append(lines, "- Common Pain Points: "+joinNames(st.TopPainPoints, promptStatsTerms))
		}
		if len(st.TopOpportunities) > 0 {
			lines = append(lines, "- Common Opportunities: "+joinNames(st.TopOpportunities, promptStatsTerms))
		}
		if st.MeanChurn != nil {
			lines = append(lines, fmt.Sprintf("- Average Churn Score: %.1f", *st.MeanChurn))
		}
		if st.MeanRevenue != nil {
			lines = append(lines, fmt.Sprintf("- Average Revenue Interest Score: %.1f", *st.MeanRevenue))
		}
		lines = append(lines, "")
	}

	if len(c.Exemplars) > 0 {
		lines = append(lines, "HIGH-QUALITY REFERENCE EXAMPLES:")
		for i, r := range head(c.Exemplars, promptExemplarLimit) {
			line := recordLine(i+1, r)
			if len(r.Topics) > 0 {
				line += ", Topics: " + strings.Join(head(r.Topics, 3), ", ")
			}
			if len(r.PainPoints) > 0 {
				line += ", Pain Points: " + strings.Join(head(r.PainPoints, 2), ", ")
			}
			if len(r.Opportunities) > 0 {
				line += ", Opportunities: " + strings.Join(head(r.Opportunities, 2), ", ")
			}
			lines = append(lines, line)
		}
		lines = append(lines, "")
	}

	return strings.Join(lines, "\n")
}

func recordLine(n int, r ScoredRecord) string {
	rating := "N/A"
	if r.Rating != nil {
		rating = strconv.Itoa(*r.Rating)
	}
	sentiment := "N/A"
	if r.Sentiment.Valid() {
		sentiment = string(r.Sentiment)
	}
	var confidence float64
	if r.Confidence != nil {
		confidence = *r.Confidence
	}
	line := fmt.Sprintf("%d. Rating: %s, Sentiment: %s, Confidence: %.2f", n, rating, sentiment, confidence)
	if r.ChurnScore != nil {
		line += fmt.Sprintf(", Churn Score: %.1f", *r.ChurnScore)
	}
	if r.RevenueScore != nil {
		line += fmt.Sprintf(", Revenue Interest Score: %.1f", *r.RevenueScore)
	}
	return line
}

func joinNames(terms []TermCount, n int) string {
	names := make([]string, 0, n)
	for _, t := range head(terms, n) {
		names = append(names, t.Name)
	}
	return strings.Join(names, ", ")
}

func head[T any](xs []T, n int) []T {
	if len(xs) > n {
		return xs[:n]
	}
	return xs
}
