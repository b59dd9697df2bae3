package services

import (
	"context"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/voicewise/insights/internal/metrics"
	"github.com/voicewise/insights/internal/models"
	"github.com/voicewise/insights/internal/providers/llm"
	"github.com/voicewise/insights/internal/repositories/postgres"
	"github.com/voicewise/insights/internal/retrieval"
	"github.com/voicewise/insights/internal/similarity"
	"github.com/voicewise/insights/internal/utils"
)

const (
	DefaultSearchLimit       = 50
	MaxSearchLimit           = 200
	DefaultSearchMaxDistance = 0.77
	searchTopTerms           = 10
)

var phoneNoise = regexp.MustCompile(`[^\d+]`)

// SearchCache serves search pages through the search pool.
type SearchCache interface {
	Search(ctx context.Context, q models.SearchQuery, fetch func(context.Context) (models.SearchResult, error)) (models.SearchResult, error)
}

type SearchService interface {
	// Search runs a phone, status, sentiment or nlp search within the
	// query's tenant and aggregates the insights of the returned page.
	Search(ctx context.Context, q models.SearchQuery) (models.SearchResult, error)
}

type SearchDeps struct {
	Repo     postgres.SearchRepo
	Embedder retrieval.Embedder
	// Expander is optional; without it Expand is ignored.
	Expander llm.QueryExpander
	// Cache is optional.
	Cache  SearchCache
	Logger *logrus.Logger
}

type searchService struct {
	SearchDeps
}

func NewSearchService(d SearchDeps) SearchService {
	if d.Logger == nil {
		d.Logger = logrus.StandardLogger()
	}
	return &searchService{SearchDeps: d}
}

func (s *searchService) Search(ctx context.Context, q models.SearchQuery) (models.SearchResult, error) {
	const op = "SearchService.Search"

	q, err := normalizeSearch(q)
	if err != nil {
		return models.SearchResult{}, utils.E(utils.CodeInvalidArgument, op, err.Error(), nil)
	}
	fetch := func(ctx context.Context) (models.SearchResult, error) { return s.run(ctx, q) }

	var res models.SearchResult
	if s.Cache != nil {
		res, err = s.Cache.Search(ctx, q, fetch)
	} else {
		res, err = fetch(ctx)
	}
	if err != nil {
		metrics.SearchRequests.WithLabelValues(string(q.Type), "error").Inc()
		return models.SearchResult{}, utils.E(utils.CodeInternal, op, "search failed", err)
	}
	return res, nil
}

type searchError string

func (e searchError) Error() string { return string(e) }

// normalizeSearch validates q and rewrites the query text to the canonical
// form of its type, so equivalent searches share a cache key.
func normalizeSearch(q models.SearchQuery) (models.SearchQuery, error) {
	t, ok := models.ParseSearchType(string(q.Type))
	if !ok {
		return q, searchError("type must be phone, status, sentiment or nlp")
	}
	q.Type = t
	q.Query = strings.TrimSpace(q.Query)
	if q.Query == "" {
		return q, searchError("query is required")
	}

	switch {
	case q.Limit < 0 || q.Limit > MaxSearchLimit:
		return q, searchError("limit must be between 1 and 200")
	case q.Limit == 0:
		q.Limit = DefaultSearchLimit
	}
	if q.Skip < 0 {
		return q, searchError("skip must not be negative")
	}

	switch q.Type {
	case models.SearchPhone:
		q.Query = phoneNoise.ReplaceAllString(q.Query, "")
		if q.Query == "" {
			return q, searchError("phone query has no digits")
		}
	case models.SearchStatus:
		q.Query = strings.ToLower(q.Query)
	case models.SearchSentiment:
		sent := models.ParseSentiment(q.Query)
		if !sent.Valid() {
			return q, searchError("sentiment must be positive, neutral or negative")
		}
		q.Query = string(sent)
	case models.SearchNLP:
		if q.MaxDistance == 0 {
			q.MaxDistance = DefaultSearchMaxDistance
		}
		if q.MaxDistance < 0 || q.MaxDistance > 2 {
			return q, searchError("threshold must be between 0 and 2")
		}
	}
	if q.Type != models.SearchNLP {
		q.MaxDistance = 0
		q.Expand = false
	}
	return q, nil
}

func (s *searchService) run(ctx context.Context, q models.SearchQuery) (models.SearchResult, error) {
	page := models.Page{Limit: q.Limit, Skip: q.Skip}
	res := models.SearchResult{Query: q.Query, Type: q.Type}
	fields := logrus.Fields{"tenant_id": q.TenantID, "search_type": q.Type}

	var (
		calls []models.Call
		query []float32
		err   error
	)
	switch q.Type {
	case models.SearchPhone:
		calls, err = s.Repo.ByPhone(ctx, q.TenantID, q.Query, page)
	case models.SearchStatus:
		calls, err = s.Repo.ByStatus(ctx, q.TenantID, q.Query, page)
	case models.SearchSentiment:
		calls, err = s.Repo.BySentiment(ctx, q.TenantID, models.Sentiment(q.Query), page)
	case models.SearchNLP:
		text := q.Query
		if q.Expand && s.Expander != nil {
			if expanded, xerr := s.Expander.ExpandQuery(ctx, q.Query); xerr != nil {
				s.Logger.WithFields(fields).WithError(xerr).Warn("query expansion failed, searching with the original query")
			} else {
				text = expanded
				res.ExpandedQuery = expanded
			}
		}
		query = s.embed(ctx, text, fields)
		if query == nil {
			res.Degraded = true
			calls, err = s.Repo.TranscriptContains(ctx, q.TenantID, q.Query, page)
		} else {
			calls, err = s.Repo.Semantic(ctx, q.TenantID, query, q.MaxDistance, page)
		}
	}
	if err != nil {
		return models.SearchResult{}, err
	}

	res.Calls = make([]models.SearchHit, 0, len(calls))
	for i := range calls {
		h := models.NewSearchHit(&calls[i])
		if emb := calls[i].Embedding(); query != nil && emb != nil {
			sim := similarity.Cosine(emb, query)
			h.Similarity = &sim
		}
		res.Calls = append(res.Calls, h)
	}
	res.TotalResults = len(res.Calls)
	res.Aggregated = AggregateSearch(calls)

	outcome := "ok"
	if res.Degraded {
		outcome = "fallback"
	}
	metrics.SearchRequests.WithLabelValues(string(q.Type), outcome).Inc()
	s.Logger.WithFields(fields).WithFields(logrus.Fields{
		"results":  res.TotalResults,
		"degraded": res.Degraded,
	}).Debug("search executed")
	return res, nil
}

// embed returns nil when the query cannot be embedded; the caller falls back
// to transcript text matching.
func (s *searchService) embed(ctx context.Context, text string, fields logrus.Fields) []float32 {
	if s.Embedder == nil {
		return nil
	}
	v, err := s.Embedder.Embed(ctx, text)
	if err != nil || len(v) == 0 {
		s.Logger.WithFields(fields).WithError(err).Warn("query embedding failed, falling back to text search")
		return nil
	}
	return v
}

// AggregateSearch summarizes a result page. The confidence average is over
// calls that have an insight.
func AggregateSearch(calls []models.Call) models.SearchAggregate {
	agg := models.SearchAggregate{
		TotalCalls:    len(calls),
		TopTopics:     []models.TermCount{},
		TopPainPoints: []models.TermCount{},
	}
	var topics, pain []string
	var insights int
	var confidence float64
	for _, c := range calls {
		if c.DurationSeconds != nil {
			agg.TotalDurationSeconds += *c.DurationSeconds
		}
		in := c.Insight
		if in == nil {
			continue
		}
		insights++
		if in.Sentiment != nil {
			agg.Sentiment.Add(models.ParseSentiment(*in.Sentiment))
		}
		topics = append(topics, in.Topics...)
		pain = append(pain, in.PainPoints...)
		if in.RevenueInterest != nil && *in.RevenueInterest {
			agg.RevenueInterestCount++
		}
		if in.Confidence != nil {
			confidence += *in.Confidence
		}
	}
	if insights > 0 {
		agg.AverageConfidence = confidence / float64(insights)
	}
	if t := retrieval.TopTerms(topics, searchTopTerms); len(t) > 0 {
		agg.TopTopics = t
	}
	if t := retrieval.TopTerms(pain, searchTopTerms); len(t) > 0 {
		agg.TopPainPoints = t
	}
	return agg
}
