// Package retrieval builds the grounding context for transcript extraction:
// similar past records, tenant benchmarks and high-confidence exemplars.
package retrieval

import (
	"context"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/voicewise/insights/internal/metrics"
	"github.com/voicewise/insights/internal/models"
	"github.com/voicewise/insights/internal/similarity"
)

// Embedder turns text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// RecordStore is the read side of the record store. Implementations may
// pre-filter in the database; Service re-checks distances and thresholds.
type RecordStore interface {
	// SimilarByEmbedding returns tenant records with a non-null embedding whose
	// cosine distance to embedding is below maxDistance, nearest first,
	// leaving out excludeCallID when set. A limit of 0 means no limit.
	SimilarByEmbedding(ctx context.Context, tenantID, excludeCallID string, embedding []float32, maxDistance float64, limit int) ([]models.Record, error)
	// StatsRecords returns tenant records with an insight and confidence >= minConfidence.
	StatsRecords(ctx context.Context, tenantID string, minConfidence float64) ([]models.Record, error)
	// ExemplarCandidates returns tenant records other than excludeCallID with
	// an embedding and confidence >= minConfidence, highest confidence first.
	ExemplarCandidates(ctx context.Context, tenantID, excludeCallID string, minConfidence float64, limit int) ([]models.Record, error)
}

type Options struct {
	SimilarityThreshold   float64
	StatsMinConfidence    float64
	ExemplarMinConfidence float64
	ExemplarLimit         int
	TopTerms              int
	// FilterInsightBeforeCap drops neighbors without an insight before applying
	// top_k, so young tenants with many unprocessed calls still get neighbors.
	FilterInsightBeforeCap bool
}

func DefaultOptions() Options {
	return Options{
		SimilarityThreshold:   0.85,
		StatsMinConfidence:    0.3,
		ExemplarMinConfidence: 0.8,
		ExemplarLimit:         3,
		TopTerms:              5,
	}
}

type Service interface {
	// Retrieve never fails; collaborator errors shrink the context instead.
	Retrieve(ctx context.Context, text, tenantID string, topK int, embedding []float32) *Context
	// RetrieveFor is Retrieve for a stored call: the call itself is never
	// its own neighbor or exemplar.
	RetrieveFor(ctx context.Context, callID, text, tenantID string, topK int, embedding []float32) *Context
}

type service struct {
	store    RecordStore
	embedder Embedder
	opts     Options
	log      *logrus.Logger
}

func NewService(store RecordStore, embedder Embedder, opts Options, log *logrus.Logger) Service {
	if opts.SimilarityThreshold <= 0 {
		opts.SimilarityThreshold = 0.85
	}
	if opts.StatsMinConfidence <= 0 {
		opts.StatsMinConfidence = 0.3
	}
	if opts.ExemplarMinConfidence <= 0 {
		opts.ExemplarMinConfidence = 0.8
	}
	if opts.ExemplarLimit <= 0 {
		opts.ExemplarLimit = 3
	}
	if opts.TopTerms <= 0 {
		opts.TopTerms = 5
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &service{store: store, embedder: embedder, opts: opts, log: log}
}

func (s *service) Retrieve(ctx context.Context, text, tenantID string, topK int, embedding []float32) *Context {
	return s.RetrieveFor(ctx, "", text, tenantID, topK, embedding)
}

func (s *service) RetrieveFor(ctx context.Context, callID, text, tenantID string, topK int, embedding []float32) *Context {
	rc := &Context{TenantID: tenantID}
	fields := logrus.Fields{"tenant_id": tenantID}
	if callID != "" {
		fields["call_id"] = callID
	}

	if len(embedding) == 0 && s.embedder != nil && text != "" {
		v, err := s.embedder.Embed(ctx, text)
		if err != nil {
			s.degraded("embedding", fields, err)
		} else {
			embedding = v
		}
	}
	rc.Embedded = len(embedding) > 0

	if rc.Embedded && topK > 0 {
		rc.Similar = s.similar(ctx, tenantID, callID, embedding, topK, fields)
	}

	records, err := s.store.StatsRecords(ctx, tenantID, s.opts.StatsMinConfidence)
	if err != nil {
		s.degraded("stats", fields, err)
	} else {
		rc.Stats = ComputeStats(records, s.opts.TopTerms)
	}

	rc.Exemplars = s.exemplars(ctx, tenantID, callID, embedding, fields)

	s.log.WithFields(logrus.Fields{
		"tenant_id": tenantID,
		"similar":   len(rc.Similar),
		"stats":     rc.Stats.TotalRecords,
		"exemplars": len(rc.Exemplars),
		"embedded":  rc.Embedded,
	}).Debug("retrieval context built")
	return rc
}

func (s *service) similar(ctx context.Context, tenantID, exclude string, embedding []float32, topK int, fields logrus.Fields) []ScoredRecord {
	limit := topK
	if s.opts.FilterInsightBeforeCap {
		limit = 0
	}
	candidates, err := s.store.SimilarByEmbedding(ctx, tenantID, exclude, embedding, s.opts.SimilarityThreshold, limit)
	if err != nil {
		s.degraded("similar", fields, err)
		return nil
	}

	type hit struct {
		rec  models.Record
		dist float64
	}
	hits := make([]hit, 0, len(candidates))
	for _, r := range candidates {
		if len(r.Embedding) == 0 || (exclude != "" && r.CallID == exclude) {
			continue
		}
		if s.opts.FilterInsightBeforeCap && !r.HasInsight {
			continue
		}
		d := similarity.CosineDistance(r.Embedding, embedding)
		if d >= s.opts.SimilarityThreshold {
			continue
		}
		hits = append(hits, hit{rec: r, dist: d})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })
	if len(hits) > topK {
		hits = hits[:topK]
	}

	out := make([]ScoredRecord, 0, len(hits))
	for _, h := range hits {
		if !h.rec.HasInsight {
			continue
		}
		out = append(out, scored(h.rec, similarity.FromDistance(h.dist)))
	}
	return out
}

func (s *service) exemplars(ctx context.Context, tenantID, exclude string, embedding []float32, fields logrus.Fields) []ScoredRecord {
	// Twice the limit by confidence, then re-ranked by similarity.
	pool := s.opts.ExemplarLimit * 2
	candidates, err := s.store.ExemplarCandidates(ctx, tenantID, exclude, s.opts.ExemplarMinConfidence, pool)
	if err != nil {
		s.degraded("exemplars", fields, err)
		return nil
	}

	out := make([]ScoredRecord, 0, len(candidates))
	for _, r := range candidates {
		if len(r.Embedding) == 0 || !r.HasInsight || (exclude != "" && r.CallID == exclude) {
			continue
		}
		if r.Confidence == nil || *r.Confidence < s.opts.ExemplarMinConfidence {
			continue
		}
		var sim float64
		if len(embedding) > 0 {
			sim = similarity.Cosine(r.Embedding, embedding)
		}
		out = append(out, scored(r, sim))
	}

	sort.SliceStable(out, func(i, j int) bool {
		return *out[i].Confidence > *out[j].Confidence
	})
	if len(out) > pool {
		out = out[:pool]
	}
	if len(embedding) > 0 {
		sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	}
	return head(out, s.opts.ExemplarLimit)
}

func (s *service) degraded(section string, fields logrus.Fields, err error) {
	metrics.RetrievalDegraded.WithLabelValues(section).Inc()
	s.log.WithFields(fields).WithField("section", section).WithError(err).Warn("retrieval section skipped")
}
