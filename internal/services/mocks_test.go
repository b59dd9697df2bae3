package services

import (
	"context"
	"sync"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/voicewise/insights/internal/models"
	mongorepo "github.com/voicewise/insights/internal/repositories/mongo"
	"github.com/voicewise/insights/internal/retrieval"
	"github.com/voicewise/insights/internal/utils"
)

// memCalls is an in-memory postgres.CallRepo.
type memCalls struct {
	mu       sync.Mutex
	calls    map[string]*models.Call
	insights map[string]models.Insight
	status   map[string]string

	SetEmbeddingErr error
}

func newMemCalls(calls ...*models.Call) *memCalls {
	m := &memCalls{
		calls:    map[string]*models.Call{},
		insights: map[string]models.Insight{},
		status:   map[string]string{},
	}
	for _, c := range calls {
		m.calls[c.CallID] = c
	}
	return m
}

func (m *memCalls) GetByCallID(ctx context.Context, callID string) (*models.Call, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.calls[callID]
	if !ok {
		return nil, utils.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memCalls) Create(ctx context.Context, call *models.Call) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[call.CallID] = call
	return nil
}

func (m *memCalls) SetStatus(ctx context.Context, callID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status[callID] = status
	return nil
}

func (m *memCalls) SetEmbedding(ctx context.Context, callID string, embedding []float32) error {
	if m.SetEmbeddingErr != nil {
		return m.SetEmbeddingErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.calls[callID]
	if !ok {
		return utils.ErrNotFound
	}
	vec := pgvector.NewVector(embedding)
	c.TranscriptEmbedding = &vec
	return nil
}

func (m *memCalls) UpsertInsight(ctx context.Context, in *models.Insight) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insights[in.CallID] = *in
	return nil
}

func (m *memCalls) InsightsByCallIDs(ctx context.Context, tenantID string, callIDs []string) (map[string]models.Insight, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]models.Insight{}
	for _, id := range callIDs {
		if c, ok := m.calls[id]; !ok || c.TenantID != tenantID {
			continue
		}
		if in, ok := m.insights[id]; ok {
			out[id] = in
		}
	}
	return out, nil
}

func (m *memCalls) MissingEmbeddings(ctx context.Context, limit int) ([]models.Call, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Call
	for _, c := range m.calls {
		if c.TranscriptEmbedding == nil && c.RawTranscript != nil && *c.RawTranscript != "" {
			out = append(out, *c)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type mockRecords struct {
	RecordsBetweenFunc func(ctx context.Context, tenantID string, from, to time.Time) ([]models.Record, error)
	CallPointsFunc     func(ctx context.Context, q models.CallQuery) ([]models.CallPoint, error)
}

func (m *mockRecords) SimilarByEmbedding(ctx context.Context, tenantID, excludeCallID string, embedding []float32, maxDistance float64, limit int) ([]models.Record, error) {
	return nil, nil
}

func (m *mockRecords) StatsRecords(ctx context.Context, tenantID string, minConfidence float64) ([]models.Record, error) {
	return nil, nil
}

func (m *mockRecords) ExemplarCandidates(ctx context.Context, tenantID, excludeCallID string, minConfidence float64, limit int) ([]models.Record, error) {
	return nil, nil
}

func (m *mockRecords) RecordsBetween(ctx context.Context, tenantID string, from, to time.Time) ([]models.Record, error) {
	return m.RecordsBetweenFunc(ctx, tenantID, from, to)
}

func (m *mockRecords) CallPoints(ctx context.Context, q models.CallQuery) ([]models.CallPoint, error) {
	return m.CallPointsFunc(ctx, q)
}

type mockEmbedder struct {
	EmbedFunc func(ctx context.Context, text string) ([]float32, error)
	calls     int
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.calls++
	return m.EmbedFunc(ctx, text)
}

type mockExtractor struct {
	ExtractFunc func(ctx context.Context, transcript, contextText string, customInstructions []string) (models.ExtractedInsight, error)
}

func (m *mockExtractor) ExtractInsights(ctx context.Context, transcript, contextText string, customInstructions []string) (models.ExtractedInsight, error) {
	return m.ExtractFunc(ctx, transcript, contextText, customInstructions)
}

type mockRetrieval struct {
	RetrieveFunc func(ctx context.Context, text, tenantID string, topK int, embedding []float32) *retrieval.Context
	excluded     []string
}

func (m *mockRetrieval) Retrieve(ctx context.Context, text, tenantID string, topK int, embedding []float32) *retrieval.Context {
	return m.RetrieveFunc(ctx, text, tenantID, topK, embedding)
}

func (m *mockRetrieval) RetrieveFor(ctx context.Context, callID, text, tenantID string, topK int, embedding []float32) *retrieval.Context {
	m.excluded = append(m.excluded, callID)
	return m.RetrieveFunc(ctx, text, tenantID, topK, embedding)
}

type recordingInvalidator struct {
	tenants []string
}

func (r *recordingInvalidator) InvalidateTenant(ctx context.Context, tenantID string) {
	r.tenants = append(r.tenants, tenantID)
}

type mockQueue struct {
	mu    sync.Mutex
	items []*models.LiveCallState
}

func (q *mockQueue) Enqueue(callID string, st *models.LiveCallState) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, st)
	return true
}

func (q *mockQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

type mockArchive struct {
	saved     []*models.LiveCallState
	completed []string
}

func (a *mockArchive) Save(ctx context.Context, st *models.LiveCallState) error {
	a.saved = append(a.saved, st)
	return nil
}

func (a *mockArchive) GetByCallID(ctx context.Context, callID string) (*mongorepo.LiveCallDoc, error) {
	return nil, utils.ErrNotFound
}

func (a *mockArchive) MarkCompleted(ctx context.Context, callID string, at time.Time) error {
	a.completed = append(a.completed, callID)
	return nil
}

func (a *mockArchive) ListByTenant(ctx context.Context, tenantID string, limit int64) ([]mongorepo.LiveCallDoc, error) {
	return nil, nil
}
