package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/voicewise/insights/internal/anomaly"
	"github.com/voicewise/insights/internal/models"
	"github.com/voicewise/insights/internal/providers/llm"
	"github.com/voicewise/insights/internal/repositories/postgres"
	"github.com/voicewise/insights/internal/retrieval"
	"github.com/voicewise/insights/internal/utils"
)

const (
	CallStatusActive    = "active"
	CallStatusCompleted = "completed"
	CallStatusAnalyzed  = "analyzed"
	CallStatusFailed    = "failed"
)

// TenantInvalidator drops cached reads for a tenant after a write.
type TenantInvalidator interface {
	InvalidateTenant(ctx context.Context, tenantID string)
}

type InsightService interface {
	// Ingest stores a completed call.
	Ingest(ctx context.Context, call *models.Call) error
	// AnalyzeAndStore extracts, scores and stores the insight of a stored
	// call. Only an extractor failure is returned; retrieval and scoring
	// problems degrade the result instead.
	AnalyzeAndStore(ctx context.Context, callID string) (*models.Insight, error)
}

type InsightDeps struct {
	Calls     postgres.CallRepo
	Retrieval retrieval.Service
	Embedder  retrieval.Embedder
	Extractor llm.Extractor
	Scorer    anomaly.Scorer
	Cache     TenantInvalidator
	Logger    *logrus.Logger
	TopK      int
}

type insightService struct {
	InsightDeps
}

func NewInsightService(d InsightDeps) InsightService {
	if d.Logger == nil {
		d.Logger = logrus.StandardLogger()
	}
	if d.TopK <= 0 {
		d.TopK = 5
	}
	return &insightService{InsightDeps: d}
}

func (s *insightService) Ingest(ctx context.Context, call *models.Call) error {
	const op = "InsightService.Ingest"

	if call == nil || call.CallID == "" || call.TenantID == "" {
		return utils.E(utils.CodeInvalidArgument, op, "call_id and tenant_id are required", nil)
	}
	if call.Status == "" {
		call.Status = CallStatusCompleted
	}
	if err := s.Calls.Create(ctx, call); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to store call", err)
	}
	return nil
}

func (s *insightService) AnalyzeAndStore(ctx context.Context, callID string) (*models.Insight, error) {
	const op = "InsightService.AnalyzeAndStore"

	if callID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "call_id is required", nil)
	}
	call, err := s.Calls.GetByCallID(ctx, callID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "call not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load call", err)
	}
	transcript := ""
	if call.RawTranscript != nil {
		transcript = strings.TrimSpace(*call.RawTranscript)
	}
	if transcript == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "call has no transcript", nil)
	}

	fields := logrus.Fields{"call_id": callID, "tenant_id": call.TenantID}
	embedding := s.embedding(ctx, call, transcript, fields)
	rc := s.Retrieval.RetrieveFor(ctx, callID, transcript, call.TenantID, s.TopK, embedding)

	x, err := s.Extractor.ExtractInsights(ctx, transcript, rc.ToPromptText(), []string(call.CustomInstructions))
	if err != nil {
		_ = s.Calls.SetStatus(ctx, callID, CallStatusFailed)
		return nil, utils.E(utils.CodeOf(err), op, "insight extraction failed", err)
	}

	breakdown := s.Scorer.Explain(x, rc, call.TenantID)
	s.Logger.WithFields(fields).WithFields(logrus.Fields{
		"anomaly_score": breakdown.Score,
		"factors":       breakdown.Factors,
	}).Debug("anomaly score computed")

	in := &models.Insight{CallID: callID}
	in.Apply(x, breakdown.Score, customAnswers(x.CustomAnswers))
	if err := s.Calls.UpsertInsight(ctx, in); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to store insight", err)
	}
	_ = s.Calls.SetStatus(ctx, callID, CallStatusAnalyzed)

	s.Cache.InvalidateTenant(ctx, call.TenantID)
	s.Logger.WithFields(fields).WithField("similar", len(rc.Similar)).Info("insight stored")
	return in, nil
}

// embedding returns the stored vector, or embeds and persists the
// transcript. Failures leave the call without a vector.
func (s *insightService) embedding(ctx context.Context, call *models.Call, transcript string, fields logrus.Fields) []float32 {
	if v := call.Embedding(); v != nil {
		return v
	}
	if s.Embedder == nil {
		return nil
	}
	v, err := s.Embedder.Embed(ctx, transcript)
	if err != nil {
		s.Logger.WithFields(fields).WithError(err).Warn("transcript embedding failed")
		return nil
	}
	if err := s.Calls.SetEmbedding(ctx, call.CallID, v); err != nil {
		s.Logger.WithFields(fields).WithError(err).Warn("failed to store transcript embedding")
	}
	return v
}

func customAnswers(m map[string]string) datatypes.JSON {
	if len(m) == 0 {
		return nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}
