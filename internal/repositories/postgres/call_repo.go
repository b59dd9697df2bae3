package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/voicewise/insights/internal/models"
	"github.com/voicewise/insights/internal/utils"
)

type CallRepo interface {
	GetByCallID(ctx context.Context, callID string) (*models.Call, error)
	Create(ctx context.Context, call *models.Call) error
	SetStatus(ctx context.Context, callID, status string) error
	SetEmbedding(ctx context.Context, callID string, embedding []float32) error
	UpsertInsight(ctx context.Context, in *models.Insight) error
	// InsightsByCallIDs returns the insights of the tenant's calls among callIDs.
	InsightsByCallIDs(ctx context.Context, tenantID string, callIDs []string) (map[string]models.Insight, error)
	// MissingEmbeddings lists calls with a transcript but no embedding, oldest first.
	MissingEmbeddings(ctx context.Context, limit int) ([]models.Call, error)
}

type callRepo struct {
	db *gorm.DB
}

func NewCallRepo(db *gorm.DB) CallRepo {
	return &callRepo{db: db}
}

func (r *callRepo) GetByCallID(ctx context.Context, callID string) (*models.Call, error) {
	var row models.Call
	err := r.db.WithContext(ctx).Preload("Insight").Where("call_id = ?", callID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *callRepo) Create(ctx context.Context, call *models.Call) error {
	now := time.Now().UTC()
	if call.CreatedAt.IsZero() {
		call.CreatedAt = now
	}
	call.UpdatedAt = now
	return r.db.WithContext(ctx).Omit("Insight").Create(call).Error
}

func (r *callRepo) SetStatus(ctx context.Context, callID, status string) error {
	res := r.db.WithContext(ctx).Model(&models.Call{}).
		Where("call_id = ?", callID).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrNotFound
	}
	return nil
}

func (r *callRepo) SetEmbedding(ctx context.Context, callID string, embedding []float32) error {
	vec := pgvector.NewVector(embedding)
	res := r.db.WithContext(ctx).Model(&models.Call{}).
		Where("call_id = ?", callID).
		Updates(map[string]any{"transcript_embedding": vec, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrNotFound
	}
	return nil
}

// UpsertInsight writes the insight keyed by call_id, replacing every
// extracted column of an existing row.
func (r *callRepo) UpsertInsight(ctx context.Context, in *models.Insight) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "call_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"topics", "sentiment", "gym_rating", "pain_points", "opportunities",
			"revenue_interest", "revenue_interest_quote", "churn_score",
			"revenue_interest_score", "confidence", "anomaly_score",
			"custom_instruction_answers", "extracted_at",
		}),
	}).Create(in).Error
}

func (r *callRepo) InsightsByCallIDs(ctx context.Context, tenantID string, callIDs []string) (map[string]models.Insight, error) {
	out := make(map[string]models.Insight, len(callIDs))
	if len(callIDs) == 0 {
		return out, nil
	}
	var rows []models.Insight
	err := r.db.WithContext(ctx).
		Select("insights.*").
		Joins("JOIN calls ON calls.call_id = insights.call_id").
		Where("insights.call_id IN ? AND calls.gym_id = ?", callIDs, tenantID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.CallID] = row
	}
	return out, nil
}

func (r *callRepo) MissingEmbeddings(ctx context.Context, limit int) ([]models.Call, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.Call
	err := r.db.WithContext(ctx).
		Where("transcript_embedding IS NULL AND raw_transcript IS NOT NULL AND raw_transcript <> ''").
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
