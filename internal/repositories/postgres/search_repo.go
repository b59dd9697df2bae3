package postgres

import (
	"context"
	"strings"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/voicewise/insights/internal/models"
)

// SearchRepo backs call search. Every method returns calls with their
// insight preloaded, newest first unless noted.
type SearchRepo interface {
	// ByPhone matches calls whose phone number contains digits.
	ByPhone(ctx context.Context, tenantID, digits string, page models.Page) ([]models.Call, error)
	ByStatus(ctx context.Context, tenantID, status string, page models.Page) ([]models.Call, error)
	BySentiment(ctx context.Context, tenantID string, sentiment models.Sentiment, page models.Page) ([]models.Call, error)
	// Semantic returns calls within maxDistance of embedding, nearest first.
	Semantic(ctx context.Context, tenantID string, embedding []float32, maxDistance float64, page models.Page) ([]models.Call, error)
	// TranscriptContains is a case-insensitive substring match on the transcript.
	TranscriptContains(ctx context.Context, tenantID, text string, page models.Page) ([]models.Call, error)
}

type searchRepo struct {
	db *gorm.DB
}

func NewSearchRepo(db *gorm.DB) SearchRepo {
	return &searchRepo{db: db}
}

func (r *searchRepo) base(ctx context.Context, tenantID string) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.Call{}).Preload("Insight")
	if tenantID != "" {
		q = q.Where("calls.gym_id = ?", tenantID)
	}
	return q
}

func paged(q *gorm.DB, p models.Page) *gorm.DB {
	if p.Skip > 0 {
		q = q.Offset(p.Skip)
	}
	if p.Limit > 0 {
		q = q.Limit(p.Limit)
	}
	return q
}

func find(q *gorm.DB) ([]models.Call, error) {
	var calls []models.Call
	if err := q.Find(&calls).Error; err != nil {
		return nil, err
	}
	return calls, nil
}

func (r *searchRepo) ByPhone(ctx context.Context, tenantID, digits string, page models.Page) ([]models.Call, error) {
	q := r.base(ctx, tenantID).
		Where("calls.phone_number ILIKE ?", containsPattern(digits)).
		Order("calls.created_at DESC")
	return find(paged(q, page))
}

func (r *searchRepo) ByStatus(ctx context.Context, tenantID, status string, page models.Page) ([]models.Call, error) {
	q := r.base(ctx, tenantID).
		Where("calls.status = ?", status).
		Order("calls.created_at DESC")
	return find(paged(q, page))
}

func (r *searchRepo) BySentiment(ctx context.Context, tenantID string, sentiment models.Sentiment, page models.Page) ([]models.Call, error) {
	q := r.base(ctx, tenantID).
		Select("calls.*").
		Joins("JOIN insights ON insights.call_id = calls.call_id").
		Where("LOWER(insights.sentiment) = ?", string(sentiment)).
		Order("calls.created_at DESC")
	return find(paged(q, page))
}

func (r *searchRepo) Semantic(ctx context.Context, tenantID string, embedding []float32, maxDistance float64, page models.Page) ([]models.Call, error) {
	vec := pgvector.NewVector(embedding)
	q := r.base(ctx, tenantID).
		Where("calls.transcript_embedding IS NOT NULL").
		Where("calls.transcript_embedding <=> ? < ?", vec, maxDistance).
		Order(clause.OrderBy{Expression: clause.Expr{SQL: "calls.transcript_embedding <=> ?", Vars: []any{vec}}})
	return find(paged(q, page))
}

func (r *searchRepo) TranscriptContains(ctx context.Context, tenantID, text string, page models.Page) ([]models.Call, error) {
	q := r.base(ctx, tenantID).
		Where("calls.raw_transcript IS NOT NULL").
		Where("calls.raw_transcript ILIKE ?", containsPattern(text)).
		Order("calls.created_at DESC")
	return find(paged(q, page))
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern is an ILIKE pattern matching s literally anywhere.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
