package postgres

import (
	"context"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/voicewise/insights/internal/models"
)

// RecordRepo is the read side used by retrieval and the dashboard.
type RecordRepo interface {
	SimilarByEmbedding(ctx context.Context, tenantID, excludeCallID string, embedding []float32, maxDistance float64, limit int) ([]models.Record, error)
	StatsRecords(ctx context.Context, tenantID string, minConfidence float64) ([]models.Record, error)
	ExemplarCandidates(ctx context.Context, tenantID, excludeCallID string, minConfidence float64, limit int) ([]models.Record, error)

	// RecordsBetween returns tenant records created in [from, to], oldest first.
	RecordsBetween(ctx context.Context, tenantID string, from, to time.Time) ([]models.Record, error)
	CallPoints(ctx context.Context, q models.CallQuery) ([]models.CallPoint, error)
}

type recordRepo struct {
	db *gorm.DB
}

func NewRecordRepo(db *gorm.DB) RecordRepo {
	return &recordRepo{db: db}
}

func (r *recordRepo) tenant(ctx context.Context, tenantID string) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.Call{})
	if tenantID != "" {
		q = q.Where("calls.gym_id = ?", tenantID)
	}
	return q
}

func excluding(q *gorm.DB, callID string) *gorm.DB {
	if callID == "" {
		return q
	}
	return q.Where("calls.call_id <> ?", callID)
}

func records(calls []models.Call) []models.Record {
	out := make([]models.Record, 0, len(calls))
	for i := range calls {
		out = append(out, calls[i].Record())
	}
	return out
}

func (r *recordRepo) SimilarByEmbedding(ctx context.Context, tenantID, excludeCallID string, embedding []float32, maxDistance float64, limit int) ([]models.Record, error) {
	vec := pgvector.NewVector(embedding)
	q := excluding(r.tenant(ctx, tenantID), excludeCallID).
		Preload("Insight").
		Where("calls.transcript_embedding IS NOT NULL").
		Where("calls.transcript_embedding <=> ? < ?", vec, maxDistance).
		Order(clause.OrderBy{Expression: clause.Expr{SQL: "calls.transcript_embedding <=> ?", Vars: []any{vec}}})
	if limit > 0 {
		q = q.Limit(limit)
	}
	var calls []models.Call
	if err := q.Find(&calls).Error; err != nil {
		return nil, err
	}
	return records(calls), nil
}

func (r *recordRepo) StatsRecords(ctx context.Context, tenantID string, minConfidence float64) ([]models.Record, error) {
	var calls []models.Call
	err := r.tenant(ctx, tenantID).
		Preload("Insight").
		Select("calls.*").
		Joins("JOIN insights ON insights.call_id = calls.call_id").
		Where("insights.confidence >= ?", minConfidence).
		Find(&calls).Error
	if err != nil {
		return nil, err
	}
	return records(calls), nil
}

func (r *recordRepo) ExemplarCandidates(ctx context.Context, tenantID, excludeCallID string, minConfidence float64, limit int) ([]models.Record, error) {
	q := excluding(r.tenant(ctx, tenantID), excludeCallID).
		Preload("Insight").
		Select("calls.*").
		Joins("JOIN insights ON insights.call_id = calls.call_id").
		Where("calls.transcript_embedding IS NOT NULL").
		Where("insights.confidence >= ?", minConfidence).
		Order("insights.confidence DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var calls []models.Call
	if err := q.Find(&calls).Error; err != nil {
		return nil, err
	}
	return records(calls), nil
}

func (r *recordRepo) RecordsBetween(ctx context.Context, tenantID string, from, to time.Time) ([]models.Record, error) {
	var calls []models.Call
	err := r.tenant(ctx, tenantID).
		Preload("Insight").
		Where("calls.created_at BETWEEN ? AND ?", from.UTC(), to.UTC()).
		Order("calls.created_at ASC").
		Find(&calls).Error
	if err != nil {
		return nil, err
	}
	return records(calls), nil
}

var callOrders = map[string]string{
	"created_at":    "calls.created_at DESC",
	"churn_score":   "insights.churn_score DESC NULLS LAST",
	"revenue_score": "insights.revenue_interest_score DESC NULLS LAST",
	"anomaly_score": "insights.anomaly_score DESC NULLS LAST",
	"rating":        "insights.gym_rating ASC NULLS LAST",
}

func (r *recordRepo) CallPoints(ctx context.Context, q models.CallQuery) ([]models.CallPoint, error) {
	db := r.tenant(ctx, q.TenantID).
		Preload("Insight").
		Select("calls.*").
		Joins("LEFT JOIN insights ON insights.call_id = calls.call_id")
	if q.Status != "" {
		db = db.Where("calls.status = ?", q.Status)
	}
	if q.Sentiment != "" {
		db = db.Where("insights.sentiment = ?", string(models.ParseSentiment(q.Sentiment)))
	}
	if q.PainPoint != "" {
		db = db.Where("? = ANY(insights.pain_points)", q.PainPoint)
	}
	if q.Opportunity != "" {
		db = db.Where("? = ANY(insights.opportunities)", q.Opportunity)
	}
	if q.RevenueInterest != nil {
		db = db.Where("insights.revenue_interest = ?", *q.RevenueInterest)
	}
	if q.StartDate != nil {
		db = db.Where("calls.created_at >= ?", q.StartDate.UTC())
	}
	if q.EndDate != nil {
		db = db.Where("calls.created_at < ?", q.EndDate.UTC().AddDate(0, 0, 1))
	}
	if q.ChurnMinScore != nil {
		db = db.Where("insights.churn_score >= ?", *q.ChurnMinScore)
	}
	if q.RevenueMinScore != nil {
		db = db.Where("insights.revenue_interest_score >= ?", *q.RevenueMinScore)
	}
	order, ok := callOrders[q.OrderBy]
	if !ok {
		order = callOrders["created_at"]
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	var calls []models.Call
	if err := db.Order(order).Limit(limit).Find(&calls).Error; err != nil {
		return nil, err
	}
	out := make([]models.CallPoint, 0, len(calls))
	for i := range calls {
		out = append(out, models.NewCallPoint(&calls[i]))
	}
	return out, nil
}
