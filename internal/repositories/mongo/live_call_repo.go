package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/voicewise/insights/internal/models"
	"github.com/voicewise/insights/internal/utils"
)

// LiveCallCollection holds archived live-call states; a TTL index on
// expires_at removes them.
const LiveCallCollection = "live_calls"

// DefaultArchiveTTL is how long an archived state is kept.
const DefaultArchiveTTL = 7 * 24 * time.Hour

type LiveCallRepository interface {
	// Save upserts the state by call_id and pushes expires_at forward.
	Save(ctx context.Context, st *models.LiveCallState) error
	GetByCallID(ctx context.Context, callID string) (*LiveCallDoc, error)
	MarkCompleted(ctx context.Context, callID string, at time.Time) error
	ListByTenant(ctx context.Context, tenantID string, limit int64) ([]LiveCallDoc, error)
}

// LiveCallDoc is the archived form of a live-call state.
type LiveCallDoc struct {
	models.LiveCallState `bson:",inline"`
	CompletedAt          *time.Time `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
	ExpiresAt            time.Time  `bson:"expires_at" json:"-"`
}

type liveCallRepo struct {
	col *mongo.Collection
	ttl time.Duration
}

func NewLiveCallRepo(db *mongo.Database, ttl time.Duration) LiveCallRepository {
	if ttl <= 0 {
		ttl = DefaultArchiveTTL
	}
	return &liveCallRepo{col: db.Collection(LiveCallCollection), ttl: ttl}
}

func (r *liveCallRepo) Save(ctx context.Context, st *models.LiveCallState) error {
	if st == nil || st.CallID == "" {
		return utils.E(utils.CodeInvalidArgument, "liveCallRepo.Save", "call_id is required", nil)
	}
	now := time.Now().UTC()
	_, err := r.col.UpdateOne(ctx,
		bson.M{"call_id": st.CallID},
		bson.M{"$set": bson.M{
			"tenant_id":              st.TenantID,
			"turns":                  st.Turns,
			"status":                 st.Status,
			"sentiment":              st.Sentiment,
			"churn_score":            st.ChurnScore,
			"revenue_interest_score": st.RevenueScore,
			"confidence":             st.Confidence,
			"revision":               st.Revision,
			"started_at":             st.StartedAt,
			"updated_at":             st.UpdatedAt,
			"expires_at":             now.Add(r.ttl),
		}},
		options.Update().SetUpsert(true),
	)
	return err
}

func (r *liveCallRepo) GetByCallID(ctx context.Context, callID string) (*LiveCallDoc, error) {
	var doc LiveCallDoc
	err := r.col.FindOne(ctx, bson.M{"call_id": callID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *liveCallRepo) MarkCompleted(ctx context.Context, callID string, at time.Time) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"call_id": callID},
		bson.M{"$set": bson.M{"completed_at": at.UTC()}},
	)
	return err
}

func (r *liveCallRepo) ListByTenant(ctx context.Context, tenantID string, limit int64) ([]LiveCallDoc, error) {
	if limit <= 0 {
		limit = 50
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "started_at", Value: -1}}).
		SetLimit(limit)

	cur, err := r.col.Find(ctx, bson.M{"tenant_id": tenantID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []LiveCallDoc
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
