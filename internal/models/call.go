package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// EmbeddingDim is the width of transcript embeddings (all-MiniLM-L6-v2).
const EmbeddingDim = 384

type Call struct {
	ID                  uint             `gorm:"column:id;primaryKey" json:"-"`
	CallID              string           `gorm:"column:call_id;type:varchar(255);uniqueIndex" json:"call_id"`
	TenantID            string           `gorm:"column:gym_id;type:varchar(255);index" json:"tenant_id"`
	PhoneNumber         string           `gorm:"column:phone_number;type:varchar(20);index" json:"phone_number"`
	RawTranscript       *string          `gorm:"column:raw_transcript;type:text" json:"raw_transcript,omitempty"`
	TranscriptEmbedding *pgvector.Vector `gorm:"column:transcript_embedding;type:vector(384)" json:"-"`
	DurationSeconds     *int             `gorm:"column:duration_seconds" json:"duration_seconds,omitempty"`
	Status              string           `gorm:"column:status;type:varchar(50)" json:"status"`
	CustomInstructions  pq.StringArray   `gorm:"column:custom_instructions;type:text[]" json:"custom_instructions,omitempty"`
	CreatedAt           time.Time        `gorm:"column:created_at;type:timestamptz;index" json:"created_at"`
	UpdatedAt           time.Time        `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`

	Insight *Insight `gorm:"foreignKey:CallID;references:CallID" json:"insight,omitempty"`
}

func (Call) TableName() string { return "calls" }

// Embedding returns the stored transcript embedding, or nil when absent.
func (c *Call) Embedding() []float32 {
	if c == nil || c.TranscriptEmbedding == nil {
		return nil
	}
	v := c.TranscriptEmbedding.Slice()
	if len(v) == 0 {
		return nil
	}
	return v
}

// Record flattens the call and its insight into the read model used by
// retrieval and scoring.
func (c *Call) Record() Record {
	r := Record{
		CallID:    c.CallID,
		TenantID:  c.TenantID,
		Embedding: c.Embedding(),
		CreatedAt: c.CreatedAt,
	}
	if c.Insight != nil {
		c.Insight.fill(&r)
	}
	return r
}
