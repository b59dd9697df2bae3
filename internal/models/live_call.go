package models

import "time"

type Speaker string

const (
	SpeakerAgent Speaker = "AGENT"
	SpeakerUser  Speaker = "USER"
)

type LiveStatus string

const (
	LiveStatusAwaitingAnalysis LiveStatus = "awaiting_analysis"
	LiveStatusAnalyzed         LiveStatus = "analyzed"
)

type ConversationTurn struct {
	Speaker Speaker `json:"speaker" bson:"speaker"`
	Text    string  `json:"text" bson:"text"`
}

// LiveCallState is the session state of a call in progress.
type LiveCallState struct {
	CallID       string             `json:"call_id" bson:"call_id"`
	TenantID     string             `json:"tenant_id" bson:"tenant_id"`
	Turns        []ConversationTurn `json:"turns" bson:"turns"`
	Status       LiveStatus         `json:"status" bson:"status"`
	Sentiment    Sentiment          `json:"sentiment,omitempty" bson:"sentiment,omitempty"`
	ChurnScore   *float64           `json:"churn_score,omitempty" bson:"churn_score,omitempty"`
	RevenueScore *float64           `json:"revenue_interest_score,omitempty" bson:"revenue_interest_score,omitempty"`
	Confidence   *float64           `json:"confidence,omitempty" bson:"confidence,omitempty"`
	Revision     int64              `json:"revision" bson:"revision"`
	StartedAt    time.Time          `json:"started_at" bson:"started_at"`
	UpdatedAt    time.Time          `json:"updated_at" bson:"updated_at"`
}

// Clone returns a deep copy safe to hand to another goroutine.
func (s *LiveCallState) Clone() *LiveCallState {
	if s == nil {
		return nil
	}
	out := *s
	out.Turns = append([]ConversationTurn(nil), s.Turns...)
	out.ChurnScore = cloneFloat(s.ChurnScore)
	out.RevenueScore = cloneFloat(s.RevenueScore)
	out.Confidence = cloneFloat(s.Confidence)
	return &out
}

// UserText joins the USER turns, one per line.
func (s *LiveCallState) UserText() string {
	var out []byte
	for _, t := range s.Turns {
		if t.Speaker != SpeakerUser || t.Text == "" {
			continue
		}
		if len(out) > 0 {
			out = append(out, '\n')
		}
		out = append(out, t.Text...)
	}
	return string(out)
}

// LiveEstimate is one incremental analysis result.
type LiveEstimate struct {
	Sentiment    Sentiment `json:"sentiment"`
	ChurnScore   *float64  `json:"churn_score,omitempty"`
	RevenueScore *float64  `json:"revenue_interest_score,omitempty"`
	Confidence   *float64  `json:"confidence,omitempty"`
}

// ApplyEstimate overwrites the scoring fields only; turns are untouched.
func (s *LiveCallState) ApplyEstimate(e LiveEstimate) {
	s.Sentiment = e.Sentiment
	s.ChurnScore = cloneFloat(e.ChurnScore)
	s.RevenueScore = cloneFloat(e.RevenueScore)
	s.Confidence = cloneFloat(e.Confidence)
	s.Status = LiveStatusAnalyzed
	s.UpdatedAt = time.Now().UTC()
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
