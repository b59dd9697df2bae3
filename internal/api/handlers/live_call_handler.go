package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/voicewise/insights/internal/models"
	"github.com/voicewise/insights/internal/services"
	"github.com/voicewise/insights/internal/workers"
)

// QueueStatser reports live analysis queue counters.
type QueueStatser interface {
	Stats() workers.QueueStats
}

type LiveCallHandler struct {
	live     services.LiveCallService
	insights services.InsightService
	queue    QueueStatser
}

// NewLiveCallHandler builds the webhook and live-state handler. insights may
// be nil, in which case completed calls are not analyzed.
func NewLiveCallHandler(live services.LiveCallService, insights services.InsightService, queue QueueStatser) *LiveCallHandler {
	return &LiveCallHandler{live: live, insights: insights, queue: queue}
}

type TurnRequest struct {
	Speaker string `json:"speaker" binding:"required"` // USER|AGENT
	Text    string `json:"text" binding:"required"`
}

type CompleteRequest struct {
	Transcript         string   `json:"transcript"`
	PhoneNumber        string   `json:"phone_number"`
	DurationSeconds    *int     `json:"duration_seconds"`
	CustomInstructions []string `json:"custom_instructions"`
}

type CompleteResponse struct {
	CallID  string                `json:"call_id"`
	Turns   int                   `json:"turns"`
	Insight *models.Insight       `json:"insight,omitempty"`
	Final   *models.LiveCallState `json:"final_state"`
}

func (h *LiveCallHandler) Turn(c *gin.Context) {
	const op = "LiveCallHandler.Turn"

	tenantID, ok := requireTenantID(c)
	if !ok {
		return
	}
	callID, ok := requireCallID(c, op)
	if !ok {
		return
	}

	var req TurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, op, "invalid request body", err)
		return
	}

	st, err := h.live.HandleTurn(c.Request.Context(), callID, tenantID, models.Speaker(req.Speaker), req.Text)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, st)
}

func (h *LiveCallHandler) Complete(c *gin.Context) {
	const op = "LiveCallHandler.Complete"

	tenantID, ok := requireTenantID(c)
	if !ok {
		return
	}
	callID, ok := requireCallID(c, op)
	if !ok {
		return
	}

	var req CompleteRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, op, "invalid request body", err)
			return
		}
	}

	ctx := c.Request.Context()
	final, err := h.live.Get(ctx, callID)
	if err != nil {
		writeError(c, err)
		return
	}
	if !ownedBy(c, op, final, tenantID) {
		return
	}
	if final, err = h.live.Complete(ctx, callID); err != nil {
		writeError(c, err)
		return
	}

	resp := CompleteResponse{CallID: callID, Turns: len(final.Turns), Final: final}
	if h.insights == nil {
		c.JSON(http.StatusOK, resp)
		return
	}

	text := strings.TrimSpace(req.Transcript)
	if text == "" {
		text = TranscriptFromTurns(final.Turns)
	}
	call := &models.Call{
		CallID:             callID,
		TenantID:           tenantID,
		PhoneNumber:        req.PhoneNumber,
		RawTranscript:      &text,
		DurationSeconds:    req.DurationSeconds,
		CustomInstructions: req.CustomInstructions,
		CreatedAt:          final.StartedAt,
	}
	if err := h.insights.Ingest(ctx, call); err != nil {
		writeError(c, err)
		return
	}
	in, err := h.insights.AnalyzeAndStore(ctx, callID)
	if err != nil {
		writeError(c, err)
		return
	}
	resp.Insight = in
	c.JSON(http.StatusOK, resp)
}

func (h *LiveCallHandler) Get(c *gin.Context) {
	const op = "LiveCallHandler.Get"

	tenantID, ok := requireTenantID(c)
	if !ok {
		return
	}
	callID, ok := requireCallID(c, op)
	if !ok {
		return
	}

	st, err := h.live.Get(c.Request.Context(), callID)
	if err != nil {
		writeError(c, err)
		return
	}
	if !ownedBy(c, op, st, tenantID) {
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *LiveCallHandler) List(c *gin.Context) {
	tenantID, ok := requireTenantID(c)
	if !ok {
		return
	}
	calls := h.live.List(c.Request.Context(), tenantID)
	c.JSON(http.StatusOK, gin.H{"calls": calls, "count": len(calls)})
}

func (h *LiveCallHandler) QueueStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.queue.Stats())
}

// TranscriptFromTurns renders turns as "Agent: ..." / "User: ..." lines.
func TranscriptFromTurns(turns []models.ConversationTurn) string {
	var b strings.Builder
	for _, t := range turns {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		if t.Speaker == models.SpeakerAgent {
			b.WriteString("Agent: ")
		} else {
			b.WriteString("User: ")
		}
		b.WriteString(t.Text)
	}
	return b.String()
}
