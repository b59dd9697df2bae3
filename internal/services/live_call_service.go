package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/voicewise/insights/internal/models"
	mongorepo "github.com/voicewise/insights/internal/repositories/mongo"
	"github.com/voicewise/insights/internal/utils"
)

const (
	// continuationPrefix is how many leading characters of two turns are
	// compared when deciding whether the second one continues the first.
	continuationPrefix    = 50
	continuationThreshold = 0.7
)

// LiveStore is the live-call session store.
type LiveStore interface {
	GetLive(ctx context.Context, callID string) (*models.LiveCallState, bool)
	UpdateLive(ctx context.Context, callID string, fn func(cur *models.LiveCallState) (*models.LiveCallState, error)) (*models.LiveCallState, error)
	DeleteLive(ctx context.Context, callID string)
	ListLive(ctx context.Context) []*models.LiveCallState
}

// AnalysisQueue accepts states for incremental re-scoring without blocking.
type AnalysisQueue interface {
	Enqueue(callID string, st *models.LiveCallState) bool
}

type LiveCallService interface {
	HandleTurn(ctx context.Context, callID, tenantID string, speaker models.Speaker, text string) (*models.LiveCallState, error)
	Get(ctx context.Context, callID string) (*models.LiveCallState, error)
	// List returns calls in progress, oldest first. An empty tenantID lists all.
	List(ctx context.Context, tenantID string) []*models.LiveCallState
	// Complete removes the live state and returns its final snapshot. The
	// worker treats the missing state as cancellation.
	Complete(ctx context.Context, callID string) (*models.LiveCallState, error)
}

type liveCallService struct {
	store   LiveStore
	queue   AnalysisQueue
	archive mongorepo.LiveCallRepository
	log     *logrus.Logger
	now     func() time.Time
}

// NewLiveCallService wires the live pipeline. archive may be nil.
func NewLiveCallService(store LiveStore, queue AnalysisQueue, archive mongorepo.LiveCallRepository, log *logrus.Logger) LiveCallService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &liveCallService{store: store, queue: queue, archive: archive, log: log, now: time.Now}
}

func (s *liveCallService) HandleTurn(ctx context.Context, callID, tenantID string, speaker models.Speaker, text string) (*models.LiveCallState, error) {
	const op = "LiveCallService.HandleTurn"

	text = strings.TrimSpace(text)
	speaker = models.Speaker(strings.ToUpper(strings.TrimSpace(string(speaker))))
	if callID == "" || text == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "call_id and text are required", nil)
	}
	if speaker != models.SpeakerUser && speaker != models.SpeakerAgent {
		return nil, utils.E(utils.CodeInvalidArgument, op, "speaker must be USER or AGENT", nil)
	}

	st, err := s.store.UpdateLive(ctx, callID, func(cur *models.LiveCallState) (*models.LiveCallState, error) {
		now := s.now().UTC()
		if cur == nil {
			cur = &models.LiveCallState{CallID: callID, TenantID: tenantID, StartedAt: now}
		}
		if cur.TenantID == "" {
			cur.TenantID = tenantID
		}
		if cur.TenantID != tenantID {
			// another tenant's call is reported as missing
			return nil, utils.E(utils.CodeNotFound, op, "live call not found", utils.ErrNotFound)
		}
		cur.Turns = MergeTurn(cur.Turns, models.ConversationTurn{Speaker: speaker, Text: text})
		cur.Status = models.LiveStatusAwaitingAnalysis
		cur.UpdatedAt = now
		return cur, nil
	})
	if utils.IsCode(err, utils.CodeNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to store live state", err)
	}

	s.queue.Enqueue(callID, st)
	s.archiveState(ctx, st)

	s.log.WithFields(logrus.Fields{
		"call_id":   callID,
		"tenant_id": st.TenantID,
		"speaker":   speaker,
		"turns":     len(st.Turns),
	}).Debug("live turn stored")
	return st, nil
}

func (s *liveCallService) Get(ctx context.Context, callID string) (*models.LiveCallState, error) {
	const op = "LiveCallService.Get"

	if callID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "call_id is required", nil)
	}
	st, ok := s.store.GetLive(ctx, callID)
	if !ok {
		return nil, utils.E(utils.CodeNotFound, op, "live call not found", utils.ErrNotFound)
	}
	return st, nil
}

func (s *liveCallService) List(ctx context.Context, tenantID string) []*models.LiveCallState {
	all := s.store.ListLive(ctx)
	if tenantID == "" {
		return all
	}
	out := make([]*models.LiveCallState, 0, len(all))
	for _, st := range all {
		if st.TenantID == tenantID {
			out = append(out, st)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

func (s *liveCallService) Complete(ctx context.Context, callID string) (*models.LiveCallState, error) {
	const op = "LiveCallService.Complete"

	st, err := s.Get(ctx, callID)
	if err != nil {
		return nil, err
	}
	s.store.DeleteLive(ctx, callID)

	if s.archive != nil {
		s.archiveState(ctx, st)
		if err := s.archive.MarkCompleted(ctx, callID, s.now()); err != nil {
			s.log.WithFields(logrus.Fields{"op": op, "call_id": callID}).WithError(err).Warn("live archive completion failed")
		}
	}
	s.log.WithFields(logrus.Fields{"call_id": callID, "tenant_id": st.TenantID, "turns": len(st.Turns)}).Info("live call completed")
	return st, nil
}

func (s *liveCallService) archiveState(ctx context.Context, st *models.LiveCallState) {
	if s.archive == nil || st == nil {
		return
	}
	if err := s.archive.Save(ctx, st); err != nil {
		s.log.WithField("call_id", st.CallID).WithError(err).Warn("live archive save failed")
	}
}

// MergeTurn appends next to turns, or replaces the last turn when next is a
// continuation of it: same speaker and a similar leading text, as produced by
// streaming partial transcriptions.
func MergeTurn(turns []models.ConversationTurn, next models.ConversationTurn) []models.ConversationTurn {
	if n := len(turns); n > 0 {
		last := turns[n-1]
		if last.Speaker == next.Speaker && PrefixSimilarity(last.Text, next.Text) >= continuationThreshold {
			out := append([]models.ConversationTurn(nil), turns...)
			out[n-1] = next
			return out
		}
	}
	return append(append([]models.ConversationTurn(nil), turns...), next)
}

// PrefixSimilarity is the Jaccard similarity of the character sets of the
// first continuationPrefix characters of a and b, case-insensitive.
func PrefixSimilarity(a, b string) float64 {
	sa, sb := charSet(a), charSet(b)
	if len(sa) == 0 && len(sb) == 0 {
		return 1
	}
	inter := 0
	for r := range sa {
		if _, ok := sb[r]; ok {
			inter++
		}
	}
	union := len(sa) + len(sb) - inter
	return float64(inter) / float64(union)
}

func charSet(s string) map[rune]struct{} {
	set := make(map[rune]struct{})
	i := 0
	for _, r := range strings.ToLower(s) {
		if i == continuationPrefix {
			break
		}
		set[r] = struct{}{}
		i++
	}
	return set
}
