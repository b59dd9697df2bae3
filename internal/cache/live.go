package cache

import (
	"context"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/voicewise/insights/internal/models"
)

const livePrefix = string(PoolLive) + ":call:"

func liveKey(callID string) string { return livePrefix + callID }

// GetLive returns the live state of a call. A backend failure reads as absent.
func (l *Layer) GetLive(ctx context.Context, callID string) (*models.LiveCallState, bool) {
	b, err := l.backend(PoolLive)
	if err != nil {
		return nil, false
	}
	var st models.LiveCallState
	hit, err := b.GetJSON(ctx, liveKey(callID), &st)
	if err != nil {
		l.log.WithFields(logrus.Fields{"pool": PoolLive, "call_id": callID}).WithError(err).Warn("live state read failed")
		return nil, false
	}
	if !hit {
		return nil, false
	}
	return &st, true
}

// SetLive stores the state and restarts its TTL.
func (l *Layer) SetLive(ctx context.Context, st *models.LiveCallState) error {
	b, err := l.backend(PoolLive)
	if err != nil {
		return err
	}
	return b.SetJSON(ctx, liveKey(st.CallID), st, l.TTL(PoolLive))
}

// UpdateLive applies fn to the current state (nil when there is none) and
// stores what fn returns. Returning nil leaves the cache untouched. Updates
// are serialized within the process so turn ingestion and the analysis
// worker never overwrite each other.
func (l *Layer) UpdateLive(ctx context.Context, callID string, fn func(cur *models.LiveCallState) (*models.LiveCallState, error)) (*models.LiveCallState, error) {
	l.liveMu.Lock()
	defer l.liveMu.Unlock()

	cur, _ := l.GetLive(ctx, callID)
	next, err := fn(cur)
	if err != nil || next == nil {
		return nil, err
	}
	next.Revision++
	if err := l.SetLive(ctx, next); err != nil {
		return nil, err
	}
	return next.Clone(), nil
}

func (l *Layer) DeleteLive(ctx context.Context, callID string) {
	l.liveMu.Lock()
	defer l.liveMu.Unlock()

	b, err := l.backend(PoolLive)
	if err != nil {
		return
	}
	if err := b.Del(ctx, liveKey(callID)); err != nil {
		l.log.WithFields(logrus.Fields{"pool": PoolLive, "call_id": callID}).WithError(err).Warn("live state delete failed")
	}
}

// ListLive returns every live call, oldest first.
func (l *Layer) ListLive(ctx context.Context) []*models.LiveCallState {
	b, err := l.backend(PoolLive)
	if err != nil {
		return nil
	}
	keys, err := b.Keys(ctx, livePrefix)
	if err != nil {
		l.log.WithField("pool", PoolLive).WithError(err).Warn("live state scan failed")
		return nil
	}
	out := make([]*models.LiveCallState, 0, len(keys))
	for _, k := range keys {
		if st, ok := l.GetLive(ctx, strings.TrimPrefix(k, livePrefix)); ok {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}
