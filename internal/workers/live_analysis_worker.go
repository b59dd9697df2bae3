package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/voicewise/insights/internal/metrics"
	"github.com/voicewise/insights/internal/models"
)

// LiveAnalyzer produces an incremental estimate from the caller's speech and
// the previous estimate.
type LiveAnalyzer interface {
	AnalyzeLive(ctx context.Context, userText string, prev models.LiveEstimate) (models.LiveEstimate, error)
}

// LiveStateStore is the live-call session store.
type LiveStateStore interface {
	GetLive(ctx context.Context, callID string) (*models.LiveCallState, bool)
	UpdateLive(ctx context.Context, callID string, fn func(cur *models.LiveCallState) (*models.LiveCallState, error)) (*models.LiveCallState, error)
}

type liveItem struct {
	callID   string
	snapshot *models.LiveCallState
	queuedAt time.Time
}

type QueueStats struct {
	Length    int    `json:"length"`
	Capacity  int    `json:"capacity"`
	Running   bool   `json:"running"`
	Processed uint64 `json:"processed"`
	Failed    uint64 `json:"failed"`
	Skipped   uint64 `json:"skipped"`
	Dropped   uint64 `json:"dropped"`
}

// LiveAnalysisQueue re-scores in-progress calls with a single consumer, so
// updates are applied in the order turns arrived across all calls.
type LiveAnalysisQueue struct {
	State    LiveStateStore
	Analyzer LiveAnalyzer
	Logger   *logrus.Logger
	Capacity int

	// OnAnalyzed, when set, receives every state the worker writes.
	OnAnalyzed func(ctx context.Context, st *models.LiveCallState)

	mu      sync.RWMutex
	items   chan liveItem
	started bool
	stopped bool
	done    chan struct{}

	processed uint64
	failed    uint64
	skipped   uint64
	dropped   uint64
}

var errCallCompleted = errors.New("call completed during analysis")

func (q *LiveAnalysisQueue) Start(ctx context.Context) error {
	if q.State == nil || q.Analyzer == nil {
		return errors.New("LiveAnalysisQueue missing dependency: State/Analyzer must be set")
	}
	if q.Capacity <= 0 {
		q.Capacity = 1024
	}
	if q.Logger == nil {
		q.Logger = logrus.New()
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return nil
	}
	q.items = make(chan liveItem, q.Capacity)
	q.done = make(chan struct{})
	q.started = true
	go q.run(ctx)
	return nil
}

// Enqueue hands a state snapshot to the worker without blocking. It returns
// false when the queue is not running or full; the request is dropped.
func (q *LiveAnalysisQueue) Enqueue(callID string, st *models.LiveCallState) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	log := q.logger().WithField("call_id", callID)
	if st == nil {
		return false
	}
	if !q.started || q.stopped {
		atomic.AddUint64(&q.dropped, 1)
		metrics.LiveQueueItems.WithLabelValues("dropped").Inc()
		log.Warn("live analysis queue not running, dropping request")
		return false
	}
	select {
	case q.items <- liveItem{callID: callID, snapshot: st.Clone(), queuedAt: time.Now()}:
		metrics.LiveQueueDepth.Set(float64(len(q.items)))
		return true
	default:
		atomic.AddUint64(&q.dropped, 1)
		metrics.LiveQueueItems.WithLabelValues("dropped").Inc()
		log.WithField("capacity", cap(q.items)).Warn("live analysis queue full, dropping request")
		return false
	}
}

// Stop stops accepting requests and waits for queued ones to drain, or for
// ctx to end.
func (q *LiveAnalysisQueue) Stop(ctx context.Context) {
	q.mu.Lock()
	if !q.started || q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	close(q.items)
	done := q.done
	q.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
	}
}

func (q *LiveAnalysisQueue) Stats() QueueStats {
	q.mu.RLock()
	defer q.mu.RUnlock()
	s := QueueStats{
		Running:   q.started && !q.stopped,
		Processed: atomic.LoadUint64(&q.processed),
		Failed:    atomic.LoadUint64(&q.failed),
		Skipped:   atomic.LoadUint64(&q.skipped),
		Dropped:   atomic.LoadUint64(&q.dropped),
	}
	if q.items != nil {
		s.Length = len(q.items)
		s.Capacity = cap(q.items)
	}
	return s
}

func (q *LiveAnalysisQueue) logger() *logrus.Logger {
	if q.Logger == nil {
		return logrus.StandardLogger()
	}
	return q.Logger
}

func (q *LiveAnalysisQueue) run(ctx context.Context) {
	defer close(q.done)
	for {
		select {
		case <-ctx.Done():
			return
		case it, ok := <-q.items:
			if !ok {
				return
			}
			metrics.LiveQueueDepth.Set(float64(len(q.items)))
			q.handle(ctx, it)
		}
	}
}

func (q *LiveAnalysisQueue) handle(ctx context.Context, it liveItem) {
	start := time.Now()
	log := q.Logger.WithFields(logrus.Fields{
		"call_id":  it.callID,
		"revision": it.snapshot.Revision,
		"wait_ms":  start.Sub(it.queuedAt).Milliseconds(),
	})
	defer func() {
		if r := recover(); r != nil {
			atomic.AddUint64(&q.failed, 1)
			metrics.LiveQueueItems.WithLabelValues("failed").Inc()
			log.WithField("panic", fmt.Sprint(r)).Error("live analysis panic recovered")
		}
	}()

	outcome, err := q.analyze(ctx, it)
	switch {
	case err != nil:
		atomic.AddUint64(&q.failed, 1)
		log.WithError(err).Warn("live analysis failed")
	case outcome == "skipped":
		atomic.AddUint64(&q.skipped, 1)
		log.Debug("live analysis skipped")
	default:
		atomic.AddUint64(&q.processed, 1)
		log.WithField("duration_ms", time.Since(start).Milliseconds()).Debug("live analysis applied")
	}
	metrics.LiveQueueItems.WithLabelValues(outcome).Inc()
}

func (q *LiveAnalysisQueue) analyze(ctx context.Context, it liveItem) (string, error) {
	cur, ok := q.State.GetLive(ctx, it.callID)
	if !ok {
		return "skipped", nil
	}
	text := it.snapshot.UserText()
	if text == "" {
		return "skipped", nil
	}

	prev := models.LiveEstimate{
		Sentiment:    cur.Sentiment,
		ChurnScore:   cur.ChurnScore,
		RevenueScore: cur.RevenueScore,
		Confidence:   cur.Confidence,
	}
	est, err := q.Analyzer.AnalyzeLive(ctx, text, prev)
	if err != nil {
		return "failed", err
	}

	updated, err := q.State.UpdateLive(ctx, it.callID, func(cur *models.LiveCallState) (*models.LiveCallState, error) {
		if cur == nil {
			// completed while the analysis was running
			return nil, errCallCompleted
		}
		cur.ApplyEstimate(est)
		return cur, nil
	})
	if errors.Is(err, errCallCompleted) {
		return "skipped", nil
	}
	if err != nil {
		return "failed", err
	}
	if q.OnAnalyzed != nil {
		q.OnAnalyzed(ctx, updated)
	}
	return "processed", nil
}
