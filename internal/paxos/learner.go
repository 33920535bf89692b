package paxos

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"paxoskv/internal/action"
	"paxoskv/internal/metrics"
	"paxoskv/internal/store"
)

type commitRecord struct {
	key       int
	act       action.Action
	result    string
	appliedAt time.Time
}

// Learner applies committed (key, action) pairs to the Store and keeps
// basic success/failure counters. It never consults proposal numbers —
// commit is idempotent at the Store level for READ, and for INSERT/REMOVE
// the Store's own sentinel is the outcome.
type Learner struct {
	store      *store.Store
	log        *slog.Logger
	historyTTL time.Duration

	mu      sync.Mutex
	history map[int]commitRecord

	total, successful, failed atomic.Int64

	running  atomicBool
	stopOnce sync.Once
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewLearner builds a Learner bound to store s, retaining commit history for
// historyTTL before it is swept.
func NewLearner(s *store.Store, historyTTL time.Duration, log *slog.Logger) *Learner {
	return &Learner{
		store:      s,
		log:        log,
		historyTTL: historyTTL,
		history:    make(map[int]commitRecord),
	}
}

// Start launches the background history-retention sweep. Idempotent.
func (l *Learner) Start() {
	if !l.running.set(true) {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.wg.Add(1)
	go l.sweepLoop(ctx)
}

// Stop halts the background sweep and waits for it to exit. Idempotent.
func (l *Learner) Stop() {
	l.stopOnce.Do(func() {
		l.running.set(false)
		if l.cancel != nil {
			l.cancel()
		}
		l.wg.Wait()
	})
}

func (l *Learner) sweepLoop(ctx context.Context) {
	defer l.wg.Done()
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.sweepHistory()
		}
	}
}

func (l *Learner) sweepHistory() {
	cutoff := time.Now().Add(-l.historyTTL)
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, rec := range l.history {
		if rec.appliedAt.Before(cutoff) {
			delete(l.history, k)
		}
	}
}

// Commit dispatches act against the Store and returns a human-readable
// result. Invalid action codes produce the invalid-action sentinel and are
// counted as a failure without touching the Store.
func (l *Learner) Commit(key int, act action.Action) string {
	l.total.Add(1)

	var result string
	switch act {
	case action.READ:
		result = l.store.Read(key)
	case action.INSERT:
		result = l.store.Insert(key)
	case action.REMOVE:
		result = l.store.Remove(key)
	default:
		l.failed.Add(1)
		metrics.LearnerCommitsTotal.WithLabelValues("invalid", "failed").Inc()
		l.log.Warn("learner rejected invalid action", "key", key, "action", uint8(act))
		return action.ResultInvalidAction
	}

	if result == action.ResultOK {
		l.successful.Add(1)
		metrics.LearnerCommitsTotal.WithLabelValues(act.String(), "success").Inc()
	} else {
		l.failed.Add(1)
		metrics.LearnerCommitsTotal.WithLabelValues(act.String(), "failed").Inc()
	}
	metrics.StorageKeysTotal.Set(float64(l.store.Len()))

	l.mu.Lock()
	l.history[key] = commitRecord{key: key, act: act, result: result, appliedAt: time.Now()}
	l.mu.Unlock()

	l.log.Info("learner committed", "key", key, "action", act, "result", result)
	return result
}

// Stats returns the running success/failure counters for introspection.
func (l *Learner) Stats() (total, successful, failed int64) {
	return l.total.Load(), l.successful.Load(), l.failed.Load()
}
