package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Ananth-NQI/cassany-backend/internal/storage"
)

// ProcessedMessageRetention is how long delivered message ids are kept for dedupe.
const ProcessedMessageRetention = 7 * 24 * time.Hour

// ExpiryJob periodically expires idle pending sessions and prunes old processed-message ids.
type ExpiryJob struct {
	store    storage.SessionStore
	timeout  time.Duration
	interval time.Duration
	log      *zap.Logger
	now      func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewExpiryJob creates the sweep. timeout is the session idle window.
func NewExpiryJob(store storage.SessionStore, timeout, interval time.Duration, log *zap.Logger) *ExpiryJob {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &ExpiryJob{
		store:    store,
		timeout:  timeout,
		interval: interval,
		log:      log,
		now:      time.Now,
	}
}

// Start runs the sweep once immediately and then on every tick until Stop.
func (j *ExpiryJob) Start() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cancel != nil {
		j.log.Warn("Expiry job already running")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	j.cancel = cancel
	j.done = make(chan struct{})
	go j.loop(ctx, j.done)
	j.log.Info("Expiry job started", zap.Duration("interval", j.interval), zap.Duration("timeout", j.timeout))
}

// Stop halts the sweep and waits for an in-flight run to finish.
func (j *ExpiryJob) Stop() {
	j.mu.Lock()
	cancel, done := j.cancel, j.done
	j.cancel, j.done = nil, nil
	j.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	j.log.Info("Expiry job stopped")
}

func (j *ExpiryJob) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

// RunOnce performs one sweep. Failures are logged and retried on the next tick.
func (j *ExpiryJob) RunOnce(ctx context.Context) {
	now := j.now()

	expired, err := j.store.ExpireIdleSessions(ctx, now.Add(-j.timeout))
	if err != nil {
		j.log.Error("Failed to expire idle sessions", zap.Error(err))
	} else if expired > 0 {
		j.log.Info("Expired idle sessions", zap.Int64("count", expired))
	}

	pruned, err := j.store.PruneProcessedMessages(ctx, now.Add(-ProcessedMessageRetention))
	if err != nil {
		j.log.Error("Failed to prune processed messages", zap.Error(err))
	} else if pruned > 0 {
		j.log.Info("Pruned processed messages", zap.Int64("count", pruned))
	}
}
