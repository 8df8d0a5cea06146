package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	notifierJobTimeout = 30 * time.Second
	defaultWorkers     = 4
	defaultQueueSize   = 64
)

// ErrNotifierClosed is returned by Shutdown when called twice.
var ErrNotifierClosed = errors.New("notifier already shut down")

type notifierJob struct {
	name string
	fn   func(ctx context.Context) error
}

// Notifier runs side effects (CRM sync, staff alerts) off the request path on a fixed
// pool of workers. Failures are logged, never retried.
type Notifier struct {
	jobs   chan notifierJob
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
	ctx    context.Context
	cancel context.CancelFunc
	log    *zap.Logger
}

// NewNotifier starts workers goroutines draining a queue of queueSize jobs.
func NewNotifier(workers, queueSize int, log *zap.Logger) *Notifier {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	n := &Notifier{
		jobs:   make(chan notifierJob, queueSize),
		ctx:    ctx,
		cancel: cancel,
		log:    log,
	}
	for i := 0; i < workers; i++ {
		n.wg.Add(1)
		go n.worker()
	}
	return n
}

func (n *Notifier) worker() {
	defer n.wg.Done()
	for job := range n.jobs {
		n.run(job)
	}
}

func (n *Notifier) run(job notifierJob) {
	ctx, cancel := context.WithTimeout(n.ctx, notifierJobTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			n.log.Error("Background job panicked", zap.String("job", job.name), zap.Any("panic", r))
		}
	}()
	if err := job.fn(ctx); err != nil {
		n.log.Warn("Background job failed", zap.String("job", job.name), zap.Error(err))
		return
	}
	n.log.Debug("Background job done", zap.String("job", job.name))
}

// Go queues fn without blocking. It reports false when the queue is full or the
// notifier is shut down; the job is dropped and logged.
func (n *Notifier) Go(name string, fn func(ctx context.Context) error) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		n.log.Warn("Dropping background job: notifier closed", zap.String("job", name))
		return false
	}
	select {
	case n.jobs <- notifierJob{name: name, fn: fn}:
		return true
	default:
		n.log.Warn("Dropping background job: queue full", zap.String("job", name))
		return false
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish. When ctx ends
// first, in-flight jobs see their context cancelled.
func (n *Notifier) Shutdown(ctx context.Context) error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return ErrNotifierClosed
	}
	n.closed = true
	close(n.jobs)
	n.mu.Unlock()

	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		n.cancel()
		return nil
	case <-ctx.Done():
		n.cancel()
		<-done
		return ctx.Err()
	}
}
