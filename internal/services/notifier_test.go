package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestNotifierDrainsOnShutdown(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	n := NewNotifier(2, 16, zaptest.NewLogger(t))
	var done int32
	for i := 0; i < 10; i++ {
		ok := n.Go("job", func(ctx context.Context) error {
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&done, 1)
			return nil
		})
		require.True(t, ok)
	}

	require.NoError(t, n.Shutdown(context.Background()))
	assert.Equal(t, int32(10), atomic.LoadInt32(&done))

	assert.False(t, n.Go("late", func(context.Context) error { return nil }))
	assert.ErrorIs(t, n.Shutdown(context.Background()), ErrNotifierClosed)
}

func TestNotifierSurvivesFailuresAndPanics(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	n := NewNotifier(1, 4, zaptest.NewLogger(t))
	var ran int32
	n.Go("fails", func(context.Context) error { return errors.New("crm down") })
	n.Go("panics", func(context.Context) error { panic("boom") })
	n.Go("works", func(context.Context) error {
		atomic.AddInt32(&ran, 1)
		return nil
	})

	require.NoError(t, n.Shutdown(context.Background()))
	assert.Equal(t, int32(1), atomic.LoadInt32(&ran))
}

func TestNotifierDropsWhenQueueFull(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	n := NewNotifier(1, 1, zaptest.NewLogger(t))
	release := make(chan struct{})
	started := make(chan struct{})
	n.Go("blocking", func(context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started

	assert.True(t, n.Go("queued", func(context.Context) error { return nil }))
	assert.False(t, n.Go("dropped", func(context.Context) error { return nil }))

	close(release)
	require.NoError(t, n.Shutdown(context.Background()))
}

func TestNotifierShutdownDeadlineCancelsJobs(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	n := NewNotifier(1, 1, zaptest.NewLogger(t))
	n.Go("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, n.Shutdown(ctx), context.DeadlineExceeded)
}
