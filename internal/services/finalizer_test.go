package services

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Ananth-NQI/cassany-backend/internal/models"
	"github.com/Ananth-NQI/cassany-backend/internal/storage"
)

var codeRe = regexp.MustCompile(`^CAS-\d{8}-[A-Z0-9]{4}$`)

// crowdedStore reports every candidate code as taken.
type crowdedStore struct {
	*storage.MemoryStore
}

func (crowdedStore) ConfirmationCodeExists(context.Context, string) (bool, error) {
	return true, nil
}

func newSeededStore(t *testing.T) *storage.MemoryStore {
	t.Helper()
	store := storage.NewMemoryStore()
	s := models.NewSession(testSession, time.Now())
	readyToConfirm(s)
	require.NoError(t, store.CreateSession(context.Background(), s))
	return store
}

func TestGenerateCode(t *testing.T) {
	f := NewFinalizer(storage.NewMemoryStore(), nil, nil, nil, Options{}, zaptest.NewLogger(t))
	code, err := f.GenerateCode(context.Background())
	require.NoError(t, err)
	assert.Regexp(t, codeRe, code)
}

func TestGenerateCodeFallsBackToExtendedSuffix(t *testing.T) {
	store := crowdedStore{storage.NewMemoryStore()}
	f := NewFinalizer(store, nil, nil, nil, Options{ConfirmationPrefix: "CAS"}, zaptest.NewLogger(t))
	code, err := f.GenerateCode(context.Background())
	require.NoError(t, err)
	assert.Regexp(t, `^CAS-\d{8}-[A-Z0-9]{8}$`, code)
}

func TestConfirmRunsSideEffectsOnce(t *testing.T) {
	ctx := context.Background()
	store := newSeededStore(t)
	syncer := &fakeSyncer{}
	alerts := &fakeSender{}
	f := NewFinalizer(store, syncer, alerts, nil, Options{AlertTo: "573009998877"}, zaptest.NewLogger(t))

	s, err := store.GetSession(ctx, testSession)
	require.NoError(t, err)

	code, created, err := f.Confirm(ctx, s, nil)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Regexp(t, codeRe, code)
	assert.Equal(t, code, s.Code())

	again, created, err := f.Confirm(ctx, s, nil)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, code, again)

	stale, err := store.GetSession(ctx, testSession)
	require.NoError(t, err)
	stale.ConfirmationCode = nil
	third, created, err := f.Confirm(ctx, stale, nil)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, code, third)

	assert.Equal(t, 1, syncer.count())
	assert.Len(t, alerts.messages(), 1)
}

func TestConcurrentConfirmAssignsOneCode(t *testing.T) {
	ctx := context.Background()
	store := newSeededStore(t)
	syncer := &fakeSyncer{}
	f := NewFinalizer(store, syncer, nil, nil, Options{}, zaptest.NewLogger(t))

	const n = 8
	codes := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := store.GetSession(ctx, testSession)
			if !assert.NoError(t, err) {
				return
			}
			s.ConfirmationCode = nil
			codes[i], _, err = f.Confirm(ctx, s, nil)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	for _, c := range codes {
		assert.Equal(t, codes[0], c)
	}
	assert.Equal(t, 1, syncer.count())
}
