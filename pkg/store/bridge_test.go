package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scurry-works/poll-bot/pkg/config"
	"github.com/scurry-works/poll-bot/pkg/poll"
)

// flakyStore fails the first failures calls of each kind, then
// delegates to an in-memory store.
type flakyStore struct {
	*MemoryStore
	mu       sync.Mutex
	failures int
	calls    int
}

func (s *flakyStore) Save(ctx context.Context, rec poll.Record) error {
	s.mu.Lock()
	s.calls++
	fail := s.calls <= s.failures
	s.mu.Unlock()

	if fail {
		return errors.New("backend unavailable")
	}
	return s.MemoryStore.Save(ctx, rec)
}

func testPersistConfig() *config.PersistConfig {
	return &config.PersistConfig{
		QueueSize:     16,
		RetryAttempts: 3,
		RetryDelay:    time.Millisecond,
	}
}

func TestBridge_SaveAndDelete(t *testing.T) {
	mem := NewMemoryStore()
	bridge := NewBridge(mem, testPersistConfig(), zap.NewNop())
	bridge.Start()

	bridge.Save(testRecord("p1"))
	bridge.Save(testRecord("p2"))
	bridge.Delete("p2")
	bridge.Close()

	_, err := mem.Get(context.Background(), "p1")
	require.NoError(t, err)
	_, err = mem.Get(context.Background(), "p2")
	require.ErrorIs(t, err, ErrNotFound)

	stats := bridge.Stats()
	assert.Equal(t, int64(3), stats.Queued)
	assert.Equal(t, int64(3), stats.Written)
	assert.Equal(t, int64(0), stats.Failed)
}

func TestBridge_RetriesTransientFailure(t *testing.T) {
	flaky := &flakyStore{MemoryStore: NewMemoryStore(), failures: 2}
	bridge := NewBridge(flaky, testPersistConfig(), zap.NewNop())
	bridge.Start()

	bridge.Save(testRecord("p1"))
	bridge.Close()

	// The write survived two failed attempts
	_, err := flaky.MemoryStore.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), bridge.Stats().Written)
}

func TestBridge_ExhaustedRetriesAreLoggedNotFatal(t *testing.T) {
	// p1 exhausts its four attempts, p2 recovers on its third
	flaky := &flakyStore{MemoryStore: NewMemoryStore(), failures: 6}
	bridge := NewBridge(flaky, testPersistConfig(), zap.NewNop())
	bridge.Start()

	bridge.Save(testRecord("p1"))
	bridge.Save(testRecord("p2"))
	bridge.Close()

	stats := bridge.Stats()
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, int64(1), stats.Written)

	// Only the job whose retries ran out is missing
	_, err := flaky.MemoryStore.Get(context.Background(), "p1")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = flaky.MemoryStore.Get(context.Background(), "p2")
	require.NoError(t, err)
}

func TestBridge_CloseIsIdempotent(t *testing.T) {
	bridge := NewBridge(NewMemoryStore(), testPersistConfig(), zap.NewNop())
	bridge.Start()

	bridge.Close()
	bridge.Close()

	// Writes after close are dropped, not panicking on a closed channel
	bridge.Save(testRecord("p1"))
}

func TestBridge_FullQueueDropsInsteadOfBlocking(t *testing.T) {
	cfg := &config.PersistConfig{QueueSize: 1, RetryAttempts: 0, RetryDelay: 0}
	bridge := NewBridge(NewMemoryStore(), cfg, zap.NewNop())
	// Worker intentionally not started, the queue can only hold one job

	bridge.Save(testRecord("p1"))

	done := make(chan struct{})
	go func() {
		bridge.Save(testRecord("p2"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Save blocked on a full queue")
	}

	assert.Equal(t, int64(1), bridge.Stats().Dropped)
}
