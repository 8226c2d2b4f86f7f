package store

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/scurry-works/poll-bot/pkg/config"
	"github.com/scurry-works/poll-bot/pkg/poll"
)

// opTimeout bounds a single store attempt so a stuck backend cannot
// wedge the writer goroutine forever.
const opTimeout = 10 * time.Second

type job struct {
	delete bool
	id     string
	rec    poll.Record
}

// Bridge mirrors committed poll mutations into a Store asynchronously.
// Save and Delete never block the caller's success path: jobs are
// queued and written by a single background worker, retried on a
// bounded schedule, and logged on failure. A full queue drops the job
// with a warning instead of stalling the vote path. One worker keeps
// writes for the same poll in commit order.
type Bridge struct {
	store   Store
	logger  *zap.Logger
	metrics *BridgeMetrics

	retryAttempts int
	retryDelay    time.Duration

	mu     sync.RWMutex
	closed bool
	jobs   chan job
	done   chan struct{}
}

// BridgeMetrics tracks persistence bridge activity.
type BridgeMetrics struct {
	Queued     int64
	Dropped    int64
	Written    int64
	Failed     int64
	LastUpdate time.Time
	mu         sync.Mutex
}

// NewBridge creates a persistence bridge over the given store.
func NewBridge(s Store, cfg *config.PersistConfig, logger *zap.Logger) *Bridge {
	return &Bridge{
		store:         s,
		logger:        logger,
		metrics:       &BridgeMetrics{},
		retryAttempts: cfg.RetryAttempts,
		retryDelay:    cfg.RetryDelay,
		jobs:          make(chan job, cfg.QueueSize),
		done:          make(chan struct{}),
	}
}

// Start launches the background writer.
func (b *Bridge) Start() {
	go b.run()
}

// Save queues an upsert of the poll record.
func (b *Bridge) Save(rec poll.Record) {
	b.enqueue(job{rec: rec, id: rec.ID})
}

// Delete queues removal of the poll record.
func (b *Bridge) Delete(id string) {
	b.enqueue(job{delete: true, id: id})
}

// Close drains outstanding jobs and stops the writer. Callers must
// stop producing mutations before closing.
func (b *Bridge) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	close(b.jobs)
	<-b.done
}

// Stats returns a copy of the bridge activity counters.
func (b *Bridge) Stats() BridgeStats {
	b.metrics.mu.Lock()
	defer b.metrics.mu.Unlock()

	return BridgeStats{
		Queued:     b.metrics.Queued,
		Dropped:    b.metrics.Dropped,
		Written:    b.metrics.Written,
		Failed:     b.metrics.Failed,
		LastUpdate: b.metrics.LastUpdate,
	}
}

// BridgeStats represents persistence bridge counters.
type BridgeStats struct {
	Queued     int64
	Dropped    int64
	Written    int64
	Failed     int64
	LastUpdate time.Time
}

func (b *Bridge) enqueue(j job) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.logger.Warn("Persistence bridge closed, dropping write",
			zap.String("pollID", j.id))
		return
	}

	select {
	case b.jobs <- j:
		b.metrics.mu.Lock()
		b.metrics.Queued++
		b.metrics.LastUpdate = time.Now()
		b.metrics.mu.Unlock()
	default:
		b.metrics.mu.Lock()
		b.metrics.Dropped++
		b.metrics.LastUpdate = time.Now()
		b.metrics.mu.Unlock()
		b.logger.Warn("Persistence queue full, dropping write",
			zap.String("pollID", j.id),
			zap.Bool("delete", j.delete))
	}
}

func (b *Bridge) run() {
	defer close(b.done)

	for j := range b.jobs {
		if err := b.process(j); err != nil {
			b.metrics.mu.Lock()
			b.metrics.Failed++
			b.metrics.LastUpdate = time.Now()
			b.metrics.mu.Unlock()

			b.logger.Error("Persisting poll failed after retries",
				zap.String("pollID", j.id),
				zap.Bool("delete", j.delete),
				zap.Error(err))
			continue
		}

		b.metrics.mu.Lock()
		b.metrics.Written++
		b.metrics.LastUpdate = time.Now()
		b.metrics.mu.Unlock()
	}
}

func (b *Bridge) process(j job) error {
	var lastErr error

	for attempt := 0; attempt <= b.retryAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(b.retryDelay)
		}

		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		if j.delete {
			lastErr = b.store.Delete(ctx, j.id)
		} else {
			lastErr = b.store.Save(ctx, j.rec)
		}
		cancel()

		if lastErr == nil {
			return nil
		}

		b.logger.Warn("Persistence attempt failed",
			zap.String("pollID", j.id),
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr))
	}

	return lastErr
}

var _ poll.Archiver = (*Bridge)(nil)
