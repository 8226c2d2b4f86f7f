// Package sweep runs the periodic cleanup of expired and stale polls.
package sweep

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/scurry-works/poll-bot/pkg/config"
	"github.com/scurry-works/poll-bot/pkg/poll"
)

// Sweeper evicts expired polls and closed polls past the retention
// window on a cron schedule. Expiry is otherwise enforced lazily on
// vote, so the sweep only reclaims memory and store entries for polls
// nobody touches anymore.
type Sweeper struct {
	cron     *cron.Cron
	registry *poll.Registry
	cfg      *config.SweepConfig
	logger   *zap.Logger
	metrics  *SweeperMetrics
	entryID  cron.EntryID
}

// SweeperMetrics tracks sweep activity.
type SweeperMetrics struct {
	SweepsRun    int64
	PollsEvicted int64
	LastSweep    time.Time
	mu           sync.Mutex
}

// NewSweeper creates a sweeper over the given registry.
func NewSweeper(registry *poll.Registry, cfg *config.SweepConfig, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		cron:     cron.New(),
		registry: registry,
		cfg:      cfg,
		logger:   logger,
		metrics:  &SweeperMetrics{},
	}
}

// Start schedules the sweep and begins running it.
func (s *Sweeper) Start() error {
	entryID, err := s.cron.AddFunc(s.cfg.Schedule, s.runSweep)
	if err != nil {
		return err
	}
	s.entryID = entryID
	s.cron.Start()

	s.logger.Info("Sweeper started",
		zap.String("schedule", s.cfg.Schedule),
		zap.Duration("retention", s.cfg.Retention))
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Sweeper stopped")
}

// RunOnce performs a single sweep immediately, outside the schedule.
func (s *Sweeper) RunOnce() int {
	return s.sweep(time.Now())
}

// Stats returns a copy of the sweep counters.
func (s *Sweeper) Stats() SweeperStats {
	s.metrics.mu.Lock()
	defer s.metrics.mu.Unlock()

	return SweeperStats{
		SweepsRun:    s.metrics.SweepsRun,
		PollsEvicted: s.metrics.PollsEvicted,
		LastSweep:    s.metrics.LastSweep,
	}
}

// SweeperStats represents sweep counters.
type SweeperStats struct {
	SweepsRun    int64
	PollsEvicted int64
	LastSweep    time.Time
}

func (s *Sweeper) runSweep() {
	s.sweep(time.Now())
}

func (s *Sweeper) sweep(now time.Time) int {
	evicted := s.registry.SweepExpired(now, s.cfg.Retention)

	s.metrics.mu.Lock()
	s.metrics.SweepsRun++
	s.metrics.PollsEvicted += int64(evicted)
	s.metrics.LastSweep = now
	s.metrics.mu.Unlock()

	if evicted > 0 {
		s.logger.Info("Cleaned up stale polls", zap.Int("evicted", evicted))
	}
	return evicted
}
