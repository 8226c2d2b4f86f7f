package poll

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scurry-works/poll-bot/pkg/config"
)

// Archiver mirrors committed poll state into durable storage. Calls are
// fire-and-forget with respect to the in-memory mutation: the registry
// never waits on them and never rolls back an accepted vote over a
// persistence failure. Implementations must not block, the registry
// invokes them inside the poll's critical section so that writes for
// one poll reach the store in commit order.
type Archiver interface {
	Save(rec Record)
	Delete(id string)
}

// Registry owns every live poll and is the only component allowed to
// create, look up or remove them. Mutations on the same poll, eviction
// included, are serialized by that poll's own lock; different polls
// never block each other.
type Registry struct {
	cfg     *config.PollConfig
	archive Archiver
	logger  *zap.Logger
	metrics *RegistryMetrics

	newID func() string

	mu    sync.RWMutex
	polls map[string]*Poll
}

// RegistryMetrics tracks registry activity.
type RegistryMetrics struct {
	PollsCreated int64
	PollsClosed  int64
	PollsEvicted int64
	VotesCast    int64
	LastUpdate   time.Time
	mu           sync.Mutex
}

// CreateRequest carries the typed input of a poll-creation command.
type CreateRequest struct {
	Title     string
	Options   []string
	Emojis    []string
	CreatorID string
	Expiry    time.Duration // zero means use the configured default
}

// NewRegistry creates an empty poll registry.
func NewRegistry(cfg *config.PollConfig, archive Archiver, logger *zap.Logger) *Registry {
	return &Registry{
		cfg:     cfg,
		archive: archive,
		logger:  logger,
		metrics: &RegistryMetrics{},
		newID:   uuid.NewString,
		polls:   make(map[string]*Poll),
	}
}

// CreatePoll validates the request, generates a collision-checked
// identifier and stores the new poll. Returns the identifier.
func (r *Registry) CreatePoll(req CreateRequest, now time.Time) (string, error) {
	if len(req.Options) < r.cfg.MinOptions {
		return "", fmt.Errorf("%w: need at least %d options", ErrInvalidArguments, r.cfg.MinOptions)
	}
	if len(req.Options) > r.cfg.MaxOptions {
		return "", fmt.Errorf("%w: at most %d options allowed", ErrInvalidArguments, r.cfg.MaxOptions)
	}

	expiry := req.Expiry
	if expiry == 0 {
		expiry = r.cfg.DefaultExpiry
	}
	var expiresAt time.Time
	if expiry > 0 {
		expiresAt = now.Add(expiry)
	}

	p, err := NewPoll("", req.Title, req.Options, req.Emojis, req.CreatorID, now, expiresAt)
	if err != nil {
		return "", err
	}

	id, err := r.insert(p)
	if err != nil {
		return "", err
	}

	r.metrics.mu.Lock()
	r.metrics.PollsCreated++
	r.metrics.LastUpdate = now
	r.metrics.mu.Unlock()

	p.mu.Lock()
	if !p.evicted {
		r.archive.Save(p.recordLocked())
	}
	p.mu.Unlock()

	r.logger.Info("Poll created",
		zap.String("pollID", id),
		zap.String("creatorID", req.CreatorID),
		zap.Int("options", len(req.Options)),
		zap.Time("expiresAt", expiresAt))

	return id, nil
}

// insert assigns a fresh identifier and registers the poll, retrying a
// bounded number of times on collision.
func (r *Registry) insert(p *Poll) (string, error) {
	attempts := r.cfg.IDRetries
	if attempts < 1 {
		attempts = 1
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var lastErr error
	for i := 0; i < attempts; i++ {
		id := r.newID()
		if _, exists := r.polls[id]; exists {
			lastErr = fmt.Errorf("%w: %s", ErrIdentifierCollision, id)
			continue
		}
		p.ID = id
		r.polls[id] = p
		return id, nil
	}

	r.logger.Error("Identifier generation exhausted retries", zap.Error(lastErr))
	return "", fmt.Errorf("%w: %v", ErrCreationFailed, lastErr)
}

// Vote records a vote on the identified poll. The persisted save is
// dispatched inside the poll's critical section, so it can never trail
// a concurrent eviction's delete, and it covers the status change when
// the vote trips lazy expiry. A vote racing an eviction either commits
// before the poll is marked evicted or fails with ErrPollNotFound.
func (r *Registry) Vote(id, voterID string, option int, now time.Time) (VoteOutcome, error) {
	p, err := r.lookup(id)
	if err != nil {
		return VoteOutcome{}, err
	}

	p.mu.Lock()
	if p.evicted {
		p.mu.Unlock()
		return VoteOutcome{}, fmt.Errorf("%w: %s", ErrPollNotFound, id)
	}

	outcome, err := p.voteLocked(voterID, option, now)
	if err != nil {
		if errors.Is(err, ErrPollExpired) {
			// Expiry closed the poll; mirror the transition.
			r.archive.Save(p.recordLocked())
		}
		p.mu.Unlock()
		return VoteOutcome{}, err
	}

	r.archive.Save(p.recordLocked())
	p.mu.Unlock()

	r.metrics.mu.Lock()
	r.metrics.VotesCast++
	r.metrics.LastUpdate = now
	r.metrics.mu.Unlock()

	return outcome, nil
}

// Close freezes the identified poll and returns the final tally.
func (r *Registry) Close(id, actorID string, now time.Time) (ClosedSummary, error) {
	p, err := r.lookup(id)
	if err != nil {
		return ClosedSummary{}, err
	}

	p.mu.Lock()
	if p.evicted {
		p.mu.Unlock()
		return ClosedSummary{}, fmt.Errorf("%w: %s", ErrPollNotFound, id)
	}

	summary, err := p.closeLocked(actorID, now)
	if err != nil {
		p.mu.Unlock()
		return ClosedSummary{}, err
	}

	r.archive.Save(p.recordLocked())
	p.mu.Unlock()

	r.metrics.mu.Lock()
	r.metrics.PollsClosed++
	r.metrics.LastUpdate = now
	r.metrics.mu.Unlock()

	r.logger.Info("Poll closed",
		zap.String("pollID", id),
		zap.String("actorID", actorID))

	return summary, nil
}

// VoterChoice returns the voter's current choice on the identified poll.
func (r *Registry) VoterChoice(id, voterID string) (int, bool, error) {
	p, err := r.lookup(id)
	if err != nil {
		return 0, false, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.evicted {
		return 0, false, fmt.Errorf("%w: %s", ErrPollNotFound, id)
	}
	option, ok := p.ledger.VoterChoice(voterID)
	return option, ok, nil
}

// Evict removes a poll regardless of status and reports whether one was
// removed. Used for explicit deletion and cleanup sweeps. The poll is
// marked evicted under its own lock before the store delete is queued,
// so a vote that already resolved the pointer fails instead of
// committing into a removed poll, and no save can land after the delete.
func (r *Registry) Evict(id string) bool {
	r.mu.Lock()
	p, exists := r.polls[id]
	if exists {
		delete(r.polls, id)
	}
	r.mu.Unlock()

	if !exists {
		return false
	}

	p.mu.Lock()
	p.evicted = true
	r.archive.Delete(id)
	p.mu.Unlock()

	r.metrics.mu.Lock()
	r.metrics.PollsEvicted++
	r.metrics.LastUpdate = time.Now()
	r.metrics.mu.Unlock()

	return true
}

// Get returns a read-only snapshot of the identified poll.
func (r *Registry) Get(id string) (Snapshot, bool) {
	p, err := r.lookup(id)
	if err != nil {
		return Snapshot{}, false
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.evicted {
		return Snapshot{}, false
	}
	return p.snapshotLocked(), true
}

// Len returns the number of live polls.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.polls)
}

// SweepExpired evicts polls whose expiry has passed and closed polls
// older than retention. Returns the number of polls evicted.
func (r *Registry) SweepExpired(now time.Time, retention time.Duration) int {
	r.mu.RLock()
	candidates := make([]string, 0)
	for id, p := range r.polls {
		snap := p.Snapshot()
		switch {
		case snap.Status == StatusClosed && now.Sub(snap.ClosedAt) >= retention:
			candidates = append(candidates, id)
		case snap.Status == StatusOpen && p.Expired(now):
			candidates = append(candidates, id)
		}
	}
	r.mu.RUnlock()

	evicted := 0
	for _, id := range candidates {
		if r.Evict(id) {
			evicted++
		}
	}
	return evicted
}

// Restore loads previously persisted polls into the registry, skipping
// records that no longer parse. Used at startup for crash recovery.
func (r *Registry) Restore(recs []Record) int {
	restored := 0
	r.mu.Lock()
	for _, rec := range recs {
		p, err := FromRecord(rec)
		if err != nil {
			r.logger.Warn("Skipping unreadable poll record",
				zap.String("pollID", rec.ID),
				zap.Error(err))
			continue
		}
		if _, exists := r.polls[p.ID]; exists {
			continue
		}
		r.polls[p.ID] = p
		restored++
	}
	r.mu.Unlock()

	if restored > 0 {
		r.logger.Info("Restored polls from store", zap.Int("count", restored))
	}
	return restored
}

// Stats returns a copy of the registry activity counters.
func (r *Registry) Stats() RegistryStats {
	r.metrics.mu.Lock()
	defer r.metrics.mu.Unlock()

	return RegistryStats{
		LivePolls:    r.Len(),
		PollsCreated: r.metrics.PollsCreated,
		PollsClosed:  r.metrics.PollsClosed,
		PollsEvicted: r.metrics.PollsEvicted,
		VotesCast:    r.metrics.VotesCast,
		LastUpdate:   r.metrics.LastUpdate,
	}
}

// RegistryStats represents registry activity counters.
type RegistryStats struct {
	LivePolls    int
	PollsCreated int64
	PollsClosed  int64
	PollsEvicted int64
	VotesCast    int64
	LastUpdate   time.Time
}

func (r *Registry) lookup(id string) (*Poll, error) {
	r.mu.RLock()
	p, exists := r.polls[id]
	r.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrPollNotFound, id)
	}
	return p, nil
}
