package poll

import (
	"fmt"
	"regexp"
	"sync"
	"time"
)

// Status represents the lifecycle state of a poll
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// customEmojiRegex matches platform custom emoji markup, which vote
// buttons cannot carry.
var customEmojiRegex = regexp.MustCompile(`^<a?:\w+:\d+>$`)

// DefaultEmojis are assigned to options whose creation request carried none.
var DefaultEmojis = []string{"🔴", "🟠", "🟡", "🟢", "🔵"}

// Option is one selectable poll choice. Index is the canonical vote
// target; Label and Emoji are display only.
type Option struct {
	Index int    `json:"index"`
	Label string `json:"label"`
	Emoji string `json:"emoji,omitempty"`
}

// Poll is a single poll: identity, options, open/closed status and the
// ledger of current votes. All mutations go through the poll's own
// mutex, which doubles as the per-poll exclusive section the registry
// relies on.
type Poll struct {
	ID        string
	Title     string
	Options   []Option
	CreatorID string
	CreatedAt time.Time
	ExpiresAt time.Time // zero means no expiry

	mu       sync.RWMutex
	status   Status
	closedAt time.Time
	evicted  bool
	ledger   *Ledger
}

// VoteOutcome describes an accepted vote.
type VoteOutcome struct {
	PollID         string
	Option         int
	PreviousChoice int
	HasPrevious    bool
	Tally          map[int]int
}

// ClosedSummary is the final tally snapshot returned by a successful close.
type ClosedSummary struct {
	PollID   string
	Tally    map[int]int
	ClosedAt time.Time
}

// Snapshot is a consistent read-only view of a poll, safe to hand out
// beyond the registry boundary.
type Snapshot struct {
	ID         string
	Title      string
	Options    []Option
	Status     Status
	CreatorID  string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	ClosedAt   time.Time
	Tally      map[int]int
	TotalVotes int
}

// Record is the persisted shape of a poll. The JSON schema matches the
// in-memory snapshot plus the raw vote entries so the key-value store
// can double as a durable source of truth.
type Record struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Options   []Option       `json:"options"`
	Status    Status         `json:"status"`
	CreatorID string         `json:"creator_id"`
	CreatedAt time.Time      `json:"created_at"`
	ExpiresAt time.Time      `json:"expires_at,omitempty"`
	ClosedAt  time.Time      `json:"closed_at,omitempty"`
	Votes     map[string]int `json:"votes"`
}

// NewPoll creates an open poll. Fails with ErrInvalidArguments if the
// title is empty, options are empty or duplicated, or emojis do not
// line up with options.
func NewPoll(id, title string, labels, emojis []string, creatorID string, now time.Time, expiresAt time.Time) (*Poll, error) {
	if title == "" {
		return nil, fmt.Errorf("%w: title cannot be empty", ErrInvalidArguments)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("%w: options cannot be empty", ErrInvalidArguments)
	}
	if creatorID == "" {
		return nil, fmt.Errorf("%w: creator cannot be empty", ErrInvalidArguments)
	}

	seen := make(map[string]struct{}, len(labels))
	for _, label := range labels {
		if label == "" {
			return nil, fmt.Errorf("%w: option label cannot be empty", ErrInvalidArguments)
		}
		if _, dup := seen[label]; dup {
			return nil, fmt.Errorf("%w: duplicate option label %q", ErrInvalidArguments, label)
		}
		seen[label] = struct{}{}
	}

	resolved, err := ResolveEmojis(emojis, len(labels))
	if err != nil {
		return nil, err
	}

	options := make([]Option, len(labels))
	for i, label := range labels {
		options[i] = Option{Index: i, Label: label, Emoji: resolved[i]}
	}

	return &Poll{
		ID:        id,
		Title:     title,
		Options:   options,
		CreatorID: creatorID,
		CreatedAt: now,
		ExpiresAt: expiresAt,
		status:    StatusOpen,
		ledger:    NewLedger(len(options)),
	}, nil
}

// ResolveEmojis validates a creation request's emoji list against the
// option count, filling in defaults when the list is empty. Defaults
// only cover len(DefaultEmojis) options; past that the request must
// carry its own, otherwise buttons would repeat emojis. Custom platform
// emojis are rejected.
func ResolveEmojis(emojis []string, optionCount int) ([]string, error) {
	if len(emojis) == 0 {
		if optionCount > len(DefaultEmojis) {
			return nil, fmt.Errorf("%w: emojis are required for more than %d options",
				ErrInvalidArguments, len(DefaultEmojis))
		}
		resolved := make([]string, optionCount)
		for i := range resolved {
			resolved[i] = DefaultEmojis[i]
		}
		return resolved, nil
	}
	if len(emojis) < optionCount {
		return nil, fmt.Errorf("%w: need an emoji for every option", ErrInvalidArguments)
	}
	for _, e := range emojis {
		if customEmojiRegex.MatchString(e) {
			return nil, fmt.Errorf("%w: custom emojis are not allowed", ErrInvalidArguments)
		}
	}
	return emojis[:optionCount], nil
}

// Vote records or overwrites the voter's choice. Fails with
// ErrPollClosed on a closed poll and ErrPollExpired on an expired one;
// expiry is enforced lazily on first touch and transitions the poll to
// closed as a side effect.
func (p *Poll) Vote(voterID string, option int, now time.Time) (VoteOutcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.voteLocked(voterID, option, now)
}

// voteLocked is Vote with p.mu already held.
func (p *Poll) voteLocked(voterID string, option int, now time.Time) (VoteOutcome, error) {
	if p.status != StatusOpen {
		return VoteOutcome{}, ErrPollClosed
	}
	if p.expired(now) {
		p.status = StatusClosed
		p.closedAt = now
		return VoteOutcome{}, ErrPollExpired
	}

	previous, hadPrevious, err := p.ledger.Cast(voterID, option)
	if err != nil {
		return VoteOutcome{}, err
	}

	return VoteOutcome{
		PollID:         p.ID,
		Option:         option,
		PreviousChoice: previous,
		HasPrevious:    hadPrevious,
		Tally:          p.ledger.Tally(),
	}, nil
}

// Close freezes the poll and returns the final tally. Only the creator
// may close a poll manually; a second close fails with ErrAlreadyClosed.
func (p *Poll) Close(actorID string, now time.Time) (ClosedSummary, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeLocked(actorID, now)
}

// closeLocked is Close with p.mu already held.
func (p *Poll) closeLocked(actorID string, now time.Time) (ClosedSummary, error) {
	if p.status == StatusClosed {
		return ClosedSummary{}, ErrAlreadyClosed
	}
	if actorID != p.CreatorID {
		return ClosedSummary{}, ErrNotAuthorized
	}

	p.status = StatusClosed
	p.closedAt = now

	return ClosedSummary{
		PollID:   p.ID,
		Tally:    p.ledger.Tally(),
		ClosedAt: now,
	}, nil
}

// VoterChoice returns the voter's current choice, if any.
func (p *Poll) VoterChoice(voterID string) (int, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ledger.VoterChoice(voterID)
}

// Snapshot returns a consistent view of the poll, safe at any time.
func (p *Poll) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshotLocked()
}

func (p *Poll) snapshotLocked() Snapshot {
	options := make([]Option, len(p.Options))
	copy(options, p.Options)

	return Snapshot{
		ID:         p.ID,
		Title:      p.Title,
		Options:    options,
		Status:     p.status,
		CreatorID:  p.CreatorID,
		CreatedAt:  p.CreatedAt,
		ExpiresAt:  p.ExpiresAt,
		ClosedAt:   p.closedAt,
		Tally:      p.ledger.Tally(),
		TotalVotes: p.ledger.VoterCount(),
	}
}

// Record returns the persistable shape of the poll.
func (p *Poll) Record() Record {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.recordLocked()
}

func (p *Poll) recordLocked() Record {
	options := make([]Option, len(p.Options))
	copy(options, p.Options)

	return Record{
		ID:        p.ID,
		Title:     p.Title,
		Options:   options,
		Status:    p.status,
		CreatorID: p.CreatorID,
		CreatedAt: p.CreatedAt,
		ExpiresAt: p.ExpiresAt,
		ClosedAt:  p.closedAt,
		Votes:     p.ledger.Entries(),
	}
}

// FromRecord rebuilds a poll from its persisted record, used for crash
// recovery at startup.
func FromRecord(rec Record) (*Poll, error) {
	if rec.ID == "" {
		return nil, fmt.Errorf("%w: record missing identifier", ErrInvalidArguments)
	}
	if len(rec.Options) == 0 {
		return nil, fmt.Errorf("%w: record missing options", ErrInvalidArguments)
	}

	status := rec.Status
	if status != StatusClosed {
		status = StatusOpen
	}

	options := make([]Option, len(rec.Options))
	copy(options, rec.Options)

	ledger := NewLedger(len(options))
	ledger.restore(rec.Votes)

	return &Poll{
		ID:        rec.ID,
		Title:     rec.Title,
		Options:   options,
		CreatorID: rec.CreatorID,
		CreatedAt: rec.CreatedAt,
		ExpiresAt: rec.ExpiresAt,
		status:    status,
		closedAt:  rec.ClosedAt,
		ledger:    ledger,
	}, nil
}

// Status returns the poll's current lifecycle state.
func (p *Poll) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

// Expired reports whether the poll's expiry has passed as of now.
func (p *Poll) Expired(now time.Time) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.expired(now)
}

func (p *Poll) expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && !now.Before(p.ExpiresAt)
}
