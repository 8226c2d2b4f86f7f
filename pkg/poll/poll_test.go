package poll

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPoll_Validation(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name   string
		title  string
		labels []string
		emojis []string
	}{
		{name: "EmptyTitle", title: "", labels: []string{"A", "B"}},
		{name: "NoOptions", title: "Lunch?", labels: nil},
		{name: "DuplicateLabels", title: "Lunch?", labels: []string{"Pizza", "Pizza"}},
		{name: "EmptyLabel", title: "Lunch?", labels: []string{"Pizza", ""}},
		{name: "TooFewEmojis", title: "Lunch?", labels: []string{"A", "B"}, emojis: []string{"🍕"}},
		{name: "CustomEmoji", title: "Lunch?", labels: []string{"A", "B"}, emojis: []string{"<:pizza:123456>", "🍔"}},
		{name: "TooManyOptionsForDefaults", title: "Lunch?", labels: []string{"A", "B", "C", "D", "E", "F"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPoll("p1", tt.title, tt.labels, tt.emojis, "creator", now, time.Time{})
			require.ErrorIs(t, err, ErrInvalidArguments)
		})
	}
}

func TestNewPoll_DefaultEmojis(t *testing.T) {
	now := time.Now()

	p, err := NewPoll("p1", "Lunch?", []string{"Pizza", "Sushi", "Tacos"}, nil, "creator", now, time.Time{})
	require.NoError(t, err)

	require.Len(t, p.Options, 3)
	for i, opt := range p.Options {
		assert.Equal(t, i, opt.Index)
		assert.Equal(t, DefaultEmojis[i], opt.Emoji)
	}

	// Defaults never repeat; past their count explicit emojis are required
	labels := []string{"A", "B", "C", "D", "E", "F"}
	_, err = NewPoll("p2", "Lunch?", labels, nil, "creator", now, time.Time{})
	require.ErrorIs(t, err, ErrInvalidArguments)

	emojis := []string{"🍕", "🍣", "🌮", "🍔", "🥗", "🍜"}
	p, err = NewPoll("p2", "Lunch?", labels, emojis, "creator", now, time.Time{})
	require.NoError(t, err)
	require.Len(t, p.Options, 6)
	assert.Equal(t, "🍜", p.Options[5].Emoji)
}

func TestPoll_VoteAndClose(t *testing.T) {
	now := time.Now()
	p, err := NewPoll("p1", "Fruit?", []string{"Apple", "Banana"}, nil, "creator", now, time.Time{})
	require.NoError(t, err)

	// Voter A votes option 0
	outcome, err := p.Vote("voterA", 0, now)
	require.NoError(t, err)
	assert.False(t, outcome.HasPrevious)
	assert.Equal(t, map[int]int{0: 1, 1: 0}, outcome.Tally)

	// Voter A changes their vote
	outcome, err = p.Vote("voterA", 1, now)
	require.NoError(t, err)
	assert.True(t, outcome.HasPrevious)
	assert.Equal(t, 0, outcome.PreviousChoice)
	assert.Equal(t, map[int]int{0: 0, 1: 1}, outcome.Tally)

	// Voter B joins
	outcome, err = p.Vote("voterB", 1, now)
	require.NoError(t, err)
	assert.Equal(t, map[int]int{0: 0, 1: 2}, outcome.Tally)

	// Non-creator cannot close
	_, err = p.Close("voterB", now)
	require.ErrorIs(t, err, ErrNotAuthorized)

	// Creator closes with the final tally
	summary, err := p.Close("creator", now)
	require.NoError(t, err)
	assert.Equal(t, map[int]int{0: 0, 1: 2}, summary.Tally)

	// Votes after close are rejected
	_, err = p.Vote("voterC", 0, now)
	require.ErrorIs(t, err, ErrPollClosed)

	// Second close always fails
	_, err = p.Close("creator", now)
	require.ErrorIs(t, err, ErrAlreadyClosed)

	// Final tally never changes afterwards
	assert.Equal(t, map[int]int{0: 0, 1: 2}, p.Snapshot().Tally)
}

func TestPoll_VoteInvalidOption(t *testing.T) {
	now := time.Now()
	p, err := NewPoll("p1", "Fruit?", []string{"Apple", "Banana"}, nil, "creator", now, time.Time{})
	require.NoError(t, err)

	_, err = p.Vote("voterA", 5, now)
	require.ErrorIs(t, err, ErrInvalidOption)
	assert.Equal(t, StatusOpen, p.Status())
}

func TestPoll_LazyExpiry(t *testing.T) {
	now := time.Now()
	p, err := NewPoll("p1", "Fruit?", []string{"Apple", "Banana"}, nil, "creator", now, now.Add(time.Hour))
	require.NoError(t, err)

	// Still open just before expiry
	_, err = p.Vote("voterA", 0, now.Add(59*time.Minute))
	require.NoError(t, err)

	// First touch past expiry fails and closes the poll
	_, err = p.Vote("voterB", 1, now.Add(2*time.Hour))
	require.ErrorIs(t, err, ErrPollExpired)
	assert.Equal(t, StatusClosed, p.Snapshot().Status)

	// Subsequent votes see the closed status
	_, err = p.Vote("voterC", 1, now.Add(3*time.Hour))
	require.ErrorIs(t, err, ErrPollClosed)

	// The expired tally keeps the votes that landed in time
	assert.Equal(t, map[int]int{0: 1, 1: 0}, p.Snapshot().Tally)
}

func TestPoll_SnapshotIsolation(t *testing.T) {
	now := time.Now()
	p, err := NewPoll("p1", "Fruit?", []string{"Apple", "Banana"}, nil, "creator", now, time.Time{})
	require.NoError(t, err)

	p.Vote("voterA", 0, now)
	snap := p.Snapshot()

	// Mutating the snapshot does not leak into the poll
	snap.Tally[1] = 99
	snap.Options[0].Label = "mutated"

	fresh := p.Snapshot()
	assert.Equal(t, map[int]int{0: 1, 1: 0}, fresh.Tally)
	assert.Equal(t, "Apple", fresh.Options[0].Label)
}

func TestPoll_RecordRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	p, err := NewPoll("p1", "Fruit?", []string{"Apple", "Banana"}, nil, "creator", now, now.Add(time.Hour))
	require.NoError(t, err)

	p.Vote("voterA", 1, now)

	rec := p.Record()
	restored, err := FromRecord(rec)
	require.NoError(t, err)

	assert.Equal(t, p.ID, restored.ID)
	assert.Equal(t, p.Title, restored.Title)
	assert.Equal(t, p.Options, restored.Options)
	assert.Equal(t, StatusOpen, restored.Status())

	choice, ok := restored.VoterChoice("voterA")
	require.True(t, ok)
	assert.Equal(t, 1, choice)

	// A closed record restores closed
	p.Close("creator", now)
	restored, err = FromRecord(p.Record())
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, restored.Status())
}

func TestFromRecord_Invalid(t *testing.T) {
	_, err := FromRecord(Record{})
	require.ErrorIs(t, err, ErrInvalidArguments)

	_, err = FromRecord(Record{ID: "p1"})
	require.ErrorIs(t, err, ErrInvalidArguments)
}
