package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scurry-works/poll-bot/pkg/poll"
)

func testRecord(id string) poll.Record {
	return poll.Record{
		ID:        id,
		Title:     "Fruit?",
		Options:   []poll.Option{{Index: 0, Label: "Apple"}, {Index: 1, Label: "Banana"}},
		Status:    poll.StatusOpen,
		CreatorID: "creator",
		CreatedAt: time.Now().UTC(),
		Votes:     map[string]int{"voterA": 0},
	}
}

func TestMemoryStore_SaveGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	rec := testRecord("p1")
	require.NoError(t, s.Save(ctx, rec))

	got, err := s.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	// Save is an upsert
	rec.Status = poll.StatusClosed
	require.NoError(t, s.Save(ctx, rec))
	got, err = s.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, poll.StatusClosed, got.Status)
}

func TestMemoryStore_GetMissing(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.Get(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_DeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Save(ctx, testRecord("p1")))
	require.NoError(t, s.Delete(ctx, "p1"))

	_, err := s.Get(ctx, "p1")
	require.ErrorIs(t, err, ErrNotFound)

	// Deleting an absent key is not an error
	require.NoError(t, s.Delete(ctx, "p1"))
}

func TestMemoryStore_List(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	recs, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs)

	require.NoError(t, s.Save(ctx, testRecord("p1")))
	require.NoError(t, s.Save(ctx, testRecord("p2")))

	recs, err = s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}
