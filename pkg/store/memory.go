package store

import (
	"context"
	"sync"

	"github.com/scurry-works/poll-bot/pkg/poll"
)

// MemoryStore implements Store in process memory. Used in tests and as
// a backend for deployments that can tolerate losing polls on restart.
type MemoryStore struct {
	mu   sync.RWMutex
	recs map[string]poll.Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		recs: make(map[string]poll.Record),
	}
}

func (s *MemoryStore) Save(ctx context.Context, rec poll.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[rec.ID] = rec
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (poll.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.recs[id]
	if !ok {
		return poll.Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.recs, id)
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]poll.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := make([]poll.Record, 0, len(s.recs))
	for _, rec := range s.recs {
		recs = append(recs, rec)
	}
	return recs, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

var _ Store = (*MemoryStore)(nil)
