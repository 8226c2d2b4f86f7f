// Package store mirrors poll state into a durable key-value backend.
package store

import (
	"context"
	"errors"

	"github.com/scurry-works/poll-bot/pkg/poll"
)

// ErrNotFound indicates no record exists for the requested poll.
var ErrNotFound = errors.New("poll record not found")

// Store defines the interface for poll persistence. Save is an upsert
// and Delete is idempotent: deleting an absent key is not an error.
type Store interface {
	Save(ctx context.Context, rec poll.Record) error
	Get(ctx context.Context, id string) (poll.Record, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]poll.Record, error)
	Close() error
}
