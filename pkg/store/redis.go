package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/scurry-works/poll-bot/pkg/config"
	"github.com/scurry-works/poll-bot/pkg/poll"
)

const keyPrefix = "poll:"

// RedisStore implements Store on top of Redis. Each poll lives under
// the key "poll:<id>" as a JSON document so a real database can ingest
// the records unchanged.
type RedisStore struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg *config.RedisConfig, logger *zap.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return &RedisStore{
		client: client,
		logger: logger,
	}, nil
}

// Save upserts the poll record.
func (s *RedisStore) Save(ctx context.Context, rec poll.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling poll record: %w", err)
	}

	if err := s.client.Set(ctx, keyPrefix+rec.ID, data, 0).Err(); err != nil {
		return fmt.Errorf("saving poll record: %w", err)
	}
	return nil
}

// Get retrieves the record for a poll identifier.
func (s *RedisStore) Get(ctx context.Context, id string) (poll.Record, error) {
	data, err := s.client.Get(ctx, keyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return poll.Record{}, ErrNotFound
		}
		return poll.Record{}, fmt.Errorf("fetching poll record: %w", err)
	}

	var rec poll.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return poll.Record{}, fmt.Errorf("unmarshaling poll record: %w", err)
	}
	return rec, nil
}

// Delete removes the record. Deleting an absent key is a no-op.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, keyPrefix+id).Err(); err != nil {
		return fmt.Errorf("deleting poll record: %w", err)
	}
	return nil
}

// List walks all poll keys with SCAN and returns their records.
// Unreadable entries are skipped and logged rather than failing the
// whole listing.
func (s *RedisStore) List(ctx context.Context) ([]poll.Record, error) {
	var cursor uint64
	recs := make([]poll.Record, 0)

	for {
		keys, next, err := s.client.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scanning poll keys: %w", err)
		}

		for _, key := range keys {
			data, err := s.client.Get(ctx, key).Bytes()
			if err != nil {
				continue
			}
			var rec poll.Record
			if err := json.Unmarshal(data, &rec); err != nil {
				s.logger.Warn("Skipping unreadable poll key", zap.String("key", key), zap.Error(err))
				continue
			}
			recs = append(recs, rec)
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return recs, nil
}

// Close releases the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ Store = (*RedisStore)(nil)
