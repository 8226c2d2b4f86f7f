package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/scurry-works/poll-bot/pkg/config"
	"github.com/scurry-works/poll-bot/pkg/poll"
)

// PostgresStore implements Store using PostgreSQL. Records are stored
// as JSONB under the poll identifier so the schema stays forward
// compatible with the in-memory snapshot shape.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresStore connects to PostgreSQL and ensures the polls table exists.
func NewPostgresStore(ctx context.Context, cfg *config.PostgresConfig, logger *zap.Logger) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	s := &PostgresStore{
		pool:   pool,
		logger: logger,
	}

	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS polls (
			id         TEXT PRIMARY KEY,
			record     JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("ensuring polls table: %w", err)
	}
	return nil
}

// Save upserts the poll record.
func (s *PostgresStore) Save(ctx context.Context, rec poll.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling poll record: %w", err)
	}

	query := `
		INSERT INTO polls (id, record, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (id) DO UPDATE
		SET record = EXCLUDED.record, updated_at = now()`

	if _, err := s.pool.Exec(ctx, query, rec.ID, data); err != nil {
		return fmt.Errorf("upserting poll record: %w", err)
	}
	return nil
}

// Get retrieves the record for a poll identifier.
func (s *PostgresStore) Get(ctx context.Context, id string) (poll.Record, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT record FROM polls WHERE id = $1`, id).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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

// Delete removes the record. Deleting an absent row is a no-op.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM polls WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting poll record: %w", err)
	}
	return nil
}

// List returns all persisted poll records.
func (s *PostgresStore) List(ctx context.Context) ([]poll.Record, error) {
	rows, err := s.pool.Query(ctx, `SELECT record FROM polls ORDER BY updated_at`)
	if err != nil {
		return nil, fmt.Errorf("listing poll records: %w", err)
	}
	defer rows.Close()

	recs := make([]poll.Record, 0)
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning poll record: %w", err)
		}
		var rec poll.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			s.logger.Warn("Skipping unreadable poll row", zap.Error(err))
			continue
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating poll records: %w", err)
	}

	return recs, nil
}

// Close releases all database resources.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

var _ Store = (*PostgresStore)(nil)
