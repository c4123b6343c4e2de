package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ucp-commerce/ucp/lib/store"
)

// Store implements store.Interface on a postgres table. Unlike bbolt and
// sqlite it can be shared by any number of store replicas.
type Store struct {
	pool   *pgxpool.Pool
	table  string
	cancel context.CancelFunc
}

func (s *Store) createSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
	key TEXT PRIMARY KEY,
	value BYTEA NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS %[1]s_expires_at_idx ON %[1]s (expires_at);
`, s.table))
	if err != nil {
		return fmt.Errorf("can't create %s table: %w", s.table, err)
	}

	return nil
}

// Delete removes key only if it is still live. Postgres row locking makes a
// concurrent second DELETE of the same row wait and then affect zero rows.
func (s *Store) Delete(ctx context.Context, key string) error {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`
DELETE FROM %s
WHERE key=$1 AND expires_at > $2
`, s.table), key, time.Now())
	if err != nil {
		return fmt.Errorf("can't delete from postgres: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %q", store.ErrNotFound, key)
	}

	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var result []byte
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`
SELECT value
FROM %s
WHERE key=$1 AND expires_at > $2
`, s.table), key, time.Now()).Scan(&result)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %q", store.ErrNotFound, key)
		}
		return nil, fmt.Errorf("can't fetch from postgres: %w", err)
	}

	return result, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, expiry time.Duration) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
INSERT INTO %s (key, value, expires_at)
VALUES ($1, $2, $3)
ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, expires_at=EXCLUDED.expires_at
`, s.table), key, value, time.Now().Add(expiry))
	if err != nil {
		return fmt.Errorf("can't set %q in postgres: %w", key, err)
	}

	return nil
}

func (s *Store) Close() error {
	s.cancel()
	s.pool.Close()
	return nil
}

func (s *Store) cleanupThread(ctx context.Context) {
	t := time.NewTicker(5 * time.Minute)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			tag, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE expires_at <= $1`, s.table), time.Now())
			if err != nil {
				slog.Error("error during postgres cleanup", "err", err)
				continue
			}
			slog.Debug("postgres cleanup", "removed", tag.RowsAffected())
		}
	}
}
