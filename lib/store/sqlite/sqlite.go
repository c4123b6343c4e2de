package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ucp-commerce/ucp/lib/store"
)

// Store implements store.Interface backed by a sqlite database file. It is a
// single-host backend like bbolt, but tolerates several processes opening
// the same file.
type Store struct {
	db     *sql.DB
	cancel context.CancelFunc
}

// Delete removes key only if it is still live. The condition and the removal
// are one statement, so RowsAffected tells exactly one racer that it won.
func (s *Store) Delete(ctx context.Context, key string) error {
	const q = `
		DELETE FROM ucp_store
		WHERE key = ? AND expires_at > ?
	`
	res, err := s.db.ExecContext(ctx, q, key, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}

	if n == 0 {
		return fmt.Errorf("%w: %q", store.ErrNotFound, key)
	}

	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	const q = `
		SELECT value
		FROM ucp_store
		WHERE key = ? AND expires_at > ?
		LIMIT 1
	`
	var result []byte
	if err := s.db.QueryRowContext(ctx, q, key, time.Now().UnixNano()).Scan(&result); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %q", store.ErrNotFound, key)
		}
		return nil, fmt.Errorf("scan %q: %w", key, err)
	}

	return result, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, expiry time.Duration) error {
	const q = `
		INSERT INTO ucp_store (key, value, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at
	`
	if _, err := s.db.ExecContext(ctx, q, key, value, time.Now().Add(expiry).UnixNano()); err != nil {
		return fmt.Errorf("%w: insert %q: %w", store.ErrCantEncode, key, err)
	}

	return nil
}

// Close stops the cleanup thread and closes the database.
func (s *Store) Close() error {
	s.cancel()
	return s.db.Close()
}

func (s *Store) cleanup(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM ucp_store WHERE expires_at <= ?`, time.Now().UnixNano())
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

func (s *Store) cleanupThread(ctx context.Context) {
	t := time.NewTicker(5 * time.Minute)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := s.cleanup(ctx)
			if err != nil {
				slog.Error("error during sqlite cleanup", "err", err)
				continue
			}
			slog.Debug("sqlite cleanup", "removed", n)
		}
	}
}
