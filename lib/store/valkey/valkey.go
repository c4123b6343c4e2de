package valkey

import (
	"context"
	"errors"
	"fmt"
	"time"

	valkey "github.com/redis/go-redis/v9"
	"github.com/ucp-commerce/ucp/lib/store"
)

// Store implements store.Interface on top of a valkey (or redis) server.
// Expiry is enforced by the server, and DEL reports how many keys it removed
// in a single command, which is what makes Delete safe to race.
type Store struct {
	rdb       *valkey.Client
	namespace string
}

func (s *Store) key(key string) string {
	if s.namespace == "" {
		return key
	}
	return s.namespace + ":" + key
}

func (s *Store) Delete(ctx context.Context, key string) error {
	n, err := s.rdb.Del(ctx, s.key(key)).Result()
	if err != nil {
		return fmt.Errorf("can't delete from valkey: %w", err)
	}

	if n == 0 {
		return fmt.Errorf("%w: %q", store.ErrNotFound, key)
	}

	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := s.rdb.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, valkey.Nil) {
			return nil, fmt.Errorf("%w: %q", store.ErrNotFound, key)
		}

		return nil, fmt.Errorf("can't fetch from valkey: %w", err)
	}

	return result, nil
}

// Set stores value with a server-side expiry. Valkey rejects a zero or
// negative PX, so such values are stored with the shortest expiry it
// accepts and are gone almost immediately.
func (s *Store) Set(ctx context.Context, key string, value []byte, expiry time.Duration) error {
	if expiry < time.Millisecond {
		expiry = time.Millisecond
	}

	if err := s.rdb.Set(ctx, s.key(key), value, expiry).Err(); err != nil {
		return fmt.Errorf("can't set %q in valkey: %w", key, err)
	}

	return nil
}

func (s *Store) Close() error {
	return s.rdb.Close()
}
