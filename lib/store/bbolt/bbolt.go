package bbolt

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"time"

	"github.com/ucp-commerce/ucp/lib/store"
	"go.etcd.io/bbolt"
)

// Store implements store.Interface on a bbolt[1] database file.
//
// Every record lives in one bucket. A value is the 8 byte big-endian expiry
// in Unix nanoseconds followed by the encoded payload, so the cleanup pass
// can judge a record from its first bytes.
//
// bbolt holds an exclusive lock on its file, so only one store instance can
// use a database. Instances behind a load balancer need the valkey or
// postgres backends.
//
// [1]: https://github.com/etcd-io/bbolt
type Store struct {
	bdb    *bbolt.DB
	bucket []byte
	cancel context.CancelFunc
}

const expiryLen = 8

func encodeRecord(expires time.Time, value []byte) []byte {
	result := make([]byte, expiryLen+len(value))
	binary.BigEndian.PutUint64(result, uint64(expires.UnixNano()))
	copy(result[expiryLen:], value)
	return result
}

// live reports whether the record is well formed and unexpired at now.
func live(record []byte, now time.Time) bool {
	if len(record) < expiryLen {
		return false
	}

	return now.UnixNano() < int64(binary.BigEndian.Uint64(record))
}

// Delete removes key if it holds a live record. bbolt runs one read-write
// transaction at a time, so of two racing deletes exactly one sees the
// record.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.bdb.Update(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket(s.bucket)

		if !live(bkt.Get([]byte(key)), time.Now()) {
			return fmt.Errorf("%w: %q", store.ErrNotFound, key)
		}

		return bkt.Delete([]byte(key))
	})
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var result []byte

	err := s.bdb.View(func(tx *bbolt.Tx) error {
		record := tx.Bucket(s.bucket).Get([]byte(key))
		if !live(record, time.Now()) {
			return fmt.Errorf("%w: %q", store.ErrNotFound, key)
		}

		// record is only valid inside the transaction
		result = append([]byte(nil), record[expiryLen:]...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, expiry time.Duration) error {
	record := encodeRecord(time.Now().Add(expiry), value)

	return s.bdb.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(s.bucket).Put([]byte(key), record); err != nil {
			return fmt.Errorf("%w: %q: %w", store.ErrCantEncode, key, err)
		}
		return nil
	})
}

// Close stops the cleanup thread and closes the database file.
func (s *Store) Close() error {
	s.cancel()
	return s.bdb.Close()
}

// cleanup removes every record that is no longer live and returns how many
// it removed.
func (s *Store) cleanup(now time.Time) (int, error) {
	removed := 0

	err := s.bdb.Update(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket(s.bucket)

		var expired [][]byte
		if err := bkt.ForEach(func(k, v []byte) error {
			if !live(v, now) {
				expired = append(expired, append([]byte(nil), k...))
			}
			return nil
		}); err != nil {
			return err
		}

		// the bucket can't be modified while ForEach walks it
		for _, k := range expired {
			if err := bkt.Delete(k); err != nil {
				return fmt.Errorf("can't delete expired record %q: %w", k, err)
			}
			removed++
		}

		return nil
	})

	return removed, err
}

func (s *Store) cleanupThread(ctx context.Context) {
	t := time.NewTicker(5 * time.Minute)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := s.cleanup(now)
			if err != nil {
				slog.Error("bbolt cleanup failed", "err", err)
				continue
			}
			slog.Debug("bbolt cleanup", "removed", n)
		}
	}
}
