package challenge

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ucp-commerce/ucp"
	"github.com/ucp-commerce/ucp/lib/store"
)

// Options tune a Store. Zero values fall back to the protocol defaults.
type Options struct {
	// TTL is how long a challenge stays redeemable.
	TTL time.Duration

	// Retention is how long an expired challenge is kept so a late
	// redemption reports ErrChallengeExpired instead of ErrInvalidChallenge.
	// Once TTL+Retention has passed since issuance the record is gone and a
	// redemption reports ErrInvalidChallenge, the same as an unknown token.
	// Negative means no retention; zero means ucp.DefaultExpiredRetention.
	Retention time.Duration

	// Encoding of records in the backend, "json" or "cbor".
	Encoding string

	// Now and Random are overridable for tests.
	Now    func() time.Time
	Random io.Reader
}

// Store persists outstanding challenges keyed by their token. It is safe for
// concurrent use; the only coordination it needs comes from the backend's
// atomic Delete.
type Store struct {
	db        store.Typed[Challenge]
	ttl       time.Duration
	retention time.Duration
	now       func() time.Time
	random    io.Reader
}

// NewStore wraps an already opened storage backend. The caller owns backend
// and is responsible for closing it.
func NewStore(backend store.Interface, opts Options) (*Store, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: no storage backend", ErrStorageFailure)
	}

	db, err := store.Encoded[Challenge](opts.Encoding, backend, "challenge:")
	if err != nil {
		return nil, err
	}

	result := &Store{
		db:        db,
		ttl:       opts.TTL,
		retention: opts.Retention,
		now:       opts.Now,
		random:    opts.Random,
	}

	if result.ttl <= 0 {
		result.ttl = ucp.DefaultChallengeTTL
	}
	if result.retention < 0 {
		result.retention = 0
	} else if result.retention == 0 {
		result.retention = ucp.DefaultExpiredRetention
	}
	if result.now == nil {
		result.now = time.Now
	}
	if result.random == nil {
		result.random = rand.Reader
	}

	return result, nil
}

// TTL returns the redemption window of new challenges.
func (s *Store) TTL() time.Duration { return s.ttl }

func key(token []byte) string {
	return hex.EncodeToString(token)
}

// Create mints a new challenge, optionally bound to an order total in cents,
// and persists it.
func (s *Store) Create(ctx context.Context, boundTotal *int64) (*Challenge, error) {
	token := make([]byte, ucp.ChallengeSize)
	if _, err := io.ReadFull(s.random, token); err != nil {
		return nil, fmt.Errorf("%w: can't read random token: %w", ErrStorageFailure, err)
	}

	now := s.now().UTC()
	result := &Challenge{
		Token:     token,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}
	if boundTotal != nil {
		bound := *boundTotal
		result.BoundTotal = &bound
	}

	if err := s.db.Set(ctx, key(token), *result, s.ttl+s.retention); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageFailure, err)
	}

	Created.Inc()

	return result, nil
}

// Find returns the stored challenge for token. It does not judge expiry; use
// Challenge.Expired. Unknown and already consumed tokens both yield
// ErrInvalidChallenge.
func (s *Store) Find(ctx context.Context, token []byte) (*Challenge, error) {
	result, err := s.db.Get(ctx, key(token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidChallenge, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrStorageFailure, err)
	}

	return &result, nil
}

// Consume atomically deletes the challenge for token and reports whether
// this call was the one that deleted it. Of any number of concurrent calls
// for the same token, at most one returns true.
func (s *Store) Consume(ctx context.Context, token []byte) (bool, error) {
	if err := s.db.Delete(ctx, key(token)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %w", ErrStorageFailure, err)
	}

	Consumed.Inc()

	return true, nil
}

// Redeem runs the store-side checks that only need the challenge itself:
// it must exist, must not be expired, and if it was bound to a total that
// total must equal claimedCents. It does not consume the challenge.
func (s *Store) Redeem(ctx context.Context, token []byte, claimedCents int64) (*Challenge, error) {
	chall, err := s.Find(ctx, token)
	if err != nil {
		return nil, err
	}

	if chall.Expired(s.now()) {
		return nil, fmt.Errorf("%w: expired at %s", ErrChallengeExpired, chall.ExpiresAt.Format(time.RFC3339))
	}

	if chall.BoundTotal != nil && *chall.BoundTotal != claimedCents {
		return nil, fmt.Errorf("%w: bound to %d cents, claimed %d cents", ErrOrderTotalMismatch, *chall.BoundTotal, claimedCents)
	}

	return chall, nil
}

// Finalize consumes a redeemed challenge and records how long it lived.
// Losing the race to another redemption is reported as ErrInvalidChallenge.
func (s *Store) Finalize(ctx context.Context, chall *Challenge) error {
	ok, err := s.Consume(ctx, chall.Token)
	if err != nil {
		return err
	}

	if !ok {
		return fmt.Errorf("%w: already consumed", ErrInvalidChallenge)
	}

	Lifetime.Observe(s.now().Sub(chall.IssuedAt).Seconds())

	return nil
}
