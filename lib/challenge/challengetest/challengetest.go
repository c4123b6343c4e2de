// Package challengetest has helpers for tests that need challenges without
// running a store server.
package challengetest

import (
	"crypto/rand"
	"testing"
	"time"

	"github.com/ucp-commerce/ucp"
	"github.com/ucp-commerce/ucp/lib/challenge"
	"github.com/ucp-commerce/ucp/lib/store/memory"
)

// New returns an unpersisted challenge with a fresh random token that expires
// after the default TTL.
func New(t *testing.T) *challenge.Challenge {
	t.Helper()

	token := make([]byte, ucp.ChallengeSize)
	if _, err := rand.Read(token); err != nil {
		t.Fatalf("can't read random token: %v", err)
	}

	now := time.Now().UTC()

	return &challenge.Challenge{
		Token:     token,
		IssuedAt:  now,
		ExpiresAt: now.Add(ucp.DefaultChallengeTTL),
	}
}

// Clock is a manually advanced time source for challenge.Options.Now.
type Clock struct {
	now time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Now().UTC()}
}

func (c *Clock) Now() time.Time { return c.now }

func (c *Clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// NewStore returns a challenge store backed by process memory. The backend is
// closed when the test ends.
func NewStore(t *testing.T, opts challenge.Options) *challenge.Store {
	t.Helper()

	backend := memory.New(t.Context())
	t.Cleanup(func() { backend.Close() })

	result, err := challenge.NewStore(backend, opts)
	if err != nil {
		t.Fatalf("can't create challenge store: %v", err)
	}

	return result
}
