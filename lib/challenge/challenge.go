package challenge

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/ucp-commerce/ucp"
)

// Challenge is a single-use, time-bounded capability a store issues before it
// accepts a mandate to pay.
type Challenge struct {
	Token      []byte    `json:"token" cbor:"1,keyasint"`                          // ucp.ChallengeSize random bytes
	BoundTotal *int64    `json:"boundTotal,omitempty" cbor:"2,keyasint,omitempty"` // expected order total in cents, if bound at issuance
	IssuedAt   time.Time `json:"issuedAt" cbor:"3,keyasint"`
	ExpiresAt  time.Time `json:"expiresAt" cbor:"4,keyasint"`
}

// Encode returns the transport (base64) form of the token.
func (c *Challenge) Encode() string {
	return EncodeToken(c.Token)
}

// Expired reports whether the challenge can no longer be redeemed at now.
// A challenge is dead from the instant it reaches ExpiresAt.
func (c *Challenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// EncodeToken returns the standard base64 form used in the X-UCP-Challenge
// header and in request bodies.
func EncodeToken(token []byte) string {
	return base64.StdEncoding.EncodeToString(token)
}

// DecodeToken parses a transport-encoded token. Anything that is not standard
// base64 of exactly ucp.ChallengeSize bytes is rejected.
func DecodeToken(s string) ([]byte, error) {
	token, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: token is not base64: %w", ErrInvalidFormat, err)
	}

	if len(token) != ucp.ChallengeSize {
		return nil, fmt.Errorf("%w: token is %d bytes, wanted %d", ErrInvalidFormat, len(token), ucp.ChallengeSize)
	}

	return token, nil
}
