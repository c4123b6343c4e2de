// Package ucp contains the protocol constants shared by the store and agent
// sides of the challenge-response mandate protocol.
package ucp

import "time"

// Version is the current version of the UCP services.
//
// This variable is set at build time using the -X linker flag. If not set,
// it defaults to "devel".
var Version = "devel"

const (
	// ChallengeHeader carries the base64-encoded challenge token on a 402 response.
	ChallengeHeader = "X-UCP-Challenge"

	// MandateHeader carries the base64-encoded ed25519 signature on a completion request.
	MandateHeader = "X-UCP-Mandate"

	// RequestIDHeader is echoed back on every response for log correlation.
	RequestIDHeader = "X-Request-Id"
)

const (
	// SessionsPath is where agents request a new challenge.
	SessionsPath = "/sessions"

	// CompletePath is where agents redeem a challenge with a signed mandate.
	CompletePath = "/complete"

	// DiscoveryPath advertises the protocol endpoints of a store.
	DiscoveryPath = "/.well-known/ucp"

	// PublicKeyPath is where an agent publishes its hex-encoded public key.
	PublicKeyPath = "/public-key"
)

// ChallengeSize is the number of random bytes in a challenge token.
const ChallengeSize = 32

// DefaultChallengeTTL is how long a challenge stays redeemable after issuance.
const DefaultChallengeTTL = 5 * time.Minute

// DefaultExpiredRetention is how long an expired challenge is kept around so
// that late redemptions are reported as expired instead of unknown.
const DefaultExpiredRetention = time.Hour

// DefaultReceiptTTL is the lifetime of a payment receipt issued on success.
const DefaultReceiptTTL = 24 * time.Hour
