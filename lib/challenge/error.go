package challenge

import (
	"errors"
	"fmt"
	"net/http"
)

// Protocol error taxonomy. The first six are caused by the caller and are
// reported as client errors; the last two are operational.
var (
	ErrMissingMandate     = errors.New("challenge: missing mandate")
	ErrInvalidRequestBody = errors.New("challenge: invalid request body")
	ErrInvalidChallenge   = errors.New("challenge: invalid challenge")
	ErrChallengeExpired   = errors.New("challenge: challenge expired")
	ErrOrderTotalMismatch = errors.New("challenge: order total mismatch")
	ErrInvalidSignature   = errors.New("challenge: invalid signature")
	ErrMissingServerKey   = errors.New("challenge: missing server key")
	ErrStorageFailure     = errors.New("challenge: storage failure")
)

var (
	ErrMissingField  = errors.New("challenge: missing field")
	ErrInvalidFormat = errors.New("challenge: field has invalid format")
)

// Code is the stable machine-readable name of a protocol failure.
type Code string

const (
	CodeMissingMandate     Code = "missing_mandate"
	CodeInvalidRequestBody Code = "invalid_request_body"
	CodeInvalidChallenge   Code = "invalid_challenge"
	CodeChallengeExpired   Code = "challenge_expired"
	CodeOrderTotalMismatch Code = "order_total_mismatch"
	CodeInvalidSignature   Code = "invalid_signature"
	CodeMissingServerKey   Code = "missing_server_key"
	CodeStorageFailure     Code = "storage_failure"
)

type kind struct {
	err    error
	code   Code
	reason string
	status int
}

// kinds is ordered; the first match wins when an error wraps several sentinels.
var kinds = []kind{
	{ErrMissingMandate, CodeMissingMandate, "Missing X-UCP-Mandate header", http.StatusBadRequest},
	{ErrInvalidRequestBody, CodeInvalidRequestBody, "Invalid request body", http.StatusBadRequest},
	{ErrInvalidChallenge, CodeInvalidChallenge, "Invalid challenge", http.StatusBadRequest},
	{ErrChallengeExpired, CodeChallengeExpired, "Challenge expired", http.StatusBadRequest},
	{ErrOrderTotalMismatch, CodeOrderTotalMismatch, "Order total mismatch", http.StatusBadRequest},
	{ErrInvalidSignature, CodeInvalidSignature, "Invalid signature", http.StatusBadRequest},
	{ErrMissingServerKey, CodeMissingServerKey, "Missing AGENT_PUBLIC_KEY", http.StatusInternalServerError},
	{ErrStorageFailure, CodeStorageFailure, "Failed to complete payment", http.StatusInternalServerError},
}

// NewError classifies privateReason against the taxonomy sentinels. The
// public reason and status code come from the first sentinel it wraps;
// anything unclassified is a 500.
func NewError(verb string, privateReason error) *Error {
	for _, k := range kinds {
		if errors.Is(privateReason, k.err) {
			return &Error{
				Verb:          verb,
				Code:          k.code,
				PublicReason:  k.reason,
				PrivateReason: privateReason,
				StatusCode:    k.status,
			}
		}
	}

	return &Error{
		Verb:          verb,
		Code:          CodeStorageFailure,
		PublicReason:  "Internal server error",
		PrivateReason: privateReason,
		StatusCode:    http.StatusInternalServerError,
	}
}

type Error struct {
	PrivateReason error
	Verb          string
	Code          Code
	PublicReason  string
	StatusCode    int
}

func (e *Error) Error() string {
	return fmt.Sprintf("challenge: error when processing challenge: %s: %v", e.Verb, e.PrivateReason)
}

func (e *Error) Unwrap() error {
	return e.PrivateReason
}

// Retryable reports whether repeating the same request could succeed.
// Storage failures are transient; every other failure needs a new session,
// a new signature or a fixed configuration.
func (e *Error) Retryable() bool {
	return e.Code == CodeStorageFailure
}
