// Package mandate builds and checks the signed authorization an agent
// presents to a store: an ed25519 signature over the raw challenge token
// followed by the canonical order total.
package mandate

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
)

var (
	ErrInvalidSignature = errors.New("mandate: invalid signature")
	ErrMalformed        = errors.New("mandate: malformed signature")
	ErrNoKey            = errors.New("mandate: no key")
)

// Message returns the exact byte sequence that is signed for a mandate.
func Message(token []byte, cents int64) []byte {
	total := FormatCents(cents)

	result := make([]byte, 0, len(token)+len(total))
	result = append(result, token...)
	result = append(result, total...)

	return result
}

// Encode returns the transport form of a signature used in the
// X-UCP-Mandate header.
func Encode(sig []byte) string {
	return base64.StdEncoding.EncodeToString(sig)
}

// Decode parses the X-UCP-Mandate header value.
func Decode(s string) ([]byte, error) {
	sig, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: not base64: %w", ErrMalformed, err)
	}

	if len(sig) != ed25519.SignatureSize {
		return nil, fmt.Errorf("%w: signature is %d bytes, wanted %d", ErrMalformed, len(sig), ed25519.SignatureSize)
	}

	return sig, nil
}

// Verify checks sig against the mandate message for token and cents.
func Verify(pub ed25519.PublicKey, token []byte, cents int64, sig []byte) error {
	if len(pub) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: public key is %d bytes", ErrNoKey, len(pub))
	}

	if !ed25519.Verify(pub, Message(token, cents), sig) {
		return ErrInvalidSignature
	}

	return nil
}

// Signer produces mandates with an agent's private key.
type Signer struct {
	key ed25519.PrivateKey
}

func NewSigner(key ed25519.PrivateKey) (*Signer, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: private key is %d bytes", ErrNoKey, len(key))
	}

	return &Signer{key: key}, nil
}

func (s *Signer) PublicKey() ed25519.PublicKey {
	return s.key.Public().(ed25519.PublicKey)
}

// Sign signs the mandate message for token and cents.
func (s *Signer) Sign(token []byte, cents int64) []byte {
	return ed25519.Sign(s.key, Message(token, cents))
}

// Mandate signs for an order total given as a currency amount and returns
// the header value to send. Amounts that have no canonical form are refused.
func (s *Signer) Mandate(token []byte, amount float64) (string, error) {
	cents, err := ToCents(amount)
	if err != nil {
		return "", err
	}

	return Encode(s.Sign(token, cents)), nil
}
