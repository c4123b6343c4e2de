// Package receipt issues and checks the signed receipts a store returns for
// a confirmed payment.
package receipt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/ucp-commerce/ucp/internal"
	"github.com/ucp-commerce/ucp/lib/mandate"
)

var (
	ErrInvalid = errors.New("receipt: invalid receipt")
	ErrNoKey   = errors.New("receipt: no signing key")
)

// Algorithm is the JWT signing algorithm of every receipt.
const Algorithm = "EdDSA"

// Claims are carried by a receipt. The subject is a fingerprint of the
// consumed challenge token, never the token itself.
type Claims struct {
	OrderTotal string `json:"order_total"`
	jwt.RegisteredClaims
}

// Issuer signs receipts with a store's key.
type Issuer struct {
	priv ed25519.PrivateKey
	name string
	ttl  time.Duration
	now  func() time.Time
}

func NewIssuer(priv ed25519.PrivateKey, name string, ttl time.Duration) (*Issuer, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, ErrNoKey
	}

	return &Issuer{
		priv: priv,
		name: name,
		ttl:  ttl,
		now:  time.Now,
	}, nil
}

func (i *Issuer) PublicKey() ed25519.PublicKey {
	return i.priv.Public().(ed25519.PublicKey)
}

// Issue signs a receipt for the payment of cents against the challenge
// token.
func (i *Issuer) Issue(token []byte, cents int64) (string, error) {
	now := i.now()

	claims := Claims{
		OrderTotal: mandate.FormatCents(cents),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    i.name,
			Subject:   Fingerprint(token),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-1 * time.Minute)),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(i.priv)
}

// Parse checks a receipt against the store's public key and returns its
// claims.
func Parse(receipt string, pub ed25519.PublicKey) (*Claims, error) {
	if len(pub) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, ErrNoKey)
	}

	var claims Claims

	token, err := jwt.ParseWithClaims(receipt, &claims, func(*jwt.Token) (any, error) {
		return pub, nil
	}, jwt.WithValidMethods([]string{Algorithm}), jwt.WithIssuedAt())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	if !token.Valid {
		return nil, ErrInvalid
	}

	return &claims, nil
}

// Fingerprint returns the subject a receipt for token carries.
func Fingerprint(token []byte) string {
	return internal.Fingerprint(token)
}
