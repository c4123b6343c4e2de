// Package identity holds the agent's long-lived ed25519 keypair and the
// encodings it is exchanged in.
package identity

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrNoKey  = errors.New("identity: no key configured")
	ErrBadKey = errors.New("identity: key is invalid")
)

// Provider exposes the public half of an agent identity. The returned key
// must not change for the lifetime of the process.
type Provider interface {
	PublicKey() ed25519.PublicKey
}

// Static is a Provider for a public key known at startup, which is all a
// store ever has.
type Static struct {
	pub ed25519.PublicKey
}

// NewStatic fails when pub is missing or the wrong size so that a
// misconfigured service refuses to start.
func NewStatic(pub ed25519.PublicKey) (*Static, error) {
	if len(pub) == 0 {
		return nil, ErrNoKey
	}

	if len(pub) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: public key is %d bytes, wanted %d", ErrBadKey, len(pub), ed25519.PublicKeySize)
	}

	return &Static{pub: bytes.Clone(pub)}, nil
}

func (s *Static) PublicKey() ed25519.PublicKey {
	return s.pub
}

// Keypair is a Provider backed by the private key, used on the agent side.
type Keypair struct {
	priv ed25519.PrivateKey
}

func NewKeypair(priv ed25519.PrivateKey) (*Keypair, error) {
	if len(priv) == 0 {
		return nil, ErrNoKey
	}

	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: private key is %d bytes, wanted %d", ErrBadKey, len(priv), ed25519.PrivateKeySize)
	}

	return &Keypair{priv: priv}, nil
}

func (k *Keypair) PublicKey() ed25519.PublicKey {
	return k.priv.Public().(ed25519.PublicKey)
}

func (k *Keypair) PrivateKey() ed25519.PrivateKey {
	return k.priv
}

// PublicKeyHex is the form an agent publishes its key in.
func PublicKeyHex(pub ed25519.PublicKey) string {
	return hex.EncodeToString(pub)
}

// PublicKeyFromHex parses a 64 character hex public key. Surrounding
// whitespace is ignored.
func PublicKeyFromHex(value string) (ed25519.PublicKey, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, ErrNoKey
	}

	keyBytes, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: public key is not hex-encoded: %w", ErrBadKey, err)
	}

	if len(keyBytes) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: public key is not %d bytes long, got %d bytes", ErrBadKey, ed25519.PublicKeySize, len(keyBytes))
	}

	return ed25519.PublicKey(keyBytes), nil
}

// PublicKeyFromFile reads a hex public key from fname.
func PublicKeyFromFile(fname string) (ed25519.PublicKey, error) {
	data, err := os.ReadFile(fname)
	if err != nil {
		return nil, fmt.Errorf("identity: can't read public key file %s: %w", fname, err)
	}

	return PublicKeyFromHex(string(data))
}

// PublicKeySPKI returns the base64 DER SubjectPublicKeyInfo form of pub.
func PublicKeySPKI(pub ed25519.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrBadKey, err)
	}

	return base64.StdEncoding.EncodeToString(der), nil
}

// KeyFromHex builds a private key from its hex-encoded 32 byte seed.
func KeyFromHex(value string) (ed25519.PrivateKey, error) {
	keyBytes, err := hex.DecodeString(strings.TrimSpace(value))
	if err != nil {
		return nil, fmt.Errorf("%w: supplied key is not hex-encoded: %w", ErrBadKey, err)
	}

	if len(keyBytes) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: supplied key is not %d bytes long, got %d bytes", ErrBadKey, ed25519.SeedSize, len(keyBytes))
	}

	return ed25519.NewKeyFromSeed(keyBytes), nil
}

// SeedHex is the inverse of KeyFromHex.
func SeedHex(priv ed25519.PrivateKey) string {
	return hex.EncodeToString(priv.Seed())
}

// EncodePEM marshals priv as an unencrypted PKCS#8 PEM block.
func EncodePEM(priv ed25519.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadKey, err)
	}

	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

// DecodePEM parses a PKCS#8 PEM private key and requires it to be ed25519.
func DecodePEM(data []byte) (ed25519.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block found", ErrBadKey)
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadKey, err)
	}

	priv, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: key is %T, not ed25519", ErrBadKey, key)
	}

	return priv, nil
}

// LoadOrCreate reads the PEM private key at fname. If the file does not
// exist a new key is generated and written there with owner-only
// permissions.
func LoadOrCreate(fname string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(fname)
	switch {
	case err == nil:
		return DecodePEM(data)
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("identity: can't read key file %s: %w", fname, err)
	}

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("identity: can't generate key: %w", err)
	}

	data, err = EncodePEM(priv)
	if err != nil {
		return nil, err
	}

	if dir := filepath.Dir(fname); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("identity: can't create key directory %s: %w", dir, err)
		}
	}

	// O_EXCL so two processes racing on first start don't overwrite each
	// other's key.
	fout, err := os.OpenFile(fname, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return LoadOrCreate(fname)
		}
		return nil, fmt.Errorf("identity: can't create key file %s: %w", fname, err)
	}

	if _, err := fout.Write(data); err != nil {
		fout.Close()
		return nil, fmt.Errorf("identity: can't write key file %s: %w", fname, err)
	}

	if err := fout.Close(); err != nil {
		return nil, fmt.Errorf("identity: can't write key file %s: %w", fname, err)
	}

	return priv, nil
}
