package mandate

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Vectors produced independently with the RFC 8032 reference implementation
// for seed 00 01 .. 1f and a token of 32 0xa5 bytes.
var (
	vectorSeed  = mustHexString("000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f")
	vectorToken = bytes.Repeat([]byte{0xa5}, 32)
	vectorPub   = "03a107bff3ce10be1d70dd18e74bc09967e4d6309ba50d5f1ddc8664125531b8"
)

func mustHexString(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func vectorSigner(t *testing.T) *Signer {
	t.Helper()
	s, err := NewSigner(ed25519.NewKeyFromSeed(vectorSeed))
	require.NoError(t, err)
	return s
}

func TestMessage(t *testing.T) {
	token := []byte{1, 2, 3}

	assert.Equal(t, append([]byte{1, 2, 3}, "50"...), Message(token, 5000))
	assert.Equal(t, append([]byte{1, 2, 3}, "100.5"...), Message(token, 10050))
}

func TestCrossImplementationVectors(t *testing.T) {
	s := vectorSigner(t)
	assert.Equal(t, vectorPub, hex.EncodeToString(s.PublicKey()))

	for _, tt := range []struct {
		cents int64
		sig   string
	}{
		{5000, "abfdfdc06ca3e2057e1bb1616f56238ab3daa94da9f54be3ad030bd7dd46b4b4bc402951defabc63d97f78b12841fc26153d75ee2d908bd69c89884711043f0a"},
		{10050, "e36d25b2aa0bdd7a3dc3c588a8999731448d5957b6204bb06a5814651ee73c9029fa0d1a2b90a93438bf3842725175652e37736149dbf9fa2b532f24da518008"},
		{1999, "6807f5e351f46712456d4723bbf04c80bddbdb093c33e72982f36a62ff8513778be74c07ab71dcdbf31e9d8e5638deb152c0f19b6157d073f43dd1eef6973c0a"},
	} {
		t.Run(FormatCents(tt.cents), func(t *testing.T) {
			want := mustHex(t, tt.sig)

			assert.Equal(t, want, s.Sign(vectorToken, tt.cents))
			assert.NoError(t, Verify(mustHex(t, vectorPub), vectorToken, tt.cents, want))
		})
	}
}

func TestRoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	s, err := NewSigner(priv)
	require.NoError(t, err)
	assert.Equal(t, pub, s.PublicKey())

	header, err := s.Mandate(vectorToken, 50)
	require.NoError(t, err)

	sig, err := Decode(header)
	require.NoError(t, err)

	require.NoError(t, Verify(pub, vectorToken, 5000, sig))
}

func TestTamperDetection(t *testing.T) {
	s := vectorSigner(t)
	pub := s.PublicKey()
	sig := s.Sign(vectorToken, 10000)

	require.NoError(t, Verify(pub, vectorToken, 10000, sig))

	t.Run("challenge byte", func(t *testing.T) {
		token := bytes.Clone(vectorToken)
		token[7] ^= 0x01
		assert.ErrorIs(t, Verify(pub, token, 10000, sig), ErrInvalidSignature)
	})

	t.Run("total", func(t *testing.T) {
		assert.ErrorIs(t, Verify(pub, vectorToken, 10001, sig), ErrInvalidSignature)
	})

	t.Run("signature byte", func(t *testing.T) {
		bad := bytes.Clone(sig)
		bad[0] ^= 0x80
		assert.ErrorIs(t, Verify(pub, vectorToken, 10000, bad), ErrInvalidSignature)
	})

	t.Run("other key", func(t *testing.T) {
		other, _, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)
		assert.ErrorIs(t, Verify(other, vectorToken, 10000, sig), ErrInvalidSignature)
	})
}

func TestDecode(t *testing.T) {
	s := vectorSigner(t)
	good := Encode(s.Sign(vectorToken, 5000))

	for _, tt := range []struct {
		name  string
		input string
		err   error
	}{
		{name: "valid", input: good},
		{name: "not base64", input: "%%%", err: ErrMalformed},
		{name: "short", input: Encode([]byte("short")), err: ErrMalformed},
		{name: "empty", input: "", err: ErrMalformed},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.input)
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestNoKey(t *testing.T) {
	_, err := NewSigner(nil)
	assert.ErrorIs(t, err, ErrNoKey)

	assert.ErrorIs(t, Verify(nil, vectorToken, 0, make([]byte, ed25519.SignatureSize)), ErrNoKey)
}

func TestMandateRefusesBadAmount(t *testing.T) {
	_, err := vectorSigner(t).Mandate(vectorToken, 10.005)
	assert.ErrorIs(t, err, ErrSubCentAmount)
}
