package internal

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// FastHash is a high-performance non-cryptographic hash function suitable for
// log correlation and other use cases where cryptographic security is not
// required.
func FastHash(text string) string {
	h := xxhash.Sum64String(text)
	return strconv.FormatUint(h, 16)
}

// Fingerprint identifies a secret value such as a challenge token in logs,
// metrics and receipts without revealing it.
func Fingerprint(secret []byte) string {
	return strconv.FormatUint(xxhash.Sum64(secret), 16)
}
