package auth

import (
	"crypto/rand"
)

// NewNonce returns a fresh 32 byte nonce filled with cryptographically
// unpredictable bytes. The nonce unpredictability is load-bearing for
// replay resistance, so this deliberately does not port the reference
// implementation's non-cryptographic generator.
func NewNonce() ([NonceLen]byte, error) {
	var n [NonceLen]byte
	if _, err := rand.Read(n[:]); err != nil {
		return n, newError("new-nonce", KindCrypto, err)
	}
	return n, nil
}
