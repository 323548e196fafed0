package auth

import "crypto/sha256"

// Hash computes SHA-256(nonce ‖ key). Changing the concatenation order
// is a wire break: the peer computes the identical digest to verify a
// challenge response, so both sides must agree on nonce-then-key.
func Hash(nonce, key [NonceLen]byte) ([NonceLen]byte, error) {
	h := sha256.New()

	if _, err := h.Write(nonce[:]); err != nil {
		return [NonceLen]byte{}, newError("hash", KindCrypto, err)
	}
	if _, err := h.Write(key[:]); err != nil {
		return [NonceLen]byte{}, newError("hash", KindCrypto, err)
	}

	sum := h.Sum(nil)

	var out [NonceLen]byte
	copy(out[:], sum)
	return out, nil
}
