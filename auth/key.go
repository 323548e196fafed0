package auth

import "crypto/subtle"

// defaultSharedKey is the compile-time default shared key used by a
// session that does not supply its own. Production deployments should
// always override this via Config.SharedKey.
var defaultSharedKey = [SharedKeyLen]byte{
	0xBD, 0x84, 0xDC, 0x6E, 0x5C, 0x77, 0x41, 0x58, 0xE8, 0xFB, 0x1D, 0xB9, 0x95, 0x39, 0x20, 0xE4,
	0xC5, 0x03, 0x69, 0x9D, 0xBC, 0x53, 0x08, 0x20, 0x1E, 0xF4, 0x72, 0x8E, 0x90, 0x56, 0x49, 0xA8,
}

// DefaultSharedKey returns the compile-time default shared key. Unlike
// the reference implementation, this package keeps the shared key on
// the Session rather than as mutable process-wide state: this function
// is the process-wide *default* a Session falls back to when Config
// does not set one, not an active key that a running session shares
// with others (see SPEC_FULL.md §9, Open Question 2).
func DefaultSharedKey() [SharedKeyLen]byte {
	return defaultSharedKey
}

// constantTimeEqual reports whether two digests match, in time
// independent of where they first differ. Digest lengths here are
// fixed and public, so only the comparison of their content is
// timing-sensitive.
func constantTimeEqual(a, b [NonceLen]byte) bool {
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}
