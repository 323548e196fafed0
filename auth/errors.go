package auth

import "fmt"

// Kind classifies why an operation failed. It is the closed set of
// error kinds a caller or a status callback needs to distinguish.
type Kind int

const (
	// KindInvalidParam covers a nil handle, a bad flag combination, or
	// a missing required optional parameter.
	KindInvalidParam Kind = iota
	// KindNoResource covers instance pool exhaustion or allocation
	// failure.
	KindNoResource
	// KindCrypto covers the hash primitive reporting non-success.
	KindCrypto
	// KindTransport covers a send or receive returning a non-timeout
	// failure.
	KindTransport
	// KindTimeout covers a receive that exceeded its window with no
	// bytes delivered. Internal: the protocol worker retries on this.
	KindTimeout
	// KindAuthFailure covers a completed handshake with a mismatched
	// response, on either side.
	KindAuthFailure
	// KindCanceled covers an observed cancellation.
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindInvalidParam:
		return "invalid-param"
	case KindNoResource:
		return "no-resource"
	case KindCrypto:
		return "crypto-error"
	case KindTransport:
		return "transport-error"
	case KindTimeout:
		return "timeout"
	case KindAuthFailure:
		return "auth-failure"
	case KindCanceled:
		return "canceled"
	}
	return "unknown"
}

// Error wraps an underlying error with a Kind, so callers can recover
// which of the closed set of failure categories an API call hit via
// errors.As.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}
