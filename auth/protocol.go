package auth

import (
	"errors"
	"time"

	"github.com/go-kit/kit/log/level"
)

// errCanceled is a sentinel used internally to unwind the protocol
// worker once cancellation is observed; it never reaches a caller.
var errCanceled = errors.New("session canceled")

func isTimeout(err error) bool {
	var aerr *Error
	return errors.As(err, &aerr) && aerr.Kind == KindTimeout
}

// rxTimeout is the blocking receive window from SPEC_FULL.md §4.5,
// expressed as a time.Duration.
const rxTimeout = RxTimeout * time.Millisecond

// recvFull accumulates exactly n bytes from the transport, retrying
// across the receive timeout window until the frame is fully
// reassembled (SPEC_FULL.md scenario 6: a message delivered as
// several partial bursts). Cancellation is checked after every
// receive attempt completes, whether it timed out or not.
func (s *Session) recvFull(n int) ([]byte, error) {
	buf := make([]byte, 0, n)
	for len(buf) < n {
		tmp := make([]byte, n-len(buf))
		read, err := s.xport.Recv(tmp, rxTimeout)

		if s.isCanceled() {
			return nil, errCanceled
		}

		if err != nil {
			if isTimeout(err) {
				continue
			}
			return nil, err
		}

		buf = append(buf, tmp[:read]...)
	}
	return buf, nil
}

// send checks cancellation before handing buf to the transport, per
// SPEC_FULL.md §4.5's cancellation poll points.
func (s *Session) send(buf []byte) error {
	if s.isCanceled() {
		return errCanceled
	}
	_, err := s.xport.Send(buf)
	if err != nil {
		return newError("send", KindTransport, err)
	}
	return nil
}

// terminate maps a fatal error from the send/recv path onto a
// terminal status: a canceled session always reports StatusCanceled
// (already set by Session.Cancel, so this is a no-op), anything else
// is a transport failure.
func (s *Session) terminate(err error) {
	if errors.Is(err, errCanceled) {
		s.setStatus(StatusCanceled)
		return
	}
	level.Error(s.logger).Log("msg", "session terminated", "err", err)
	s.setStatus(StatusFailed)
}

// fireAndForgetResult sends a Result frame best-effort: per
// SPEC_FULL.md §4.5, a result sent on mismatch is not retried and its
// send failure does not change the session's terminal status, which
// is already determined by the mismatch itself.
func (s *Session) fireAndForgetResult(failed bool) {
	buf, err := EncodeResult(Result{Failed: failed})
	if err != nil {
		return
	}
	if err := s.send(buf); err != nil {
		level.Debug(s.logger).Log("msg", "result frame not delivered", "err", err)
	}
}

// runClient drives the client side of the four-message handshake:
// send a nonce, verify the server's response, respond to the server's
// own nonce, then wait for the verdict.
func (s *Session) runClient() {
	key := s.cfg.sharedKey()

	nc, err := NewNonce()
	if err != nil {
		s.setStatus(StatusFailed)
		return
	}

	chalBytes, err := EncodeClientChal(ClientChal{Nonce: nc})
	if err != nil {
		s.setStatus(StatusFailed)
		return
	}
	if err := s.send(chalBytes); err != nil {
		s.terminate(err)
		return
	}

	body, err := s.recvFull(serverChalRespLen)
	if err != nil {
		s.terminate(err)
		return
	}
	resp, err := DecodeServerChalResp(body)
	if err != nil {
		level.Error(s.logger).Log("msg", "invalid server-chal-resp frame", "err", err)
		s.setStatus(StatusFailed)
		return
	}

	expected, err := Hash(nc, key)
	if err != nil {
		s.setStatus(StatusFailed)
		return
	}

	if !constantTimeEqual(expected, resp.Hash) {
		level.Error(s.logger).Log("msg", "server authentication failed")
		s.fireAndForgetResult(true)
		s.setStatus(StatusAuthenticationFailed)
		return
	}

	clientHash, err := Hash(resp.Nonce, key)
	if err != nil {
		// Even though the server passed, the client cannot compute
		// its own response: this is a local failure, not an auth
		// mismatch.
		s.setStatus(StatusFailed)
		return
	}

	respBytes, err := EncodeClientChalResp(ClientChalResp{Hash: clientHash})
	if err != nil {
		s.setStatus(StatusFailed)
		return
	}
	if err := s.send(respBytes); err != nil {
		s.terminate(err)
		return
	}

	s.setStatus(StatusInProcess)

	resultBuf, err := s.recvFull(resultLen)
	if err != nil {
		s.terminate(err)
		return
	}
	result, err := DecodeResult(resultBuf)
	if err != nil {
		level.Error(s.logger).Log("msg", "invalid result frame", "err", err)
		s.setStatus(StatusFailed)
		return
	}

	if result.Failed {
		s.setStatus(StatusAuthenticationFailed)
		return
	}
	s.setStatus(StatusSuccessful)
}

// runServer drives the server side of the four-message handshake:
// wait for the client's nonce, respond with a hash and its own nonce,
// then wait for either the client's response or an early failure
// result, and issue the final verdict.
func (s *Session) runServer() {
	key := s.cfg.sharedKey()

	body, err := s.recvFull(clientChalLen)
	if err != nil {
		s.terminate(err)
		return
	}
	chal, err := DecodeClientChal(body)
	if err != nil {
		level.Error(s.logger).Log("msg", "invalid client-chal frame", "err", err)
		s.setStatus(StatusFailed)
		return
	}

	ns, err := NewNonce()
	if err != nil {
		s.setStatus(StatusFailed)
		return
	}

	clientHash, err := Hash(chal.Nonce, key)
	if err != nil {
		s.setStatus(StatusFailed)
		return
	}

	respBytes, err := EncodeServerChalResp(ServerChalResp{Hash: clientHash, Nonce: ns})
	if err != nil {
		s.setStatus(StatusFailed)
		return
	}
	if err := s.send(respBytes); err != nil {
		s.terminate(err)
		return
	}

	s.setStatus(StatusInProcess)

	// Read the header first: the client may have rejected us at
	// message 2 and sent an early Result frame instead of the
	// expected ClientChalResp.
	hdr, err := s.recvFull(headerLen)
	if err != nil {
		s.terminate(err)
		return
	}

	id, ok := PeekID(hdr)
	if !ok {
		s.setStatus(StatusFailed)
		return
	}

	switch id {
	case MsgResult:
		if _, err := s.recvFull(resultLen - headerLen); err != nil {
			s.terminate(err)
			return
		}
		level.Error(s.logger).Log("msg", "client reported authentication failure")
		s.setStatus(StatusAuthenticationFailed)

	case MsgClientChalResp:
		rest, err := s.recvFull(clientRespLen - headerLen)
		if err != nil {
			s.terminate(err)
			return
		}
		full := append(append([]byte{}, hdr...), rest...)
		resp, err := DecodeClientChalResp(full)
		if err != nil {
			level.Error(s.logger).Log("msg", "invalid client-chal-resp frame", "err", err)
			s.setStatus(StatusFailed)
			return
		}

		expected, err := Hash(ns, key)
		if err != nil {
			s.setStatus(StatusFailed)
			return
		}

		if !constantTimeEqual(expected, resp.Hash) {
			level.Error(s.logger).Log("msg", "client authentication failed")
			s.fireAndForgetResult(true)
			s.setStatus(StatusAuthenticationFailed)
			return
		}

		okBytes, err := EncodeResult(Result{Failed: false})
		if err != nil {
			s.setStatus(StatusFailed)
			return
		}
		if err := s.send(okBytes); err != nil {
			s.terminate(err)
			return
		}
		s.setStatus(StatusSuccessful)

	default:
		level.Error(s.logger).Log("msg", "unexpected message id awaiting client response", "id", id)
		s.setStatus(StatusFailed)
	}
}
