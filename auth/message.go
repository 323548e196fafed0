package auth

import (
	"bytes"
	"encoding/binary"
	"errors"
)

// ClientChal is message id 1, client to server: the client's nonce.
type ClientChal struct {
	Nonce [NonceLen]byte
}

// ServerChalResp is message id 2, server to client: the server's hash
// of the client's nonce, followed by the server's own nonce.
type ServerChalResp struct {
	Hash  [NonceLen]byte
	Nonce [NonceLen]byte
}

// ClientChalResp is message id 3, client to server: the client's hash
// of the server's nonce.
type ClientChalResp struct {
	Hash [NonceLen]byte
}

// Result is message id 4 (or an early substitute for it sent by the
// client on a message-2 mismatch): a single pass/fail byte, 0 for
// success, non-zero for failure.
type Result struct {
	Failed bool
}

// frameLen returns the total on-wire byte length of a frame with the
// given message id, header included.
func frameLen(id MsgID) (int, bool) {
	switch id {
	case MsgClientChal:
		return clientChalLen, true
	case MsgServerChalResp:
		return serverChalRespLen, true
	case MsgClientChalResp:
		return clientRespLen, true
	case MsgResult:
		return resultLen, true
	}
	return 0, false
}

func writeHeader(buf *bytes.Buffer, id MsgID) error {
	if err := binary.Write(buf, binary.LittleEndian, SOH); err != nil {
		return err
	}
	return binary.Write(buf, binary.LittleEndian, id)
}

// EncodeClientChal serializes a ClientChal frame.
func EncodeClientChal(m ClientChal) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeHeader(&buf, MsgClientChal); err != nil {
		return nil, err
	}
	if _, err := buf.Write(m.Nonce[:]); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeServerChalResp serializes a ServerChalResp frame.
func EncodeServerChalResp(m ServerChalResp) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeHeader(&buf, MsgServerChalResp); err != nil {
		return nil, err
	}
	if _, err := buf.Write(m.Hash[:]); err != nil {
		return nil, err
	}
	if _, err := buf.Write(m.Nonce[:]); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeClientChalResp serializes a ClientChalResp frame.
func EncodeClientChalResp(m ClientChalResp) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeHeader(&buf, MsgClientChalResp); err != nil {
		return nil, err
	}
	if _, err := buf.Write(m.Hash[:]); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeResult serializes a Result frame.
func EncodeResult(m Result) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeHeader(&buf, MsgResult); err != nil {
		return nil, err
	}
	var b byte
	if m.Failed {
		b = 1
	}
	if err := buf.WriteByte(b); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// header reads the SOH and message id out of the first three bytes of
// buf. ok is false if buf is too short to contain a header yet.
func header(buf []byte) (soh uint16, id MsgID, ok bool) {
	if len(buf) < headerLen {
		return 0, 0, false
	}
	soh = binary.LittleEndian.Uint16(buf[0:2])
	id = MsgID(buf[2])
	return soh, id, true
}

// GetFragment reports whether buf contains one complete, validly
// framed message. When it does, begin and count describe the body
// range (the bytes following the 3 byte header) within buf. It does
// not validate SOH or id beyond what is needed to determine the
// expected frame length; callers still run DecodeXxx (which rejects a
// bad SOH) before trusting the body.
func GetFragment(buf []byte) (begin, count int, ok bool) {
	_, id, ok := header(buf)
	if !ok {
		return 0, 0, false
	}

	want, known := frameLen(id)
	if !known {
		return 0, 0, false
	}
	if len(buf) < want {
		return 0, 0, false
	}

	return headerLen, want - headerLen, true
}

// DecodeClientChal validates the header and decodes a ClientChal body.
func DecodeClientChal(buf []byte) (ClientChal, error) {
	soh, id, ok := header(buf)
	if !ok || soh != SOH || id != MsgClientChal || len(buf) < clientChalLen {
		return ClientChal{}, newError("decode-client-chal", KindTransport, errBadFrame)
	}
	var m ClientChal
	copy(m.Nonce[:], buf[headerLen:clientChalLen])
	return m, nil
}

// DecodeServerChalResp validates the header and decodes a
// ServerChalResp body.
func DecodeServerChalResp(buf []byte) (ServerChalResp, error) {
	soh, id, ok := header(buf)
	if !ok || soh != SOH || id != MsgServerChalResp || len(buf) < serverChalRespLen {
		return ServerChalResp{}, newError("decode-server-chal-resp", KindTransport, errBadFrame)
	}
	var m ServerChalResp
	copy(m.Hash[:], buf[headerLen:headerLen+NonceLen])
	copy(m.Nonce[:], buf[headerLen+NonceLen:serverChalRespLen])
	return m, nil
}

// DecodeClientChalResp validates the header and decodes a
// ClientChalResp body.
func DecodeClientChalResp(buf []byte) (ClientChalResp, error) {
	soh, id, ok := header(buf)
	if !ok || soh != SOH || id != MsgClientChalResp || len(buf) < clientRespLen {
		return ClientChalResp{}, newError("decode-client-chal-resp", KindTransport, errBadFrame)
	}
	var m ClientChalResp
	copy(m.Hash[:], buf[headerLen:clientRespLen])
	return m, nil
}

// DecodeResult validates the header and decodes a Result body.
func DecodeResult(buf []byte) (Result, error) {
	soh, id, ok := header(buf)
	if !ok || soh != SOH || id != MsgResult || len(buf) < resultLen {
		return Result{}, newError("decode-result", KindTransport, errBadFrame)
	}
	return Result{Failed: buf[headerLen] != 0}, nil
}

// PeekID reports the message id of a buffer that has at least a
// header's worth of bytes, without validating the body length. The
// server uses this to detect the client sending an early Result frame
// in place of a ClientChalResp (see Session.runServer).
func PeekID(buf []byte) (MsgID, bool) {
	soh, id, ok := header(buf)
	if !ok || soh != SOH {
		return 0, false
	}
	return id, true
}

// Assemble pushes received bytes into the transport handle's receive
// queue. The reference UDP transport calls this once per received
// datagram; a stream transport would call it as bytes arrive and rely
// on the queue's blocking Recv to coalesce up to each message's known
// length.
func Assemble(h *Handle, buf []byte) {
	h.PutRecv(buf)
}

var errBadFrame = errors.New("bad SOH or unexpected message id")
