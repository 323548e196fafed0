package auth

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	var nonce1, nonce2, hash [NonceLen]byte
	nonce1[0] = 0xAA
	nonce2[0] = 0xBB
	hash[0] = 0xCC

	t.Run("client-chal", func(t *testing.T) {
		buf, err := EncodeClientChal(ClientChal{Nonce: nonce1})
		if err != nil {
			t.Fatalf("EncodeClientChal() returned error: %v", err)
		}
		if len(buf) != clientChalLen {
			t.Fatalf("EncodeClientChal() len = %d, want %d", len(buf), clientChalLen)
		}
		got, err := DecodeClientChal(buf)
		if err != nil {
			t.Fatalf("DecodeClientChal() returned error: %v", err)
		}
		if got.Nonce != nonce1 {
			t.Errorf("DecodeClientChal() nonce mismatch")
		}
	})

	t.Run("server-chal-resp", func(t *testing.T) {
		buf, err := EncodeServerChalResp(ServerChalResp{Hash: hash, Nonce: nonce2})
		if err != nil {
			t.Fatalf("EncodeServerChalResp() returned error: %v", err)
		}
		if len(buf) != serverChalRespLen {
			t.Fatalf("EncodeServerChalResp() len = %d, want %d", len(buf), serverChalRespLen)
		}
		got, err := DecodeServerChalResp(buf)
		if err != nil {
			t.Fatalf("DecodeServerChalResp() returned error: %v", err)
		}
		if got.Hash != hash || got.Nonce != nonce2 {
			t.Errorf("DecodeServerChalResp() field mismatch")
		}
	})

	t.Run("client-chal-resp", func(t *testing.T) {
		buf, err := EncodeClientChalResp(ClientChalResp{Hash: hash})
		if err != nil {
			t.Fatalf("EncodeClientChalResp() returned error: %v", err)
		}
		got, err := DecodeClientChalResp(buf)
		if err != nil {
			t.Fatalf("DecodeClientChalResp() returned error: %v", err)
		}
		if got.Hash != hash {
			t.Errorf("DecodeClientChalResp() hash mismatch")
		}
	})

	t.Run("result", func(t *testing.T) {
		for _, failed := range []bool{false, true} {
			buf, err := EncodeResult(Result{Failed: failed})
			if err != nil {
				t.Fatalf("EncodeResult() returned error: %v", err)
			}
			if len(buf) != resultLen {
				t.Fatalf("EncodeResult() len = %d, want %d", len(buf), resultLen)
			}
			got, err := DecodeResult(buf)
			if err != nil {
				t.Fatalf("DecodeResult() returned error: %v", err)
			}
			if got.Failed != failed {
				t.Errorf("DecodeResult() = %v, want %v", got.Failed, failed)
			}
		}
	})
}

func TestDecodeRejectsBadSOH(t *testing.T) {
	buf, err := EncodeClientChal(ClientChal{})
	if err != nil {
		t.Fatalf("EncodeClientChal() returned error: %v", err)
	}
	buf[0] ^= 0xff

	if _, err := DecodeClientChal(buf); err == nil {
		t.Fatalf("DecodeClientChal() with corrupted SOH should fail")
	}
}

func TestDecodeRejectsWrongMsgID(t *testing.T) {
	buf, err := EncodeClientChal(ClientChal{})
	if err != nil {
		t.Fatalf("EncodeClientChal() returned error: %v", err)
	}
	if _, err := DecodeServerChalResp(buf); err == nil {
		t.Fatalf("DecodeServerChalResp() on a client-chal frame should fail")
	}
}

func TestGetFragmentIncompleteBuffer(t *testing.T) {
	buf, err := EncodeServerChalResp(ServerChalResp{})
	if err != nil {
		t.Fatalf("EncodeServerChalResp() returned error: %v", err)
	}

	if _, _, ok := GetFragment(buf[:2]); ok {
		t.Fatalf("GetFragment() on a header-less prefix should report incomplete")
	}
	if _, _, ok := GetFragment(buf[:headerLen+1]); ok {
		t.Fatalf("GetFragment() on a short body should report incomplete")
	}

	begin, count, ok := GetFragment(buf)
	if !ok {
		t.Fatalf("GetFragment() on a complete frame should succeed")
	}
	if begin != headerLen || count != serverChalRespLen-headerLen {
		t.Errorf("GetFragment() = (%d, %d), want (%d, %d)", begin, count, headerLen, serverChalRespLen-headerLen)
	}
}

func TestPeekID(t *testing.T) {
	buf, err := EncodeResult(Result{Failed: true})
	if err != nil {
		t.Fatalf("EncodeResult() returned error: %v", err)
	}
	id, ok := PeekID(buf)
	if !ok {
		t.Fatalf("PeekID() on a valid header should succeed")
	}
	if id != MsgResult {
		t.Errorf("PeekID() = %v, want %v", id, MsgResult)
	}

	if _, ok := PeekID(buf[:1]); ok {
		t.Fatalf("PeekID() on a truncated header should fail")
	}
}

func TestAssembleFeedsReceiveQueue(t *testing.T) {
	h := NewHandle(nil, 0, 1024)
	defer h.Close()

	buf, err := EncodeClientChal(ClientChal{})
	if err != nil {
		t.Fatalf("EncodeClientChal() returned error: %v", err)
	}
	Assemble(h, buf)

	out := make([]byte, len(buf))
	n, err := h.Recv(out, 0)
	if err != nil {
		t.Fatalf("Recv() returned error: %v", err)
	}
	if !bytes.Equal(out[:n], buf) {
		t.Errorf("Recv() after Assemble() did not return the assembled frame")
	}
}
