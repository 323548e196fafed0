package auth

import (
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

// EventType enumerates asynchronous notifications the protocol worker
// (or an external monitor, see internal/netmon) may deliver to a
// transport's lower layer.
type EventType int

const (
	// EventNone is the zero value; never delivered.
	EventNone EventType = iota
	// EventConnect signals the underlying medium has come up.
	EventConnect
	// EventDisconnect signals the underlying medium has gone down.
	EventDisconnect
	// EventReconnect signals the underlying medium came back up after
	// a disconnect.
	EventReconnect
	// EventTransportSpecific carries a notification meaningful only to
	// the specific lower transport in use (e.g. a wireless link's
	// association state changing).
	EventTransportSpecific
)

// Event is delivered to a transport's Event hook.
type Event struct {
	Type EventType
	// Ctx carries transport-specific event detail. The core never
	// inspects it.
	Ctx interface{}
}

// SendFunc is a direct-send path installed by a lower transport that
// can buffer outbound data itself, bypassing the handle's own send
// queue.
type SendFunc func(buf []byte) (int, error)

// Transport is the contract a lower transport layer binds to. It is
// implemented by Handle; lower transports are built on top of a
// *Handle rather than implementing this interface themselves, since
// the handle owns the shared queueing/context machinery every lower
// transport needs (see xport/udp for the reference implementation).
type Transport interface {
	Send(buf []byte) (int, error)
	Recv(buf []byte, timeout time.Duration) (int, error)
	RecvPeek(buf []byte) (int, error)
	PutRecv(buf []byte) int
	MaxPayload() int
	Event(evt Event) error
	NumSendQueuedBytes() int
	NumRecvQueueBytes() int
	NumRecvQueueBytesWait(timeout time.Duration) int
	Close() error
}

// Handle is the opaque transport handle described in SPEC_FULL.md
// §4.3: it owns a context slot the lower transport uses for its own
// state, an optional direct-send function, and the bounded
// send/receive queues that give the protocol worker a uniform byte
// stream regardless of which lower transport is bound.
type Handle struct {
	logger log.Logger

	instance   InstanceID
	maxPayload int

	sendQ *byteQueue
	recvQ *byteQueue

	sendFunc SendFunc

	ctx interface{}

	closed bool
}

// NewHandle allocates a transport handle for the given instance,
// reporting maxPayload as the lower layer's single-frame capacity.
// The lower transport is expected to call SetContext and, if it wants
// to bypass the send queue, SetSendFunc immediately afterwards.
func NewHandle(logger log.Logger, instance InstanceID, maxPayload int) *Handle {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Handle{
		logger:     log.With(logger, "component", "xport-handle", "instance", instance),
		instance:   instance,
		maxPayload: maxPayload,
		sendQ:      newByteQueue(defaultQueueBytes),
		recvQ:      newByteQueue(defaultQueueBytes),
	}
}

// SetContext stores the lower transport's per-handle state. Passing
// nil clears it.
func (h *Handle) SetContext(ctx interface{}) { h.ctx = ctx }

// Context returns whatever the lower transport last set via
// SetContext, or nil.
func (h *Handle) Context() interface{} { return h.ctx }

// SetSendFunc installs a direct-send path. When set, Send calls fn
// instead of enqueuing to the send queue.
func (h *Handle) SetSendFunc(fn SendFunc) { h.sendFunc = fn }

// Send accepts buf for transmission, either handing it directly to an
// installed SendFunc or enqueuing it on the send queue for the lower
// transport to drain.
func (h *Handle) Send(buf []byte) (int, error) {
	if h.sendFunc != nil {
		n, err := h.sendFunc(buf)
		if err != nil {
			level.Error(h.logger).Log("msg", "direct send failed", "err", err)
			return n, newError("send", KindTransport, err)
		}
		return n, nil
	}

	if err := h.sendQ.push(buf); err != nil {
		return 0, err
	}
	return len(buf), nil
}

// Recv pops up to len(buf) bytes from the receive queue, blocking up
// to timeout. A timeout with nothing delivered returns a KindTimeout
// error so the caller can loop, polling for cancellation, per
// SPEC_FULL.md §4.5.
func (h *Handle) Recv(buf []byte, timeout time.Duration) (int, error) {
	return h.recvQ.pop(buf, timeout)
}

// RecvPeek copies bytes from the head of the receive queue without
// removing them.
func (h *Handle) RecvPeek(buf []byte) (int, error) {
	return h.recvQ.peek(buf), nil
}

// PutRecv is used by a lower transport to push inbound bytes into the
// receive queue. It returns the number of bytes accepted; a full or
// closed queue drops the chunk, logs the drop and returns 0
// (back-pressure is the lower transport's problem, same as a dropped
// datagram).
func (h *Handle) PutRecv(buf []byte) int {
	if err := h.recvQ.push(buf); err != nil {
		level.Error(h.logger).Log("msg", "receive queue full, dropping", "len", len(buf))
		return 0
	}
	return len(buf)
}

// MaxPayload reports the maximum bytes the lower transport will carry
// in a single frame.
func (h *Handle) MaxPayload() int { return h.maxPayload }

// Event delivers an asynchronous notification to the lower transport.
// The handle only logs the event and returns nil; xport/udp passes
// events straight through to it, and internal/netmon is a source of
// events rather than a consumer.
func (h *Handle) Event(evt Event) error {
	level.Debug(h.logger).Log("msg", "transport event", "type", evt.Type)
	return nil
}

// NumSendQueuedBytes reports bytes pending in the send queue. It is
// always zero when a direct SendFunc is installed, since that path
// never enqueues.
func (h *Handle) NumSendQueuedBytes() int {
	if h.sendFunc != nil {
		return 0
	}
	return h.sendQ.numBytes()
}

// NumRecvQueueBytes reports bytes pending in the receive queue.
func (h *Handle) NumRecvQueueBytes() int { return h.recvQ.numBytes() }

// NumRecvQueueBytesWait is NumRecvQueueBytes, but blocks up to timeout
// for the receive queue to become non-empty first.
func (h *Handle) NumRecvQueueBytesWait(timeout time.Duration) int {
	return h.recvQ.numBytesWait(timeout)
}

// Close drains and releases the handle's queues. The lower transport
// must have already stopped producing/consuming before calling Close.
func (h *Handle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	h.sendQ.close()
	h.recvQ.close()
	return nil
}
