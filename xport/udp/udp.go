// Package udp is the reference datagram transport: it binds the
// auth.Handle contract to a pair of IPv4/UDP sockets, one bound
// locally to receive frames and one used to send them to the peer.
// It is an example collaborator satisfying the Transport contract
// (SPEC_FULL.md §4.7), not part of the protocol core.
package udp

import (
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"golang.org/x/sys/unix"

	"github.com/goldenbitssoftware/authlink/auth"
)

// linkMTU bounds the scratch buffer the receive worker reads into,
// and is reported as the transport's maximum payload. Every message in
// this protocol fits in a single datagram well within this bound.
const linkMTU = 1024

// Params are the UDP-specific parameters for a Transport.
type Params struct {
	RecvPort uint16
	SendPort uint16
	RecvIP   string
	SendIP   string
}

// pool bounds the number of concurrently open UDP transport instances,
// mirroring the reference implementation's fixed-size instance array.
var pool = newInstancePool(auth.NumAuthInstances)

type instancePool struct {
	mu   sync.Mutex
	used []bool
}

func newInstancePool(n int) *instancePool {
	return &instancePool{used: make([]bool, n)}
}

func (p *instancePool) acquire() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, inUse := range p.used {
		if !inUse {
			p.used[i] = true
			return i, true
		}
	}
	return -1, false
}

func (p *instancePool) release(i int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.used[i] = false
}

// Transport is a UDP binding of auth.Handle. It embeds *auth.Handle so
// callers can use it anywhere an auth.Transport is expected while
// retaining Close/New lifecycle methods specific to this binding.
type Transport struct {
	*auth.Handle

	logger log.Logger
	slot   int

	recvFile *os.File
	recvRC   syscall.RawConn

	sendFD   int
	sendAddr unix.Sockaddr

	shutdown atomic.Bool
	wg       sync.WaitGroup
}

// New acquires an instance slot, binds the receive and send sockets,
// and starts the receive worker. The returned Transport implements
// auth.Transport via its embedded *auth.Handle.
func New(logger log.Logger, params Params) (*Transport, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}

	slot, ok := pool.acquire()
	if !ok {
		return nil, fmt.Errorf("udp: no free transport instances")
	}

	recvFD, err := rawNonblockingSocket()
	if err != nil {
		pool.release(slot)
		return nil, fmt.Errorf("udp: create recv socket: %v", err)
	}
	recvAddr, err := sockaddr(params.RecvIP, params.RecvPort)
	if err != nil {
		unix.Close(recvFD)
		pool.release(slot)
		return nil, err
	}
	if err := unix.Bind(recvFD, recvAddr); err != nil {
		unix.Close(recvFD)
		pool.release(slot)
		return nil, fmt.Errorf("udp: bind %s:%d: %v", params.RecvIP, params.RecvPort, err)
	}

	recvFile := os.NewFile(uintptr(recvFD), "authlink-udp-recv")
	recvRC, err := recvFile.SyscallConn()
	if err != nil {
		recvFile.Close()
		pool.release(slot)
		return nil, fmt.Errorf("udp: syscall conn: %v", err)
	}

	sendFD, err := rawNonblockingSocket()
	if err != nil {
		recvFile.Close()
		pool.release(slot)
		return nil, fmt.Errorf("udp: create send socket: %v", err)
	}
	sendAddr, err := sockaddr(params.SendIP, params.SendPort)
	if err != nil {
		recvFile.Close()
		unix.Close(sendFD)
		pool.release(slot)
		return nil, err
	}

	t := &Transport{
		Handle:   auth.NewHandle(logger, auth.InstanceID(slot), linkMTU),
		logger:   log.With(logger, "component", "xport-udp", "instance", slot),
		slot:     slot,
		recvFile: recvFile,
		recvRC:   recvRC,
		sendFD:   sendFD,
		sendAddr: sendAddr,
	}
	t.Handle.SetSendFunc(t.send)

	t.wg.Add(1)
	go t.recvLoop()

	return t, nil
}

func rawNonblockingSocket() (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	if err != nil {
		return -1, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

func sockaddr(ip string, port uint16) (*unix.SockaddrInet4, error) {
	addr := net.ParseIP(ip)
	if addr == nil {
		return nil, fmt.Errorf("udp: invalid IPv4 address %q", ip)
	}
	addr4 := addr.To4()
	if addr4 == nil {
		return nil, fmt.Errorf("udp: %q is not an IPv4 address", ip)
	}
	sa := &unix.SockaddrInet4{Port: int(port)}
	copy(sa.Addr[:], addr4)
	return sa, nil
}

// send implements auth.SendFunc, installed as the handle's direct send
// path: the transport can buffer outbound UDP datagrams itself via the
// kernel socket buffer, so there is no need to double-buffer through
// the handle's own send queue.
func (t *Transport) send(buf []byte) (int, error) {
	if len(buf) > linkMTU {
		return 0, fmt.Errorf("udp: %d bytes exceeds link MTU %d", len(buf), linkMTU)
	}
	if err := unix.Sendto(t.sendFD, buf, unix.MSG_NOSIGNAL, t.sendAddr); err != nil {
		return 0, err
	}
	level.Debug(t.logger).Log("msg", "sent datagram", "bytes", len(buf))
	return len(buf), nil
}

func (t *Transport) recvfrom(buf []byte) (n int, err error) {
	cerr := t.recvRC.Read(func(fd uintptr) bool {
		n, _, err = unix.Recvfrom(int(fd), buf, unix.MSG_NOSIGNAL)
		return err != unix.EAGAIN && err != unix.EWOULDBLOCK
	})
	if err != nil {
		return n, err
	}
	return n, cerr
}

// recvLoop reads datagrams off the receive socket and hands complete
// frames to the handle's receive queue. The scratch buffer is
// allocated once, before the loop starts, so there is no path that
// could free it before it exists (SPEC_FULL.md §9, Open Question 4).
func (t *Transport) recvLoop() {
	defer t.wg.Done()

	buf := make([]byte, linkMTU)

	for !t.shutdown.Load() {
		// A bounded read deadline lets Close force an otherwise
		// indefinitely blocked recvfrom to return promptly, rather
		// than relying solely on the shutdown flag being observed
		// after an unbounded read.
		t.recvFile.SetReadDeadline(time.Now().Add(500 * time.Millisecond))

		n, err := t.recvfrom(buf)
		if err != nil {
			if t.shutdown.Load() {
				return
			}
			if isTimeout(err) {
				continue
			}
			level.Error(t.logger).Log("msg", "recvfrom failed", "err", err)
			continue
		}

		level.Debug(t.logger).Log("msg", "received datagram", "bytes", n)

		if begin, count, ok := auth.GetFragment(buf[:n]); ok {
			auth.Assemble(t.Handle, buf[:begin+count])
		} else {
			level.Error(t.logger).Log("msg", "did not receive a full frame", "bytes", n)
		}
	}
}

func isTimeout(err error) bool {
	type timeouter interface{ Timeout() bool }
	if te, ok := err.(timeouter); ok {
		return te.Timeout()
	}
	return err == unix.EAGAIN || err == unix.EWOULDBLOCK
}

// Close shuts down the receive worker, closes both sockets, and
// releases the instance slot back to the pool.
func (t *Transport) Close() error {
	t.shutdown.Store(true)
	t.recvFile.SetReadDeadline(time.Now())
	t.wg.Wait()

	t.recvFile.Close()
	unix.Close(t.sendFD)
	pool.release(t.slot)

	return t.Handle.Close()
}

// Event is a no-op: the reference UDP transport has no
// transport-specific event source of its own. See internal/netmon for
// a link-state monitor that can drive this transport's Event path
// from real rtnetlink/nl80211 notifications.
func (t *Transport) Event(evt auth.Event) error {
	return t.Handle.Event(evt)
}
