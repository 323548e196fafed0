package auth

import (
	"sync"
	"sync/atomic"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

// StatusFunc is invoked synchronously on the protocol worker whenever
// a session's status changes. Callers that need to wake an external
// waiter should signal a channel or semaphore from inside the
// callback; the session makes no assumption about how the callback
// handles concurrency.
type StatusFunc func(status Status, userCtx interface{})

// Config is the set of parameters a Session is created with. It plays
// the role of the reference implementation's session_init flags plus
// its optional CHALRESP_PARAM union member, but keeps the shared key
// per-session rather than process-wide (SPEC_FULL.md §9, Open
// Question 2).
type Config struct {
	// Instance identifies this session among a fixed pool of
	// concurrently running instances (see NumAuthInstances).
	Instance InstanceID
	// Role is RoleClient or RoleServer; exactly one is required.
	Role Role
	// Method must be MethodChalResp; MethodTLS is not implemented.
	Method Method
	// SharedKey overrides DefaultSharedKey for this session only. The
	// zero value means "use the default".
	SharedKey    [SharedKeyLen]byte
	hasSharedKey bool
	// StatusCB receives every status change. May be nil.
	StatusCB StatusFunc
	// UserCtx is passed back to StatusCB unmodified.
	UserCtx interface{}
}

// SetSharedKey overrides the session's shared key, including with an
// all-zero key. Call it before passing the Config to NewSession, which
// keeps its own copy.
func (c *Config) SetSharedKey(key [SharedKeyLen]byte) {
	c.SharedKey = key
	c.hasSharedKey = true
}

func (c *Config) sharedKey() [SharedKeyLen]byte {
	if c.hasSharedKey || c.SharedKey != ([SharedKeyLen]byte{}) {
		return c.SharedKey
	}
	return DefaultSharedKey()
}

func (c *Config) validate() error {
	switch c.Role {
	case RoleClient, RoleServer:
	default:
		return newError("session-init", KindInvalidParam, nil)
	}
	switch c.Method {
	case MethodChalResp:
	case MethodTLS:
		return newError("session-init", KindInvalidParam, nil)
	default:
		return newError("session-init", KindInvalidParam, nil)
	}
	return nil
}

// newStatusFSM builds the table of legal status transitions. It is a
// small, fixed graph, but routing it through the generic table-driven
// fsm (fsm.go) rather than an ad-hoc switch means a future status or
// transition is added to one table instead of scattered checks.
func newStatusFSM() *fsm {
	terminal := []string{
		StatusCanceled.String(),
		StatusFailed.String(),
		StatusAuthenticationFailed.String(),
		StatusSuccessful.String(),
	}

	table := []eventDesc{
		{from: StatusStarted.String(), to: StatusInProcess.String(), events: []string{StatusInProcess.String()}},
	}
	for _, to := range terminal {
		table = append(table,
			eventDesc{from: StatusStarted.String(), to: to, events: []string{to}},
			eventDesc{from: StatusInProcess.String(), to: to, events: []string{to}},
		)
	}

	return &fsm{current: StatusStarted.String(), table: table}
}

// Session is one in-flight (or completed) authentication attempt
// between this endpoint and a peer, bound to a single Transport for
// its lifetime. Create with NewSession, run once with Start, and
// release with Close only after the worker has reached a terminal
// status.
type Session struct {
	logger log.Logger
	cfg    Config
	xport  Transport

	statusMu    sync.Mutex
	status      Status
	transitions *fsm

	canceled atomic.Bool
	started  atomic.Bool

	wg sync.WaitGroup
}

// NewSession validates cfg and binds a Session to xport. xport is
// borrowed for the session's lifetime; the caller retains ownership
// and must not Close it until after the session reaches a terminal
// status and Close has been called on the session.
func NewSession(logger log.Logger, xport Transport, cfg Config) (*Session, error) {
	if xport == nil {
		return nil, newError("session-init", KindInvalidParam, nil)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Session{
		logger:      log.With(logger, "component", "session", "instance", cfg.Instance, "role", cfg.Role),
		cfg:         cfg,
		xport:       xport,
		status:      StatusStarted,
		transitions: newStatusFSM(),
	}, nil
}

// Start spawns the session's worker goroutine, which drives the
// protocol state machine for cfg.Role. A second call returns a
// KindInvalidParam error and does not start another worker.
func (s *Session) Start() error {
	if !s.started.CompareAndSwap(false, true) {
		return newError("session-start", KindInvalidParam, nil)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.setStatus(StatusStarted)

		switch s.cfg.Role {
		case RoleClient:
			s.runClient()
		case RoleServer:
			s.runServer()
		}
	}()

	return nil
}

// Cancel sets the cancellation flag and immediately transitions the
// session to StatusCanceled. The worker observes the flag at its next
// poll point (before a send, or after a receive completes) and stops
// without emitting further frames; because the status is already
// terminal by the time it notices, its own status update is a no-op.
func (s *Session) Cancel() {
	s.canceled.Store(true)
	s.setStatus(StatusCanceled)
}

// Status returns the session's current status.
func (s *Session) Status() Status {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	return s.status
}

// StatusString returns the human-readable label for st.
func StatusString(st Status) string {
	return st.String()
}

// Close releases session resources. It must be called after the
// worker has reached a terminal status; calling it earlier does not
// interrupt a running worker (use Cancel for that).
func (s *Session) Close() error {
	s.wg.Wait()
	return nil
}

// setStatus updates the status field and then invokes the status
// callback synchronously. Once the session has reached a terminal
// status, further calls change nothing and do not invoke the callback.
// Per SPEC_FULL.md's invariant (spec.md §3(iii)), a session transitions
// to a terminal status exactly once.
func (s *Session) setStatus(st Status) {
	s.statusMu.Lock()
	if s.status.IsTerminal() {
		s.statusMu.Unlock()
		return
	}
	if err := s.transitions.handleEvent(st.String()); err != nil {
		level.Error(s.logger).Log("msg", "status transition rejected by fsm", "from", s.status, "to", st, "err", err)
	}
	s.status = st
	cb := s.cfg.StatusCB
	ctx := s.cfg.UserCtx
	s.statusMu.Unlock()

	level.Debug(s.logger).Log("msg", "status change", "status", st)

	if cb != nil {
		cb(st, ctx)
	}
}

func (s *Session) isCanceled() bool {
	return s.canceled.Load()
}
