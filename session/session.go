package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-zoox/gztunnel/errdefs"
	"github.com/go-zoox/gztunnel/protocol"
)

// ErrStalled is returned by Deliver when the inbound queue stayed full for
// longer than the stall timeout.
var ErrStalled = errors.New("inbound queue stalled")

type State int32

const (
	StateRequesting State = iota
	StateActive
	StateHalfClosed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateRequesting:
		return "requesting"
	case StateActive:
		return "active"
	case StateHalfClosed:
		return "half-closed"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Session is one proxied stream inside a tunnel connection.
//
// The inbound queue has a single producer, the connection's dispatch loop,
// which is also the only caller of Deliver and Finish. Everything else may be
// called from any goroutine.
type Session struct {
	ID   uint32
	Host string
	Port uint16

	state     atomic.Int32
	closeSent atomic.Bool

	inbound  chan []byte
	finished bool
	response chan *protocol.ProxyResponse

	ctx    context.Context
	cancel context.CancelCauseFunc

	mu          sync.Mutex
	local       net.Conn
	releaseOnce sync.Once
	onRelease   func(*Session)
}

// New returns a session in the Requesting state. Cancelling parent releases
// the session's loops but not its registry entry, which is the owner's job.
func New(parent context.Context, id uint32, host string, port uint16, queueSize int, onRelease func(*Session)) *Session {
	ctx, cancel := context.WithCancelCause(parent)

	return &Session{
		ID:        id,
		Host:      host,
		Port:      port,
		inbound:   make(chan []byte, queueSize),
		response:  make(chan *protocol.ProxyResponse, 1),
		ctx:       ctx,
		cancel:    cancel,
		onRelease: onRelease,
	}
}

func (s *Session) Address() string {
	return net.JoinHostPort(s.Host, fmt.Sprintf("%d", s.Port))
}

func (s *Session) State() State {
	return State(s.state.Load())
}

// Activate moves a Requesting session to Active.
func (s *Session) Activate() bool {
	return s.state.CompareAndSwap(int32(StateRequesting), int32(StateActive))
}

// HalfClose moves an Active session to HalfClosed.
func (s *Session) HalfClose() bool {
	return s.state.CompareAndSwap(int32(StateActive), int32(StateHalfClosed))
}

// MarkCloseSent reports whether the caller is the first to announce Close
// for this session and therefore must send it.
func (s *Session) MarkCloseSent() bool {
	return s.closeSent.CompareAndSwap(false, true)
}

func (s *Session) Context() context.Context {
	return s.ctx
}

func (s *Session) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Err returns why the session was released, or nil while it is alive.
func (s *Session) Err() error {
	if s.ctx.Err() == nil {
		return nil
	}

	return context.Cause(s.ctx)
}

// Attach hands the local stream to the session. A stream attached after the
// session was released is closed immediately.
func (s *Session) Attach(local net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx.Err() != nil {
		local.Close()
		return
	}
	s.local = local
}

// Respond delivers the server's ProxyResponse to the goroutine waiting in
// AwaitResponse. Extra responses are dropped.
func (s *Session) Respond(response *protocol.ProxyResponse) {
	select {
	case s.response <- response:
	default:
	}
}

// AwaitResponse waits for the ProxyResponse of a Requesting session.
func (s *Session) AwaitResponse(ctx context.Context) (*protocol.ProxyResponse, error) {
	select {
	case response := <-s.response:
		return response, nil
	case <-s.ctx.Done():
		return nil, fmt.Errorf("session %d released: %w", s.ID, context.Cause(s.ctx))
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, errdefs.Timeout("no response for session %d to %s", s.ID, s.Address())
		}
		return nil, ctx.Err()
	}
}

// Inbound yields the Data payloads addressed to this session in arrival
// order. It is closed once the peer has sent Close and every earlier payload
// has been queued.
func (s *Session) Inbound() <-chan []byte {
	return s.inbound
}

// Deliver queues an inbound payload. It returns immediately while the queue
// has room and otherwise waits up to stall for the relay to drain it.
func (s *Session) Deliver(chunk []byte, stall time.Duration) error {
	if s.finished {
		return errdefs.ErrClosed
	}

	select {
	case s.inbound <- chunk:
		return nil
	default:
	}

	timer := time.NewTimer(stall)
	defer timer.Stop()

	select {
	case s.inbound <- chunk:
		return nil
	case <-s.ctx.Done():
		return errdefs.ErrClosed
	case <-timer.C:
		return ErrStalled
	}
}

// Finish marks the end of inbound data after the peer's Close.
func (s *Session) Finish() {
	if s.finished {
		return
	}

	s.finished = true
	close(s.inbound)
}

// Release stops both relay loops, closes the local stream and removes the
// session from its owner. Only the first call has an effect.
func (s *Session) Release(cause error) {
	s.releaseOnce.Do(func() {
		if cause == nil {
			cause = errdefs.ErrClosed
		}

		s.state.Store(int32(StateClosed))
		s.cancel(cause)

		s.mu.Lock()
		if s.local != nil {
			s.local.Close()
		}
		s.mu.Unlock()

		if s.onRelease != nil {
			s.onRelease(s)
		}
	})
}
