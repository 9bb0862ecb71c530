// Package tunnel owns one authenticated transport connection and the
// sessions multiplexed over it.
//
// A Conn has exactly one writer goroutine, fed by a bounded outbox, and one
// reader goroutine that decodes each frame once and dispatches it by session
// id. A transport failure or protocol violation closes the Conn and releases
// every session it carries. A failure inside one session never reaches the
// Conn.
package tunnel

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-zoox/logger"

	"github.com/go-zoox/gztunnel/codec"
	"github.com/go-zoox/gztunnel/errdefs"
	"github.com/go-zoox/gztunnel/manager"
	"github.com/go-zoox/gztunnel/protocol"
	"github.com/go-zoox/gztunnel/session"
)

type Role int

const (
	RoleClient Role = iota
	RoleServer
)

func (r Role) String() string {
	if r == RoleServer {
		return "server"
	}

	return "client"
}

type State int32

const (
	StateUnauthenticated State = iota
	StateAuthenticated
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "closed"
	}
}

const flushTimeout = time.Second

type outgoing struct {
	msg     protocol.Message
	flushed chan struct{}
}

// Conn is one tunnel connection.
type Conn struct {
	// ID is assigned by the server and used to tag log lines.
	ID string
	// ClientID is the peer's client id on the server, our own on the client.
	ClientID string
	Role     Role

	cfg   *Config
	codec codec.Codec
	state atomic.Int32

	sessions *manager.Manager[uint32, *session.Session]
	pending  *manager.Manager[uint32, context.CancelFunc]

	idMu   sync.Mutex
	nextID uint32

	outbox chan outgoing

	ctx       context.Context
	cancel    context.CancelCauseFunc
	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

func newConn(role Role, c codec.Codec, cfg *Config) *Conn {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancelCause(context.Background())

	return &Conn{
		Role:     role,
		cfg:      cfg,
		codec:    c,
		sessions: manager.New[uint32, *session.Session](),
		pending:  manager.New[uint32, context.CancelFunc](),
		outbox:   make(chan outgoing, cfg.OutboxSize),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

func (c *Conn) State() State {
	return State(c.state.Load())
}

// Done is closed once the connection is torn down.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err returns why the connection was torn down, or nil while it is open.
func (c *Conn) Err() error {
	if c.ctx.Err() == nil {
		return nil
	}

	return context.Cause(c.ctx)
}

// Sessions returns the number of registered sessions.
func (c *Conn) Sessions() int {
	return c.sessions.Len()
}

func (c *Conn) start() {
	c.state.Store(int32(StateAuthenticated))

	go c.writeLoop()
	go c.readLoop()
}

// Send queues m for the writer. It blocks while the outbox is full, which is
// how a slow transport pushes back on every session's uplink.
func (c *Conn) Send(ctx context.Context, m protocol.Message) error {
	select {
	case <-c.ctx.Done():
		return errdefs.ErrClosed
	default:
	}

	select {
	case c.outbox <- outgoing{msg: m}:
		return nil
	case <-c.ctx.Done():
		return errdefs.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// sendAsync queues m without blocking the caller. Used from the dispatch
// loop, which must never wait on the outbox.
func (c *Conn) sendAsync(m protocol.Message) {
	select {
	case c.outbox <- outgoing{msg: m}:
	default:
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.Send(c.ctx, m)
		}()
	}
}

func (c *Conn) writeLoop() {
	for {
		select {
		case out := <-c.outbox:
			if out.flushed != nil {
				close(out.flushed)
				continue
			}

			if err := c.codec.WriteMessage(out.msg); err != nil {
				if errdefs.IsConnectionFatal(err) {
					c.teardown(err)
				} else {
					c.teardown(errdefs.Network("write %s: %w", out.msg.Type(), err))
				}
				return
			}
			logger.Debugf("[tunnel: %s][write] %s", c.ID, out.msg.Type())
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Conn) readLoop() {
	for {
		m, err := c.codec.ReadMessage()
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}

			if errors.Is(err, io.EOF) {
				c.teardown(errdefs.Network("closed by peer: %w", err))
			} else if errdefs.IsConnectionFatal(err) {
				c.abort(err)
			} else {
				c.teardown(errdefs.Network("read: %w", err))
			}
			return
		}

		if err := c.dispatch(m); err != nil {
			c.abort(err)
			return
		}
	}
}

// flush waits until everything queued before the call has been written.
func (c *Conn) flush(timeout time.Duration) {
	flushed := make(chan struct{})
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case c.outbox <- outgoing{flushed: flushed}:
	case <-c.done:
		return
	case <-timer.C:
		return
	}

	select {
	case <-flushed:
	case <-c.done:
	case <-timer.C:
	}
}

// abort tells the peer why the connection is going away, when the writer
// can still do so quickly, and tears it down.
func (c *Conn) abort(err error) {
	logger.Errorf("[tunnel: %s] %v", c.ID, err)

	select {
	case c.outbox <- outgoing{msg: &protocol.Error{Message: errdefs.Kind(err) + " error"}}:
		c.flush(flushTimeout / 4)
	default:
	}

	c.teardown(err)
}

// Close flushes queued messages and tears the connection down. Sessions
// still registered are released without individual Close messages.
func (c *Conn) Close() error {
	if c.State() == StateAuthenticated {
		c.flush(flushTimeout)
	}

	c.teardown(errdefs.ErrClosed)
	return nil
}

func (c *Conn) teardown(err error) {
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosed))
		c.cancel(err)
		c.codec.Close()

		for _, cancel := range c.pending.Drain() {
			cancel()
		}

		sessions := c.sessions.Drain()
		for _, sess := range sessions {
			sess.Release(err)
		}

		if errors.Is(err, errdefs.ErrClosed) {
			logger.Infof("[tunnel: %s] closed (sessions: %d)", c.ID, len(sessions))
		} else {
			logger.Warnf("[tunnel: %s] torn down (sessions: %d): %v", c.ID, len(sessions), err)
		}

		close(c.done)
	})
}

// Wait blocks until the connection is torn down and every goroutine it
// started for sessions has returned.
func (c *Conn) Wait() error {
	<-c.done
	c.wg.Wait()
	return c.Err()
}

func (c *Conn) register(sess *session.Session) error {
	if err := c.sessions.Add(sess.ID, sess); err != nil {
		return err
	}

	if c.ctx.Err() != nil {
		c.sessions.Remove(sess.ID)
		return errdefs.ErrClosed
	}

	return nil
}

func (c *Conn) unregister(sess *session.Session) {
	if current, err := c.sessions.Get(sess.ID); err == nil && current == sess {
		c.sessions.Remove(sess.ID)
	}
}
