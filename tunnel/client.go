package tunnel

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/go-zoox/logger"

	"github.com/go-zoox/gztunnel/errdefs"
	"github.com/go-zoox/gztunnel/protocol"
	"github.com/go-zoox/gztunnel/relay"
	"github.com/go-zoox/gztunnel/session"
)

// Open asks the server for a stream to host:port and returns the session
// once the server has connected. The read loop has already moved it to
// Active by then. The session must then be handed to Relay.
func (c *Conn) Open(ctx context.Context, host string, port uint16) (*session.Session, error) {
	if c.Role != RoleClient {
		return nil, fmt.Errorf("open on a %s connection", c.Role)
	}
	if c.State() != StateAuthenticated {
		return nil, errdefs.ErrClosed
	}

	sess, err := c.allocate(host, port)
	if err != nil {
		return nil, err
	}

	logger.Debugf("[tunnel: %s][session: %d] request %s", c.ID, sess.ID, sess.Address())

	if err := c.Send(ctx, &protocol.ProxyRequest{
		SessionID: sess.ID,
		Host:      host,
		Port:      port,
	}); err != nil {
		sess.Release(err)
		return nil, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	response, err := sess.AwaitResponse(waitCtx)
	if err != nil {
		// the server may still connect: make sure it lets go
		if sess.Err() == nil && sess.MarkCloseSent() {
			c.Send(c.ctx, &protocol.Close{SessionID: sess.ID})
		}
		sess.Release(err)
		return nil, err
	}

	if !response.OK {
		err := errdefs.Network("connect %s: %s", sess.Address(), response.Error)
		sess.Release(err)
		return nil, err
	}

	logger.Infof("[tunnel: %s][session: %d] connected to %s", c.ID, sess.ID, sess.Address())
	return sess, nil
}

// Relay runs the session's copy loops against local until it closes.
func (c *Conn) Relay(sess *session.Session, local net.Conn) error {
	err := relay.Run(sess, local, c, c.cfg.ChunkSize)
	logger.Debugf("[tunnel: %s][session: %d] relay finished: %v", c.ID, sess.ID, err)
	return err
}

// Abort releases a session and reports err to the peer.
func (c *Conn) Abort(sess *session.Session, err error) {
	relay.Abort(sess, c, err)
}

// allocate reserves the next free session id. Ids come from a counter that
// wraps past zero, skipping ids still in use.
func (c *Conn) allocate(host string, port uint16) (*session.Session, error) {
	c.idMu.Lock()
	defer c.idMu.Unlock()

	for attempts := 0; attempts < 1<<16; attempts++ {
		c.nextID++
		if c.nextID == 0 {
			c.nextID = 1
		}
		if c.sessions.Has(c.nextID) {
			continue
		}

		sess := session.New(c.ctx, c.nextID, host, port, c.cfg.QueueSize, c.unregister)
		if err := c.register(sess); err != nil {
			if errors.Is(err, errdefs.ErrClosed) {
				return nil, err
			}
			continue
		}

		return sess, nil
	}

	return nil, fmt.Errorf("no free session id")
}
