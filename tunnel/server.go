package tunnel

import (
	"context"
	"fmt"
	"net"

	"github.com/go-zoox/logger"

	"github.com/go-zoox/gztunnel/errdefs"
	"github.com/go-zoox/gztunnel/network/tcp"
	"github.com/go-zoox/gztunnel/protocol"
	"github.com/go-zoox/gztunnel/session"
)

// handleProxyRequest reserves the id and starts the outbound dial without
// blocking the read loop. The id only enters the registry once the target is
// connected.
func (c *Conn) handleProxyRequest(req *protocol.ProxyRequest) error {
	if c.sessions.Has(req.SessionID) || c.pending.Has(req.SessionID) {
		return errdefs.Protocol("duplicate session id %d", req.SessionID)
	}

	if c.cfg.MaxSessions > 0 && c.sessions.Len()+c.pending.Len() >= c.cfg.MaxSessions {
		logger.Warnf("[tunnel: %s][session: %d] session limit %d reached", c.ID, req.SessionID, c.cfg.MaxSessions)
		c.sendAsync(&protocol.ProxyResponse{SessionID: req.SessionID, Error: "session limit reached"})
		return nil
	}

	ctx, cancel := context.WithTimeout(c.ctx, c.cfg.ConnectTimeout)
	if err := c.pending.Add(req.SessionID, cancel); err != nil {
		cancel()
		return errdefs.Protocol("duplicate session id %d", req.SessionID)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()

		c.connect(ctx, req)
	}()

	return nil
}

func (c *Conn) connect(ctx context.Context, req *protocol.ProxyRequest) {
	sess := session.New(c.ctx, req.SessionID, req.Host, req.Port, c.cfg.QueueSize, c.unregister)
	logger.Infof("[tunnel: %s][session: %d] connect to %s", c.ID, sess.ID, sess.Address())

	target, err := c.dial(ctx, sess)
	if err != nil {
		if _, ok := c.pending.Remove(req.SessionID); !ok {
			return
		}

		logger.Warnf("[tunnel: %s][session: %d] failed to connect to %s: %v", c.ID, sess.ID, sess.Address(), err)
		c.Send(c.ctx, &protocol.ProxyResponse{SessionID: req.SessionID, Error: err.Error()})
		return
	}

	// register before giving up the reservation, so a Close racing with
	// this handover finds one or the other
	sess.Activate()
	if err := c.register(sess); err != nil {
		c.pending.Remove(req.SessionID)
		target.Close()
		return
	}
	if _, ok := c.pending.Remove(req.SessionID); !ok {
		sess.Release(errdefs.ErrClosed)
		target.Close()
		return
	}

	if err := c.Send(c.ctx, &protocol.ProxyResponse{SessionID: req.SessionID, OK: true}); err != nil {
		sess.Release(err)
		target.Close()
		return
	}

	c.Relay(sess, target)
}

func (c *Conn) dial(ctx context.Context, sess *session.Session) (net.Conn, error) {
	if c.cfg.Dial != nil {
		return c.cfg.Dial(ctx, sess.Host, sess.Port)
	}

	return tcp.Connect(ctx, &tcp.ConnectTarget{
		Host:    sess.Host,
		Port:    sess.Port,
		Timeout: c.cfg.ConnectTimeout,
		ID:      fmt.Sprintf("%s/%d", c.ID, sess.ID),
	})
}
