package tunnel

import (
	"errors"

	"github.com/go-zoox/logger"

	"github.com/go-zoox/gztunnel/errdefs"
	"github.com/go-zoox/gztunnel/protocol"
	"github.com/go-zoox/gztunnel/relay"
	"github.com/go-zoox/gztunnel/session"
)

// dispatch routes one inbound message. It runs on the read loop and never
// waits on the outbox. A returned error is connection fatal.
func (c *Conn) dispatch(m protocol.Message) error {
	switch v := m.(type) {
	case *protocol.ProxyRequest:
		if c.Role != RoleServer {
			return errdefs.Protocol("unexpected %s on a client connection", v.Type())
		}
		return c.handleProxyRequest(v)

	case *protocol.ProxyResponse:
		if c.Role != RoleClient {
			return errdefs.Protocol("unexpected %s on a server connection", v.Type())
		}

		sess, err := c.sessions.Get(v.SessionID)
		if err != nil {
			// the request was abandoned after its timeout
			logger.Debugf("[tunnel: %s][session: %d] late %s dropped", c.ID, v.SessionID, v.Type())
			return nil
		}
		if sess.State() != session.StateRequesting {
			return errdefs.Protocol("duplicate %s for session %d", v.Type(), v.SessionID)
		}
		// activate here so Data or Close read right after the response
		// finds the session Active, whenever Open gets scheduled
		if v.OK {
			sess.Activate()
		}
		sess.Respond(v)

	case *protocol.Data:
		sess, err := c.sessions.Get(v.SessionID)
		if err != nil {
			logger.Debugf("[tunnel: %s][session: %d] data for unknown session dropped", c.ID, v.SessionID)
			return nil
		}
		if sess.State() == session.StateRequesting {
			return errdefs.Protocol("data for session %d before it was accepted", v.SessionID)
		}

		if err := sess.Deliver(v.Bytes, c.cfg.StallTimeout); err != nil {
			if errors.Is(err, session.ErrStalled) {
				sess.Release(err)
				c.wg.Add(1)
				go func() {
					defer c.wg.Done()
					relay.Abort(sess, c, errdefs.Network("session %d: %w", sess.ID, err))
				}()
			}
		}

	case *protocol.Close:
		if cancel, ok := c.pending.Remove(v.SessionID); ok {
			logger.Debugf("[tunnel: %s][session: %d] closed while connecting", c.ID, v.SessionID)
			cancel()
			return nil
		}

		sess, err := c.sessions.Get(v.SessionID)
		if err != nil {
			return nil
		}
		if sess.State() == session.StateRequesting {
			sess.MarkCloseSent()
			sess.Respond(&protocol.ProxyResponse{SessionID: v.SessionID, Error: "closed by peer"})
			return nil
		}
		sess.Finish()

	case *protocol.Error:
		if v.SessionID == 0 {
			logger.Warnf("[tunnel: %s] peer reported: %s", c.ID, v.Message)
		} else {
			logger.Warnf("[tunnel: %s][session: %d] peer reported: %s", c.ID, v.SessionID, v.Message)
		}

	default:
		return errdefs.Protocol("unexpected %s after authentication", m.Type())
	}

	return nil
}
