// Package relay copies bytes between a session's local stream and its tunnel.
//
// Each session runs two loops. The uplink reads the local stream and hands
// Data messages to the connection's bounded outbox, so a slow tunnel stops
// local reads. The downlink drains the session's bounded inbound queue into
// the local stream in arrival order. Releasing the session stops both.
package relay

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/go-zoox/logger"
	"golang.org/x/sync/errgroup"

	"github.com/go-zoox/gztunnel/errdefs"
	"github.com/go-zoox/gztunnel/protocol"
	"github.com/go-zoox/gztunnel/session"
)

// DefaultChunkSize is the largest payload a single Data message carries.
const DefaultChunkSize = 16 * 1024

// Sender queues a message on the tunnel. It blocks while the outbox is full.
type Sender interface {
	Send(ctx context.Context, m protocol.Message) error
}

// Run relays between local and the tunnel until both loops are done, then
// releases the session. It takes ownership of local.
func Run(sess *session.Session, local net.Conn, tx Sender, chunkSize int) error {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	sess.Attach(local)

	g := errgroup.Group{}
	g.Go(func() error {
		return uplink(sess, local, tx, chunkSize)
	})
	g.Go(func() error {
		return downlink(sess, local, tx)
	})

	err := g.Wait()
	sess.Release(err)
	return err
}

func uplink(sess *session.Session, local net.Conn, tx Sender, chunkSize int) error {
	buf := make([]byte, chunkSize)
	for {
		n, err := local.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])

			if errx := tx.Send(sess.Context(), &protocol.Data{SessionID: sess.ID, Bytes: chunk}); errx != nil {
				if sess.Err() != nil {
					return nil
				}
				sess.Release(errx)
				return errx
			}
		}

		if err != nil {
			if sess.Err() != nil {
				return nil
			}

			if errors.Is(err, io.EOF) {
				logger.Debugf("[relay][session: %d] local stream ended, half closing", sess.ID)
				sess.HalfClose()
				if sess.MarkCloseSent() {
					tx.Send(sess.Context(), &protocol.Close{SessionID: sess.ID})
				}
				return nil
			}

			err = errdefs.Network("read %s: %w", side(sess), err)
			Abort(sess, tx, err)
			return err
		}
	}
}

func downlink(sess *session.Session, local net.Conn, tx Sender) error {
	for {
		select {
		case chunk, ok := <-sess.Inbound():
			if !ok {
				logger.Debugf("[relay][session: %d] closed by peer", sess.ID)
				if sess.MarkCloseSent() {
					tx.Send(sess.Context(), &protocol.Close{SessionID: sess.ID})
				}
				sess.Release(nil)
				return nil
			}

			if _, err := local.Write(chunk); err != nil {
				if sess.Err() != nil {
					return nil
				}

				err = errdefs.Network("write %s: %w", side(sess), err)
				Abort(sess, tx, err)
				return err
			}
		case <-sess.Done():
			return nil
		}
	}
}

// Abort releases the session at once and then reports err to the peer as
// Error followed by Close. The local stream is not kept waiting for an
// acknowledgement.
func Abort(sess *session.Session, tx Sender, err error) {
	logger.Warnf("[relay][session: %d][target: %s] %v", sess.ID, sess.Address(), err)

	sess.Release(err)

	ctx := context.Background()
	if errx := tx.Send(ctx, &protocol.Error{SessionID: sess.ID, Message: err.Error()}); errx != nil {
		return
	}
	if sess.MarkCloseSent() {
		tx.Send(ctx, &protocol.Close{SessionID: sess.ID})
	}
}

func side(sess *session.Session) string {
	return "stream for " + sess.Address()
}
