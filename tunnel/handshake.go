package tunnel

import (
	"context"
	"fmt"

	"github.com/go-zoox/logger"
	nanoid "github.com/matoous/go-nanoid/v2"

	"github.com/go-zoox/gztunnel/auth"
	"github.com/go-zoox/gztunnel/codec"
	"github.com/go-zoox/gztunnel/errdefs"
	"github.com/go-zoox/gztunnel/protocol"
)

// Dial runs the client side of the handshake on a fresh transport and
// returns the authenticated connection. On failure the transport is closed.
func Dial(ctx context.Context, c codec.Codec, cfg *Config) (*Conn, error) {
	conn := newConn(RoleClient, c, cfg)
	conn.ClientID = conn.cfg.ClientID

	logger.Infof("[handshake][request][client: %s] start to authenticate", conn.ClientID)

	err := conn.within(ctx, func() error {
		if err := c.WriteMessage(&protocol.Handshake{
			Token:    conn.cfg.Token,
			ClientID: conn.ClientID,
		}); err != nil {
			return errdefs.Network("write handshake: %w", err)
		}

		m, err := c.ReadMessage()
		if err != nil {
			return transportError("read handshake response", err)
		}

		response, ok := m.(*protocol.HandshakeResponse)
		if !ok {
			return errdefs.Protocol("expected %s, got %s", protocol.TYPE_HANDSHAKE_RESPONSE, m.Type())
		}
		if !response.OK {
			return errdefs.Auth("rejected by server: %s", response.Reason)
		}

		conn.ID = response.TunnelID
		return nil
	})
	if err != nil {
		conn.teardown(err)
		return nil, err
	}

	if conn.ID == "" {
		conn.ID = newTunnelID()
	}

	conn.start()
	logger.Infof("[handshake][response][tunnel: %s][client: %s] succeed to authenticate", conn.ID, conn.ClientID)
	return conn, nil
}

// Accept runs the server side of the handshake. The first message must be a
// Handshake carrying the expected token. Anything else closes the transport.
func Accept(ctx context.Context, c codec.Codec, cfg *Config, verifier auth.Verifier) (*Conn, error) {
	conn := newConn(RoleServer, c, cfg)
	conn.ID = newTunnelID()

	err := conn.within(ctx, func() error {
		m, err := c.ReadMessage()
		if err != nil {
			return transportError("read handshake", err)
		}

		handshake, ok := m.(*protocol.Handshake)
		if !ok {
			c.WriteMessage(&protocol.Error{Message: "expected Handshake"})
			return errdefs.Protocol("expected %s before authentication, got %s", protocol.TYPE_HANDSHAKE, m.Type())
		}
		conn.ClientID = handshake.ClientID

		if !verifier.Verify(handshake.Token) {
			c.WriteMessage(&protocol.HandshakeResponse{Reason: "invalid token"})
			return errdefs.Auth("client %s presented an invalid token", handshake.ClientID)
		}

		if err := c.WriteMessage(&protocol.HandshakeResponse{OK: true, TunnelID: conn.ID}); err != nil {
			return errdefs.Network("write handshake response: %w", err)
		}
		return nil
	})
	if err != nil {
		logger.Warnf("[handshake][tunnel: %s][client: %s] failed: %v", conn.ID, conn.ClientID, err)
		conn.teardown(err)
		return nil, err
	}

	conn.start()
	logger.Infof("[handshake][tunnel: %s][client: %s] authenticated", conn.ID, conn.ClientID)
	return conn, nil
}

// within runs the handshake exchange under the handshake timeout. The codec
// is closed to unblock it when the deadline passes.
func (c *Conn) within(ctx context.Context, exchange func() error) error {
	done := make(chan error, 1)
	go func() {
		done <- exchange()
	}()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
	defer cancel()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		c.codec.Close()
		<-done

		if ctx.Err() == context.DeadlineExceeded {
			return errdefs.Timeout("handshake not completed within %s", c.cfg.HandshakeTimeout)
		}
		return ctx.Err()
	}
}

func transportError(op string, err error) error {
	if errdefs.Kind(err) != "unknown" {
		return fmt.Errorf("%s: %w", op, err)
	}

	return errdefs.Network("%s: %w", op, err)
}

func newTunnelID() string {
	id, err := nanoid.New()
	if err != nil {
		return "unknown"
	}

	return id
}
