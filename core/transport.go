package core

import (
	"context"
	"crypto/tls"

	"github.com/go-zoox/gztunnel/codec"
	"github.com/go-zoox/gztunnel/errdefs"
	"github.com/go-zoox/gztunnel/network/tcp"
	"github.com/go-zoox/gztunnel/network/ws"
	"github.com/go-zoox/gztunnel/tunnel"
)

// connect opens a fresh transport to the server and wraps it in the codec
// for the configured mode.
func (c *Client) connect(ctx context.Context) (codec.Codec, error) {
	timeout := c.tunnelCfg.HandshakeTimeout
	if timeout <= 0 {
		timeout = tunnel.DefaultHandshakeTimeout
	}

	switch c.server.Scheme {
	case SCHEME_WS, SCHEME_WSS:
		conn, err := ws.Dial(ctx, &ws.DialConfig{
			URL:              c.server.String(),
			Insecure:         c.cfg.Insecure,
			HandshakeTimeout: timeout,
		})
		if err != nil {
			return nil, err
		}

		transport := ws.New(conn, &ws.ConnConfig{
			MaxFrameSize: c.cfg.MaxFrameSize,
			Keepalive:    seconds(c.cfg.Keepalive),
		})
		if c.security.mode == codec.MODE_TRANSPARENT {
			return codec.NewTransparent(transport, c.cfg.MaxFrameSize), nil
		}

		return codec.NewBinary(transport, c.security.sealer, c.cfg.MaxFrameSize), nil
	default:
		port, err := parsePort(c.server.Port())
		if err != nil {
			return nil, err
		}

		conn, err := tcp.Connect(ctx, &tcp.ConnectTarget{
			Host:    c.server.Hostname(),
			Port:    port,
			Timeout: timeout,
			ID:      c.ClientID(),
		})
		if err != nil {
			return nil, err
		}

		if c.server.Scheme == SCHEME_TLS {
			tlsConn := tls.Client(conn, &tls.Config{
				ServerName:         c.server.Hostname(),
				InsecureSkipVerify: c.cfg.Insecure,
				MinVersion:         tls.VersionTLS12,
			})

			handshakeCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			if err := tlsConn.HandshakeContext(handshakeCtx); err != nil {
				conn.Close()
				return nil, errdefs.Network("tls handshake with %s: %w", c.server.Host, err)
			}

			return codec.NewBinary(tlsConn, c.security.sealer, c.cfg.MaxFrameSize), nil
		}

		return codec.NewBinary(conn, c.security.sealer, c.cfg.MaxFrameSize), nil
	}
}
