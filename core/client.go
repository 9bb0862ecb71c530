package core

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-zoox/logger"
	"golang.org/x/sync/singleflight"

	"github.com/go-zoox/gztunnel/auth"
	"github.com/go-zoox/gztunnel/codec"
	"github.com/go-zoox/gztunnel/errdefs"
	"github.com/go-zoox/gztunnel/network/tcp"
	"github.com/go-zoox/gztunnel/socks5"
	"github.com/go-zoox/gztunnel/tunnel"
)

// Client accepts SOCKS5 CONNECT requests and carries each one as a session
// over a tunnel connection to the server.
type Client struct {
	cfg       *ClientConfig
	server    *url.URL
	security  *security
	socks     socks5.Auth
	tunnelCfg *tunnel.Config

	group  singleflight.Group
	mu     sync.Mutex
	shared *tunnel.Conn
}

// NewClient validates cfg and fills its defaults. Every failure is an
// ErrConfig.
func NewClient(cfg *ClientConfig) (*Client, error) {
	c := *cfg
	if c.Listen == "" {
		c.Listen = DefaultSocksListen
	}
	if c.MaxFrameSize <= 0 {
		c.MaxFrameSize = codec.DefaultMaxFrameSize
	}

	if c.Token == "" {
		return nil, errdefs.Config("token is required")
	}
	if err := validateListen(c.Listen); err != nil {
		return nil, err
	}
	if c.SocksPassword != "" && c.SocksUsername == "" {
		return nil, errdefs.Config("socks password set without a username")
	}

	server, err := parseServerURL(c.Server)
	if err != nil {
		return nil, err
	}

	websocket := server.Scheme == SCHEME_WS || server.Scheme == SCHEME_WSS
	security, err := resolveSecurity(c.Mode, c.Key, c.Cipher, websocket)
	if err != nil {
		return nil, err
	}
	if security.mode == codec.MODE_TRANSPARENT && server.Scheme != SCHEME_WSS {
		logger.Warnf("[client] transparent mode over %s:// sends traffic unencrypted", server.Scheme)
	}

	credentials := auth.New(c.ClientID, c.Token)

	return &Client{
		cfg:      &c,
		server:   server,
		security: security,
		socks: socks5.Auth{
			Username: c.SocksUsername,
			Password: c.SocksPassword,
		},
		tunnelCfg: c.tunnelConfig(credentials.ClientID),
	}, nil
}

// ClientID is sent in every handshake.
func (c *Client) ClientID() string {
	return c.tunnelCfg.ClientID
}

// Run listens for SOCKS5 connections and serves until ctx is done.
func (c *Client) Run(ctx context.Context) error {
	ln, err := tcp.Listen(ctx, c.cfg.Listen)
	if err != nil {
		return err
	}

	return c.Serve(ctx, ln)
}

// Serve accepts SOCKS5 connections on ln until ctx is done. It returns once
// every SOCKS connection has been closed, then closes the shared tunnel.
func (c *Client) Serve(ctx context.Context, ln net.Listener) error {
	logger.Infof("[client][%s] socks5 listening on %s, server %s (mode: %s, multiplex: %v)",
		c.ClientID(), ln.Addr(), c.server.Redacted(), c.security.mode, c.cfg.Multiplex)

	err := tcp.Serve(ctx, ln, c.handle)

	c.mu.Lock()
	shared := c.shared
	c.shared = nil
	c.mu.Unlock()
	if shared != nil {
		shared.Close()
	}

	logger.Infof("[client] stopped")
	return err
}

func (c *Client) handle(ctx context.Context, conn net.Conn) {
	remote := conn.RemoteAddr().String()

	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	conn.SetDeadline(time.Now().Add(negotiateTimeout))
	req, err := socks5.Handshake(conn, c.socks)
	if err != nil {
		logger.Warnf("[socks5][%s] %v", remote, err)
		conn.Close()
		return
	}

	if req.Cmd != socks5.CmdConnect {
		logger.Warnf("[socks5][%s] unsupported command 0x%02x", remote, req.Cmd)
		socks5.WriteCommandNotSupported(conn, req.Atyp)
		conn.Close()
		return
	}

	t, err := c.tunnel(ctx)
	if err != nil {
		logger.Errorf("[socks5][%s] no tunnel for %s: %v", remote, req.Address(), err)
		socks5.WriteGeneralFailure(conn, req.Atyp)
		conn.Close()
		return
	}
	if !c.cfg.Multiplex {
		defer t.Close()
		stop := context.AfterFunc(ctx, func() {
			t.Close()
		})
		defer stop()
	}

	sess, err := t.Open(ctx, req.Host, req.Port)
	if err != nil {
		logger.Warnf("[socks5][%s][tunnel: %s] failed to open %s: %v", remote, t.ID, req.Address(), err)
		if refused(err) {
			socks5.WriteConnectionRefused(conn, req.Atyp)
		} else {
			socks5.WriteGeneralFailure(conn, req.Atyp)
		}
		conn.Close()
		return
	}

	if err := socks5.WriteSuccess(conn, conn.LocalAddr()); err != nil {
		t.Abort(sess, errdefs.Network("%s: %w", remote, err))
		conn.Close()
		return
	}
	conn.SetDeadline(time.Time{})

	logger.Infof("[socks5][%s][tunnel: %s][session: %d] %s", remote, t.ID, sess.ID, req.Address())
	t.Relay(sess, conn)
}

// tunnel returns the connection a new session should use. With multiplexing
// every caller shares one connection, redialed lazily once it is gone.
func (c *Client) tunnel(ctx context.Context) (*tunnel.Conn, error) {
	if !c.cfg.Multiplex {
		return c.dial(ctx)
	}

	if t := c.current(); t != nil {
		return t, nil
	}

	v, err, _ := c.group.Do("tunnel", func() (any, error) {
		if t := c.current(); t != nil {
			return t, nil
		}

		t, err := c.dial(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.shared = t
		c.mu.Unlock()
		return t, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*tunnel.Conn), nil
}

func (c *Client) current() *tunnel.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.shared != nil && c.shared.State() == tunnel.StateAuthenticated {
		return c.shared
	}

	return nil
}

func (c *Client) dial(ctx context.Context) (*tunnel.Conn, error) {
	transport, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}

	return tunnel.Dial(ctx, transport, c.tunnelCfg)
}

// refused reports whether the server could not reach the target because it
// refused the connection. A failed ProxyResponse only carries the server's
// dial error as text, so this matches the OS wording: "connection refused"
// on unix, "actively refused it" on windows.
func refused(err error) bool {
	if !errors.Is(err, errdefs.ErrNetwork) {
		return false
	}

	return strings.Contains(strings.ToLower(err.Error()), "refused")
}
