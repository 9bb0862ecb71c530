package core

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"

	"github.com/go-zoox/logger"
	"github.com/gorilla/websocket"

	"github.com/go-zoox/gztunnel/auth"
	"github.com/go-zoox/gztunnel/codec"
	"github.com/go-zoox/gztunnel/errdefs"
	"github.com/go-zoox/gztunnel/network/tcp"
	"github.com/go-zoox/gztunnel/network/ws"
	"github.com/go-zoox/gztunnel/tunnel"
)

// Server accepts tunnel connections and connects their sessions to targets.
type Server struct {
	cfg       *ServerConfig
	security  *security
	tls       *tls.Config
	verifier  auth.Verifier
	tunnelCfg *tunnel.Config
}

// NewServer validates cfg and fills its defaults. Every failure is an
// ErrConfig.
func NewServer(cfg *ServerConfig) (*Server, error) {
	c := *cfg
	if c.Listen == "" {
		c.Listen = DefaultServerListen
	}
	if c.Transport == "" {
		c.Transport = TRANSPORT_TCP
	}
	if c.Path == "" {
		c.Path = ws.DefaultPath
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
	if c.Transport != TRANSPORT_TCP && c.Transport != TRANSPORT_WS {
		return nil, errdefs.Config("unknown transport %q, expect %s or %s", c.Transport, TRANSPORT_TCP, TRANSPORT_WS)
	}

	security, err := resolveSecurity(c.Mode, c.Key, c.Cipher, c.Transport == TRANSPORT_WS)
	if err != nil {
		return nil, err
	}

	tlsConfig, err := loadTLS(c.TLSCert, c.TLSKey)
	if err != nil {
		return nil, err
	}
	if security.sealer == nil && tlsConfig == nil {
		return nil, errdefs.Config("either a key or a tls certificate is required")
	}

	return &Server{
		cfg:       &c,
		security:  security,
		tls:       tlsConfig,
		verifier:  auth.NewVerifier(c.Token),
		tunnelCfg: c.tunnelConfig(),
	}, nil
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := tcp.Listen(ctx, s.cfg.Listen)
	if err != nil {
		return err
	}

	return s.Serve(ctx, ln)
}

// Serve accepts tunnel connections on ln until ctx is done, then closes every
// connection it accepted and returns once they are gone.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	scheme := s.cfg.Transport
	if s.tls != nil {
		ln = tls.NewListener(ln, s.tls)
		scheme += "+tls"
	}

	logger.Infof("[server] listening on %s://%s (mode: %s)", scheme, ln.Addr(), s.security.mode)
	if s.security.sealer != nil {
		logger.Infof("[server] cipher: %s", s.security.sealer.Name())
	}

	var err error
	switch s.cfg.Transport {
	case TRANSPORT_WS:
		err = ws.Serve(ctx, ln, s.Handler(ctx))
	default:
		err = tcp.Serve(ctx, ln, func(ctx context.Context, conn net.Conn) {
			s.serve(ctx, codec.NewBinary(conn, s.security.sealer, s.cfg.MaxFrameSize), conn.RemoteAddr().String())
		})
	}

	logger.Infof("[server] stopped")
	return err
}

// Handler upgrades websocket requests on the configured path into tunnel
// connections. A connection is closed when either ctx or the request's
// context is done.
func (s *Server) Handler(ctx context.Context) http.Handler {
	return ws.Handler(s.cfg.Path, func(conn *websocket.Conn, r *http.Request) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		stop := context.AfterFunc(r.Context(), cancel)
		defer stop()

		transport := ws.New(conn, &ws.ConnConfig{
			MaxFrameSize: s.cfg.MaxFrameSize,
			Keepalive:    seconds(s.cfg.Keepalive),
		})

		var c codec.Codec
		if s.security.mode == codec.MODE_BINARY {
			c = codec.NewBinary(transport, s.security.sealer, s.cfg.MaxFrameSize)
		} else {
			c = codec.NewTransparent(transport, s.cfg.MaxFrameSize)
		}

		s.serve(ctx, c, r.RemoteAddr)
	})
}

func (s *Server) serve(ctx context.Context, c codec.Codec, remote string) {
	conn, err := tunnel.Accept(ctx, c, s.tunnelCfg, s.verifier)
	if err != nil {
		logger.Warnf("[server][%s] rejected: %v", remote, err)
		return
	}

	logger.Infof("[server][tunnel: %s][client: %s] connected from %s", conn.ID, conn.ClientID, remote)

	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	err = conn.Wait()
	logger.Infof("[server][tunnel: %s][client: %s] disconnected: %v", conn.ID, conn.ClientID, err)
}
