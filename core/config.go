package core

import (
	"crypto/tls"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-zoox/gztunnel/codec"
	"github.com/go-zoox/gztunnel/errdefs"
	"github.com/go-zoox/gztunnel/network/ws"
	"github.com/go-zoox/gztunnel/secure"
	"github.com/go-zoox/gztunnel/tunnel"
)

// ServerConfig is loaded from the config file and overridden by flags.
// Timeouts are in seconds.
type ServerConfig struct {
	Listen    string `config:"listen"`
	Transport string `config:"transport"`
	Path      string `config:"path"`

	Token  string `config:"token"`
	Key    string `config:"key"`
	Cipher string `config:"cipher"`
	Mode   string `config:"mode"`

	TLSCert string `config:"tls_cert"`
	TLSKey  string `config:"tls_key"`

	HandshakeTimeout int64 `config:"handshake_timeout"`
	ConnectTimeout   int64 `config:"connect_timeout"`
	StallTimeout     int64 `config:"stall_timeout"`
	Keepalive        int64 `config:"keepalive"`

	MaxSessions  int `config:"max_sessions"`
	MaxFrameSize int `config:"max_frame_size"`
}

// ClientConfig is loaded from the config file and overridden by flags.
// Timeouts are in seconds.
type ClientConfig struct {
	Listen string `config:"listen"`
	// Server is tcp://, tls://, ws:// or wss:// followed by host:port.
	Server   string `config:"server"`
	Insecure bool   `config:"insecure"`

	Token    string `config:"token"`
	ClientID string `config:"client_id"`
	Key      string `config:"key"`
	Cipher   string `config:"cipher"`
	Mode     string `config:"mode"`

	// Multiplex shares one tunnel connection between SOCKS connections.
	Multiplex bool `config:"multiplex"`

	SocksUsername string `config:"socks_username"`
	SocksPassword string `config:"socks_password"`

	HandshakeTimeout int64 `config:"handshake_timeout"`
	RequestTimeout   int64 `config:"request_timeout"`
	StallTimeout     int64 `config:"stall_timeout"`
	Keepalive        int64 `config:"keepalive"`

	MaxFrameSize int `config:"max_frame_size"`
}

type security struct {
	mode   string
	sealer *secure.Sealer
}

// resolveSecurity picks the mode and builds the sealer. Binary mode needs a
// key and transparent mode needs a websocket.
func resolveSecurity(mode, key, cipher string, websocket bool) (*security, error) {
	if mode == "" {
		mode = codec.MODE_TRANSPARENT
		if key != "" {
			mode = codec.MODE_BINARY
		}
	}

	switch mode {
	case codec.MODE_BINARY:
		if key == "" {
			return nil, errdefs.Config("binary mode requires a key")
		}

		k, err := secure.ParseKey(key)
		if err != nil {
			return nil, err
		}
		sealer, err := secure.NewSealer(k, cipher)
		if err != nil {
			return nil, err
		}

		return &security{mode: mode, sealer: sealer}, nil
	case codec.MODE_TRANSPARENT:
		if !websocket {
			return nil, errdefs.Config("transparent mode requires a websocket transport")
		}

		return &security{mode: mode}, nil
	default:
		return nil, errdefs.Config("unknown mode %q, expect %s or %s", mode, codec.MODE_BINARY, codec.MODE_TRANSPARENT)
	}
}

func validateListen(addr string) error {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return errdefs.Config("invalid listen address %q: %w", addr, err)
	}

	return nil
}

func loadTLS(cert, key string) (*tls.Config, error) {
	if cert == "" && key == "" {
		return nil, nil
	}
	if cert == "" || key == "" {
		return nil, errdefs.Config("both tls cert and tls key are required")
	}

	pair, err := tls.LoadX509KeyPair(cert, key)
	if err != nil {
		return nil, errdefs.Config("failed to load tls certificate: %w", err)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{pair},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// parseServerURL checks the client's server URL and fills default ports and
// the websocket path.
func parseServerURL(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, errdefs.Config("server url is required")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, errdefs.Config("invalid server url: %w", err)
	}
	if u.Hostname() == "" {
		return nil, errdefs.Config("invalid server url %q: missing host", raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	switch u.Scheme {
	case SCHEME_TCP, SCHEME_TLS:
		if u.Port() == "" {
			return nil, errdefs.Config("invalid server url %q: missing port", raw)
		}
		if _, err := parsePort(u.Port()); err != nil {
			return nil, err
		}
	case SCHEME_WS, SCHEME_WSS:
		if u.Path == "" || u.Path == "/" {
			u.Path = ws.DefaultPath
		}
	default:
		return nil, errdefs.Config("unsupported server url scheme %q", u.Scheme)
	}

	return u, nil
}

func parsePort(s string) (uint16, error) {
	port, err := strconv.ParseUint(s, 10, 16)
	if err != nil || port == 0 {
		return 0, errdefs.Config("invalid port %q", s)
	}

	return uint16(port), nil
}

func seconds(v int64) time.Duration {
	return time.Duration(v) * time.Second
}

func (cfg *ServerConfig) tunnelConfig() *tunnel.Config {
	return &tunnel.Config{
		Token:            cfg.Token,
		HandshakeTimeout: seconds(cfg.HandshakeTimeout),
		ConnectTimeout:   seconds(cfg.ConnectTimeout),
		StallTimeout:     seconds(cfg.StallTimeout),
		MaxSessions:      cfg.MaxSessions,
	}
}

func (cfg *ClientConfig) tunnelConfig(clientID string) *tunnel.Config {
	return &tunnel.Config{
		Token:            cfg.Token,
		ClientID:         clientID,
		HandshakeTimeout: seconds(cfg.HandshakeTimeout),
		RequestTimeout:   seconds(cfg.RequestTimeout),
		StallTimeout:     seconds(cfg.StallTimeout),
	}
}
