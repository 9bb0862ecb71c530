package ws

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/go-zoox/gztunnel/errdefs"
)

type DialConfig struct {
	URL string
	// Insecure skips certificate verification. Development use only.
	Insecure         bool
	HandshakeTimeout time.Duration
	Header           http.Header
}

func Dial(ctx context.Context, cfg *DialConfig) (*websocket.Conn, error) {
	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: cfg.HandshakeTimeout,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.Insecure,
		},
	}

	conn, resp, err := dialer.DialContext(ctx, cfg.URL, cfg.Header)
	if err != nil {
		if resp != nil {
			return nil, errdefs.Network("dial %s: %w (status: %s)", cfg.URL, err, resp.Status)
		}
		return nil, errdefs.Network("dial %s: %w", cfg.URL, err)
	}

	return conn, nil
}
