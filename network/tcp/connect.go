package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/go-zoox/logger"

	"github.com/go-zoox/gztunnel/errdefs"
)

// DefaultConnectTimeout bounds an outbound connect attempt.
const DefaultConnectTimeout = 10 * time.Second

type ConnectTarget struct {
	Host    string
	Port    uint16
	Timeout time.Duration
	// ID tags the connect log line.
	ID string
}

// Connect dials the target. A deadline miss is a timeout error, anything else
// a network error.
func Connect(ctx context.Context, cfg *ConnectTarget) (net.Conn, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}

	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))
	logger.Debugf("[connection:tcp][%s] connect to: %s", cfg.ID, addr)

	dialer := &net.Dialer{
		Timeout:   timeout,
		KeepAlive: 30 * time.Second,
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		var ne net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
			return nil, errdefs.Timeout("dial %s: %w", addr, err)
		}
		return nil, errdefs.Network("dial %s: %w", addr, err)
	}

	return conn, nil
}
