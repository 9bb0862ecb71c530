package tunnel

import (
	"context"
	"net"
	"time"

	"github.com/go-zoox/gztunnel/network/tcp"
	"github.com/go-zoox/gztunnel/relay"
)

const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultRequestTimeout   = 15 * time.Second
	DefaultStallTimeout     = 2 * time.Second
	DefaultQueueSize        = 8
	DefaultOutboxSize       = 64
)

// Config is shared by every connection of a process and never mutated after
// the connection is created.
type Config struct {
	// Token is presented by clients and expected by servers.
	Token string
	// ClientID is sent in the handshake. Clients only.
	ClientID string

	HandshakeTimeout time.Duration
	// ConnectTimeout bounds the server's outbound dial.
	ConnectTimeout time.Duration
	// RequestTimeout bounds how long a client waits for a ProxyResponse.
	RequestTimeout time.Duration
	// StallTimeout is how long a full inbound queue may block dispatch
	// before its session is torn down. Dispatch is shared, so every other
	// session on the connection waits up to this long behind a stalled one.
	StallTimeout time.Duration

	// QueueSize is the per session inbound queue length in chunks.
	QueueSize int
	// OutboxSize is the connection's outgoing queue length in messages.
	OutboxSize int
	// ChunkSize is the largest Data payload.
	ChunkSize int
	// MaxSessions caps concurrent sessions per connection. Zero is unlimited.
	MaxSessions int

	// Dial opens the server's outbound stream. Nil means a TCP dial.
	Dial func(ctx context.Context, host string, port uint16) (net.Conn, error)
}

func (c *Config) withDefaults() *Config {
	cfg := *c

	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = tcp.DefaultConnectTimeout
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.StallTimeout <= 0 {
		cfg.StallTimeout = DefaultStallTimeout
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.OutboxSize <= 0 {
		cfg.OutboxSize = DefaultOutboxSize
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = relay.DefaultChunkSize
	}

	return &cfg
}
