package ws

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/go-zoox/logger"
	"github.com/gorilla/websocket"

	"github.com/go-zoox/gztunnel/errdefs"
)

const (
	MessageTypeText   = websocket.TextMessage
	MessageTypeBinary = websocket.BinaryMessage
)

// DefaultKeepalive is the ping interval on an idle websocket.
const DefaultKeepalive = 30 * time.Second

const writeWait = 5 * time.Second

// Conn adapts a websocket to both transports the codecs need: a frame
// transport carrying text frames, and a byte stream carried in binary
// frames. A Conn is used in one of the two ways, never both.
type Conn struct {
	conn      *websocket.Conn
	reader    io.Reader
	keepalive time.Duration

	done      chan struct{}
	closeOnce sync.Once
}

type ConnConfig struct {
	MaxFrameSize int
	Keepalive    time.Duration
}

// New wraps conn and starts its keepalive. A negative Keepalive disables it.
func New(conn *websocket.Conn, cfg *ConnConfig) *Conn {
	keepalive := DefaultKeepalive
	if cfg != nil && cfg.Keepalive != 0 {
		keepalive = cfg.Keepalive
	}
	if cfg != nil && cfg.MaxFrameSize > 0 {
		// room for the length prefix in binary mode
		conn.SetReadLimit(int64(cfg.MaxFrameSize) + 4)
	}

	c := &Conn{
		conn:      conn,
		keepalive: keepalive,
		done:      make(chan struct{}),
	}

	if keepalive > 0 {
		c.extend()
		conn.SetPongHandler(func(string) error {
			c.extend()
			return nil
		})
		go c.ping()
	}

	return c
}

func (c *Conn) extend() {
	if c.keepalive > 0 {
		c.conn.SetReadDeadline(time.Now().Add(3 * c.keepalive))
	}
}

func (c *Conn) ping() {
	ticker := time.NewTicker(c.keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				logger.Debugf("[ws][%s] failed to ping: %v", c.conn.RemoteAddr(), err)
				return
			}
		case <-c.done:
			return
		}
	}
}

// ReadFrame returns the next text frame.
func (c *Conn) ReadFrame() ([]byte, error) {
	mt, message, err := c.conn.ReadMessage()
	if err != nil {
		return nil, translate(err)
	}
	c.extend()

	if mt != MessageTypeText {
		return nil, errdefs.Protocol("expected text frame, got type %d", mt)
	}

	return message, nil
}

// WriteFrame sends frame as one text message.
func (c *Conn) WriteFrame(frame []byte) error {
	return c.conn.WriteMessage(MessageTypeText, frame)
}

// Read reads the byte stream carried in consecutive binary messages.
func (c *Conn) Read(p []byte) (int, error) {
	for {
		if c.reader == nil {
			mt, reader, err := c.conn.NextReader()
			if err != nil {
				return 0, translate(err)
			}
			c.extend()

			if mt != MessageTypeBinary {
				return 0, errdefs.Protocol("expected binary frame, got type %d", mt)
			}
			c.reader = reader
		}

		n, err := c.reader.Read(p)
		if errors.Is(err, io.EOF) {
			c.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

// Write sends p as one binary message.
func (c *Conn) Write(p []byte) (int, error) {
	if err := c.conn.WriteMessage(MessageTypeBinary, p); err != nil {
		return 0, err
	}

	return len(p), nil
}

// Close sends a close frame and closes the underlying connection.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		err = c.conn.Close()
	})
	return err
}

func translate(err error) error {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return io.EOF
	}

	return err
}
