package codec

import (
	"github.com/go-zoox/gztunnel/errdefs"
	"github.com/go-zoox/gztunnel/protocol"
)

type transparentCodec struct {
	conn         FrameConn
	maxFrameSize int
}

// NewTransparent writes one JSON envelope per frame of conn.
func NewTransparent(conn FrameConn, maxFrameSize int) Codec {
	if maxFrameSize <= 0 {
		maxFrameSize = DefaultMaxFrameSize
	}

	return &transparentCodec{
		conn:         conn,
		maxFrameSize: maxFrameSize,
	}
}

func (c *transparentCodec) ReadMessage() (protocol.Message, error) {
	frame, err := c.conn.ReadFrame()
	if err != nil {
		return nil, err
	}
	if len(frame) > c.maxFrameSize {
		return nil, errdefs.Protocol("frame length %d exceeds maximum %d", len(frame), c.maxFrameSize)
	}

	return protocol.DecodeJSON(frame)
}

func (c *transparentCodec) WriteMessage(m protocol.Message) error {
	frame, err := protocol.EncodeJSON(m)
	if err != nil {
		return err
	}
	if len(frame) > c.maxFrameSize {
		return errdefs.Protocol("frame length %d exceeds maximum %d", len(frame), c.maxFrameSize)
	}

	return c.conn.WriteFrame(frame)
}

func (c *transparentCodec) Close() error {
	return c.conn.Close()
}
