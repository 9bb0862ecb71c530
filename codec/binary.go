package codec

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"

	"github.com/go-zoox/gztunnel/errdefs"
	"github.com/go-zoox/gztunnel/protocol"
	"github.com/go-zoox/gztunnel/secure"
)

const LENGTH_PREFIX = 4

type binaryCodec struct {
	reader *bufio.Reader
	writer io.Writer
	closer io.Closer

	sealer       *secure.Sealer
	maxFrameSize int
}

// NewBinary frames sealed messages on stream. maxFrameSize bounds the sealed
// payload that follows a length prefix. Zero selects DefaultMaxFrameSize.
func NewBinary(stream io.ReadWriteCloser, sealer *secure.Sealer, maxFrameSize int) Codec {
	if maxFrameSize <= 0 {
		maxFrameSize = DefaultMaxFrameSize
	}

	return &binaryCodec{
		reader:       bufio.NewReader(stream),
		writer:       stream,
		closer:       stream,
		sealer:       sealer,
		maxFrameSize: maxFrameSize,
	}
}

// ReadMessage blocks until a whole frame has arrived. The length is checked
// against the maximum before anything is allocated for the payload.
func (c *binaryCodec) ReadMessage() (protocol.Message, error) {
	header := make([]byte, LENGTH_PREFIX)
	if _, err := io.ReadFull(c.reader, header); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, errdefs.Protocol("truncated frame header")
		}
		return nil, err
	}

	length := binary.BigEndian.Uint32(header)
	if int64(length) > int64(c.maxFrameSize) {
		return nil, errdefs.Protocol("frame length %d exceeds maximum %d", length, c.maxFrameSize)
	}
	if int(length) < c.sealer.Overhead() {
		return nil, errdefs.Protocol("frame length %d shorter than cipher overhead", length)
	}

	sealed := make([]byte, length)
	if _, err := io.ReadFull(c.reader, sealed); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, errdefs.Protocol("truncated frame: %w", err)
		}
		return nil, err
	}

	plaintext, err := c.sealer.Open(sealed)
	if err != nil {
		return nil, err
	}

	return protocol.Decode(plaintext)
}

// WriteMessage writes the length prefix and the sealed payload in one call,
// so a message oriented stream carries exactly one frame per message.
func (c *binaryCodec) WriteMessage(m protocol.Message) error {
	plaintext, err := protocol.Encode(m)
	if err != nil {
		return err
	}

	sealed, err := c.sealer.Seal(plaintext)
	if err != nil {
		return err
	}
	if len(sealed) > c.maxFrameSize {
		return errdefs.Protocol("frame length %d exceeds maximum %d", len(sealed), c.maxFrameSize)
	}

	frame := make([]byte, LENGTH_PREFIX+len(sealed))
	binary.BigEndian.PutUint32(frame, uint32(len(sealed)))
	copy(frame[LENGTH_PREFIX:], sealed)

	_, err = c.writer.Write(frame)
	return err
}

func (c *binaryCodec) Close() error {
	return c.closer.Close()
}
