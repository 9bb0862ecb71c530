// Package codec puts protocol messages on a transport.
//
// Binary mode seals every message and frames it with a big endian length
// prefix on a byte stream. Transparent mode writes one JSON envelope per
// transport message. Both satisfy Codec, so the tunnel does not care which
// one it runs on.
//
// A Codec is not safe for concurrent writers. The tunnel owns exactly one
// writer goroutine per connection.
package codec

import (
	"github.com/go-zoox/gztunnel/protocol"
)

const (
	MODE_BINARY      = "binary"
	MODE_TRANSPARENT = "transparent"
)

// DefaultMaxFrameSize bounds a single frame in either mode.
const DefaultMaxFrameSize = 256 * 1024

// Codec reads and writes whole messages.
type Codec interface {
	ReadMessage() (protocol.Message, error)
	WriteMessage(m protocol.Message) error
	Close() error
}

// FrameConn is a message oriented transport such as a websocket.
type FrameConn interface {
	ReadFrame() ([]byte, error)
	WriteFrame(frame []byte) error
	Close() error
}
