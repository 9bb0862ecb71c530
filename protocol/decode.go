package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/go-zoox/gztunnel/errdefs"
)

// Decode parses one binary plaintext message. Every failure is a protocol
// error.
func Decode(raw []byte) (Message, error) {
	reader := bytes.NewReader(raw)

	header := make([]byte, 2)
	if _, err := io.ReadFull(reader, header); err != nil {
		return nil, errdefs.Protocol("read header: %w", err)
	}
	if header[0] != VERSION {
		return nil, errdefs.Protocol("unsupported version: %d", header[0])
	}

	typ := Type(header[1])
	m, ok := newMessage(typ)
	if !ok {
		return nil, errdefs.Protocol("unknown message type: 0x%02x", header[1])
	}

	var err error
	switch v := m.(type) {
	case *Handshake:
		var n uint16
		if n, err = readUint16(reader); err == nil {
			if v.Token, err = readString(reader, int(n)); err == nil {
				v.ClientID, err = readShortString(reader)
			}
		}
		if err == nil {
			err = expectEOF(reader)
		}
	case *HandshakeResponse:
		var st byte
		if st, err = reader.ReadByte(); err == nil {
			v.OK = st == STATUS_OK
			if v.TunnelID, err = readShortString(reader); err == nil {
				v.Reason, err = readRest(reader)
			}
		}
	case *ProxyRequest:
		if v.SessionID, err = readUint32(reader); err == nil {
			if v.Port, err = readUint16(reader); err == nil {
				v.Host, err = readShortString(reader)
			}
		}
		if err == nil {
			err = expectEOF(reader)
		}
	case *ProxyResponse:
		var st byte
		if v.SessionID, err = readUint32(reader); err == nil {
			if st, err = reader.ReadByte(); err == nil {
				v.OK = st == STATUS_OK
				v.Error, err = readRest(reader)
			}
		}
	case *Data:
		if v.SessionID, err = readUint32(reader); err == nil {
			v.Bytes = make([]byte, reader.Len())
			_, err = io.ReadFull(reader, v.Bytes)
		}
	case *Error:
		if v.SessionID, err = readUint32(reader); err == nil {
			v.Message, err = readRest(reader)
		}
	case *Close:
		if v.SessionID, err = readUint32(reader); err == nil {
			err = expectEOF(reader)
		}
	}
	if err != nil {
		return nil, errdefs.Protocol("decode %s: %w", typ, err)
	}

	if err := validate(m); err != nil {
		return nil, err
	}

	return m, nil
}

func readUint16(r *bytes.Reader) (uint16, error) {
	b := make([]byte, 2)
	if _, err := io.ReadFull(r, b); err != nil {
		return 0, err
	}

	return binary.BigEndian.Uint16(b), nil
}

func readUint32(r *bytes.Reader) (uint32, error) {
	b := make([]byte, LENGTH_SESSION_ID)
	if _, err := io.ReadFull(r, b); err != nil {
		return 0, err
	}

	return binary.BigEndian.Uint32(b), nil
}

func readString(r *bytes.Reader, n int) (string, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}

	return string(b), nil
}

func readShortString(r *bytes.Reader) (string, error) {
	n, err := r.ReadByte()
	if err != nil {
		return "", err
	}

	return readString(r, int(n))
}

func readRest(r *bytes.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}

	return string(b), nil
}

func expectEOF(r *bytes.Reader) error {
	if r.Len() != 0 {
		return fmt.Errorf("%d trailing bytes", r.Len())
	}

	return nil
}
