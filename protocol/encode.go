package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Encode serializes m into the binary plaintext layout.
func Encode(m Message) ([]byte, error) {
	if err := validate(m); err != nil {
		return nil, err
	}

	buf := bytes.NewBuffer([]byte{})
	buf.WriteByte(VERSION)
	buf.WriteByte(byte(m.Type()))

	switch v := m.(type) {
	case *Handshake:
		writeUint16(buf, uint16(len(v.Token)))
		buf.WriteString(v.Token)
		buf.WriteByte(byte(len(v.ClientID)))
		buf.WriteString(v.ClientID)
	case *HandshakeResponse:
		buf.WriteByte(status(v.OK))
		buf.WriteByte(byte(len(v.TunnelID)))
		buf.WriteString(v.TunnelID)
		buf.WriteString(v.Reason)
	case *ProxyRequest:
		writeUint32(buf, v.SessionID)
		writeUint16(buf, v.Port)
		buf.WriteByte(byte(len(v.Host)))
		buf.WriteString(v.Host)
	case *ProxyResponse:
		writeUint32(buf, v.SessionID)
		buf.WriteByte(status(v.OK))
		buf.WriteString(v.Error)
	case *Data:
		writeUint32(buf, v.SessionID)
		buf.Write(v.Bytes)
	case *Error:
		writeUint32(buf, v.SessionID)
		buf.WriteString(v.Message)
	case *Close:
		writeUint32(buf, v.SessionID)
	default:
		return nil, fmt.Errorf("unsupported message type: %T", m)
	}

	return buf.Bytes(), nil
}

func status(ok bool) byte {
	if ok {
		return STATUS_OK
	}

	return STATUS_FAILED
}

func writeUint16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}
