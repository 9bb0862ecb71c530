package protocol

import (
	"github.com/go-zoox/gztunnel/errdefs"
)

func validate(m Message) error {
	switch v := m.(type) {
	case *Handshake:
		if len(v.Token) > MAX_TOKEN {
			return errdefs.Protocol("token too long: %d", len(v.Token))
		}
		if len(v.ClientID) > MAX_SHORT_STRING {
			return errdefs.Protocol("client id too long: %d", len(v.ClientID))
		}
	case *HandshakeResponse:
		if len(v.TunnelID) > MAX_SHORT_STRING {
			return errdefs.Protocol("tunnel id too long: %d", len(v.TunnelID))
		}
	case *ProxyRequest:
		if v.SessionID == 0 {
			return errdefs.Protocol("%s without session id", v.Type())
		}
		if v.Host == "" || len(v.Host) > MAX_SHORT_STRING {
			return errdefs.Protocol("invalid host length: %d", len(v.Host))
		}
		if v.Port == 0 {
			return errdefs.Protocol("invalid port: 0")
		}
	case *ProxyResponse:
		if v.SessionID == 0 {
			return errdefs.Protocol("%s without session id", v.Type())
		}
	case *Data:
		if v.SessionID == 0 {
			return errdefs.Protocol("%s without session id", v.Type())
		}
	case *Close:
		if v.SessionID == 0 {
			return errdefs.Protocol("%s without session id", v.Type())
		}
	case *Error:
	case nil:
		return errdefs.Protocol("nil message")
	}

	return nil
}
