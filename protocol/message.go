package protocol

// Message is one of the seven tunnel messages. Values are immutable once
// built and are never shared between sessions.
type Message interface {
	Type() Type
}

// Handshake is the first message a client sends on a new connection.
type Handshake struct {
	Token    string `json:"token"`
	ClientID string `json:"client_id"`
}

// HandshakeResponse answers a Handshake. TunnelID is assigned by the server.
type HandshakeResponse struct {
	OK       bool   `json:"ok"`
	Reason   string `json:"reason,omitempty"`
	TunnelID string `json:"tunnel_id,omitempty"`
}

// ProxyRequest asks the server to open a stream to Host:Port.
type ProxyRequest struct {
	SessionID uint32 `json:"session_id"`
	Host      string `json:"host"`
	Port      uint16 `json:"port"`
}

type ProxyResponse struct {
	SessionID uint32 `json:"session_id"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
}

type Data struct {
	SessionID uint32 `json:"session_id"`
	Bytes     []byte `json:"bytes"`
}

type Close struct {
	SessionID uint32 `json:"session_id"`
}

// Error reports a failure to the peer. A zero SessionID addresses the
// connection itself.
type Error struct {
	SessionID uint32 `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

func (*Handshake) Type() Type         { return TYPE_HANDSHAKE }
func (*HandshakeResponse) Type() Type { return TYPE_HANDSHAKE_RESPONSE }
func (*ProxyRequest) Type() Type      { return TYPE_PROXY_REQUEST }
func (*ProxyResponse) Type() Type     { return TYPE_PROXY_RESPONSE }
func (*Data) Type() Type              { return TYPE_DATA }
func (*Close) Type() Type             { return TYPE_CLOSE }
func (*Error) Type() Type             { return TYPE_ERROR }

// SessionOf returns the session a message is addressed to. ok is false for
// connection level messages.
func SessionOf(m Message) (id uint32, ok bool) {
	switch v := m.(type) {
	case *ProxyRequest:
		return v.SessionID, true
	case *ProxyResponse:
		return v.SessionID, true
	case *Data:
		return v.SessionID, true
	case *Close:
		return v.SessionID, true
	case *Error:
		return v.SessionID, v.SessionID != 0
	default:
		return 0, false
	}
}

func newMessage(t Type) (Message, bool) {
	switch t {
	case TYPE_HANDSHAKE:
		return &Handshake{}, true
	case TYPE_HANDSHAKE_RESPONSE:
		return &HandshakeResponse{}, true
	case TYPE_PROXY_REQUEST:
		return &ProxyRequest{}, true
	case TYPE_PROXY_RESPONSE:
		return &ProxyResponse{}, true
	case TYPE_DATA:
		return &Data{}, true
	case TYPE_CLOSE:
		return &Close{}, true
	case TYPE_ERROR:
		return &Error{}, true
	default:
		return nil, false
	}
}
