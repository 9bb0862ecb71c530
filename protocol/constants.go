package protocol

const (
	VERSION = 1
)

// Type is the discriminator of a Message.
type Type uint8

const (
	TYPE_HANDSHAKE          Type = 0x01
	TYPE_HANDSHAKE_RESPONSE Type = 0x02
	TYPE_PROXY_REQUEST      Type = 0x03
	TYPE_PROXY_RESPONSE     Type = 0x04
	TYPE_DATA               Type = 0x05
	TYPE_ERROR              Type = 0x06
	TYPE_CLOSE              Type = 0xff
)

const (
	STATUS_OK     = 0x00
	STATUS_FAILED = 0x01
)

const (
	LENGTH_SESSION_ID = 4
	LENGTH_PORT       = 2
	MAX_TOKEN         = 0xffff
	MAX_SHORT_STRING  = 0xff
)

var typeNames = map[Type]string{
	TYPE_HANDSHAKE:          "Handshake",
	TYPE_HANDSHAKE_RESPONSE: "HandshakeResponse",
	TYPE_PROXY_REQUEST:      "ProxyRequest",
	TYPE_PROXY_RESPONSE:     "ProxyResponse",
	TYPE_DATA:               "Data",
	TYPE_ERROR:              "Error",
	TYPE_CLOSE:              "Close",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}

	return "Unknown"
}

func typeByName(name string) (Type, bool) {
	for t, n := range typeNames {
		if n == name {
			return t, true
		}
	}

	return 0, false
}
