package protocol

import (
	"encoding/json"

	"github.com/go-zoox/gztunnel/errdefs"
)

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// EncodeJSON serializes m as a transparent mode frame:
// {"type": "<Type>", "data": {...}}.
func EncodeJSON(m Message) ([]byte, error) {
	if err := validate(m); err != nil {
		return nil, err
	}

	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}

	return json.Marshal(&envelope{
		Type: m.Type().String(),
		Data: data,
	})
}

// DecodeJSON parses a transparent mode frame.
func DecodeJSON(raw []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, errdefs.Protocol("decode envelope: %w", err)
	}

	typ, ok := typeByName(env.Type)
	if !ok {
		return nil, errdefs.Protocol("unknown message type: %q", env.Type)
	}

	m, _ := newMessage(typ)
	if len(env.Data) == 0 {
		return nil, errdefs.Protocol("%s without data", typ)
	}
	if err := json.Unmarshal(env.Data, m); err != nil {
		return nil, errdefs.Protocol("decode %s: %w", typ, err)
	}

	if err := validate(m); err != nil {
		return nil, err
	}

	return m, nil
}
