package secure

import (
	"crypto/rand"
	"encoding/base64"
	"strings"

	"github.com/go-zoox/crypto/hmac"
	"github.com/go-zoox/gztunnel/errdefs"
)

// KeySize is the length of a tunnel key in bytes.
const KeySize = 32

const fingerprintLabel = "gztunnel/key-fingerprint"

// Key is the process wide symmetric key. It prints as its fingerprint so it
// never ends up in a log line by accident.
type Key struct {
	raw [KeySize]byte
}

// ParseKey decodes a base64 encoded 32 byte key.
func ParseKey(encoded string) (*Key, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, errdefs.Config("key is required")
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errdefs.Config("key is not valid base64: %w", err)
	}
	if len(raw) != KeySize {
		return nil, errdefs.Config("key must be %d bytes, got %d", KeySize, len(raw))
	}

	k := &Key{}
	copy(k.raw[:], raw)
	return k, nil
}

// GenerateKey returns a fresh random key.
func GenerateKey() (*Key, error) {
	k := &Key{}
	if _, err := rand.Read(k.raw[:]); err != nil {
		return nil, err
	}

	return k, nil
}

// Encode returns the base64 form accepted by ParseKey.
func (k *Key) Encode() string {
	return base64.StdEncoding.EncodeToString(k.raw[:])
}

// Fingerprint identifies the key in logs without revealing it.
func (k *Key) Fingerprint() string {
	return hmac.Sha256(fingerprintLabel, string(k.raw[:]), "hex")[:16]
}

func (k *Key) String() string {
	return "key(" + k.Fingerprint() + ")"
}

func (k *Key) GoString() string {
	return k.String()
}
