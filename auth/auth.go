package auth

import (
	"crypto/subtle"

	"github.com/go-zoox/crypto/hmac"
	"github.com/go-zoox/uuid"
)

const digestLabel = "gztunnel/token"

// Credentials identify a client to a server.
type Credentials struct {
	ClientID string
	Token    string
}

// New returns credentials for token. An empty clientID is replaced by a
// random uuid.
func New(clientID, token string) *Credentials {
	if clientID == "" {
		clientID = uuid.V4()
	}

	return &Credentials{
		ClientID: clientID,
		Token:    token,
	}
}

// Verifier checks presented tokens against the configured one.
type Verifier interface {
	Verify(token string) bool
}

type verifier struct {
	digest []byte
}

// NewVerifier returns a Verifier for the expected token.
func NewVerifier(expected string) Verifier {
	return &verifier{
		digest: digest(expected),
	}
}

// Verify compares fixed size digests in constant time, so neither the
// mismatch position nor the token length leaks through timing.
func (v *verifier) Verify(token string) bool {
	return subtle.ConstantTimeCompare(digest(token), v.digest) == 1
}

func digest(token string) []byte {
	return []byte(hmac.Sha256(token, digestLabel, "hex"))
}
