// Package secure provides the AEAD used by binary mode frames.
//
// A Sealer owns its nonce generation: every Seal draws a fresh random nonce
// and prepends it to the ciphertext, and there is no API that accepts a nonce
// from the caller. Open failures are protocol errors and are never retried or
// downgraded.
package secure

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"github.com/go-zoox/gztunnel/errdefs"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	CipherAES256GCM        = "aes-256-gcm"
	CipherChaCha20Poly1305 = "chacha20-poly1305"
)

// Sealer encrypts and authenticates individual messages.
type Sealer struct {
	name string
	aead cipher.AEAD
}

// NewSealer builds a Sealer for the named cipher. An empty name selects
// AES-256-GCM.
func NewSealer(key *Key, name string) (*Sealer, error) {
	if key == nil {
		return nil, errdefs.Config("key is required")
	}

	if name == "" {
		name = CipherAES256GCM
	}

	var aead cipher.AEAD
	var err error
	switch name {
	case CipherAES256GCM:
		var block cipher.Block
		if block, err = aes.NewCipher(key.raw[:]); err == nil {
			aead, err = cipher.NewGCM(block)
		}
	case CipherChaCha20Poly1305:
		aead, err = chacha20poly1305.New(key.raw[:])
	default:
		return nil, errdefs.Config("unsupported cipher: %s", name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", name, err)
	}

	return &Sealer{
		name: name,
		aead: aead,
	}, nil
}

// Name returns the cipher name.
func (s *Sealer) Name() string {
	return s.name
}

// Overhead is the number of bytes Seal adds to a plaintext.
func (s *Sealer) Overhead() int {
	return s.aead.NonceSize() + s.aead.Overhead()
}

// Seal returns nonce || ciphertext || tag.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	nonceSize := s.aead.NonceSize()
	out := make([]byte, nonceSize, nonceSize+len(plaintext)+s.aead.Overhead())
	if _, err := rand.Read(out); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return s.aead.Seal(out, out[:nonceSize], plaintext, nil), nil
}

// Open authenticates and decrypts a sealed payload.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < s.Overhead() {
		return nil, errdefs.Protocol("sealed payload too short: %d bytes", len(sealed))
	}

	nonceSize := s.aead.NonceSize()
	plaintext, err := s.aead.Open(nil, sealed[:nonceSize], sealed[nonceSize:], nil)
	if err != nil {
		return nil, errdefs.Protocol("failed to authenticate frame: %w", err)
	}

	return plaintext, nil
}
