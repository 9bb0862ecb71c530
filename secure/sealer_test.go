package secure

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/go-zoox/gztunnel/errdefs"
)

func newTestSealer(t *testing.T, name string) (*Key, *Sealer) {
	t.Helper()

	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %s", err)
	}

	sealer, err := NewSealer(key, name)
	if err != nil {
		t.Fatalf("failed to create sealer: %s", err)
	}

	return key, sealer
}

func TestSealOpen(t *testing.T) {
	for _, name := range []string{CipherAES256GCM, CipherChaCha20Poly1305} {
		t.Run(name, func(t *testing.T) {
			_, sealer := newTestSealer(t, name)
			plaintext := []byte("GET / HTTP/1.0\r\n\r\n")

			first, err := sealer.Seal(plaintext)
			if err != nil {
				t.Fatalf("failed to seal: %s", err)
			}

			second, err := sealer.Seal(plaintext)
			if err != nil {
				t.Fatalf("failed to seal: %s", err)
			}

			if bytes.Equal(first, second) {
				t.Fatalf("sealing the same plaintext twice must not repeat the ciphertext")
			}

			if len(first) != len(plaintext)+sealer.Overhead() {
				t.Fatalf("length not match, expect %d, but got %d", len(plaintext)+sealer.Overhead(), len(first))
			}

			opened, err := sealer.Open(first)
			if err != nil {
				t.Fatalf("failed to open: %s", err)
			}

			if !bytes.Equal(opened, plaintext) {
				t.Fatalf("plaintext not match, expect %q, but got %q", plaintext, opened)
			}
		})
	}
}

func TestOpenRejectsEveryBitFlip(t *testing.T) {
	_, sealer := newTestSealer(t, "")

	sealed, err := sealer.Seal([]byte("hello zero"))
	if err != nil {
		t.Fatalf("failed to seal: %s", err)
	}

	for i := 0; i < len(sealed)*8; i++ {
		tampered := append([]byte{}, sealed...)
		tampered[i/8] ^= 1 << (i % 8)

		if _, err := sealer.Open(tampered); !errors.Is(err, errdefs.ErrProtocol) {
			t.Fatalf("bit %d: expect protocol error, but got %v", i, err)
		}
	}
}

func TestOpenRejectsOtherKey(t *testing.T) {
	_, a := newTestSealer(t, "")
	_, b := newTestSealer(t, "")

	sealed, err := a.Seal([]byte("hello zero"))
	if err != nil {
		t.Fatalf("failed to seal: %s", err)
	}

	if _, err := b.Open(sealed); !errors.Is(err, errdefs.ErrProtocol) {
		t.Fatalf("expect protocol error, but got %v", err)
	}

	if _, err := b.Open(sealed[:5]); !errors.Is(err, errdefs.ErrProtocol) {
		t.Fatalf("expect protocol error for truncated payload, but got %v", err)
	}
}

func TestParseKey(t *testing.T) {
	key, _ := newTestSealer(t, "")

	encoded := key.Encode()
	if len(encoded) != 44 {
		t.Fatalf("encoded length not match, expect 44, but got %d", len(encoded))
	}

	parsed, err := ParseKey(encoded)
	if err != nil {
		t.Fatalf("failed to parse key: %s", err)
	}

	if parsed.Fingerprint() != key.Fingerprint() {
		t.Fatalf("Fingerprint not match, expect %s, but got %s", key.Fingerprint(), parsed.Fingerprint())
	}

	for _, bad := range []string{"", "not base64!", "c2hvcnQ="} {
		if _, err := ParseKey(bad); !errors.Is(err, errdefs.ErrConfig) {
			t.Fatalf("ParseKey(%q): expect config error, but got %v", bad, err)
		}
	}
}

func TestKeyNeverPrinted(t *testing.T) {
	key, _ := newTestSealer(t, "")

	for _, out := range []string{fmt.Sprintf("%v", key), fmt.Sprintf("%s", key), fmt.Sprintf("%#v", key)} {
		if strings.Contains(out, key.Encode()) {
			t.Fatalf("formatted key leaks its value: %s", out)
		}
	}
}

func TestUnsupportedCipher(t *testing.T) {
	key, _ := newTestSealer(t, "")

	if _, err := NewSealer(key, "rc4"); !errors.Is(err, errdefs.ErrConfig) {
		t.Fatalf("expect config error, but got %v", err)
	}
}
