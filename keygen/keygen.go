// Package keygen creates the shared secrets both ends are configured with,
// and optionally a self-signed certificate for the server's TLS listener.
package keygen

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"time"

	"github.com/go-zoox/fs"

	"github.com/go-zoox/gztunnel/errdefs"
	"github.com/go-zoox/gztunnel/secure"
)

// LENGTH_TOKEN is the number of random bytes behind a generated token.
const LENGTH_TOKEN = 24

// CertificateValidity is how long a generated certificate is valid.
const CertificateValidity = 365 * 24 * time.Hour

type Secrets struct {
	Key         string
	Fingerprint string
	Token       string
}

// Generate returns a fresh base64 key and a random token.
func Generate() (*Secrets, error) {
	key, err := secure.GenerateKey()
	if err != nil {
		return nil, err
	}

	token, err := GenerateToken()
	if err != nil {
		return nil, err
	}

	return &Secrets{
		Key:         key.Encode(),
		Fingerprint: key.Fingerprint(),
		Token:       token,
	}, nil
}

func GenerateToken() (string, error) {
	buf := make([]byte, LENGTH_TOKEN)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

type CertificateConfig struct {
	CertFile string
	KeyFile  string
	// Hosts are DNS names or IP addresses put in the certificate.
	Hosts []string
}

// WriteCertificate writes a self-signed ECDSA P-256 certificate and its key
// as PEM. Existing files are never overwritten.
func WriteCertificate(cfg *CertificateConfig) error {
	if cfg.CertFile == "" || cfg.KeyFile == "" {
		return errdefs.Config("both certificate and key paths are required")
	}
	for _, path := range []string{cfg.CertFile, cfg.KeyFile} {
		if fs.IsExist(path) {
			return errdefs.Config("refusing to overwrite %s", path)
		}
	}

	certPEM, keyPEM, err := SelfSigned(cfg.Hosts)
	if err != nil {
		return err
	}

	if err := os.WriteFile(cfg.CertFile, certPEM, 0644); err != nil {
		return fmt.Errorf("failed to write certificate: %w", err)
	}
	if err := os.WriteFile(cfg.KeyFile, keyPEM, 0600); err != nil {
		return fmt.Errorf("failed to write certificate key: %w", err)
	}

	return nil
}

// SelfSigned returns a PEM certificate and key valid for hosts, defaulting to
// localhost.
func SelfSigned(hosts []string) (certPEM []byte, keyPEM []byte, err error) {
	if len(hosts) == 0 {
		hosts = []string{"localhost", "127.0.0.1"}
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate certificate key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate serial number: %w", err)
	}

	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: hosts[0]},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(CertificateValidity),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	for _, host := range hosts {
		if ip := net.ParseIP(host); ip != nil {
			tmpl.IPAddresses = append(tmpl.IPAddresses, ip)
		} else {
			tmpl.DNSNames = append(tmpl.DNSNames, host)
		}
	}

	certDER, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create certificate: %w", err)
	}

	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode certificate key: %w", err)
	}

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	return certPEM, keyPEM, nil
}
