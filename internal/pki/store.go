// Package pki manages the on-disk certificate store: the server keypair,
// and the trusted/rejected client certificate directories.
package pki

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"log/slog"
	"math/big"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/alxayo/opcua-server/internal/logger"
	"github.com/alxayo/opcua-server/internal/ua/bin"
)

const (
	ownDir      = "own"
	privateDir  = "private"
	trustedDir  = "trusted"
	rejectedDir = "rejected"

	certFile = "cert.der"
	keyFile  = "private.pem"

	sampleKeyBits  = 2048
	sampleValidity = 365 * 24 * time.Hour
)

// Store is the PKI directory handle. Certificate material is loaded once at
// construction; the trusted/rejected directories are touched per client
// certificate.
type Store struct {
	dir             string
	trustClientCerts bool
	log             *slog.Logger

	certDER []byte
	key     *rsa.PrivateKey
}

// NewStore opens (and if needed lays out) the PKI directory. When
// createSample is set and no keypair exists, a self-signed sample keypair is
// generated. Missing pieces are logged, never fatal: a server without a
// certificate still serves None-policy endpoints.
func NewStore(dir string, createSample bool, applicationName, applicationURI string) (*Store, error) {
	s := &Store{
		dir: dir,
		log: logger.Logger().With("component", "pki", "dir", dir),
	}
	for _, sub := range []string{ownDir, privateDir, trustedDir, rejectedDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o750); err != nil {
			return nil, fmt.Errorf("pki layout %s: %w", sub, err)
		}
	}

	if err := s.loadKeypair(""); err != nil {
		if !createSample {
			s.log.Error("no server keypair", "error", err)
			return s, nil
		}
		if err := s.createSampleKeypair(applicationName, applicationURI); err != nil {
			s.log.Error("sample keypair creation failed", "error", err)
			return s, nil
		}
		s.log.Info("sample keypair created", "application_uri", applicationURI)
	}
	return s, nil
}

// Certificate returns the server certificate DER, or nil when absent.
func (s *Store) Certificate() []byte { return s.certDER }

// PrivateKey returns the server private key, or nil when absent.
func (s *Store) PrivateKey() *rsa.PrivateKey { return s.key }

func (s *Store) certPath() string { return filepath.Join(s.dir, ownDir, certFile) }
func (s *Store) keyPath() string  { return filepath.Join(s.dir, privateDir, keyFile) }

func (s *Store) loadKeypair(passphrase string) error {
	der, err := os.ReadFile(s.certPath())
	if err != nil {
		return fmt.Errorf("read certificate: %w", err)
	}
	if len(der) > bin.MaxCertificateLength {
		return fmt.Errorf("certificate is %d bytes, cap is %d", len(der), bin.MaxCertificateLength)
	}
	if _, err := x509.ParseCertificate(der); err != nil {
		return fmt.Errorf("parse certificate: %w", err)
	}

	pemBytes, err := os.ReadFile(s.keyPath())
	if err != nil {
		return fmt.Errorf("read private key: %w", err)
	}
	key, err := DecodePrivateKeyPEM(pemBytes, passphrase)
	if err != nil {
		return fmt.Errorf("decode private key: %w", err)
	}

	s.certDER = der
	s.key = key
	return nil
}

// createSampleKeypair generates a self-signed certificate whose SAN URI is
// the application uri, as clients use it to match the endpoint identity.
func (s *Store) createSampleKeypair(applicationName, applicationURI string) error {
	key, err := rsa.GenerateKey(rand.Reader, sampleKeyBits)
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return fmt.Errorf("serial: %w", err)
	}

	uri, err := url.Parse(applicationURI)
	if err != nil {
		return fmt.Errorf("application uri: %w", err)
	}
	now := time.Now()
	tmpl := x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: applicationName},
		NotBefore:    now.Add(-time.Hour),
		NotAfter:     now.Add(sampleValidity),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment | x509.KeyUsageDataEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		URIs:         []*url.URL{uri},
	}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	if err != nil {
		return fmt.Errorf("create certificate: %w", err)
	}

	if err := os.WriteFile(s.certPath(), der, 0o640); err != nil {
		return fmt.Errorf("write certificate: %w", err)
	}
	pemBytes, err := EncodePrivateKeyPEM(key, "")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.keyPath(), pemBytes, 0o600); err != nil {
		return fmt.Errorf("write private key: %w", err)
	}

	s.certDER = der
	s.key = key
	return nil
}

// SetTrustClientCerts toggles accept-all mode for client certificates.
func (s *Store) SetTrustClientCerts(trust bool) { s.trustClientCerts = trust }

// ValidateClientCertificate decides whether a client certificate is
// acceptable. In trust-all mode everything parseable passes. Otherwise the
// certificate must already sit in trusted/; unknown certificates are
// written to rejected/ so an operator can move them over.
func (s *Store) ValidateClientCertificate(der []byte) bool {
	if len(der) == 0 {
		// None-policy connections carry no certificate.
		return true
	}
	if len(der) > bin.MaxCertificateLength {
		s.log.Warn("client certificate oversized", "len", len(der))
		return false
	}
	if _, err := x509.ParseCertificate(der); err != nil {
		s.log.Warn("client certificate unparseable", "error", err)
		return false
	}
	if s.trustClientCerts {
		return true
	}

	name := Thumbprint(der) + ".der"
	if _, err := os.Stat(filepath.Join(s.dir, trustedDir, name)); err == nil {
		return true
	}
	rejected := filepath.Join(s.dir, rejectedDir, name)
	if err := os.WriteFile(rejected, der, 0o640); err != nil {
		s.log.Warn("rejected certificate not persisted", "error", err)
	}
	s.log.Info("client certificate rejected", "thumbprint", Thumbprint(der))
	return false
}

// Thumbprint is the SHA-1 hex digest conventionally used to name
// certificates on disk and in receiver thumbprints.
func Thumbprint(der []byte) string {
	sum := sha1.Sum(der)
	return hex.EncodeToString(sum[:])
}

// keyBlockType is the PEM block label of the unencrypted private key on disk.
const keyBlockType = "RSA PRIVATE KEY"

func marshalKeyPEMBlock(key *rsa.PrivateKey) *pem.Block {
	return &pem.Block{Type: keyBlockType, Bytes: x509.MarshalPKCS1PrivateKey(key)}
}
