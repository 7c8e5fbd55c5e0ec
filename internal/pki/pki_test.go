package pki

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStoreCreatesSampleKeypair(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, true, "test-server", "urn:test:server")
	require.NoError(t, err)
	require.NotEmpty(t, s.Certificate())
	require.NotNil(t, s.PrivateKey())

	cert, err := x509.ParseCertificate(s.Certificate())
	require.NoError(t, err)
	require.Equal(t, "test-server", cert.Subject.CommonName)
	require.Len(t, cert.URIs, 1)
	require.Equal(t, "urn:test:server", cert.URIs[0].String())

	for _, sub := range []string{"own", "private", "trusted", "rejected"} {
		info, err := os.Stat(filepath.Join(dir, sub))
		require.NoError(t, err)
		require.True(t, info.IsDir())
	}
}

func TestStoreReloadsExistingKeypair(t *testing.T) {
	dir := t.TempDir()
	first, err := NewStore(dir, true, "srv", "urn:srv")
	require.NoError(t, err)

	second, err := NewStore(dir, true, "srv", "urn:srv")
	require.NoError(t, err)
	require.Equal(t, first.Certificate(), second.Certificate())
}

func TestStoreWithoutKeypairDoesNotFail(t *testing.T) {
	s, err := NewStore(t.TempDir(), false, "srv", "urn:srv")
	require.NoError(t, err)
	require.Nil(t, s.Certificate())
	require.Nil(t, s.PrivateKey())
}

func TestPrivateKeyPEMRoundTrip(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	plain, err := EncodePrivateKeyPEM(key, "")
	require.NoError(t, err)
	got, err := DecodePrivateKeyPEM(plain, "")
	require.NoError(t, err)
	require.True(t, key.Equal(got))
}

func TestEncryptedPrivateKeyPEMRoundTrip(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	enc, err := EncodePrivateKeyPEM(key, "correct horse")
	require.NoError(t, err)

	got, err := DecodePrivateKeyPEM(enc, "correct horse")
	require.NoError(t, err)
	require.True(t, key.Equal(got))

	_, err = DecodePrivateKeyPEM(enc, "wrong")
	require.Error(t, err)
	_, err = DecodePrivateKeyPEM(enc, "")
	require.Error(t, err)
}

func TestValidateClientCertificate(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, true, "srv", "urn:srv")
	require.NoError(t, err)

	// None-policy: no certificate is fine.
	require.True(t, s.ValidateClientCertificate(nil))

	// Unknown certificate lands in rejected/.
	other, err := NewStore(t.TempDir(), true, "client", "urn:client")
	require.NoError(t, err)
	clientDER := other.Certificate()
	require.False(t, s.ValidateClientCertificate(clientDER))
	rejected := filepath.Join(dir, "rejected", Thumbprint(clientDER)+".der")
	_, err = os.Stat(rejected)
	require.NoError(t, err)

	// Moving it to trusted/ makes it pass.
	trusted := filepath.Join(dir, "trusted", Thumbprint(clientDER)+".der")
	require.NoError(t, os.Rename(rejected, trusted))
	require.True(t, s.ValidateClientCertificate(clientDER))

	// Trust-all mode accepts anything parseable.
	s.SetTrustClientCerts(true)
	junk, err := NewStore(t.TempDir(), true, "x", "urn:x")
	require.NoError(t, err)
	require.True(t, s.ValidateClientCertificate(junk.Certificate()))
	require.False(t, s.ValidateClientCertificate([]byte{1, 2, 3}))
}
