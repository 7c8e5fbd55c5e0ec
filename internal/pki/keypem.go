package pki

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// Encrypted private keys are stored as a PEM block whose body is
// AES-256-GCM ciphertext over the PKCS#1 key, with the PBKDF2 salt carried
// in a header. The legacy OpenSSL PEM encryption is deliberately not used.
const (
	encryptedKeyBlockType = "ENCRYPTED OPCUA PRIVATE KEY"
	saltHeader            = "Salt"

	pbkdf2Iterations = 600_000
	saltLen          = 16
	aesKeyLen        = 32
)

// EncodePrivateKeyPEM renders the key as PEM, encrypting with the
// passphrase when one is given.
func EncodePrivateKeyPEM(key *rsa.PrivateKey, passphrase string) ([]byte, error) {
	if passphrase == "" {
		return pem.EncodeToMemory(marshalKeyPEMBlock(key)), nil
	}

	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("salt: %w", err)
	}
	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	sealed := gcm.Seal(nonce, nonce, x509.MarshalPKCS1PrivateKey(key), nil)

	block := &pem.Block{
		Type:    encryptedKeyBlockType,
		Headers: map[string]string{saltHeader: base64.StdEncoding.EncodeToString(salt)},
		Bytes:   sealed,
	}
	return pem.EncodeToMemory(block), nil
}

// DecodePrivateKeyPEM parses a PEM private key, decrypting when the block
// is encrypted. An encrypted block with the wrong (or missing) passphrase
// fails.
func DecodePrivateKeyPEM(pemBytes []byte, passphrase string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	switch block.Type {
	case keyBlockType:
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case encryptedKeyBlockType:
		saltB64, ok := block.Headers[saltHeader]
		if !ok {
			return nil, errors.New("encrypted key block missing salt header")
		}
		salt, err := base64.StdEncoding.DecodeString(saltB64)
		if err != nil {
			return nil, fmt.Errorf("salt header: %w", err)
		}
		gcm, err := newGCM(passphrase, salt)
		if err != nil {
			return nil, err
		}
		if len(block.Bytes) < gcm.NonceSize() {
			return nil, errors.New("encrypted key block truncated")
		}
		nonce, sealed := block.Bytes[:gcm.NonceSize()], block.Bytes[gcm.NonceSize():]
		der, err := gcm.Open(nil, nonce, sealed, nil)
		if err != nil {
			return nil, fmt.Errorf("decrypt private key: %w", err)
		}
		return x509.ParsePKCS1PrivateKey(der)
	default:
		return nil, fmt.Errorf("unexpected PEM block type %q", block.Type)
	}
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	derived := pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iterations, aesKeyLen, sha256.New)
	blockCipher, err := aes.NewCipher(derived)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(blockCipher)
}
