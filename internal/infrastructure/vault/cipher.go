// Package vault seals portal passwords at rest.
package vault

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/deliverysync/backend/internal/domain/delivery"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	// sealedPrefix versions the sealed format so the key derivation can change later
	sealedPrefix = "v1:"
	hkdfInfo     = "credential-vault"
)

var (
	// ErrMalformed is returned when a sealed value cannot be decoded
	ErrMalformed = errors.New("vault: malformed sealed value")
	// ErrDecrypt is returned when authentication fails (wrong key or wrong AAD)
	ErrDecrypt = errors.New("vault: decryption failed")
)

// Compile-time interface satisfaction check.
var _ delivery.PasswordCipher = (*Cipher)(nil)

// Cipher implements delivery.PasswordCipher with XChaCha20-Poly1305. The key is
// derived from the configured secret with HKDF-SHA256; the additional data
// binds each ciphertext to its (restaurant, platform) record.
type Cipher struct {
	key []byte
}

// NewCipher derives the encryption key from secret
func NewCipher(secret string) (*Cipher, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("vault: secret must be at least 32 characters")
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("vault: derive key: %w", err)
	}
	return &Cipher{key: key}, nil
}

// Seal encrypts plaintext and returns "v1:" + base64(nonce || ciphertext)
func (c *Cipher) Seal(plaintext string, aad []byte) (string, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", fmt.Errorf("vault: create aead: %w", err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("vault: generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), aad)
	return sealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal. The aad must match the value used when sealing.
func (c *Cipher) Open(sealed string, aad []byte) (string, error) {
	encoded, ok := strings.CutPrefix(sealed, sealedPrefix)
	if !ok {
		return "", ErrMalformed
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrMalformed
	}

	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", fmt.Errorf("vault: create aead: %w", err)
	}
	if len(data) < aead.NonceSize()+aead.Overhead() {
		return "", ErrMalformed
	}

	nonce, ciphertext := data[:aead.NonceSize()], data[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plaintext), nil
}
