// Package secrets encrypts credentials kept in option storage.
package secrets

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	prefix  = "enc:v1:"
	hkdfCtx = "booking-settings"
)

// Cipher seals and opens secrets with XChaCha20-Poly1305. The key is derived
// from an operator supplied passphrase with HKDF-SHA256.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher derives the encryption key from passphrase.
func NewCipher(passphrase string) (*Cipher, error) {
	passphrase = strings.TrimSpace(passphrase)
	if passphrase == "" {
		return nil, errors.New("secrets: passphrase is empty")
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(passphrase), nil, []byte(hkdfCtx)), key); err != nil {
		return nil, fmt.Errorf("secrets: derive key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("secrets: init aead: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt returns a printable ciphertext for plaintext. Empty input stays empty.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("secrets: nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return prefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt. Malformed or tampered input
// yields "" so callers treat the field as not configured.
func (c *Cipher) Decrypt(ciphertext string) string {
	if c == nil || !strings.HasPrefix(ciphertext, prefix) {
		return ""
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(ciphertext, prefix))
	if err != nil || len(raw) < c.aead.NonceSize() {
		return ""
	}
	nonce, sealed := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return ""
	}
	return string(plain)
}
