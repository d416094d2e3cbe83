// Package crypto implements CryptoVault, the process-wide symmetric
// encrypt/decrypt used to keep refresh-tokens, access-tokens, api-keys and
// client secrets unreadable at rest.
package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
	"crypto/sha256"
)

// ErrEmptyKey is returned when Vault is constructed with an empty secret.
var ErrEmptyKey = errors.New("crypto: empty vault secret")

// Vault encrypts and decrypts text values with a single derived key. It holds
// no other state and is safe for concurrent use.
type Vault struct {
	key [chacha20poly1305.KeySize]byte
}

// NewVault derives a 32-byte AEAD key from secret via HKDF-SHA256 and returns
// a ready-to-use Vault. secret is typically loaded from configuration/env at
// startup; it is never stored verbatim.
func NewVault(secret string) (*Vault, error) {
	if secret == "" {
		return nil, ErrEmptyKey
	}
	v := &Vault{}
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("gcligateway-credential-vault"))
	if _, err := io.ReadFull(kdf, v.key[:]); err != nil {
		return nil, fmt.Errorf("crypto: derive key: %w", err)
	}
	return v, nil
}

// Encrypt returns a base64 ciphertext for plain, nonce-prefixed. Encrypting
// an empty string returns an empty string so callers can store "no secret"
// without a round-trip through the AEAD.
func (v *Vault) Encrypt(plain string) (string, error) {
	if plain == "" {
		return "", nil
	}
	aead, err := chacha20poly1305.New(v.key[:])
	if err != nil {
		return "", fmt.Errorf("crypto: new aead: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("crypto: nonce: %w", err)
	}
	ciphertext := aead.Seal(nonce, nonce, []byte(plain), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt. Decrypting an empty string returns an empty
// string and no error: a missing secret is not a decryption failure.
func (v *Vault) Decrypt(cipherB64 string) (string, error) {
	if cipherB64 == "" {
		return "", nil
	}
	raw, err := base64.StdEncoding.DecodeString(cipherB64)
	if err != nil {
		return "", fmt.Errorf("crypto: decode: %w", err)
	}
	aead, err := chacha20poly1305.New(v.key[:])
	if err != nil {
		return "", fmt.Errorf("crypto: new aead: %w", err)
	}
	if len(raw) < aead.NonceSize() {
		return "", errors.New("crypto: ciphertext too short")
	}
	nonce, body := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, body, nil)
	if err != nil {
		return "", fmt.Errorf("crypto: open: %w", err)
	}
	return string(plain), nil
}
