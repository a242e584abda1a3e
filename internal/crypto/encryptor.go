// Package crypto provides AES-256-GCM encryption for OAuth tokens at rest.
//
// Each encryption uses a random nonce, so encrypting the same token twice
// produces different ciphertexts. GCM authenticates the ciphertext, so a
// tampered value fails to decrypt instead of yielding garbage.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"

	"golang.org/x/crypto/pbkdf2"

	"calendar-chat/internal/common/errors"
)

// TokenEncryptor handles encryption and decryption of stored OAuth tokens
// using AES-256-GCM. Safe for concurrent use.
type TokenEncryptor struct {
	key []byte // 32-byte AES-256 key
}

// NewTokenEncryptor creates a TokenEncryptor from a passphrase. The key is
// derived with PBKDF2 so any non-empty passphrase yields a proper 32-byte key.
func NewTokenEncryptor(key string) (*TokenEncryptor, error) {
	if key == "" {
		return nil, errors.ValidationError("encryption key cannot be empty")
	}

	salt := []byte("calendar-chat-token-salt") // static salt, deterministic derivation
	derivedKey := pbkdf2.Key([]byte(key), salt, 10000, 32, sha256.New)

	return &TokenEncryptor{key: derivedKey}, nil
}

// Encrypt encrypts a plaintext token and returns it base64-encoded with the
// nonce prepended. Empty input passes through as empty output.
func (e *TokenEncryptor) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	block, err := aes.NewCipher(e.key)
	if err != nil {
		return "", errors.InternalError("failed to create cipher", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", errors.InternalError("failed to create GCM", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", errors.InternalError("failed to create nonce", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)

	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt. Fails for tampered or wrong-key ciphertexts.
func (e *TokenEncryptor) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", errors.ValidationError("invalid ciphertext encoding")
	}

	block, err := aes.NewCipher(e.key)
	if err != nil {
		return "", errors.InternalError("failed to create cipher", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", errors.InternalError("failed to create GCM", err)
	}

	if len(data) < gcm.NonceSize() {
		return "", errors.ValidationError("ciphertext too short")
	}

	nonce, sealed := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", errors.InternalError("failed to decrypt token", err)
	}

	return string(plaintext), nil
}
