package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	encryptedPrefix = "ENC["
	encryptedSuffix = "]"

	keyIterations = 100000
	keyLength     = 32
	saltLength    = 16
)

// IsEncrypted reports whether a config value carries the ENC[...] wrapper
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, encryptedPrefix) && strings.HasSuffix(value, encryptedSuffix)
}

// EncryptValue encrypts a secret with AES-GCM under a PBKDF2-derived key
// and wraps it as ENC[base64(salt|nonce|ciphertext)].
func EncryptValue(value, passphrase string) (string, error) {
	if passphrase == "" {
		return "", fmt.Errorf("encryption passphrase is required")
	}

	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	block, err := aes.NewCipher(deriveKey(passphrase, salt))
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, []byte(value), nil)

	payload := append(append(salt, nonce...), sealed...)
	return encryptedPrefix + base64.StdEncoding.EncodeToString(payload) + encryptedSuffix, nil
}

// DecryptValue reverses EncryptValue
func DecryptValue(value, passphrase string) (string, error) {
	if !IsEncrypted(value) {
		return "", fmt.Errorf("value is not encrypted")
	}
	if passphrase == "" {
		return "", fmt.Errorf("encryption passphrase is required")
	}

	payload, err := base64.StdEncoding.DecodeString(
		strings.TrimSuffix(strings.TrimPrefix(value, encryptedPrefix), encryptedSuffix))
	if err != nil {
		return "", fmt.Errorf("failed to decode encrypted value: %w", err)
	}
	if len(payload) < saltLength {
		return "", fmt.Errorf("encrypted value is truncated")
	}

	salt, rest := payload[:saltLength], payload[saltLength:]

	block, err := aes.NewCipher(deriveKey(passphrase, salt))
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	if len(rest) < gcm.NonceSize() {
		return "", fmt.Errorf("encrypted value is truncated")
	}
	nonce, ciphertext := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]

	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt value: %w", err)
	}

	return string(plain), nil
}

func deriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, keyIterations, keyLength, sha256.New)
}
