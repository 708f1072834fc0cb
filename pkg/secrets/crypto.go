package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/scrypt"
)

const (
	// keySize is the derived AES-256 key size in bytes.
	keySize = 32

	// nonceSize is the AES-GCM nonce size in bytes.
	nonceSize = 12

	// saltSize is the scrypt salt size in bytes.
	saltSize = 32

	// scrypt cost parameters. Changing them breaks decryption of
	// existing payloads, so treat them as part of the payload format.
	scryptN = 32768
	scryptR = 8
	scryptP = 1
)

// deriveKey stretches the master key with scrypt. The same master key
// and salt always produce the same derived key.
func deriveKey(masterKey, salt []byte) ([]byte, error) {
	key, err := scrypt.Key(masterKey, salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return key, nil
}

// seal encrypts plaintext under the master key with a fresh salt and
// nonce and packs the result as base64(salt || nonce || ciphertext).
func seal(masterKey []byte, plaintext string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key, err := deriveKey(masterKey, salt)
	if err != nil {
		return "", err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, []byte(plaintext), nil)

	payload := make([]byte, 0, saltSize+nonceSize+len(ciphertext))
	payload = append(payload, salt...)
	payload = append(payload, nonce...)
	payload = append(payload, ciphertext...)
	return base64.StdEncoding.EncodeToString(payload), nil
}

// open decodes a sealed payload and decrypts it under the master key.
// The decrypt error is deliberately generic: it never reveals whether
// the key was wrong or the payload was tampered with.
func open(masterKey []byte, payload string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("failed to decode payload: %w", err)
	}
	if len(raw) < saltSize+nonceSize {
		return "", fmt.Errorf("payload too short")
	}

	salt := raw[:saltSize]
	nonce := raw[saltSize : saltSize+nonceSize]
	ciphertext := raw[saltSize+nonceSize:]

	key, err := deriveKey(masterKey, salt)
	if err != nil {
		return "", err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decryption failed")
	}
	return string(plaintext), nil
}
