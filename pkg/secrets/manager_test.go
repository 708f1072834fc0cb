package secrets

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/opsforge/opsforge/pkg/engine"
)

func testManager(t *testing.T, current string, previous ...string) *Manager {
	t.Helper()
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	m, err := NewManager(current, previous, logger)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	return m
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	m := testManager(t, "master-key")

	payload, err := m.EncryptField("hunter2")
	if err != nil {
		t.Fatalf("Failed to encrypt: %v", err)
	}
	if payload == "hunter2" {
		t.Fatal("Expected ciphertext, got plaintext")
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		t.Fatalf("Expected base64 payload: %v", err)
	}
	if len(raw) <= saltSize+nonceSize {
		t.Errorf("Expected salt, nonce and ciphertext, got %d bytes", len(raw))
	}

	plaintext, err := m.DecryptField(payload)
	if err != nil {
		t.Fatalf("Failed to decrypt: %v", err)
	}
	if plaintext != "hunter2" {
		t.Errorf("Expected hunter2, got %q", plaintext)
	}
}

func TestEncryptFieldUniquePayloads(t *testing.T) {
	m := testManager(t, "master-key")

	first, err := m.EncryptField("same value")
	if err != nil {
		t.Fatalf("Failed to encrypt: %v", err)
	}
	second, err := m.EncryptField("same value")
	if err != nil {
		t.Fatalf("Failed to encrypt: %v", err)
	}
	if first == second {
		t.Error("Expected fresh salt and nonce to produce different payloads")
	}
}

func TestEncryptFieldEmpty(t *testing.T) {
	m := testManager(t, "master-key")
	if _, err := m.EncryptField(""); err == nil {
		t.Fatal("Expected error for empty plaintext")
	}
}

func TestDecryptWithRotatedKey(t *testing.T) {
	old := testManager(t, "old-key")
	payload, err := old.EncryptField("svc-password")
	if err != nil {
		t.Fatalf("Failed to encrypt: %v", err)
	}

	rotated := testManager(t, "new-key", "old-key")
	plaintext, err := rotated.DecryptField(payload)
	if err != nil {
		t.Fatalf("Failed to decrypt with previous key: %v", err)
	}
	if plaintext != "svc-password" {
		t.Errorf("Expected svc-password, got %q", plaintext)
	}

	if !rotated.NeedsReencryption(payload) {
		t.Error("Expected payload under the previous key to need re-encryption")
	}

	fresh, err := rotated.ReencryptField(payload)
	if err != nil {
		t.Fatalf("Failed to re-encrypt: %v", err)
	}
	if rotated.NeedsReencryption(fresh) {
		t.Error("Expected re-encrypted payload to use the current key")
	}
}

func TestDecryptUnknownKey(t *testing.T) {
	a := testManager(t, "key-a")
	payload, err := a.EncryptField("value")
	if err != nil {
		t.Fatalf("Failed to encrypt: %v", err)
	}

	b := testManager(t, "key-b")
	_, err = b.DecryptField(payload)
	if err == nil {
		t.Fatal("Expected decryption to fail without the right key")
	}
	if engine.ClassOf(err) != engine.ErrorClassDecryption {
		t.Errorf("Expected decryption class, got %s", engine.ClassOf(err))
	}
	if strings.Contains(err.Error(), "key-a") || strings.Contains(err.Error(), "key-b") {
		t.Errorf("Expected generic message, got %q", err.Error())
	}
}

func TestDecryptMalformedPayload(t *testing.T) {
	m := testManager(t, "master-key")

	if _, err := m.DecryptField("not-base64!!!"); err == nil {
		t.Error("Expected error for invalid base64")
	}
	short := base64.StdEncoding.EncodeToString([]byte("too short"))
	if _, err := m.DecryptField(short); err == nil {
		t.Error("Expected error for truncated payload")
	}
}

func TestNeedsReencryptionUnreadable(t *testing.T) {
	m := testManager(t, "master-key", "older-key")
	if m.NeedsReencryption("garbage") {
		t.Error("Expected unreadable payload to not claim re-encryption")
	}
}

func TestNewManagerRequiresKey(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	if _, err := NewManager("", nil, logger); err == nil {
		t.Error("Expected error for empty key")
	}
	if _, err := NewManager("   ", nil, logger); err == nil {
		t.Error("Expected error for blank key")
	}
}

func TestEnvEncryptionKey(t *testing.T) {
	if got := EnvEncryptionKey("opsforge"); got != "OPSFORGE_ENCRYPTION_KEY" {
		t.Errorf("Expected OPSFORGE_ENCRYPTION_KEY, got %s", got)
	}
	if got := EnvEncryptionKey("asset-service"); got != "ASSET_SERVICE_ENCRYPTION_KEY" {
		t.Errorf("Expected ASSET_SERVICE_ENCRYPTION_KEY, got %s", got)
	}
}

func TestNewManagerFromEnv(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	t.Setenv("OPSFORGE_ENCRYPTION_KEY", "env-key")
	t.Setenv("OPSFORGE_ENCRYPTION_KEYS_PREVIOUS", "old-one, old-two")

	m, err := NewManagerFromEnv("opsforge", logger)
	if err != nil {
		t.Fatalf("Failed to create manager from env: %v", err)
	}

	old := testManager(t, "old-two")
	payload, err := old.EncryptField("value")
	if err != nil {
		t.Fatalf("Failed to encrypt: %v", err)
	}
	plaintext, err := m.DecryptField(payload)
	if err != nil {
		t.Fatalf("Failed to decrypt with configured previous key: %v", err)
	}
	if plaintext != "value" {
		t.Errorf("Expected value, got %q", plaintext)
	}
}

func TestNewManagerFromEnvDeprecationWarning(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	t.Setenv("OPSFORGE_ENCRYPTION_KEY", "")
	t.Setenv("ENCRYPTION_KEY", "generic-key")

	m, err := NewManagerFromEnv("opsforge", logger)
	if err != nil {
		t.Fatalf("Expected generic fallback to work: %v", err)
	}
	if !strings.Contains(buf.String(), "deprecated") {
		t.Errorf("Expected deprecation warning, got %q", buf.String())
	}
	if _, err := m.EncryptField("value"); err != nil {
		t.Errorf("Failed to encrypt with fallback key: %v", err)
	}
}

func TestNewManagerFromEnvMissing(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	t.Setenv("OPSFORGE_ENCRYPTION_KEY", "")
	t.Setenv("ENCRYPTION_KEY", "")

	if _, err := NewManagerFromEnv("opsforge", logger); err == nil {
		t.Fatal("Expected error when no key is set")
	}
}
