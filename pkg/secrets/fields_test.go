package secrets

import "testing"

func TestEncryptSensitiveFields(t *testing.T) {
	m := testManager(t, "master-key")

	record := map[string]interface{}{
		"username": "svc-deploy",
		"password": "hunter2",
		"token":    "tok-123",
		"port":     5985,
	}
	if err := m.EncryptSensitiveFields(record); err != nil {
		t.Fatalf("Failed to encrypt record: %v", err)
	}

	if _, ok := record["password"]; ok {
		t.Error("Expected password to be renamed")
	}
	if _, ok := record["token"]; ok {
		t.Error("Expected token to be renamed")
	}
	if record["username"] != "svc-deploy" {
		t.Errorf("Expected username untouched, got %v", record["username"])
	}
	if record["port"] != 5985 {
		t.Errorf("Expected port untouched, got %v", record["port"])
	}

	payload, ok := record["password_encrypted"].(string)
	if !ok {
		t.Fatalf("Expected encrypted password payload, got %T", record["password_encrypted"])
	}
	plaintext, err := m.DecryptField(payload)
	if err != nil {
		t.Fatalf("Failed to decrypt payload: %v", err)
	}
	if plaintext != "hunter2" {
		t.Errorf("Expected hunter2, got %q", plaintext)
	}
}

func TestEncryptSensitiveFieldsSkipsUnusable(t *testing.T) {
	m := testManager(t, "master-key")

	record := map[string]interface{}{
		"secret":     42,
		"passphrase": "",
	}
	if err := m.EncryptSensitiveFields(record); err != nil {
		t.Fatalf("Expected unusable fields to be skipped: %v", err)
	}
	if record["secret"] != 42 {
		t.Errorf("Expected non-string secret untouched, got %v", record["secret"])
	}
	if record["passphrase"] != "" {
		t.Errorf("Expected empty passphrase untouched, got %v", record["passphrase"])
	}
	if _, ok := record["secret_encrypted"]; ok {
		t.Error("Expected no encrypted twin for a skipped field")
	}
}

func TestDecryptSensitiveFieldsRoundTrip(t *testing.T) {
	m := testManager(t, "master-key")

	record := map[string]interface{}{
		"api_key": "ak-999",
		"host":    "db-01",
	}
	if err := m.EncryptSensitiveFields(record); err != nil {
		t.Fatalf("Failed to encrypt record: %v", err)
	}

	m.DecryptSensitiveFields(record)
	if record["api_key"] != "ak-999" {
		t.Errorf("Expected api_key restored, got %v", record["api_key"])
	}
	if _, ok := record["api_key_encrypted"]; ok {
		t.Error("Expected encrypted twin removed after decrypt")
	}
	if record["host"] != "db-01" {
		t.Errorf("Expected host untouched, got %v", record["host"])
	}
}

func TestDecryptSensitiveFieldsBadPayload(t *testing.T) {
	m := testManager(t, "master-key")

	record := map[string]interface{}{
		"password_encrypted": "garbage",
		"token_encrypted":    7,
	}
	m.DecryptSensitiveFields(record)

	if record["password_encrypted"] != "garbage" {
		t.Errorf("Expected undecryptable field left encrypted, got %v", record["password_encrypted"])
	}
	if _, ok := record["password"]; ok {
		t.Error("Expected no plaintext for an undecryptable field")
	}
	if record["token_encrypted"] != 7 {
		t.Errorf("Expected non-string field untouched, got %v", record["token_encrypted"])
	}
}
