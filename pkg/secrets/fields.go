package secrets

import "fmt"

// SensitiveFields are the record keys treated as credential material by
// the batch helpers.
var SensitiveFields = []string{
	"password",
	"passphrase",
	"secret",
	"token",
	"api_key",
	"private_key",
	"client_secret",
}

// EncryptedSuffix marks a record key as holding an encrypted payload.
const EncryptedSuffix = "_encrypted"

// EncryptSensitiveFields encrypts every well-known sensitive field
// present in record in place, renaming field to field_encrypted.
// Non-string and empty values are left alone with a warning so a
// malformed field never silently loses data.
func (m *Manager) EncryptSensitiveFields(record map[string]interface{}) error {
	for _, field := range SensitiveFields {
		value, ok := record[field]
		if !ok {
			continue
		}
		plaintext, ok := value.(string)
		if !ok {
			m.logger.Warn().Str("field", field).Msg("Skipping non-string sensitive field")
			continue
		}
		if plaintext == "" {
			m.logger.Warn().Str("field", field).Msg("Skipping empty sensitive field")
			continue
		}

		payload, err := m.EncryptField(plaintext)
		if err != nil {
			return fmt.Errorf("failed to encrypt field %s: %w", field, err)
		}
		delete(record, field)
		record[field+EncryptedSuffix] = payload
	}
	return nil
}

// DecryptSensitiveFields reverses EncryptSensitiveFields in place. A
// field that fails to decrypt stays encrypted and is logged rather
// than failing the whole record.
func (m *Manager) DecryptSensitiveFields(record map[string]interface{}) {
	for _, field := range SensitiveFields {
		key := field + EncryptedSuffix
		value, ok := record[key]
		if !ok {
			continue
		}
		payload, ok := value.(string)
		if !ok {
			m.logger.Warn().Str("field", key).Msg("Skipping non-string encrypted field")
			continue
		}

		plaintext, err := m.DecryptField(payload)
		if err != nil {
			m.logger.Warn().Str("field", key).Msg("Failed to decrypt field, leaving it encrypted")
			continue
		}
		delete(record, key)
		record[field] = plaintext
	}
}
