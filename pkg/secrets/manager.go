package secrets

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/opsforge/opsforge/pkg/engine"
)

// Manager encrypts and decrypts credential fields.
//
// Keys are held as an ordered cipher list: the current key first, then
// previous keys in configuration order. Encryption always uses the
// current key; decryption walks the list, which keeps payloads written
// before a key rotation readable until they are re-encrypted.
type Manager struct {
	keys   [][]byte
	logger zerolog.Logger
}

// NewManager builds a manager from the current key and any previous
// keys still needed to read old payloads. Blank previous keys are
// dropped.
func NewManager(current string, previous []string, logger zerolog.Logger) (*Manager, error) {
	if strings.TrimSpace(current) == "" {
		return nil, fmt.Errorf("encryption key is required")
	}

	keys := [][]byte{[]byte(current)}
	for _, key := range previous {
		if strings.TrimSpace(key) == "" {
			continue
		}
		keys = append(keys, []byte(key))
	}

	return &Manager{
		keys:   keys,
		logger: logger.With().Str("component", "secrets").Logger(),
	}, nil
}

// EnvEncryptionKey returns the environment variable holding the
// encryption key for a service: the service name uppercased with
// non-alphanumerics mapped to underscores, suffixed _ENCRYPTION_KEY.
func EnvEncryptionKey(service string) string {
	return envPrefix(service) + "_ENCRYPTION_KEY"
}

// EnvPreviousKeys returns the environment variable holding the
// comma-separated previous keys for a service.
func EnvPreviousKeys(service string) string {
	return envPrefix(service) + "_ENCRYPTION_KEYS_PREVIOUS"
}

func envPrefix(service string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(service) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

// NewManagerFromEnv builds a manager from the environment. The
// service-scoped variable wins; the generic ENCRYPTION_KEY still works
// as a fallback but logs a deprecation warning. Previous keys come
// comma-separated from the service-scoped previous-keys variable.
func NewManagerFromEnv(service string, logger zerolog.Logger) (*Manager, error) {
	keyVar := EnvEncryptionKey(service)
	current := os.Getenv(keyVar)
	if current == "" {
		if current = os.Getenv("ENCRYPTION_KEY"); current != "" {
			logger.Warn().
				Str("component", "secrets").
				Str("variable", "ENCRYPTION_KEY").
				Str("replacement", keyVar).
				Msg("Generic encryption key variable is deprecated, set the service-scoped variable")
		}
	}
	if current == "" {
		return nil, fmt.Errorf("no encryption key set: export %s", keyVar)
	}

	var previous []string
	for _, key := range strings.Split(os.Getenv(EnvPreviousKeys(service)), ",") {
		if key = strings.TrimSpace(key); key != "" {
			previous = append(previous, key)
		}
	}

	return NewManager(current, previous, logger)
}

// EncryptField encrypts plaintext under the current key. Every call
// produces a different payload because salt and nonce are fresh.
func (m *Manager) EncryptField(plaintext string) (string, error) {
	if plaintext == "" {
		return "", fmt.Errorf("plaintext is empty")
	}
	payload, err := seal(m.keys[0], plaintext)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt field: %w", err)
	}
	return payload, nil
}

// DecryptField decrypts a payload, trying the current key first and
// then each previous key in order. Success with a non-current key logs
// a re-encryption recommendation. Exhausting the list returns a
// decryption error whose message deliberately carries no detail.
func (m *Manager) DecryptField(payload string) (string, error) {
	for i, key := range m.keys {
		plaintext, err := open(key, payload)
		if err != nil {
			continue
		}
		if i > 0 {
			m.logger.Warn().
				Int("key_index", i).
				Msg("Field decrypted with a previous key, re-encryption recommended")
		}
		return plaintext, nil
	}
	return "", engine.NewDecryptionError("failed to decrypt field", nil)
}

// NeedsReencryption reports whether a payload decrypts only with a
// previous key. Payloads under the current key, and payloads no key
// can read, both return false.
func (m *Manager) NeedsReencryption(payload string) bool {
	if _, err := open(m.keys[0], payload); err == nil {
		return false
	}
	for _, key := range m.keys[1:] {
		if _, err := open(key, payload); err == nil {
			return true
		}
	}
	return false
}

// ReencryptField decrypts a payload with whatever key still reads it
// and seals it again under the current key.
func (m *Manager) ReencryptField(payload string) (string, error) {
	plaintext, err := m.DecryptField(payload)
	if err != nil {
		return "", err
	}
	return m.EncryptField(plaintext)
}
