// Package secrets protects credential material with field-level
// authenticated encryption.
//
// Payloads are AES-256-GCM under a key derived from the master key
// with scrypt, packed as base64(salt || nonce || ciphertext). Salt and
// nonce are fresh per encryption, so equal plaintexts never produce
// equal payloads.
//
// # Key Rotation
//
// A Manager holds an ordered cipher list: the current key first, then
// previous keys. Encryption always uses the current key; decryption
// walks the list, so payloads written before a rotation stay readable.
// NeedsReencryption flags payloads that only a previous key can read,
// and decrypting one logs a re-encryption recommendation. Decryption
// failures carry a deliberately generic message.
//
// # Environment
//
// NewManagerFromEnv reads the service-scoped variable, for example
// OPSFORGE_ENCRYPTION_KEY for service "opsforge". The generic
// ENCRYPTION_KEY is still honored as a fallback but logs a deprecation
// warning. Previous keys come comma-separated from
// OPSFORGE_ENCRYPTION_KEYS_PREVIOUS.
//
// # Batch Helpers
//
// EncryptSensitiveFields walks a record map and encrypts the
// well-known credential keys (password, token, api_key and friends),
// renaming each field to field_encrypted. DecryptSensitiveFields
// reverses the rename; a payload that no key can read stays encrypted
// instead of failing the record.
package secrets
