package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/opsforge/opsforge/pkg/secrets"
)

// secretsService scopes the encryption key environment variables.
const secretsService = "opsforge"

func newSecretsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Field encryption helpers",
		Long: `Encrypt, decrypt and audit sensitive field payloads.

All subcommands need the encryption key in OPSFORGE_ENCRYPTION_KEY.
During key rotation, export the previous keys comma-separated in
OPSFORGE_ENCRYPTION_KEYS_PREVIOUS; decryption falls back through them
and "secrets check" reports payloads still sealed under an old key.`,
	}

	cmd.AddCommand(newSecretsEncryptCommand())
	cmd.AddCommand(newSecretsDecryptCommand())
	cmd.AddCommand(newSecretsCheckCommand())
	cmd.AddCommand(newSecretsRotateCommand())

	return cmd
}

func newSecretsManager() (*secrets.Manager, error) {
	return secrets.NewManagerFromEnv(secretsService, log.Logger)
}

// readSecretInput returns the single argument, or stdin when the
// argument is omitted or "-". Stdin keeps values out of shell history.
func readSecretInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return args[0], nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("failed to read from stdin: %w", err)
	}
	value := strings.TrimSpace(string(data))
	if value == "" {
		return "", fmt.Errorf("empty input")
	}
	return value, nil
}

func newSecretsEncryptCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt [value]",
		Short: "Encrypt a value under the current key",
		Example: `  # From stdin, keeping the value out of shell history
  printf '%s' "$DB_PASSWORD" | forge secrets encrypt`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := readSecretInput(cmd, args)
			if err != nil {
				return err
			}
			manager, err := newSecretsManager()
			if err != nil {
				return err
			}
			payload, err := manager.EncryptField(value)
			if err != nil {
				return err
			}
			fmt.Println(payload)
			return nil
		},
	}
}

func newSecretsDecryptCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "decrypt [payload]",
		Short: "Decrypt a payload",
		Long: `Decrypt a payload, trying the current key first and then each
previous key in order.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readSecretInput(cmd, args)
			if err != nil {
				return err
			}
			manager, err := newSecretsManager()
			if err != nil {
				return err
			}
			plaintext, err := manager.DecryptField(payload)
			if err != nil {
				return err
			}
			fmt.Println(plaintext)
			return nil
		},
	}
}

func newSecretsCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check [payload]",
		Short: "Check whether a payload needs re-encryption",
		Long: `Check a payload against the configured keys.

Exits zero when the payload is sealed under the current key. Exits
non-zero when it only decrypts with a previous key, or when no
configured key can read it at all.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readSecretInput(cmd, args)
			if err != nil {
				return err
			}
			manager, err := newSecretsManager()
			if err != nil {
				return err
			}
			if _, err := manager.DecryptField(payload); err != nil {
				return fmt.Errorf("payload does not decrypt with any configured key")
			}
			if manager.NeedsReencryption(payload) {
				return fmt.Errorf("payload decrypts with a previous key only, run secrets rotate")
			}
			fmt.Println("Payload is sealed under the current key")
			return nil
		},
	}
}

func newSecretsRotateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rotate [payload]",
		Short: "Re-encrypt a payload under the current key",
		Long: `Decrypt a payload with whatever configured key still reads it and
seal it again under the current key. Prints the new payload.`,
		Example: `  # Rotate a stored payload after a key change
  forge secrets rotate "$OLD_PAYLOAD"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readSecretInput(cmd, args)
			if err != nil {
				return err
			}
			manager, err := newSecretsManager()
			if err != nil {
				return err
			}
			rotated, err := manager.ReencryptField(payload)
			if err != nil {
				return err
			}
			fmt.Println(rotated)
			return nil
		},
	}
}
