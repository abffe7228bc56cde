package commands

import (
	"github.com/spf13/cobra"
	"github.com/systmms/credvault/internal/config"
	"github.com/systmms/credvault/internal/crypto"
)

// NewKeyCommand creates the parent 'key' command
func NewKeyCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the encryption key",
		Long: `Manage the AES-256 key used to encrypt secret values.

The key is resolved from the environment variable first, then the OS
keyring. 'key set' installs a key into the keyring so the environment
variable is not needed.`,
	}

	cmd.AddCommand(newKeySetCommand(cfg))

	return cmd
}

func newKeySetCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store the encryption key in the OS keyring",
		Long: `Store an encryption key in the OS keyring.

The key is read from stdin as 64 hex characters or base64 and must decode
to exactly 32 bytes.

Examples:
  openssl rand -hex 32 | credvault key set`,
		RunE: func(cmd *cobra.Command, args []string) error {
			encoded, err := readSecretValue(cmd.InOrStdin(), "")
			if err != nil {
				return err
			}
			return runKeySet(cfg, encoded)
		},
	}

	return cmd
}

func runKeySet(cfg *config.Config, encoded string) error {
	def, err := config.Load(cfg.Path)
	if err != nil {
		return err
	}

	source := crypto.KeyringSource{
		Service: def.Encryption.KeyringService,
		Account: def.Encryption.KeyringAccount,
	}
	if err := source.Store(encoded); err != nil {
		return err
	}

	cfg.Logger.Info("Encryption key stored in OS keyring")
	return nil
}
