package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/systmms/credvault/internal/config"
)

func NewGetCommand(cfg *config.Config) *cobra.Command {
	var reveal bool

	cmd := &cobra.Command{
		Use:   "get <provider>",
		Short: "Resolve the active credential for a provider",
		Long: `Resolve the active credential context for a provider call.

By default only metadata is shown. With --reveal, the decrypted value is
written to stdout (and nothing else, so it can be piped safely).

Examples:
  credvault get anthropic
  credvault get github --reveal | gh auth login --with-token`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd, cfg, args[0], reveal)
		},
	}

	cmd.Flags().BoolVar(&reveal, "reveal", false, "Print the decrypted value to stdout")

	return cmd
}

func runGet(cmd *cobra.Command, cfg *config.Config, provider string, reveal bool) error {
	ctx := cmd.Context()
	environ, err := buildEnv(ctx, cfg)
	if err != nil {
		return err
	}
	defer environ.close()

	cc, err := environ.registry.ProviderCredentialContext(ctx, provider)
	if err != nil {
		return err
	}

	if reveal {
		plaintext, err := environ.encryptor.Decrypt(cc.Ciphertext)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s", plaintext)
		return nil
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "provider: %s\n", cc.Provider)
	fmt.Fprintf(out, "scope:    %s\n", cc.Scope)
	fmt.Fprintf(out, "name:     %s\n", cc.Name)
	fmt.Fprintf(out, "version:  %d\n", cc.KeyVersion)
	fmt.Fprintf(out, "source:   %s\n", cc.Source)
	fmt.Fprintf(out, "rotated:  %s\n", formatTime(cc.LastRotatedAt))
	return nil
}
