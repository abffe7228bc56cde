package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/systmms/credvault/internal/config"
)

func NewSecretsListCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active secret versions (metadata only)",
		Long: `List the active version of every secret in the ledger.

Output contains metadata only; values are never decrypted or shown.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSecretsList(cmd, cfg)
		},
	}

	return cmd
}

func runSecretsList(cmd *cobra.Command, cfg *config.Config) error {
	ctx := cmd.Context()
	environ, err := buildEnv(ctx, cfg)
	if err != nil {
		return err
	}
	defer environ.close()

	items, err := environ.registry.ListSecretMetadata(ctx)
	if err != nil {
		return err
	}

	if len(items) == 0 {
		cfg.Logger.Info("No secrets stored")
		return nil
	}

	sortMetadata(items)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-12s %-40s %-8s %-10s %-20s %-20s %s\n",
		"SCOPE", "NAME", "VERSION", "SOURCE", "ROTATED", "EXPIRES", "STATUS")
	for _, item := range items {
		status := "active"
		if item.Revoked {
			status = "revoked"
		}
		fmt.Fprintf(out, "%-12s %-40s %-8d %-10s %-20s %-20s %s\n",
			item.Scope, item.Name, item.KeyVersion, item.Source,
			formatTime(item.LastRotatedAt), formatExpiry(item.ExpiresAt), status)
	}

	return nil
}
