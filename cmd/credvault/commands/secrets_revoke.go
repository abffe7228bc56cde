package commands

import (
	"github.com/spf13/cobra"
	"github.com/systmms/credvault/internal/config"
)

func NewSecretsRevokeCommand(cfg *config.Config) *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke a secret version",
		Long: `Mark a secret version as revoked.

The ciphertext stays in the ledger for audit purposes, but the version is
no longer resolvable for provider calls. Revoking an already revoked
version is a no-op.

Examples:
  credvault secrets revoke --id 6f1c0a4e-...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSecretsRevoke(cmd, cfg, id)
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Secret reference ID (required)")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func runSecretsRevoke(cmd *cobra.Command, cfg *config.Config, id string) error {
	ctx := cmd.Context()
	environ, err := buildEnv(ctx, cfg)
	if err != nil {
		return err
	}
	defer environ.close()

	if err := environ.registry.Revoke(ctx, id, currentActor()); err != nil {
		return err
	}

	cfg.Logger.Info("Secret reference %s revoked", id)
	return nil
}
