package commands

import (
	"github.com/spf13/cobra"
	"github.com/systmms/credvault/internal/config"
)

// NewSecretsCommand creates the parent 'secrets' command
func NewSecretsCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Manage the secret ledger (set, list, revoke, history)",
		Long: `Manage encrypted secret references in the versioned ledger.

Every write appends a new version; nothing is ever overwritten or deleted.

Examples:
  credvault secrets set --scope integration --name providers/anthropic_api_key --source onboarding
  credvault secrets list
  credvault secrets revoke --id 6f1c...
  credvault secrets history --scope integration --name providers/anthropic_api_key`,
	}

	// Add subcommands
	cmd.AddCommand(
		NewSecretsSetCommand(cfg),
		NewSecretsListCommand(cfg),
		NewSecretsRevokeCommand(cfg),
		NewSecretsHistoryCommand(cfg),
	)

	return cmd
}
