package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/systmms/credvault/internal/config"
	"github.com/systmms/credvault/pkg/secretref"
)

func NewSecretsHistoryCommand(cfg *config.Config) *cobra.Command {
	var (
		scope string
		name  string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the audit trail for a secret",
		Long: `Show lifecycle audit records for one secret, newest first.

Each successful create, rotate, or revoke has exactly one record; failed
rotations that were rolled back appear with a failed outcome.

Examples:
  credvault secrets history --scope integration --name providers/anthropic_api_key
  credvault secrets history --scope instance --name webhooks/slack_signing_secret --limit 10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := secretref.ParseScope(scope)
			if err != nil {
				return err
			}
			return runSecretsHistory(cmd, cfg, parsed, name, limit)
		},
	}

	cmd.Flags().StringVar(&scope, "scope", "", "Secret scope (required)")
	cmd.Flags().StringVar(&name, "name", "", "Secret name (required)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of records")

	_ = cmd.MarkFlagRequired("scope")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func runSecretsHistory(cmd *cobra.Command, cfg *config.Config, scope secretref.Scope, name string, limit int) error {
	ctx := cmd.Context()
	environ, err := buildEnv(ctx, cfg)
	if err != nil {
		return err
	}
	defer environ.close()

	records, err := environ.registry.AuditTrail(ctx, scope, name, limit)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		cfg.Logger.Info("No audit records for %s/%s", scope, name)
		return nil
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-20s %-8s %-10s %-16s %s\n", "OCCURRED", "ACTION", "OUTCOME", "ACTOR", "REF")
	for _, rec := range records {
		fmt.Fprintf(out, "%-20s %-8s %-10s %-16s %s\n",
			formatTime(rec.OccurredAt), rec.Action, rec.Outcome, rec.ActorID, rec.SecretRefID)
	}

	return nil
}
