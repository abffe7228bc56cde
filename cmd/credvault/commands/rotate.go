package commands

import (
	"github.com/spf13/cobra"
	"github.com/systmms/credvault/internal/config"
	"github.com/systmms/credvault/internal/registry"
	"github.com/systmms/credvault/pkg/secretref"
)

func NewRotateCommand(cfg *config.Config) *cobra.Command {
	var valueFile string

	cmd := &cobra.Command{
		Use:   "rotate <provider>",
		Short: "Rotate a provider credential atomically",
		Long: `Rotate a provider credential to a new value.

The new value is validated before and after the ledger switch. If the
post-switch validation fails, the previous credential is restored as a
new corrective version and the rotation reports failure. The value is
read from stdin by default.

Examples:
  echo -n "$NEW_KEY" | credvault rotate anthropic
  credvault rotate github --value-file ./new-token.txt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := readSecretValue(cmd.InOrStdin(), valueFile)
			if err != nil {
				return err
			}
			return runRotate(cmd, cfg, args[0], value)
		},
	}

	cmd.Flags().StringVar(&valueFile, "value-file", "", "Read the new value from a file instead of stdin")

	return cmd
}

func runRotate(cmd *cobra.Command, cfg *config.Config, provider, value string) error {
	ctx := cmd.Context()
	environ, err := buildEnv(ctx, cfg)
	if err != nil {
		return err
	}
	defer environ.close()

	registry.InitMetrics()

	report, err := environ.registry.RotateProviderCredential(ctx, provider, value, currentActor())
	if report != nil {
		displayRotationReport(cfg, report)
	}
	return err
}

func displayRotationReport(cfg *config.Config, report *secretref.RotationReport) {
	logger := cfg.Logger

	logger.Info("Rotation report for %s (%s/%s)", report.Provider, report.Scope, report.Name)
	logger.Info("  before: version %d %s", report.Before.KeyVersion, report.Before.Verification)
	logger.Info("  after:  version %d %s", report.After.KeyVersion, report.After.Verification)

	switch {
	case report.ContinuityAlarm:
		logger.Error("Rollback failed; a continuity alarm is standing. Run 'credvault alarms list'.")
	case report.RollbackPerformed:
		logger.Warn("Validation failed after the switch; previous credential restored as version %d",
			report.After.KeyVersion+1)
	default:
		logger.Info("References switched at %s", formatTime(report.ReferencesSwitchedAt))
	}
}
