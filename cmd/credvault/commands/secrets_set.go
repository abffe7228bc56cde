package commands

import (
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/systmms/credvault/internal/config"
	"github.com/systmms/credvault/internal/registry"
)

func NewSecretsSetCommand(cfg *config.Config) *cobra.Command {
	var (
		scope     string
		name      string
		source    string
		valueFile string
		expires   string
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store a new version of a secret",
		Long: `Store a secret value as a new ledger version.

The value is read from stdin by default so it never appears in shell
history or process listings. Use --value-file to read from a file instead.

Examples:
  echo -n "$API_KEY" | credvault secrets set --scope integration --name providers/anthropic_api_key --source onboarding
  credvault secrets set --scope instance --name webhooks/slack_signing_secret --source env --value-file ./secret.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := readSecretValue(cmd.InOrStdin(), valueFile)
			if err != nil {
				return err
			}

			expiresAt, err := parseExpiry(expires)
			if err != nil {
				return err
			}

			return runSecretsSet(cmd, cfg, registry.PersistRequest{
				Scope:     scope,
				Name:      name,
				Value:     value,
				Source:    source,
				Actor:     currentActor(),
				ExpiresAt: expiresAt,
			})
		},
	}

	cmd.Flags().StringVar(&scope, "scope", "", "Secret scope: instance, project, integration (required)")
	cmd.Flags().StringVar(&name, "name", "", "Secret name, e.g. providers/anthropic_api_key (required)")
	cmd.Flags().StringVar(&source, "source", "onboarding", "Provenance: env, onboarding, rotation")
	cmd.Flags().StringVar(&valueFile, "value-file", "", "Read the value from a file instead of stdin")
	cmd.Flags().StringVar(&expires, "expires", "", "Expiry timestamp (RFC3339)")

	_ = cmd.MarkFlagRequired("scope")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func readSecretValue(stdin io.Reader, valueFile string) (string, error) {
	if valueFile != "" {
		data, err := os.ReadFile(valueFile)
		if err != nil {
			return "", err
		}
		return strings.TrimRight(string(data), "\r\n"), nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

func runSecretsSet(cmd *cobra.Command, cfg *config.Config, req registry.PersistRequest) error {
	ctx := cmd.Context()
	environ, err := buildEnv(ctx, cfg)
	if err != nil {
		return err
	}
	defer environ.close()

	meta, err := environ.registry.Persist(ctx, req)
	if err != nil {
		return err
	}

	cfg.Logger.Info("%s/%s stored as version %d (source: %s)",
		meta.Scope, meta.Name, meta.KeyVersion, meta.Source)
	return nil
}
