package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/systmms/credvault/internal/catalog"
	"github.com/systmms/credvault/internal/config"
)

func NewProvidersCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "List known providers and their secret bindings",
		Long: `List the providers credvault can rotate credentials for.

Built-in providers are always available; additional ones are loaded from
the catalog directory in the configuration file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProviders(cmd, cfg)
		},
	}

	return cmd
}

func runProviders(cmd *cobra.Command, cfg *config.Config) error {
	def, err := config.Load(cfg.Path)
	if err != nil {
		return err
	}

	cat := catalog.Builtin()
	if def.Catalog.Dir != "" {
		if err := cat.LoadDir(def.Catalog.Dir); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-16s %-12s %-40s %s\n", "PROVIDER", "SCOPE", "SECRET", "DESCRIPTION")
	for _, spec := range cat.List() {
		fmt.Fprintf(out, "%-16s %-12s %-40s %s\n",
			spec.Provider, spec.Scope, spec.SecretName, spec.Description)
	}

	return nil
}
