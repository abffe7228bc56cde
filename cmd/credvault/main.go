package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/systmms/credvault/cmd/credvault/commands"
	"github.com/systmms/credvault/internal/config"
	"github.com/systmms/credvault/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Global flags
	var (
		configFile string
		noColor    bool
		debug      bool
	)

	// Create config placeholder
	cfg := &config.Config{}

	rootCmd := &cobra.Command{
		Use:   "credvault",
		Short: "Credential lifecycle manager - encrypted storage, rotation, and audit",
		Long: `credvault keeps provider credentials in an encrypted, versioned ledger
and rotates them atomically with validation checkpoints and audit coupling.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Initialize logger with parsed flags
			logger := logging.New(debug, noColor)

			cfg.Path = configFile
			cfg.Logger = logger
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", config.DefaultPath, "Config file path")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		commands.NewSecretsCommand(cfg),
		commands.NewRotateCommand(cfg),
		commands.NewGetCommand(cfg),
		commands.NewProvidersCommand(cfg),
		commands.NewAlarmsCommand(cfg),
		commands.NewKeyCommand(cfg),
		commands.NewMetricsCommand(cfg),
	)

	return rootCmd.Execute()
}
