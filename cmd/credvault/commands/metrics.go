package commands

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/systmms/credvault/internal/config"
	"github.com/systmms/credvault/internal/health"
)

// NewMetricsCommand creates the parent 'metrics' command
func NewMetricsCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Prometheus metrics endpoint",
	}

	cmd.AddCommand(newMetricsServeCommand(cfg))

	return cmd
}

func newMetricsServeCommand(cfg *config.Config) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve /metrics and /health until interrupted",
		Long: `Serve the Prometheus metrics endpoint.

Gauges include credvault_continuity_alarm, which stays at 1 for a
provider while a failed rollback leaves its active credential uncertain.

Examples:
  credvault metrics serve
  credvault metrics serve --listen :9465`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMetricsServe(cmd, cfg, listen)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (defaults to metrics.listen from config)")

	return cmd
}

func runMetricsServe(cmd *cobra.Command, cfg *config.Config, listen string) error {
	def, err := config.Load(cfg.Path)
	if err != nil {
		return err
	}

	if listen == "" {
		listen = def.Metrics.Listen
	}

	serverConfig := health.DefaultServerConfig()
	if listen != "" {
		serverConfig.Addr = listen
	}
	server := health.NewServer(serverConfig)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	cfg.Logger.Info("Serving metrics on %s", server.Addr())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return server.Stop(context.Background())
	}
}
