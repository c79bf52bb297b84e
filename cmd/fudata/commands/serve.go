package commands

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	transport "fudata/internal/transport/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read-only reporting API",
	Long: `Starts the HTTP surface over the partitioned store: symbol listings,
per-expiry summaries, per-day aggregates, health and prometheus
metrics. The server never mutates the store; run the ingest and build
commands (or the scheduler) to refresh it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, paths, logger, _, err := bootstrap()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		server := transport.NewServer(cfg.Server, paths, logger)
		return server.Start(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
