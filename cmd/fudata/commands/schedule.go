package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"fudata/internal/scheduler"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the daily ingest-and-build job on a cron schedule",
	Long: `Runs as a daemon: at every trigger of the configured cron spec it
fetches both vendor sources for the current date, normalizes them and
rebuilds the gold layer for the configured symbols. Each run writes a
run manifest.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, logger, p, err := bootstrap()
		if err != nil {
			return err
		}
		if !cfg.Scheduler.Enabled {
			return fmt.Errorf("scheduler is disabled; set scheduler.enabled or FUDATA_SCHEDULER_ENABLED")
		}
		if len(cfg.Scheduler.Symbols) == 0 {
			return fmt.Errorf("scheduler.symbols is empty")
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		job := func(ctx context.Context, date time.Time) error {
			return p.RunDaily(ctx, date, cfg.Scheduler.Symbols)
		}
		return scheduler.New(cfg.Scheduler, job, logger).Start(ctx)
	},
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
}
