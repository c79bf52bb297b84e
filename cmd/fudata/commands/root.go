// Package commands implements the fudata CLI: ingest commands feeding the
// silver layer, the gold build, exports, the read API server and the
// scheduler daemon.
package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"fudata/internal/config"
	"fudata/internal/infrastructure"
	"fudata/internal/pipeline"
)

var (
	configFile string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "fudata",
	Short: "Futures market temporal derivation pipeline",
	Long: `fudata derives a trading calendar, expiry chains and position-limit
summaries from exchange futures extracts.

The pipeline is file-first: raw vendor artifacts are cached under the
storage root, normalized into dated silver partitions, and aggregated
into per-day and per-expiry gold artifacts that the export and serve
commands read.

Examples:
  fudata ingest-udiff --date 2024-04-02
  fudata ingest-mwpl --file reports/combined_oi.xlsx
  fudata build-gold --symbols ABC,XYZ --from 2024-04-01 --to 2024-04-30
  fudata export-excel --symbol ABC
  fudata serve`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	infrastructure.CloseLogFile()
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: FUDATA_CONFIG_FILE)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

// bootstrap loads configuration, initializes logging and assembles the
// pipeline. Every subcommand starts here.
func bootstrap() (*config.Config, *config.Paths, *slog.Logger, *pipeline.Pipeline, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	paths, err := config.NewPaths(cfg.Runtime.StorageRoot)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if err := paths.EnsureBaseDirs(); err != nil {
		return nil, nil, nil, nil, err
	}

	return cfg, paths, logger, pipeline.New(cfg, paths, logger), nil
}
