package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"fudata/internal/manifest"
	"fudata/pkg/contracts/domain"
)

var (
	ingestDate string
	ingestFile string
)

var ingestUDiFFCmd = &cobra.Command{
	Use:   "ingest-udiff",
	Short: "Fetch and normalize a stock-futures bhavcopy into the silver layer",
	Long: `Downloads the UDiFF bhavcopy archive for a trade date (or reads a
local archive with --file), keeps the stock-futures rows and writes the
fo_bhavcopy_day silver partition. Re-running a date overwrites the
partition in place.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, paths, logger, p, err := bootstrap()
		if err != nil {
			return err
		}
		rec := manifest.NewRecorder("ingest-udiff", paths, logger)

		runErr := func() error {
			if ingestFile != "" {
				start := time.Now()
				err := p.IngestUDiFFFile(cmd.Context(), ingestFile)
				rec.RecordStep("ingest_udiff_file", ingestFile, time.Since(start), err)
				return err
			}
			date, err := parseDateFlag(ingestDate)
			if err != nil {
				return err
			}
			start := time.Now()
			err = p.IngestUDiFF(cmd.Context(), date, rec)
			rec.RecordStep("ingest_udiff", date.Format(domain.DateOnly), time.Since(start), err)
			return err
		}()
		if err := rec.Close(runErr); err != nil {
			logger.Error("failed to write run manifest", "error", err)
		}
		return runErr
	},
}

var ingestMWPLCmd = &cobra.Command{
	Use:   "ingest-mwpl",
	Short: "Fetch and normalize a combined OI position-limit report",
	Long: `Downloads the combined open-interest report for a trade date (or
reads a local CSV/XLSX with --file) and writes the mwpl_combined_day
silver partition. The partition is optional: days without it simply
carry no thresholds.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, paths, logger, p, err := bootstrap()
		if err != nil {
			return err
		}
		rec := manifest.NewRecorder("ingest-mwpl", paths, logger)

		runErr := func() error {
			if ingestFile != "" {
				start := time.Now()
				err := p.IngestMWPLFile(cmd.Context(), ingestFile)
				rec.RecordStep("ingest_mwpl_file", ingestFile, time.Since(start), err)
				return err
			}
			date, err := parseDateFlag(ingestDate)
			if err != nil {
				return err
			}
			start := time.Now()
			err = p.IngestMWPL(cmd.Context(), date, rec)
			rec.RecordStep("ingest_mwpl", date.Format(domain.DateOnly), time.Since(start), err)
			return err
		}()
		if err := rec.Close(runErr); err != nil {
			logger.Error("failed to write run manifest", "error", err)
		}
		return runErr
	},
}

func parseDateFlag(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("either --date or --file is required")
	}
	date, err := domain.ParseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q: expected YYYY-MM-DD", s)
	}
	return date, nil
}

func init() {
	for _, cmd := range []*cobra.Command{ingestUDiFFCmd, ingestMWPLCmd} {
		cmd.Flags().StringVar(&ingestDate, "date", "", "trade date to fetch (YYYY-MM-DD)")
		cmd.Flags().StringVar(&ingestFile, "file", "", "local vendor file instead of fetching")
	}
	rootCmd.AddCommand(ingestUDiFFCmd, ingestMWPLCmd)
}
