package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"fudata/internal/exporter"
	"fudata/pkg/contracts/domain"
)

var (
	exportSymbol string
	exportFrom   string
	exportTo     string
	exportCSV    string
)

var exportExcelCmd = &cobra.Command{
	Use:   "export-excel",
	Short: "Render the FuData workbook for a symbol",
	Long: `Reads the persisted gold artifacts for a symbol and renders the
per-symbol FuData.xlsx workbook: a Daily sheet over the requested date
range and a Summary sheet with every expiry summary. With --csv the
summaries are additionally written to a flat CSV.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if exportSymbol == "" {
			return fmt.Errorf("--symbol is required")
		}
		from, to, err := exportRange()
		if err != nil {
			return err
		}

		_, paths, logger, _, err := bootstrap()
		if err != nil {
			return err
		}

		exp := exporter.NewExporter(paths, logger)
		path, err := exp.ExportWorkbook(exportSymbol, from, to)
		if err != nil {
			return err
		}
		fmt.Println("workbook:", path)

		if exportCSV != "" {
			if err := exp.ExportSummariesCSV(exportSymbol, exportCSV); err != nil {
				return err
			}
			fmt.Println("summaries:", exportCSV)
		}
		return nil
	},
}

// exportRange defaults to the trailing year when no bounds are given.
func exportRange() (time.Time, time.Time, error) {
	to := domain.Date(time.Now().UTC())
	from := to.AddDate(-1, 0, 0)

	if exportFrom != "" {
		parsed, err := domain.ParseDate(exportFrom)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --from %q", exportFrom)
		}
		from = parsed
	}
	if exportTo != "" {
		parsed, err := domain.ParseDate(exportTo)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --to %q", exportTo)
		}
		to = parsed
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("--to must not precede --from")
	}
	return from, to, nil
}

func init() {
	exportExcelCmd.Flags().StringVar(&exportSymbol, "symbol", "", "symbol to export (required)")
	exportExcelCmd.Flags().StringVar(&exportFrom, "from", "", "daily sheet range start (default: one year back)")
	exportExcelCmd.Flags().StringVar(&exportTo, "to", "", "daily sheet range end (default: today)")
	exportExcelCmd.Flags().StringVar(&exportCSV, "csv", "", "also write summaries to this CSV path")
	rootCmd.AddCommand(exportExcelCmd)
}
