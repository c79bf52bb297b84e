package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"fudata/internal/config"
	"fudata/internal/manifest"
	"fudata/internal/pipeline"
	"fudata/pkg/contracts/domain"
)

var (
	buildSymbols string
	buildDate    string
	buildFrom    string
	buildTo      string
)

var buildGoldCmd = &cobra.Command{
	Use:   "build-gold",
	Short: "Rebuild gold day aggregates and expiry summaries",
	Long: `Builds the futures_day aggregate for every requested (symbol, date)
and then rebuilds the futures_month_summary of every expiry whose
lookback window contains one of those dates. Symbols build
concurrently. Outputs are overwritten by key, so re-running unchanged
inputs is byte-identical.

Either --date or a --from/--to range selects the trade dates.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		symbols := splitSymbols(buildSymbols)
		if len(symbols) == 0 {
			return fmt.Errorf("--symbols is required")
		}
		_, paths, logger, p, err := bootstrap()
		if err != nil {
			return err
		}
		dates, err := resolveDates(buildDate, buildFrom, buildTo)
		if err != nil {
			return err
		}
		// A range selects the observed trading days inside it; a single
		// --date is strict and fails on a missing partition.
		if buildDate == "" {
			dates = filterObserved(p, dates)
			if len(dates) == 0 {
				return fmt.Errorf("no silver partitions in range %s..%s", buildFrom, buildTo)
			}
		}
		rec := manifest.NewRecorder("build-gold", paths, logger)

		start := time.Now()
		results, runErr := p.BuildGold(cmd.Context(), symbols, dates)
		rec.RecordStep("build_gold",
			fmt.Sprintf("%d symbols, %d dates", len(symbols), len(dates)),
			time.Since(start), runErr)
		if err := rec.Close(runErr); err != nil {
			logger.Error("failed to write run manifest", "error", err)
		}
		if runErr != nil {
			return runErr
		}

		for _, r := range results {
			fmt.Printf("%s: %d days, %d summaries\n", r.Symbol, r.DaysBuilt, r.SummariesBuilt)
		}
		return nil
	},
}

func splitSymbols(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func resolveDates(single, from, to string) ([]time.Time, error) {
	if single != "" {
		date, err := domain.ParseDate(single)
		if err != nil {
			return nil, fmt.Errorf("invalid --date %q", single)
		}
		return []time.Time{date}, nil
	}
	if from == "" || to == "" {
		return nil, fmt.Errorf("either --date or both --from and --to are required")
	}
	start, err := domain.ParseDate(from)
	if err != nil {
		return nil, fmt.Errorf("invalid --from %q", from)
	}
	end, err := domain.ParseDate(to)
	if err != nil {
		return nil, fmt.Errorf("invalid --to %q", to)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("--to must not precede --from")
	}

	var dates []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates, nil
}

func filterObserved(p *pipeline.Pipeline, dates []time.Time) []time.Time {
	var out []time.Time
	for _, d := range dates {
		if p.Store().HasPartition(config.TableFOBhavcopyDay, d) {
			out = append(out, d)
		}
	}
	return out
}

func init() {
	buildGoldCmd.Flags().StringVar(&buildSymbols, "symbols", "", "comma-separated symbols (required)")
	buildGoldCmd.Flags().StringVar(&buildDate, "date", "", "single trade date (YYYY-MM-DD)")
	buildGoldCmd.Flags().StringVar(&buildFrom, "from", "", "range start (YYYY-MM-DD)")
	buildGoldCmd.Flags().StringVar(&buildTo, "to", "", "range end (YYYY-MM-DD)")
	rootCmd.AddCommand(buildGoldCmd)
}
