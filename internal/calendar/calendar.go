// Package calendar answers trading-day questions from the ingestion
// footprint alone. There is no independent holiday source: a date counts as
// a trading day iff a raw artifact or a silver partition was ingested for
// it, so completeness of the calendar is bounded by completeness of
// ingestion. A date never ingested is indistinguishable from a non-trading
// day, and callers must own that trade-off.
package calendar

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"fudata/internal/config"
	pipeerrors "fudata/internal/errors"
	"fudata/pkg/contracts/domain"
)

// MaxForwardScanDays bounds NextTradingDayAfter. The bound exists to stop
// unbounded scans over empty or corrupted history; one year plus a leap day
// always covers a real exchange gap.
const MaxForwardScanDays = 366

// Index is an immutable set of known trading days, built once per run.
// Queries never touch storage.
type Index struct {
	days map[time.Time]struct{}
}

// NewIndex builds an index from an explicit set of dates. Used directly in
// tests and by callers that already hold the partition enumeration.
func NewIndex(dates []time.Time) *Index {
	days := make(map[time.Time]struct{}, len(dates))
	for _, d := range dates {
		days[domain.Date(d)] = struct{}{}
	}
	return &Index{days: days}
}

// BuildIndex enumerates raw artifacts and silver partitions under the store
// layout and indexes every date either layer knows about.
func BuildIndex(paths *config.Paths, logger *slog.Logger) (*Index, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var dates []time.Time

	rawDates, err := scanRawArtifacts(filepath.Join(paths.Root, "raw"))
	if err != nil {
		return nil, pipeerrors.Storage("scan raw artifacts", err)
	}
	dates = append(dates, rawDates...)

	silverDates, err := scanSilverPartitions(filepath.Join(paths.Root, "silver"))
	if err != nil {
		return nil, pipeerrors.Storage("scan silver partitions", err)
	}
	dates = append(dates, silverDates...)

	idx := NewIndex(dates)
	logger.Info("built calendar index",
		slog.Int("raw_dates", len(rawDates)),
		slog.Int("silver_dates", len(silverDates)),
		slog.Int("trading_days", len(idx.days)))
	return idx, nil
}

// IsTradingDay reports whether the ingestion footprint covers d.
func (ix *Index) IsTradingDay(d time.Time) bool {
	_, ok := ix.days[domain.Date(d)]
	return ok
}

// NextTradingDayAfter scans forward one day at a time and returns the first
// trading day strictly after d. ErrCalendarExhausted when nothing is found
// within MaxForwardScanDays.
func (ix *Index) NextTradingDayAfter(d time.Time) (time.Time, error) {
	day := domain.Date(d)
	for i := 0; i < MaxForwardScanDays; i++ {
		day = day.AddDate(0, 0, 1)
		if ix.IsTradingDay(day) {
			return day, nil
		}
	}
	return time.Time{}, pipeerrors.CalendarExhausted(domain.Date(d), MaxForwardScanDays)
}

// TradingDays returns the indexed days in ascending order.
func (ix *Index) TradingDays() []time.Time {
	out := make([]time.Time, 0, len(ix.days))
	for d := range ix.days {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// scanRawArtifacts walks raw/<source>/YYYY/MM/ and extracts the date from
// each artifact name (YYYY-MM-DD prefix).
func scanRawArtifacts(rawRoot string) ([]time.Time, error) {
	var dates []time.Time
	err := filepath.WalkDir(rawRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if len(name) < len(domain.DateOnly) {
			return nil
		}
		if parsed, perr := domain.ParseDate(name[:len(domain.DateOnly)]); perr == nil {
			dates = append(dates, parsed)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dates, nil
}

// scanSilverPartitions collects the date=YYYY-MM-DD partition directories of
// every silver table that carry a data file.
func scanSilverPartitions(silverRoot string) ([]time.Time, error) {
	tables, err := os.ReadDir(silverRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var dates []time.Time
	for _, table := range tables {
		if !table.IsDir() {
			continue
		}
		partitions, err := os.ReadDir(filepath.Join(silverRoot, table.Name()))
		if err != nil {
			return nil, err
		}
		for _, part := range partitions {
			if !part.IsDir() || !strings.HasPrefix(part.Name(), "date=") {
				continue
			}
			parsed, perr := domain.ParseDate(strings.TrimPrefix(part.Name(), "date="))
			if perr != nil {
				continue
			}
			dataFile := filepath.Join(silverRoot, table.Name(), part.Name(), "data.csv")
			if _, serr := os.Stat(dataFile); serr == nil {
				dates = append(dates, parsed)
			}
		}
	}
	return dates, nil
}
