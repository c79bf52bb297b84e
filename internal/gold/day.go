// Package gold derives the per-day and per-expiry aggregate artifacts from
// the silver layer. Both builders overwrite by key, so rebuilds are
// idempotent and never accumulate stale rows; a failed build touches only
// the key being rebuilt.
package gold

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"fudata/internal/config"
	pipeerrors "fudata/internal/errors"
	"fudata/internal/silver"
	"fudata/pkg/contracts/domain"
)

// DayBuilder joins one day's base extract with the optional position-limit
// extract into per-symbol gold day records.
type DayBuilder struct {
	store  *silver.Store
	paths  *config.Paths
	logger *slog.Logger
}

// NewDayBuilder creates a day builder.
func NewDayBuilder(store *silver.Store, paths *config.Paths, logger *slog.Logger) *DayBuilder {
	if logger == nil {
		logger = slog.Default()
	}
	return &DayBuilder{store: store, paths: paths, logger: logger}
}

// Build produces and persists the gold futures_day records for symbol on
// date. A missing base partition is fatal (ErrMissingSilverPartition); a
// present partition with no rows for the symbol returns an empty result and
// persists nothing. The optional position-limit row is left-joined; its
// absence leaves the MWPL fields nil.
func (b *DayBuilder) Build(ctx context.Context, symbol string, date time.Time) ([]domain.GoldDayRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	date = domain.Date(date)

	silverRecords, err := b.store.ReadDayPartition(date)
	if err != nil {
		return nil, err
	}

	var dayRows []domain.SilverDayRecord
	for _, r := range silverRecords {
		if r.Symbol == symbol {
			dayRows = append(dayRows, r)
		}
	}
	if len(dayRows) == 0 {
		b.logger.Info("no base rows for symbol, empty gold day",
			slog.String("symbol", symbol),
			slog.String("date", date.Format(domain.DateOnly)))
		return nil, nil
	}

	mwplRecords, err := b.store.ReadMWPLPartition(date)
	if err != nil {
		return nil, err
	}
	var limit *domain.PositionLimitRecord
	for i := range mwplRecords {
		if mwplRecords[i].Symbol == symbol {
			limit = &mwplRecords[i]
			break
		}
	}

	records := make([]domain.GoldDayRecord, 0, len(dayRows))
	for _, r := range dayRows {
		rec := domain.GoldDayRecord{
			TradeDate:     r.TradeDate,
			Symbol:        r.Symbol,
			ExpiryDate:    r.ExpiryDate,
			Open:          r.Open,
			High:          r.High,
			Low:           r.Low,
			Close:         r.Close,
			SettlePrice:   r.SettlePrice,
			Contracts:     r.Contracts,
			ValueLakhs:    r.ValueLakhs,
			OIContracts:   r.OpenInterestContracts,
			LotSizeShares: r.LotSizeShares,
			OIShares:      r.OpenInterestContracts * r.LotSizeShares,
		}
		if limit != nil {
			mwpl := limit.MWPLShares
			combined := limit.CombinedOIShares
			rec.MWPLShares = &mwpl
			rec.CombinedOIShares = &combined
		}
		records = append(records, rec)
	}

	if err := writeDayFile(b.paths.GoldDayFile(symbol, date), records); err != nil {
		return nil, err
	}
	b.logger.Info("built gold futures_day",
		slog.String("symbol", symbol),
		slog.String("date", date.Format(domain.DateOnly)),
		slog.Int("rows", len(records)),
		slog.Bool("mwpl_joined", limit != nil))
	return records, nil
}

// LoadDays reads the persisted gold day records for symbol with trade date
// in [start, end] inclusive, ascending by date. Dates without an artifact
// for the symbol are skipped.
func LoadDays(paths *config.Paths, symbol string, start, end time.Time) ([]domain.GoldDayRecord, error) {
	entries, err := os.ReadDir(paths.GoldDayDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, pipeerrors.Storage("list gold futures_day partitions", err)
	}

	var dates []time.Time
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		if len(name) <= len("date=") || name[:len("date=")] != "date=" {
			continue
		}
		d, perr := domain.ParseDate(name[len("date="):])
		if perr != nil {
			continue
		}
		if d.Before(start) || d.After(end) {
			continue
		}
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	var out []domain.GoldDayRecord
	for _, d := range dates {
		path := paths.GoldDayFile(symbol, d)
		records, err := readDayFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, pipeerrors.Storage("read gold futures_day", err)
		}
		out = append(out, records...)
	}
	return out, nil
}

func writeDayFile(path string, records []domain.GoldDayRecord) error {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, goldDayToRow(r))
	}
	if err := writeCSVAtomic(path, goldDayHeaders, rows); err != nil {
		return pipeerrors.Storage("write gold futures_day", err)
	}
	return nil
}

func readDayFile(path string) ([]domain.GoldDayRecord, error) {
	rows, err := readCSVRows(path)
	if err != nil {
		return nil, err
	}
	records := make([]domain.GoldDayRecord, 0, len(rows))
	for i, row := range rows {
		rec, err := goldDayFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+1, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// writeCSVAtomic mirrors the silver writer: temp file in the target
// directory, then rename, so rebuilds are atomic per key.
func writeCSVAtomic(path string, headers []string, rows [][]string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	writer := csv.NewWriter(tmp)
	if err := writer.Write(headers); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write headers: %w", err)
	}
	for i, row := range rows {
		if err := writer.Write(row); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func readCSVRows(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	all, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all[1:], nil
}
