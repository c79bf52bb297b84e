// Package silver persists and reads the normalized daily extracts. One
// partition per (table, date); partitions are immutable once written and
// rewrites replace the whole partition atomically.
package silver

import (
	"encoding/csv"
	"fmt"
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

// Store reads and writes silver partitions under the configured layout.
type Store struct {
	paths  *config.Paths
	logger *slog.Logger
}

// NewStore creates a silver store.
func NewStore(paths *config.Paths, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{paths: paths, logger: logger}
}

// HasPartition reports whether a partition data file exists for table/date.
func (s *Store) HasPartition(table string, date time.Time) bool {
	_, err := os.Stat(s.paths.SilverDataFile(table, date))
	return err == nil
}

// PartitionDates enumerates the dates with a partition for table, ascending.
func (s *Store) PartitionDates(table string) ([]time.Time, error) {
	entries, err := os.ReadDir(s.paths.SilverDir(table))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, pipeerrors.Storage("list partitions", err)
	}

	var dates []time.Time
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), "date=") {
			continue
		}
		d, err := domain.ParseDate(strings.TrimPrefix(entry.Name(), "date="))
		if err != nil {
			s.logger.Warn("skipping malformed partition directory",
				slog.String("table", table),
				slog.String("name", entry.Name()))
			continue
		}
		if _, err := os.Stat(s.paths.SilverDataFile(table, d)); err != nil {
			continue
		}
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

// WriteDayPartition replaces the fo_bhavcopy_day partition for date.
func (s *Store) WriteDayPartition(date time.Time, records []domain.SilverDayRecord) error {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, dayRecordToRow(r))
	}
	path := s.paths.SilverDataFile(config.TableFOBhavcopyDay, date)
	if err := writeCSVAtomic(path, dayHeaders, rows); err != nil {
		return pipeerrors.Storage("write fo_bhavcopy_day partition", err)
	}
	s.logger.Info("wrote silver partition",
		slog.String("table", config.TableFOBhavcopyDay),
		slog.String("date", date.Format(domain.DateOnly)),
		slog.Int("rows", len(records)))
	return nil
}

// ReadDayPartition loads the fo_bhavcopy_day partition for date. A missing
// partition is ErrMissingSilverPartition: the caller cannot distinguish it
// from a non-trading day and must treat it as fatal.
func (s *Store) ReadDayPartition(date time.Time) ([]domain.SilverDayRecord, error) {
	path := s.paths.SilverDataFile(config.TableFOBhavcopyDay, date)
	rows, err := readCSV(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, pipeerrors.MissingSilverPartition(config.TableFOBhavcopyDay, date)
		}
		return nil, pipeerrors.Storage("read fo_bhavcopy_day partition", err)
	}

	records := make([]domain.SilverDayRecord, 0, len(rows))
	for i, row := range rows {
		rec, err := dayRecordFromRow(row)
		if err != nil {
			return nil, pipeerrors.Storage("decode fo_bhavcopy_day partition",
				fmt.Errorf("%s row %d: %w", path, i+1, err))
		}
		records = append(records, rec)
	}
	return records, nil
}

// WriteMWPLPartition replaces the mwpl_combined_day partition for date.
func (s *Store) WriteMWPLPartition(date time.Time, records []domain.PositionLimitRecord) error {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, mwplRecordToRow(r))
	}
	path := s.paths.SilverDataFile(config.TableMWPLCombinedDay, date)
	if err := writeCSVAtomic(path, mwplHeaders, rows); err != nil {
		return pipeerrors.Storage("write mwpl_combined_day partition", err)
	}
	s.logger.Info("wrote silver partition",
		slog.String("table", config.TableMWPLCombinedDay),
		slog.String("date", date.Format(domain.DateOnly)),
		slog.Int("rows", len(records)))
	return nil
}

// ReadMWPLPartition loads the mwpl_combined_day partition for date. The
// partition is optional; absence returns (nil, nil).
func (s *Store) ReadMWPLPartition(date time.Time) ([]domain.PositionLimitRecord, error) {
	path := s.paths.SilverDataFile(config.TableMWPLCombinedDay, date)
	rows, err := readCSV(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, pipeerrors.Storage("read mwpl_combined_day partition", err)
	}

	records := make([]domain.PositionLimitRecord, 0, len(rows))
	for i, row := range rows {
		rec, err := mwplRecordFromRow(row)
		if err != nil {
			return nil, pipeerrors.Storage("decode mwpl_combined_day partition",
				fmt.Errorf("%s row %d: %w", path, i+1, err))
		}
		records = append(records, rec)
	}
	return records, nil
}

// ScanDayRecords loads every fo_bhavcopy_day row for symbol across all
// partitions, ascending by partition date. Used by the expiry resolver.
func (s *Store) ScanDayRecords(symbol string) ([]domain.SilverDayRecord, error) {
	dates, err := s.PartitionDates(config.TableFOBhavcopyDay)
	if err != nil {
		return nil, err
	}

	var out []domain.SilverDayRecord
	for _, d := range dates {
		records, err := s.ReadDayPartition(d)
		if err != nil {
			return nil, err
		}
		for _, r := range records {
			if r.Symbol == symbol {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

// writeCSVAtomic writes header+rows to a temp file in the target directory
// and renames it into place, so readers never observe a half-written
// partition and a failed build cannot corrupt the previous artifact.
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

// readCSV loads all data rows (header stripped) from path.
func readCSV(path string) ([][]string, error) {
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
