package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Silver table names. These are the only two normalized inputs the
// derivation core reads.
const (
	TableFOBhavcopyDay   = "fo_bhavcopy_day"
	TableMWPLCombinedDay = "mwpl_combined_day"
)

// Raw source names used in the cache layout.
const (
	SourceFOUDiFF      = "fo_udiff"
	SourceMWPLCombined = "mwpl_combined"
)

// Paths is the single source of truth for the partitioned store layout.
// Layout under the storage root:
//
//	raw/<source>/YYYY/MM/YYYY-MM-DD.<ext>       (fetched vendor artifacts)
//	silver/<table>/date=YYYY-MM-DD/data.csv     (normalized extracts)
//	gold/futures_day/date=YYYY-MM-DD/<SYM>.csv  (per-day aggregates)
//	gold/futures_month_summary/<SYM>_<EXP>.csv  (per-expiry summaries)
//	excel/<SYM>/FuData.xlsx                     (rendered workbooks)
//	logs/run_manifests/run_<ts>_<id>.json       (run manifests)
type Paths struct {
	Root string
}

// NewPaths resolves the storage root to an absolute path.
func NewPaths(storageRoot string) (*Paths, error) {
	abs, err := filepath.Abs(storageRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage root: %w", err)
	}
	return &Paths{Root: abs}, nil
}

// RawDir returns the raw cache directory for a source and date.
func (p *Paths) RawDir(source string, date time.Time) string {
	return filepath.Join(p.Root, "raw", source,
		fmt.Sprintf("%04d", date.Year()), fmt.Sprintf("%02d", date.Month()))
}

// RawFile returns the cache path for one raw artifact.
func (p *Paths) RawFile(source string, date time.Time, ext string) string {
	return filepath.Join(p.RawDir(source, date), date.Format("2006-01-02")+ext)
}

// SilverDir returns the root of one silver table.
func (p *Paths) SilverDir(table string) string {
	return filepath.Join(p.Root, "silver", table)
}

// SilverPartitionDir returns the partition directory for a table and date.
func (p *Paths) SilverPartitionDir(table string, date time.Time) string {
	return filepath.Join(p.SilverDir(table), "date="+date.Format("2006-01-02"))
}

// SilverDataFile returns the data file inside a silver partition.
func (p *Paths) SilverDataFile(table string, date time.Time) string {
	return filepath.Join(p.SilverPartitionDir(table, date), "data.csv")
}

// GoldDayDir returns the gold futures_day root.
func (p *Paths) GoldDayDir() string {
	return filepath.Join(p.Root, "gold", "futures_day")
}

// GoldDayPartitionDir returns the gold futures_day partition for a date.
func (p *Paths) GoldDayPartitionDir(date time.Time) string {
	return filepath.Join(p.GoldDayDir(), "date="+date.Format("2006-01-02"))
}

// GoldDayFile returns the per-symbol gold day artifact for a date.
func (p *Paths) GoldDayFile(symbol string, date time.Time) string {
	return filepath.Join(p.GoldDayPartitionDir(date), symbol+".csv")
}

// GoldSummaryDir returns the gold futures_month_summary root.
func (p *Paths) GoldSummaryDir() string {
	return filepath.Join(p.Root, "gold", "futures_month_summary")
}

// GoldSummaryFile returns the summary artifact for a symbol and expiry.
func (p *Paths) GoldSummaryFile(symbol string, expiry time.Time) string {
	return filepath.Join(p.GoldSummaryDir(), fmt.Sprintf("%s_%s.csv", symbol, expiry.Format("2006-01-02")))
}

// ExcelFile returns the rendered workbook path for a symbol.
func (p *Paths) ExcelFile(symbol string) string {
	return filepath.Join(p.Root, "excel", symbol, "FuData.xlsx")
}

// ManifestsDir returns the run-manifest directory.
func (p *Paths) ManifestsDir() string {
	return filepath.Join(p.Root, "logs", "run_manifests")
}

// EnsureBaseDirs creates the top-level layout. Partition directories are
// created lazily by the writers that own them.
func (p *Paths) EnsureBaseDirs() error {
	dirs := []string{
		filepath.Join(p.Root, "raw"),
		filepath.Join(p.Root, "silver"),
		p.GoldDayDir(),
		p.GoldSummaryDir(),
		p.ManifestsDir(),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
