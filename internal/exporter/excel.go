// Package exporter renders gold artifacts into analyst-facing formats: one
// Excel workbook per symbol and flat CSV exports. The partitioned store
// stays the source of truth; exports are rebuilt from it on demand.
package exporter

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"fudata/internal/config"
	"fudata/internal/gold"
	"fudata/pkg/contracts/domain"
)

const (
	sheetDaily   = "Daily"
	sheetSummary = "Summary"
)

var dailyHeaders = []string{
	"trade_date", "symbol", "expiry_date", "open", "high", "low", "close",
	"settle_price", "contracts", "value_lakhs", "oi_contracts",
	"lot_size_shares", "oi_shares", "mwpl_shares", "combined_oi_shares",
}

var summaryHeaders = []string{
	"symbol", "expiry_date", "primary_start", "overlap_start", "end",
	"summary_scope", "fallback_window", "max_oi_contracts",
	"max_permitted_contracts", "threshold_90pct", "mwpl_shares_used",
	"lot_size_used", "as_of_trade_date",
}

// Exporter renders workbooks and CSV exports for one storage root.
type Exporter struct {
	paths     *config.Paths
	csvWriter *CSVWriter
	logger    *slog.Logger
}

// NewExporter creates an exporter over the partitioned store.
func NewExporter(paths *config.Paths, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		paths:     paths,
		csvWriter: NewCSVWriter(logger),
		logger:    logger,
	}
}

// ExportWorkbook renders one FuData.xlsx for symbol covering [start, end].
// The workbook carries a Daily sheet with the per-day aggregates and a
// Summary sheet with every persisted per-expiry summary for the symbol.
func (e *Exporter) ExportWorkbook(symbol string, start, end time.Time) (string, error) {
	days, err := gold.LoadDays(e.paths, symbol, start, end)
	if err != nil {
		return "", fmt.Errorf("failed to load gold days for %s: %w", symbol, err)
	}
	summaries, err := gold.ListSummaries(e.paths, symbol)
	if err != nil {
		return "", fmt.Errorf("failed to load summaries for %s: %w", symbol, err)
	}
	if len(days) == 0 && len(summaries) == 0 {
		return "", fmt.Errorf("no gold artifacts for %s in range", symbol)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetDaily); err != nil {
		return "", err
	}
	if _, err := f.NewSheet(sheetSummary); err != nil {
		return "", err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
	})
	if err != nil {
		return "", err
	}

	if err := writeSheet(f, sheetDaily, headerStyle, dailyHeaders, dailyRows(days)); err != nil {
		return "", err
	}
	if err := writeSheet(f, sheetSummary, headerStyle, summaryHeaders, summaryRows(summaries)); err != nil {
		return "", err
	}

	dest := e.paths.ExcelFile(symbol)
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", fmt.Errorf("failed to create excel directory: %w", err)
	}
	if err := f.SaveAs(dest); err != nil {
		return "", fmt.Errorf("failed to save workbook: %w", err)
	}

	e.logger.Info("workbook exported",
		slog.String("symbol", symbol),
		slog.String("path", dest),
		slog.Int("daily_rows", len(days)),
		slog.Int("summary_rows", len(summaries)))
	return dest, nil
}

// ExportSummariesCSV writes every persisted summary for symbol to a flat
// CSV at outputPath.
func (e *Exporter) ExportSummariesCSV(symbol, outputPath string) error {
	summaries, err := gold.ListSummaries(e.paths, symbol)
	if err != nil {
		return fmt.Errorf("failed to load summaries for %s: %w", symbol, err)
	}

	records := make([][]string, 0, len(summaries))
	for _, rec := range summaryRows(summaries) {
		row := make([]string, len(rec))
		for i, cell := range rec {
			row[i] = cellString(cell)
		}
		records = append(records, row)
	}
	return e.csvWriter.WriteCSV(outputPath, WriteOptions{
		Headers:   summaryHeaders,
		Records:   records,
		BOMPrefix: true,
	})
}

func writeSheet(f *excelize.File, sheet string, headerStyle int, headers []string, rows [][]interface{}) error {
	headerRow := make([]interface{}, len(headers))
	for i, h := range headers {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &headerRow); err != nil {
		return err
	}
	endCell, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", endCell, headerStyle); err != nil {
		return err
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}

	lastCol, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "A", lastCol, 14); err != nil {
		return err
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft",
	})
}

func dailyRows(days []domain.GoldDayRecord) [][]interface{} {
	rows := make([][]interface{}, 0, len(days))
	for _, d := range days {
		rows = append(rows, []interface{}{
			d.TradeDate.Format(domain.DateOnly), d.Symbol,
			d.ExpiryDate.Format(domain.DateOnly),
			d.Open, d.High, d.Low, d.Close, d.SettlePrice,
			d.Contracts, d.ValueLakhs, d.OIContracts, d.LotSizeShares,
			d.OIShares, optInt(d.MWPLShares), optInt(d.CombinedOIShares),
		})
	}
	return rows
}

func summaryRows(summaries []domain.GoldSummaryRecord) [][]interface{} {
	rows := make([][]interface{}, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, []interface{}{
			s.Symbol, s.ExpiryDate.Format(domain.DateOnly),
			s.PrimaryStart.Format(domain.DateOnly),
			s.OverlapStart.Format(domain.DateOnly),
			s.End.Format(domain.DateOnly),
			string(s.SummaryScope), s.FallbackWindow, s.MaxOIContracts,
			optInt(s.MaxPermittedContracts), optInt(s.Threshold90Pct),
			optInt(s.MWPLSharesUsed), optInt(s.LotSizeUsed),
			optDate(s.AsOfTradeDate),
		})
	}
	return rows
}

// Absent values render as empty cells, never as zero.
func optInt(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func optDate(v *time.Time) interface{} {
	if v == nil {
		return nil
	}
	return v.Format(domain.DateOnly)
}

func cellString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}
