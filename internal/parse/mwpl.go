package parse

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	pipeerrors "fudata/internal/errors"
	"fudata/pkg/contracts/domain"
)

var mwplRequired = []string{"trade_date", "symbol", "mwpl_shares", "combined_oi_shares"}

// MWPLParser converts a combined OI / position-limit report into silver
// position-limit records. The exchange publishes the file as CSV or XLSX
// depending on the year.
type MWPLParser struct {
	aliases map[string][]string
	logger  *slog.Logger
}

// NewMWPLParser creates a parser with the configured alias table.
func NewMWPLParser(aliases map[string][]string, logger *slog.Logger) *MWPLParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &MWPLParser{aliases: aliases, logger: logger}
}

// ParseFile dispatches on the file extension.
func (p *MWPLParser) ParseFile(path string) ([]domain.PositionLimitRecord, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xls":
		return p.parseExcel(path)
	default:
		file, err := os.Open(path)
		if err != nil {
			return nil, pipeerrors.ParseFailed(path, err)
		}
		defer file.Close()
		records, err := p.Parse(file)
		if err != nil {
			return nil, pipeerrors.ParseFailed(path, err)
		}
		return records, nil
	}
}

// Parse reads a CSV stream in the combined OI layout.
func (p *MWPLParser) Parse(r io.Reader) ([]domain.PositionLimitRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return p.parseRows(rows)
}

func (p *MWPLParser) parseExcel(path string) ([]domain.PositionLimitRecord, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, pipeerrors.ParseFailed(path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, pipeerrors.ParseFailed(path, fmt.Errorf("workbook has no sheets"))
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, pipeerrors.ParseFailed(path, err)
	}
	records, err := p.parseRows(rows)
	if err != nil {
		return nil, pipeerrors.ParseFailed(path, err)
	}
	return records, nil
}

func (p *MWPLParser) parseRows(rows [][]string) ([]domain.PositionLimitRecord, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty file")
	}

	cols, err := mapColumns(rows[0], mwplRequired, p.aliases)
	if err != nil {
		return nil, err
	}

	records := make([]domain.PositionLimitRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}

		var rec domain.PositionLimitRecord
		if rec.TradeDate, err = parseVendorDate(field(row, cols["trade_date"])); err != nil {
			return nil, fmt.Errorf("row %d trade_date: %w", i+2, err)
		}
		rec.Symbol = strings.TrimSpace(field(row, cols["symbol"]))
		if rec.Symbol == "" {
			return nil, fmt.Errorf("row %d: empty symbol", i+2)
		}
		if rec.MWPLShares, err = parseVendorInt(field(row, cols["mwpl_shares"])); err != nil {
			return nil, fmt.Errorf("row %d mwpl_shares: %w", i+2, err)
		}
		if rec.CombinedOIShares, err = parseVendorInt(field(row, cols["combined_oi_shares"])); err != nil {
			return nil, fmt.Errorf("row %d combined_oi_shares: %w", i+2, err)
		}
		if rec.MWPLShares < 0 || rec.CombinedOIShares < 0 {
			return nil, fmt.Errorf("row %d: negative share counts", i+2)
		}
		records = append(records, rec)
	}

	p.logger.Info("parsed MWPL combined OI report",
		slog.Int("rows", len(records)))
	return records, nil
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
