// Package parse normalizes raw vendor extracts into the silver schemas. The
// vendor headers drift across years, so both parsers map observed columns
// onto canonical names through config-driven alias tables.
package parse

import (
	"archive/zip"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	pipeerrors "fudata/internal/errors"
	"fudata/pkg/contracts/domain"
)

// Date layouts seen across vendor files.
var dateLayouts = []string{"2006-01-02", "02-Jan-2006", "02-01-2006", "2-Jan-2006"}

// Instrument code mapping from the UDiFF FinInstrmTp codes to the legacy
// instrument names the silver schema uses.
var instrumentCodes = map[string]string{
	"STF": domain.InstrumentFUTSTK,
	"STO": domain.InstrumentOPTSTK,
	"IDF": domain.InstrumentFUTIDX,
	"IDO": domain.InstrumentOPTIDX,
}

var udiffRequired = []string{
	"trade_date", "instrument", "symbol", "expiry_date",
	"open", "high", "low", "close", "settle_price",
	"contracts", "value_lakhs", "open_interest_contracts", "lot_size_shares",
}

// UDiFFParser converts a UDiFF bhavcopy archive into silver day records,
// keeping only stock-futures rows.
type UDiFFParser struct {
	aliases map[string][]string
	logger  *slog.Logger
}

// NewUDiFFParser creates a parser with the configured alias table.
func NewUDiFFParser(aliases map[string][]string, logger *slog.Logger) *UDiFFParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &UDiFFParser{aliases: aliases, logger: logger}
}

// ParseZip opens the zipped bhavcopy at path and parses the first CSV entry.
func (p *UDiFFParser) ParseZip(path string) ([]domain.SilverDayRecord, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, pipeerrors.ParseFailed(path, err)
	}
	defer reader.Close()

	for _, file := range reader.File {
		if !strings.HasSuffix(strings.ToLower(file.Name), ".csv") {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, pipeerrors.ParseFailed(path, err)
		}
		records, err := p.Parse(rc)
		rc.Close()
		if err != nil {
			return nil, pipeerrors.ParseFailed(path, err)
		}
		return records, nil
	}
	return nil, pipeerrors.ParseFailed(path, fmt.Errorf("no CSV entry in archive"))
}

// Parse reads a UDiFF CSV stream and returns the FUTSTK rows in the silver
// schema.
func (p *UDiFFParser) Parse(r io.Reader) ([]domain.SilverDayRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	cols, err := mapColumns(header, udiffRequired, p.aliases)
	if err != nil {
		return nil, err
	}
	changeIdx := optionalColumn(header, "change_in_oi_contracts", p.aliases)

	var records []domain.SilverDayRecord
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		line++

		instrument := normalizeInstrument(field(row, cols["instrument"]))
		if instrument != domain.InstrumentFUTSTK {
			continue
		}

		rec, err := parseUDiFFRow(row, cols, changeIdx)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		records = append(records, rec)
	}

	p.logger.Info("parsed UDiFF bhavcopy",
		slog.Int("futstk_rows", len(records)))
	return records, nil
}

func parseUDiFFRow(row []string, cols map[string]int, changeIdx int) (domain.SilverDayRecord, error) {
	var rec domain.SilverDayRecord
	var err error

	if rec.TradeDate, err = parseVendorDate(field(row, cols["trade_date"])); err != nil {
		return rec, fmt.Errorf("trade_date: %w", err)
	}
	rec.Instrument = domain.InstrumentFUTSTK
	rec.Symbol = strings.TrimSpace(field(row, cols["symbol"]))
	if rec.Symbol == "" {
		return rec, fmt.Errorf("empty symbol")
	}
	if rec.ExpiryDate, err = parseVendorDate(field(row, cols["expiry_date"])); err != nil {
		return rec, fmt.Errorf("expiry_date: %w", err)
	}

	floats := map[string]*float64{
		"open": &rec.Open, "high": &rec.High, "low": &rec.Low,
		"close": &rec.Close, "settle_price": &rec.SettlePrice,
		"value_lakhs": &rec.ValueLakhs,
	}
	for name, dst := range floats {
		v, err := parseVendorFloat(field(row, cols[name]))
		if err != nil {
			return rec, fmt.Errorf("%s: %w", name, err)
		}
		if v < 0 {
			return rec, fmt.Errorf("%s: negative value %v", name, v)
		}
		*dst = v
	}

	ints := map[string]*int64{
		"contracts":               &rec.Contracts,
		"open_interest_contracts": &rec.OpenInterestContracts,
		"lot_size_shares":         &rec.LotSizeShares,
	}
	for name, dst := range ints {
		v, err := parseVendorInt(field(row, cols[name]))
		if err != nil {
			return rec, fmt.Errorf("%s: %w", name, err)
		}
		if v < 0 {
			return rec, fmt.Errorf("%s: negative value %d", name, v)
		}
		*dst = v
	}
	if rec.LotSizeShares <= 0 {
		return rec, fmt.Errorf("lot_size_shares must be > 0, got %d", rec.LotSizeShares)
	}

	if changeIdx >= 0 && strings.TrimSpace(field(row, changeIdx)) != "" {
		v, err := parseVendorInt(field(row, changeIdx))
		if err != nil {
			return rec, fmt.Errorf("change_in_oi_contracts: %w", err)
		}
		rec.ChangeInOIContracts = &v
	}
	return rec, nil
}

// mapColumns resolves each canonical column to a header index. Aliases are
// tried in declaration order, so preferred vendor columns (TckrSymb over
// FinInstrmId, FininstrmActlXpryDt over XpryDt, TradDt over BizDt) win when
// a file carries both.
func mapColumns(header []string, required []string, aliases map[string][]string) (map[string]int, error) {
	index := headerIndex(header)

	cols := make(map[string]int, len(required))
	var missing []string
	for _, canonical := range required {
		idx := lookupColumn(index, canonical, aliases)
		if idx < 0 {
			missing = append(missing, canonical)
			continue
		}
		cols[canonical] = idx
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns after alias mapping: %v", missing)
	}
	return cols, nil
}

func optionalColumn(header []string, canonical string, aliases map[string][]string) int {
	return lookupColumn(headerIndex(header), canonical, aliases)
}

func headerIndex(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, col := range header {
		key := strings.ToUpper(strings.TrimSpace(col))
		if _, exists := index[key]; !exists {
			index[key] = i
		}
	}
	return index
}

func lookupColumn(index map[string]int, canonical string, aliases map[string][]string) int {
	candidates := append([]string{canonical}, aliases[canonical]...)
	for _, candidate := range candidates {
		if idx, ok := index[strings.ToUpper(strings.TrimSpace(candidate))]; ok {
			return idx
		}
	}
	return -1
}

func normalizeInstrument(raw string) string {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if mapped, ok := instrumentCodes[code]; ok {
		return mapped
	}
	return code
}

func field(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func parseVendorDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return domain.Date(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func parseVendorFloat(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	return strconv.ParseFloat(s, 64)
}

func parseVendorInt(s string) (int64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	// Some vendor files render integral counts as "100.0".
	if strings.Contains(s, ".") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, err
		}
		return int64(f), nil
	}
	return strconv.ParseInt(s, 10, 64)
}
