package gold

import (
	"fmt"
	"strconv"

	"fudata/pkg/contracts/domain"
)

var goldDayHeaders = []string{
	"trade_date", "symbol", "expiry_date",
	"open", "high", "low", "close", "settle_price",
	"contracts", "value_lakhs", "oi_contracts",
	"lot_size_shares", "oi_shares", "mwpl_shares", "combined_oi_shares",
}

var summaryHeaders = []string{
	"symbol", "expiry_date",
	"primary_start", "overlap_start", "end",
	"summary_scope", "fallback_window", "max_oi_contracts",
	"max_permitted_contracts", "threshold_90pct",
	"mwpl_shares_used", "lot_size_used", "as_of_trade_date",
}

func goldDayToRow(r domain.GoldDayRecord) []string {
	return []string{
		r.TradeDate.Format(domain.DateOnly),
		r.Symbol,
		r.ExpiryDate.Format(domain.DateOnly),
		formatFloat(r.Open),
		formatFloat(r.High),
		formatFloat(r.Low),
		formatFloat(r.Close),
		formatFloat(r.SettlePrice),
		strconv.FormatInt(r.Contracts, 10),
		formatFloat(r.ValueLakhs),
		strconv.FormatInt(r.OIContracts, 10),
		strconv.FormatInt(r.LotSizeShares, 10),
		strconv.FormatInt(r.OIShares, 10),
		formatOptionalInt(r.MWPLShares),
		formatOptionalInt(r.CombinedOIShares),
	}
}

func goldDayFromRow(row []string) (domain.GoldDayRecord, error) {
	var rec domain.GoldDayRecord
	if len(row) != len(goldDayHeaders) {
		return rec, fmt.Errorf("expected %d columns, got %d", len(goldDayHeaders), len(row))
	}

	var err error
	if rec.TradeDate, err = domain.ParseDate(row[0]); err != nil {
		return rec, fmt.Errorf("trade_date: %w", err)
	}
	rec.Symbol = row[1]
	if rec.ExpiryDate, err = domain.ParseDate(row[2]); err != nil {
		return rec, fmt.Errorf("expiry_date: %w", err)
	}
	if rec.Open, err = strconv.ParseFloat(row[3], 64); err != nil {
		return rec, fmt.Errorf("open: %w", err)
	}
	if rec.High, err = strconv.ParseFloat(row[4], 64); err != nil {
		return rec, fmt.Errorf("high: %w", err)
	}
	if rec.Low, err = strconv.ParseFloat(row[5], 64); err != nil {
		return rec, fmt.Errorf("low: %w", err)
	}
	if rec.Close, err = strconv.ParseFloat(row[6], 64); err != nil {
		return rec, fmt.Errorf("close: %w", err)
	}
	if rec.SettlePrice, err = strconv.ParseFloat(row[7], 64); err != nil {
		return rec, fmt.Errorf("settle_price: %w", err)
	}
	if rec.Contracts, err = strconv.ParseInt(row[8], 10, 64); err != nil {
		return rec, fmt.Errorf("contracts: %w", err)
	}
	if rec.ValueLakhs, err = strconv.ParseFloat(row[9], 64); err != nil {
		return rec, fmt.Errorf("value_lakhs: %w", err)
	}
	if rec.OIContracts, err = strconv.ParseInt(row[10], 10, 64); err != nil {
		return rec, fmt.Errorf("oi_contracts: %w", err)
	}
	if rec.LotSizeShares, err = strconv.ParseInt(row[11], 10, 64); err != nil {
		return rec, fmt.Errorf("lot_size_shares: %w", err)
	}
	if rec.OIShares, err = strconv.ParseInt(row[12], 10, 64); err != nil {
		return rec, fmt.Errorf("oi_shares: %w", err)
	}
	if rec.MWPLShares, err = parseOptionalInt(row[13]); err != nil {
		return rec, fmt.Errorf("mwpl_shares: %w", err)
	}
	if rec.CombinedOIShares, err = parseOptionalInt(row[14]); err != nil {
		return rec, fmt.Errorf("combined_oi_shares: %w", err)
	}
	return rec, nil
}

func summaryToRow(r domain.GoldSummaryRecord) []string {
	asOf := ""
	if r.AsOfTradeDate != nil {
		asOf = r.AsOfTradeDate.Format(domain.DateOnly)
	}
	return []string{
		r.Symbol,
		r.ExpiryDate.Format(domain.DateOnly),
		r.PrimaryStart.Format(domain.DateOnly),
		r.OverlapStart.Format(domain.DateOnly),
		r.End.Format(domain.DateOnly),
		string(r.SummaryScope),
		strconv.FormatBool(r.FallbackWindow),
		strconv.FormatInt(r.MaxOIContracts, 10),
		formatOptionalInt(r.MaxPermittedContracts),
		formatOptionalInt(r.Threshold90Pct),
		formatOptionalInt(r.MWPLSharesUsed),
		formatOptionalInt(r.LotSizeUsed),
		asOf,
	}
}

func summaryFromRow(row []string) (domain.GoldSummaryRecord, error) {
	var rec domain.GoldSummaryRecord
	if len(row) != len(summaryHeaders) {
		return rec, fmt.Errorf("expected %d columns, got %d", len(summaryHeaders), len(row))
	}

	var err error
	rec.Symbol = row[0]
	if rec.ExpiryDate, err = domain.ParseDate(row[1]); err != nil {
		return rec, fmt.Errorf("expiry_date: %w", err)
	}
	if rec.PrimaryStart, err = domain.ParseDate(row[2]); err != nil {
		return rec, fmt.Errorf("primary_start: %w", err)
	}
	if rec.OverlapStart, err = domain.ParseDate(row[3]); err != nil {
		return rec, fmt.Errorf("overlap_start: %w", err)
	}
	if rec.End, err = domain.ParseDate(row[4]); err != nil {
		return rec, fmt.Errorf("end: %w", err)
	}
	rec.SummaryScope = domain.SummaryScope(row[5])
	if rec.FallbackWindow, err = strconv.ParseBool(row[6]); err != nil {
		return rec, fmt.Errorf("fallback_window: %w", err)
	}
	if rec.MaxOIContracts, err = strconv.ParseInt(row[7], 10, 64); err != nil {
		return rec, fmt.Errorf("max_oi_contracts: %w", err)
	}
	if rec.MaxPermittedContracts, err = parseOptionalInt(row[8]); err != nil {
		return rec, fmt.Errorf("max_permitted_contracts: %w", err)
	}
	if rec.Threshold90Pct, err = parseOptionalInt(row[9]); err != nil {
		return rec, fmt.Errorf("threshold_90pct: %w", err)
	}
	if rec.MWPLSharesUsed, err = parseOptionalInt(row[10]); err != nil {
		return rec, fmt.Errorf("mwpl_shares_used: %w", err)
	}
	if rec.LotSizeUsed, err = parseOptionalInt(row[11]); err != nil {
		return rec, fmt.Errorf("lot_size_used: %w", err)
	}
	if row[12] != "" {
		d, err := domain.ParseDate(row[12])
		if err != nil {
			return rec, fmt.Errorf("as_of_trade_date: %w", err)
		}
		rec.AsOfTradeDate = &d
	}
	return rec, nil
}

func formatOptionalInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func parseOptionalInt(s string) (*int64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
