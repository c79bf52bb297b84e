package silver

import (
	"fmt"
	"strconv"

	"fudata/pkg/contracts/domain"
)

var dayHeaders = []string{
	"trade_date", "instrument", "symbol", "expiry_date",
	"open", "high", "low", "close", "settle_price",
	"contracts", "value_lakhs", "open_interest_contracts",
	"lot_size_shares", "change_in_oi_contracts",
}

var mwplHeaders = []string{
	"trade_date", "symbol", "mwpl_shares", "combined_oi_shares",
}

func dayRecordToRow(r domain.SilverDayRecord) []string {
	changeInOI := ""
	if r.ChangeInOIContracts != nil {
		changeInOI = strconv.FormatInt(*r.ChangeInOIContracts, 10)
	}
	return []string{
		r.TradeDate.Format(domain.DateOnly),
		r.Instrument,
		r.Symbol,
		r.ExpiryDate.Format(domain.DateOnly),
		formatFloat(r.Open),
		formatFloat(r.High),
		formatFloat(r.Low),
		formatFloat(r.Close),
		formatFloat(r.SettlePrice),
		strconv.FormatInt(r.Contracts, 10),
		formatFloat(r.ValueLakhs),
		strconv.FormatInt(r.OpenInterestContracts, 10),
		strconv.FormatInt(r.LotSizeShares, 10),
		changeInOI,
	}
}

func dayRecordFromRow(row []string) (domain.SilverDayRecord, error) {
	var rec domain.SilverDayRecord
	if len(row) != len(dayHeaders) {
		return rec, fmt.Errorf("expected %d columns, got %d", len(dayHeaders), len(row))
	}

	var err error
	if rec.TradeDate, err = domain.ParseDate(row[0]); err != nil {
		return rec, fmt.Errorf("trade_date: %w", err)
	}
	rec.Instrument = row[1]
	rec.Symbol = row[2]
	if rec.ExpiryDate, err = domain.ParseDate(row[3]); err != nil {
		return rec, fmt.Errorf("expiry_date: %w", err)
	}
	if rec.Open, err = strconv.ParseFloat(row[4], 64); err != nil {
		return rec, fmt.Errorf("open: %w", err)
	}
	if rec.High, err = strconv.ParseFloat(row[5], 64); err != nil {
		return rec, fmt.Errorf("high: %w", err)
	}
	if rec.Low, err = strconv.ParseFloat(row[6], 64); err != nil {
		return rec, fmt.Errorf("low: %w", err)
	}
	if rec.Close, err = strconv.ParseFloat(row[7], 64); err != nil {
		return rec, fmt.Errorf("close: %w", err)
	}
	if rec.SettlePrice, err = strconv.ParseFloat(row[8], 64); err != nil {
		return rec, fmt.Errorf("settle_price: %w", err)
	}
	if rec.Contracts, err = strconv.ParseInt(row[9], 10, 64); err != nil {
		return rec, fmt.Errorf("contracts: %w", err)
	}
	if rec.ValueLakhs, err = strconv.ParseFloat(row[10], 64); err != nil {
		return rec, fmt.Errorf("value_lakhs: %w", err)
	}
	if rec.OpenInterestContracts, err = strconv.ParseInt(row[11], 10, 64); err != nil {
		return rec, fmt.Errorf("open_interest_contracts: %w", err)
	}
	if rec.LotSizeShares, err = strconv.ParseInt(row[12], 10, 64); err != nil {
		return rec, fmt.Errorf("lot_size_shares: %w", err)
	}
	if row[13] != "" {
		v, err := strconv.ParseInt(row[13], 10, 64)
		if err != nil {
			return rec, fmt.Errorf("change_in_oi_contracts: %w", err)
		}
		rec.ChangeInOIContracts = &v
	}
	return rec, nil
}

func mwplRecordToRow(r domain.PositionLimitRecord) []string {
	return []string{
		r.TradeDate.Format(domain.DateOnly),
		r.Symbol,
		strconv.FormatInt(r.MWPLShares, 10),
		strconv.FormatInt(r.CombinedOIShares, 10),
	}
}

func mwplRecordFromRow(row []string) (domain.PositionLimitRecord, error) {
	var rec domain.PositionLimitRecord
	if len(row) != len(mwplHeaders) {
		return rec, fmt.Errorf("expected %d columns, got %d", len(mwplHeaders), len(row))
	}

	var err error
	if rec.TradeDate, err = domain.ParseDate(row[0]); err != nil {
		return rec, fmt.Errorf("trade_date: %w", err)
	}
	rec.Symbol = row[1]
	if rec.MWPLShares, err = strconv.ParseInt(row[2], 10, 64); err != nil {
		return rec, fmt.Errorf("mwpl_shares: %w", err)
	}
	if rec.CombinedOIShares, err = strconv.ParseInt(row[3], 10, 64); err != nil {
		return rec, fmt.Errorf("combined_oi_shares: %w", err)
	}
	return rec, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
