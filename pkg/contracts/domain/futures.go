package domain

import (
	"time"
)

// Instrument codes recognised in the normalized base extract.
const (
	InstrumentFUTSTK = "FUTSTK"
	InstrumentOPTSTK = "OPTSTK"
	InstrumentFUTIDX = "FUTIDX"
	InstrumentOPTIDX = "OPTIDX"
)

// DateOnly is the canonical wire format for trade and expiry dates.
const DateOnly = "2006-01-02"

// SilverDayRecord is one normalized futures row keyed by
// (trade_date, symbol, expiry_date). Produced by the bhavcopy parser and
// immutable once a silver partition is written.
type SilverDayRecord struct {
	TradeDate             time.Time `json:"trade_date" csv:"trade_date" validate:"required"`
	Instrument            string    `json:"instrument" csv:"instrument" validate:"required,oneof=FUTSTK OPTSTK FUTIDX OPTIDX"`
	Symbol                string    `json:"symbol" csv:"symbol" validate:"required,min=1,max=20"`
	ExpiryDate            time.Time `json:"expiry_date" csv:"expiry_date" validate:"required"`
	Open                  float64   `json:"open" csv:"open" validate:"min=0"`
	High                  float64   `json:"high" csv:"high" validate:"min=0"`
	Low                   float64   `json:"low" csv:"low" validate:"min=0"`
	Close                 float64   `json:"close" csv:"close" validate:"min=0"`
	SettlePrice           float64   `json:"settle_price" csv:"settle_price" validate:"min=0"`
	Contracts             int64     `json:"contracts" csv:"contracts" validate:"min=0"`
	ValueLakhs            float64   `json:"value_lakhs" csv:"value_lakhs" validate:"min=0"`
	OpenInterestContracts int64     `json:"open_interest_contracts" csv:"open_interest_contracts" validate:"min=0"`
	LotSizeShares         int64     `json:"lot_size_shares" csv:"lot_size_shares" validate:"gt=0"`
	ChangeInOIContracts   *int64    `json:"change_in_oi_contracts,omitempty" csv:"change_in_oi_contracts"`
}

// PositionLimitRecord is one market-wide position limit (MWPL) row keyed by
// (trade_date, symbol). Values are expressed in underlying shares. The
// partition is optional for any given date.
type PositionLimitRecord struct {
	TradeDate        time.Time `json:"trade_date" csv:"trade_date" validate:"required"`
	Symbol           string    `json:"symbol" csv:"symbol" validate:"required,min=1,max=20"`
	MWPLShares       int64     `json:"mwpl_shares" csv:"mwpl_shares" validate:"min=0"`
	CombinedOIShares int64     `json:"combined_oi_shares" csv:"combined_oi_shares" validate:"min=0"`
}

// GoldDayRecord is the per-day aggregate: a silver row widened with
// open interest in shares and the left-joined MWPL fields. MWPLShares and
// CombinedOIShares stay nil when no position-limit row exists for the date;
// absence is never rendered as zero.
type GoldDayRecord struct {
	TradeDate        time.Time `json:"trade_date" csv:"trade_date"`
	Symbol           string    `json:"symbol" csv:"symbol"`
	ExpiryDate       time.Time `json:"expiry_date" csv:"expiry_date"`
	Open             float64   `json:"open" csv:"open"`
	High             float64   `json:"high" csv:"high"`
	Low              float64   `json:"low" csv:"low"`
	Close            float64   `json:"close" csv:"close"`
	SettlePrice      float64   `json:"settle_price" csv:"settle_price"`
	Contracts        int64     `json:"contracts" csv:"contracts"`
	ValueLakhs       float64   `json:"value_lakhs" csv:"value_lakhs"`
	OIContracts      int64     `json:"oi_contracts" csv:"oi_contracts"`
	LotSizeShares    int64     `json:"lot_size_shares" csv:"lot_size_shares"`
	OIShares         int64     `json:"oi_shares" csv:"oi_shares"`
	MWPLShares       *int64    `json:"mwpl_shares,omitempty" csv:"mwpl_shares"`
	CombinedOIShares *int64    `json:"combined_oi_shares,omitempty" csv:"combined_oi_shares"`
}

// AnchorSource records how a window anchor was obtained.
type AnchorSource string

const (
	// AnchorChain means the anchor is an actual preceding expiry from the
	// derived chain.
	AnchorChain AnchorSource = "chain"
	// AnchorFallback means the chain was too short and the anchor was
	// synthesized by shifting the target expiry back by calendar months.
	AnchorFallback AnchorSource = "fallback"
)

// Anchor is one window anchor together with its provenance, so consumers can
// tell chain-derived boundaries from approximate fallback ones.
type Anchor struct {
	Date   time.Time    `json:"date"`
	Source AnchorSource `json:"source"`
}

// WindowBoundary describes the lookback ranges for one target expiry.
// PrimaryStart is the first trading day after the immediately-preceding
// expiry; OverlapStart the first trading day after the expiry three cycles
// back; End the target expiry itself. OverlapStart <= PrimaryStart <= End is
// expected but not enforced — violations are logged by the resolver.
type WindowBoundary struct {
	PrimaryStart  time.Time `json:"primary_start"`
	OverlapStart  time.Time `json:"overlap_start"`
	End           time.Time `json:"end"`
	PrimaryAnchor Anchor    `json:"primary_anchor"`
	OverlapAnchor Anchor    `json:"overlap_anchor"`
}

// Fallback reports whether either anchor was synthesized.
func (w WindowBoundary) Fallback() bool {
	return w.PrimaryAnchor.Source == AnchorFallback || w.OverlapAnchor.Source == AnchorFallback
}

// SummaryScope selects which window start bounds a summary.
type SummaryScope string

const (
	ScopePrimary SummaryScope = "primary"
	ScopeOverlap SummaryScope = "overlap"
)

// GoldSummaryRecord is the per-expiry summary keyed by (symbol, expiry_date).
// The threshold fields are all-or-nothing: when no in-window day carries both
// a position limit and a lot size, MaxPermittedContracts, Threshold90Pct,
// MWPLSharesUsed, LotSizeUsed and AsOfTradeDate are absent together.
type GoldSummaryRecord struct {
	Symbol                string       `json:"symbol" csv:"symbol"`
	ExpiryDate            time.Time    `json:"expiry_date" csv:"expiry_date"`
	PrimaryStart          time.Time    `json:"primary_start" csv:"primary_start"`
	OverlapStart          time.Time    `json:"overlap_start" csv:"overlap_start"`
	End                   time.Time    `json:"end" csv:"end"`
	SummaryScope          SummaryScope `json:"summary_scope" csv:"summary_scope"`
	FallbackWindow        bool         `json:"fallback_window" csv:"fallback_window"`
	MaxOIContracts        int64        `json:"max_oi_contracts" csv:"max_oi_contracts"`
	MaxPermittedContracts *int64       `json:"max_permitted_contracts,omitempty" csv:"max_permitted_contracts"`
	Threshold90Pct        *int64       `json:"threshold_90pct,omitempty" csv:"threshold_90pct"`
	MWPLSharesUsed        *int64       `json:"mwpl_shares_used,omitempty" csv:"mwpl_shares_used"`
	LotSizeUsed           *int64       `json:"lot_size_used,omitempty" csv:"lot_size_used"`
	AsOfTradeDate         *time.Time   `json:"as_of_trade_date,omitempty" csv:"as_of_trade_date"`
}

// Empty reports whether the summary was produced from a window with no gold
// day records at all.
func (s GoldSummaryRecord) Empty() bool {
	return s.Symbol == ""
}

// Date normalizes t to a date-only value at UTC midnight.
func Date(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses an ISO-8601 date-only string.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateOnly, s)
}
