package gold

import (
	"context"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"fudata/internal/config"
	pipeerrors "fudata/internal/errors"
	"fudata/internal/expiry"
	"fudata/pkg/contracts/domain"
)

// SummaryBuilder aggregates a window of gold day records for one
// symbol+expiry into the monthly summary with position-limit threshold math.
type SummaryBuilder struct {
	resolver *expiry.Resolver
	paths    *config.Paths
	scope    domain.SummaryScope
	logger   *slog.Logger
}

// NewSummaryBuilder creates a summary builder with the configured
// summary-scope policy.
func NewSummaryBuilder(resolver *expiry.Resolver, paths *config.Paths, scope domain.SummaryScope, logger *slog.Logger) *SummaryBuilder {
	if logger == nil {
		logger = slog.Default()
	}
	if scope == "" {
		scope = domain.ScopePrimary
	}
	return &SummaryBuilder{resolver: resolver, paths: paths, scope: scope, logger: logger}
}

// Build computes and persists the summary for symbol+expiry. A window with
// no gold day records yields an explicitly-empty summary and persists
// nothing. Rebuilding from unchanged inputs writes byte-identical output.
func (b *SummaryBuilder) Build(ctx context.Context, symbol string, expiryDate time.Time) (domain.GoldSummaryRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.GoldSummaryRecord{}, err
	}
	expiryDate = domain.Date(expiryDate)

	window, err := b.resolver.WindowsFor(symbol, expiryDate)
	if err != nil {
		return domain.GoldSummaryRecord{}, err
	}

	scopeStart := window.PrimaryStart
	if b.scope == domain.ScopeOverlap {
		scopeStart = window.OverlapStart
	}

	days, err := LoadDays(b.paths, symbol, scopeStart, window.End)
	if err != nil {
		return domain.GoldSummaryRecord{}, err
	}
	if len(days) == 0 {
		b.logger.Info("no gold day records in window, empty summary",
			slog.String("symbol", symbol),
			slog.String("expiry", expiryDate.Format(domain.DateOnly)),
			slog.String("scope_start", scopeStart.Format(domain.DateOnly)))
		return domain.GoldSummaryRecord{}, nil
	}

	summary := domain.GoldSummaryRecord{
		Symbol:         symbol,
		ExpiryDate:     expiryDate,
		PrimaryStart:   window.PrimaryStart,
		OverlapStart:   window.OverlapStart,
		End:            window.End,
		SummaryScope:   b.scope,
		FallbackWindow: window.Fallback(),
	}

	for _, d := range days {
		if d.OIContracts > summary.MaxOIContracts {
			summary.MaxOIContracts = d.OIContracts
		}
	}

	// Freshest usable reference: the latest day carrying both a position
	// limit and a lot size. Without one, every threshold field stays
	// absent; zero is never inferred.
	var reference *domain.GoldDayRecord
	for i := range days {
		d := &days[i]
		if d.MWPLShares == nil || d.LotSizeShares <= 0 {
			continue
		}
		if reference == nil || d.TradeDate.After(reference.TradeDate) {
			reference = d
		}
	}
	if reference != nil {
		mwplUsed := *reference.MWPLShares
		lotUsed := reference.LotSizeShares
		asOf := reference.TradeDate
		summary.MWPLSharesUsed = &mwplUsed
		summary.LotSizeUsed = &lotUsed
		summary.AsOfTradeDate = &asOf

		maxPermitted := mwplUsed / lotUsed
		threshold := int64(math.Floor(0.9 * float64(maxPermitted)))
		summary.MaxPermittedContracts = &maxPermitted
		summary.Threshold90Pct = &threshold
	}

	if err := writeSummaryFile(b.paths.GoldSummaryFile(symbol, expiryDate), summary); err != nil {
		return domain.GoldSummaryRecord{}, err
	}
	b.logger.Info("built gold futures_month_summary",
		slog.String("symbol", symbol),
		slog.String("expiry", expiryDate.Format(domain.DateOnly)),
		slog.String("scope", string(b.scope)),
		slog.Int64("max_oi_contracts", summary.MaxOIContracts),
		slog.Bool("threshold_available", reference != nil))
	return summary, nil
}

// LoadSummary reads a persisted summary. os.ErrNotExist surfaces as an
// empty record with found=false.
func LoadSummary(paths *config.Paths, symbol string, expiryDate time.Time) (domain.GoldSummaryRecord, bool, error) {
	rows, err := readCSVRows(paths.GoldSummaryFile(symbol, domain.Date(expiryDate)))
	if err != nil {
		if os.IsNotExist(err) {
			return domain.GoldSummaryRecord{}, false, nil
		}
		return domain.GoldSummaryRecord{}, false, pipeerrors.Storage("read gold futures_month_summary", err)
	}
	if len(rows) == 0 {
		return domain.GoldSummaryRecord{}, false, nil
	}
	rec, err := summaryFromRow(rows[0])
	if err != nil {
		return domain.GoldSummaryRecord{}, false, pipeerrors.Storage("decode gold futures_month_summary", err)
	}
	return rec, true, nil
}

// ListSummaries enumerates the persisted summaries for symbol, ascending by
// expiry.
func ListSummaries(paths *config.Paths, symbol string) ([]domain.GoldSummaryRecord, error) {
	entries, err := os.ReadDir(paths.GoldSummaryDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, pipeerrors.Storage("list gold futures_month_summary", err)
	}

	prefix := symbol + "_"
	var out []domain.GoldSummaryRecord
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || len(name) <= len(prefix)+len(".csv") || name[:len(prefix)] != prefix {
			continue
		}
		expiryStr := name[len(prefix) : len(name)-len(".csv")]
		expiryDate, perr := domain.ParseDate(expiryStr)
		if perr != nil {
			continue
		}
		rec, found, err := LoadSummary(paths, symbol, expiryDate)
		if err != nil {
			return nil, err
		}
		if found {
			out = append(out, rec)
		}
	}
	return out, nil
}

// ListSymbols enumerates the distinct symbols with at least one persisted
// summary, sorted ascending. The expiry suffix has a fixed shape, so symbols
// containing underscores survive the split.
func ListSymbols(paths *config.Paths) ([]string, error) {
	entries, err := os.ReadDir(paths.GoldSummaryDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, pipeerrors.Storage("list gold futures_month_summary", err)
	}

	const suffixLen = len("_2006-01-02.csv")
	seen := make(map[string]struct{})
	var symbols []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || len(name) <= suffixLen || filepath.Ext(name) != ".csv" {
			continue
		}
		symbol := name[:len(name)-suffixLen]
		if _, perr := domain.ParseDate(name[len(symbol)+1 : len(name)-len(".csv")]); perr != nil {
			continue
		}
		if _, ok := seen[symbol]; !ok {
			seen[symbol] = struct{}{}
			symbols = append(symbols, symbol)
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}

func writeSummaryFile(path string, summary domain.GoldSummaryRecord) error {
	if err := writeCSVAtomic(path, summaryHeaders, [][]string{summaryToRow(summary)}); err != nil {
		return pipeerrors.Storage("write gold futures_month_summary", err)
	}
	return nil
}
