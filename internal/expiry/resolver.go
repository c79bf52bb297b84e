// Package expiry reconstructs per-symbol contract-expiry chains from
// observed silver data and derives the lookback windows anchored to them.
package expiry

import (
	"log/slog"
	"sort"
	"time"

	"fudata/internal/calendar"
	pipeerrors "fudata/internal/errors"
	"fudata/internal/silver"
	"fudata/pkg/contracts/domain"
)

// Positions of the window anchors relative to the target expiry in the
// sorted chain, and the calendar-month shifts used when the chain is too
// short to supply them.
const (
	primaryAnchorOffset = 1
	overlapAnchorOffset = 3
)

// Resolver derives expiry chains and window boundaries. The chain reflects
// only expiries with at least one observed trading day in ingested history;
// an expiry with zero ingested days is invisible here.
type Resolver struct {
	store  *silver.Store
	cal    *calendar.Index
	logger *slog.Logger
}

// NewResolver creates a resolver over the silver store and calendar index.
func NewResolver(store *silver.Store, cal *calendar.Index, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: store, cal: cal, logger: logger}
}

// DeriveExpiries returns the distinct expiry dates observed for symbol,
// ascending and duplicate-free.
func (r *Resolver) DeriveExpiries(symbol string) ([]time.Time, error) {
	records, err := r.store.ScanDayRecords(symbol)
	if err != nil {
		return nil, err
	}

	seen := make(map[time.Time]struct{})
	var expiries []time.Time
	for _, rec := range records {
		d := domain.Date(rec.ExpiryDate)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		expiries = append(expiries, d)
	}
	sort.Slice(expiries, func(i, j int) bool { return expiries[i].Before(expiries[j]) })
	return expiries, nil
}

// WindowsFor computes the window boundaries for symbol's target expiry.
// ErrExpiryNotObserved when the expiry is not in the derived chain. When the
// chain is shorter than an anchor offset, a fallback anchor is synthesized
// by shifting the target expiry back the same number of calendar months;
// the result carries the anchor provenance and the event is logged at warn.
func (r *Resolver) WindowsFor(symbol string, expiry time.Time) (domain.WindowBoundary, error) {
	chain, err := r.DeriveExpiries(symbol)
	if err != nil {
		return domain.WindowBoundary{}, err
	}
	return r.windowsInChain(symbol, domain.Date(expiry), chain)
}

// windowsInChain is WindowsFor against an already-derived chain, so that
// ImpactedExpiries scans the store once.
func (r *Resolver) windowsInChain(symbol string, expiry time.Time, chain []time.Time) (domain.WindowBoundary, error) {
	idx := -1
	for i, e := range chain {
		if e.Equal(expiry) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.WindowBoundary{}, pipeerrors.ExpiryNotObserved(symbol, expiry)
	}

	primary := r.anchorAt(symbol, expiry, chain, idx, primaryAnchorOffset)
	overlap := r.anchorAt(symbol, expiry, chain, idx, overlapAnchorOffset)

	primaryStart, err := r.cal.NextTradingDayAfter(primary.Date)
	if err != nil {
		return domain.WindowBoundary{}, err
	}
	overlapStart, err := r.cal.NextTradingDayAfter(overlap.Date)
	if err != nil {
		return domain.WindowBoundary{}, err
	}

	if !overlapStart.Before(primaryStart) {
		// Inconsistent or sparse chain; non-fatal by design.
		r.logger.Warn("overlap window does not precede primary window",
			slog.String("symbol", symbol),
			slog.String("expiry", expiry.Format(domain.DateOnly)),
			slog.String("overlap_start", overlapStart.Format(domain.DateOnly)),
			slog.String("primary_start", primaryStart.Format(domain.DateOnly)))
	}

	return domain.WindowBoundary{
		PrimaryStart:  primaryStart,
		OverlapStart:  overlapStart,
		End:           expiry,
		PrimaryAnchor: primary,
		OverlapAnchor: overlap,
	}, nil
}

// anchorAt returns the chain expiry `offset` places before idx, or a
// synthetic anchor `offset` calendar months before the target expiry when
// the chain does not reach that far.
func (r *Resolver) anchorAt(symbol string, expiry time.Time, chain []time.Time, idx, offset int) domain.Anchor {
	if idx-offset >= 0 {
		return domain.Anchor{Date: chain[idx-offset], Source: domain.AnchorChain}
	}

	synthetic := expiry.AddDate(0, -offset, 0)
	r.logger.Warn("expiry chain too short, using fallback anchor",
		slog.String("symbol", symbol),
		slog.String("expiry", expiry.Format(domain.DateOnly)),
		slog.Int("offset_months", offset),
		slog.Int("chain_length", len(chain)),
		slog.String("synthetic_anchor", synthetic.Format(domain.DateOnly)))
	return domain.Anchor{Date: synthetic, Source: domain.AnchorFallback}
}

// ImpactedExpiries returns every expiry in symbol's chain whose
// [overlap_start, end] window contains d. This is the invalidation signal:
// after a new day is ingested, only these summaries need recomputation.
func (r *Resolver) ImpactedExpiries(symbol string, d time.Time) ([]time.Time, error) {
	chain, err := r.DeriveExpiries(symbol)
	if err != nil {
		return nil, err
	}
	day := domain.Date(d)

	var impacted []time.Time
	for _, expiry := range chain {
		w, err := r.windowsInChain(symbol, expiry, chain)
		if err != nil {
			return nil, err
		}
		if !day.Before(w.OverlapStart) && !day.After(w.End) {
			impacted = append(impacted, expiry)
		}
	}
	return impacted, nil
}
