package expiry

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fudata/internal/calendar"
	"fudata/internal/config"
	pipeerrors "fudata/internal/errors"
	"fudata/internal/silver"
	"fudata/internal/testutil"
	"fudata/pkg/contracts/domain"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func silverRecord(tradeDate, expiry time.Time, symbol string) domain.SilverDayRecord {
	return domain.SilverDayRecord{
		TradeDate:             tradeDate,
		Instrument:            domain.InstrumentFUTSTK,
		Symbol:                symbol,
		ExpiryDate:            expiry,
		Open:                  1, High: 2, Low: 0.5, Close: 1.5,
		SettlePrice:           1.4,
		Contracts:             10,
		ValueLakhs:            1,
		OpenInterestContracts: 100,
		LotSizeShares:         15,
	}
}

// fixture writes one silver partition per (tradeDate, expiry) pair and
// returns a resolver whose calendar index is rebuilt from the store.
type fixture struct {
	t       *testing.T
	store   *silver.Store
	paths   *config.Paths
	logger  *slog.Logger
	handler *testutil.BufferedSlogHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	paths, err := config.NewPaths(t.TempDir())
	require.NoError(t, err)
	logger, handler := testutil.NewTestLogger(t)
	return &fixture{
		t:       t,
		store:   silver.NewStore(paths, logger),
		paths:   paths,
		logger:  logger,
		handler: handler,
	}
}

func (f *fixture) addDay(tradeDate, expiry time.Time, symbol string) {
	f.t.Helper()
	require.NoError(f.t, f.store.WriteDayPartition(tradeDate, []domain.SilverDayRecord{
		silverRecord(tradeDate, expiry, symbol),
	}))
}

func (f *fixture) resolver() *Resolver {
	f.t.Helper()
	idx, err := calendar.BuildIndex(f.paths, f.logger)
	require.NoError(f.t, err)
	return NewResolver(f.store, idx, f.logger)
}

func TestDeriveExpiriesSortedAndDistinct(t *testing.T) {
	f := newFixture(t)
	// Two trading days carry the same March expiry; order of ingestion is
	// not chronological.
	f.addDay(date(2024, 3, 5), date(2024, 3, 28), "ABC")
	f.addDay(date(2024, 1, 26), date(2024, 1, 25), "ABC")
	f.addDay(date(2024, 3, 6), date(2024, 3, 28), "ABC")
	f.addDay(date(2024, 2, 23), date(2024, 2, 22), "ABC")

	chain, err := f.resolver().DeriveExpiries("ABC")
	require.NoError(t, err)
	assert.Equal(t, []time.Time{
		date(2024, 1, 25), date(2024, 2, 22), date(2024, 3, 28),
	}, chain)

	// Strictly ascending, duplicate-free.
	for i := 1; i < len(chain); i++ {
		assert.True(t, chain[i-1].Before(chain[i]))
	}
}

func TestDeriveExpiriesIgnoresOtherSymbols(t *testing.T) {
	f := newFixture(t)
	f.addDay(date(2024, 1, 26), date(2024, 1, 25), "ABC")
	f.addDay(date(2024, 2, 23), date(2024, 2, 22), "XYZ")

	chain, err := f.resolver().DeriveExpiries("ABC")
	require.NoError(t, err)
	assert.Equal(t, []time.Time{date(2024, 1, 25)}, chain)
}

func TestWindowsForFullChain(t *testing.T) {
	f := newFixture(t)
	// Chain: Jan 25, Feb 22, Mar 28, Apr 25 for ABC.
	f.addDay(date(2024, 1, 26), date(2024, 1, 25), "ABC")
	f.addDay(date(2024, 2, 23), date(2024, 2, 22), "ABC")
	f.addDay(date(2024, 3, 29), date(2024, 3, 28), "ABC")
	f.addDay(date(2024, 4, 5), date(2024, 4, 25), "ABC")

	w, err := f.resolver().WindowsFor("ABC", date(2024, 4, 25))
	require.NoError(t, err)

	assert.Equal(t, date(2024, 4, 25), w.End)
	// First trading day after Mar 28 is Mar 29; after Jan 25 is Jan 26.
	assert.Equal(t, date(2024, 3, 29), w.PrimaryStart)
	assert.Equal(t, date(2024, 1, 26), w.OverlapStart)
	assert.Equal(t, domain.AnchorChain, w.PrimaryAnchor.Source)
	assert.Equal(t, domain.AnchorChain, w.OverlapAnchor.Source)
	assert.False(t, w.Fallback())

	// No fallback warnings for a chain with all anchors present.
	assert.False(t, f.handler.HasMessage(slog.LevelWarn, "fallback anchor"))
}

func TestWindowsForExpiryNotObserved(t *testing.T) {
	f := newFixture(t)
	f.addDay(date(2024, 1, 26), date(2024, 1, 25), "ABC")

	_, err := f.resolver().WindowsFor("ABC", date(2024, 5, 30))
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeerrors.ErrExpiryNotObserved)
}

func TestWindowsForShortChainUsesFallbackAnchors(t *testing.T) {
	f := newFixture(t)
	// Single-expiry chain: both anchors must be synthesized.
	f.addDay(date(2024, 4, 1), date(2024, 4, 25), "ABC")
	f.addDay(date(2024, 2, 1), date(2024, 4, 25), "ABC")

	w, err := f.resolver().WindowsFor("ABC", date(2024, 4, 25))
	require.NoError(t, err)

	assert.Equal(t, domain.AnchorFallback, w.PrimaryAnchor.Source)
	assert.Equal(t, domain.AnchorFallback, w.OverlapAnchor.Source)
	assert.True(t, w.Fallback())
	// Anchors shifted back one and three calendar months.
	assert.Equal(t, date(2024, 3, 25), w.PrimaryAnchor.Date)
	assert.Equal(t, date(2024, 1, 25), w.OverlapAnchor.Date)
	// Starts are the first ingested day after each synthetic anchor.
	assert.Equal(t, date(2024, 4, 1), w.PrimaryStart)
	assert.Equal(t, date(2024, 2, 1), w.OverlapStart)

	assert.True(t, f.handler.HasMessage(slog.LevelWarn, "fallback anchor"))
}

func TestWindowsForPartialChainMixesSources(t *testing.T) {
	f := newFixture(t)
	// Two expiries: primary anchor real, overlap anchor synthesized.
	f.addDay(date(2024, 3, 29), date(2024, 3, 28), "ABC")
	f.addDay(date(2024, 4, 5), date(2024, 4, 25), "ABC")
	f.addDay(date(2024, 2, 1), date(2024, 3, 28), "ABC")

	w, err := f.resolver().WindowsFor("ABC", date(2024, 4, 25))
	require.NoError(t, err)

	assert.Equal(t, domain.AnchorChain, w.PrimaryAnchor.Source)
	assert.Equal(t, date(2024, 3, 28), w.PrimaryAnchor.Date)
	assert.Equal(t, domain.AnchorFallback, w.OverlapAnchor.Source)
	assert.Equal(t, date(2024, 1, 25), w.OverlapAnchor.Date)
}

func TestWindowsForChainOfFourNeverFallsBack(t *testing.T) {
	f := newFixture(t)
	f.addDay(date(2024, 1, 26), date(2024, 1, 25), "ABC")
	f.addDay(date(2024, 2, 23), date(2024, 2, 22), "ABC")
	f.addDay(date(2024, 3, 29), date(2024, 3, 28), "ABC")
	f.addDay(date(2024, 4, 26), date(2024, 4, 25), "ABC")

	w, err := f.resolver().WindowsFor("ABC", date(2024, 4, 25))
	require.NoError(t, err)
	assert.False(t, w.Fallback())
}

func TestWindowsForWarnsOnInvertedWindowOrder(t *testing.T) {
	f := newFixture(t)
	// Both anchors synthetic and the only ingested data sits after both, so
	// both starts collapse onto the same day.
	f.addDay(date(2024, 4, 1), date(2024, 4, 25), "ABC")

	w, err := f.resolver().WindowsFor("ABC", date(2024, 4, 25))
	require.NoError(t, err)
	assert.Equal(t, w.PrimaryStart, w.OverlapStart)
	assert.True(t, f.handler.HasMessage(slog.LevelWarn, "overlap window does not precede"))
}

func TestWindowsForCalendarExhausted(t *testing.T) {
	f := newFixture(t)
	// The only ingested day is the expiry's own observation far in the
	// future relative to the synthetic overlap anchor... here instead we
	// make the anchor scan fail by having no data after the anchor at all:
	// the target expiry is observed on a day more than the scan bound after
	// the synthetic anchor.
	f.addDay(date(2025, 6, 2), date(2024, 4, 25), "ABC")

	_, err := f.resolver().WindowsFor("ABC", date(2024, 4, 25))
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeerrors.ErrCalendarExhausted)
}

func TestImpactedExpiries(t *testing.T) {
	f := newFixture(t)
	f.addDay(date(2024, 1, 26), date(2024, 1, 25), "ABC")
	f.addDay(date(2024, 2, 23), date(2024, 2, 22), "ABC")
	f.addDay(date(2024, 3, 29), date(2024, 3, 28), "ABC")
	f.addDay(date(2024, 4, 5), date(2024, 4, 25), "ABC")

	impacted, err := f.resolver().ImpactedExpiries("ABC", date(2024, 4, 5))
	require.NoError(t, err)
	assert.Equal(t, []time.Time{date(2024, 4, 25)}, impacted)
}

func TestImpactedExpiriesMultipleWindows(t *testing.T) {
	f := newFixture(t)
	f.addDay(date(2024, 1, 26), date(2024, 1, 25), "ABC")
	f.addDay(date(2024, 2, 23), date(2024, 2, 22), "ABC")
	f.addDay(date(2024, 3, 5), date(2024, 3, 28), "ABC")
	f.addDay(date(2024, 3, 29), date(2024, 3, 28), "ABC")
	f.addDay(date(2024, 4, 5), date(2024, 4, 25), "ABC")

	// Mar 5 sits inside the overlap windows of both the March and April
	// expiries (and later ones' primaries do not reach back that far).
	impacted, err := f.resolver().ImpactedExpiries("ABC", date(2024, 3, 5))
	require.NoError(t, err)
	assert.Contains(t, impacted, date(2024, 3, 28))
	assert.Contains(t, impacted, date(2024, 4, 25))
	assert.NotContains(t, impacted, date(2024, 1, 25))
}

func TestImpactedExpiriesOutsideAllWindows(t *testing.T) {
	f := newFixture(t)
	f.addDay(date(2024, 4, 5), date(2024, 4, 25), "ABC")

	impacted, err := f.resolver().ImpactedExpiries("ABC", date(2024, 6, 3))
	require.NoError(t, err)
	assert.Empty(t, impacted)
}
