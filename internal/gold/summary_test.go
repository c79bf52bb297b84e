package gold

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fudata/internal/calendar"
	"fudata/internal/config"
	"fudata/internal/expiry"
	"fudata/internal/silver"
	"fudata/internal/testutil"
	"fudata/pkg/contracts/domain"
)

// summaryFixture assembles a full derivation stack over a temp store: the
// chain Jan 25 / Feb 22 / Mar 28 / Apr 25 with April trading days carrying
// varying open interest and position limits.
type summaryFixture struct {
	t       *testing.T
	paths   *config.Paths
	store   *silver.Store
	builder *DayBuilder
}

func newSummaryFixture(t *testing.T) *summaryFixture {
	t.Helper()
	paths, err := config.NewPaths(t.TempDir())
	require.NoError(t, err)
	logger, _ := testutil.NewTestLogger(t)
	store := silver.NewStore(paths, logger)
	return &summaryFixture{
		t:       t,
		paths:   paths,
		store:   store,
		builder: NewDayBuilder(store, paths, logger),
	}
}

func (f *summaryFixture) addDay(tradeDate, expiryDate time.Time, oiContracts, lotSize int64, mwpl *int64) {
	f.t.Helper()
	require.NoError(f.t, f.store.WriteDayPartition(tradeDate, []domain.SilverDayRecord{
		silverRecord(tradeDate, expiryDate, "ABC", oiContracts, lotSize),
	}))
	if mwpl != nil {
		require.NoError(f.t, f.store.WriteMWPLPartition(tradeDate, []domain.PositionLimitRecord{
			{TradeDate: tradeDate, Symbol: "ABC", MWPLShares: *mwpl, CombinedOIShares: *mwpl / 2},
		}))
	}
	_, err := f.builder.Build(context.Background(), "ABC", tradeDate)
	require.NoError(f.t, err)
}

func (f *summaryFixture) summaryBuilder(scope domain.SummaryScope) *SummaryBuilder {
	f.t.Helper()
	logger, _ := testutil.NewTestLogger(f.t)
	idx, err := calendar.BuildIndex(f.paths, logger)
	require.NoError(f.t, err)
	resolver := expiry.NewResolver(f.store, idx, logger)
	return NewSummaryBuilder(resolver, f.paths, scope, logger)
}

func i64(v int64) *int64 { return &v }

// seedChain ingests the standard four-expiry chain with the April window
// scenario from hand-computed fixtures: OI 180/220/210, MWPL at Apr 2
// (1000 shares, lot 10) and Apr 4 (1200 shares, lot 10).
func (f *summaryFixture) seedChain() {
	f.addDay(date(2024, 1, 26), date(2024, 1, 25), 80, 10, nil)
	f.addDay(date(2024, 2, 23), date(2024, 2, 22), 90, 10, nil)
	f.addDay(date(2024, 3, 29), date(2024, 3, 28), 95, 10, nil)

	f.addDay(date(2024, 4, 1), date(2024, 4, 25), 180, 10, nil)
	f.addDay(date(2024, 4, 2), date(2024, 4, 25), 190, 10, i64(1000))
	f.addDay(date(2024, 4, 3), date(2024, 4, 25), 220, 10, nil)
	f.addDay(date(2024, 4, 4), date(2024, 4, 25), 200, 10, i64(1200))
	f.addDay(date(2024, 4, 5), date(2024, 4, 25), 210, 10, nil)
}

func TestBuildSummaryThresholdMath(t *testing.T) {
	f := newSummaryFixture(t)
	f.seedChain()

	summary, err := f.summaryBuilder(domain.ScopePrimary).Build(context.Background(), "ABC", date(2024, 4, 25))
	require.NoError(t, err)
	require.False(t, summary.Empty())

	assert.Equal(t, date(2024, 3, 29), summary.PrimaryStart)
	assert.Equal(t, date(2024, 1, 26), summary.OverlapStart)
	assert.Equal(t, date(2024, 4, 25), summary.End)
	assert.Equal(t, domain.ScopePrimary, summary.SummaryScope)
	assert.False(t, summary.FallbackWindow)

	assert.Equal(t, int64(220), summary.MaxOIContracts)

	// Latest day carrying both MWPL and lot size is Apr 4.
	require.NotNil(t, summary.AsOfTradeDate)
	assert.Equal(t, date(2024, 4, 4), *summary.AsOfTradeDate)
	require.NotNil(t, summary.MWPLSharesUsed)
	assert.Equal(t, int64(1200), *summary.MWPLSharesUsed)
	require.NotNil(t, summary.LotSizeUsed)
	assert.Equal(t, int64(10), *summary.LotSizeUsed)
	require.NotNil(t, summary.MaxPermittedContracts)
	assert.Equal(t, int64(120), *summary.MaxPermittedContracts)
	require.NotNil(t, summary.Threshold90Pct)
	assert.Equal(t, int64(108), *summary.Threshold90Pct)
}

func TestBuildSummaryFloorMath(t *testing.T) {
	f := newSummaryFixture(t)
	f.addDay(date(2024, 3, 29), date(2024, 3, 28), 95, 10, nil)
	// 1234/7 = 176.28… → 176; 0.9*176 = 158.4 → 158.
	f.addDay(date(2024, 4, 1), date(2024, 4, 25), 100, 7, i64(1234))

	summary, err := f.summaryBuilder(domain.ScopePrimary).Build(context.Background(), "ABC", date(2024, 4, 25))
	require.NoError(t, err)

	require.NotNil(t, summary.MaxPermittedContracts)
	assert.Equal(t, int64(176), *summary.MaxPermittedContracts)
	require.NotNil(t, summary.Threshold90Pct)
	assert.Equal(t, int64(158), *summary.Threshold90Pct)
}

func TestBuildSummaryNoUsableReferenceLeavesThresholdsAbsent(t *testing.T) {
	f := newSummaryFixture(t)
	f.addDay(date(2024, 3, 29), date(2024, 3, 28), 95, 10, nil)
	f.addDay(date(2024, 4, 1), date(2024, 4, 25), 180, 10, nil)
	f.addDay(date(2024, 4, 3), date(2024, 4, 25), 220, 10, nil)

	summary, err := f.summaryBuilder(domain.ScopePrimary).Build(context.Background(), "ABC", date(2024, 4, 25))
	require.NoError(t, err)
	require.False(t, summary.Empty())

	assert.Equal(t, int64(220), summary.MaxOIContracts)
	assert.Nil(t, summary.MaxPermittedContracts)
	assert.Nil(t, summary.Threshold90Pct)
	assert.Nil(t, summary.MWPLSharesUsed)
	assert.Nil(t, summary.LotSizeUsed)
	assert.Nil(t, summary.AsOfTradeDate)
}

func TestBuildSummaryEmptyWindow(t *testing.T) {
	f := newSummaryFixture(t)
	// Silver history exists so the chain resolves, but no gold day records
	// were ever built.
	f.addSilverOnly(date(2024, 3, 29), date(2024, 3, 28))
	f.addSilverOnly(date(2024, 4, 5), date(2024, 4, 25))

	summary, err := f.summaryBuilder(domain.ScopePrimary).Build(context.Background(), "ABC", date(2024, 4, 25))
	require.NoError(t, err)
	assert.True(t, summary.Empty())

	// Nothing persisted for an empty summary.
	assert.NoFileExists(t, f.paths.GoldSummaryFile("ABC", date(2024, 4, 25)))
}

func (f *summaryFixture) addSilverOnly(tradeDate, expiryDate time.Time) {
	f.t.Helper()
	require.NoError(f.t, f.store.WriteDayPartition(tradeDate, []domain.SilverDayRecord{
		silverRecord(tradeDate, expiryDate, "ABC", 100, 10),
	}))
}

func TestBuildSummaryUnknownExpiry(t *testing.T) {
	f := newSummaryFixture(t)
	f.addDay(date(2024, 4, 1), date(2024, 4, 25), 100, 10, nil)

	_, err := f.summaryBuilder(domain.ScopePrimary).Build(context.Background(), "ABC", date(2024, 7, 25))
	require.Error(t, err)
}

func TestBuildSummaryOverlapScopeWidensWindow(t *testing.T) {
	f := newSummaryFixture(t)
	f.seedChain()

	primary, err := f.summaryBuilder(domain.ScopePrimary).Build(context.Background(), "ABC", date(2024, 4, 25))
	require.NoError(t, err)
	overlap, err := f.summaryBuilder(domain.ScopeOverlap).Build(context.Background(), "ABC", date(2024, 4, 25))
	require.NoError(t, err)

	assert.Equal(t, domain.ScopeOverlap, overlap.SummaryScope)
	// The overlap scope reaches back to Jan 26 and sees the same April max
	// plus the earlier, smaller OI days.
	assert.Equal(t, primary.MaxOIContracts, overlap.MaxOIContracts)
	assert.Equal(t, *primary.Threshold90Pct, *overlap.Threshold90Pct)
}

func TestBuildSummaryIdempotent(t *testing.T) {
	f := newSummaryFixture(t)
	f.seedChain()
	builder := f.summaryBuilder(domain.ScopePrimary)

	_, err := builder.Build(context.Background(), "ABC", date(2024, 4, 25))
	require.NoError(t, err)
	first, err := os.ReadFile(f.paths.GoldSummaryFile("ABC", date(2024, 4, 25)))
	require.NoError(t, err)

	_, err = builder.Build(context.Background(), "ABC", date(2024, 4, 25))
	require.NoError(t, err)
	second, err := os.ReadFile(f.paths.GoldSummaryFile("ABC", date(2024, 4, 25)))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestSummaryRoundTripThroughStorage(t *testing.T) {
	f := newSummaryFixture(t)
	f.seedChain()

	built, err := f.summaryBuilder(domain.ScopePrimary).Build(context.Background(), "ABC", date(2024, 4, 25))
	require.NoError(t, err)

	loaded, found, err := LoadSummary(f.paths, "ABC", date(2024, 4, 25))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, built, loaded)
}

func TestLoadSummaryMissing(t *testing.T) {
	paths, err := config.NewPaths(t.TempDir())
	require.NoError(t, err)

	_, found, err := LoadSummary(paths, "ABC", date(2024, 4, 25))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestListSummaries(t *testing.T) {
	f := newSummaryFixture(t)
	f.seedChain()
	builder := f.summaryBuilder(domain.ScopePrimary)

	for _, exp := range []time.Time{date(2024, 2, 22), date(2024, 3, 28), date(2024, 4, 25)} {
		_, err := builder.Build(context.Background(), "ABC", exp)
		require.NoError(t, err)
	}

	summaries, err := ListSummaries(f.paths, "ABC")
	require.NoError(t, err)
	require.Len(t, summaries, 3)
	assert.Equal(t, date(2024, 2, 22), summaries[0].ExpiryDate)
	assert.Equal(t, date(2024, 4, 25), summaries[2].ExpiryDate)
}
