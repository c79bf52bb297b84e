package gold

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fudata/internal/config"
	pipeerrors "fudata/internal/errors"
	"fudata/internal/silver"
	"fudata/internal/testutil"
	"fudata/pkg/contracts/domain"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func silverRecord(tradeDate, expiry time.Time, symbol string, oiContracts, lotSize int64) domain.SilverDayRecord {
	change := int64(2)
	return domain.SilverDayRecord{
		TradeDate:             tradeDate,
		Instrument:            domain.InstrumentFUTSTK,
		Symbol:                symbol,
		ExpiryDate:            expiry,
		Open:                  10, High: 11, Low: 9.5, Close: 10.5,
		SettlePrice:           10.25,
		Contracts:             5,
		ValueLakhs:            1.23,
		OpenInterestContracts: oiContracts,
		LotSizeShares:         lotSize,
		ChangeInOIContracts:   &change,
	}
}

func newDayFixture(t *testing.T) (*DayBuilder, *silver.Store, *config.Paths) {
	t.Helper()
	paths, err := config.NewPaths(t.TempDir())
	require.NoError(t, err)
	logger, _ := testutil.NewTestLogger(t)
	store := silver.NewStore(paths, logger)
	return NewDayBuilder(store, paths, logger), store, paths
}

func TestBuildDayJoinsPositionLimit(t *testing.T) {
	builder, store, paths := newDayFixture(t)
	d := date(2024, 1, 2)

	require.NoError(t, store.WriteDayPartition(d, []domain.SilverDayRecord{
		silverRecord(d, date(2024, 1, 25), "ABC", 100, 15),
	}))
	require.NoError(t, store.WriteMWPLPartition(d, []domain.PositionLimitRecord{
		{TradeDate: d, Symbol: "ABC", MWPLShares: 1000, CombinedOIShares: 500},
	}))

	records, err := builder.Build(context.Background(), "ABC", d)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, int64(100), rec.OIContracts)
	assert.Equal(t, int64(1500), rec.OIShares)
	require.NotNil(t, rec.MWPLShares)
	assert.Equal(t, int64(1000), *rec.MWPLShares)
	require.NotNil(t, rec.CombinedOIShares)
	assert.Equal(t, int64(500), *rec.CombinedOIShares)

	assert.FileExists(t, paths.GoldDayFile("ABC", d))
}

func TestBuildDayWithoutPositionLimitLeavesFieldsNil(t *testing.T) {
	builder, store, _ := newDayFixture(t)
	d := date(2024, 1, 2)

	require.NoError(t, store.WriteDayPartition(d, []domain.SilverDayRecord{
		silverRecord(d, date(2024, 1, 25), "ABC", 100, 15),
	}))

	records, err := builder.Build(context.Background(), "ABC", d)
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Nil(t, records[0].MWPLShares)
	assert.Nil(t, records[0].CombinedOIShares)
}

func TestBuildDayMissingBasePartitionIsFatal(t *testing.T) {
	builder, _, _ := newDayFixture(t)

	_, err := builder.Build(context.Background(), "ABC", date(2024, 1, 2))
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeerrors.ErrMissingSilverPartition)
}

func TestBuildDaySymbolAbsentIsEmptySuccess(t *testing.T) {
	builder, store, paths := newDayFixture(t)
	d := date(2024, 1, 2)

	require.NoError(t, store.WriteDayPartition(d, []domain.SilverDayRecord{
		silverRecord(d, date(2024, 1, 25), "XYZ", 100, 15),
	}))

	records, err := builder.Build(context.Background(), "ABC", d)
	require.NoError(t, err)
	assert.Empty(t, records)
	// Empty result persists nothing.
	assert.NoFileExists(t, paths.GoldDayFile("ABC", d))
}

func TestBuildDayOISharesInvariant(t *testing.T) {
	builder, store, _ := newDayFixture(t)
	d := date(2024, 1, 2)

	require.NoError(t, store.WriteDayPartition(d, []domain.SilverDayRecord{
		silverRecord(d, date(2024, 1, 25), "ABC", 180, 40),
		silverRecord(d, date(2024, 2, 22), "ABC", 220, 40),
	}))

	records, err := builder.Build(context.Background(), "ABC", d)
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, rec := range records {
		assert.Equal(t, rec.OIContracts*rec.LotSizeShares, rec.OIShares)
	}
}

func TestBuildDayRebuildIsIdempotent(t *testing.T) {
	builder, store, paths := newDayFixture(t)
	d := date(2024, 1, 2)

	require.NoError(t, store.WriteDayPartition(d, []domain.SilverDayRecord{
		silverRecord(d, date(2024, 1, 25), "ABC", 100, 15),
	}))

	_, err := builder.Build(context.Background(), "ABC", d)
	require.NoError(t, err)
	first, err := os.ReadFile(paths.GoldDayFile("ABC", d))
	require.NoError(t, err)

	_, err = builder.Build(context.Background(), "ABC", d)
	require.NoError(t, err)
	second, err := os.ReadFile(paths.GoldDayFile("ABC", d))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestBuildDayDoesNotTouchOtherKeys(t *testing.T) {
	builder, store, paths := newDayFixture(t)
	d1 := date(2024, 1, 2)
	d2 := date(2024, 1, 3)

	require.NoError(t, store.WriteDayPartition(d1, []domain.SilverDayRecord{
		silverRecord(d1, date(2024, 1, 25), "ABC", 100, 15),
	}))
	_, err := builder.Build(context.Background(), "ABC", d1)
	require.NoError(t, err)
	before, err := os.ReadFile(paths.GoldDayFile("ABC", d1))
	require.NoError(t, err)

	// A failed build for another date must not disturb the existing key.
	_, err = builder.Build(context.Background(), "ABC", d2)
	require.Error(t, err)

	after, err := os.ReadFile(paths.GoldDayFile("ABC", d1))
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestLoadDaysRangeInclusive(t *testing.T) {
	builder, store, paths := newDayFixture(t)

	for _, d := range []time.Time{date(2024, 4, 1), date(2024, 4, 3), date(2024, 4, 5), date(2024, 4, 8)} {
		require.NoError(t, store.WriteDayPartition(d, []domain.SilverDayRecord{
			silverRecord(d, date(2024, 4, 25), "ABC", 100, 15),
		}))
		_, err := builder.Build(context.Background(), "ABC", d)
		require.NoError(t, err)
	}

	days, err := LoadDays(paths, "ABC", date(2024, 4, 1), date(2024, 4, 5))
	require.NoError(t, err)
	require.Len(t, days, 3)
	assert.Equal(t, date(2024, 4, 1), days[0].TradeDate)
	assert.Equal(t, date(2024, 4, 5), days[2].TradeDate)
}

func TestLoadDaysNoGoldYet(t *testing.T) {
	paths, err := config.NewPaths(t.TempDir())
	require.NoError(t, err)

	days, err := LoadDays(paths, "ABC", date(2024, 1, 1), date(2024, 12, 31))
	require.NoError(t, err)
	assert.Empty(t, days)
}
