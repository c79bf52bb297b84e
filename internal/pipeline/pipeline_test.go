package pipeline

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fudata/internal/config"
	"fudata/internal/gold"
	"fudata/internal/testutil"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testPipeline(t *testing.T) (*Pipeline, *config.Paths) {
	t.Helper()
	paths, err := config.NewPaths(t.TempDir())
	require.NoError(t, err)
	logger, _ := testutil.NewTestLogger(t)

	cfg := &config.Config{}
	cfg.Sources.UDiFF.ColumnAliases = config.DefaultUDiFFAliases()
	cfg.Sources.MWPL.ColumnAliases = config.DefaultMWPLAliases()
	cfg.Windows.SummaryScope = "primary"
	return New(cfg, paths, logger), paths
}

func writeBhavcopyZip(t *testing.T, rows string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bhavcopy.zip")
	file, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(file)
	entry, err := zw.Create("BhavCopy_NSE_FO.csv")
	require.NoError(t, err)
	header := "TradDt,FinInstrmTp,TckrSymb,FininstrmActlXpryDt,OpnPric,HghPric,LwPric,ClsPric,SttlmPric,TtlTradgVol,TtlTrfVal,OpnIntrst,ChngInOpnIntrst,NewBrdLotQty\n"
	_, err = entry.Write([]byte(header + rows))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, file.Close())
	return path
}

func bhavRow(tradeDate, expiry, symbol string, oi, lot int64) string {
	return tradeDate + ",STF," + symbol + "," + expiry + ",10,11,9,10.5,10.25,5,1.2," +
		strconv.FormatInt(oi, 10) + ",2," + strconv.FormatInt(lot, 10) + "\n"
}

func TestIngestUDiFFFileWritesPartitions(t *testing.T) {
	p, _ := testPipeline(t)

	path := writeBhavcopyZip(t,
		bhavRow("2024-04-02", "2024-04-25", "ABC", 190, 10)+
			bhavRow("2024-04-02", "2024-04-25", "XYZ", 300, 50))
	require.NoError(t, p.IngestUDiFFFile(context.Background(), path))

	records, err := p.Store().ReadDayPartition(date(2024, 4, 2))
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestIngestMWPLFileWritesPartition(t *testing.T) {
	p, _ := testPipeline(t)

	path := filepath.Join(t.TempDir(), "mwpl.csv")
	content := "Date,Symbol,MWPL,Combined OI\n2024-04-02,ABC,1200,950\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	require.NoError(t, p.IngestMWPLFile(context.Background(), path))

	records, err := p.Store().ReadMWPLPartition(date(2024, 4, 2))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(1200), records[0].MWPLShares)
}

func TestBuildGoldEndToEnd(t *testing.T) {
	p, paths := testPipeline(t)
	ctx := context.Background()

	// Prior expiry so the April window has a chain anchor.
	require.NoError(t, p.IngestUDiFFFile(ctx, writeBhavcopyZip(t,
		bhavRow("2024-03-29", "2024-03-28", "ABC", 95, 10))))
	require.NoError(t, p.IngestUDiFFFile(ctx, writeBhavcopyZip(t,
		bhavRow("2024-04-02", "2024-04-25", "ABC", 190, 10))))
	require.NoError(t, p.IngestUDiFFFile(ctx, writeBhavcopyZip(t,
		bhavRow("2024-04-03", "2024-04-25", "ABC", 220, 10))))

	mwplPath := filepath.Join(t.TempDir(), "mwpl.csv")
	require.NoError(t, os.WriteFile(mwplPath,
		[]byte("Date,Symbol,MWPL,Combined OI\n2024-04-02,ABC,1200,950\n"), 0o644))
	require.NoError(t, p.IngestMWPLFile(ctx, mwplPath))

	results, err := p.BuildGold(ctx, []string{"ABC"}, []time.Time{date(2024, 4, 2), date(2024, 4, 3)})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 2, results[0].DaysBuilt)
	assert.Equal(t, 1, results[0].SummariesBuilt)

	summary, found, err := gold.LoadSummary(paths, "ABC", date(2024, 4, 25))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(220), summary.MaxOIContracts)
	require.NotNil(t, summary.Threshold90Pct)
	assert.Equal(t, int64(108), *summary.Threshold90Pct)
	require.NotNil(t, summary.AsOfTradeDate)
	assert.Equal(t, date(2024, 4, 2), *summary.AsOfTradeDate)
}

func TestBuildGoldMissingPartitionIsFatal(t *testing.T) {
	p, _ := testPipeline(t)

	_, err := p.BuildGold(context.Background(), []string{"ABC"}, []time.Time{date(2024, 4, 2)})
	require.Error(t, err)
}

func TestBuildGoldSymbolAbsentThatDay(t *testing.T) {
	p, _ := testPipeline(t)
	ctx := context.Background()

	require.NoError(t, p.IngestUDiFFFile(ctx, writeBhavcopyZip(t,
		bhavRow("2024-04-02", "2024-04-25", "ABC", 190, 10))))

	results, err := p.BuildGold(ctx, []string{"XYZ"}, []time.Time{date(2024, 4, 2)})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 0, results[0].DaysBuilt)
	assert.Equal(t, 0, results[0].SummariesBuilt)
}

func TestBuildGoldRequiresInput(t *testing.T) {
	p, _ := testPipeline(t)

	_, err := p.BuildGold(context.Background(), nil, []time.Time{date(2024, 4, 2)})
	require.Error(t, err)
	_, err = p.BuildGold(context.Background(), []string{"ABC"}, nil)
	require.Error(t, err)
}
