package commands

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDateFlag(t *testing.T) {
	date, err := parseDateFlag("2024-04-02")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC), date)

	_, err = parseDateFlag("")
	require.Error(t, err)
	_, err = parseDateFlag("02-04-2024")
	require.Error(t, err)
}

func TestSplitSymbols(t *testing.T) {
	assert.Equal(t, []string{"ABC", "XYZ"}, splitSymbols("ABC, XYZ"))
	assert.Equal(t, []string{"ABC"}, splitSymbols("ABC,,"))
	assert.Nil(t, splitSymbols(""))
}

func TestResolveDatesSingle(t *testing.T) {
	dates, err := resolveDates("2024-04-02", "", "")
	require.NoError(t, err)
	require.Len(t, dates, 1)
	assert.Equal(t, time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC), dates[0])
}

func TestResolveDatesRange(t *testing.T) {
	dates, err := resolveDates("", "2024-04-01", "2024-04-03")
	require.NoError(t, err)
	require.Len(t, dates, 3)
	assert.Equal(t, time.Date(2024, 4, 3, 0, 0, 0, 0, time.UTC), dates[2])
}

func TestResolveDatesErrors(t *testing.T) {
	_, err := resolveDates("", "", "")
	require.Error(t, err)
	_, err = resolveDates("", "2024-04-03", "2024-04-01")
	require.Error(t, err)
	_, err = resolveDates("", "2024-04-01", "")
	require.Error(t, err)
}
