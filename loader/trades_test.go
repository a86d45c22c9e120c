package loader

import (
	"compress/gzip"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDump = `{
  "header": {"format": ["date", "ms_of_day", "price", "size", "exchange", "conditions", "sequence"]},
  "response": [
    [20240305, 34200000, 100.25, 10, "1", "0", 17],
    [20240305, 34200500, "105.5", 5, 2, "7, 12", 18],
    [20240305, 34201000, "bogus", 5, "1", "0", 19],
    [20240305, 34201500, 98, 7, "1", "", 20]
  ]
}`

func TestReadTrades(t *testing.T) {
	res, err := ReadTrades(strings.NewReader(sampleDump), "AAPL")
	require.NoError(t, err)
	require.Len(t, res.Trades, 3)
	assert.Equal(t, int64(1), res.Dropped, "unparseable price drops the row")

	tr := res.Trades[0]
	assert.Equal(t, "AAPL", tr.Symbol)
	assert.Equal(t, "100.25", tr.Price.String())
	assert.Equal(t, int64(10), tr.Size)
	assert.Equal(t, "1", tr.ExchangeCode)
	assert.Equal(t, []string{"0"}, tr.ConditionCodes)
	assert.Equal(t, int64(17), tr.Sequence)
	// 09:30:00 on the dump date.
	assert.Equal(t, time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC), tr.Timestamp)

	// Numeric exchange codes and comma-separated conditions.
	assert.Equal(t, "2", res.Trades[1].ExchangeCode)
	assert.Equal(t, []string{"7", "12"}, res.Trades[1].ConditionCodes)
	assert.Equal(t, time.Date(2024, 3, 5, 9, 30, 0, 500000000, time.UTC), res.Trades[1].Timestamp)

	// Empty condition cell means no codes.
	assert.Nil(t, res.Trades[2].ConditionCodes)
}

func TestReadTradesSequenceDefaultsToRowIndex(t *testing.T) {
	dump := `{"header": {"format": ["timestamp", "price", "size"]},
		"response": [[1709640000000000000, 100, 1], [1709640001000000000, 101, 2]]}`
	res, err := ReadTrades(strings.NewReader(dump), "X")
	require.NoError(t, err)
	require.Len(t, res.Trades, 2)
	assert.Equal(t, int64(1), res.Trades[0].Sequence)
	assert.Equal(t, int64(2), res.Trades[1].Sequence)
}

func TestReadTradesRFC3339Timestamp(t *testing.T) {
	dump := `{"header": {"format": ["timestamp", "price", "size"]},
		"response": [["2024-03-05T09:30:00.25Z", 100, 1]]}`
	res, err := ReadTrades(strings.NewReader(dump), "X")
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, time.Date(2024, 3, 5, 9, 30, 0, 250000000, time.UTC), res.Trades[0].Timestamp)
}

func TestReadTradesMissingEssentialColumn(t *testing.T) {
	_, err := ReadTrades(strings.NewReader(`{"header": {"format": ["price"]}, "response": []}`), "X")
	assert.Error(t, err, "size column required")

	_, err = ReadTrades(strings.NewReader(`{"header": {"format": []}, "response": []}`), "X")
	assert.Error(t, err, "empty format")
}

func TestLoadTradesGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.json.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte(sampleDump))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	res, err := LoadTrades(path, "AAPL")
	require.NoError(t, err)
	assert.Len(t, res.Trades, 3)
}
