package engine

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReport(t *testing.T) {
	r := NewReport()
	r.AddSkip(SkipInvalid)
	r.AddSkip(SkipInvalid)
	r.AddSkipN(SkipDroppedRow, 3)
	r.AddSkipN(SkipUnknownExchange, 0)

	assert.Equal(t, int64(5), r.TotalSkipped())
	_, present := r.Skipped[SkipUnknownExchange]
	assert.False(t, present, "zero counts stay absent")

	wm := time.Date(2024, 3, 5, 12, 5, 0, 0, time.UTC)
	r.Finalize(CoordinatorStats{
		Ingested:   10,
		Late:       2,
		Bars:       4,
		Watermarks: map[string]time.Time{"AAPL": wm},
	})
	assert.Equal(t, int64(10), r.Ingested)
	assert.Equal(t, int64(2), r.Skipped[SkipLate])
	assert.Equal(t, int64(7), r.TotalSkipped())
	assert.False(t, r.FinishedAt.IsZero())

	path := filepath.Join(t.TempDir(), "run.report.json")
	require.NoError(t, r.WriteFile(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded Report
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, int64(4), decoded.Bars)
	assert.Equal(t, wm, decoded.Watermarks["AAPL"].UTC())
}
