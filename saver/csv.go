package saver

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/shopspring/decimal"

	"ohlcvc-builder/market"
)

// CSVSaver writes bars as CSV (header: symbol,t,o,h,l,c,v,n).
// Unset price fields of degenerate bars become empty cells, never zero.
type CSVSaver struct{}

func (CSVSaver) Extension() string { return "csv" }

func (CSVSaver) Save(bars []market.Bar, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"symbol", "t", "o", "h", "l", "c", "v", "n"}); err != nil {
		return err
	}
	for _, b := range bars {
		if err := w.Write([]string{
			b.Symbol,
			strconv.FormatInt(b.BucketStart.UnixNano(), 10),
			priceStr(b.Open),
			priceStr(b.High),
			priceStr(b.Low),
			priceStr(b.Close),
			strconv.FormatInt(b.Volume, 10),
			strconv.FormatInt(b.Count, 10),
		}); err != nil {
			return err
		}
	}
	return w.Error()
}

func priceStr(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}
