package saver

import (
	"github.com/parquet-go/parquet-go"
	"github.com/shopspring/decimal"

	"ohlcvc-builder/market"
)

// ParquetSaver writes bars as Parquet. Prices are stored as optional
// float64 columns; unset fields of degenerate bars stay null.
type ParquetSaver struct{}

func (ParquetSaver) Extension() string { return "parquet" }

// parquetBar is the flat row schema; decimal prices are converted on write.
type parquetBar struct {
	Symbol string   `parquet:"symbol"`
	T      int64    `parquet:"t"` // bucket start, ns since epoch
	Open   *float64 `parquet:"o,optional"`
	High   *float64 `parquet:"h,optional"`
	Low    *float64 `parquet:"l,optional"`
	Close  *float64 `parquet:"c,optional"`
	Volume int64    `parquet:"v"`
	Count  int64    `parquet:"n"`
}

func (ParquetSaver) Save(bars []market.Bar, path string) error {
	rows := make([]parquetBar, len(bars))
	for i, b := range bars {
		rows[i] = parquetBar{
			Symbol: b.Symbol,
			T:      b.BucketStart.UnixNano(),
			Open:   priceFloat(b.Open),
			High:   priceFloat(b.High),
			Low:    priceFloat(b.Low),
			Close:  priceFloat(b.Close),
			Volume: b.Volume,
			Count:  b.Count,
		}
	}
	return parquet.WriteFile(path, rows)
}

func priceFloat(d *decimal.Decimal) *float64 {
	if d == nil {
		return nil
	}
	f, _ := d.Float64()
	return &f
}
