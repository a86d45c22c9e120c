package market

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bar is one OHLCVC summary record for a symbol over a fixed time bucket.
//
// Price fields are pointers: a bucket that received trades but none eligible
// for any price field yields a bar with nil prices. Writers must serialize
// these as absent values, never as zero.
type Bar struct {
	Symbol      string           `json:"symbol"`
	BucketStart time.Time        `json:"bucket_start"`
	Open        *decimal.Decimal `json:"open,omitempty"`
	High        *decimal.Decimal `json:"high,omitempty"`
	Low         *decimal.Decimal `json:"low,omitempty"`
	Close       *decimal.Decimal `json:"close,omitempty"`
	Volume      int64            `json:"volume"`
	Count       int64            `json:"count"`
}

// HasPrices reports whether any price field is set.
func (b Bar) HasPrices() bool {
	return b.Open != nil || b.High != nil || b.Low != nil || b.Close != nil
}
