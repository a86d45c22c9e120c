package market

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeRecord is a single raw execution as delivered by the loader.
type TradeRecord struct {
	Symbol         string
	Timestamp      time.Time
	Price          decimal.Decimal
	Size           int64
	ExchangeCode   string
	ConditionCodes []string
	// Sequence is monotonic per source feed and breaks ties between
	// trades sharing a timestamp.
	Sequence int64
}

// EligibilityVector holds the per-trade flags deciding which bar fields
// the trade may influence. Derived once by the classifier, never mutated.
type EligibilityVector struct {
	Open    bool
	HighLow bool
	Close   bool
	Volume  bool
}

// Any reports whether the trade may influence at least one bar field.
func (v EligibilityVector) Any() bool {
	return v.Open || v.HighLow || v.Close || v.Volume
}

// NormalizedTrade is a validated TradeRecord with its exchange resolved,
// eligibility computed and bucket assigned.
type NormalizedTrade struct {
	TradeRecord
	Exchange    string
	Eligibility EligibilityVector
	BucketStart time.Time
}
