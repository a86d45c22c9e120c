package market

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// CountPolicy decides which trades increment a bar's Count.
type CountPolicy int

const (
	// CountAllTrades counts every trade routed to the bucket, eligible or not.
	CountAllTrades CountPolicy = iota
	// CountEligibleOnly counts only trades with at least one eligibility flag.
	CountEligibleOnly
)

// ParseCountPolicy converts a config string to a CountPolicy.
func ParseCountPolicy(s string) (CountPolicy, error) {
	switch s {
	case "", "allTrades":
		return CountAllTrades, nil
	case "eligibleOnly":
		return CountEligibleOnly, nil
	default:
		return 0, fmt.Errorf("unknown count policy %q (use allTrades or eligibleOnly)", s)
	}
}

// ErrFlushed is returned when ingesting into or flushing an accumulator
// that has already produced its bar.
var ErrFlushed = errors.New("accumulator already flushed")

// AccState is the accumulator lifecycle state.
type AccState int

const (
	// AccOpen accepts trades.
	AccOpen AccState = iota
	// AccFlushed is terminal; the accumulator is discarded after flush.
	AccFlushed
)

// Accumulator folds eligible trades for one (symbol, bucket) pair into a Bar.
//
// It is exclusively owned by its partition worker: no locking inside
// Ingest/Flush. Trades may arrive out of timestamp order within the lateness
// window; open and close are therefore chosen by sequence number, not by
// arrival order.
type Accumulator struct {
	symbol      string
	bucketStart time.Time
	countPolicy CountPolicy
	state       AccState

	open    *decimal.Decimal
	openSeq int64

	high *decimal.Decimal
	low  *decimal.Decimal

	closePx  *decimal.Decimal
	closeSeq int64

	// Earliest high/low-eligible price, the last fallback for open.
	firstRange    *decimal.Decimal
	firstRangeSeq int64

	volume int64
	count  int64
}

// NewAccumulator creates an open accumulator for one symbol and bucket.
func NewAccumulator(symbol string, bucketStart time.Time, policy CountPolicy) *Accumulator {
	return &Accumulator{
		symbol:      symbol,
		bucketStart: bucketStart,
		countPolicy: policy,
		state:       AccOpen,
	}
}

// Symbol returns the owning symbol.
func (a *Accumulator) Symbol() string { return a.symbol }

// BucketStart returns the bucket this accumulator aggregates.
func (a *Accumulator) BucketStart() time.Time { return a.bucketStart }

// State returns the lifecycle state.
func (a *Accumulator) State() AccState { return a.state }

// Ingest applies one normalized trade. Valid only while open.
func (a *Accumulator) Ingest(t NormalizedTrade) error {
	if a.state != AccOpen {
		return ErrFlushed
	}

	if a.countPolicy == CountAllTrades || t.Eligibility.Any() {
		a.count++
	}

	if t.Eligibility.Volume {
		a.volume += t.Size
	}

	if t.Eligibility.Open {
		// Open is the chronologically first eligible trade by sequence.
		if a.open == nil || t.Sequence < a.openSeq {
			px := t.Price
			a.open = &px
			a.openSeq = t.Sequence
		}
	}

	if t.Eligibility.HighLow {
		px := t.Price
		if a.high == nil || px.GreaterThan(*a.high) {
			a.high = &px
		}
		if a.low == nil || px.LessThan(*a.low) {
			a.low = &px
		}
		if a.firstRange == nil || t.Sequence < a.firstRangeSeq {
			a.firstRange = &px
			a.firstRangeSeq = t.Sequence
		}
	}

	if t.Eligibility.Close {
		// Last eligible trade by sequence; equal sequence means last write
		// wins, so re-delivery of the same trade is a no-op.
		if a.closePx == nil || t.Sequence >= a.closeSeq {
			px := t.Price
			a.closePx = &px
			a.closeSeq = t.Sequence
		}
	}

	return nil
}

// Flush finalizes the bucket into an immutable Bar and retires the
// accumulator. If no open-eligible trade arrived, open falls back to the
// close, then to the earliest high/low-eligible price. A bucket where
// nothing was price-eligible emits a bar with nil prices.
func (a *Accumulator) Flush() (Bar, error) {
	if a.state != AccOpen {
		return Bar{}, ErrFlushed
	}
	a.state = AccFlushed

	open := a.open
	if open == nil {
		if a.closePx != nil {
			open = a.closePx
		} else if a.firstRange != nil {
			open = a.firstRange
		}
	}

	// A bar with a range must contain its open and close.
	if a.high != nil {
		for _, px := range []*decimal.Decimal{open, a.closePx} {
			if px == nil {
				continue
			}
			if px.GreaterThan(*a.high) {
				a.high = px
			}
			if px.LessThan(*a.low) {
				a.low = px
			}
		}
	}

	return Bar{
		Symbol:      a.symbol,
		BucketStart: a.bucketStart,
		Open:        open,
		High:        a.high,
		Low:         a.low,
		Close:       a.closePx,
		Volume:      a.volume,
		Count:       a.count,
	}, nil
}
