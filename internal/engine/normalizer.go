package engine

import (
	"fmt"

	"ohlcvc-builder/market"
	"ohlcvc-builder/refdata"
)

// Normalizer validates a raw trade, resolves its exchange, derives its
// eligibility vector and assigns its bucket. Pure transform, no side effects.
type Normalizer struct {
	tables   *refdata.Tables
	interval market.IntervalSpec
}

// NewNormalizer creates a normalizer over one generation of reference tables.
func NewNormalizer(tables *refdata.Tables, interval market.IntervalSpec) (*Normalizer, error) {
	if err := interval.Validate(); err != nil {
		return nil, fmt.Errorf("interval spec: %w", err)
	}
	return &Normalizer{tables: tables, interval: interval}, nil
}

// Normalize transforms one raw trade.
//
// Failure modes: ErrInvalidTrade for non-positive price or negative size,
// refdata.ErrUnknownExchange for unmapped exchange codes, and
// refdata.ErrUnknownCondition when the classifier policy is reject.
func (n *Normalizer) Normalize(tr market.TradeRecord) (market.NormalizedTrade, error) {
	if tr.Symbol == "" {
		return market.NormalizedTrade{}, fmt.Errorf("%w: empty symbol", ErrInvalidTrade)
	}
	if !tr.Price.IsPositive() {
		return market.NormalizedTrade{}, fmt.Errorf("%w: price %s must be > 0", ErrInvalidTrade, tr.Price)
	}
	if tr.Size < 0 {
		return market.NormalizedTrade{}, fmt.Errorf("%w: size %d must be >= 0", ErrInvalidTrade, tr.Size)
	}

	exchange, err := n.tables.Exchanges.Resolve(tr.ExchangeCode)
	if err != nil {
		return market.NormalizedTrade{}, err
	}

	eligibility, err := n.tables.Rules.Classify(exchange, tr.ConditionCodes)
	if err != nil {
		return market.NormalizedTrade{}, err
	}

	return market.NormalizedTrade{
		TradeRecord: tr,
		Exchange:    exchange,
		Eligibility: eligibility,
		BucketStart: n.interval.BucketStart(tr.Timestamp),
	}, nil
}
