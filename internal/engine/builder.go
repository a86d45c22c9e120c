package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"ohlcvc-builder/market"
	"ohlcvc-builder/metrics"
	"ohlcvc-builder/refdata"
)

// InvalidPolicy decides whether a malformed trade skips or aborts the run.
type InvalidPolicy int

const (
	// InvalidSkip drops the trade, counts it and continues.
	InvalidSkip InvalidPolicy = iota
	// InvalidAbort fails the run on the first malformed or rejected trade.
	InvalidAbort
)

// ParseInvalidPolicy converts a config string to an InvalidPolicy.
func ParseInvalidPolicy(s string) (InvalidPolicy, error) {
	switch s {
	case "", "skip":
		return InvalidSkip, nil
	case "abort":
		return InvalidAbort, nil
	default:
		return 0, fmt.Errorf("unknown invalid-trade policy %q (use skip or abort)", s)
	}
}

// BuilderConfig assembles the engine policies.
type BuilderConfig struct {
	Interval      market.IntervalSpec
	Coordinator   CoordinatorConfig
	InvalidPolicy InvalidPolicy
}

// Builder is the run orchestrator: it normalizes each raw trade, applies the
// per-trade error policy, routes survivors to the coordinator and finalizes
// the run report.
type Builder struct {
	norm    *Normalizer
	coord   *Coordinator
	report  *Report
	invalid InvalidPolicy
	log     *zap.Logger
}

// NewBuilder wires a builder over one generation of reference tables.
func NewBuilder(tables *refdata.Tables, cfg BuilderConfig, log *zap.Logger) (*Builder, error) {
	norm, err := NewNormalizer(tables, cfg.Interval)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Builder{
		norm:    norm,
		coord:   NewCoordinator(cfg.Coordinator, log),
		report:  NewReport(),
		invalid: cfg.InvalidPolicy,
		log:     log,
	}, nil
}

// Start spawns the partition workers.
func (b *Builder) Start() error { return b.coord.Start() }

// Report exposes the live run report.
func (b *Builder) Report() *Report { return b.report }

// Process feeds one raw trade through normalization and routing.
//
// Per-trade failures are recovered locally: the trade is counted under its
// skip reason and nil is returned. Under InvalidAbort any skipped trade
// fails the whole run instead.
func (b *Builder) Process(tr market.TradeRecord) error {
	nt, err := b.norm.Normalize(tr)
	if err != nil {
		reason, perTrade := classify(err)
		if !perTrade {
			return err
		}
		b.report.AddSkip(reason)
		metrics.TradesSkipped.WithLabelValues(reason).Inc()
		if b.invalid == InvalidAbort {
			return fmt.Errorf("abort on first bad trade (symbol %s, seq %d): %w", tr.Symbol, tr.Sequence, err)
		}
		b.log.Debug("trade skipped",
			zap.String("symbol", tr.Symbol),
			zap.Int64("sequence", tr.Sequence),
			zap.String("reason", reason))
		return nil
	}
	metrics.TradesIngested.Inc()
	return b.coord.Route(nt)
}

// Finish waits for every partition to drain, flushes all buckets and returns
// the merged bars with the finalized report. A cancelled context emits
// nothing.
func (b *Builder) Finish(ctx context.Context) ([]market.Bar, *Report, error) {
	bars, stats, err := b.coord.FlushAll(ctx)
	if err != nil {
		return nil, b.report, err
	}
	b.report.Finalize(stats)
	metrics.BarsEmitted.Add(float64(stats.Bars))
	if stats.Late > 0 {
		metrics.TradesSkipped.WithLabelValues(SkipLate).Add(float64(stats.Late))
	}
	return bars, b.report, nil
}

// classify maps a normalization error to its skip reason. The second return
// is false for errors that are never recoverable per-trade.
func classify(err error) (string, bool) {
	switch {
	case errors.Is(err, ErrInvalidTrade):
		return SkipInvalid, true
	case errors.Is(err, refdata.ErrUnknownExchange):
		return SkipUnknownExchange, true
	case errors.Is(err, refdata.ErrUnknownCondition):
		return SkipUnknownCondition, true
	default:
		return "", false
	}
}
