package config

import (
	"errors"
	"fmt"

	"ohlcvc-builder/internal/engine"
	"ohlcvc-builder/market"
	"ohlcvc-builder/refdata"
)

// Validate ensures required fields are present and enums parse. Violations
// are configuration errors: fatal at startup, before any trade is processed.
func Validate(cfg AppConfig) error {
	if cfg.Interval.Std() <= 0 {
		return errors.New("interval must be > 0")
	}
	if cfg.LatenessWindow.Std() < 0 {
		return errors.New("latenessWindow must be >= 0")
	}
	if cfg.SessionOffset.Std() < 0 {
		return errors.New("sessionOffset must be >= 0")
	}
	if _, err := market.ParseAlignment(cfg.Alignment); err != nil {
		return err
	}
	if _, err := refdata.ParseUnknownPolicy(cfg.UnknownConditionPolicy); err != nil {
		return err
	}
	if _, err := market.ParseCountPolicy(cfg.CountPolicy); err != nil {
		return err
	}
	if _, err := engine.ParseInvalidPolicy(cfg.InvalidTradePolicy); err != nil {
		return err
	}
	if cfg.Partitions < 0 {
		return errors.New("partitions must be >= 0")
	}
	switch cfg.OutputFormat {
	case "csv", "json", "parquet":
	default:
		return fmt.Errorf("outputFormat %q not supported (use csv, json or parquet)", cfg.OutputFormat)
	}
	if cfg.Paths.Trades == "" {
		return errors.New("paths.trades is required")
	}
	if cfg.Paths.Conditions == "" {
		return errors.New("paths.conditions is required")
	}
	if cfg.Paths.Exchanges == "" {
		return errors.New("paths.exchanges is required")
	}
	if cfg.Paths.Output == "" {
		return errors.New("paths.output is required")
	}
	return nil
}

// IntervalSpec converts the config into the engine's interval spec.
func (cfg AppConfig) IntervalSpec() (market.IntervalSpec, error) {
	alignment, err := market.ParseAlignment(cfg.Alignment)
	if err != nil {
		return market.IntervalSpec{}, err
	}
	spec := market.IntervalSpec{
		Length:        cfg.Interval.Std(),
		Alignment:     alignment,
		SessionOffset: cfg.SessionOffset.Std(),
	}
	return spec, spec.Validate()
}
