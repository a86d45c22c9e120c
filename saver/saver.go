// Package saver writes finalized bar sets to disk in csv, json or parquet.
package saver

import (
	"fmt"
	"strings"

	"ohlcvc-builder/market"
)

// Saver is the abstraction for persisting one run's bar set. High-level code
// injects the implementation; the engine depends only on the interface.
type Saver interface {
	Save(bars []market.Bar, path string) error
	Extension() string
}

// New creates an implementation by format (csv, json, parquet).
// Returns nil if the format is not supported.
func New(format string) Saver {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "csv":
		return CSVSaver{}
	case "json":
		return JSONSaver{}
	case "parquet":
		return ParquetSaver{}
	default:
		return nil
	}
}

// Must is like New but panics on an unsupported format. For use after
// config validation has already vetted the format string.
func Must(format string) Saver {
	s := New(format)
	if s == nil {
		panic(fmt.Sprintf("saver: unsupported format %q (use csv, json, parquet)", format))
	}
	return s
}
