package engine

import "errors"

var (
	// ErrInvalidTrade marks trades with a malformed price or size.
	ErrInvalidTrade = errors.New("invalid trade")
	// ErrLateTrade marks trades arriving outside the lateness window.
	// They are dropped and counted, never merged into a flushed bucket.
	ErrLateTrade = errors.New("trade outside lateness window")
	// ErrNotRunning is returned when routing into a coordinator that has
	// not started or has already flushed.
	ErrNotRunning = errors.New("coordinator not running")
)
