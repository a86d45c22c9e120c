package market

import (
	"errors"
	"fmt"
	"time"
)

// Alignment selects how bucket boundaries are anchored.
type Alignment int

const (
	// AlignEpoch anchors buckets to the Unix epoch.
	AlignEpoch Alignment = iota
	// AlignSession anchors buckets to the session open of the trade's
	// trading day (e.g. daily bars starting at the market open).
	AlignSession
)

// String returns the alignment name.
func (a Alignment) String() string {
	switch a {
	case AlignEpoch:
		return "epoch"
	case AlignSession:
		return "session"
	default:
		return "unknown"
	}
}

// ParseAlignment converts a config string to an Alignment.
func ParseAlignment(s string) (Alignment, error) {
	switch s {
	case "", "epoch":
		return AlignEpoch, nil
	case "session":
		return AlignSession, nil
	default:
		return 0, fmt.Errorf("unknown alignment %q (use epoch or session)", s)
	}
}

// SessionStartFunc returns the session open instant for the trading day
// containing t. Supplied by the caller for venue-specific calendars.
type SessionStartFunc func(t time.Time) time.Time

// DefaultSessionOffset is the regular trading hours open used when no
// session calendar is supplied: 09:30 past midnight of the trade's day.
const DefaultSessionOffset = 9*time.Hour + 30*time.Minute

// IntervalSpec defines the bucketing of trades into bars.
type IntervalSpec struct {
	Length    time.Duration
	Alignment Alignment
	// SessionOffset positions the session open relative to midnight (UTC)
	// of the trade's day. Used only when Alignment is AlignSession and no
	// SessionStart is supplied.
	SessionOffset time.Duration
	// SessionStart overrides SessionOffset with a full session calendar.
	SessionStart SessionStartFunc
}

// Validate rejects interval specs that cannot bucket any trade.
func (s IntervalSpec) Validate() error {
	if s.Length <= 0 {
		return errors.New("interval length must be > 0")
	}
	if s.SessionOffset < 0 {
		return errors.New("session offset must be >= 0")
	}
	return nil
}

// BucketStart returns the start of the half-open bucket
// [start, start+Length) containing ts. A trade with ts == start belongs
// to that bucket, not the previous one. Pure and total for a valid spec.
func (s IntervalSpec) BucketStart(ts time.Time) time.Time {
	if s.Alignment == AlignSession {
		return s.sessionBucketStart(ts)
	}
	length := int64(s.Length)
	n := ts.UnixNano()
	return time.Unix(0, floorMul(n, length)).UTC()
}

func (s IntervalSpec) sessionBucketStart(ts time.Time) time.Time {
	open := s.sessionOpen(ts)
	// Trades before the open belong to the previous trading day's session.
	for ts.Before(open) {
		open = s.sessionOpen(open.AddDate(0, 0, -1))
	}
	offset := floorMul(int64(ts.Sub(open)), int64(s.Length))
	return open.Add(time.Duration(offset))
}

func (s IntervalSpec) sessionOpen(t time.Time) time.Time {
	if s.SessionStart != nil {
		return s.SessionStart(t)
	}
	off := s.SessionOffset
	if off == 0 {
		off = DefaultSessionOffset
	}
	t = t.UTC()
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return midnight.Add(off)
}

// floorMul rounds n down to a multiple of d, correct for negative n.
func floorMul(n, d int64) int64 {
	q := n / d
	if n%d < 0 {
		q--
	}
	return q * d
}
