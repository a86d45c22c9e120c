package engine

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// Skip reasons recorded in the run report.
const (
	SkipInvalid          = "invalid"
	SkipUnknownExchange  = "unknown_exchange"
	SkipUnknownCondition = "unknown_condition"
	SkipLate             = "late"
	SkipDroppedRow       = "unparseable_row"
)

// Report aggregates per-trade outcomes for one run. The final bar set is
// always internally consistent; the report carries everything that was
// excluded from it and why.
type Report struct {
	mu sync.Mutex

	Ingested   int64                `json:"ingested"`
	Bars       int64                `json:"bars"`
	Skipped    map[string]int64     `json:"skipped"`
	Watermarks map[string]time.Time `json:"watermarks,omitempty"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt time.Time            `json:"finished_at"`
}

// NewReport creates an empty report stamped with the start time.
func NewReport() *Report {
	return &Report{
		Skipped:   make(map[string]int64),
		StartedAt: time.Now().UTC(),
	}
}

// AddSkip counts one excluded trade under the given reason.
func (r *Report) AddSkip(reason string) {
	r.mu.Lock()
	r.Skipped[reason]++
	r.mu.Unlock()
}

// AddSkipN counts n excluded trades under the given reason.
func (r *Report) AddSkipN(reason string, n int64) {
	if n == 0 {
		return
	}
	r.mu.Lock()
	r.Skipped[reason] += n
	r.mu.Unlock()
}

// TotalSkipped sums all skip reasons.
func (r *Report) TotalSkipped() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total int64
	for _, n := range r.Skipped {
		total += n
	}
	return total
}

// Finalize stamps the end of the run and folds in the coordinator stats.
func (r *Report) Finalize(stats CoordinatorStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Ingested = stats.Ingested
	r.Bars = stats.Bars
	if stats.Late > 0 {
		r.Skipped[SkipLate] += stats.Late
	}
	r.Watermarks = stats.Watermarks
	r.FinishedAt = time.Now().UTC()
}

// WriteFile writes the report as indented JSON.
func (r *Report) WriteFile(path string) error {
	r.mu.Lock()
	data, err := json.MarshalIndent(r, "", "  ")
	r.mu.Unlock()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
