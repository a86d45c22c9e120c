package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	TradesSkipped.Reset()
	TableReloads.Reset()

	TradesSkipped.WithLabelValues("late").Inc()
	TradesSkipped.WithLabelValues("late").Inc()
	TradesSkipped.WithLabelValues("invalid").Inc()
	TableReloads.WithLabelValues("ok").Inc()

	if got := testutil.ToFloat64(TradesSkipped.WithLabelValues("late")); got != 2 {
		t.Errorf("Expected TradesSkipped[late] to be 2, got %f", got)
	}
	if got := testutil.ToFloat64(TradesSkipped.WithLabelValues("invalid")); got != 1 {
		t.Errorf("Expected TradesSkipped[invalid] to be 1, got %f", got)
	}
	if got := testutil.ToFloat64(TableReloads.WithLabelValues("ok")); got != 1 {
		t.Errorf("Expected TableReloads[ok] to be 1, got %f", got)
	}
}
