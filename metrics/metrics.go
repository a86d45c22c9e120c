// Package metrics provides Prometheus metrics for the bar builder
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TradesIngested counts trades accepted into aggregation.
	TradesIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ohlcvc_trades_ingested_total",
		Help: "Trades accepted into bar aggregation",
	})

	// TradesSkipped counts excluded trades by reason.
	TradesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ohlcvc_trades_skipped_total",
		Help: "Trades excluded from aggregation by reason",
	}, []string{"reason"})

	// BarsEmitted counts finalized bars.
	BarsEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ohlcvc_bars_emitted_total",
		Help: "Finalized bars emitted",
	})

	// TableReloads counts reference table reload attempts.
	TableReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ohlcvc_table_reloads_total",
		Help: "Reference table reloads by outcome",
	}, []string{"outcome"})
)

// StartMetricsServer 启动Prometheus指标服务器
func StartMetricsServer(addr string) {
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		_ = http.ListenAndServe(addr, nil)
	}()
}
