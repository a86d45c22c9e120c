package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"ohlcvc-builder/config"
	"ohlcvc-builder/infrastructure/logger"
	"ohlcvc-builder/internal/engine"
	"ohlcvc-builder/loader"
	"ohlcvc-builder/market"
	"ohlcvc-builder/metrics"
	"ohlcvc-builder/refdata"
	"ohlcvc-builder/saver"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	symbol := flag.String("symbol", "", "无 symbol 列的成交文件使用的默认符号")
	tradesPath := flag.String("trades", "", "成交文件路径（覆盖配置）")
	outputPath := flag.String("output", "", "输出文件路径（覆盖配置）")
	watch := flag.Bool("watch", false, "监听参考表变更并自动重建")
	flag.Parse()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	if *tradesPath != "" {
		cfg.Paths.Trades = *tradesPath
	}
	if *outputPath != "" {
		cfg.Paths.Output = *outputPath
	}

	zlog, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer zlog.Close()

	if cfg.MetricsAddr != "" {
		metrics.StartMetricsServer(cfg.MetricsAddr)
		zlog.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
	}

	policy, _ := refdata.ParseUnknownPolicy(cfg.UnknownConditionPolicy)
	tables, err := refdata.LoadTables(cfg.Paths.Conditions, cfg.Paths.Exchanges, policy)
	if err != nil {
		zlog.Fatal("reference tables load failed", zap.Error(err))
	}
	zlog.Info("reference tables loaded",
		zap.Int("rules", tables.Rules.Len()),
		zap.Int("exchanges", tables.Exchanges.Len()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := runOnce(ctx, cfg, tables, *symbol, zlog); err != nil {
		zlog.Fatal("run failed", zap.Error(err))
	}
	if !*watch {
		return
	}

	// Watch mode: rebuild the bar set whenever a reference table changes.
	tablesCh := make(chan *refdata.Tables, 1)
	w, err := refdata.NewWatcher(refdata.WatcherConfig{
		ConditionsPath: cfg.Paths.Conditions,
		ExchangesPath:  cfg.Paths.Exchanges,
		Policy:         policy,
		Cooldown:       2 * time.Second,
	}, zlog.Logger, func(t *refdata.Tables) {
		select {
		case tablesCh <- t:
		default:
		}
	})
	if err != nil {
		zlog.Fatal("watcher init failed", zap.Error(err))
	}
	if err := w.Start(ctx); err != nil {
		zlog.Fatal("watcher start failed", zap.Error(err))
	}
	defer w.Stop()

	for {
		select {
		case <-ctx.Done():
			zlog.Info("shutting down")
			return
		case newTables := <-tablesCh:
			if err := runOnce(ctx, cfg, newTables, *symbol, zlog); err != nil {
				zlog.Error("rebuild failed", zap.Error(err))
			}
		}
	}
}

// runOnce builds one complete bar set from the configured trade dump.
func runOnce(ctx context.Context, cfg config.AppConfig, tables *refdata.Tables, symbol string, zlog *logger.Logger) error {
	start := time.Now()

	interval, err := cfg.IntervalSpec()
	if err != nil {
		return err
	}
	countPolicy, _ := market.ParseCountPolicy(cfg.CountPolicy)
	invalidPolicy, _ := engine.ParseInvalidPolicy(cfg.InvalidTradePolicy)

	builder, err := engine.NewBuilder(tables, engine.BuilderConfig{
		Interval: interval,
		Coordinator: engine.CoordinatorConfig{
			Partitions:  cfg.Partitions,
			Lateness:    cfg.LatenessWindow.Std(),
			CountPolicy: countPolicy,
		},
		InvalidPolicy: invalidPolicy,
	}, zlog.Logger)
	if err != nil {
		return err
	}
	if err := builder.Start(); err != nil {
		return err
	}

	res, err := loader.LoadTrades(cfg.Paths.Trades, symbol)
	if err != nil {
		return err
	}
	builder.Report().AddSkipN(engine.SkipDroppedRow, res.Dropped)
	zlog.Info("trades loaded",
		zap.String("path", cfg.Paths.Trades),
		zap.Int("trades", len(res.Trades)),
		zap.Int64("dropped_rows", res.Dropped))

	for _, tr := range res.Trades {
		if err := builder.Process(tr); err != nil {
			return err
		}
	}

	bars, report, err := builder.Finish(ctx)
	if err != nil {
		return err
	}

	s := saver.Must(cfg.OutputFormat)
	if err := s.Save(bars, cfg.Paths.Output); err != nil {
		return err
	}
	if err := report.WriteFile(cfg.Paths.Output + ".report.json"); err != nil {
		zlog.Warn("report write failed", zap.Error(err))
	}

	zlog.Info("bar set written",
		zap.String("path", cfg.Paths.Output),
		zap.String("format", cfg.OutputFormat),
		zap.Int("bars", len(bars)),
		zap.Int64("skipped", report.TotalSkipped()),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}
