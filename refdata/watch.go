package refdata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"ohlcvc-builder/metrics"
)

// Tables bundles one consistent generation of both reference tables.
type Tables struct {
	Rules     *RuleSet
	Exchanges *ExchangeTable
}

// LoadTables builds a Tables generation from the two CSV paths.
func LoadTables(conditionsPath, exchangesPath string, policy UnknownPolicy) (*Tables, error) {
	rules, err := LoadConditionTable(conditionsPath)
	if err != nil {
		return nil, err
	}
	exchanges, err := LoadExchangeTable(exchangesPath)
	if err != nil {
		return nil, err
	}
	return &Tables{Rules: NewRuleSet(rules, policy), Exchanges: exchanges}, nil
}

// WatcherConfig 表监听配置
type WatcherConfig struct {
	ConditionsPath string
	ExchangesPath  string
	Policy         UnknownPolicy
	// Cooldown 冷却时间，避免编辑器连续写入触发多次重建
	Cooldown time.Duration
}

// Watcher reloads the reference tables when either CSV changes on disk.
//
// Tables stay immutable within a run; the watcher rebuilds a fresh Tables
// generation and hands it to the callback, which swaps it in between runs.
type Watcher struct {
	cfg        WatcherConfig
	watcher    *fsnotify.Watcher
	log        *zap.Logger
	onReload   func(*Tables)
	lastReload time.Time
	mu         sync.Mutex
	stopChan   chan struct{}
	doneChan   chan struct{}
}

// NewWatcher creates a watcher for the two reference CSVs.
func NewWatcher(cfg WatcherConfig, log *zap.Logger, onReload func(*Tables)) (*Watcher, error) {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 2 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	return &Watcher{
		cfg:      cfg,
		watcher:  fsw,
		log:      log,
		onReload: onReload,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}, nil
}

// Start begins watching. It returns after registering the paths; reloads run
// on a background goroutine until Stop or context cancellation.
func (w *Watcher) Start(ctx context.Context) error {
	for _, p := range []string{w.cfg.ConditionsPath, w.cfg.ExchangesPath} {
		if err := w.watcher.Add(p); err != nil {
			return fmt.Errorf("watch %s: %w", p, err)
		}
	}
	go w.run(ctx)
	return nil
}

// Stop ends watching and waits for the loop to exit.
func (w *Watcher) Stop() error {
	close(w.stopChan)
	<-w.doneChan
	return w.watcher.Close()
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneChan)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Write == fsnotify.Write ||
				event.Op&fsnotify.Create == fsnotify.Create {
				w.reload(event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("reference table watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload(changed string) {
	w.mu.Lock()
	if time.Since(w.lastReload) < w.cfg.Cooldown {
		w.mu.Unlock()
		return
	}
	w.lastReload = time.Now()
	w.mu.Unlock()

	tables, err := LoadTables(w.cfg.ConditionsPath, w.cfg.ExchangesPath, w.cfg.Policy)
	if err != nil {
		// 保留旧表，坏文件不生效
		metrics.TableReloads.WithLabelValues("failed").Inc()
		w.log.Error("reference table reload failed, keeping previous tables",
			zap.String("changed", changed), zap.Error(err))
		return
	}
	metrics.TableReloads.WithLabelValues("ok").Inc()
	w.log.Info("reference tables reloaded",
		zap.String("changed", changed),
		zap.Int("rules", tables.Rules.Len()),
		zap.Int("exchanges", tables.Exchanges.Len()))
	w.onReload(tables)
}
