package engine

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"ohlcvc-builder/market"
)

// CoordState 协调器状态
type CoordState int

const (
	// CoordIdle 尚未启动
	CoordIdle CoordState = iota
	// CoordRunning 正在接收成交
	CoordRunning
	// CoordFlushed 已完成（terminal）
	CoordFlushed
)

// String returns the state name.
func (s CoordState) String() string {
	switch s {
	case CoordIdle:
		return "IDLE"
	case CoordRunning:
		return "RUNNING"
	case CoordFlushed:
		return "FLUSHED"
	default:
		return "UNKNOWN"
	}
}

// CoordinatorConfig holds the partitioning and ordering policy.
type CoordinatorConfig struct {
	// Partitions is the worker count; symbols hash onto workers and each
	// symbol is owned by exactly one worker.
	Partitions int
	// Lateness is the window W: a trade older than watermark-W for its
	// symbol is dropped as late.
	Lateness time.Duration
	// CountPolicy is applied uniformly to every accumulator.
	CountPolicy market.CountPolicy
	// ChannelBuffer is the per-partition channel depth.
	ChannelBuffer int
}

// CoordinatorStats summarizes one run.
type CoordinatorStats struct {
	Ingested int64
	Late     int64
	Bars     int64
	// Watermarks holds the final watermark per symbol.
	Watermarks map[string]time.Time
}

// Coordinator routes normalized trades to per-symbol accumulators.
//
// Each partition is one goroutine exclusively owning the accumulators of its
// symbols, so no lock guards ingest or flush. Within a symbol the coordinator
// buffers trades inside the lateness window and releases them to the
// accumulator in sequence order; buckets progress monotonically, flushing the
// older bucket when a newer one is observed.
type Coordinator struct {
	cfg   CoordinatorConfig
	log   *zap.Logger
	parts []*partition
	wg    sync.WaitGroup

	mu    sync.Mutex
	state CoordState
}

// NewCoordinator creates an idle coordinator.
func NewCoordinator(cfg CoordinatorConfig, log *zap.Logger) *Coordinator {
	if cfg.Partitions <= 0 {
		cfg.Partitions = 4
	}
	if cfg.ChannelBuffer <= 0 {
		cfg.ChannelBuffer = 1024
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{cfg: cfg, log: log, state: CoordIdle}
}

// Start spawns the partition workers. Valid only once.
func (c *Coordinator) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != CoordIdle {
		return fmt.Errorf("coordinator already started (state: %s)", c.state)
	}
	c.parts = make([]*partition, c.cfg.Partitions)
	for i := range c.parts {
		p := &partition{
			ch:          make(chan market.NormalizedTrade, c.cfg.ChannelBuffer),
			symbols:     make(map[string]*symbolState),
			lateness:    c.cfg.Lateness,
			countPolicy: c.cfg.CountPolicy,
			log:         c.log,
		}
		c.parts[i] = p
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			p.run()
		}()
	}
	c.state = CoordRunning
	c.log.Info("coordinator started",
		zap.Int("partitions", c.cfg.Partitions),
		zap.Duration("lateness", c.cfg.Lateness))
	return nil
}

// Route delivers one normalized trade to its symbol's partition. Blocks when
// the partition channel is full (backpressure toward the loader).
func (c *Coordinator) Route(t market.NormalizedTrade) error {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()
	if state != CoordRunning {
		return fmt.Errorf("%w (state: %s)", ErrNotRunning, state)
	}
	c.parts[c.partitionFor(t.Symbol)].ch <- t
	return nil
}

// FlushAll is the completion barrier: it stops intake, waits for every
// partition to drain its assigned trades, flushes all open buckets and merges
// the bars ordered by (symbol, bucketStart).
//
// A cancelled context aborts the run without emitting any bar.
func (c *Coordinator) FlushAll(ctx context.Context) ([]market.Bar, CoordinatorStats, error) {
	c.mu.Lock()
	if c.state != CoordRunning {
		state := c.state
		c.mu.Unlock()
		return nil, CoordinatorStats{}, fmt.Errorf("%w (state: %s)", ErrNotRunning, state)
	}
	c.state = CoordFlushed
	c.mu.Unlock()

	for _, p := range c.parts {
		close(p.ch)
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return nil, CoordinatorStats{}, ctx.Err()
	case <-done:
		// Cancellation still wins at the barrier: an aborted run must not
		// emit any bar.
		if err := ctx.Err(); err != nil {
			return nil, CoordinatorStats{}, err
		}
	}

	var bars []market.Bar
	stats := CoordinatorStats{Watermarks: make(map[string]time.Time)}
	for _, p := range c.parts {
		bars = append(bars, p.bars...)
		stats.Ingested += p.ingested
		stats.Late += p.late
		for sym, s := range p.symbols {
			stats.Watermarks[sym] = s.watermark
		}
	}
	stats.Bars = int64(len(bars))

	sort.Slice(bars, func(i, j int) bool {
		if bars[i].Symbol != bars[j].Symbol {
			return bars[i].Symbol < bars[j].Symbol
		}
		return bars[i].BucketStart.Before(bars[j].BucketStart)
	})

	c.log.Info("coordinator flushed",
		zap.Int64("trades", stats.Ingested),
		zap.Int64("late_dropped", stats.Late),
		zap.Int64("bars", stats.Bars))
	return bars, stats, nil
}

func (c *Coordinator) partitionFor(symbol string) int {
	h := fnv.New32a()
	h.Write([]byte(symbol))
	return int(h.Sum32() % uint32(len(c.parts)))
}

// partition owns the accumulators of the symbols hashed onto it. All fields
// are touched only by its worker goroutine until the FlushAll barrier.
type partition struct {
	ch          chan market.NormalizedTrade
	symbols     map[string]*symbolState
	lateness    time.Duration
	countPolicy market.CountPolicy
	log         *zap.Logger

	bars     []market.Bar
	ingested int64
	late     int64
}

// symbolState tracks one symbol's watermark, reorder buffer and open bucket.
type symbolState struct {
	watermark   time.Time
	pending     []market.NormalizedTrade
	acc         *market.Accumulator
	flushedUpTo time.Time
	hasFlushed  bool
}

func (p *partition) run() {
	for t := range p.ch {
		p.onTrade(t)
	}
	// Intake closed: drain every reorder buffer and flush open buckets.
	for _, s := range p.symbols {
		p.release(s, time.Time{}, true)
		if s.acc != nil {
			p.flushAcc(s)
		}
	}
}

func (p *partition) onTrade(t market.NormalizedTrade) {
	s, ok := p.symbols[t.Symbol]
	if !ok {
		s = &symbolState{}
		p.symbols[t.Symbol] = s
	}

	if !s.watermark.IsZero() && t.Timestamp.Before(s.watermark.Add(-p.lateness)) {
		p.dropLate(t, "behind watermark")
		return
	}
	if t.Timestamp.After(s.watermark) {
		s.watermark = t.Timestamp
	}
	s.pending = append(s.pending, t)

	// Trades at or before watermark-W are final: nothing that could still
	// arrive may precede them.
	p.release(s, s.watermark.Add(-p.lateness), false)
}

// release moves settled trades from the reorder buffer into the accumulator
// in sequence order. With all=true the whole buffer is settled.
func (p *partition) release(s *symbolState, upTo time.Time, all bool) {
	var settled, still []market.NormalizedTrade
	for _, t := range s.pending {
		if all || !t.Timestamp.After(upTo) {
			settled = append(settled, t)
		} else {
			still = append(still, t)
		}
	}
	if len(settled) == 0 {
		return
	}
	s.pending = still
	sort.Slice(settled, func(i, j int) bool { return settled[i].Sequence < settled[j].Sequence })
	for _, t := range settled {
		p.ingest(s, t)
	}
}

func (p *partition) ingest(s *symbolState, t market.NormalizedTrade) {
	if s.hasFlushed && !t.BucketStart.After(s.flushedUpTo) {
		p.dropLate(t, "bucket already flushed")
		return
	}
	if s.acc != nil && t.BucketStart.Before(s.acc.BucketStart()) {
		// Bucket progression is monotonic per symbol; a trade for an older
		// never-materialized bucket cannot reopen the past.
		p.dropLate(t, "bucket behind open bucket")
		return
	}
	if s.acc == nil || t.BucketStart.After(s.acc.BucketStart()) {
		if s.acc != nil {
			p.flushAcc(s)
		}
		s.acc = market.NewAccumulator(t.Symbol, t.BucketStart, p.countPolicy)
	}
	if err := s.acc.Ingest(t); err != nil {
		// Unreachable while the accumulator is open; surfaced for safety.
		p.log.Error("ingest failed", zap.String("symbol", t.Symbol), zap.Error(err))
		return
	}
	p.ingested++
}

func (p *partition) flushAcc(s *symbolState) {
	bar, err := s.acc.Flush()
	if err != nil {
		p.log.Error("flush failed", zap.String("symbol", s.acc.Symbol()), zap.Error(err))
		return
	}
	p.bars = append(p.bars, bar)
	s.flushedUpTo = s.acc.BucketStart()
	s.hasFlushed = true
	s.acc = nil
}

func (p *partition) dropLate(t market.NormalizedTrade, reason string) {
	p.late++
	p.log.Debug("late trade dropped",
		zap.String("symbol", t.Symbol),
		zap.Time("timestamp", t.Timestamp),
		zap.Int64("sequence", t.Sequence),
		zap.String("reason", reason))
}
