package monitoring

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vectorcraft/tuner/internal/domain/metric"
	"github.com/vectorcraft/tuner/internal/infrastructure/sysmetrics"
	"github.com/vectorcraft/tuner/internal/infrastructure/telemetry"
)

// CollectorConfig controls the collection and cleanup cadence.
type CollectorConfig struct {
	// CollectionInterval is the time between collection cycles.
	CollectionInterval time.Duration
	// CleanupEnabled turns on periodic pruning of persisted samples.
	CleanupEnabled bool
	// Retention is how long persisted samples are kept.
	Retention time.Duration
	// CleanupInterval is the time between pruning runs.
	CleanupInterval time.Duration
}

// DefaultCollectorConfig returns the default collector configuration.
func DefaultCollectorConfig() CollectorConfig {
	return CollectorConfig{
		CollectionInterval: 30 * time.Second,
		CleanupEnabled:     true,
		Retention:          7 * 24 * time.Hour,
		CleanupInterval:    1 * time.Hour,
	}
}

// Collector samples system probes and request accumulators on a fixed
// interval and records the readings into the store. Probe failures are
// logged and skipped; a cycle where every probe fails doubles the
// interval until a probe succeeds again.
type Collector struct {
	store        *Store
	probe        sysmetrics.Probe
	requestStats *RequestStats
	queryStats   *QueryStats
	metrics      *telemetry.TunerMetrics
	dbMetrics    *telemetry.DBMetrics
	poolStats    func() sql.DBStats
	config       CollectorConfig
	logger       *zap.Logger

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	backoff bool
}

// CollectorOption customizes optional collector inputs.
type CollectorOption func(*Collector)

// WithRequestStats wires the HTTP request accumulator.
func WithRequestStats(stats *RequestStats) CollectorOption {
	return func(c *Collector) {
		c.requestStats = stats
	}
}

// WithQueryStats wires the database query-time accumulator.
func WithQueryStats(stats *QueryStats) CollectorOption {
	return func(c *Collector) {
		c.queryStats = stats
	}
}

// WithTunerMetrics wires the telemetry instrument set.
func WithTunerMetrics(metrics *telemetry.TunerMetrics) CollectorOption {
	return func(c *Collector) {
		c.metrics = metrics
	}
}

// WithPoolStats wires connection pool gauge reporting. Both the stats
// source and the metrics sink must be non-nil for reporting to happen.
func WithPoolStats(source func() sql.DBStats, sink *telemetry.DBMetrics) CollectorOption {
	return func(c *Collector) {
		c.poolStats = source
		c.dbMetrics = sink
	}
}

// NewCollector creates a collector. It registers itself as the store's
// breach handler so threshold crossings surface in the log the moment
// they are recorded.
func NewCollector(store *Store, probe sysmetrics.Probe, config CollectorConfig, logger *zap.Logger, opts ...CollectorOption) *Collector {
	if config.CollectionInterval <= 0 {
		config.CollectionInterval = DefaultCollectorConfig().CollectionInterval
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultCollectorConfig().CleanupInterval
	}
	if config.Retention <= 0 {
		config.Retention = DefaultCollectorConfig().Retention
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Collector{
		store:  store,
		probe:  probe,
		config: config,
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	store.SetBreachHandler(c.onThresholdBreach)
	return c
}

// Start launches the collection loop and, if enabled, the cleanup loop.
func (c *Collector) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.collectLoop(ctx)

	if c.config.CleanupEnabled {
		c.wg.Add(1)
		go c.cleanupLoop(ctx)
	}

	c.logger.Info("metric collector started",
		zap.Duration("collection_interval", c.config.CollectionInterval),
		zap.Bool("cleanup_enabled", c.config.CleanupEnabled),
		zap.Duration("retention", c.config.Retention),
	)
}

// Stop shuts down the collector and waits for in-flight cycles.
func (c *Collector) Stop(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("metric collector stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("metric collector stop timeout: %w", ctx.Err())
	}
}

func (c *Collector) collectLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.CollectionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			collected, failed := c.collectOnce(ctx)
			c.adjustInterval(ticker, collected, failed)
		}
	}
}

// adjustInterval doubles the collection interval while entire cycles
// fail and restores it on the first cycle that records anything.
func (c *Collector) adjustInterval(ticker *time.Ticker, collected, failed int) {
	if collected == 0 && failed > 0 {
		if !c.backoff {
			c.backoff = true
			ticker.Reset(2 * c.config.CollectionInterval)
			c.logger.Warn("all metric probes failing, collection backing off",
				zap.Duration("interval", 2*c.config.CollectionInterval),
			)
		}
		return
	}
	if c.backoff {
		c.backoff = false
		ticker.Reset(c.config.CollectionInterval)
		c.logger.Info("metric collection recovered",
			zap.Duration("interval", c.config.CollectionInterval),
		)
	}
}

// collectOnce runs a single collection cycle. Each probe is read in
// isolation so one failing source never blocks the rest.
func (c *Collector) collectOnce(ctx context.Context) (collected, failed int) {
	var cpu, memory, responseAvg, errorRate float64

	if v, err := c.probe.CPUPercent(ctx); err != nil {
		c.recordFailure(ctx, metric.TypeCPUUsage, err)
		failed++
	} else {
		c.record(ctx, metric.NewSample(metric.TypeCPUUsage, v, "percent"))
		cpu = v
		collected++
	}

	if v, err := c.probe.MemoryPercent(ctx); err != nil {
		c.recordFailure(ctx, metric.TypeMemoryUsage, err)
		failed++
	} else {
		c.record(ctx, metric.NewSample(metric.TypeMemoryUsage, v, "percent"))
		memory = v
		collected++
	}

	if v, err := c.probe.DiskPercent(ctx); err != nil {
		c.recordFailure(ctx, metric.TypeDiskUsage, err)
		failed++
	} else {
		c.record(ctx, metric.NewSample(metric.TypeDiskUsage, v, "percent"))
		collected++
	}

	if v, err := c.probe.ProcessRSSMB(ctx); err != nil {
		c.recordFailure(ctx, metric.TypeProcessRSS, err)
		failed++
	} else {
		c.record(ctx, metric.NewSample(metric.TypeProcessRSS, v, "mb"))
		collected++
	}

	if c.requestStats != nil {
		if snap := c.requestStats.Drain(); snap.Count > 0 {
			c.record(ctx, metric.NewSample(metric.TypeResponseTimeAvg, snap.AvgMS, "ms"))
			c.record(ctx, metric.NewSample(metric.TypeResponseTime95th, snap.P95MS, "ms"))
			c.record(ctx, metric.NewSample(metric.TypeErrorRate, snap.ErrorRate, "ratio"))
			responseAvg = snap.AvgMS
			errorRate = snap.ErrorRate
			collected += 3
		}
	}

	if c.queryStats != nil {
		if avg, n := c.queryStats.Drain(); n > 0 {
			c.record(ctx, metric.NewSample(metric.TypeDatabaseQueryTime, avg, "ms"))
			collected++
		}
	}

	if c.metrics != nil {
		c.metrics.RecordSystemHealth(ctx, cpu, memory, responseAvg, errorRate*100)
	}
	if c.poolStats != nil && c.dbMetrics != nil {
		c.dbMetrics.RecordPoolStats(ctx, c.poolStats())
	}
	return collected, failed
}

func (c *Collector) record(ctx context.Context, sample metric.Sample) {
	recorded := c.store.Record(ctx, sample)
	if c.metrics != nil {
		c.metrics.RecordSample(ctx, recorded.Type.String(), string(recorded.Status))
	}
}

func (c *Collector) recordFailure(ctx context.Context, t metric.Type, err error) {
	c.logger.Warn("metric collection failed",
		zap.String("metric_type", t.String()),
		zap.Error(err),
	)
	if c.metrics != nil {
		c.metrics.RecordCollectionError(ctx, t.String())
	}
}

func (c *Collector) onThresholdBreach(sample metric.Sample) {
	fields := []zap.Field{
		zap.String("metric_type", sample.Type.String()),
		zap.Float64("value", sample.Value),
		zap.String("unit", sample.Unit),
	}
	if threshold, ok := c.store.Thresholds().Lookup(sample.Type); ok {
		fields = append(fields,
			zap.Float64("warning_threshold", threshold.WarningThreshold),
			zap.Float64("critical_threshold", threshold.CriticalThreshold),
		)
	}

	if sample.Status == metric.StatusCritical {
		c.logger.Error("metric crossed critical threshold", fields...)
		return
	}
	c.logger.Warn("metric crossed warning threshold", fields...)
}

func (c *Collector) cleanupLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.cleanup(ctx)
		}
	}
}

func (c *Collector) cleanup(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-c.config.Retention)
	deleted, err := c.store.PruneOlderThan(ctx, cutoff)
	if err != nil {
		c.logger.Error("failed to prune old metric samples", zap.Error(err))
		return
	}
	if deleted > 0 {
		c.logger.Info("pruned old metric samples",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff),
		)
	}
}
