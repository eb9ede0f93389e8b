package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vectorcraft/tuner/internal/domain/metric"
)

type fakeProbe struct {
	cpu, memory, disk, rss          float64
	cpuErr, memErr, diskErr, rssErr error
}

func (p *fakeProbe) CPUPercent(context.Context) (float64, error)    { return p.cpu, p.cpuErr }
func (p *fakeProbe) MemoryPercent(context.Context) (float64, error) { return p.memory, p.memErr }
func (p *fakeProbe) DiskPercent(context.Context) (float64, error)   { return p.disk, p.diskErr }
func (p *fakeProbe) ProcessRSSMB(context.Context) (float64, error)  { return p.rss, p.rssErr }

func newTestCollector(probe *fakeProbe, opts ...CollectorOption) (*Collector, *Store) {
	store := newTestStore(nil)
	collector := NewCollector(store, probe, CollectorConfig{
		CollectionInterval: 20 * time.Millisecond,
		CleanupEnabled:     false,
	}, zap.NewNop(), opts...)
	return collector, store
}

func TestCollectOnce_RecordsProbeReadings(t *testing.T) {
	probe := &fakeProbe{cpu: 41.5, memory: 62.0, disk: 30.0, rss: 256.0}
	collector, store := newTestCollector(probe)

	collected, failed := collector.collectOnce(context.Background())

	assert.Equal(t, 4, collected)
	assert.Zero(t, failed)

	cpu, ok := store.Latest(metric.TypeCPUUsage)
	require.True(t, ok)
	assert.Equal(t, 41.5, cpu.Value)
	assert.Equal(t, "percent", cpu.Unit)

	mem, ok := store.Latest(metric.TypeMemoryUsage)
	require.True(t, ok)
	assert.Equal(t, 62.0, mem.Value)

	rss, ok := store.Latest(metric.TypeProcessRSS)
	require.True(t, ok)
	assert.Equal(t, 256.0, rss.Value)
	assert.Equal(t, "mb", rss.Unit)
}

func TestCollectOnce_SkipsFailedProbe(t *testing.T) {
	probe := &fakeProbe{memory: 70.0, disk: 20.0, rss: 128.0, cpuErr: errors.New("proc unavailable")}
	collector, store := newTestCollector(probe)

	collected, failed := collector.collectOnce(context.Background())

	assert.Equal(t, 3, collected)
	assert.Equal(t, 1, failed)

	_, ok := store.Latest(metric.TypeCPUUsage)
	assert.False(t, ok, "failed probe must not record a sample")
	_, ok = store.Latest(metric.TypeMemoryUsage)
	assert.True(t, ok)
}

func TestCollectOnce_DrainsRequestStats(t *testing.T) {
	probe := &fakeProbe{}
	requests := NewRequestStats()
	collector, store := newTestCollector(probe, WithRequestStats(requests))

	requests.Observe(10*time.Millisecond, 200)
	requests.Observe(30*time.Millisecond, 500)

	collected, _ := collector.collectOnce(context.Background())

	assert.Equal(t, 7, collected)

	avg, ok := store.Latest(metric.TypeResponseTimeAvg)
	require.True(t, ok)
	assert.InDelta(t, 20.0, avg.Value, 0.01)
	assert.Equal(t, "ms", avg.Unit)

	p95, ok := store.Latest(metric.TypeResponseTime95th)
	require.True(t, ok)
	assert.InDelta(t, 30.0, p95.Value, 0.01)

	errRate, ok := store.Latest(metric.TypeErrorRate)
	require.True(t, ok)
	assert.InDelta(t, 0.5, errRate.Value, 0.001)
	assert.Equal(t, "ratio", errRate.Unit)
}

func TestCollectOnce_NoRequestsNoResponseSamples(t *testing.T) {
	probe := &fakeProbe{}
	collector, store := newTestCollector(probe, WithRequestStats(NewRequestStats()))

	collected, _ := collector.collectOnce(context.Background())

	assert.Equal(t, 4, collected)
	_, ok := store.Latest(metric.TypeResponseTimeAvg)
	assert.False(t, ok)
	_, ok = store.Latest(metric.TypeErrorRate)
	assert.False(t, ok)
}

func TestCollectOnce_DrainsQueryStats(t *testing.T) {
	probe := &fakeProbe{}
	queries := NewQueryStats()
	collector, store := newTestCollector(probe, WithQueryStats(queries))

	queries.Observe(5 * time.Millisecond)
	queries.Observe(15 * time.Millisecond)

	collected, _ := collector.collectOnce(context.Background())

	assert.Equal(t, 5, collected)
	dbTime, ok := store.Latest(metric.TypeDatabaseQueryTime)
	require.True(t, ok)
	assert.InDelta(t, 10.0, dbTime.Value, 0.01)
}

func TestAdjustInterval_BackoffAndRecovery(t *testing.T) {
	collector, _ := newTestCollector(&fakeProbe{})
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	collector.adjustInterval(ticker, 0, 4)
	assert.True(t, collector.backoff)

	// Staying in backoff must be idempotent.
	collector.adjustInterval(ticker, 0, 4)
	assert.True(t, collector.backoff)

	collector.adjustInterval(ticker, 4, 0)
	assert.False(t, collector.backoff)
}

func TestAdjustInterval_PartialFailureIsNotBackoff(t *testing.T) {
	collector, _ := newTestCollector(&fakeProbe{})
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	collector.adjustInterval(ticker, 3, 1)
	assert.False(t, collector.backoff)
}

func TestCollector_StartStop(t *testing.T) {
	probe := &fakeProbe{cpu: 10, memory: 20, disk: 30, rss: 40}
	collector, store := newTestCollector(probe)

	collector.Start(context.Background())
	time.Sleep(90 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, collector.Stop(ctx))

	assert.GreaterOrEqual(t, store.Window().Len(), 4, "at least one collection cycle must have run")
}

func TestCollector_CleanupPrunesAtRetentionCutoff(t *testing.T) {
	repo := &fakeSampleRepo{deleted: 9}
	store := NewStore(metric.NewWindow(10), repo, metric.NewDefaultThresholdRegistry(), zap.NewNop())
	collector := NewCollector(store, &fakeProbe{}, CollectorConfig{
		CollectionInterval: time.Hour,
		CleanupEnabled:     true,
		Retention:          24 * time.Hour,
		CleanupInterval:    time.Hour,
	}, zap.NewNop())

	collector.cleanup(context.Background())

	assert.WithinDuration(t, time.Now().UTC().Add(-24*time.Hour), repo.cutoff, 5*time.Second)
}

func TestCollector_CleanupErrorDoesNotPanic(t *testing.T) {
	repo := &fakeSampleRepo{deleteErr: errors.New("locked")}
	store := NewStore(metric.NewWindow(10), repo, metric.NewDefaultThresholdRegistry(), zap.NewNop())
	collector := NewCollector(store, &fakeProbe{}, DefaultCollectorConfig(), zap.NewNop())

	assert.NotPanics(t, func() {
		collector.cleanup(context.Background())
	})
}

func TestNewCollector_AppliesDefaults(t *testing.T) {
	collector, _ := func() (*Collector, *Store) {
		store := newTestStore(nil)
		return NewCollector(store, &fakeProbe{}, CollectorConfig{}, nil), store
	}()

	assert.Equal(t, 30*time.Second, collector.config.CollectionInterval)
	assert.Equal(t, 7*24*time.Hour, collector.config.Retention)
	assert.Equal(t, time.Hour, collector.config.CleanupInterval)
	assert.NotNil(t, collector.logger)
}

func TestNewCollector_RegistersBreachHandler(t *testing.T) {
	store := newTestStore(nil)
	NewCollector(store, &fakeProbe{}, DefaultCollectorConfig(), zap.NewNop())

	assert.NotPanics(t, func() {
		store.Record(context.Background(), metric.NewSample(metric.TypeCPUUsage, 99, "percent"))
	})
}
