package monitoring

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestStats_Drain(t *testing.T) {
	stats := NewRequestStats()
	stats.Observe(10*time.Millisecond, 200)
	stats.Observe(20*time.Millisecond, 200)
	stats.Observe(30*time.Millisecond, 500)

	snap := stats.Drain()

	assert.Equal(t, int64(3), snap.Count)
	assert.Equal(t, int64(1), snap.Failed)
	assert.InDelta(t, 20.0, snap.AvgMS, 0.01)
	assert.InDelta(t, 30.0, snap.P95MS, 0.01)
	assert.InDelta(t, 1.0/3.0, snap.ErrorRate, 0.001)
}

func TestRequestStats_DrainEmpty(t *testing.T) {
	stats := NewRequestStats()

	snap := stats.Drain()

	assert.Zero(t, snap.Count)
	assert.Zero(t, snap.Failed)
	assert.Zero(t, snap.AvgMS)
	assert.Zero(t, snap.P95MS)
	assert.Zero(t, snap.ErrorRate)
}

func TestRequestStats_DrainResets(t *testing.T) {
	stats := NewRequestStats()
	stats.Observe(10*time.Millisecond, 500)

	first := stats.Drain()
	second := stats.Drain()

	assert.Equal(t, int64(1), first.Count)
	assert.Zero(t, second.Count)
	assert.Zero(t, second.Failed)
}

func TestRequestStats_ClientErrorsAreNotFailures(t *testing.T) {
	stats := NewRequestStats()
	stats.Observe(5*time.Millisecond, 404)
	stats.Observe(5*time.Millisecond, 400)
	stats.Observe(5*time.Millisecond, 503)

	snap := stats.Drain()

	assert.Equal(t, int64(3), snap.Count)
	assert.Equal(t, int64(1), snap.Failed)
}

func TestRequestStats_ObserveFailure(t *testing.T) {
	stats := NewRequestStats()
	stats.ObserveFailure(250 * time.Millisecond)

	snap := stats.Drain()

	assert.Equal(t, int64(1), snap.Count)
	assert.Equal(t, int64(1), snap.Failed)
	assert.InDelta(t, 1.0, snap.ErrorRate, 0.001)
}

func TestRequestStats_ConcurrentObserve(t *testing.T) {
	stats := NewRequestStats()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				stats.Observe(time.Millisecond, 200)
			}
		}()
	}
	wg.Wait()

	snap := stats.Drain()
	assert.Equal(t, int64(1000), snap.Count)
}

func TestPercentileIndex(t *testing.T) {
	tests := []struct {
		n    int
		p    float64
		want int
	}{
		{1, 0.95, 0},
		{3, 0.95, 2},
		{10, 0.95, 9},
		{20, 0.95, 19},
		{100, 0.95, 95},
		{100, 0.99, 99},
		{200, 0.99, 198},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, percentileIndex(tt.n, tt.p), "n=%d p=%v", tt.n, tt.p)
	}
}

func TestRequestStats_P95WithOutlier(t *testing.T) {
	stats := NewRequestStats()
	for i := 0; i < 99; i++ {
		stats.Observe(10*time.Millisecond, 200)
	}
	stats.Observe(2*time.Second, 200)

	snap := stats.Drain()

	require.Equal(t, int64(100), snap.Count)
	assert.InDelta(t, 10.0, snap.P95MS, 0.01, "single outlier must not dominate p95")
	assert.InDelta(t, 29.9, snap.AvgMS, 0.1)
}

func TestQueryStats_Drain(t *testing.T) {
	stats := NewQueryStats()
	stats.Observe(4 * time.Millisecond)
	stats.Observe(8 * time.Millisecond)

	avg, count := stats.Drain()

	assert.Equal(t, int64(2), count)
	assert.InDelta(t, 6.0, avg, 0.01)
}

func TestQueryStats_DrainEmpty(t *testing.T) {
	stats := NewQueryStats()

	avg, count := stats.Drain()

	assert.Zero(t, count)
	assert.Zero(t, avg)
}

func TestQueryStats_DrainResets(t *testing.T) {
	stats := NewQueryStats()
	stats.Observe(10 * time.Millisecond)
	stats.Drain()

	avg, count := stats.Drain()

	assert.Zero(t, count)
	assert.Zero(t, avg)
}
