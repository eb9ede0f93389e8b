package benchmark

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeLatencyStats(t *testing.T) {
	t.Run("percentiles on a full distribution", func(t *testing.T) {
		latencies := make([]float64, 100)
		for i := range latencies {
			latencies[i] = float64(i + 1)
		}

		stats := ComputeLatencyStats(latencies)

		assert.InDelta(t, 50.5, stats.Avg, 1e-9)
		assert.Equal(t, 1.0, stats.Min)
		assert.Equal(t, 100.0, stats.Max)
		assert.Equal(t, 95.0, stats.P95)
		assert.Equal(t, 99.0, stats.P99)
	})

	t.Run("small samples clamp to the max", func(t *testing.T) {
		stats := ComputeLatencyStats([]float64{42})
		assert.Equal(t, 42.0, stats.P95)
		assert.Equal(t, 42.0, stats.P99)

		stats = ComputeLatencyStats([]float64{30, 10})
		assert.Equal(t, 30.0, stats.P95)
		assert.Equal(t, 30.0, stats.P99)
	})

	t.Run("empty input yields zeroes", func(t *testing.T) {
		assert.Equal(t, LatencyStats{}, ComputeLatencyStats(nil))
	})

	t.Run("input slice is not reordered", func(t *testing.T) {
		latencies := []float64{300, 100, 200}
		ComputeLatencyStats(latencies)
		assert.Equal(t, []float64{300, 100, 200}, latencies)
	})
}

func TestComputeScore(t *testing.T) {
	weights := DefaultScoreWeights()

	t.Run("stays within bounds under extreme inputs", func(t *testing.T) {
		worst := ComputeScore(100000, 0, 1.0, SystemDelta{CPUBefore: 10, CPUAfter: 90, MemoryBefore: 10, MemoryAfter: 90}, weights)
		assert.Equal(t, 0.0, worst)

		best := ComputeScore(0, 10000, 0, SystemDelta{}, weights)
		assert.LessOrEqual(t, best, 100.0)
		assert.GreaterOrEqual(t, best, 0.0)
	})

	t.Run("fast clean run at high throughput scores full marks", func(t *testing.T) {
		score := ComputeScore(0, 500, 0, SystemDelta{}, weights)
		assert.Equal(t, 100.0, score)
	})

	t.Run("latency penalty scales with average", func(t *testing.T) {
		// 200ms average costs 10 points, throughput bonus maxed out
		score := ComputeScore(200, 500, 0, SystemDelta{}, weights)
		assert.InDelta(t, 90.0, score, 1e-9)
	})

	t.Run("low throughput forfeits the bonus", func(t *testing.T) {
		// 25 rps earns 5 of 20 bonus points
		score := ComputeScore(0, 25, 0, SystemDelta{}, weights)
		assert.InDelta(t, 85.0, score, 1e-9)
	})

	t.Run("error penalty caps out", func(t *testing.T) {
		// 3% errors already hits the 30-point cap
		withCap := ComputeScore(0, 500, 0.03, SystemDelta{}, weights)
		beyond := ComputeScore(0, 500, 0.50, SystemDelta{}, weights)
		assert.Equal(t, withCap, beyond)
		assert.InDelta(t, 70.0, withCap, 1e-9)
	})

	t.Run("resource deltas only penalize increases", func(t *testing.T) {
		released := SystemDelta{CPUBefore: 80, CPUAfter: 40, MemoryBefore: 70, MemoryAfter: 50}
		score := ComputeScore(0, 500, 0, released, weights)
		assert.Equal(t, 100.0, score)

		consumed := SystemDelta{CPUBefore: 40, CPUAfter: 44, MemoryBefore: 50, MemoryAfter: 53}
		score = ComputeScore(0, 500, 0, consumed, weights)
		assert.InDelta(t, 93.0, score, 1e-9)
	})
}

func TestResultLifecycle(t *testing.T) {
	t.Run("complete aggregates raw observations", func(t *testing.T) {
		r := NewPendingResult("baseline_load")
		require.Equal(t, StatePending, r.State)

		start := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
		r.MarkRunning(start)
		assert.Equal(t, StateRunning, r.State)

		latencies := []float64{100, 200, 300}
		r.Complete(start.Add(10*time.Second), latencies, 1, []string{"HTTP 500"}, SystemDelta{}, SuccessCriteria{}, DefaultScoreWeights())

		assert.Equal(t, StateCompleted, r.State)
		assert.Equal(t, int64(4), r.TotalRequests)
		assert.Equal(t, int64(3), r.SuccessfulRequests)
		assert.Equal(t, int64(1), r.FailedRequests)
		assert.InDelta(t, 200.0, r.AvgResponseTimeMS, 1e-9)
		assert.Equal(t, 100.0, r.MinResponseTimeMS)
		assert.Equal(t, 300.0, r.MaxResponseTimeMS)
		assert.InDelta(t, 10.0, r.DurationSeconds, 1e-9)
		assert.InDelta(t, 0.3, r.ThroughputRPS, 1e-9)
		assert.InDelta(t, 0.25, r.ErrorRate, 1e-9)
		assert.True(t, r.CriteriaMet)
	})

	t.Run("stored errors are capped", func(t *testing.T) {
		r := NewPendingResult("stress_peak")
		r.MarkRunning(time.Now())

		errs := make([]string, 25)
		for i := range errs {
			errs[i] = fmt.Sprintf("timeout %d", i)
		}
		r.Complete(time.Now().Add(time.Second), []float64{50}, 25, errs, SystemDelta{}, SuccessCriteria{}, DefaultScoreWeights())

		assert.Len(t, r.Errors, MaxStoredErrors)
		assert.Equal(t, "timeout 0", r.Errors[0])
	})

	t.Run("no requests means zero rate and throughput", func(t *testing.T) {
		r := NewPendingResult("spike_burst")
		r.MarkRunning(time.Now())
		r.Complete(time.Now().Add(time.Second), nil, 0, nil, SystemDelta{}, SuccessCriteria{}, DefaultScoreWeights())

		assert.Zero(t, r.ErrorRate)
		assert.Zero(t, r.AvgResponseTimeMS)
		assert.Zero(t, r.ThroughputRPS)
	})

	t.Run("failed runs carry the reason", func(t *testing.T) {
		r := NewPendingResult("baseline_load")
		r.MarkRunning(time.Now())
		r.MarkFailed(time.Now().Add(time.Second), "target unreachable")

		assert.Equal(t, StateFailed, r.State)
		assert.Equal(t, "target unreachable", r.FailureReason)
		assert.Greater(t, r.DurationSeconds, 0.0)
	})
}

func TestSuccessCriteria(t *testing.T) {
	tests := []struct {
		name     string
		criteria SuccessCriteria
		avgMS    float64
		rps      float64
		errRate  float64
		want     bool
	}{
		{"empty criteria always pass", SuccessCriteria{}, 9999, 0, 1, true},
		{"latency within bound", SuccessCriteria{AvgResponseTimeMS: floatPtr(500)}, 500, 0, 0, true},
		{"latency over bound", SuccessCriteria{AvgResponseTimeMS: floatPtr(500)}, 500.1, 0, 0, false},
		{"throughput below floor", SuccessCriteria{ThroughputRPS: floatPtr(10)}, 0, 9.9, 0, false},
		{"error rate over ceiling", SuccessCriteria{ErrorRate: floatPtr(0.01)}, 0, 100, 0.02, false},
		{"all present and passing", SuccessCriteria{AvgResponseTimeMS: floatPtr(500), ThroughputRPS: floatPtr(10), ErrorRate: floatPtr(0.01)}, 120, 50, 0.005, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.criteria.Met(tt.avgMS, tt.rps, tt.errRate))
		})
	}
}

func TestDefinition(t *testing.T) {
	t.Run("seeded templates are valid and unique", func(t *testing.T) {
		defs := DefaultDefinitions()
		require.NotEmpty(t, defs)

		seen := map[string]bool{}
		for _, d := range defs {
			require.NoError(t, d.Validate(), d.ID)
			assert.False(t, seen[d.ID], "duplicate id %s", d.ID)
			seen[d.ID] = true
		}
	})

	t.Run("validation rejects broken definitions", func(t *testing.T) {
		valid := Definition{
			ID:              "custom",
			TestType:        TestTypeLoad,
			DurationSeconds: 30,
			ConcurrentUsers: 5,
			TargetEndpoint:  "/api/v1/health",
		}
		require.NoError(t, valid.Validate())

		broken := valid
		broken.ID = ""
		assert.Error(t, broken.Validate())

		broken = valid
		broken.TestType = "chaos"
		assert.Error(t, broken.Validate())

		broken = valid
		broken.DurationSeconds = 0
		assert.Error(t, broken.Validate())

		broken = valid
		broken.ConcurrentUsers = -1
		assert.Error(t, broken.Validate())

		broken = valid
		broken.RampUpSeconds = -5
		assert.Error(t, broken.Validate())

		broken = valid
		broken.TargetEndpoint = ""
		assert.Error(t, broken.Validate())
	})
}
