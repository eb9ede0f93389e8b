package benchmark

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of a benchmark run
type State string

// Benchmark run states
const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// MaxStoredErrors caps how many error strings a result retains
const MaxStoredErrors = 10

// SystemDelta captures host resource usage around a run
type SystemDelta struct {
	CPUBefore    float64
	CPUAfter     float64
	MemoryBefore float64
	MemoryAfter  float64
}

// CPUDelta returns the CPU usage change across the run in percentage points
func (d SystemDelta) CPUDelta() float64 { return d.CPUAfter - d.CPUBefore }

// MemoryDelta returns the memory usage change across the run in percentage points
func (d SystemDelta) MemoryDelta() float64 { return d.MemoryAfter - d.MemoryBefore }

// Result is the aggregated outcome of a single benchmark run
type Result struct {
	ID                 uuid.UUID
	TestID             string
	State              State
	StartedAt          time.Time
	CompletedAt        time.Time
	DurationSeconds    float64
	TotalRequests      int64
	SuccessfulRequests int64
	FailedRequests     int64
	AvgResponseTimeMS  float64
	MinResponseTimeMS  float64
	MaxResponseTimeMS  float64
	P95ResponseTimeMS  float64
	P99ResponseTimeMS  float64
	ThroughputRPS      float64
	ErrorRate          float64
	Errors             []string
	System             SystemDelta
	CriteriaMet        bool
	Score              float64
	// FailureReason is set only when State is failed
	FailureReason string
}

// NewPendingResult creates a run record in the pending state
func NewPendingResult(testID string) *Result {
	return &Result{
		ID:     uuid.New(),
		TestID: testID,
		State:  StatePending,
	}
}

// MarkRunning transitions the run into the running state
func (r *Result) MarkRunning(at time.Time) {
	r.State = StateRunning
	r.StartedAt = at.UTC()
}

// MarkFailed records an aborted run along with the reason
func (r *Result) MarkFailed(at time.Time, reason string) {
	r.State = StateFailed
	r.CompletedAt = at.UTC()
	if !r.StartedAt.IsZero() {
		r.DurationSeconds = r.CompletedAt.Sub(r.StartedAt).Seconds()
	}
	r.FailureReason = reason
}

// LatencyStats summarizes a list of request latencies in milliseconds
type LatencyStats struct {
	Avg float64
	Min float64
	Max float64
	P95 float64
	P99 float64
}

// ComputeLatencyStats aggregates latencies into summary statistics.
// The input slice is not modified. An empty input yields zeroes.
func ComputeLatencyStats(latenciesMS []float64) LatencyStats {
	n := len(latenciesMS)
	if n == 0 {
		return LatencyStats{}
	}
	sorted := make([]float64, n)
	copy(sorted, latenciesMS)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	return LatencyStats{
		Avg: sum / float64(n),
		Min: sorted[0],
		Max: sorted[n-1],
		P95: percentile(sorted, 0.95),
		P99: percentile(sorted, 0.99),
	}
}

// percentile returns the nearest-rank percentile of an ascending-sorted
// list. The rank is clamped into the valid range so very small inputs
// resolve to the max rather than overflowing.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	idx := int(math.Ceil(p*float64(n))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx]
}

// Complete finalizes the run from raw per-request observations. Latencies
// cover successful requests only; failures contribute to counts and the
// error rate. Error strings beyond MaxStoredErrors are dropped.
func (r *Result) Complete(at time.Time, latenciesMS []float64, failed int64, errs []string, system SystemDelta, criteria SuccessCriteria, weights ScoreWeights) {
	r.State = StateCompleted
	r.CompletedAt = at.UTC()
	r.DurationSeconds = r.CompletedAt.Sub(r.StartedAt).Seconds()

	stats := ComputeLatencyStats(latenciesMS)
	r.SuccessfulRequests = int64(len(latenciesMS))
	r.FailedRequests = failed
	r.TotalRequests = r.SuccessfulRequests + r.FailedRequests
	r.AvgResponseTimeMS = stats.Avg
	r.MinResponseTimeMS = stats.Min
	r.MaxResponseTimeMS = stats.Max
	r.P95ResponseTimeMS = stats.P95
	r.P99ResponseTimeMS = stats.P99

	if r.DurationSeconds > 0 {
		r.ThroughputRPS = float64(r.SuccessfulRequests) / r.DurationSeconds
	}
	if r.TotalRequests > 0 {
		r.ErrorRate = float64(r.FailedRequests) / float64(r.TotalRequests)
	}

	if len(errs) > MaxStoredErrors {
		errs = errs[:MaxStoredErrors]
	}
	r.Errors = append([]string(nil), errs...)

	r.System = system
	r.CriteriaMet = criteria.Met(r.AvgResponseTimeMS, r.ThroughputRPS, r.ErrorRate)
	r.Score = ComputeScore(r.AvgResponseTimeMS, r.ThroughputRPS, r.ErrorRate, system, weights)
}
