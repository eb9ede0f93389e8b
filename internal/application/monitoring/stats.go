package monitoring

import (
	"math"
	"sort"
	"sync"
	"time"
)

// RequestStats accumulates per-request observations between collector
// ticks. The HTTP middleware feeds it; the collector drains it into
// response-time and error-rate samples once per interval.
type RequestStats struct {
	mu        sync.Mutex
	latencies []float64
	failed    int64
}

// NewRequestStats creates an empty accumulator.
func NewRequestStats() *RequestStats {
	return &RequestStats{}
}

// Observe records one served request. Responses with a 5xx status count
// against the error rate; client errors do not.
func (s *RequestStats) Observe(elapsed time.Duration, statusCode int) {
	ms := float64(elapsed.Microseconds()) / 1000.0

	s.mu.Lock()
	defer s.mu.Unlock()
	s.latencies = append(s.latencies, ms)
	if statusCode >= 500 {
		s.failed++
	}
}

// ObserveFailure records a request that never produced a response.
func (s *RequestStats) ObserveFailure(elapsed time.Duration) {
	ms := float64(elapsed.Microseconds()) / 1000.0

	s.mu.Lock()
	defer s.mu.Unlock()
	s.latencies = append(s.latencies, ms)
	s.failed++
}

// RequestSnapshot is the aggregate of one collection interval.
type RequestSnapshot struct {
	Count     int64
	Failed    int64
	AvgMS     float64
	P95MS     float64
	ErrorRate float64
}

// Drain returns the aggregate since the previous drain and resets the
// accumulator. A snapshot with Count zero means no requests were served.
func (s *RequestStats) Drain() RequestSnapshot {
	s.mu.Lock()
	latencies := s.latencies
	failed := s.failed
	s.latencies = nil
	s.failed = 0
	s.mu.Unlock()

	snap := RequestSnapshot{
		Count:  int64(len(latencies)),
		Failed: failed,
	}
	if snap.Count == 0 {
		return snap
	}

	var total float64
	for _, v := range latencies {
		total += v
	}
	snap.AvgMS = total / float64(snap.Count)

	sort.Float64s(latencies)
	snap.P95MS = latencies[percentileIndex(len(latencies), 0.95)]
	snap.ErrorRate = float64(failed) / float64(snap.Count)
	return snap
}

// percentileIndex returns floor(p*n) clamped to the last valid index.
func percentileIndex(n int, p float64) int {
	idx := int(math.Floor(p * float64(n)))
	if idx >= n {
		idx = n - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}

// QueryStats accumulates database query durations between collector
// ticks. The gorm logger's query observer feeds it.
type QueryStats struct {
	mu      sync.Mutex
	totalMS float64
	count   int64
}

// NewQueryStats creates an empty accumulator.
func NewQueryStats() *QueryStats {
	return &QueryStats{}
}

// Observe records one completed database query.
func (s *QueryStats) Observe(elapsed time.Duration) {
	ms := float64(elapsed.Microseconds()) / 1000.0

	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalMS += ms
	s.count++
}

// Drain returns the average query time since the previous drain and
// resets the accumulator. Count zero means no queries ran.
func (s *QueryStats) Drain() (avgMS float64, count int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count = s.count
	if count > 0 {
		avgMS = s.totalMS / float64(count)
	}
	s.totalMS = 0
	s.count = 0
	return avgMS, count
}
