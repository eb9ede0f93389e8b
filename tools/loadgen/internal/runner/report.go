package runner

import (
	"fmt"
	"io"
	"sort"
	"time"
)

// Report aggregates the outcome of one load run.
type Report struct {
	Duration time.Duration

	TotalRequests  int64
	FailedRequests int64
	Throughput     float64 // successful requests per second

	AvgLatency time.Duration
	MinLatency time.Duration
	MaxLatency time.Duration
	P50Latency time.Duration
	P95Latency time.Duration
	P99Latency time.Duration

	Endpoints []EndpointReport
}

// EndpointReport summarizes one endpoint's share of the run.
type EndpointReport struct {
	Name   string
	Total  int64
	Failed int64
}

// ErrorRate is failed over total, zero when nothing ran.
func (r *Report) ErrorRate() float64 {
	if r.TotalRequests == 0 {
		return 0
	}
	return float64(r.FailedRequests) / float64(r.TotalRequests)
}

func (r *Runner) buildReport(elapsed time.Duration) *Report {
	r.mu.Lock()
	defer r.mu.Unlock()

	report := &Report{
		Duration:       elapsed,
		TotalRequests:  r.stats.total,
		FailedRequests: r.stats.failed,
	}
	if elapsed > 0 {
		report.Throughput = float64(r.stats.total-r.stats.failed) / elapsed.Seconds()
	}

	for name, es := range r.stats.byName {
		report.Endpoints = append(report.Endpoints, EndpointReport{
			Name:   name,
			Total:  es.total,
			Failed: es.failed,
		})
	}
	sort.Slice(report.Endpoints, func(i, j int) bool {
		return report.Endpoints[i].Name < report.Endpoints[j].Name
	})

	latencies := r.stats.latencies
	if len(latencies) == 0 {
		return report
	}

	sorted := make([]time.Duration, len(latencies))
	copy(sorted, latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, l := range sorted {
		sum += l
	}
	report.AvgLatency = sum / time.Duration(len(sorted))
	report.MinLatency = sorted[0]
	report.MaxLatency = sorted[len(sorted)-1]
	report.P50Latency = sorted[percentileIndex(len(sorted), 0.50)]
	report.P95Latency = sorted[percentileIndex(len(sorted), 0.95)]
	report.P99Latency = sorted[percentileIndex(len(sorted), 0.99)]

	return report
}

// percentileIndex returns the index of the pct-th percentile in an
// ascending-sorted list of n samples, clamped for small n.
func percentileIndex(n int, pct float64) int {
	idx := int(float64(n) * pct)
	if idx >= n {
		idx = n - 1
	}
	return idx
}

// Print writes a human-readable summary.
func (r *Report) Print(w io.Writer) {
	fmt.Fprintf(w, "\nLoad run finished in %s\n", r.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  requests:   %d total, %d failed (%.2f%% errors)\n",
		r.TotalRequests, r.FailedRequests, r.ErrorRate()*100)
	fmt.Fprintf(w, "  throughput: %.1f req/s\n", r.Throughput)
	if r.TotalRequests > r.FailedRequests {
		fmt.Fprintf(w, "  latency:    avg %s  min %s  max %s\n",
			r.AvgLatency.Round(time.Microsecond),
			r.MinLatency.Round(time.Microsecond),
			r.MaxLatency.Round(time.Microsecond))
		fmt.Fprintf(w, "  percentile: p50 %s  p95 %s  p99 %s\n",
			r.P50Latency.Round(time.Microsecond),
			r.P95Latency.Round(time.Microsecond),
			r.P99Latency.Round(time.Microsecond))
	}
	for _, ep := range r.Endpoints {
		fmt.Fprintf(w, "  %-28s %6d calls  %d failed\n", ep.Name, ep.Total, ep.Failed)
	}
}
