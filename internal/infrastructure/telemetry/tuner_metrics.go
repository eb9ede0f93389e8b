// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"time"

	"go.uber.org/zap"

	"go.opentelemetry.io/otel/metric"
)

// TunerMetrics provides domain metrics for the tuner.
// It tracks metric collection, issue detection, optimization executions,
// rollbacks, and benchmark activity.
type TunerMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	samplesTotal          *Counter
	collectionErrorsTotal *Counter
	issuesTotal           *Counter
	executionsTotal       *Counter
	rollbacksTotal        *Counter
	benchmarkRunsTotal    *Counter
	benchmarkReqsTotal    *Counter

	// Histogram metrics (distributions)
	executionDuration    *Histogram
	benchmarkReqDuration *Histogram

	// Gauge metrics (point-in-time values)
	cpuPercent          *FloatGauge
	memoryPercent       *FloatGauge
	responseTimeMS      *FloatGauge
	errorRatePercent    *FloatGauge
	activeOptimizations *Gauge
	rollbackStackDepth  *Gauge
}

// Outcome labels the result of an optimization execution or benchmark run.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
)

// OutcomeFor returns the outcome label for a boolean success flag.
func OutcomeFor(success bool) Outcome {
	if success {
		return OutcomeSuccess
	}
	return OutcomeFailed
}

// TunerMetricsConfig holds configuration for tuner metrics.
type TunerMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
}

// NewTunerMetrics creates a new TunerMetrics instance.
func NewTunerMetrics(cfg TunerMetricsConfig) (*TunerMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	tm := &TunerMetrics{
		meter:  cfg.Meter,
		logger: logger,
	}

	var err error

	// Collection metrics
	tm.samplesTotal, err = NewCounter(
		cfg.Meter,
		"tuner_metric_samples_total",
		"Total number of metric samples collected",
		"{sample}",
	)
	if err != nil {
		return nil, err
	}

	tm.collectionErrorsTotal, err = NewCounter(
		cfg.Meter,
		"tuner_collection_errors_total",
		"Total number of failed metric collection attempts",
		"{error}",
	)
	if err != nil {
		return nil, err
	}

	// Detection metrics
	tm.issuesTotal, err = NewCounter(
		cfg.Meter,
		"tuner_issues_detected_total",
		"Total number of performance issues detected",
		"{issue}",
	)
	if err != nil {
		return nil, err
	}

	// Execution metrics
	tm.executionsTotal, err = NewCounter(
		cfg.Meter,
		"tuner_optimizations_total",
		"Total number of optimization executions",
		"{execution}",
	)
	if err != nil {
		return nil, err
	}

	tm.executionDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "tuner_optimization_duration_seconds",
		Description: "Optimization execution latency distribution in seconds",
		Unit:        "s",
		Boundaries:  HTTPDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	tm.rollbacksTotal, err = NewCounter(
		cfg.Meter,
		"tuner_rollbacks_total",
		"Total number of optimization rollbacks",
		"{rollback}",
	)
	if err != nil {
		return nil, err
	}

	// Benchmark metrics
	tm.benchmarkRunsTotal, err = NewCounter(
		cfg.Meter,
		"tuner_benchmark_runs_total",
		"Total number of benchmark runs",
		"{run}",
	)
	if err != nil {
		return nil, err
	}

	tm.benchmarkReqsTotal, err = NewCounter(
		cfg.Meter,
		"tuner_benchmark_requests_total",
		"Total number of requests issued by benchmark runs",
		"{request}",
	)
	if err != nil {
		return nil, err
	}

	tm.benchmarkReqDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "tuner_benchmark_request_duration_seconds",
		Description: "Benchmark request latency distribution in seconds",
		Unit:        "s",
		Boundaries:  HTTPDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	// System health gauges
	tm.cpuPercent, err = NewFloatGauge(
		cfg.Meter,
		"tuner_system_cpu_percent",
		"Current CPU utilization",
		"%",
	)
	if err != nil {
		return nil, err
	}

	tm.memoryPercent, err = NewFloatGauge(
		cfg.Meter,
		"tuner_system_memory_percent",
		"Current memory utilization",
		"%",
	)
	if err != nil {
		return nil, err
	}

	tm.responseTimeMS, err = NewFloatGauge(
		cfg.Meter,
		"tuner_response_time_avg_ms",
		"Average response time over the active window",
		"ms",
	)
	if err != nil {
		return nil, err
	}

	tm.errorRatePercent, err = NewFloatGauge(
		cfg.Meter,
		"tuner_error_rate_percent",
		"Current request error rate",
		"%",
	)
	if err != nil {
		return nil, err
	}

	// Optimizer state gauges
	tm.activeOptimizations, err = NewGauge(
		cfg.Meter,
		"tuner_active_optimizations",
		"Number of optimizations currently being monitored",
		"{optimization}",
	)
	if err != nil {
		return nil, err
	}

	tm.rollbackStackDepth, err = NewGauge(
		cfg.Meter,
		"tuner_rollback_stack_depth",
		"Number of rollback points currently retained",
		"{point}",
	)
	if err != nil {
		return nil, err
	}

	return tm, nil
}

// =============================================================================
// Collection Metrics
// =============================================================================

// RecordSample records a collected metric sample.
// This should be called by the collector on every successful probe.
func (tm *TunerMetrics) RecordSample(ctx context.Context, metricType, status string) {
	tm.samplesTotal.Inc(ctx,
		AttrMetricType.String(metricType),
		AttrMetricStatus.String(status),
	)
}

// RecordCollectionError records a failed collection attempt for one metric type.
func (tm *TunerMetrics) RecordCollectionError(ctx context.Context, metricType string) {
	tm.collectionErrorsTotal.Inc(ctx, AttrMetricType.String(metricType))
}

// RecordSystemHealth records the current system health gauges.
// The collector calls this once per collection cycle.
func (tm *TunerMetrics) RecordSystemHealth(ctx context.Context, cpu, memory, responseTimeMS, errorRate float64) {
	tm.cpuPercent.Record(ctx, cpu)
	tm.memoryPercent.Record(ctx, memory)
	tm.responseTimeMS.Record(ctx, responseTimeMS)
	tm.errorRatePercent.Record(ctx, errorRate)
}

// =============================================================================
// Detection and Execution Metrics
// =============================================================================

// RecordIssueDetected records a detected performance issue.
func (tm *TunerMetrics) RecordIssueDetected(ctx context.Context, issueType, severity string) {
	tm.issuesTotal.Inc(ctx,
		AttrIssueType.String(issueType),
		AttrSeverity.String(severity),
	)
}

// RecordExecution records a completed optimization execution.
func (tm *TunerMetrics) RecordExecution(ctx context.Context, actionID string, outcome Outcome, source string, duration time.Duration) {
	tm.executionsTotal.Inc(ctx,
		AttrActionID.String(actionID),
		AttrOutcome.String(string(outcome)),
		AttrSource.String(source),
	)
	tm.executionDuration.RecordDuration(ctx, duration, AttrActionID.String(actionID))
}

// RecordRollback records a rollback of a previously applied optimization.
func (tm *TunerMetrics) RecordRollback(ctx context.Context, actionID string) {
	tm.rollbacksTotal.Inc(ctx, AttrActionID.String(actionID))
}

// RecordOptimizerState records the optimizer's current bookkeeping gauges.
func (tm *TunerMetrics) RecordOptimizerState(ctx context.Context, active, stackDepth int) {
	tm.activeOptimizations.Record(ctx, int64(active))
	tm.rollbackStackDepth.Record(ctx, int64(stackDepth))
}

// =============================================================================
// Benchmark Metrics
// =============================================================================

// RecordBenchmarkRun records a finished benchmark run.
func (tm *TunerMetrics) RecordBenchmarkRun(ctx context.Context, testID string, outcome Outcome) {
	tm.benchmarkRunsTotal.Inc(ctx,
		AttrTestID.String(testID),
		AttrOutcome.String(string(outcome)),
	)
}

// RecordBenchmarkRequest records a single request issued during a benchmark run.
func (tm *TunerMetrics) RecordBenchmarkRequest(ctx context.Context, testID string, success bool, duration time.Duration) {
	tm.benchmarkReqsTotal.Inc(ctx,
		AttrTestID.String(testID),
		AttrOutcome.String(string(OutcomeFor(success))),
	)
	tm.benchmarkReqDuration.RecordDuration(ctx, duration, AttrTestID.String(testID))
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewTunerMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
