// Package optimization implements the tuner's decision pipeline: issue
// detection over the metric window, recommendation generation from the
// action catalog, the safety gate, the executor with rollback capture,
// and the periodic service that drives them.
package optimization

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/vectorcraft/tuner/internal/application/monitoring"
	"github.com/vectorcraft/tuner/internal/domain/metric"
	"github.com/vectorcraft/tuner/internal/domain/optimization"
)

// Threshold breaches carry fixed confidence per severity; trend and
// anomaly confidence scale with signal magnitude instead.
const (
	warningBreachConfidence  = 0.7
	criticalBreachConfidence = 0.9
)

// DetectorConfig controls the issue detection rules.
type DetectorConfig struct {
	// Window is the sample lookback for one scan.
	Window time.Duration
	// MinTrendSamples is the fewest samples a trend or variance rule needs.
	MinTrendSamples int
	// SlopeThreshold is the least-squares slope above which resource
	// growth counts as a trend.
	SlopeThreshold float64
	// VarianceThreshold is the response-time variance (ms squared) above
	// which latency counts as unstable.
	VarianceThreshold float64
	// MaxRuleConfidence caps trend and variance confidence.
	MaxRuleConfidence float64
}

// DefaultDetectorConfig returns the default detection rules.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		Window:            5 * time.Minute,
		MinTrendSamples:   5,
		SlopeThreshold:    0.1,
		VarianceThreshold: 100,
		MaxRuleConfidence: 0.9,
	}
}

// thresholdScanOrder fixes the order threshold issues are emitted in.
var thresholdScanOrder = []metric.Type{
	metric.TypeCPUUsage,
	metric.TypeMemoryUsage,
	metric.TypeDiskUsage,
	metric.TypeResponseTimeAvg,
	metric.TypeResponseTime95th,
	metric.TypeErrorRate,
	metric.TypeDatabaseQueryTime,
}

// trendScanTypes are the metrics the growth-trend rule applies to.
var trendScanTypes = []metric.Type{
	metric.TypeMemoryUsage,
	metric.TypeCPUUsage,
}

// Detector turns the recent metric window into an ordered issue list.
// Detection has no side effects; the issue list is input to the
// recommendation stage.
type Detector struct {
	store   *monitoring.Store
	anomaly optimization.AnomalyDetector
	config  DetectorConfig
	logger  *zap.Logger
}

// NewDetector creates a detector. A nil anomaly detector falls back to
// the no-op implementation so rule-based detection is unaffected.
func NewDetector(store *monitoring.Store, anomaly optimization.AnomalyDetector, config DetectorConfig, logger *zap.Logger) *Detector {
	def := DefaultDetectorConfig()
	if config.Window <= 0 {
		config.Window = def.Window
	}
	if config.MinTrendSamples <= 0 {
		config.MinTrendSamples = def.MinTrendSamples
	}
	if config.SlopeThreshold <= 0 {
		config.SlopeThreshold = def.SlopeThreshold
	}
	if config.VarianceThreshold <= 0 {
		config.VarianceThreshold = def.VarianceThreshold
	}
	if config.MaxRuleConfidence <= 0 {
		config.MaxRuleConfidence = def.MaxRuleConfidence
	}
	if anomaly == nil {
		anomaly = optimization.NoopAnomalyDetector{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{
		store:   store,
		anomaly: anomaly,
		config:  config,
		logger:  logger,
	}
}

// Detect scans the recent window and returns threshold, trend,
// instability and anomaly issues in a fixed order.
func (d *Detector) Detect(ctx context.Context) []optimization.Issue {
	now := time.Now().UTC()
	issues := d.detectThresholdBreaches(now)
	issues = append(issues, d.detectTrends(now)...)
	issues = append(issues, d.detectInstability(now)...)

	features := optimization.FeaturesFromLatest(d.store.Window().LatestValues())
	if issue, flagged := d.anomaly.Detect(features); flagged {
		if issue.DetectedAt.IsZero() {
			issue.DetectedAt = now
		}
		d.logger.Warn("anomaly detector flagged current metrics",
			zap.Float64("confidence", issue.Confidence),
		)
		issues = append(issues, issue)
	}

	if len(issues) > 0 {
		d.logger.Info("performance issues detected", zap.Int("count", len(issues)))
	}
	return issues
}

func (d *Detector) detectThresholdBreaches(now time.Time) []optimization.Issue {
	var issues []optimization.Issue
	for _, t := range thresholdScanOrder {
		sample, ok := d.store.Latest(t)
		if !ok || sample.Status == metric.StatusNormal {
			continue
		}
		// A reading older than the scan window is stale, not a live breach.
		if sample.Timestamp.Before(now.Add(-d.config.Window)) {
			continue
		}
		issueType, known := optimization.IssueTypeForMetric(t)
		if !known {
			continue
		}
		threshold, found := d.store.Thresholds().Lookup(t)
		if !found {
			continue
		}

		boundary := threshold.WarningThreshold
		confidence := warningBreachConfidence
		if sample.Status == metric.StatusCritical {
			boundary = threshold.CriticalThreshold
			confidence = criticalBreachConfidence
		}

		issues = append(issues, optimization.Issue{
			Type:       issueType,
			Severity:   sample.Status,
			MetricType: t,
			Value:      sample.Value,
			Threshold:  boundary,
			Confidence: confidence,
			DetectedAt: now,
		})
	}
	return issues
}

func (d *Detector) detectTrends(now time.Time) []optimization.Issue {
	var issues []optimization.Issue
	for _, t := range trendScanTypes {
		samples := d.store.Recent(t, d.config.Window)
		if len(samples) < d.config.MinTrendSamples {
			continue
		}
		slope := leastSquaresSlope(sampleValues(samples))
		if slope <= d.config.SlopeThreshold {
			continue
		}

		issues = append(issues, optimization.Issue{
			Type:       optimization.IssueIncreasingResourceUse,
			Severity:   metric.StatusWarning,
			MetricType: t,
			Value:      samples[len(samples)-1].Value,
			Slope:      slope,
			Confidence: d.trendConfidence(slope),
			DetectedAt: now,
		})
	}
	return issues
}

func (d *Detector) detectInstability(now time.Time) []optimization.Issue {
	samples := d.store.Recent(metric.TypeResponseTimeAvg, d.config.Window)
	if len(samples) < d.config.MinTrendSamples {
		return nil
	}
	variance := populationVariance(sampleValues(samples))
	if variance <= d.config.VarianceThreshold {
		return nil
	}

	return []optimization.Issue{{
		Type:       optimization.IssueResponseInstability,
		Severity:   metric.StatusWarning,
		MetricType: metric.TypeResponseTimeAvg,
		Value:      samples[len(samples)-1].Value,
		Variance:   variance,
		Confidence: d.varianceConfidence(variance),
		DetectedAt: now,
	}}
}

// trendConfidence grows linearly with slope magnitude from 0.5 and is
// capped at MaxRuleConfidence.
func (d *Detector) trendConfidence(slope float64) float64 {
	confidence := 0.5 + slope/10
	if confidence > d.config.MaxRuleConfidence {
		confidence = d.config.MaxRuleConfidence
	}
	return confidence
}

// varianceConfidence grows linearly with how far the variance exceeds
// its threshold and is capped at MaxRuleConfidence.
func (d *Detector) varianceConfidence(variance float64) float64 {
	confidence := 0.5 + variance/(10*d.config.VarianceThreshold)
	if confidence > d.config.MaxRuleConfidence {
		confidence = d.config.MaxRuleConfidence
	}
	return confidence
}

func sampleValues(samples []metric.Sample) []float64 {
	values := make([]float64, len(samples))
	for i, s := range samples {
		values[i] = s.Value
	}
	return values
}

// leastSquaresSlope fits value = a + b*index over the series and
// returns b.
func leastSquaresSlope(values []float64) float64 {
	n := float64(len(values))
	if n < 2 {
		return 0
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

// populationVariance is the mean squared deviation over the series.
func populationVariance(values []float64) float64 {
	n := float64(len(values))
	if n == 0 {
		return 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / n

	var acc float64
	for _, v := range values {
		diff := v - mean
		acc += diff * diff
	}
	return acc / n
}
