package optimization

import "github.com/vectorcraft/tuner/internal/domain/metric"

// FeatureVector is the fixed feature layout consumed by anomaly detectors.
// Metrics absent from the source window are zero-filled.
type FeatureVector struct {
	MemoryUsage     float64
	CPUUsage        float64
	ResponseTimeAvg float64
	ErrorRate       float64
}

// FeaturesFromLatest builds a feature vector from the latest value per
// metric type, zero-filling missing metrics.
func FeaturesFromLatest(latest map[metric.Type]float64) FeatureVector {
	return FeatureVector{
		MemoryUsage:     latest[metric.TypeMemoryUsage],
		CPUUsage:        latest[metric.TypeCPUUsage],
		ResponseTimeAvg: latest[metric.TypeResponseTimeAvg],
		ErrorRate:       latest[metric.TypeErrorRate],
	}
}

// AnomalyDetector is an optional capability. When a trained model is
// available it classifies the latest feature vector; when it is not, the
// no-op implementation is selected at construction time so rule-based
// detection is unaffected.
type AnomalyDetector interface {
	// Detect returns a performance_anomaly issue and true when the
	// features are classified as anomalous
	Detect(features FeatureVector) (Issue, bool)
}

// NoopAnomalyDetector is the fallback used when no model is available
type NoopAnomalyDetector struct{}

// Detect never flags an anomaly
func (NoopAnomalyDetector) Detect(FeatureVector) (Issue, bool) {
	return Issue{}, false
}

var _ AnomalyDetector = (*NoopAnomalyDetector)(nil)
