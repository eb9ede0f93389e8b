package optimization

import (
	"time"

	"github.com/vectorcraft/tuner/internal/domain/metric"
)

// IssueType identifies a detected problem class
type IssueType string

// Issue types emitted by the detector
const (
	IssueHighCPUUsage          IssueType = "high_cpu_usage"
	IssueHighMemoryUsage       IssueType = "high_memory_usage"
	IssueHighDiskUsage         IssueType = "high_disk_usage"
	IssueSlowResponseTime      IssueType = "slow_response_time"
	IssueHighErrorRate         IssueType = "high_error_rate"
	IssueSlowDatabaseQueries   IssueType = "slow_database_queries"
	IssueIncreasingResourceUse IssueType = "increasing_resource_usage"
	IssueResponseInstability   IssueType = "response_time_instability"
	IssuePerformanceAnomaly    IssueType = "performance_anomaly"
)

// IssueTypeForMetric maps a breached metric to its issue type
func IssueTypeForMetric(t metric.Type) (IssueType, bool) {
	switch t {
	case metric.TypeCPUUsage:
		return IssueHighCPUUsage, true
	case metric.TypeMemoryUsage:
		return IssueHighMemoryUsage, true
	case metric.TypeDiskUsage:
		return IssueHighDiskUsage, true
	case metric.TypeResponseTimeAvg, metric.TypeResponseTime95th:
		return IssueSlowResponseTime, true
	case metric.TypeErrorRate:
		return IssueHighErrorRate, true
	case metric.TypeDatabaseQueryTime:
		return IssueSlowDatabaseQueries, true
	}
	return "", false
}

// Issue is one detected threshold breach or statistical pattern.
// Producing an issue has no side effects; it is input to the
// recommendation stage.
type Issue struct {
	Type       IssueType
	Severity   metric.Status
	MetricType metric.Type
	Value      float64
	// Threshold is the breached boundary for threshold issues
	Threshold float64
	// Slope is set for trend issues, Variance for instability issues
	Slope    float64
	Variance float64
	// Confidence is in [0,1]; trend and anomaly confidences are capped
	// below 1 by the detector
	Confidence float64
	DetectedAt time.Time
}

// IsCritical reports whether the issue carries critical severity
func (i Issue) IsCritical() bool {
	return i.Severity == metric.StatusCritical
}

// Categories returns the action categories this issue maps to,
// most specific first.
func (i Issue) Categories() []Category {
	switch i.Type {
	case IssueHighMemoryUsage:
		return []Category{CategoryMemory}
	case IssueHighCPUUsage:
		return []Category{CategoryCPU}
	case IssueHighDiskUsage:
		return []Category{CategoryDatabase, CategoryCaching}
	case IssueSlowResponseTime:
		return []Category{CategoryCaching, CategoryNetwork, CategoryDatabase}
	case IssueHighErrorRate:
		return []Category{CategoryStability}
	case IssueSlowDatabaseQueries:
		return []Category{CategoryDatabase}
	case IssueIncreasingResourceUse:
		switch i.MetricType {
		case metric.TypeMemoryUsage:
			return []Category{CategoryMemory}
		case metric.TypeCPUUsage:
			return []Category{CategoryCPU}
		}
		return []Category{CategoryMemory, CategoryCPU}
	case IssueResponseInstability:
		return []Category{CategoryStability, CategoryCaching}
	case IssuePerformanceAnomaly:
		return []Category{CategoryStability}
	}
	return nil
}
