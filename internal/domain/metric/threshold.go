package metric

// Threshold holds the warning and critical boundaries for one metric type.
// Both comparisons are strict: a value equal to the boundary does not breach it.
type Threshold struct {
	MetricName        Type
	WarningThreshold  float64
	CriticalThreshold float64
	Unit              string
	Description       string
}

// Classify returns the status of a value against this threshold.
// value > critical is critical, value > warning is warning, else normal.
func (t Threshold) Classify(value float64) Status {
	if value > t.CriticalThreshold {
		return StatusCritical
	}
	if value > t.WarningThreshold {
		return StatusWarning
	}
	return StatusNormal
}

// ThresholdRegistry is the static metric-name to threshold table,
// loaded once at startup and read-only afterwards.
type ThresholdRegistry struct {
	thresholds map[Type]Threshold
}

// NewThresholdRegistry builds a registry from the given thresholds.
// Later entries for the same metric type overwrite earlier ones.
func NewThresholdRegistry(thresholds []Threshold) *ThresholdRegistry {
	m := make(map[Type]Threshold, len(thresholds))
	for _, th := range thresholds {
		m[th.MetricName] = th
	}
	return &ThresholdRegistry{thresholds: m}
}

// DefaultThresholds returns the built-in threshold table
func DefaultThresholds() []Threshold {
	return []Threshold{
		{MetricName: TypeCPUUsage, WarningThreshold: 70, CriticalThreshold: 90, Unit: "percent", Description: "Host CPU utilization"},
		{MetricName: TypeMemoryUsage, WarningThreshold: 75, CriticalThreshold: 90, Unit: "percent", Description: "Host memory utilization"},
		{MetricName: TypeDiskUsage, WarningThreshold: 80, CriticalThreshold: 95, Unit: "percent", Description: "Root filesystem utilization"},
		{MetricName: TypeResponseTimeAvg, WarningThreshold: 500, CriticalThreshold: 2000, Unit: "ms", Description: "Average request response time"},
		{MetricName: TypeResponseTime95th, WarningThreshold: 1000, CriticalThreshold: 5000, Unit: "ms", Description: "95th percentile response time"},
		{MetricName: TypeErrorRate, WarningThreshold: 0.05, CriticalThreshold: 0.10, Unit: "ratio", Description: "Request error rate"},
		{MetricName: TypeDatabaseQueryTime, WarningThreshold: 100, CriticalThreshold: 500, Unit: "ms", Description: "Average database query time"},
	}
}

// NewDefaultThresholdRegistry builds a registry from the built-in table
func NewDefaultThresholdRegistry() *ThresholdRegistry {
	return NewThresholdRegistry(DefaultThresholds())
}

// Lookup returns the threshold for a metric type, if one is registered
func (r *ThresholdRegistry) Lookup(t Type) (Threshold, bool) {
	th, ok := r.thresholds[t]
	return th, ok
}

// Classify returns the status of a value for the given metric type.
// Metric types without a registered threshold are always normal.
func (r *ThresholdRegistry) Classify(t Type, value float64) Status {
	th, ok := r.thresholds[t]
	if !ok {
		return StatusNormal
	}
	return th.Classify(value)
}

// All returns every registered threshold
func (r *ThresholdRegistry) All() []Threshold {
	out := make([]Threshold, 0, len(r.thresholds))
	for _, th := range r.thresholds {
		out = append(out, th)
	}
	return out
}
