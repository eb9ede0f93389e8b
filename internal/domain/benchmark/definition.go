package benchmark

import (
	"github.com/vectorcraft/tuner/internal/domain/shared"
)

// TestType classifies the load profile of a benchmark
type TestType string

// Benchmark test types
const (
	TestTypeLoad      TestType = "load"
	TestTypeStress    TestType = "stress"
	TestTypeEndurance TestType = "endurance"
	TestTypeSpike     TestType = "spike"
)

// IsValid reports whether the test type is known
func (t TestType) IsValid() bool {
	switch t {
	case TestTypeLoad, TestTypeStress, TestTypeEndurance, TestTypeSpike:
		return true
	}
	return false
}

// SuccessCriteria holds per-metric pass thresholds. Nil fields are not
// checked; a run passes only when every present criterion holds.
type SuccessCriteria struct {
	// AvgResponseTimeMS is the maximum allowed average latency
	AvgResponseTimeMS *float64
	// ThroughputRPS is the minimum required requests per second
	ThroughputRPS *float64
	// ErrorRate is the maximum allowed failed/total ratio
	ErrorRate *float64
}

// Met reports whether all present criteria hold for the given metrics
func (c SuccessCriteria) Met(avgMS, throughput, errorRate float64) bool {
	if c.AvgResponseTimeMS != nil && avgMS > *c.AvgResponseTimeMS {
		return false
	}
	if c.ThroughputRPS != nil && throughput < *c.ThroughputRPS {
		return false
	}
	if c.ErrorRate != nil && errorRate > *c.ErrorRate {
		return false
	}
	return true
}

// Definition is a benchmark test template, static or admin-defined
type Definition struct {
	ID              string
	Name            string
	Description     string
	TestType        TestType
	DurationSeconds int
	ConcurrentUsers int
	RampUpSeconds   int
	TargetEndpoint  string
	// Payload, when non-empty, switches requests from GET to POST
	Payload         string
	Headers         map[string]string
	SuccessCriteria SuccessCriteria
	Tags            []string
}

// Validate checks the definition's structural invariants
func (d Definition) Validate() error {
	if d.ID == "" {
		return shared.ErrInvalidInput.WithDetails("benchmark id is required")
	}
	if !d.TestType.IsValid() {
		return shared.ErrInvalidInput.WithDetails("unknown test type %q", d.TestType)
	}
	if d.DurationSeconds <= 0 {
		return shared.ErrInvalidInput.WithDetails("duration must be positive, got %d", d.DurationSeconds)
	}
	if d.ConcurrentUsers <= 0 {
		return shared.ErrInvalidInput.WithDetails("concurrent users must be positive, got %d", d.ConcurrentUsers)
	}
	if d.RampUpSeconds < 0 {
		return shared.ErrInvalidInput.WithDetails("ramp-up cannot be negative, got %d", d.RampUpSeconds)
	}
	if d.TargetEndpoint == "" {
		return shared.ErrInvalidInput.WithDetails("target endpoint is required")
	}
	return nil
}

func floatPtr(v float64) *float64 { return &v }

// DefaultDefinitions returns the seeded benchmark templates
func DefaultDefinitions() []Definition {
	return []Definition{
		{
			ID:              "baseline_load",
			Name:            "Baseline load",
			Description:     "Steady moderate load establishing the performance baseline",
			TestType:        TestTypeLoad,
			DurationSeconds: 60,
			ConcurrentUsers: 10,
			RampUpSeconds:   10,
			TargetEndpoint:  "/health",
			SuccessCriteria: SuccessCriteria{
				AvgResponseTimeMS: floatPtr(500),
				ThroughputRPS:     floatPtr(10),
				ErrorRate:         floatPtr(0.01),
			},
			Tags: []string{"baseline", "smoke"},
		},
		{
			ID:              "stress_peak",
			Name:            "Stress peak",
			Description:     "Heavy sustained load probing the saturation point",
			TestType:        TestTypeStress,
			DurationSeconds: 120,
			ConcurrentUsers: 50,
			RampUpSeconds:   30,
			TargetEndpoint:  "/health",
			SuccessCriteria: SuccessCriteria{
				AvgResponseTimeMS: floatPtr(2000),
				ErrorRate:         floatPtr(0.05),
			},
			Tags: []string{"stress"},
		},
		{
			ID:              "spike_burst",
			Name:            "Spike burst",
			Description:     "Sudden burst with minimal ramp-up to test recovery behavior",
			TestType:        TestTypeSpike,
			DurationSeconds: 30,
			ConcurrentUsers: 100,
			RampUpSeconds:   2,
			TargetEndpoint:  "/health",
			SuccessCriteria: SuccessCriteria{
				ErrorRate: floatPtr(0.10),
			},
			Tags: []string{"spike"},
		},
		{
			ID:              "endurance_soak",
			Name:            "Endurance soak",
			Description:     "Long low-intensity run watching for drift and leaks",
			TestType:        TestTypeEndurance,
			DurationSeconds: 600,
			ConcurrentUsers: 20,
			RampUpSeconds:   60,
			TargetEndpoint:  "/health",
			SuccessCriteria: SuccessCriteria{
				AvgResponseTimeMS: floatPtr(1000),
				ErrorRate:         floatPtr(0.02),
			},
			Tags: []string{"endurance", "soak"},
		},
	}
}
