package benchmark

import (
	"fmt"
	"math"

	"github.com/google/uuid"
)

// Change describes one metric whose value moved significantly between runs
type Change struct {
	Metric        string
	BaselineValue float64
	CurrentValue  float64
	// DeltaPercent is relative for latency and throughput, absolute
	// percentage points for the error rate
	DeltaPercent float64
	Improved     bool
}

// Comparison is the outcome of comparing a run against a baseline run
type Comparison struct {
	BaselineID            uuid.UUID
	CurrentID             uuid.UUID
	BaselineScore         float64
	CurrentScore          float64
	ImprovementPercentage float64
	RegressionDetected    bool
	SignificantChanges    []Change
	Recommendation        string
}

// Significance thresholds for metric movement between two runs
const (
	responseTimeChangeThreshold = 0.10
	throughputChangeThreshold   = 0.15
	errorRateChangeThreshold    = 0.01
	regressionScoreFactor       = 0.95
)

// Compare evaluates the current run against the baseline run. Scores
// drive the headline verdict; individual metrics surface as significant
// changes when they move past their thresholds.
func Compare(baseline, current *Result) Comparison {
	cmp := Comparison{
		BaselineID:    baseline.ID,
		CurrentID:     current.ID,
		BaselineScore: baseline.Score,
		CurrentScore:  current.Score,
	}

	if baseline.Score > 0 {
		cmp.ImprovementPercentage = (current.Score - baseline.Score) / baseline.Score * 100
	} else if current.Score > 0 {
		cmp.ImprovementPercentage = 100
	}
	cmp.RegressionDetected = current.Score < baseline.Score*regressionScoreFactor

	if c, ok := relativeChange("avg_response_time", baseline.AvgResponseTimeMS, current.AvgResponseTimeMS, responseTimeChangeThreshold, true); ok {
		cmp.SignificantChanges = append(cmp.SignificantChanges, c)
	}
	if c, ok := relativeChange("throughput", baseline.ThroughputRPS, current.ThroughputRPS, throughputChangeThreshold, false); ok {
		cmp.SignificantChanges = append(cmp.SignificantChanges, c)
	}
	if delta := current.ErrorRate - baseline.ErrorRate; math.Abs(delta) > errorRateChangeThreshold {
		cmp.SignificantChanges = append(cmp.SignificantChanges, Change{
			Metric:        "error_rate",
			BaselineValue: baseline.ErrorRate,
			CurrentValue:  current.ErrorRate,
			DeltaPercent:  delta * 100,
			Improved:      delta < 0,
		})
	}

	cmp.Recommendation = recommendationFor(cmp)
	return cmp
}

// relativeChange reports a metric movement when it exceeds the threshold
// relative to the baseline. lowerIsBetter flips the improvement verdict.
func relativeChange(metric string, base, cur, threshold float64, lowerIsBetter bool) (Change, bool) {
	if base == 0 {
		return Change{}, false
	}
	rel := (cur - base) / base
	if math.Abs(rel) <= threshold {
		return Change{}, false
	}
	improved := rel > 0
	if lowerIsBetter {
		improved = rel < 0
	}
	return Change{
		Metric:        metric,
		BaselineValue: base,
		CurrentValue:  cur,
		DeltaPercent:  rel * 100,
		Improved:      improved,
	}, true
}

func recommendationFor(cmp Comparison) string {
	switch {
	case cmp.RegressionDetected:
		return fmt.Sprintf(
			"Performance regression detected: score dropped from %.1f to %.1f (%.1f%%). Review recent changes before promoting this configuration.",
			cmp.BaselineScore, cmp.CurrentScore, cmp.ImprovementPercentage)
	case cmp.ImprovementPercentage >= 10:
		return fmt.Sprintf(
			"Significant improvement: score rose from %.1f to %.1f (+%.1f%%). Consider promoting this configuration as the new baseline.",
			cmp.BaselineScore, cmp.CurrentScore, cmp.ImprovementPercentage)
	case cmp.ImprovementPercentage > 0:
		return fmt.Sprintf(
			"Minor improvement: score rose from %.1f to %.1f (+%.1f%%). Keep the current configuration under observation.",
			cmp.BaselineScore, cmp.CurrentScore, cmp.ImprovementPercentage)
	default:
		return "No significant performance change detected between the two runs."
	}
}
