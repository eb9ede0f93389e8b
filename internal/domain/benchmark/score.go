package benchmark

// ScoreWeights controls how run metrics fold into the composite score
type ScoreWeights struct {
	// ResponseTimePenaltyMax caps the latency penalty
	ResponseTimePenaltyMax float64
	// ResponseTimeDivisorMS converts average latency into penalty points
	ResponseTimeDivisorMS float64
	// ThroughputBonusMax caps the throughput contribution
	ThroughputBonusMax float64
	// ThroughputDivisorRPS converts throughput into bonus points
	ThroughputDivisorRPS float64
	// ErrorPenaltyMax caps the error-rate penalty
	ErrorPenaltyMax float64
	// ErrorMultiplier converts the error ratio into penalty points
	ErrorMultiplier float64
	// ResourcePenaltyMax caps each of the CPU and memory delta penalties
	ResourcePenaltyMax float64
}

// DefaultScoreWeights returns the standard scoring configuration
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{
		ResponseTimePenaltyMax: 50,
		ResponseTimeDivisorMS:  20,
		ThroughputBonusMax:     20,
		ThroughputDivisorRPS:   5,
		ErrorPenaltyMax:        30,
		ErrorMultiplier:        1000,
		ResourcePenaltyMax:     10,
	}
}

// ComputeScore derives a 0..100 composite score from run metrics.
// The score starts at 100, loses points for latency, errors and host
// resource consumption, and earns back up to the throughput bonus.
func ComputeScore(avgMS, throughputRPS, errorRate float64, system SystemDelta, w ScoreWeights) float64 {
	score := 100.0

	if w.ResponseTimeDivisorMS > 0 {
		score -= minf(w.ResponseTimePenaltyMax, avgMS/w.ResponseTimeDivisorMS)
	}
	if w.ThroughputDivisorRPS > 0 {
		score += minf(w.ThroughputBonusMax, throughputRPS/w.ThroughputDivisorRPS) - w.ThroughputBonusMax
	}
	score -= minf(w.ErrorPenaltyMax, errorRate*w.ErrorMultiplier)
	score -= minf(w.ResourcePenaltyMax, maxf(0, system.CPUDelta()))
	score -= minf(w.ResourcePenaltyMax, maxf(0, system.MemoryDelta()))

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
