package optimization

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vectorcraft/tuner/internal/application/monitoring"
	"github.com/vectorcraft/tuner/internal/domain/metric"
	"github.com/vectorcraft/tuner/internal/domain/optimization"
)

// GateConfig controls the safety gate policy.
type GateConfig struct {
	// MemoryCeilingPercent fails an action's safety check above it.
	MemoryCeilingPercent float64
	// CPUCeilingPercent fails an action's safety check above it.
	CPUCeilingPercent float64
	// MinConfidence is the adjusted-confidence floor.
	MinConfidence float64
	// MaxActive is the concurrent active-optimization ceiling.
	MaxActive int
	// StabilityErrorRate is the highest recent error rate of a stable system.
	StabilityErrorRate float64
	// StabilityWindow is the error-rate lookback.
	StabilityWindow time.Duration
	// FailureWindow is the optimization-failure lookback.
	FailureWindow time.Duration
	// MaxRecentFailures is how many failures inside FailureWindow a
	// stable system tolerates.
	MaxRecentFailures int
}

// DefaultGateConfig returns the default safety policy.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		MemoryCeilingPercent: 95,
		CPUCeilingPercent:    95,
		MinConfidence:        0.7,
		MaxActive:            3,
		StabilityErrorRate:   0.05,
		StabilityWindow:      5 * time.Minute,
		FailureWindow:        30 * time.Minute,
		MaxRecentFailures:    2,
	}
}

// ActiveView is the executor state the gate consults.
type ActiveView interface {
	// ActiveCount returns how many optimizations are currently active.
	ActiveCount() int
	// NonRevertible reports whether the action is active with its
	// rollback point already evicted.
	NonRevertible(actionID string) bool
}

// GateDecision is the outcome of one gate evaluation.
type GateDecision struct {
	Allowed bool
	Reason  string
	// Unstable marks denials caused by system-wide instability rather
	// than a failed per-action check.
	Unstable bool
}

func allow() GateDecision {
	return GateDecision{Allowed: true}
}

func deny(format string, args ...any) GateDecision {
	return GateDecision{Reason: fmt.Sprintf(format, args...)}
}

func denyUnstable(format string, args ...any) GateDecision {
	return GateDecision{Reason: fmt.Sprintf(format, args...), Unstable: true}
}

// SafetyGate decides whether an action may execute right now. Every
// check runs against live state, so callers evaluate at dequeue time
// rather than caching a decision made at recommendation time.
type SafetyGate struct {
	store   *monitoring.Store
	history *optimization.ResultHistory
	active  ActiveView
	config  GateConfig
	logger  *zap.Logger
}

// NewSafetyGate creates a gate over the given state sources.
func NewSafetyGate(store *monitoring.Store, history *optimization.ResultHistory, active ActiveView, config GateConfig, logger *zap.Logger) *SafetyGate {
	def := DefaultGateConfig()
	if config.MemoryCeilingPercent <= 0 {
		config.MemoryCeilingPercent = def.MemoryCeilingPercent
	}
	if config.CPUCeilingPercent <= 0 {
		config.CPUCeilingPercent = def.CPUCeilingPercent
	}
	if config.MinConfidence <= 0 {
		config.MinConfidence = def.MinConfidence
	}
	if config.MaxActive <= 0 {
		config.MaxActive = def.MaxActive
	}
	if config.StabilityErrorRate <= 0 {
		config.StabilityErrorRate = def.StabilityErrorRate
	}
	if config.StabilityWindow <= 0 {
		config.StabilityWindow = def.StabilityWindow
	}
	if config.FailureWindow <= 0 {
		config.FailureWindow = def.FailureWindow
	}
	if config.MaxRecentFailures <= 0 {
		config.MaxRecentFailures = def.MaxRecentFailures
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SafetyGate{
		store:   store,
		history: history,
		active:  active,
		config:  config,
		logger:  logger,
	}
}

// Evaluate runs every gate check against current state. All checks must
// hold for the action to clear.
func (g *SafetyGate) Evaluate(action optimization.Action) GateDecision {
	if action.Confidence < g.config.MinConfidence {
		return deny("confidence %.2f below floor %.2f", action.Confidence, g.config.MinConfidence)
	}

	if count := g.active.ActiveCount(); count >= g.config.MaxActive {
		return deny("active optimization limit reached (%d)", count)
	}

	if action.SafetyCheck {
		if decision := g.resourceCheck(); !decision.Allowed {
			return decision
		}
	}

	if action.RiskLevel == optimization.RiskHigh {
		if !action.RollbackAvailable {
			return deny("high risk action %s has no rollback", action.ID)
		}
		if g.active.NonRevertible(action.ID) {
			return deny("active instance of %s lost its rollback point", action.ID)
		}
	}

	if decision := g.stabilityCheck(); !decision.Allowed {
		return decision
	}

	return allow()
}

// resourceCheck fails while the system runs too hot to tune safely.
// A missing reading passes: there is no evidence of overload.
func (g *SafetyGate) resourceCheck() GateDecision {
	if sample, ok := g.store.Latest(metric.TypeMemoryUsage); ok && sample.Value > g.config.MemoryCeilingPercent {
		return deny("memory usage %.1f%% above safety ceiling %.0f%%", sample.Value, g.config.MemoryCeilingPercent)
	}
	if sample, ok := g.store.Latest(metric.TypeCPUUsage); ok && sample.Value > g.config.CPUCeilingPercent {
		return deny("cpu usage %.1f%% above safety ceiling %.0f%%", sample.Value, g.config.CPUCeilingPercent)
	}
	return allow()
}

// stabilityCheck verifies the recent error rate and the optimization
// failure count are both inside their stable bands.
func (g *SafetyGate) stabilityCheck() GateDecision {
	samples := g.store.Recent(metric.TypeErrorRate, g.config.StabilityWindow)
	if len(samples) > 0 {
		var total float64
		for _, s := range samples {
			total += s.Value
		}
		rate := total / float64(len(samples))
		if rate > g.config.StabilityErrorRate {
			return denyUnstable("error rate %.3f over last %s above stability band %.3f", rate, g.config.StabilityWindow, g.config.StabilityErrorRate)
		}
	}

	cutoff := time.Now().UTC().Add(-g.config.FailureWindow)
	if failures := g.history.FailuresSince(cutoff); failures > g.config.MaxRecentFailures {
		return denyUnstable("%d optimization failures in last %s", failures, g.config.FailureWindow)
	}

	return allow()
}
