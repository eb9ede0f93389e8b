package optimization

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/vectorcraft/tuner/internal/application/monitoring"
	"github.com/vectorcraft/tuner/internal/domain/metric"
	"github.com/vectorcraft/tuner/internal/domain/optimization"
	"github.com/vectorcraft/tuner/internal/domain/shared"
)

// RollbackPolicy controls when an active action is reverted.
type RollbackPolicy struct {
	// DegradationThreshold is the normalized worsening of the category's
	// health metric that triggers a revert.
	DegradationThreshold float64
	// MaxSideEffects is the side-effect count on the latest result that
	// triggers a revert. Inherited heuristic, kept configurable.
	MaxSideEffects int
}

// DefaultRollbackPolicy returns the default revert policy.
func DefaultRollbackPolicy() RollbackPolicy {
	return RollbackPolicy{
		DegradationThreshold: 0.10,
		MaxSideEffects:       2,
	}
}

// categoryHealthMetric maps each category to the metric its degradation
// is judged on.
var categoryHealthMetric = map[optimization.Category]metric.Type{
	optimization.CategoryMemory:    metric.TypeMemoryUsage,
	optimization.CategoryCPU:       metric.TypeCPUUsage,
	optimization.CategoryNetwork:   metric.TypeResponseTimeAvg,
	optimization.CategoryDatabase:  metric.TypeDatabaseQueryTime,
	optimization.CategoryCaching:   metric.TypeResponseTimeAvg,
	optimization.CategoryStability: metric.TypeErrorRate,
}

// RollbackMonitor watches active actions and reverts the ones that made
// things worse. It runs on the optimizer cadence.
type RollbackMonitor struct {
	executor *Executor
	store    *monitoring.Store
	policy   RollbackPolicy
	logger   *zap.Logger
}

// NewRollbackMonitor creates a monitor over the executor's active set.
func NewRollbackMonitor(executor *Executor, store *monitoring.Store, policy RollbackPolicy, logger *zap.Logger) *RollbackMonitor {
	def := DefaultRollbackPolicy()
	if policy.DegradationThreshold <= 0 {
		policy.DegradationThreshold = def.DegradationThreshold
	}
	if policy.MaxSideEffects <= 0 {
		policy.MaxSideEffects = def.MaxSideEffects
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RollbackMonitor{
		executor: executor,
		store:    store,
		policy:   policy,
		logger:   logger,
	}
}

// CheckActive evaluates every active action once and returns how many
// were rolled back. A degraded action without a rollback point is
// logged as an operator-visible gap and stays active.
func (m *RollbackMonitor) CheckActive(ctx context.Context) int {
	rolledBack := 0
	for _, act := range m.executor.ActiveSnapshot() {
		reason, triggered := m.shouldRollback(act)
		if !triggered {
			continue
		}

		err := m.executor.Rollback(ctx, act.Action.ID)
		if err == nil {
			m.logger.Info("degradation rollback triggered",
				zap.String("action_id", act.Action.ID),
				zap.String("reason", reason),
			)
			rolledBack++
			continue
		}

		var domainErr *shared.DomainError
		if errors.As(err, &domainErr) && domainErr.Code == shared.ErrNoRollbackAvailable.Code {
			m.logger.Warn("degradation detected but no rollback point exists, action stays active",
				zap.String("action_id", act.Action.ID),
				zap.String("reason", reason),
			)
			continue
		}
		m.logger.Error("rollback attempt failed",
			zap.String("action_id", act.Action.ID),
			zap.Error(err),
		)
	}
	return rolledBack
}

func (m *RollbackMonitor) shouldRollback(act ActiveOptimization) (string, bool) {
	if result, ok := m.executor.History().LatestFor(act.Action.ID); ok && len(result.SideEffects) > m.policy.MaxSideEffects {
		return fmt.Sprintf("%d side effects exceed limit %d", len(result.SideEffects), m.policy.MaxSideEffects), true
	}

	healthMetric, ok := categoryHealthMetric[act.Action.Category]
	if !ok {
		return "", false
	}
	current, ok := m.store.Latest(healthMetric)
	if !ok {
		return "", false
	}
	baseline, ok := act.Baseline[healthMetric]
	if !ok {
		return "", false
	}

	degradation := normalizedDegradation(baseline, current.Value)
	if degradation > m.policy.DegradationThreshold {
		return fmt.Sprintf("%s degraded %.1f%% against baseline %.2f", healthMetric, degradation*100, baseline), true
	}
	return "", false
}

// normalizedDegradation is the relative worsening against the baseline.
// A zero baseline (error rates start at 0) falls back to the absolute
// increase so a jump from nothing still registers.
func normalizedDegradation(baseline, current float64) float64 {
	if current <= baseline {
		return 0
	}
	if baseline <= 0 {
		return current
	}
	return (current - baseline) / baseline
}
