package optimization

import (
	"context"

	"go.uber.org/zap"

	"github.com/vectorcraft/tuner/internal/domain/optimization"
	"github.com/vectorcraft/tuner/internal/domain/shared"
)

// ApplyTuning applies one named parameter override by hand. The catalog
// action in the category that exposes the parameter is copied, the
// field overridden, and the copy executed through the normal path:
// manual applications still clear the safety gate, capture rollback
// points, and land in the result history with a manual source.
func (o *Optimizer) ApplyTuning(ctx context.Context, category optimization.Category, name string, value float64) (optimization.Result, error) {
	if !category.IsValid() {
		return optimization.Result{}, shared.ErrInvalidInput.WithDetails("unknown category %q", category)
	}

	action, err := o.buildTuningAction(category, name, value)
	if err != nil {
		return optimization.Result{}, err
	}
	if err := action.Parameters.Validate(); err != nil {
		return optimization.Result{}, err
	}

	if decision := o.gate.Evaluate(action); !decision.Allowed {
		o.logger.Warn("manual tuning rejected by safety gate",
			zap.String("action_id", action.ID),
			zap.String("reason", decision.Reason),
		)
		if decision.Unstable {
			return optimization.Result{}, shared.ErrSystemUnstable.WithDetails("%s", decision.Reason)
		}
		return optimization.Result{}, shared.ErrSafetyCheckFailed.WithDetails("%s", decision.Reason)
	}

	return o.executor.Apply(ctx, action, optimization.SourceManual), nil
}

// buildTuningAction finds the first catalog action in the category
// whose parameter set exposes the named field and returns a copy with
// the override applied.
func (o *Optimizer) buildTuningAction(category optimization.Category, name string, value float64) (optimization.Action, error) {
	for _, action := range o.recommender.catalog.ByCategory(category) {
		if action.Parameters == nil {
			continue
		}
		if _, exposes := action.Parameters.Fields()[name]; !exposes {
			continue
		}
		params, ok := overrideParam(action.Parameters, name, value)
		if !ok {
			continue
		}
		action.Parameters = params
		return action, nil
	}
	return optimization.Action{}, shared.ErrNotFound.WithDetails("no %s action exposes parameter %q", category, name)
}

// overrideParam sets one field of a typed parameter set by its wire
// name, returning the updated copy.
func overrideParam(params optimization.Params, name string, value float64) (optimization.Params, bool) {
	switch p := params.(type) {
	case optimization.MemoryParams:
		switch name {
		case "target_cache_size_mb":
			p.TargetCacheSizeMB = int(value)
		case "gc_target_percent":
			p.GCTargetPercent = int(value)
		default:
			return nil, false
		}
		return p, true
	case optimization.CPUParams:
		switch name {
		case "worker_delta":
			p.WorkerDelta = int(value)
		case "min_workers":
			p.MinWorkers = int(value)
		case "batch_size":
			p.BatchSize = int(value)
		default:
			return nil, false
		}
		return p, true
	case optimization.NetworkParams:
		switch name {
		case "compression_level":
			p.CompressionLevel = int(value)
		case "min_size_bytes":
			p.MinSizeBytes = int(value)
		case "keep_alive_seconds":
			p.KeepAliveSeconds = int(value)
		default:
			return nil, false
		}
		return p, true
	case optimization.DatabaseParams:
		switch name {
		case "max_open_conns":
			p.MaxOpenConns = int(value)
		case "max_idle_conns":
			p.MaxIdleConns = int(value)
		case "statement_cache":
			p.StatementCache = value != 0
		default:
			return nil, false
		}
		return p, true
	case optimization.CachingParams:
		switch name {
		case "ttl_seconds":
			p.TTLSeconds = int(value)
		case "max_entries":
			p.MaxEntries = int(value)
		default:
			return nil, false
		}
		return p, true
	case optimization.StabilityParams:
		switch name {
		case "max_concurrent_percent":
			p.MaxConcurrentPercent = int(value)
		case "cooldown_seconds":
			p.CooldownSeconds = int(value)
		case "restart_workers":
			p.RestartWorkers = value != 0
		default:
			return nil, false
		}
		return p, true
	}
	return nil, false
}
