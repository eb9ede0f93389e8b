package optimization

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"runtime/debug"
	"sync"

	"go.uber.org/zap"

	"github.com/vectorcraft/tuner/internal/domain/optimization"
)

// HandlerOutcome describes the effect a handler performed or intends.
type HandlerOutcome struct {
	Success bool
	// Improvement is the reported gain in percentage points. Whether it
	// held is judged later by the rollback monitor against live metrics.
	Improvement float64
	SideEffects []string
}

// Handler applies and reverts one category of optimization. Backends
// that cannot reach their subsystem from inside the process report the
// intended effect instead; a real backend substitutes per category
// without changing the executor.
type Handler interface {
	Category() optimization.Category
	Apply(ctx context.Context, action optimization.Action) (HandlerOutcome, error)
	Revert(ctx context.Context, point optimization.RollbackPoint) error
}

// estimatedImprovement converts an action's impact score to the gain the
// handler reports, in percentage points.
func estimatedImprovement(action optimization.Action) float64 {
	return math.Round(action.ImpactScore*150) / 10
}

// GCTuningHandler applies memory actions against the live runtime: it
// retargets the garbage collector and releases freed pages back to the
// OS. The pre-apply collector target is kept per action so Revert can
// restore it.
type GCTuningHandler struct {
	logger *zap.Logger

	mu   sync.Mutex
	prev map[string]int
}

// NewGCTuningHandler creates the live memory handler.
func NewGCTuningHandler(logger *zap.Logger) *GCTuningHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GCTuningHandler{
		logger: logger,
		prev:   make(map[string]int),
	}
}

// Category implements Handler.
func (h *GCTuningHandler) Category() optimization.Category {
	return optimization.CategoryMemory
}

// Apply retargets the collector and forces a release of freed memory.
func (h *GCTuningHandler) Apply(_ context.Context, action optimization.Action) (HandlerOutcome, error) {
	params, ok := action.Parameters.(optimization.MemoryParams)
	if !ok {
		return HandlerOutcome{}, fmt.Errorf("memory handler got %T parameters", action.Parameters)
	}
	if err := params.Validate(); err != nil {
		return HandlerOutcome{}, err
	}

	h.mu.Lock()
	old := debug.SetGCPercent(params.GCTargetPercent)
	h.prev[action.ID] = old
	h.mu.Unlock()

	debug.FreeOSMemory()

	h.logger.Info("retargeted garbage collector",
		zap.String("action_id", action.ID),
		zap.Int("gc_target_percent", params.GCTargetPercent),
		zap.Int("previous_percent", old),
	)
	return HandlerOutcome{Success: true, Improvement: estimatedImprovement(action)}, nil
}

// Revert restores the collector target saved at apply time.
func (h *GCTuningHandler) Revert(_ context.Context, point optimization.RollbackPoint) error {
	h.mu.Lock()
	old, ok := h.prev[point.ActionID]
	delete(h.prev, point.ActionID)
	h.mu.Unlock()

	if !ok {
		return fmt.Errorf("no saved collector target for %s", point.ActionID)
	}
	debug.SetGCPercent(old)
	h.logger.Info("restored garbage collector target",
		zap.String("action_id", point.ActionID),
		zap.Int("gc_target_percent", old),
	)
	return nil
}

// DBPool is the subset of sql.DB the database handler tunes.
type DBPool interface {
	SetMaxOpenConns(n int)
	SetMaxIdleConns(n int)
	Stats() sql.DBStats
}

type poolSettings struct {
	open int
	idle int
}

// PoolTuningHandler applies database actions against the live
// connection pool. Without a pool it degrades to reporting intent, so
// the same catalog works in memory-only deployments.
type PoolTuningHandler struct {
	pool   DBPool
	logger *zap.Logger

	mu      sync.Mutex
	current poolSettings
	prev    map[string]poolSettings
}

// NewPoolTuningHandler creates the database handler. open and idle are
// the pool's configured settings, the baseline the first revert restores.
func NewPoolTuningHandler(pool DBPool, open, idle int, logger *zap.Logger) *PoolTuningHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PoolTuningHandler{
		pool:    pool,
		logger:  logger,
		current: poolSettings{open: open, idle: idle},
		prev:    make(map[string]poolSettings),
	}
}

// Category implements Handler.
func (h *PoolTuningHandler) Category() optimization.Category {
	return optimization.CategoryDatabase
}

// Apply resizes the live pool. Zero-valued parameters leave the current
// setting in place.
func (h *PoolTuningHandler) Apply(_ context.Context, action optimization.Action) (HandlerOutcome, error) {
	params, ok := action.Parameters.(optimization.DatabaseParams)
	if !ok {
		return HandlerOutcome{}, fmt.Errorf("database handler got %T parameters", action.Parameters)
	}
	if err := params.Validate(); err != nil {
		return HandlerOutcome{}, err
	}

	if h.pool == nil {
		h.logger.Info("no live pool attached, reporting intended pool resize",
			zap.String("action_id", action.ID),
			zap.Int("max_open_conns", params.MaxOpenConns),
			zap.Int("max_idle_conns", params.MaxIdleConns),
		)
		return HandlerOutcome{Success: true, Improvement: estimatedImprovement(action)}, nil
	}

	h.mu.Lock()
	h.prev[action.ID] = h.current
	next := h.current
	if params.MaxOpenConns > 0 {
		next.open = params.MaxOpenConns
	}
	if params.MaxIdleConns > 0 {
		next.idle = params.MaxIdleConns
	}
	h.pool.SetMaxOpenConns(next.open)
	h.pool.SetMaxIdleConns(next.idle)
	h.current = next
	h.mu.Unlock()

	h.logger.Info("resized database connection pool",
		zap.String("action_id", action.ID),
		zap.Int("max_open_conns", next.open),
		zap.Int("max_idle_conns", next.idle),
	)
	return HandlerOutcome{Success: true, Improvement: estimatedImprovement(action)}, nil
}

// Revert restores the pool settings saved at apply time.
func (h *PoolTuningHandler) Revert(_ context.Context, point optimization.RollbackPoint) error {
	if h.pool == nil {
		h.logger.Info("no live pool attached, intended pool resize discarded",
			zap.String("action_id", point.ActionID),
		)
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	settings, ok := h.prev[point.ActionID]
	if !ok {
		return fmt.Errorf("no saved pool settings for %s", point.ActionID)
	}
	delete(h.prev, point.ActionID)
	h.pool.SetMaxOpenConns(settings.open)
	h.pool.SetMaxIdleConns(settings.idle)
	h.current = settings

	h.logger.Info("restored database connection pool",
		zap.String("action_id", point.ActionID),
		zap.Int("max_open_conns", settings.open),
		zap.Int("max_idle_conns", settings.idle),
	)
	return nil
}

// SimulatedHandler reports the intended effect of an action without
// touching anything. It stands in for subsystems the tuner cannot reach
// from inside the process (worker pools, transport, admission control).
type SimulatedHandler struct {
	category optimization.Category
	logger   *zap.Logger
}

// NewSimulatedHandler creates an intent-only handler for a category.
func NewSimulatedHandler(category optimization.Category, logger *zap.Logger) *SimulatedHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SimulatedHandler{category: category, logger: logger}
}

// Category implements Handler.
func (h *SimulatedHandler) Category() optimization.Category {
	return h.category
}

// Apply validates the parameters and reports the intended effect.
func (h *SimulatedHandler) Apply(_ context.Context, action optimization.Action) (HandlerOutcome, error) {
	if action.Parameters != nil {
		if err := action.Parameters.Validate(); err != nil {
			return HandlerOutcome{}, err
		}
	}

	outcome := HandlerOutcome{
		Success:     true,
		Improvement: estimatedImprovement(action),
		SideEffects: simulatedSideEffects(action),
	}
	h.logger.Info("applied optimization (intent only)",
		zap.String("action_id", action.ID),
		zap.String("category", h.category.String()),
		zap.Float64("improvement", outcome.Improvement),
	)
	return outcome, nil
}

// Revert logs the parameters that would be restored.
func (h *SimulatedHandler) Revert(_ context.Context, point optimization.RollbackPoint) error {
	h.logger.Info("reverted optimization (intent only)",
		zap.String("action_id", point.ActionID),
		zap.String("category", h.category.String()),
		zap.Any("restored_parameters", point.Parameters),
	)
	return nil
}

// simulatedSideEffects derives the effects a stability action announces.
func simulatedSideEffects(action optimization.Action) []string {
	params, ok := action.Parameters.(optimization.StabilityParams)
	if !ok {
		return nil
	}
	var effects []string
	if params.MaxConcurrentPercent < 100 {
		effects = append(effects, fmt.Sprintf("admission limited to %d%% of normal concurrency", params.MaxConcurrentPercent))
	}
	if params.RestartWorkers {
		effects = append(effects, "in-flight work lost during worker restart")
	}
	return effects
}

// DefaultHandlers returns the standard handler set: live tuning for the
// collector and connection pool, intent-only handlers for the rest.
// pool may be nil; open and idle are its configured settings.
func DefaultHandlers(pool DBPool, open, idle int, logger *zap.Logger) map[optimization.Category]Handler {
	return map[optimization.Category]Handler{
		optimization.CategoryMemory:    NewGCTuningHandler(logger),
		optimization.CategoryDatabase:  NewPoolTuningHandler(pool, open, idle, logger),
		optimization.CategoryCPU:       NewSimulatedHandler(optimization.CategoryCPU, logger),
		optimization.CategoryNetwork:   NewSimulatedHandler(optimization.CategoryNetwork, logger),
		optimization.CategoryCaching:   NewSimulatedHandler(optimization.CategoryCaching, logger),
		optimization.CategoryStability: NewSimulatedHandler(optimization.CategoryStability, logger),
	}
}

var (
	_ Handler = (*GCTuningHandler)(nil)
	_ Handler = (*PoolTuningHandler)(nil)
	_ Handler = (*SimulatedHandler)(nil)
)
