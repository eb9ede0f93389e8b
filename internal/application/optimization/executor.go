package optimization

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vectorcraft/tuner/internal/application/monitoring"
	"github.com/vectorcraft/tuner/internal/domain/metric"
	"github.com/vectorcraft/tuner/internal/domain/optimization"
	"github.com/vectorcraft/tuner/internal/domain/shared"
	"github.com/vectorcraft/tuner/internal/infrastructure/telemetry"
)

// ActiveOptimization tracks one applied action until it is rolled back
// or the process ends.
type ActiveOptimization struct {
	Action    optimization.Action
	AppliedAt time.Time
	// Baseline is the latest value per metric type at apply time; the
	// rollback monitor judges degradation against it.
	Baseline map[metric.Type]float64
	// Revertible turns false when the action's rollback point is
	// evicted from the bounded stack.
	Revertible bool
	RollbackID *uuid.UUID
	Source     string
}

// ExecutorConfig controls execution bookkeeping.
type ExecutorConfig struct {
	// QueueCapacity bounds the pending-action queue.
	QueueCapacity int
	// Cooldown is the recommendation cooldown marked after every attempt.
	Cooldown time.Duration
	// HistoryLimit bounds the in-memory result history.
	HistoryLimit int
	// RollbackLimit bounds the rollback point stack.
	RollbackLimit int
}

// DefaultExecutorConfig returns the default execution bookkeeping.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		QueueCapacity: 64,
		Cooldown:      time.Hour,
		HistoryLimit:  optimization.DefaultResultHistoryLimit,
		RollbackLimit: optimization.DefaultRollbackStackLimit,
	}
}

// Executor applies actions through their category handlers, captures
// rollback points, and keeps the active set, result history, and
// pending queue. Every handler invocation runs inside its own failure
// boundary; a failed action is reported, never retried automatically.
type Executor struct {
	store    *monitoring.Store
	handlers map[optimization.Category]Handler
	results  optimization.ResultRepository
	cooldown optimization.CooldownStore
	metrics  *telemetry.TunerMetrics
	config   ExecutorConfig
	logger   *zap.Logger

	history *optimization.ResultHistory
	stack   *optimization.RollbackStack
	queue   chan optimization.Action

	mu     sync.Mutex
	active map[string]*ActiveOptimization
}

// ExecutorOption customizes optional executor inputs.
type ExecutorOption func(*Executor)

// WithExecutorMetrics wires the telemetry instrument set.
func WithExecutorMetrics(metrics *telemetry.TunerMetrics) ExecutorOption {
	return func(e *Executor) {
		e.metrics = metrics
	}
}

// NewExecutor creates an executor. The result repository and cooldown
// store may be nil for memory-only operation.
func NewExecutor(store *monitoring.Store, handlers map[optimization.Category]Handler, results optimization.ResultRepository, cooldown optimization.CooldownStore, config ExecutorConfig, logger *zap.Logger, opts ...ExecutorOption) *Executor {
	def := DefaultExecutorConfig()
	if config.QueueCapacity <= 0 {
		config.QueueCapacity = def.QueueCapacity
	}
	if config.Cooldown <= 0 {
		config.Cooldown = def.Cooldown
	}
	if config.HistoryLimit <= 0 {
		config.HistoryLimit = def.HistoryLimit
	}
	if config.RollbackLimit <= 0 {
		config.RollbackLimit = def.RollbackLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Executor{
		store:    store,
		handlers: handlers,
		results:  results,
		cooldown: cooldown,
		config:   config,
		logger:   logger,
		history:  optimization.NewResultHistory(config.HistoryLimit),
		stack:    optimization.NewRollbackStack(config.RollbackLimit),
		queue:    make(chan optimization.Action, config.QueueCapacity),
		active:   make(map[string]*ActiveOptimization),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enqueue adds an action to the pending queue without blocking. A full
// queue drops the action and returns false.
func (e *Executor) Enqueue(action optimization.Action) bool {
	select {
	case e.queue <- action:
		return true
	default:
		e.logger.Warn("optimization queue full, dropping action",
			zap.String("action_id", action.ID),
		)
		return false
	}
}

// Dequeue removes the next pending action without blocking.
func (e *Executor) Dequeue() (optimization.Action, bool) {
	select {
	case action := <-e.queue:
		return action, true
	default:
		return optimization.Action{}, false
	}
}

// QueueDepth returns the number of pending actions.
func (e *Executor) QueueDepth() int {
	return len(e.queue)
}

// Apply executes one action: capture a rollback point when the action
// supports it, mark it active, run the handler, and record the result.
// A failed application is deactivated immediately and its fresh
// rollback point discarded. An action that is already active is
// refused without touching the existing application or its rollback
// point; it must be rolled back before it can be applied again.
func (e *Executor) Apply(ctx context.Context, action optimization.Action, source string) optimization.Result {
	start := time.Now()

	e.mu.Lock()
	_, alreadyActive := e.active[action.ID]
	e.mu.Unlock()
	if alreadyActive {
		e.logger.Warn("optimization already active, refusing apply",
			zap.String("action_id", action.ID),
			zap.String("source", source),
		)
		result := optimization.NewResult(action.ID, false, 0,
			[]string{"error: action is already active"}, time.Since(start))
		result.Source = source
		return result
	}

	baseline := e.store.Window().LatestValues()

	var rollbackID *uuid.UUID
	if action.RollbackAvailable {
		point := optimization.NewRollbackPoint(action, baseline)
		if dropped := e.stack.Push(point); dropped != nil {
			e.markNonRevertible(dropped.ActionID)
		}
		id := point.ID
		rollbackID = &id
	}

	e.mu.Lock()
	e.active[action.ID] = &ActiveOptimization{
		Action:     action,
		AppliedAt:  start.UTC(),
		Baseline:   baseline,
		Revertible: action.RollbackAvailable,
		RollbackID: rollbackID,
		Source:     source,
	}
	e.mu.Unlock()

	outcome := e.invoke(ctx, action)
	elapsed := time.Since(start)

	result := optimization.NewResult(action.ID, outcome.Success, outcome.Improvement, outcome.SideEffects, elapsed)
	result.RollbackID = rollbackID
	result.Source = source

	e.history.Append(result)
	if e.results != nil {
		if err := e.results.Append(ctx, result); err != nil {
			e.logger.Warn("failed to persist optimization result",
				zap.String("action_id", action.ID),
				zap.Error(err),
			)
		}
	}
	e.markCooldown(ctx, action.ID)

	if outcome.Success {
		e.logger.Info("optimization applied",
			zap.String("action_id", action.ID),
			zap.String("source", source),
			zap.Float64("improvement", outcome.Improvement),
			zap.Duration("duration", elapsed),
		)
	} else {
		e.mu.Lock()
		delete(e.active, action.ID)
		e.mu.Unlock()
		if rollbackID != nil {
			// The apply never took effect, so its point reverts nothing.
			e.stack.TakeLatestFor(action.ID)
		}
		e.logger.Warn("optimization failed",
			zap.String("action_id", action.ID),
			zap.String("source", source),
			zap.Strings("side_effects", outcome.SideEffects),
			zap.Duration("duration", elapsed),
		)
	}

	if e.metrics != nil {
		e.metrics.RecordExecution(ctx, action.ID, telemetry.OutcomeFor(outcome.Success), source, elapsed)
		e.metrics.RecordOptimizerState(ctx, e.ActiveCount(), e.stack.Len())
	}
	return result
}

// invoke runs the category handler inside its own failure boundary. A
// panicking or erroring handler yields the failure outcome instead of
// crashing the caller.
func (e *Executor) invoke(ctx context.Context, action optimization.Action) (out HandlerOutcome) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("optimization handler panicked",
				zap.String("action_id", action.ID),
				zap.Any("panic", r),
			)
			out = failureOutcome(fmt.Sprintf("%v", r))
		}
	}()

	handler, ok := e.handlers[action.Category]
	if !ok {
		return failureOutcome(fmt.Sprintf("no handler for category %s", action.Category))
	}
	outcome, err := handler.Apply(ctx, action)
	if err != nil {
		return failureOutcome(err.Error())
	}
	return outcome
}

func failureOutcome(message string) HandlerOutcome {
	return HandlerOutcome{SideEffects: []string{"error: " + message}}
}

func (e *Executor) markCooldown(ctx context.Context, actionID string) {
	if e.cooldown == nil {
		return
	}
	if err := e.cooldown.Mark(ctx, actionID, e.config.Cooldown); err != nil {
		e.logger.Warn("failed to mark action cooldown",
			zap.String("action_id", actionID),
			zap.Error(err),
		)
	}
}

// markNonRevertible flags an active action whose rollback point was
// evicted from the bounded stack. The safety gate holds back further
// high-risk applications of that id until a fresh point exists.
func (e *Executor) markNonRevertible(actionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if act, ok := e.active[actionID]; ok && act.Revertible {
		act.Revertible = false
		e.logger.Warn("rollback point evicted, active action can no longer be reverted",
			zap.String("action_id", actionID),
		)
	}
}

// Rollback reverts an active action from its most recent rollback
// point and deactivates it. A missing point leaves the action active
// and surfaces the gap to the caller.
func (e *Executor) Rollback(ctx context.Context, actionID string) error {
	e.mu.Lock()
	act, ok := e.active[actionID]
	e.mu.Unlock()
	if !ok {
		return shared.ErrNotFound.WithDetails("action %s is not active", actionID)
	}

	point, found := e.stack.TakeLatestFor(actionID)
	if !found {
		e.markNonRevertible(actionID)
		return shared.ErrNoRollbackAvailable.WithDetails("action %s", actionID)
	}

	if err := e.revert(ctx, act.Action.Category, point); err != nil {
		e.logger.Error("rollback restore failed, action deactivated with state unrestored",
			zap.String("action_id", actionID),
			zap.Error(err),
		)
	}

	e.mu.Lock()
	delete(e.active, actionID)
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.RecordRollback(ctx, actionID)
		e.metrics.RecordOptimizerState(ctx, e.ActiveCount(), e.stack.Len())
	}
	e.logger.Info("optimization rolled back",
		zap.String("action_id", actionID),
		zap.String("rollback_id", point.ID.String()),
	)
	return nil
}

func (e *Executor) revert(ctx context.Context, category optimization.Category, point optimization.RollbackPoint) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("revert panicked: %v", r)
		}
	}()

	handler, ok := e.handlers[category]
	if !ok {
		return fmt.Errorf("no handler for category %s", category)
	}
	return handler.Revert(ctx, point)
}

// ActiveCount implements ActiveView.
func (e *Executor) ActiveCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active)
}

// NonRevertible implements ActiveView.
func (e *Executor) NonRevertible(actionID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	act, ok := e.active[actionID]
	return ok && !act.Revertible
}

// ActiveSnapshot returns a copy of the active set in apply order.
func (e *Executor) ActiveSnapshot() []ActiveOptimization {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]ActiveOptimization, 0, len(e.active))
	for _, act := range e.active {
		out = append(out, *act)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].AppliedAt.Before(out[j].AppliedAt)
	})
	return out
}

// History exposes the bounded in-memory result log.
func (e *Executor) History() *optimization.ResultHistory {
	return e.history
}

// RollbackDepth returns the number of held rollback points.
func (e *Executor) RollbackDepth() int {
	return e.stack.Len()
}

var _ ActiveView = (*Executor)(nil)
