package optimization

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vectorcraft/tuner/internal/domain/optimization"
	"github.com/vectorcraft/tuner/internal/infrastructure/telemetry"
)

// OptimizerConfig controls the periodic optimization cadence.
type OptimizerConfig struct {
	// Interval is the time between optimization cycles.
	Interval time.Duration
}

// DefaultOptimizerConfig returns the default cadence.
func DefaultOptimizerConfig() OptimizerConfig {
	return OptimizerConfig{Interval: 60 * time.Second}
}

// Optimizer drives the decision pipeline on a fixed cadence: revert
// degraded actions, detect issues, recommend actions, and drain the
// pending queue through the safety gate. A cycle that panics is logged
// and the loop continues; repeated panics double the interval until a
// cycle completes cleanly.
type Optimizer struct {
	detector    *Detector
	recommender *Recommender
	gate        *SafetyGate
	executor    *Executor
	monitor     *RollbackMonitor
	metrics     *telemetry.TunerMetrics
	config      OptimizerConfig
	logger      *zap.Logger

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	backoff bool

	mu        sync.Mutex
	running   bool
	lastCycle time.Time
}

// OptimizerOption customizes optional optimizer inputs.
type OptimizerOption func(*Optimizer)

// WithOptimizerMetrics wires the telemetry instrument set.
func WithOptimizerMetrics(metrics *telemetry.TunerMetrics) OptimizerOption {
	return func(o *Optimizer) {
		o.metrics = metrics
	}
}

// NewOptimizer assembles the pipeline stages into the periodic service.
func NewOptimizer(detector *Detector, recommender *Recommender, gate *SafetyGate, executor *Executor, monitor *RollbackMonitor, config OptimizerConfig, logger *zap.Logger, opts ...OptimizerOption) *Optimizer {
	if config.Interval <= 0 {
		config.Interval = DefaultOptimizerConfig().Interval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	o := &Optimizer{
		detector:    detector,
		recommender: recommender,
		gate:        gate,
		executor:    executor,
		monitor:     monitor,
		config:      config,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start launches the optimization loop.
func (o *Optimizer) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	o.mu.Lock()
	o.running = true
	o.mu.Unlock()

	o.wg.Add(1)
	go o.loop(ctx)

	o.logger.Info("optimizer started",
		zap.Duration("interval", o.config.Interval),
	)
}

// Stop shuts down the loop and waits for the in-flight cycle.
func (o *Optimizer) Stop(ctx context.Context) error {
	if o.cancel != nil {
		o.cancel()
	}

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
		o.logger.Info("optimizer stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("optimizer stop timeout: %w", ctx.Err())
	}
}

func (o *Optimizer) loop(ctx context.Context) {
	defer o.wg.Done()

	ticker := time.NewTicker(o.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			clean := o.safeCycle(ctx)
			o.adjustInterval(ticker, clean)
		}
	}
}

// safeCycle runs one cycle inside a recover boundary so a single bad
// iteration never terminates the loop.
func (o *Optimizer) safeCycle(ctx context.Context) (clean bool) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("optimization cycle panicked", zap.Any("panic", r))
			clean = false
		}
	}()

	o.runCycle(ctx)
	return true
}

func (o *Optimizer) adjustInterval(ticker *time.Ticker, clean bool) {
	if !clean {
		if !o.backoff {
			o.backoff = true
			ticker.Reset(2 * o.config.Interval)
			o.logger.Warn("optimization cycles failing, backing off",
				zap.Duration("interval", 2*o.config.Interval),
			)
		}
		return
	}
	if o.backoff {
		o.backoff = false
		ticker.Reset(o.config.Interval)
		o.logger.Info("optimization cycles recovered",
			zap.Duration("interval", o.config.Interval),
		)
	}
}

// runCycle is one pass of the pipeline: revert, detect, recommend,
// enqueue, then drain with the gate re-evaluated per action at dequeue.
func (o *Optimizer) runCycle(ctx context.Context) {
	o.mu.Lock()
	o.lastCycle = time.Now().UTC()
	o.mu.Unlock()

	o.monitor.CheckActive(ctx)

	issues := o.detector.Detect(ctx)
	if o.metrics != nil {
		for _, issue := range issues {
			o.metrics.RecordIssueDetected(ctx, string(issue.Type), string(issue.Severity))
		}
	}

	for _, rec := range o.recommender.Recommend(ctx, issues) {
		o.executor.Enqueue(rec.Action)
	}

	o.drainQueue(ctx)
}

func (o *Optimizer) drainQueue(ctx context.Context) {
	for {
		action, ok := o.executor.Dequeue()
		if !ok {
			return
		}
		// State may have moved since the action was queued.
		if decision := o.gate.Evaluate(action); !decision.Allowed {
			o.logger.Info("action held back by safety gate",
				zap.String("action_id", action.ID),
				zap.String("reason", decision.Reason),
			)
			continue
		}
		o.executor.Apply(ctx, action, optimization.SourceAutomatic)
	}
}

// Status is the optimizer state served to the reporting surface.
type Status struct {
	Running       bool
	LastCycle     time.Time
	Active        []ActiveOptimization
	QueueDepth    int
	RollbackDepth int
	RecentResults []optimization.Result
}

// Status snapshots the optimizer and executor state.
func (o *Optimizer) Status() Status {
	o.mu.Lock()
	running := o.running
	lastCycle := o.lastCycle
	o.mu.Unlock()

	return Status{
		Running:       running,
		LastCycle:     lastCycle,
		Active:        o.executor.ActiveSnapshot(),
		QueueDepth:    o.executor.QueueDepth(),
		RollbackDepth: o.executor.RollbackDepth(),
		RecentResults: o.executor.History().Recent(10),
	}
}

// Recommendations runs detection and recommendation on demand without
// queueing anything.
func (o *Optimizer) Recommendations(ctx context.Context) []Recommendation {
	return o.recommender.Recommend(ctx, o.detector.Detect(ctx))
}

// Rollback manually reverts an active action.
func (o *Optimizer) Rollback(ctx context.Context, actionID string) error {
	return o.executor.Rollback(ctx, actionID)
}
