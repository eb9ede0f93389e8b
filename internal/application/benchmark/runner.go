// Package benchmark runs synthetic HTTP load tests against a target
// service, persists the aggregated results, and serves run history and
// baseline comparisons to the reporting surface.
package benchmark

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/vectorcraft/tuner/internal/domain/benchmark"
	"github.com/vectorcraft/tuner/internal/domain/shared"
	"github.com/vectorcraft/tuner/internal/infrastructure/loadclient"
	"github.com/vectorcraft/tuner/internal/infrastructure/sysmetrics"
	"github.com/vectorcraft/tuner/internal/infrastructure/telemetry"
)

// RunnerConfig tunes benchmark execution.
type RunnerConfig struct {
	// RequestTimeout bounds a single request issued by a virtual user
	RequestTimeout time.Duration
	// MaxDuration caps one run regardless of its definition
	MaxDuration time.Duration
	// ActiveGrace keeps a finished run visible in the active set
	ActiveGrace time.Duration
	// Weights folds run metrics into the composite score
	Weights benchmark.ScoreWeights
}

// DefaultRunnerConfig returns the standard runner settings.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		RequestTimeout: 30 * time.Second,
		MaxDuration:    30 * time.Minute,
		ActiveGrace:    time.Minute,
		Weights:        benchmark.DefaultScoreWeights(),
	}
}

// Overrides are per-run parameter overrides. Nil fields keep the
// definition's values; headers merge over the definition's headers.
type Overrides struct {
	DurationSeconds *int
	ConcurrentUsers *int
	RampUpSeconds   *int
	TargetEndpoint  *string
	Payload         *string
	Headers         map[string]string
}

func applyOverrides(def benchmark.Definition, o *Overrides) benchmark.Definition {
	if o == nil {
		return def
	}
	if o.DurationSeconds != nil {
		def.DurationSeconds = *o.DurationSeconds
	}
	if o.ConcurrentUsers != nil {
		def.ConcurrentUsers = *o.ConcurrentUsers
	}
	if o.RampUpSeconds != nil {
		def.RampUpSeconds = *o.RampUpSeconds
	}
	if o.TargetEndpoint != nil {
		def.TargetEndpoint = *o.TargetEndpoint
	}
	if o.Payload != nil {
		def.Payload = *o.Payload
	}
	if len(o.Headers) > 0 {
		merged := make(map[string]string, len(def.Headers)+len(o.Headers))
		for k, v := range def.Headers {
			merged[k] = v
		}
		for k, v := range o.Headers {
			merged[k] = v
		}
		def.Headers = merged
	}
	return def
}

// ActiveTest is the transient view of a run in flight or recently
// finished and still inside the grace window.
type ActiveTest struct {
	TestID    string
	State     benchmark.State
	StartedAt time.Time
	Result    *benchmark.Result
}

type activeRun struct {
	result *benchmark.Result
	doneAt time.Time
}

// Runner executes benchmark definitions with a short-lived pool of
// virtual users. Runs of different tests may overlap; a second run of
// the same test while one is in flight is refused.
type Runner struct {
	definitions benchmark.DefinitionRepository
	results     benchmark.ResultRepository
	client      *loadclient.Client
	probe       sysmetrics.Probe
	metrics     *telemetry.TunerMetrics
	config      RunnerConfig
	logger      *zap.Logger

	mu     sync.Mutex
	active map[string]*activeRun

	stop      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// RunnerOption configures optional runner collaborators.
type RunnerOption func(*Runner)

// WithRunnerMetrics attaches benchmark telemetry instruments.
func WithRunnerMetrics(metrics *telemetry.TunerMetrics) RunnerOption {
	return func(r *Runner) {
		r.metrics = metrics
	}
}

// NewRunner creates a benchmark runner. probe may be nil, in which case
// results carry no system delta.
func NewRunner(definitions benchmark.DefinitionRepository, results benchmark.ResultRepository, client *loadclient.Client, probe sysmetrics.Probe, config RunnerConfig, logger *zap.Logger, opts ...RunnerOption) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultRunnerConfig()
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = defaults.RequestTimeout
	}
	if config.MaxDuration <= 0 {
		config.MaxDuration = defaults.MaxDuration
	}
	if config.ActiveGrace <= 0 {
		config.ActiveGrace = defaults.ActiveGrace
	}
	if config.Weights == (benchmark.ScoreWeights{}) {
		config.Weights = defaults.Weights
	}

	r := &Runner{
		definitions: definitions,
		results:     results,
		client:      client,
		probe:       probe,
		config:      config,
		logger:      logger,
		active:      make(map[string]*activeRun),
		stop:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes one benchmark synchronously and returns the finished
// result. The run completes even when its metrics are poor; it fails
// only when interrupted before its deadline.
func (r *Runner) Run(ctx context.Context, testID string, overrides *Overrides) (*benchmark.Result, error) {
	select {
	case <-r.stop:
		return nil, shared.ErrInvalidState.WithDetails("benchmark runner is stopped")
	default:
	}

	def, err := r.definitions.FindByID(ctx, testID)
	if err != nil {
		return nil, err
	}
	def = applyOverrides(def, overrides)
	if err := def.Validate(); err != nil {
		return nil, err
	}
	if limit := int(r.config.MaxDuration.Seconds()); def.DurationSeconds > limit {
		return nil, shared.ErrInvalidInput.WithDetails("duration %ds exceeds limit %ds", def.DurationSeconds, limit)
	}

	result := benchmark.NewPendingResult(testID)

	r.mu.Lock()
	r.pruneFinishedLocked()
	if run, ok := r.active[testID]; ok && run.result.State == benchmark.StateRunning {
		r.mu.Unlock()
		return nil, shared.ErrBenchmarkRunning.WithDetails("test %s", testID)
	}
	result.MarkRunning(time.Now())
	r.active[testID] = &activeRun{result: result}
	r.mu.Unlock()

	r.wg.Add(1)
	defer r.wg.Done()

	r.logger.Info("benchmark started",
		zap.String("test_id", testID),
		zap.String("run_id", result.ID.String()),
		zap.Int("concurrent_users", def.ConcurrentUsers),
		zap.Int("duration_seconds", def.DurationSeconds),
	)

	var system benchmark.SystemDelta
	r.captureSystem(ctx, &system.CPUBefore, &system.MemoryBefore)

	latencies, failed, errs, interrupted := r.execute(ctx, def, testID)

	r.captureSystem(ctx, &system.CPUAfter, &system.MemoryAfter)

	now := time.Now()
	r.mu.Lock()
	if interrupted {
		result.MarkFailed(now, "benchmark interrupted before its deadline")
	} else {
		result.Complete(now, latencies, failed, errs, system, def.SuccessCriteria, r.config.Weights)
	}
	if run, ok := r.active[testID]; ok && run.result == result {
		run.doneAt = now
	}
	r.mu.Unlock()

	r.finish(ctx, result)
	return result, nil
}

// execute fans out one goroutine per virtual user, each issuing a
// serial stream of requests until the deadline. Worker starts are
// staggered across the ramp-up window. In-flight requests are never
// cancelled mid-request; they finish within the request timeout.
func (r *Runner) execute(ctx context.Context, def benchmark.Definition, testID string) (latencies []float64, failed int64, errs []string, interrupted bool) {
	deadline := time.Now().Add(time.Duration(def.DurationSeconds) * time.Second)

	var stagger time.Duration
	if def.RampUpSeconds > 0 {
		stagger = time.Duration(def.RampUpSeconds) * time.Second / time.Duration(def.ConcurrentUsers)
	}

	request := loadclient.Request{
		Method:  http.MethodGet,
		Path:    def.TargetEndpoint,
		Headers: def.Headers,
	}
	if def.Payload != "" {
		request.Method = http.MethodPost
		request.Body = json.RawMessage(def.Payload)
	}

	var (
		mu        sync.Mutex
		collected []float64
		errList   []string
		failCount int64
		stopped   atomic.Bool
		wg        sync.WaitGroup
	)

	for i := 0; i < def.ConcurrentUsers; i++ {
		wg.Add(1)
		go func(delay time.Duration) {
			defer wg.Done()

			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					stopped.Store(true)
					return
				case <-r.stop:
					stopped.Store(true)
					return
				}
			}

			for time.Now().Before(deadline) {
				select {
				case <-ctx.Done():
					stopped.Store(true)
					return
				case <-r.stop:
					stopped.Store(true)
					return
				default:
				}

				reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.config.RequestTimeout)
				resp := r.client.Do(reqCtx, request)
				cancel()

				mu.Lock()
				if resp.Success() {
					collected = append(collected, resp.Duration.Seconds()*1000)
				} else {
					failCount++
					if len(errList) < benchmark.MaxStoredErrors {
						errList = append(errList, requestError(resp))
					}
				}
				mu.Unlock()

				if r.metrics != nil {
					r.metrics.RecordBenchmarkRequest(ctx, testID, resp.Success(), resp.Duration)
				}
			}
		}(stagger * time.Duration(i))
	}
	wg.Wait()

	return collected, failCount, errList, stopped.Load()
}

func requestError(resp *loadclient.Response) string {
	if resp.Err != nil {
		return resp.Err.Error()
	}
	return fmt.Sprintf("HTTP %d", resp.StatusCode)
}

// finish persists the terminal result and records run telemetry. The
// result is already terminal, so persistence uses a context that
// survives caller cancellation.
func (r *Runner) finish(ctx context.Context, result *benchmark.Result) {
	saveCtx := context.WithoutCancel(ctx)
	if err := r.results.Save(saveCtx, result); err != nil {
		r.logger.Error("failed to persist benchmark result",
			zap.String("test_id", result.TestID),
			zap.String("run_id", result.ID.String()),
			zap.Error(err),
		)
	}

	if r.metrics != nil {
		r.metrics.RecordBenchmarkRun(saveCtx, result.TestID, telemetry.OutcomeFor(result.State == benchmark.StateCompleted))
	}

	if result.State == benchmark.StateFailed {
		r.logger.Warn("benchmark failed",
			zap.String("test_id", result.TestID),
			zap.String("run_id", result.ID.String()),
			zap.String("reason", result.FailureReason),
		)
		return
	}
	r.logger.Info("benchmark completed",
		zap.String("test_id", result.TestID),
		zap.String("run_id", result.ID.String()),
		zap.Int64("total_requests", result.TotalRequests),
		zap.Float64("avg_response_ms", result.AvgResponseTimeMS),
		zap.Float64("throughput_rps", result.ThroughputRPS),
		zap.Float64("error_rate", result.ErrorRate),
		zap.Float64("score", result.Score),
	)
}

func (r *Runner) captureSystem(ctx context.Context, cpu, memory *float64) {
	if r.probe == nil {
		return
	}
	if v, err := r.probe.CPUPercent(ctx); err == nil {
		*cpu = v
	}
	if v, err := r.probe.MemoryPercent(ctx); err == nil {
		*memory = v
	}
}

// ActiveTests snapshots runs in flight plus finished runs still inside
// the grace window, oldest first.
func (r *Runner) ActiveTests() []ActiveTest {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneFinishedLocked()

	out := make([]ActiveTest, 0, len(r.active))
	for id, run := range r.active {
		snapshot := *run.result
		out = append(out, ActiveTest{
			TestID:    id,
			State:     snapshot.State,
			StartedAt: snapshot.StartedAt,
			Result:    &snapshot,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

func (r *Runner) pruneFinishedLocked() {
	cutoff := time.Now().Add(-r.config.ActiveGrace)
	for id, run := range r.active {
		if !run.doneAt.IsZero() && run.doneAt.Before(cutoff) {
			delete(r.active, id)
		}
	}
}

// Stop refuses new runs and waits for in-flight virtual users to wind
// down.
func (r *Runner) Stop(ctx context.Context) error {
	r.closeOnce.Do(func() {
		close(r.stop)
	})

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("benchmark runner stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("benchmark runner stop timeout: %w", ctx.Err())
	}
}
