// Package monitoring implements the metric collection side of the tuner:
// the sample store, the periodic collector, and the reporting queries
// served to the HTTP surface.
package monitoring

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vectorcraft/tuner/internal/domain/metric"
)

// BreachHandler is invoked synchronously when a recorded sample classifies
// above normal. Handlers must be fast; anything slow belongs on the
// periodic scan instead.
type BreachHandler func(metric.Sample)

// Store is the metric sample store: a bounded in-memory window mirrored
// write-through to the persistence sink. A failed durable write is logged
// and never blocks the in-memory path.
type Store struct {
	window   *metric.Window
	repo     metric.SampleRepository
	registry *metric.ThresholdRegistry
	logger   *zap.Logger

	mu       sync.RWMutex
	onBreach BreachHandler
}

// NewStore creates a store. The repository may be nil for memory-only
// operation (tests, degraded mode).
func NewStore(window *metric.Window, repo metric.SampleRepository, registry *metric.ThresholdRegistry, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		window:   window,
		repo:     repo,
		registry: registry,
		logger:   logger,
	}
}

// SetBreachHandler registers the handler called for warning and critical
// samples. Only one handler is held; later calls replace earlier ones.
func (s *Store) SetBreachHandler(h BreachHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onBreach = h
}

func (s *Store) breachHandler() BreachHandler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.onBreach
}

// Record classifies the sample against the threshold registry, appends it
// to the window, writes it through to the sink, and push-triggers the
// breach handler for non-normal samples. The classified sample is
// returned.
func (s *Store) Record(ctx context.Context, sample metric.Sample) metric.Sample {
	sample.Status = s.registry.Classify(sample.Type, sample.Value)

	s.window.Append(sample)

	if s.repo != nil {
		if err := s.repo.Append(ctx, sample); err != nil {
			s.logger.Warn("failed to persist metric sample",
				zap.String("metric_type", sample.Type.String()),
				zap.Error(err),
			)
		}
	}

	if sample.Status != metric.StatusNormal {
		if h := s.breachHandler(); h != nil {
			h(sample)
		}
	}

	return sample
}

// Query returns in-memory samples matching the filter, oldest first.
func (s *Store) Query(t metric.Type, since, until time.Time) []metric.Sample {
	return s.window.Query(t, since, until)
}

// Recent returns in-memory samples of the given type from the last d.
func (s *Store) Recent(t metric.Type, d time.Duration) []metric.Sample {
	return s.window.Recent(t, d)
}

// Latest returns the most recent in-memory sample of the given type.
func (s *Store) Latest(t metric.Type) (metric.Sample, bool) {
	return s.window.Latest(t)
}

// QueryHistory returns samples in [since, until] from the durable sink,
// falling back to the in-memory window when the sink is unavailable.
// Query failures never propagate to the caller.
func (s *Store) QueryHistory(ctx context.Context, t metric.Type, since, until time.Time) []metric.Sample {
	if s.repo != nil {
		samples, err := s.repo.FindRange(ctx, t, since, until)
		if err == nil {
			return samples
		}
		s.logger.Warn("failed to read sample history, serving from memory",
			zap.String("metric_type", t.String()),
			zap.Error(err),
		)
	}
	return s.window.Query(t, since, until)
}

// PruneOlderThan removes persisted samples observed before the cutoff.
func (s *Store) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if s.repo == nil {
		return 0, nil
	}
	return s.repo.DeleteOlderThan(ctx, cutoff)
}

// Window exposes the in-memory window for read-side consumers
// (issue detector, safety gate).
func (s *Store) Window() *metric.Window {
	return s.window
}

// Thresholds exposes the threshold registry.
func (s *Store) Thresholds() *metric.ThresholdRegistry {
	return s.registry
}
