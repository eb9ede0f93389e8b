package benchmark

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/vectorcraft/tuner/internal/domain/benchmark"
	"github.com/vectorcraft/tuner/internal/domain/shared"
)

const (
	defaultHistoryDays = 7
	maxHistoryDays     = 90
)

// History returns persisted runs inside the window, newest first. An
// empty testID spans all tests; days outside [1, 90] falls back to the
// 7-day default or the 90-day cap.
func (r *Runner) History(ctx context.Context, testID string, days int) ([]*benchmark.Result, error) {
	if days <= 0 {
		days = defaultHistoryDays
	}
	if days > maxHistoryDays {
		days = maxHistoryDays
	}
	since := time.Now().UTC().AddDate(0, 0, -days)
	return r.results.FindHistory(ctx, testID, since)
}

// Compare evaluates the most recent completed run of the current test
// against the most recent completed run of the baseline test. A test
// with no completed run yields a not found error.
func (r *Runner) Compare(ctx context.Context, baselineTestID, currentTestID string) (benchmark.Comparison, error) {
	baseline, err := r.latestCompleted(ctx, baselineTestID)
	if err != nil {
		return benchmark.Comparison{}, err
	}
	current, err := r.latestCompleted(ctx, currentTestID)
	if err != nil {
		return benchmark.Comparison{}, err
	}
	return benchmark.Compare(baseline, current), nil
}

func (r *Runner) latestCompleted(ctx context.Context, testID string) (*benchmark.Result, error) {
	results, err := r.results.FindHistory(ctx, testID, time.Time{})
	if err != nil {
		return nil, err
	}
	for _, result := range results {
		if result.State == benchmark.StateCompleted {
			return result, nil
		}
	}
	return nil, shared.ErrNotFound.WithDetails("no completed benchmark result for test %s", testID)
}

// Definitions lists every stored benchmark definition.
func (r *Runner) Definitions(ctx context.Context) ([]benchmark.Definition, error) {
	return r.definitions.FindAll(ctx)
}

// EnsureDefaults seeds the standard benchmark templates that are not
// already stored.
func (r *Runner) EnsureDefaults(ctx context.Context) error {
	for _, def := range benchmark.DefaultDefinitions() {
		_, err := r.definitions.FindByID(ctx, def.ID)
		if err == nil {
			continue
		}
		if !isNotFound(err) {
			return err
		}
		if err := r.definitions.Save(ctx, def); err != nil {
			return err
		}
		r.logger.Info("seeded benchmark definition", zap.String("test_id", def.ID))
	}
	return nil
}

func isNotFound(err error) bool {
	var domainErr *shared.DomainError
	return errors.As(err, &domainErr) && domainErr.Code == shared.ErrNotFound.Code
}
