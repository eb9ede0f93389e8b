package monitoring

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vectorcraft/tuner/internal/domain/metric"
)

type fakeSampleRepo struct {
	mu        sync.Mutex
	appended  []metric.Sample
	appendErr error
	findOut   []metric.Sample
	findErr   error
	deleted   int64
	deleteErr error
	cutoff    time.Time
}

func (r *fakeSampleRepo) Append(_ context.Context, sample metric.Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.appendErr != nil {
		return r.appendErr
	}
	r.appended = append(r.appended, sample)
	return nil
}

func (r *fakeSampleRepo) FindRange(_ context.Context, _ metric.Type, _, _ time.Time) ([]metric.Sample, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	return r.findOut, nil
}

func (r *fakeSampleRepo) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cutoff = cutoff
	if r.deleteErr != nil {
		return 0, r.deleteErr
	}
	return r.deleted, nil
}

func (r *fakeSampleRepo) appendedSamples() []metric.Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]metric.Sample, len(r.appended))
	copy(out, r.appended)
	return out
}

func newTestStore(repo metric.SampleRepository) *Store {
	return NewStore(metric.NewWindow(100), repo, metric.NewDefaultThresholdRegistry(), zap.NewNop())
}

func TestStoreRecord_ClassifiesStatus(t *testing.T) {
	store := newTestStore(nil)

	tests := []struct {
		name  string
		value float64
		want  metric.Status
	}{
		{"below warning", 50, metric.StatusNormal},
		{"above warning", 75, metric.StatusWarning},
		{"above critical", 95, metric.StatusCritical},
		{"exactly warning", 70, metric.StatusNormal},
		{"exactly critical", 90, metric.StatusWarning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorded := store.Record(context.Background(), metric.NewSample(metric.TypeCPUUsage, tt.value, "percent"))
			assert.Equal(t, tt.want, recorded.Status)
		})
	}
}

func TestStoreRecord_WritesThroughToRepository(t *testing.T) {
	repo := &fakeSampleRepo{}
	store := newTestStore(repo)

	store.Record(context.Background(), metric.NewSample(metric.TypeMemoryUsage, 42.5, "percent"))

	appended := repo.appendedSamples()
	require.Len(t, appended, 1)
	assert.Equal(t, metric.TypeMemoryUsage, appended[0].Type)
	assert.Equal(t, 42.5, appended[0].Value)

	latest, ok := store.Latest(metric.TypeMemoryUsage)
	require.True(t, ok)
	assert.Equal(t, 42.5, latest.Value)
}

func TestStoreRecord_PersistenceFailureKeepsMemoryPath(t *testing.T) {
	repo := &fakeSampleRepo{appendErr: errors.New("disk full")}
	store := newTestStore(repo)

	recorded := store.Record(context.Background(), metric.NewSample(metric.TypeCPUUsage, 55, "percent"))

	assert.Equal(t, metric.StatusNormal, recorded.Status)
	latest, ok := store.Latest(metric.TypeCPUUsage)
	require.True(t, ok)
	assert.Equal(t, 55.0, latest.Value)
}

func TestStoreRecord_BreachHandlerPushTrigger(t *testing.T) {
	store := newTestStore(nil)

	var breached []metric.Sample
	store.SetBreachHandler(func(s metric.Sample) {
		breached = append(breached, s)
	})

	store.Record(context.Background(), metric.NewSample(metric.TypeCPUUsage, 50, "percent"))
	assert.Empty(t, breached, "normal sample must not trigger the handler")

	store.Record(context.Background(), metric.NewSample(metric.TypeCPUUsage, 80, "percent"))
	require.Len(t, breached, 1)
	assert.Equal(t, metric.StatusWarning, breached[0].Status)

	store.Record(context.Background(), metric.NewSample(metric.TypeCPUUsage, 95, "percent"))
	require.Len(t, breached, 2)
	assert.Equal(t, metric.StatusCritical, breached[1].Status)
}

func TestStoreRecord_NoHandlerRegistered(t *testing.T) {
	store := newTestStore(nil)

	assert.NotPanics(t, func() {
		store.Record(context.Background(), metric.NewSample(metric.TypeCPUUsage, 99, "percent"))
	})
}

func TestStoreQueryHistory_PrefersRepository(t *testing.T) {
	repo := &fakeSampleRepo{
		findOut: []metric.Sample{
			{Timestamp: time.Now().UTC(), Type: metric.TypeCPUUsage, Value: 11, Unit: "percent", Status: metric.StatusNormal},
		},
	}
	store := newTestStore(repo)
	store.Record(context.Background(), metric.NewSample(metric.TypeCPUUsage, 99, "percent"))

	samples := store.QueryHistory(context.Background(), metric.TypeCPUUsage, time.Now().Add(-time.Hour), time.Now())

	require.Len(t, samples, 1)
	assert.Equal(t, 11.0, samples[0].Value, "durable sink wins when available")
}

func TestStoreQueryHistory_FallsBackToWindow(t *testing.T) {
	repo := &fakeSampleRepo{findErr: errors.New("connection refused")}
	store := newTestStore(repo)
	store.Record(context.Background(), metric.NewSample(metric.TypeCPUUsage, 33, "percent"))

	samples := store.QueryHistory(context.Background(), metric.TypeCPUUsage, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))

	require.Len(t, samples, 1)
	assert.Equal(t, 33.0, samples[0].Value)
}

func TestStoreQueryHistory_NilRepositoryUsesWindow(t *testing.T) {
	store := newTestStore(nil)
	store.Record(context.Background(), metric.NewSample(metric.TypeMemoryUsage, 21, "percent"))

	samples := store.QueryHistory(context.Background(), metric.TypeMemoryUsage, time.Time{}, time.Time{})

	require.Len(t, samples, 1)
	assert.Equal(t, 21.0, samples[0].Value)
}

func TestStorePruneOlderThan(t *testing.T) {
	repo := &fakeSampleRepo{deleted: 17}
	store := newTestStore(repo)

	cutoff := time.Now().UTC().Add(-24 * time.Hour)
	deleted, err := store.PruneOlderThan(context.Background(), cutoff)

	require.NoError(t, err)
	assert.Equal(t, int64(17), deleted)
	assert.Equal(t, cutoff, repo.cutoff)
}

func TestStorePruneOlderThan_NilRepository(t *testing.T) {
	store := newTestStore(nil)

	deleted, err := store.PruneOlderThan(context.Background(), time.Now())

	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestStoreQuery_FiltersByTypeAndRange(t *testing.T) {
	store := newTestStore(nil)
	base := time.Now().UTC()

	for i := 0; i < 5; i++ {
		store.Record(context.Background(), metric.Sample{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Type:      metric.TypeCPUUsage,
			Value:     float64(10 * i),
			Unit:      "percent",
		})
	}
	store.Record(context.Background(), metric.Sample{
		Timestamp: base.Add(2 * time.Minute),
		Type:      metric.TypeMemoryUsage,
		Value:     50,
		Unit:      "percent",
	})

	samples := store.Query(metric.TypeCPUUsage, base.Add(time.Minute), base.Add(3*time.Minute))

	require.Len(t, samples, 3)
	for _, s := range samples {
		assert.Equal(t, metric.TypeCPUUsage, s.Type)
	}
}
