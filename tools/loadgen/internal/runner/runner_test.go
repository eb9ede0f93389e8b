package runner

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vectorcraft/tuner/tools/loadgen/internal/config"
	"github.com/vectorcraft/tuner/tools/loadgen/internal/pool"
)

func testConfig(baseURL string) *config.Config {
	cfg := &config.Config{
		Name:   "test",
		Target: config.TargetConfig{BaseURL: baseURL, Timeout: 5 * time.Second},
		Endpoints: []config.EndpointConfig{
			{Name: "health", Path: "/health"},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestNew_InvalidTarget(t *testing.T) {
	cfg := testConfig("")
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestRun_AggregatesResults(t *testing.T) {
	var healthy, broken atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		healthy.Add(1)
		w.Write([]byte(`{"code":0}`))
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		broken.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Duration = 300 * time.Millisecond
	cfg.QPS = 200
	cfg.Workers = 4
	cfg.Endpoints = append(cfg.Endpoints, config.EndpointConfig{
		Name: "broken", Method: "GET", Path: "/broken", Weight: 1,
	})

	r, err := New(cfg)
	require.NoError(t, err)
	defer r.Close()

	report, err := r.Run(context.Background())
	require.NoError(t, err)

	// In-flight requests at the deadline are cancelled client-side, so
	// server counts can differ from the report by at most the worker count.
	assert.InDelta(t, float64(healthy.Load()+broken.Load()), float64(report.TotalRequests), float64(cfg.Workers))
	assert.GreaterOrEqual(t, report.FailedRequests, broken.Load())
	assert.Greater(t, report.TotalRequests, int64(0))
	assert.Greater(t, report.Throughput, 0.0)
	assert.GreaterOrEqual(t, report.MaxLatency, report.P50Latency)

	require.Len(t, report.Endpoints, 2)
	assert.Equal(t, "broken", report.Endpoints[0].Name)
	assert.Equal(t, "health", report.Endpoints[1].Name)
	assert.Equal(t, report.Endpoints[0].Total, report.Endpoints[0].Failed)
	assert.LessOrEqual(t, report.Endpoints[1].Failed, int64(cfg.Workers), "only deadline-cancelled calls may fail")
}

func TestRun_HarvestsIntoPool(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/tests", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":0,"data":[{"id":"t1"},{"id":"t2"}]}`))
	})
	mux.HandleFunc("/history", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":0,"data":[]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Duration = 200 * time.Millisecond
	cfg.QPS = 100
	cfg.Workers = 2
	cfg.Endpoints = []config.EndpointConfig{
		{Name: "tests", Method: "GET", Path: "/tests", Weight: 1},
		{Name: "history", Method: "GET", Path: "/history?test_id={benchmark.test.id}", Weight: 1},
	}
	cfg.Harvest = []config.HarvestRule{
		{Endpoint: "tests", FieldPath: "data.#.id", SemanticType: pool.SemanticTypeTestID},
	}
	require.NoError(t, cfg.Validate())

	r, err := New(cfg)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Run(context.Background())
	require.NoError(t, err)

	stats, err := r.PoolStats(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.ValuesByType[pool.SemanticTypeTestID], int64(2),
		"both ids from each harvested response land in the pool")

	pv, err := r.pool.GetRandom(context.Background(), pool.SemanticTypeTestID)
	require.NoError(t, err)
	assert.Contains(t, []any{"t1", "t2"}, pv.Value)

}

func TestRun_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":0}`))
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Duration = time.Hour

	r, err := New(cfg)
	require.NoError(t, err)
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = r.Run(ctx)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second, "run stops on context cancellation")
}

func TestSubstitute(t *testing.T) {
	cfg := testConfig("http://localhost:8080")
	r, err := New(cfg)
	require.NoError(t, err)
	defer r.Close()

	ctx := context.Background()

	t.Run("no placeholder passes through", func(t *testing.T) {
		assert.Equal(t, "/api/v1/tuning/status", r.substitute(ctx, "/api/v1/tuning/status"))
		assert.Equal(t, "", r.substitute(ctx, ""))
	})

	t.Run("pooled value wins", func(t *testing.T) {
		pv := pool.NewParameterValue("pooled-id", pool.SemanticTypeTestID, time.Hour)
		_, err := r.pool.Add(ctx, pv)
		require.NoError(t, err)

		got := r.substitute(ctx, "/history?test_id={benchmark.test.id}")
		assert.Equal(t, "/history?test_id=pooled-id", got)
	})

	t.Run("cold pool falls back to generated value", func(t *testing.T) {
		got := r.substitute(ctx, "/tests/{benchmark.run.id}")
		assert.NotContains(t, got, "{")
		assert.NotEqual(t, "/tests/", got)
	})

	t.Run("multiple placeholders", func(t *testing.T) {
		got := r.substitute(ctx, `{"metric":"{metric.name}","at":"{common.timestamp}"}`)
		assert.NotContains(t, got, "{metric.name}")
		assert.NotContains(t, got, "{common.timestamp}")
	})
}

func TestGenerateFallback(t *testing.T) {
	t.Run("timestamp is RFC3339", func(t *testing.T) {
		v := generateFallback(pool.SemanticTypeTimestamp)
		_, err := time.Parse(time.RFC3339, v)
		assert.NoError(t, err)
	})

	t.Run("metric name is from the known set", func(t *testing.T) {
		known := map[string]bool{
			"cpu_usage": true, "memory_usage": true,
			"response_time_avg": true, "error_rate": true,
		}
		for i := 0; i < 20; i++ {
			assert.True(t, known[generateFallback(pool.SemanticTypeMetricName)])
		}
	})

	t.Run("id suffix yields a uuid", func(t *testing.T) {
		v := generateFallback(pool.SemanticType("benchmark.test.id"))
		assert.Len(t, v, 36)
		assert.Equal(t, 4, strings.Count(v, "-"))
	})

	t.Run("unknown type yields something", func(t *testing.T) {
		assert.NotEmpty(t, generateFallback(pool.SemanticType("something.else")))
	})
}

func TestWeightedPicker(t *testing.T) {
	endpoints := []config.EndpointConfig{
		{Name: "heavy", Weight: 9},
		{Name: "light", Weight: 1},
	}
	p := newWeightedPicker(endpoints)

	counts := map[string]int{}
	for i := 0; i < 10000; i++ {
		counts[p.pick().Name]++
	}

	assert.Equal(t, 10000, counts["heavy"]+counts["light"])
	assert.Greater(t, counts["heavy"], 8000, "heavy endpoint dominates 9:1 weighting")
	assert.Greater(t, counts["light"], 0, "light endpoint is still exercised")
}

func TestPercentileIndex(t *testing.T) {
	assert.Equal(t, 0, percentileIndex(1, 0.50))
	assert.Equal(t, 0, percentileIndex(1, 0.99))
	assert.Equal(t, 50, percentileIndex(100, 0.50))
	assert.Equal(t, 95, percentileIndex(100, 0.95))
	assert.Equal(t, 99, percentileIndex(100, 0.99))
	assert.Equal(t, 9, percentileIndex(10, 0.99))
}

func TestReport_ErrorRate(t *testing.T) {
	assert.Zero(t, (&Report{}).ErrorRate())
	assert.InDelta(t, 0.25, (&Report{TotalRequests: 100, FailedRequests: 25}).ErrorRate(), 1e-9)
}

func TestReport_Print(t *testing.T) {
	report := &Report{
		Duration:       time.Second,
		TotalRequests:  100,
		FailedRequests: 5,
		Throughput:     95,
		AvgLatency:     10 * time.Millisecond,
		MinLatency:     time.Millisecond,
		MaxLatency:     50 * time.Millisecond,
		P50Latency:     8 * time.Millisecond,
		P95Latency:     30 * time.Millisecond,
		P99Latency:     45 * time.Millisecond,
		Endpoints:      []EndpointReport{{Name: "health", Total: 100, Failed: 5}},
	}

	var sb strings.Builder
	report.Print(&sb)
	out := sb.String()

	assert.Contains(t, out, "100 total, 5 failed")
	assert.Contains(t, out, "95.0 req/s")
	assert.Contains(t, out, "p95 30ms")
	assert.Contains(t, out, "health")
}
