// Package runner drives configured load against the tuner API.
package runner

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"golang.org/x/time/rate"

	"github.com/vectorcraft/tuner/tools/loadgen/internal/client"
	"github.com/vectorcraft/tuner/tools/loadgen/internal/config"
	"github.com/vectorcraft/tuner/tools/loadgen/internal/pool"
)

// placeholderPattern matches {semantic.type} tokens in paths and bodies.
var placeholderPattern = regexp.MustCompile(`\{([a-z0-9_.]+)\}`)

// Runner executes one load run: a shared rate limiter feeds a fixed set
// of workers, each issuing weighted-random endpoint calls and harvesting
// response fields into the parameter pool for later requests to use.
type Runner struct {
	cfg     *config.Config
	client  *client.Client
	pool    pool.ParameterPool
	harvest map[string][]config.HarvestRule // endpoint name -> rules

	picker *weightedPicker

	mu    sync.Mutex
	stats runStats
}

type runStats struct {
	total     int64
	failed    int64
	latencies []time.Duration
	byName    map[string]*endpointStats
}

type endpointStats struct {
	total  int64
	failed int64
}

// New wires a runner from configuration.
func New(cfg *config.Config) (*Runner, error) {
	httpClient, err := client.New(cfg.Target, cfg.Auth)
	if err != nil {
		return nil, err
	}

	harvest := make(map[string][]config.HarvestRule)
	for _, rule := range cfg.Harvest {
		harvest[rule.Endpoint] = append(harvest[rule.Endpoint], rule)
	}

	return &Runner{
		cfg:     cfg,
		client:  httpClient,
		pool:    pool.NewShardedParameterPool(cfg.PoolSettings()),
		harvest: harvest,
		picker:  newWeightedPicker(cfg.Endpoints),
		stats:   runStats{byName: make(map[string]*endpointStats)},
	}, nil
}

// Run executes the load run until the configured duration elapses or
// ctx is cancelled, then returns the aggregated report.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	runCtx, cancel := context.WithTimeout(ctx, r.cfg.Duration)
	defer cancel()

	limiter := rate.NewLimiter(rate.Limit(r.cfg.QPS), r.cfg.Workers)
	start := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < r.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.workerLoop(runCtx, limiter)
		}()
	}
	wg.Wait()

	return r.buildReport(time.Since(start)), nil
}

func (r *Runner) workerLoop(ctx context.Context, limiter *rate.Limiter) {
	for {
		if err := limiter.Wait(ctx); err != nil {
			return // deadline or cancellation
		}
		ep := r.picker.pick()
		r.callOnce(ctx, ep)
	}
}

func (r *Runner) callOnce(ctx context.Context, ep config.EndpointConfig) {
	path := r.substitute(ctx, ep.Path)
	body := r.substitute(ctx, ep.Body)

	res := r.client.Do(ctx, ep.Method, path, body, ep.RequireAuth)
	r.record(ep.Name, res)

	if res.Failed() {
		return
	}
	for _, rule := range r.harvest[ep.Name] {
		for _, value := range client.ExtractField(res.Body, rule.FieldPath) {
			pv := pool.NewParameterValue(value, rule.SemanticType, r.cfg.Pool.TTL).
				WithSource(ep.Method+" "+ep.Path, rule.FieldPath)
			_, _ = r.pool.Add(ctx, pv)
		}
	}
}

// substitute resolves every {semantic.type} placeholder, preferring a
// pooled value harvested from earlier responses and falling back to a
// generated one so a cold pool still produces valid-shaped requests.
func (r *Runner) substitute(ctx context.Context, template string) string {
	if template == "" || !strings.Contains(template, "{") {
		return template
	}
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		semantic := pool.SemanticType(match[1 : len(match)-1])
		if pv, err := r.pool.GetRandom(ctx, semantic); err == nil && pv != nil {
			return fmt.Sprintf("%v", pv.Value)
		}
		return generateFallback(semantic)
	})
}

// generateFallback fabricates a plausible value for a semantic type
// with no pooled data yet.
func generateFallback(semantic pool.SemanticType) string {
	switch semantic {
	case pool.SemanticTypeTimestamp:
		return time.Now().UTC().Format(time.RFC3339)
	case pool.SemanticTypeMetricName:
		names := []string{"cpu_usage", "memory_usage", "response_time_avg", "error_rate"}
		return names[rand.Intn(len(names))]
	}
	s := string(semantic)
	switch {
	case strings.HasSuffix(s, ".id") || strings.HasSuffix(s, "uuid"):
		return gofakeit.UUID()
	case strings.HasSuffix(s, ".name"):
		return gofakeit.AppName()
	default:
		return gofakeit.Word()
	}
}

func (r *Runner) record(name string, res client.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stats.total++
	es := r.stats.byName[name]
	if es == nil {
		es = &endpointStats{}
		r.stats.byName[name] = es
	}
	es.total++

	if res.Failed() {
		r.stats.failed++
		es.failed++
		return
	}
	r.stats.latencies = append(r.stats.latencies, res.Latency)
}

// PoolStats exposes parameter-pool statistics for reporting.
func (r *Runner) PoolStats(ctx context.Context) (pool.Stats, error) {
	return r.pool.Stats(ctx)
}

// Close releases the parameter pool.
func (r *Runner) Close() error {
	return r.pool.Close()
}

// weightedPicker selects endpoints proportionally to their weight.
type weightedPicker struct {
	endpoints []config.EndpointConfig
	weights   []int // cumulative
	total     int

	mu  sync.Mutex
	rng *rand.Rand
}

func newWeightedPicker(endpoints []config.EndpointConfig) *weightedPicker {
	p := &weightedPicker{
		endpoints: endpoints,
		weights:   make([]int, len(endpoints)),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for i, ep := range endpoints {
		p.total += ep.Weight
		p.weights[i] = p.total
	}
	return p
}

func (p *weightedPicker) pick() config.EndpointConfig {
	p.mu.Lock()
	n := p.rng.Intn(p.total)
	p.mu.Unlock()

	for i, cum := range p.weights {
		if n < cum {
			return p.endpoints[i]
		}
	}
	return p.endpoints[len(p.endpoints)-1]
}
