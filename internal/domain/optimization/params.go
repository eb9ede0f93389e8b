package optimization

import (
	"github.com/vectorcraft/tuner/internal/domain/shared"
)

// Params is the tagged union of per-category action parameters. Handlers
// receive the concrete type for their category instead of an open map.
type Params interface {
	// ParamCategory returns the category this parameter set belongs to
	ParamCategory() Category
	// Validate checks the parameter values
	Validate() error
	// Fields returns a flat name to value view, used by the tuning API
	// and by rollback snapshots
	Fields() map[string]float64
}

// MemoryParams tunes cache sizing and collector pressure
type MemoryParams struct {
	TargetCacheSizeMB int
	GCTargetPercent   int
}

func (MemoryParams) ParamCategory() Category { return CategoryMemory }

func (p MemoryParams) Validate() error {
	if p.TargetCacheSizeMB < 0 {
		return shared.ErrInvalidInput.WithDetails("target cache size must be >= 0, got %d", p.TargetCacheSizeMB)
	}
	if p.GCTargetPercent < 0 || p.GCTargetPercent > 100 {
		return shared.ErrInvalidInput.WithDetails("gc target must be in [0,100], got %d", p.GCTargetPercent)
	}
	return nil
}

func (p MemoryParams) Fields() map[string]float64 {
	return map[string]float64{
		"target_cache_size_mb": float64(p.TargetCacheSizeMB),
		"gc_target_percent":    float64(p.GCTargetPercent),
	}
}

// CPUParams tunes worker pool sizing and batching
type CPUParams struct {
	WorkerDelta int
	MinWorkers  int
	BatchSize   int
}

func (CPUParams) ParamCategory() Category { return CategoryCPU }

func (p CPUParams) Validate() error {
	if p.MinWorkers < 1 {
		return shared.ErrInvalidInput.WithDetails("min workers must be >= 1, got %d", p.MinWorkers)
	}
	if p.BatchSize < 0 {
		return shared.ErrInvalidInput.WithDetails("batch size must be >= 0, got %d", p.BatchSize)
	}
	return nil
}

func (p CPUParams) Fields() map[string]float64 {
	return map[string]float64{
		"worker_delta": float64(p.WorkerDelta),
		"min_workers":  float64(p.MinWorkers),
		"batch_size":   float64(p.BatchSize),
	}
}

// NetworkParams tunes transport behavior
type NetworkParams struct {
	CompressionLevel int
	MinSizeBytes     int
	KeepAliveSeconds int
}

func (NetworkParams) ParamCategory() Category { return CategoryNetwork }

func (p NetworkParams) Validate() error {
	if p.CompressionLevel < 0 || p.CompressionLevel > 9 {
		return shared.ErrInvalidInput.WithDetails("compression level must be in [0,9], got %d", p.CompressionLevel)
	}
	if p.KeepAliveSeconds < 0 {
		return shared.ErrInvalidInput.WithDetails("keep-alive must be >= 0, got %d", p.KeepAliveSeconds)
	}
	return nil
}

func (p NetworkParams) Fields() map[string]float64 {
	return map[string]float64{
		"compression_level":  float64(p.CompressionLevel),
		"min_size_bytes":     float64(p.MinSizeBytes),
		"keep_alive_seconds": float64(p.KeepAliveSeconds),
	}
}

// DatabaseParams tunes connection pooling and statement caching
type DatabaseParams struct {
	MaxOpenConns   int
	MaxIdleConns   int
	StatementCache bool
}

func (DatabaseParams) ParamCategory() Category { return CategoryDatabase }

func (p DatabaseParams) Validate() error {
	if p.MaxOpenConns < 0 {
		return shared.ErrInvalidInput.WithDetails("max open conns must be >= 0, got %d", p.MaxOpenConns)
	}
	if p.MaxIdleConns > p.MaxOpenConns && p.MaxOpenConns > 0 {
		return shared.ErrInvalidInput.WithDetails("max idle conns (%d) cannot exceed max open conns (%d)", p.MaxIdleConns, p.MaxOpenConns)
	}
	return nil
}

func (p DatabaseParams) Fields() map[string]float64 {
	cache := 0.0
	if p.StatementCache {
		cache = 1
	}
	return map[string]float64{
		"max_open_conns":  float64(p.MaxOpenConns),
		"max_idle_conns":  float64(p.MaxIdleConns),
		"statement_cache": cache,
	}
}

// CachingParams tunes cache lifetimes and bounds
type CachingParams struct {
	TTLSeconds int
	MaxEntries int
}

func (CachingParams) ParamCategory() Category { return CategoryCaching }

func (p CachingParams) Validate() error {
	if p.TTLSeconds < 0 {
		return shared.ErrInvalidInput.WithDetails("ttl must be >= 0, got %d", p.TTLSeconds)
	}
	if p.MaxEntries < 0 {
		return shared.ErrInvalidInput.WithDetails("max entries must be >= 0, got %d", p.MaxEntries)
	}
	return nil
}

func (p CachingParams) Fields() map[string]float64 {
	return map[string]float64{
		"ttl_seconds": float64(p.TTLSeconds),
		"max_entries": float64(p.MaxEntries),
	}
}

// StabilityParams tunes load shedding and worker recycling
type StabilityParams struct {
	MaxConcurrentPercent int
	CooldownSeconds      int
	RestartWorkers       bool
}

func (StabilityParams) ParamCategory() Category { return CategoryStability }

func (p StabilityParams) Validate() error {
	if p.MaxConcurrentPercent < 1 || p.MaxConcurrentPercent > 100 {
		return shared.ErrInvalidInput.WithDetails("max concurrent percent must be in [1,100], got %d", p.MaxConcurrentPercent)
	}
	if p.CooldownSeconds < 0 {
		return shared.ErrInvalidInput.WithDetails("cooldown must be >= 0, got %d", p.CooldownSeconds)
	}
	return nil
}

func (p StabilityParams) Fields() map[string]float64 {
	restart := 0.0
	if p.RestartWorkers {
		restart = 1
	}
	return map[string]float64{
		"max_concurrent_percent": float64(p.MaxConcurrentPercent),
		"cooldown_seconds":       float64(p.CooldownSeconds),
		"restart_workers":        restart,
	}
}
