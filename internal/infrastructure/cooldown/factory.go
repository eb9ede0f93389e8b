package cooldown

import (
	"fmt"

	"github.com/vectorcraft/tuner/internal/domain/optimization"
	"github.com/vectorcraft/tuner/internal/infrastructure/config"
	"go.uber.org/zap"
)

// StoreFactory creates cooldown stores based on configuration
type StoreFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// StoreFactoryOption is a functional option for configuring the factory
type StoreFactoryOption func(*StoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) StoreFactoryOption {
	return func(f *StoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to the in-memory store
// when Redis is unavailable. Default is true.
func WithInMemoryFallback(allow bool) StoreFactoryOption {
	return func(f *StoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewStoreFactory creates a new factory
func NewStoreFactory(cfg config.RedisConfig, opts ...StoreFactoryOption) *StoreFactory {
	f := &StoreFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// CreateRedisStore creates a Redis-backed cooldown store
func (f *StoreFactory) CreateRedisStore() (optimization.CooldownStore, error) {
	store, err := NewRedisStore(RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis cooldown store: %w", err)
	}
	return store, nil
}

// CreateInMemoryStore creates an in-memory cooldown store
func (f *StoreFactory) CreateInMemoryStore() optimization.CooldownStore {
	return NewInMemoryStore()
}

// CreateStore creates a cooldown store from configuration. When Redis is not
// enabled the in-memory store is used directly. When Redis is enabled but
// unreachable the factory falls back to in-memory with a warning, unless
// fallback is disallowed.
func (f *StoreFactory) CreateStore() (optimization.CooldownStore, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("using in-memory cooldown store")
		return f.CreateInMemoryStore(), nil
	}

	store, err := f.CreateRedisStore()
	if err == nil {
		f.logger.Info("using Redis cooldown store")
		return store, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for cooldown state but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory cooldown store. "+
		"Cooldown state will not be shared across tuner instances.",
		zap.Error(err),
	)
	return f.CreateInMemoryStore(), nil
}
