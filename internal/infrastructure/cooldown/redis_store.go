package cooldown

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vectorcraft/tuner/internal/domain/optimization"
)

// RedisStore implements CooldownStore using Redis. Suitable when several
// tuner instances watch the same deployment and need to share which actions
// executed recently.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisStore creates a new Redis-backed cooldown store
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{
		client:    client,
		keyPrefix: "optimizer:cooldown:",
	}, nil
}

// NewRedisStoreWithClient creates a store with an existing Redis client.
// This is useful for testing or when sharing a client across components.
func NewRedisStoreWithClient(client *redis.Client, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "optimizer:cooldown:"
	}
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Mark starts or restarts the cooldown window for an action. A plain SET is
// used rather than SETNX: a manual re-execution restarts the window.
func (s *RedisStore) Mark(ctx context.Context, actionID string, ttl time.Duration) error {
	key := s.keyPrefix + actionID
	if err := s.client.Set(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to mark cooldown: %w", err)
	}
	return nil
}

// Active reports whether the action is inside its cooldown window
func (s *RedisStore) Active(ctx context.Context, actionID string) (bool, error) {
	key := s.keyPrefix + actionID
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check cooldown: %w", err)
	}
	return exists > 0, nil
}

// Remaining returns the time left in the window, zero when inactive
func (s *RedisStore) Remaining(ctx context.Context, actionID string) (time.Duration, error) {
	key := s.keyPrefix + actionID
	ttl, err := s.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read cooldown ttl: %w", err)
	}
	// PTTL reports -2 for a missing key and -1 for a key without expiry
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

// Close closes the Redis client
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// GetClient returns the underlying Redis client (for testing/monitoring)
func (s *RedisStore) GetClient() *redis.Client {
	return s.client
}

// Ensure RedisStore implements CooldownStore
var _ optimization.CooldownStore = (*RedisStore)(nil)
