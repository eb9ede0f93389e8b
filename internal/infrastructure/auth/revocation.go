package auth

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationStore tracks operator tokens that must stop working before
// their natural expiry. Logout revokes a single token by JTI; rotating
// the operator credential invalidates everything issued before the
// rotation. Entries only need to live as long as the longest token
// lifetime, so every write carries a TTL.
type RevocationStore interface {
	// Revoke marks a single token (by JTI) as revoked for ttl.
	Revoke(ctx context.Context, jti string, ttl time.Duration) error

	// IsRevoked reports whether the given JTI has been revoked.
	IsRevoked(ctx context.Context, jti string) (bool, error)

	// RevokeIssuedBefore records a cutoff: tokens issued at or before
	// now are invalid. Used on credential rotation.
	RevokeIssuedBefore(ctx context.Context, ttl time.Duration) error

	// IsInvalidatedAt reports whether a token issued at issuedAt falls
	// behind a recorded cutoff.
	IsInvalidatedAt(ctx context.Context, issuedAt time.Time) (bool, error)
}

const (
	revokedKeyPrefix = "tuner:auth:revoked:"
	cutoffKey        = "tuner:auth:cutoff"
)

// RedisRevocationStore keeps revocations in Redis so they survive a
// process restart within the token lifetime.
type RedisRevocationStore struct {
	client *redis.Client
}

// RedisRevocationConfig holds connection settings for the Redis store.
type RedisRevocationConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisRevocationStore connects to Redis and verifies the connection
// before returning the store.
func NewRedisRevocationStore(cfg RedisRevocationConfig) (*RedisRevocationStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     5,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis for token revocation: %w", err)
	}

	return &RedisRevocationStore{client: client}, nil
}

// NewRedisRevocationStoreWithClient wraps an existing Redis client.
func NewRedisRevocationStoreWithClient(client *redis.Client) *RedisRevocationStore {
	return &RedisRevocationStore{client: client}
}

func (s *RedisRevocationStore) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if err := s.client.Set(ctx, revokedKeyPrefix+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (s *RedisRevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Exists(ctx, revokedKeyPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("check token revocation: %w", err)
	}
	return n > 0, nil
}

func (s *RedisRevocationStore) RevokeIssuedBefore(ctx context.Context, ttl time.Duration) error {
	cutoff := time.Now().UnixNano()
	if err := s.client.Set(ctx, cutoffKey, cutoff, ttl).Err(); err != nil {
		return fmt.Errorf("record revocation cutoff: %w", err)
	}
	return nil
}

func (s *RedisRevocationStore) IsInvalidatedAt(ctx context.Context, issuedAt time.Time) (bool, error) {
	raw, err := s.client.Get(ctx, cutoffKey).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check revocation cutoff: %w", err)
	}
	cutoff, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false, fmt.Errorf("parse revocation cutoff: %w", err)
	}
	return issuedAt.UnixNano() <= cutoff, nil
}

// Close closes the underlying Redis client.
func (s *RedisRevocationStore) Close() error {
	return s.client.Close()
}

var _ RevocationStore = (*RedisRevocationStore)(nil)

// MemoryRevocationStore is a process-local store for development and
// single-instance deployments. Revocations are lost on restart, which
// means a logged-out token works again until it expires; acceptable for
// a dev setup, not for production behind multiple replicas.
type MemoryRevocationStore struct {
	mu      sync.Mutex
	revoked map[string]time.Time // jti -> entry expiry
	cutoff  time.Time            // zero when no rotation happened
}

// NewMemoryRevocationStore creates an empty in-memory store.
func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{revoked: make(map[string]time.Time)}
}

func (s *MemoryRevocationStore) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[jti] = time.Now().Add(ttl)
	return nil
}

func (s *MemoryRevocationStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, ok := s.revoked[jti]
	if !ok {
		return false, nil
	}
	if time.Now().After(expiry) {
		delete(s.revoked, jti)
		return false, nil
	}
	return true, nil
}

func (s *MemoryRevocationStore) RevokeIssuedBefore(_ context.Context, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cutoff = time.Now()
	return nil
}

func (s *MemoryRevocationStore) IsInvalidatedAt(_ context.Context, issuedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cutoff.IsZero() {
		return false, nil
	}
	return !issuedAt.After(s.cutoff), nil
}

var _ RevocationStore = (*MemoryRevocationStore)(nil)
