package cooldown

import (
	"context"
	"sync"
	"time"

	"github.com/vectorcraft/tuner/internal/domain/optimization"
)

// entry represents a marked action with its window end
type entry struct {
	expiresAt time.Time
}

// InMemoryStore implements CooldownStore using an in-memory map. This is the
// default for single-instance deployments; cooldown state does not survive a
// restart, which matches the per-process scope of the rest of the optimizer
// state.
type InMemoryStore struct {
	mu        sync.RWMutex
	entries   map[string]entry
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryStore creates a new in-memory cooldown store.
// It starts a background goroutine to clean up expired entries.
func NewInMemoryStore() *InMemoryStore {
	store := &InMemoryStore{
		entries:  make(map[string]entry),
		stopChan: make(chan struct{}),
	}

	store.wg.Add(1)
	go store.cleanupLoop()

	return store
}

// Mark starts or restarts the cooldown window for an action
func (s *InMemoryStore) Mark(ctx context.Context, actionID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[actionID] = entry{
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// Active reports whether the action is inside its cooldown window
func (s *InMemoryStore) Active(ctx context.Context, actionID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.entries[actionID]
	if !exists {
		return false, nil
	}
	return time.Now().Before(e.expiresAt), nil
}

// Remaining returns the time left in the window, zero when inactive
func (s *InMemoryStore) Remaining(ctx context.Context, actionID string) (time.Duration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.entries[actionID]
	if !exists {
		return 0, nil
	}
	left := time.Until(e.expiresAt)
	if left < 0 {
		return 0, nil
	}
	return left, nil
}

// Close stops the cleanup goroutine and releases resources.
// Safe to call multiple times.
func (s *InMemoryStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

// cleanupLoop periodically removes expired entries
func (s *InMemoryStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

// cleanup removes expired entries from the store
func (s *InMemoryStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for actionID, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, actionID)
		}
	}
}

// Size returns the number of entries in the store (for testing/monitoring)
func (s *InMemoryStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Ensure InMemoryStore implements CooldownStore
var _ optimization.CooldownStore = (*InMemoryStore)(nil)
