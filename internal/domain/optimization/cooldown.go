package optimization

import (
	"context"
	"time"
)

// CooldownStore tracks per-action cooldown windows so the recommender does
// not resurface an action that executed recently. Implementations must be
// safe for concurrent use.
type CooldownStore interface {
	// Mark starts or restarts the cooldown window for an action
	Mark(ctx context.Context, actionID string, ttl time.Duration) error
	// Active reports whether the action is inside its cooldown window
	Active(ctx context.Context, actionID string) (bool, error)
	// Remaining returns the time left in the window, zero when inactive
	Remaining(ctx context.Context, actionID string) (time.Duration, error)
	// Close releases any resources held by the store
	Close() error
}
