package optimization

import (
	"context"
	"time"
)

// ResultRepository is the durable sink for optimization results
type ResultRepository interface {
	// Append persists one result
	Append(ctx context.Context, result Result) error
	// FindRecent returns up to limit results ordered newest first
	FindRecent(ctx context.Context, limit int) ([]Result, error)
	// FindByActionSince returns results for one action recorded at or
	// after the cutoff, ordered newest first
	FindByActionSince(ctx context.Context, actionID string, cutoff time.Time) ([]Result, error)
}
