package metric

import (
	"context"
	"time"
)

// SampleRepository is the durable append-only sink for samples.
// Writes are best-effort from the store's point of view: a failed write is
// logged by the caller and never blocks the in-memory path.
type SampleRepository interface {
	// Append persists one sample
	Append(ctx context.Context, sample Sample) error
	// FindRange returns persisted samples ordered by timestamp ascending.
	// A zero metric type matches all types.
	FindRange(ctx context.Context, t Type, since, until time.Time) ([]Sample, error)
	// DeleteOlderThan removes samples observed before the cutoff,
	// returning the number removed
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
