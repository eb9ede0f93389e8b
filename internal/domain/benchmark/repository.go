package benchmark

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DefinitionRepository stores benchmark test templates
type DefinitionRepository interface {
	Save(ctx context.Context, def Definition) error
	FindByID(ctx context.Context, id string) (Definition, error)
	FindAll(ctx context.Context) ([]Definition, error)
}

// ResultRepository stores completed and failed benchmark runs
type ResultRepository interface {
	Save(ctx context.Context, result *Result) error
	FindByID(ctx context.Context, id uuid.UUID) (*Result, error)
	// FindHistory returns runs newer than since, newest first,
	// optionally filtered by test id when testID is non-empty
	FindHistory(ctx context.Context, testID string, since time.Time) ([]*Result, error)
}
