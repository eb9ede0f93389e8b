package persistence

import (
	"context"
	"time"

	"github.com/vectorcraft/tuner/internal/domain/optimization"
	"github.com/vectorcraft/tuner/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormOptimizationResultRepository implements optimization.ResultRepository using GORM
type GormOptimizationResultRepository struct {
	db *gorm.DB
}

// NewGormOptimizationResultRepository creates a new GormOptimizationResultRepository
func NewGormOptimizationResultRepository(db *gorm.DB) *GormOptimizationResultRepository {
	return &GormOptimizationResultRepository{db: db}
}

// WithTx returns a new repository instance with the given transaction
func (r *GormOptimizationResultRepository) WithTx(tx *gorm.DB) *GormOptimizationResultRepository {
	return &GormOptimizationResultRepository{db: tx}
}

// Append persists one result
func (r *GormOptimizationResultRepository) Append(ctx context.Context, result optimization.Result) error {
	var model models.OptimizationResultModel
	model.FromDomain(result)
	return r.db.WithContext(ctx).Create(&model).Error
}

// FindRecent returns up to limit results ordered newest first.
// A non-positive limit returns everything.
func (r *GormOptimizationResultRepository) FindRecent(ctx context.Context, limit int) ([]optimization.Result, error) {
	var resultModels []models.OptimizationResultModel

	query := r.db.WithContext(ctx).Model(&models.OptimizationResultModel{}).
		Order("timestamp DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&resultModels).Error; err != nil {
		return nil, err
	}

	results := make([]optimization.Result, len(resultModels))
	for i, model := range resultModels {
		results[i] = model.ToDomain()
	}
	return results, nil
}

// FindByActionSince returns results for one action recorded at or after the
// cutoff, ordered newest first
func (r *GormOptimizationResultRepository) FindByActionSince(ctx context.Context, actionID string, cutoff time.Time) ([]optimization.Result, error) {
	var resultModels []models.OptimizationResultModel

	if err := r.db.WithContext(ctx).
		Where("action_id = ? AND timestamp >= ?", actionID, cutoff).
		Order("timestamp DESC").
		Find(&resultModels).Error; err != nil {
		return nil, err
	}

	results := make([]optimization.Result, len(resultModels))
	for i, model := range resultModels {
		results[i] = model.ToDomain()
	}
	return results, nil
}

// Ensure GormOptimizationResultRepository implements ResultRepository
var _ optimization.ResultRepository = (*GormOptimizationResultRepository)(nil)
