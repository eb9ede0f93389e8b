package persistence

import (
	"context"
	"time"

	"github.com/vectorcraft/tuner/internal/domain/metric"
	"github.com/vectorcraft/tuner/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormSampleRepository implements metric.SampleRepository using GORM
type GormSampleRepository struct {
	db *gorm.DB
}

// NewGormSampleRepository creates a new GormSampleRepository
func NewGormSampleRepository(db *gorm.DB) *GormSampleRepository {
	return &GormSampleRepository{db: db}
}

// WithTx returns a new repository instance with the given transaction
func (r *GormSampleRepository) WithTx(tx *gorm.DB) *GormSampleRepository {
	return &GormSampleRepository{db: tx}
}

// Append persists one sample
func (r *GormSampleRepository) Append(ctx context.Context, sample metric.Sample) error {
	var model models.MetricSampleModel
	model.FromDomain(sample)
	return r.db.WithContext(ctx).Create(&model).Error
}

// FindRange returns persisted samples ordered by timestamp ascending.
// A zero metric type matches all types.
func (r *GormSampleRepository) FindRange(ctx context.Context, t metric.Type, since, until time.Time) ([]metric.Sample, error) {
	var sampleModels []models.MetricSampleModel

	query := r.db.WithContext(ctx).Model(&models.MetricSampleModel{}).
		Where("timestamp >= ? AND timestamp <= ?", since, until)
	if t != "" {
		query = query.Where("metric_type = ?", t.String())
	}

	if err := query.Order("timestamp ASC").Find(&sampleModels).Error; err != nil {
		return nil, err
	}

	samples := make([]metric.Sample, len(sampleModels))
	for i, model := range sampleModels {
		samples[i] = model.ToDomain()
	}
	return samples, nil
}

// DeleteOlderThan removes samples observed before the cutoff and returns
// the number removed
func (r *GormSampleRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Delete(&models.MetricSampleModel{}, "timestamp < ?", cutoff)
	return result.RowsAffected, result.Error
}

// Ensure GormSampleRepository implements SampleRepository
var _ metric.SampleRepository = (*GormSampleRepository)(nil)
