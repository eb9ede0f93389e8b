package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/vectorcraft/tuner/internal/domain/benchmark"
	"github.com/vectorcraft/tuner/internal/domain/shared"
	"github.com/vectorcraft/tuner/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormBenchmarkDefinitionRepository implements benchmark.DefinitionRepository using GORM
type GormBenchmarkDefinitionRepository struct {
	db *gorm.DB
}

// NewGormBenchmarkDefinitionRepository creates a new GormBenchmarkDefinitionRepository
func NewGormBenchmarkDefinitionRepository(db *gorm.DB) *GormBenchmarkDefinitionRepository {
	return &GormBenchmarkDefinitionRepository{db: db}
}

// WithTx returns a new repository instance with the given transaction
func (r *GormBenchmarkDefinitionRepository) WithTx(tx *gorm.DB) *GormBenchmarkDefinitionRepository {
	return &GormBenchmarkDefinitionRepository{db: tx}
}

// Save creates or replaces a definition keyed by its id. Seeding the default
// test suite at startup runs through here, so an existing row is updated in
// place rather than rejected.
func (r *GormBenchmarkDefinitionRepository) Save(ctx context.Context, def benchmark.Definition) error {
	var model models.BenchmarkDefinitionModel
	model.FromDomain(def)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(&model).Error
}

// FindByID finds a benchmark definition by its id
func (r *GormBenchmarkDefinitionRepository) FindByID(ctx context.Context, id string) (benchmark.Definition, error) {
	var model models.BenchmarkDefinitionModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return benchmark.Definition{}, shared.ErrNotFound
		}
		return benchmark.Definition{}, err
	}
	return model.ToDomain(), nil
}

// FindAll returns every stored benchmark definition
func (r *GormBenchmarkDefinitionRepository) FindAll(ctx context.Context) ([]benchmark.Definition, error) {
	var defModels []models.BenchmarkDefinitionModel
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&defModels).Error; err != nil {
		return nil, err
	}

	defs := make([]benchmark.Definition, len(defModels))
	for i, model := range defModels {
		defs[i] = model.ToDomain()
	}
	return defs, nil
}

// Ensure GormBenchmarkDefinitionRepository implements DefinitionRepository
var _ benchmark.DefinitionRepository = (*GormBenchmarkDefinitionRepository)(nil)

// GormBenchmarkResultRepository implements benchmark.ResultRepository using GORM
type GormBenchmarkResultRepository struct {
	db *gorm.DB
}

// NewGormBenchmarkResultRepository creates a new GormBenchmarkResultRepository
func NewGormBenchmarkResultRepository(db *gorm.DB) *GormBenchmarkResultRepository {
	return &GormBenchmarkResultRepository{db: db}
}

// WithTx returns a new repository instance with the given transaction
func (r *GormBenchmarkResultRepository) WithTx(tx *gorm.DB) *GormBenchmarkResultRepository {
	return &GormBenchmarkResultRepository{db: tx}
}

// Save creates or replaces a result keyed by its id. The runner saves the
// same result on every state transition.
func (r *GormBenchmarkResultRepository) Save(ctx context.Context, result *benchmark.Result) error {
	var model models.BenchmarkResultModel
	model.FromDomain(result)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(&model).Error
}

// FindByID finds a benchmark result by its id
func (r *GormBenchmarkResultRepository) FindByID(ctx context.Context, id uuid.UUID) (*benchmark.Result, error) {
	var model models.BenchmarkResultModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindHistory returns results started at or after since, ordered newest
// first. An empty test id matches all tests.
func (r *GormBenchmarkResultRepository) FindHistory(ctx context.Context, testID string, since time.Time) ([]*benchmark.Result, error) {
	var resultModels []models.BenchmarkResultModel

	query := r.db.WithContext(ctx).Model(&models.BenchmarkResultModel{}).
		Where("started_at >= ?", since)
	if testID != "" {
		query = query.Where("test_id = ?", testID)
	}

	if err := query.Order("started_at DESC").Find(&resultModels).Error; err != nil {
		return nil, err
	}

	results := make([]*benchmark.Result, len(resultModels))
	for i := range resultModels {
		results[i] = resultModels[i].ToDomain()
	}
	return results, nil
}

// Ensure GormBenchmarkResultRepository implements ResultRepository
var _ benchmark.ResultRepository = (*GormBenchmarkResultRepository)(nil)
