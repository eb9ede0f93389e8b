package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vectorcraft/tuner/internal/domain/optimization"
	"github.com/vectorcraft/tuner/internal/infrastructure/persistence/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupOptimizationResultTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.OptimizationResultModel{})
	require.NoError(t, err)

	return db
}

func seedResult(actionID string, success bool, at time.Time) optimization.Result {
	return optimization.Result{
		ID:        uuid.New(),
		ActionID:  actionID,
		Success:   success,
		Timestamp: at,
		Source:    optimization.SourceAutomatic,
	}
}

func TestGormOptimizationResultRepository_Append(t *testing.T) {
	db := setupOptimizationResultTestDB(t)
	repo := NewGormOptimizationResultRepository(db)
	ctx := context.Background()

	t.Run("persists result with side effects and rollback id", func(t *testing.T) {
		rollbackID := uuid.New()
		result := optimization.Result{
			ID:          uuid.New(),
			ActionID:    "increase_connection_pool",
			Success:     true,
			Improvement: 12.5,
			SideEffects: []string{"connection spike during resize"},
			DurationMS:  420,
			Timestamp:   time.Now().UTC(),
			RollbackID:  &rollbackID,
			Source:      optimization.SourceAutomatic,
		}

		require.NoError(t, repo.Append(ctx, result))

		found, err := repo.FindRecent(ctx, 1)
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, result.ID, found[0].ID)
		assert.Equal(t, "increase_connection_pool", found[0].ActionID)
		assert.True(t, found[0].Success)
		assert.Equal(t, 12.5, found[0].Improvement)
		assert.Equal(t, []string{"connection spike during resize"}, found[0].SideEffects)
		assert.Equal(t, int64(420), found[0].DurationMS)
		require.NotNil(t, found[0].RollbackID)
		assert.Equal(t, rollbackID, *found[0].RollbackID)
		assert.Equal(t, optimization.SourceAutomatic, found[0].Source)
	})

	t.Run("persists result without rollback id or side effects", func(t *testing.T) {
		result := optimization.NewResult("clear_caches", false, 0, nil, 50*time.Millisecond)
		require.NoError(t, repo.Append(ctx, result))

		found, err := repo.FindRecent(ctx, 1)
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Nil(t, found[0].RollbackID)
		assert.Empty(t, found[0].SideEffects)
		assert.False(t, found[0].Success)
	})
}

func TestGormOptimizationResultRepository_FindRecent(t *testing.T) {
	db := setupOptimizationResultTestDB(t)
	repo := NewGormOptimizationResultRepository(db)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Append(ctx, seedResult("tune_gc", i%2 == 0, base.Add(time.Duration(i)*time.Minute))))
	}

	t.Run("orders newest first and honors limit", func(t *testing.T) {
		found, err := repo.FindRecent(ctx, 3)
		require.NoError(t, err)
		require.Len(t, found, 3)
		assert.True(t, found[0].Timestamp.After(found[1].Timestamp))
		assert.True(t, found[1].Timestamp.After(found[2].Timestamp))
	})

	t.Run("non-positive limit returns everything", func(t *testing.T) {
		found, err := repo.FindRecent(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, found, 5)
	})
}

func TestGormOptimizationResultRepository_FindByActionSince(t *testing.T) {
	db := setupOptimizationResultTestDB(t)
	repo := NewGormOptimizationResultRepository(db)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Append(ctx, seedResult("tune_gc", true, base)))
	require.NoError(t, repo.Append(ctx, seedResult("tune_gc", false, base.Add(10*time.Minute))))
	require.NoError(t, repo.Append(ctx, seedResult("tune_gc", true, base.Add(20*time.Minute))))
	require.NoError(t, repo.Append(ctx, seedResult("clear_caches", true, base.Add(15*time.Minute))))

	t.Run("filters by action and cutoff", func(t *testing.T) {
		found, err := repo.FindByActionSince(ctx, "tune_gc", base.Add(5*time.Minute))
		require.NoError(t, err)
		require.Len(t, found, 2)
		for _, r := range found {
			assert.Equal(t, "tune_gc", r.ActionID)
		}
		assert.True(t, found[0].Timestamp.After(found[1].Timestamp))
	})

	t.Run("cutoff is inclusive", func(t *testing.T) {
		found, err := repo.FindByActionSince(ctx, "tune_gc", base)
		require.NoError(t, err)
		assert.Len(t, found, 3)
	})

	t.Run("unknown action returns nothing", func(t *testing.T) {
		found, err := repo.FindByActionSince(ctx, "no_such_action", base)
		require.NoError(t, err)
		assert.Empty(t, found)
	})
}
