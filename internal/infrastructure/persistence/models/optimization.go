package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vectorcraft/tuner/internal/domain/optimization"
)

// OptimizationResultModel is the persistence model for an applied
// optimization outcome, automatic or manual.
type OptimizationResultModel struct {
	ID              uuid.UUID  `gorm:"type:uuid;primary_key"`
	ActionID        string     `gorm:"type:varchar(80);not null;index"`
	Success         bool       `gorm:"not null"`
	Improvement     float64    `gorm:"not null"`
	SideEffectsJSON string     `gorm:"column:side_effects;type:jsonb;default:'[]'"`
	DurationMS      int64      `gorm:"not null"`
	Timestamp       time.Time  `gorm:"not null;index"`
	RollbackID      *uuid.UUID `gorm:"type:uuid"`
	Source          string     `gorm:"type:varchar(20);not null"`
	CreatedAt       time.Time  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OptimizationResultModel) TableName() string {
	return "optimization_results"
}

// ToDomain converts the persistence model to a domain Result
func (m *OptimizationResultModel) ToDomain() optimization.Result {
	result := optimization.Result{
		ID:          m.ID,
		ActionID:    m.ActionID,
		Success:     m.Success,
		Improvement: m.Improvement,
		DurationMS:  m.DurationMS,
		Timestamp:   m.Timestamp,
		RollbackID:  m.RollbackID,
		Source:      m.Source,
	}

	if m.SideEffectsJSON != "" && m.SideEffectsJSON != "[]" {
		var effects []string
		if err := json.Unmarshal([]byte(m.SideEffectsJSON), &effects); err != nil {
			modelLogger.Warn("failed to parse side_effects JSON",
				zap.String("action_id", m.ActionID),
				zap.Error(err))
		} else {
			result.SideEffects = effects
		}
	}

	return result
}

// FromDomain populates the persistence model from a domain Result
func (m *OptimizationResultModel) FromDomain(r optimization.Result) {
	m.ID = r.ID
	m.ActionID = r.ActionID
	m.Success = r.Success
	m.Improvement = r.Improvement
	m.DurationMS = r.DurationMS
	m.Timestamp = r.Timestamp
	m.RollbackID = r.RollbackID
	m.Source = r.Source
	m.CreatedAt = time.Now().UTC()

	m.SideEffectsJSON = "[]"
	if len(r.SideEffects) > 0 {
		if jsonBytes, err := json.Marshal(r.SideEffects); err == nil {
			m.SideEffectsJSON = string(jsonBytes)
		}
	}
}
