package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vectorcraft/tuner/internal/domain/metric"
)

// MetricSampleModel is the persistence model for a single metric sample.
// Samples are written through from the in-memory window, so the table
// grows continuously and is pruned by the retention loop.
type MetricSampleModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key"`
	Timestamp    time.Time `gorm:"not null;index:idx_metric_samples_type_ts,priority:2"`
	MetricType   string    `gorm:"type:varchar(40);not null;index:idx_metric_samples_type_ts,priority:1"`
	Value        float64   `gorm:"not null"`
	Unit         string    `gorm:"type:varchar(20)"`
	Endpoint     string    `gorm:"type:varchar(200)"`
	Status       string    `gorm:"type:varchar(20);not null"`
	MetadataJSON string    `gorm:"column:metadata;type:jsonb;default:'{}'"`
	CreatedAt    time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (MetricSampleModel) TableName() string {
	return "metric_samples"
}

// ToDomain converts the persistence model to a domain Sample
func (m *MetricSampleModel) ToDomain() metric.Sample {
	sample := metric.Sample{
		Timestamp: m.Timestamp,
		Type:      metric.Type(m.MetricType),
		Value:     m.Value,
		Unit:      m.Unit,
		Endpoint:  m.Endpoint,
		Status:    metric.Status(m.Status),
	}

	if m.MetadataJSON != "" && m.MetadataJSON != "{}" {
		var metadata map[string]string
		if err := json.Unmarshal([]byte(m.MetadataJSON), &metadata); err != nil {
			modelLogger.Warn("failed to parse sample metadata JSON",
				zap.String("metric_type", m.MetricType),
				zap.Error(err))
		} else {
			sample.Metadata = metadata
		}
	}

	return sample
}

// FromDomain populates the persistence model from a domain Sample
func (m *MetricSampleModel) FromDomain(s metric.Sample) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.Timestamp = s.Timestamp
	m.MetricType = string(s.Type)
	m.Value = s.Value
	m.Unit = s.Unit
	m.Endpoint = s.Endpoint
	m.Status = string(s.Status)
	m.CreatedAt = time.Now().UTC()

	m.MetadataJSON = "{}"
	if len(s.Metadata) > 0 {
		if jsonBytes, err := json.Marshal(s.Metadata); err == nil {
			m.MetadataJSON = string(jsonBytes)
		}
	}
}
