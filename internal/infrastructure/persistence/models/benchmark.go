package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vectorcraft/tuner/internal/domain/benchmark"
)

// BenchmarkDefinitionModel is the persistence model for a benchmark
// test template. Seeded defaults and admin-defined tests share the table.
type BenchmarkDefinitionModel struct {
	ID                string    `gorm:"type:varchar(80);primary_key"`
	Name              string    `gorm:"type:varchar(200);not null"`
	Description       string    `gorm:"type:text"`
	TestType          string    `gorm:"type:varchar(20);not null;index"`
	DurationSeconds   int       `gorm:"not null"`
	ConcurrentUsers   int       `gorm:"not null"`
	RampUpSeconds     int       `gorm:"not null"`
	TargetEndpoint    string    `gorm:"type:varchar(200);not null"`
	Payload           string    `gorm:"type:text"`
	HeadersJSON       string    `gorm:"column:headers;type:jsonb;default:'{}'"`
	CriteriaAvgMS     *float64  `gorm:"column:criteria_avg_response_time_ms"`
	CriteriaRPS       *float64  `gorm:"column:criteria_throughput_rps"`
	CriteriaErrorRate *float64  `gorm:"column:criteria_error_rate"`
	TagsJSON          string    `gorm:"column:tags;type:jsonb;default:'[]'"`
	CreatedAt         time.Time `gorm:"not null"`
	UpdatedAt         time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (BenchmarkDefinitionModel) TableName() string {
	return "benchmark_definitions"
}

// ToDomain converts the persistence model to a domain Definition
func (m *BenchmarkDefinitionModel) ToDomain() benchmark.Definition {
	def := benchmark.Definition{
		ID:              m.ID,
		Name:            m.Name,
		Description:     m.Description,
		TestType:        benchmark.TestType(m.TestType),
		DurationSeconds: m.DurationSeconds,
		ConcurrentUsers: m.ConcurrentUsers,
		RampUpSeconds:   m.RampUpSeconds,
		TargetEndpoint:  m.TargetEndpoint,
		Payload:         m.Payload,
		SuccessCriteria: benchmark.SuccessCriteria{
			AvgResponseTimeMS: m.CriteriaAvgMS,
			ThroughputRPS:     m.CriteriaRPS,
			ErrorRate:         m.CriteriaErrorRate,
		},
	}

	if m.HeadersJSON != "" && m.HeadersJSON != "{}" {
		var headers map[string]string
		if err := json.Unmarshal([]byte(m.HeadersJSON), &headers); err != nil {
			modelLogger.Warn("failed to parse benchmark headers JSON",
				zap.String("benchmark_id", m.ID),
				zap.Error(err))
		} else {
			def.Headers = headers
		}
	}

	if m.TagsJSON != "" && m.TagsJSON != "[]" {
		var tags []string
		if err := json.Unmarshal([]byte(m.TagsJSON), &tags); err != nil {
			modelLogger.Warn("failed to parse benchmark tags JSON",
				zap.String("benchmark_id", m.ID),
				zap.Error(err))
		} else {
			def.Tags = tags
		}
	}

	return def
}

// FromDomain populates the persistence model from a domain Definition
func (m *BenchmarkDefinitionModel) FromDomain(d benchmark.Definition) {
	m.ID = d.ID
	m.Name = d.Name
	m.Description = d.Description
	m.TestType = string(d.TestType)
	m.DurationSeconds = d.DurationSeconds
	m.ConcurrentUsers = d.ConcurrentUsers
	m.RampUpSeconds = d.RampUpSeconds
	m.TargetEndpoint = d.TargetEndpoint
	m.Payload = d.Payload
	m.CriteriaAvgMS = d.SuccessCriteria.AvgResponseTimeMS
	m.CriteriaRPS = d.SuccessCriteria.ThroughputRPS
	m.CriteriaErrorRate = d.SuccessCriteria.ErrorRate

	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now

	m.HeadersJSON = "{}"
	if len(d.Headers) > 0 {
		if jsonBytes, err := json.Marshal(d.Headers); err == nil {
			m.HeadersJSON = string(jsonBytes)
		}
	}
	m.TagsJSON = "[]"
	if len(d.Tags) > 0 {
		if jsonBytes, err := json.Marshal(d.Tags); err == nil {
			m.TagsJSON = string(jsonBytes)
		}
	}
}

// BenchmarkResultModel is the persistence model for a benchmark run
type BenchmarkResultModel struct {
	ID                 uuid.UUID `gorm:"type:uuid;primary_key"`
	TestID             string    `gorm:"type:varchar(80);not null;index:idx_benchmark_results_test_started,priority:1"`
	State              string    `gorm:"type:varchar(20);not null;index"`
	StartedAt          time.Time `gorm:"index:idx_benchmark_results_test_started,priority:2"`
	CompletedAt        time.Time
	DurationSeconds    float64
	TotalRequests      int64
	SuccessfulRequests int64
	FailedRequests     int64
	AvgResponseTimeMS  float64
	MinResponseTimeMS  float64
	MaxResponseTimeMS  float64
	P95ResponseTimeMS  float64
	P99ResponseTimeMS  float64
	ThroughputRPS      float64
	ErrorRate          float64
	ErrorsJSON         string `gorm:"column:errors;type:jsonb;default:'[]'"`
	CPUBefore          float64
	CPUAfter           float64
	MemoryBefore       float64
	MemoryAfter        float64
	CriteriaMet        bool
	Score              float64
	FailureReason      string    `gorm:"type:text"`
	CreatedAt          time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (BenchmarkResultModel) TableName() string {
	return "benchmark_results"
}

// ToDomain converts the persistence model to a domain Result
func (m *BenchmarkResultModel) ToDomain() *benchmark.Result {
	result := &benchmark.Result{
		ID:                 m.ID,
		TestID:             m.TestID,
		State:              benchmark.State(m.State),
		StartedAt:          m.StartedAt,
		CompletedAt:        m.CompletedAt,
		DurationSeconds:    m.DurationSeconds,
		TotalRequests:      m.TotalRequests,
		SuccessfulRequests: m.SuccessfulRequests,
		FailedRequests:     m.FailedRequests,
		AvgResponseTimeMS:  m.AvgResponseTimeMS,
		MinResponseTimeMS:  m.MinResponseTimeMS,
		MaxResponseTimeMS:  m.MaxResponseTimeMS,
		P95ResponseTimeMS:  m.P95ResponseTimeMS,
		P99ResponseTimeMS:  m.P99ResponseTimeMS,
		ThroughputRPS:      m.ThroughputRPS,
		ErrorRate:          m.ErrorRate,
		System: benchmark.SystemDelta{
			CPUBefore:    m.CPUBefore,
			CPUAfter:     m.CPUAfter,
			MemoryBefore: m.MemoryBefore,
			MemoryAfter:  m.MemoryAfter,
		},
		CriteriaMet:   m.CriteriaMet,
		Score:         m.Score,
		FailureReason: m.FailureReason,
	}

	if m.ErrorsJSON != "" && m.ErrorsJSON != "[]" {
		var errs []string
		if err := json.Unmarshal([]byte(m.ErrorsJSON), &errs); err != nil {
			modelLogger.Warn("failed to parse benchmark errors JSON",
				zap.String("test_id", m.TestID),
				zap.Error(err))
		} else {
			result.Errors = errs
		}
	}

	return result
}

// FromDomain populates the persistence model from a domain Result
func (m *BenchmarkResultModel) FromDomain(r *benchmark.Result) {
	m.ID = r.ID
	m.TestID = r.TestID
	m.State = string(r.State)
	m.StartedAt = r.StartedAt
	m.CompletedAt = r.CompletedAt
	m.DurationSeconds = r.DurationSeconds
	m.TotalRequests = r.TotalRequests
	m.SuccessfulRequests = r.SuccessfulRequests
	m.FailedRequests = r.FailedRequests
	m.AvgResponseTimeMS = r.AvgResponseTimeMS
	m.MinResponseTimeMS = r.MinResponseTimeMS
	m.MaxResponseTimeMS = r.MaxResponseTimeMS
	m.P95ResponseTimeMS = r.P95ResponseTimeMS
	m.P99ResponseTimeMS = r.P99ResponseTimeMS
	m.ThroughputRPS = r.ThroughputRPS
	m.ErrorRate = r.ErrorRate
	m.CPUBefore = r.System.CPUBefore
	m.CPUAfter = r.System.CPUAfter
	m.MemoryBefore = r.System.MemoryBefore
	m.MemoryAfter = r.System.MemoryAfter
	m.CriteriaMet = r.CriteriaMet
	m.Score = r.Score
	m.FailureReason = r.FailureReason
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	m.ErrorsJSON = "[]"
	if len(r.Errors) > 0 {
		if jsonBytes, err := json.Marshal(r.Errors); err == nil {
			m.ErrorsJSON = string(jsonBytes)
		}
	}
}
