package metric

import (
	"time"

	"github.com/vectorcraft/tuner/internal/domain/shared"
)

// Type identifies a monitored metric series
type Type string

// Known metric types
const (
	TypeCPUUsage          Type = "cpu_usage"
	TypeMemoryUsage       Type = "memory_usage"
	TypeDiskUsage         Type = "disk_usage"
	TypeProcessRSS        Type = "process_rss"
	TypeResponseTimeAvg   Type = "response_time_avg"
	TypeResponseTime95th  Type = "response_time_95th"
	TypeErrorRate         Type = "error_rate"
	TypeDatabaseQueryTime Type = "database_query_time"
)

// String returns the string form of the metric type
func (t Type) String() string {
	return string(t)
}

// IsValid reports whether the type is one of the known metric types
func (t Type) IsValid() bool {
	switch t {
	case TypeCPUUsage, TypeMemoryUsage, TypeDiskUsage, TypeProcessRSS,
		TypeResponseTimeAvg, TypeResponseTime95th, TypeErrorRate, TypeDatabaseQueryTime:
		return true
	}
	return false
}

// Status classifies a sample value against its thresholds
type Status string

// Sample statuses ordered by severity
const (
	StatusNormal   Status = "normal"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
)

// Rank returns a comparable severity rank (normal < warning < critical)
func (s Status) Rank() int {
	switch s {
	case StatusCritical:
		return 2
	case StatusWarning:
		return 1
	default:
		return 0
	}
}

// Sample is a single immutable metric observation
type Sample struct {
	Timestamp time.Time
	Type      Type
	Value     float64
	Unit      string
	Endpoint  string
	Status    Status
	Metadata  map[string]string
}

// NewSample creates a sample stamped with the current time and normal status.
// The status is reclassified by the store against the threshold registry
// before the sample is recorded.
func NewSample(t Type, value float64, unit string) Sample {
	return Sample{
		Timestamp: time.Now().UTC(),
		Type:      t,
		Value:     value,
		Unit:      unit,
		Status:    StatusNormal,
	}
}

// WithEndpoint returns a copy of the sample tagged with an endpoint
func (s Sample) WithEndpoint(endpoint string) Sample {
	s.Endpoint = endpoint
	return s
}

// WithMetadata returns a copy of the sample with one metadata entry added
func (s Sample) WithMetadata(key, value string) Sample {
	meta := make(map[string]string, len(s.Metadata)+1)
	for k, v := range s.Metadata {
		meta[k] = v
	}
	meta[key] = value
	s.Metadata = meta
	return s
}

// Validate checks the sample's structural invariants
func (s Sample) Validate() error {
	if !s.Type.IsValid() {
		return shared.ErrInvalidInput.WithDetails("unknown metric type %q", s.Type)
	}
	if s.Timestamp.IsZero() {
		return shared.ErrInvalidInput.WithDetails("sample timestamp is zero")
	}
	return nil
}
