package monitoring

import (
	"context"
	"time"

	"github.com/vectorcraft/tuner/internal/domain/metric"
)

// reportOrder is the fixed presentation order for metric series.
var reportOrder = []metric.Type{
	metric.TypeCPUUsage,
	metric.TypeMemoryUsage,
	metric.TypeDiskUsage,
	metric.TypeProcessRSS,
	metric.TypeResponseTimeAvg,
	metric.TypeResponseTime95th,
	metric.TypeErrorRate,
	metric.TypeDatabaseQueryTime,
}

// Reading is the latest observation of one metric type.
type Reading struct {
	Type              metric.Type
	Value             float64
	Unit              string
	Status            metric.Status
	Timestamp         time.Time
	WarningThreshold  *float64
	CriticalThreshold *float64
}

// RealTimeMetrics is the current reading of every metric type that has
// at least one sample in the window.
type RealTimeMetrics struct {
	Timestamp time.Time
	Readings  []Reading
	Overall   metric.Status
}

// RealTimeMetrics snapshots the latest sample per metric type. Overall
// is the worst status among the readings.
func (c *Collector) RealTimeMetrics() RealTimeMetrics {
	report := RealTimeMetrics{
		Timestamp: time.Now().UTC(),
		Overall:   metric.StatusNormal,
	}

	for _, t := range reportOrder {
		sample, ok := c.store.Latest(t)
		if !ok {
			continue
		}
		reading := Reading{
			Type:      sample.Type,
			Value:     sample.Value,
			Unit:      sample.Unit,
			Status:    sample.Status,
			Timestamp: sample.Timestamp,
		}
		if threshold, found := c.store.Thresholds().Lookup(t); found {
			warning, critical := threshold.WarningThreshold, threshold.CriticalThreshold
			reading.WarningThreshold = &warning
			reading.CriticalThreshold = &critical
		}
		if sample.Status.Rank() > report.Overall.Rank() {
			report.Overall = sample.Status
		}
		report.Readings = append(report.Readings, reading)
	}
	return report
}

// SeriesPoint is one observation in a history series.
type SeriesPoint struct {
	Timestamp time.Time
	Value     float64
	Status    metric.Status
}

// Series is the history of one metric type over the report range.
type Series struct {
	Type    metric.Type
	Unit    string
	Points  []SeriesPoint
	Min     float64
	Max     float64
	Avg     float64
	Current float64
}

// HistoryReport covers all metric series observed in [Since, Until].
type HistoryReport struct {
	Since  time.Time
	Until  time.Time
	Hours  int
	Series []Series
}

// maxHistoryHours caps a history query at the retention horizon.
const maxHistoryHours = 7 * 24

// History reports per-type series for the trailing window. Hours
// outside (0, maxHistoryHours] are clamped; a sink read failure degrades
// to the in-memory window, so the report itself never fails.
func (c *Collector) History(ctx context.Context, hours int) HistoryReport {
	if hours <= 0 {
		hours = 24
	}
	if hours > maxHistoryHours {
		hours = maxHistoryHours
	}

	until := time.Now().UTC()
	since := until.Add(-time.Duration(hours) * time.Hour)
	report := HistoryReport{
		Since: since,
		Until: until,
		Hours: hours,
	}

	for _, t := range reportOrder {
		samples := c.store.QueryHistory(ctx, t, since, until)
		if len(samples) == 0 {
			continue
		}
		report.Series = append(report.Series, buildSeries(t, samples))
	}
	return report
}

func buildSeries(t metric.Type, samples []metric.Sample) Series {
	series := Series{
		Type:   t,
		Unit:   samples[0].Unit,
		Points: make([]SeriesPoint, 0, len(samples)),
		Min:    samples[0].Value,
		Max:    samples[0].Value,
	}

	var total float64
	for _, s := range samples {
		series.Points = append(series.Points, SeriesPoint{
			Timestamp: s.Timestamp,
			Value:     s.Value,
			Status:    s.Status,
		})
		if s.Value < series.Min {
			series.Min = s.Value
		}
		if s.Value > series.Max {
			series.Max = s.Value
		}
		total += s.Value
	}
	series.Avg = total / float64(len(samples))
	series.Current = samples[len(samples)-1].Value
	return series
}
