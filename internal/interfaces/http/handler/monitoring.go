package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	monitoringapp "github.com/vectorcraft/tuner/internal/application/monitoring"
)

// MonitoringHandler handles performance monitoring API endpoints
type MonitoringHandler struct {
	BaseHandler
	collector *monitoringapp.Collector
}

// NewMonitoringHandler creates a new MonitoringHandler
func NewMonitoringHandler(collector *monitoringapp.Collector) *MonitoringHandler {
	return &MonitoringHandler{
		collector: collector,
	}
}

// ===================== Request DTOs =====================

// MetricsHistoryRequest defines the query for metric history
// @Description Query parameters for metric history
type MetricsHistoryRequest struct {
	Hours int `form:"hours" example:"24"`
}

// ===================== Response DTOs =====================

// MetricReadingResponse represents the latest reading of one metric type
// @Description Latest observation of a single metric
type MetricReadingResponse struct {
	Type              string    `json:"type" example:"cpu_usage"`
	Value             float64   `json:"value" example:"42.5"`
	Unit              string    `json:"unit" example:"percent"`
	Status            string    `json:"status" example:"normal"`
	Timestamp         time.Time `json:"timestamp"`
	WarningThreshold  *float64  `json:"warning_threshold,omitempty" example:"70"`
	CriticalThreshold *float64  `json:"critical_threshold,omitempty" example:"90"`
}

// RealTimeMetricsResponse represents the current system snapshot
// @Description Current reading of every monitored metric
type RealTimeMetricsResponse struct {
	Timestamp     time.Time               `json:"timestamp"`
	OverallStatus string                  `json:"overall_status" example:"normal"`
	Metrics       []MetricReadingResponse `json:"metrics"`
}

// SeriesPointResponse represents one observation in a history series
// @Description Single data point of a metric series
type SeriesPointResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value" example:"42.5"`
	Status    string    `json:"status" example:"normal"`
}

// MetricSeriesResponse represents the history of one metric type
// @Description History and aggregates of one metric over the report range
type MetricSeriesResponse struct {
	Type    string                `json:"type" example:"memory_usage"`
	Unit    string                `json:"unit" example:"percent"`
	Points  []SeriesPointResponse `json:"points"`
	Min     float64               `json:"min" example:"30.1"`
	Max     float64               `json:"max" example:"78.4"`
	Avg     float64               `json:"avg" example:"52.0"`
	Current float64               `json:"current" example:"55.3"`
}

// MetricsHistoryResponse represents the metric history report
// @Description Per-type metric series for the requested window
type MetricsHistoryResponse struct {
	Since  time.Time              `json:"since"`
	Until  time.Time              `json:"until"`
	Hours  int                    `json:"hours" example:"24"`
	Series []MetricSeriesResponse `json:"series"`
}

// ===================== Endpoints =====================

// GetRealTimeMetrics godoc
// @Summary      Get real-time metrics
// @Description  Returns the latest reading of every monitored metric with threshold status
// @Tags         monitoring
// @Produce      json
// @Success      200 {object} dto.Response{data=RealTimeMetricsResponse}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /monitoring/metrics [get]
func (h *MonitoringHandler) GetRealTimeMetrics(c *gin.Context) {
	report := h.collector.RealTimeMetrics()

	resp := RealTimeMetricsResponse{
		Timestamp:     report.Timestamp,
		OverallStatus: string(report.Overall),
		Metrics:       make([]MetricReadingResponse, 0, len(report.Readings)),
	}
	for _, reading := range report.Readings {
		resp.Metrics = append(resp.Metrics, MetricReadingResponse{
			Type:              string(reading.Type),
			Value:             reading.Value,
			Unit:              reading.Unit,
			Status:            string(reading.Status),
			Timestamp:         reading.Timestamp,
			WarningThreshold:  reading.WarningThreshold,
			CriticalThreshold: reading.CriticalThreshold,
		})
	}

	h.Success(c, resp)
}

// GetMetricsHistory godoc
// @Summary      Get metric history
// @Description  Returns per-type metric series for the trailing window. Hours outside the retention horizon are clamped.
// @Tags         monitoring
// @Produce      json
// @Param        hours query int false "Trailing window in hours (default 24, max 168)"
// @Success      200 {object} dto.Response{data=MetricsHistoryResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /monitoring/history [get]
func (h *MonitoringHandler) GetMetricsHistory(c *gin.Context) {
	var req MetricsHistoryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	report := h.collector.History(c.Request.Context(), req.Hours)

	resp := MetricsHistoryResponse{
		Since:  report.Since,
		Until:  report.Until,
		Hours:  report.Hours,
		Series: make([]MetricSeriesResponse, 0, len(report.Series)),
	}
	for _, series := range report.Series {
		out := MetricSeriesResponse{
			Type:    string(series.Type),
			Unit:    series.Unit,
			Points:  make([]SeriesPointResponse, 0, len(series.Points)),
			Min:     series.Min,
			Max:     series.Max,
			Avg:     series.Avg,
			Current: series.Current,
		}
		for _, point := range series.Points {
			out.Points = append(out.Points, SeriesPointResponse{
				Timestamp: point.Timestamp,
				Value:     point.Value,
				Status:    string(point.Status),
			})
		}
		resp.Series = append(resp.Series, out)
	}

	h.Success(c, resp)
}
