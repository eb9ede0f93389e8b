package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	benchmarkapp "github.com/vectorcraft/tuner/internal/application/benchmark"
	"github.com/vectorcraft/tuner/internal/domain/benchmark"
)

// BenchmarkHandler handles benchmark runner API endpoints
type BenchmarkHandler struct {
	BaseHandler
	runner *benchmarkapp.Runner
}

// NewBenchmarkHandler creates a new BenchmarkHandler
func NewBenchmarkHandler(runner *benchmarkapp.Runner) *BenchmarkHandler {
	return &BenchmarkHandler{
		runner: runner,
	}
}

// ===================== Request DTOs =====================

// BenchmarkOverrideParams overrides selected definition fields for one run
// @Description Per-run overrides of a benchmark definition
type BenchmarkOverrideParams struct {
	DurationSeconds *int              `json:"duration_seconds,omitempty" example:"30"`
	ConcurrentUsers *int              `json:"concurrent_users,omitempty" example:"10"`
	RampUpSeconds   *int              `json:"ramp_up_seconds,omitempty" example:"5"`
	TargetEndpoint  *string           `json:"target_endpoint,omitempty" example:"/api/v1/system/ping"`
	Payload         *string           `json:"payload,omitempty"`
	Headers         map[string]string `json:"headers,omitempty"`
}

// RunBenchmarkRequest defines a benchmark run request
// @Description Request to run a benchmark test
type RunBenchmarkRequest struct {
	TestID       string                   `json:"test_id" binding:"required" example:"baseline_load"`
	CustomParams *BenchmarkOverrideParams `json:"custom_params,omitempty"`
}

// BenchmarkHistoryRequest defines the query for benchmark history
// @Description Query parameters for benchmark run history
type BenchmarkHistoryRequest struct {
	TestID string `form:"test_id" example:"baseline_load"`
	Days   int    `form:"days" example:"7"`
}

// CompareBenchmarksRequest defines the query for a baseline comparison
// @Description Query parameters for comparing two benchmark tests
type CompareBenchmarksRequest struct {
	Baseline string `form:"baseline" binding:"required" example:"baseline_load"`
	Current  string `form:"current" binding:"required" example:"stress_test"`
}

// ===================== Response DTOs =====================

// SuccessCriteriaResponse represents pass thresholds for a test
// @Description Success thresholds of a benchmark definition
type SuccessCriteriaResponse struct {
	AvgResponseTimeMS *float64 `json:"avg_response_time_ms,omitempty" example:"500"`
	ThroughputRPS     *float64 `json:"throughput_rps,omitempty" example:"50"`
	ErrorRate         *float64 `json:"error_rate,omitempty" example:"0.05"`
}

// BenchmarkDefinitionResponse represents a benchmark test definition
// @Description Benchmark test definition
type BenchmarkDefinitionResponse struct {
	ID              string                  `json:"id" example:"baseline_load"`
	Name            string                  `json:"name" example:"Baseline load test"`
	Description     string                  `json:"description,omitempty"`
	TestType        string                  `json:"test_type" example:"load"`
	DurationSeconds int                     `json:"duration_seconds" example:"60"`
	ConcurrentUsers int                     `json:"concurrent_users" example:"10"`
	RampUpSeconds   int                     `json:"ramp_up_seconds" example:"5"`
	TargetEndpoint  string                  `json:"target_endpoint" example:"/api/v1/system/ping"`
	Payload         string                  `json:"payload,omitempty"`
	Headers         map[string]string       `json:"headers,omitempty"`
	SuccessCriteria SuccessCriteriaResponse `json:"success_criteria"`
	Tags            []string                `json:"tags,omitempty"`
}

// SystemDeltaResponse represents resource movement across a run
// @Description System resource usage before and after a benchmark run
type SystemDeltaResponse struct {
	CPUBefore    float64 `json:"cpu_before" example:"22.5"`
	CPUAfter     float64 `json:"cpu_after" example:"61.0"`
	CPUDelta     float64 `json:"cpu_delta" example:"38.5"`
	MemoryBefore float64 `json:"memory_before" example:"48.0"`
	MemoryAfter  float64 `json:"memory_after" example:"52.5"`
	MemoryDelta  float64 `json:"memory_delta" example:"4.5"`
}

// BenchmarkResultResponse represents one benchmark run outcome
// @Description Aggregated result of a benchmark run
type BenchmarkResultResponse struct {
	ID                 uuid.UUID           `json:"id"`
	TestID             string              `json:"test_id" example:"baseline_load"`
	State              string              `json:"state" example:"completed"`
	StartedAt          time.Time           `json:"started_at"`
	CompletedAt        *time.Time          `json:"completed_at,omitempty"`
	DurationSeconds    float64             `json:"duration_seconds" example:"60.02"`
	TotalRequests      int64               `json:"total_requests" example:"2840"`
	SuccessfulRequests int64               `json:"successful_requests" example:"2836"`
	FailedRequests     int64               `json:"failed_requests" example:"4"`
	AvgResponseTimeMS  float64             `json:"avg_response_time_ms" example:"104.2"`
	MinResponseTimeMS  float64             `json:"min_response_time_ms" example:"12.1"`
	MaxResponseTimeMS  float64             `json:"max_response_time_ms" example:"890.4"`
	P95ResponseTimeMS  float64             `json:"p95_response_time_ms" example:"260.7"`
	P99ResponseTimeMS  float64             `json:"p99_response_time_ms" example:"512.3"`
	ThroughputRPS      float64             `json:"throughput_rps" example:"47.3"`
	ErrorRate          float64             `json:"error_rate" example:"0.0014"`
	Errors             []string            `json:"errors,omitempty"`
	SystemImpact       SystemDeltaResponse `json:"system_impact"`
	CriteriaMet        bool                `json:"criteria_met" example:"true"`
	Score              float64             `json:"score" example:"82.4"`
	FailureReason      string              `json:"failure_reason,omitempty"`
}

// ActiveBenchmarkResponse represents a run visible on the active list
// @Description Benchmark run that is running or recently finished
type ActiveBenchmarkResponse struct {
	TestID    string                  `json:"test_id" example:"baseline_load"`
	State     string                  `json:"state" example:"running"`
	StartedAt time.Time               `json:"started_at"`
	Result    BenchmarkResultResponse `json:"result"`
}

// BenchmarkChangeResponse represents one significant metric movement
// @Description Significant metric change between two runs
type BenchmarkChangeResponse struct {
	Metric        string  `json:"metric" example:"avg_response_time_ms"`
	BaselineValue float64 `json:"baseline_value" example:"104.2"`
	CurrentValue  float64 `json:"current_value" example:"86.9"`
	DeltaPercent  float64 `json:"delta_percent" example:"-16.6"`
	Improved      bool    `json:"improved" example:"true"`
}

// BenchmarkComparisonResponse represents a baseline comparison
// @Description Comparison between the latest completed runs of two tests
type BenchmarkComparisonResponse struct {
	BaselineID            uuid.UUID                 `json:"baseline_id"`
	CurrentID             uuid.UUID                 `json:"current_id"`
	BaselineScore         float64                   `json:"baseline_score" example:"78.0"`
	CurrentScore          float64                   `json:"current_score" example:"82.4"`
	ImprovementPercentage float64                   `json:"improvement_percentage" example:"5.6"`
	RegressionDetected    bool                      `json:"regression_detected" example:"false"`
	SignificantChanges    []BenchmarkChangeResponse `json:"significant_changes"`
	Recommendation        string                    `json:"recommendation,omitempty"`
}

func toCriteriaResponse(criteria benchmark.SuccessCriteria) SuccessCriteriaResponse {
	return SuccessCriteriaResponse{
		AvgResponseTimeMS: criteria.AvgResponseTimeMS,
		ThroughputRPS:     criteria.ThroughputRPS,
		ErrorRate:         criteria.ErrorRate,
	}
}

func toDefinitionResponse(def benchmark.Definition) BenchmarkDefinitionResponse {
	return BenchmarkDefinitionResponse{
		ID:              def.ID,
		Name:            def.Name,
		Description:     def.Description,
		TestType:        string(def.TestType),
		DurationSeconds: def.DurationSeconds,
		ConcurrentUsers: def.ConcurrentUsers,
		RampUpSeconds:   def.RampUpSeconds,
		TargetEndpoint:  def.TargetEndpoint,
		Payload:         def.Payload,
		Headers:         def.Headers,
		SuccessCriteria: toCriteriaResponse(def.SuccessCriteria),
		Tags:            def.Tags,
	}
}

func toBenchmarkResultResponse(result *benchmark.Result) BenchmarkResultResponse {
	resp := BenchmarkResultResponse{
		ID:                 result.ID,
		TestID:             result.TestID,
		State:              string(result.State),
		StartedAt:          result.StartedAt,
		DurationSeconds:    result.DurationSeconds,
		TotalRequests:      result.TotalRequests,
		SuccessfulRequests: result.SuccessfulRequests,
		FailedRequests:     result.FailedRequests,
		AvgResponseTimeMS:  result.AvgResponseTimeMS,
		MinResponseTimeMS:  result.MinResponseTimeMS,
		MaxResponseTimeMS:  result.MaxResponseTimeMS,
		P95ResponseTimeMS:  result.P95ResponseTimeMS,
		P99ResponseTimeMS:  result.P99ResponseTimeMS,
		ThroughputRPS:      result.ThroughputRPS,
		ErrorRate:          result.ErrorRate,
		Errors:             result.Errors,
		SystemImpact: SystemDeltaResponse{
			CPUBefore:    result.System.CPUBefore,
			CPUAfter:     result.System.CPUAfter,
			CPUDelta:     result.System.CPUDelta(),
			MemoryBefore: result.System.MemoryBefore,
			MemoryAfter:  result.System.MemoryAfter,
			MemoryDelta:  result.System.MemoryDelta(),
		},
		CriteriaMet:   result.CriteriaMet,
		Score:         result.Score,
		FailureReason: result.FailureReason,
	}
	if !result.CompletedAt.IsZero() {
		completedAt := result.CompletedAt
		resp.CompletedAt = &completedAt
	}
	return resp
}

// ===================== Endpoints =====================

// ListTests godoc
// @Summary      List benchmark tests
// @Description  Returns all benchmark test definitions
// @Tags         benchmarks
// @Produce      json
// @Success      200 {object} dto.Response{data=[]BenchmarkDefinitionResponse}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /benchmarks/tests [get]
func (h *BenchmarkHandler) ListTests(c *gin.Context) {
	definitions, err := h.runner.Definitions(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := make([]BenchmarkDefinitionResponse, 0, len(definitions))
	for _, def := range definitions {
		resp = append(resp, toDefinitionResponse(def))
	}

	h.Success(c, resp)
}

// RunBenchmark godoc
// @Summary      Run a benchmark test
// @Description  Runs the named benchmark synchronously and returns the aggregated result. Only one run per test may be active at a time.
// @Tags         benchmarks
// @Accept       json
// @Produce      json
// @Param        request body RunBenchmarkRequest true "Benchmark run request"
// @Success      200 {object} dto.Response{data=BenchmarkResultResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /benchmarks/run [post]
func (h *BenchmarkHandler) RunBenchmark(c *gin.Context) {
	var req RunBenchmarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	var overrides *benchmarkapp.Overrides
	if req.CustomParams != nil {
		overrides = &benchmarkapp.Overrides{
			DurationSeconds: req.CustomParams.DurationSeconds,
			ConcurrentUsers: req.CustomParams.ConcurrentUsers,
			RampUpSeconds:   req.CustomParams.RampUpSeconds,
			TargetEndpoint:  req.CustomParams.TargetEndpoint,
			Payload:         req.CustomParams.Payload,
			Headers:         req.CustomParams.Headers,
		}
	}

	result, err := h.runner.Run(c.Request.Context(), req.TestID, overrides)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toBenchmarkResultResponse(result))
}

// GetActiveTests godoc
// @Summary      Get active benchmark runs
// @Description  Returns benchmark runs that are in flight or finished within the grace window
// @Tags         benchmarks
// @Produce      json
// @Success      200 {object} dto.Response{data=[]ActiveBenchmarkResponse}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /benchmarks/active [get]
func (h *BenchmarkHandler) GetActiveTests(c *gin.Context) {
	active := h.runner.ActiveTests()

	resp := make([]ActiveBenchmarkResponse, 0, len(active))
	for _, test := range active {
		resp = append(resp, ActiveBenchmarkResponse{
			TestID:    test.TestID,
			State:     string(test.State),
			StartedAt: test.StartedAt,
			Result:    toBenchmarkResultResponse(test.Result),
		})
	}

	h.Success(c, resp)
}

// GetHistory godoc
// @Summary      Get benchmark history
// @Description  Returns persisted benchmark runs, newest first. An empty test_id returns runs for all tests.
// @Tags         benchmarks
// @Produce      json
// @Param        test_id query string false "Filter by test ID"
// @Param        days query int false "Trailing window in days (default 7, max 90)"
// @Success      200 {object} dto.Response{data=[]BenchmarkResultResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /benchmarks/history [get]
func (h *BenchmarkHandler) GetHistory(c *gin.Context) {
	var req BenchmarkHistoryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	results, err := h.runner.History(c.Request.Context(), req.TestID, req.Days)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := make([]BenchmarkResultResponse, 0, len(results))
	for _, result := range results {
		resp = append(resp, toBenchmarkResultResponse(result))
	}

	h.Success(c, resp)
}

// CompareResults godoc
// @Summary      Compare two benchmark tests
// @Description  Compares the most recent completed run of each test and flags regressions
// @Tags         benchmarks
// @Produce      json
// @Param        baseline query string true "Baseline test ID"
// @Param        current query string true "Current test ID"
// @Success      200 {object} dto.Response{data=BenchmarkComparisonResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /benchmarks/compare [get]
func (h *BenchmarkHandler) CompareResults(c *gin.Context) {
	var req CompareBenchmarksRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	comparison, err := h.runner.Compare(c.Request.Context(), req.Baseline, req.Current)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := BenchmarkComparisonResponse{
		BaselineID:            comparison.BaselineID,
		CurrentID:             comparison.CurrentID,
		BaselineScore:         comparison.BaselineScore,
		CurrentScore:          comparison.CurrentScore,
		ImprovementPercentage: comparison.ImprovementPercentage,
		RegressionDetected:    comparison.RegressionDetected,
		SignificantChanges:    make([]BenchmarkChangeResponse, 0, len(comparison.SignificantChanges)),
		Recommendation:        comparison.Recommendation,
	}
	for _, change := range comparison.SignificantChanges {
		resp.SignificantChanges = append(resp.SignificantChanges, BenchmarkChangeResponse{
			Metric:        change.Metric,
			BaselineValue: change.BaselineValue,
			CurrentValue:  change.CurrentValue,
			DeltaPercent:  change.DeltaPercent,
			Improved:      change.Improved,
		})
	}

	h.Success(c, resp)
}
