package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	optimizationapp "github.com/vectorcraft/tuner/internal/application/optimization"
	"github.com/vectorcraft/tuner/internal/domain/optimization"
)

// OptimizationHandler handles auto-optimization API endpoints
type OptimizationHandler struct {
	BaseHandler
	optimizer *optimizationapp.Optimizer
}

// NewOptimizationHandler creates a new OptimizationHandler
func NewOptimizationHandler(optimizer *optimizationapp.Optimizer) *OptimizationHandler {
	return &OptimizationHandler{
		optimizer: optimizer,
	}
}

// ===================== Request DTOs =====================

// ApplyTuningRequest defines a manual tuning parameter change
// @Description Request to apply one tuning parameter
type ApplyTuningRequest struct {
	Category  string  `json:"category" binding:"required" example:"database"`
	Parameter string  `json:"parameter" binding:"required" example:"max_open_conns"`
	Value     float64 `json:"value" example:"50"`
}

// ===================== Response DTOs =====================

// OptimizationActionResponse represents a catalog action
// @Description Optimization action with impact and risk metadata
type OptimizationActionResponse struct {
	ID                   string             `json:"id" example:"db_pool_resize"`
	Category             string             `json:"category" example:"database"`
	Name                 string             `json:"name" example:"Resize connection pool"`
	Description          string             `json:"description,omitempty"`
	ImpactScore          float64            `json:"impact_score" example:"7.5"`
	Confidence           float64            `json:"confidence" example:"0.8"`
	Parameters           map[string]float64 `json:"parameters,omitempty"`
	SafetyCheck          bool               `json:"safety_check"`
	RollbackAvailable    bool               `json:"rollback_available"`
	EstimatedImprovement string             `json:"estimated_improvement,omitempty" example:"15-25% lower query latency"`
	RiskLevel            string             `json:"risk_level" example:"low"`
}

// RecommendationResponse represents a ranked recommendation
// @Description Recommended action tied to the issue that selected it
type RecommendationResponse struct {
	Action    OptimizationActionResponse `json:"action"`
	IssueType string                     `json:"issue_type" example:"high_cpu_usage"`
	Severity  string                     `json:"severity" example:"warning"`
	Rank      float64                    `json:"rank" example:"6.0"`
}

// ActiveOptimizationResponse represents one applied, unreverted action
// @Description Applied optimization with its rollback state
type ActiveOptimizationResponse struct {
	Action     OptimizationActionResponse `json:"action"`
	AppliedAt  time.Time                  `json:"applied_at"`
	Baseline   map[string]float64         `json:"baseline,omitempty"`
	Revertible bool                       `json:"revertible"`
	RollbackID *uuid.UUID                 `json:"rollback_id,omitempty"`
	Source     string                     `json:"source" example:"automatic"`
}

// OptimizationResultResponse represents the outcome of one application
// @Description Result of applying or rolling back an optimization
type OptimizationResultResponse struct {
	ID          uuid.UUID  `json:"id"`
	ActionID    string     `json:"action_id" example:"db_pool_resize"`
	Success     bool       `json:"success" example:"true"`
	Improvement float64    `json:"improvement" example:"12.5"`
	SideEffects []string   `json:"side_effects,omitempty"`
	DurationMS  int64      `json:"duration_ms" example:"42"`
	Timestamp   time.Time  `json:"timestamp"`
	RollbackID  *uuid.UUID `json:"rollback_id,omitempty"`
	Source      string     `json:"source" example:"manual"`
}

// OptimizationStatusResponse represents the optimizer state
// @Description Optimizer loop and executor state
type OptimizationStatusResponse struct {
	Running       bool                         `json:"running" example:"true"`
	LastCycle     *time.Time                   `json:"last_cycle,omitempty"`
	Active        []ActiveOptimizationResponse `json:"active_optimizations"`
	QueueDepth    int                          `json:"queue_depth" example:"0"`
	RollbackDepth int                          `json:"rollback_depth" example:"3"`
	RecentResults []OptimizationResultResponse `json:"recent_results"`
}

// RollbackResponse represents the outcome of a manual rollback
// @Description Confirmation of a rollback request
type RollbackResponse struct {
	Message  string `json:"message" example:"Optimization rolled back"`
	ActionID string `json:"action_id" example:"db_pool_resize"`
}

func toActionResponse(action optimization.Action) OptimizationActionResponse {
	resp := OptimizationActionResponse{
		ID:                   action.ID,
		Category:             string(action.Category),
		Name:                 action.Name,
		Description:          action.Description,
		ImpactScore:          action.ImpactScore,
		Confidence:           action.Confidence,
		SafetyCheck:          action.SafetyCheck,
		RollbackAvailable:    action.RollbackAvailable,
		EstimatedImprovement: action.EstimatedImprovement,
		RiskLevel:            string(action.RiskLevel),
	}
	if action.Parameters != nil {
		resp.Parameters = action.Parameters.Fields()
	}
	return resp
}

func toResultResponse(result optimization.Result) OptimizationResultResponse {
	return OptimizationResultResponse{
		ID:          result.ID,
		ActionID:    result.ActionID,
		Success:     result.Success,
		Improvement: result.Improvement,
		SideEffects: result.SideEffects,
		DurationMS:  result.DurationMS,
		Timestamp:   result.Timestamp,
		RollbackID:  result.RollbackID,
		Source:      result.Source,
	}
}

// ===================== Endpoints =====================

// GetStatus godoc
// @Summary      Get optimization status
// @Description  Returns the optimizer loop state, active optimizations, and recent results
// @Tags         optimization
// @Produce      json
// @Success      200 {object} dto.Response{data=OptimizationStatusResponse}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /optimization/status [get]
func (h *OptimizationHandler) GetStatus(c *gin.Context) {
	status := h.optimizer.Status()

	resp := OptimizationStatusResponse{
		Running:       status.Running,
		QueueDepth:    status.QueueDepth,
		RollbackDepth: status.RollbackDepth,
		Active:        make([]ActiveOptimizationResponse, 0, len(status.Active)),
		RecentResults: make([]OptimizationResultResponse, 0, len(status.RecentResults)),
	}
	if !status.LastCycle.IsZero() {
		lastCycle := status.LastCycle
		resp.LastCycle = &lastCycle
	}
	for _, active := range status.Active {
		out := ActiveOptimizationResponse{
			Action:     toActionResponse(active.Action),
			AppliedAt:  active.AppliedAt,
			Revertible: active.Revertible,
			RollbackID: active.RollbackID,
			Source:     active.Source,
		}
		if len(active.Baseline) > 0 {
			out.Baseline = make(map[string]float64, len(active.Baseline))
			for metricType, value := range active.Baseline {
				out.Baseline[string(metricType)] = value
			}
		}
		resp.Active = append(resp.Active, out)
	}
	for _, result := range status.RecentResults {
		resp.RecentResults = append(resp.RecentResults, toResultResponse(result))
	}

	h.Success(c, resp)
}

// GetRecommendations godoc
// @Summary      Get optimization recommendations
// @Description  Runs issue detection on demand and returns ranked recommendations without applying anything
// @Tags         optimization
// @Produce      json
// @Success      200 {object} dto.Response{data=[]RecommendationResponse}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /optimization/recommendations [get]
func (h *OptimizationHandler) GetRecommendations(c *gin.Context) {
	recommendations := h.optimizer.Recommendations(c.Request.Context())

	resp := make([]RecommendationResponse, 0, len(recommendations))
	for _, rec := range recommendations {
		resp = append(resp, RecommendationResponse{
			Action:    toActionResponse(rec.Action),
			IssueType: string(rec.IssueType),
			Severity:  string(rec.Severity),
			Rank:      rec.Rank,
		})
	}

	h.Success(c, resp)
}

// ApplyTuning godoc
// @Summary      Apply a tuning parameter
// @Description  Applies one named tuning parameter inside a category, recording a rollback point first
// @Tags         optimization
// @Accept       json
// @Produce      json
// @Param        request body ApplyTuningRequest true "Tuning parameter change"
// @Success      200 {object} dto.Response{data=OptimizationResultResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /optimization/tuning [post]
func (h *OptimizationHandler) ApplyTuning(c *gin.Context) {
	var req ApplyTuningRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	category := optimization.Category(req.Category)
	if !category.IsValid() {
		h.BadRequest(c, "Invalid category. Valid categories: memory, cpu, network, database, caching, stability")
		return
	}

	result, err := h.optimizer.ApplyTuning(c.Request.Context(), category, req.Parameter, req.Value)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toResultResponse(result))
}

// RollbackAction godoc
// @Summary      Roll back an optimization
// @Description  Manually reverts an active optimization to its recorded rollback point
// @Tags         optimization
// @Produce      json
// @Param        id path string true "Action ID"
// @Success      200 {object} dto.Response{data=RollbackResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /optimization/actions/{id}/rollback [post]
func (h *OptimizationHandler) RollbackAction(c *gin.Context) {
	actionID := c.Param("id")
	if actionID == "" {
		h.BadRequest(c, "Action ID is required")
		return
	}

	if err := h.optimizer.Rollback(c.Request.Context(), actionID); err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, RollbackResponse{
		Message:  "Optimization rolled back",
		ActionID: actionID,
	})
}
