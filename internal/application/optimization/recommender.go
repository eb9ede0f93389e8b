package optimization

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/vectorcraft/tuner/internal/application/monitoring"
	"github.com/vectorcraft/tuner/internal/domain/metric"
	"github.com/vectorcraft/tuner/internal/domain/optimization"
)

// RecommenderConfig controls recommendation filtering and ranking.
type RecommenderConfig struct {
	// Cooldown is how long after an application an action stays off the
	// recommendation list.
	Cooldown time.Duration
	// MinActionConfidence drops recommendations whose adjusted
	// confidence falls below this floor.
	MinActionConfidence float64
	// MemoryFloorPercent suppresses memory actions while usage is below it.
	MemoryFloorPercent float64
	// CPUFloorPercent suppresses cpu actions while usage is below it.
	CPUFloorPercent float64
	// MaxRecommendations truncates the ranked list.
	MaxRecommendations int
}

// DefaultRecommenderConfig returns the default recommendation policy.
func DefaultRecommenderConfig() RecommenderConfig {
	return RecommenderConfig{
		Cooldown:            time.Hour,
		MinActionConfidence: 0.5,
		MemoryFloorPercent:  70,
		CPUFloorPercent:     60,
		MaxRecommendations:  5,
	}
}

// Recommendation is a confidence-adjusted copy of a catalog action tied
// to the issue that selected it.
type Recommendation struct {
	Action    optimization.Action
	IssueType optimization.IssueType
	Severity  metric.Status
	// Rank is ImpactScore * adjusted confidence, the sort key.
	Rank float64
}

// Recommender maps detected issues to ranked catalog actions. The stage
// is read-only: cooldown windows are consulted here and marked by the
// executor, so identical issues, catalog, and application history always
// produce the same list.
type Recommender struct {
	catalog  *optimization.Catalog
	cooldown optimization.CooldownStore
	store    *monitoring.Store
	config   RecommenderConfig
	logger   *zap.Logger
}

// NewRecommender creates a recommender over the given catalog.
func NewRecommender(catalog *optimization.Catalog, cooldown optimization.CooldownStore, store *monitoring.Store, config RecommenderConfig, logger *zap.Logger) *Recommender {
	def := DefaultRecommenderConfig()
	if config.Cooldown <= 0 {
		config.Cooldown = def.Cooldown
	}
	if config.MinActionConfidence <= 0 {
		config.MinActionConfidence = def.MinActionConfidence
	}
	if config.MemoryFloorPercent <= 0 {
		config.MemoryFloorPercent = def.MemoryFloorPercent
	}
	if config.CPUFloorPercent <= 0 {
		config.CPUFloorPercent = def.CPUFloorPercent
	}
	if config.MaxRecommendations <= 0 {
		config.MaxRecommendations = def.MaxRecommendations
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recommender{
		catalog:  catalog,
		cooldown: cooldown,
		store:    store,
		config:   config,
		logger:   logger,
	}
}

// Recommend ranks catalog actions against the issue list. Each action
// appears at most once, selected by the first issue that matched it.
func (r *Recommender) Recommend(ctx context.Context, issues []optimization.Issue) []Recommendation {
	seen := make(map[string]bool)
	var recommendations []Recommendation

	for _, issue := range issues {
		for _, category := range r.issueCategories(issue) {
			for _, action := range r.catalog.ByCategory(category) {
				if seen[action.ID] {
					continue
				}
				if !r.eligible(ctx, action, issue) {
					continue
				}

				adjusted := action
				adjusted.Confidence = adjustConfidence(action.Confidence, issue)
				if adjusted.Confidence < r.config.MinActionConfidence {
					continue
				}
				recommendations = append(recommendations, Recommendation{
					Action:    adjusted,
					IssueType: issue.Type,
					Severity:  issue.Severity,
					Rank:      adjusted.ImpactScore * adjusted.Confidence,
				})
				seen[action.ID] = true
			}
		}
	}

	sort.SliceStable(recommendations, func(i, j int) bool {
		if recommendations[i].Rank != recommendations[j].Rank {
			return recommendations[i].Rank > recommendations[j].Rank
		}
		return recommendations[i].Action.ID < recommendations[j].Action.ID
	})

	if len(recommendations) > r.config.MaxRecommendations {
		recommendations = recommendations[:r.config.MaxRecommendations]
	}
	return recommendations
}

// issueCategories extends anomaly issues beyond their stability mapping:
// memory and cpu actions are also considered, with the applicability
// floors acting as the separate confirmation bar.
func (r *Recommender) issueCategories(issue optimization.Issue) []optimization.Category {
	categories := issue.Categories()
	if issue.Type == optimization.IssuePerformanceAnomaly {
		categories = append(categories, optimization.CategoryMemory, optimization.CategoryCPU)
	}
	return categories
}

func (r *Recommender) eligible(ctx context.Context, action optimization.Action, issue optimization.Issue) bool {
	if action.RiskLevel == optimization.RiskHigh && !issue.IsCritical() {
		return false
	}
	if !r.applicable(action.Category) {
		return false
	}
	return !r.coolingDown(ctx, action.ID)
}

// applicable is the category-specific second confirmation, independent
// of the issue that selected the action. Memory and cpu actions need
// their own metric above the floor; a missing reading suppresses them.
func (r *Recommender) applicable(category optimization.Category) bool {
	switch category {
	case optimization.CategoryMemory:
		return r.latestAtLeast(metric.TypeMemoryUsage, r.config.MemoryFloorPercent)
	case optimization.CategoryCPU:
		return r.latestAtLeast(metric.TypeCPUUsage, r.config.CPUFloorPercent)
	}
	return true
}

func (r *Recommender) latestAtLeast(t metric.Type, floor float64) bool {
	sample, ok := r.store.Latest(t)
	return ok && sample.Value >= floor
}

// coolingDown treats a cooldown store failure as not cooling so a
// degraded store cannot silence recommendations; the executor re-marks
// the window on every application anyway.
func (r *Recommender) coolingDown(ctx context.Context, actionID string) bool {
	if r.cooldown == nil {
		return false
	}
	active, err := r.cooldown.Active(ctx, actionID)
	if err != nil {
		r.logger.Warn("cooldown lookup failed",
			zap.String("action_id", actionID),
			zap.Error(err),
		)
		return false
	}
	return active
}

// adjustConfidence scales the catalog confidence by the issue confidence
// and boosts it by severity, capped at 1.
func adjustConfidence(base float64, issue optimization.Issue) float64 {
	confidence := base * issue.Confidence
	switch issue.Severity {
	case metric.StatusCritical:
		confidence *= 1.2
	case metric.StatusWarning:
		confidence *= 1.1
	}
	if confidence > 1 {
		confidence = 1
	}
	return confidence
}
