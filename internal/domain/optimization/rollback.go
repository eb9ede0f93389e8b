package optimization

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vectorcraft/tuner/internal/domain/metric"
)

// RollbackPoint captures the state needed to revert one applied action:
// the metric values and parameter fields at apply time.
type RollbackPoint struct {
	ID        uuid.UUID
	ActionID  string
	Timestamp time.Time
	// Metrics holds the latest value per metric type at capture time
	Metrics map[metric.Type]float64
	// Parameters holds the action's parameter fields at capture time
	Parameters map[string]float64
}

// NewRollbackPoint captures a rollback point for an action
func NewRollbackPoint(action Action, metrics map[metric.Type]float64) RollbackPoint {
	params := map[string]float64{}
	if action.Parameters != nil {
		params = action.Parameters.Fields()
	}
	captured := make(map[metric.Type]float64, len(metrics))
	for k, v := range metrics {
		captured[k] = v
	}
	return RollbackPoint{
		ID:         uuid.New(),
		ActionID:   action.ID,
		Timestamp:  time.Now().UTC(),
		Metrics:    captured,
		Parameters: params,
	}
}

// DefaultRollbackStackLimit bounds the rollback stack
const DefaultRollbackStackLimit = 50

// RollbackStack holds rollback points in application order, bounded.
// The oldest point is dropped silently when the bound is exceeded; Push
// returns the dropped point so the caller can mark the matching active
// action as no longer safely revertible.
type RollbackStack struct {
	mu     sync.Mutex
	points []RollbackPoint
	limit  int
}

// NewRollbackStack creates a stack with the given bound.
// Non-positive bounds fall back to the default.
func NewRollbackStack(limit int) *RollbackStack {
	if limit <= 0 {
		limit = DefaultRollbackStackLimit
	}
	return &RollbackStack{limit: limit}
}

// Push adds a point. When the bound is exceeded the oldest point is
// dropped and returned.
func (s *RollbackStack) Push(p RollbackPoint) (dropped *RollbackPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.points = append(s.points, p)
	if len(s.points) > s.limit {
		old := s.points[0]
		s.points = s.points[1:]
		return &old
	}
	return nil
}

// TakeLatestFor removes and returns the most recent point for an action id
func (s *RollbackStack) TakeLatestFor(actionID string) (RollbackPoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.points) - 1; i >= 0; i-- {
		if s.points[i].ActionID == actionID {
			p := s.points[i]
			s.points = append(s.points[:i], s.points[i+1:]...)
			return p, true
		}
	}
	return RollbackPoint{}, false
}

// Has reports whether any point exists for the given action id
func (s *RollbackStack) Has(actionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.points) - 1; i >= 0; i-- {
		if s.points[i].ActionID == actionID {
			return true
		}
	}
	return false
}

// Len returns the number of held points
func (s *RollbackStack) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.points)
}
