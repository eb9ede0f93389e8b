package optimization

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Result sources
const (
	SourceAutomatic = "automatic"
	SourceManual    = "manual"
)

// Result records one execution attempt of an action. Immutable once created.
type Result struct {
	ID       uuid.UUID
	ActionID string
	Success  bool
	// Improvement is in percentage points as reported by the handler
	Improvement float64
	SideEffects []string
	DurationMS  int64
	Timestamp   time.Time
	RollbackID  *uuid.UUID
	Source      string
}

// NewResult creates a result stamped with the current time
func NewResult(actionID string, success bool, improvement float64, sideEffects []string, duration time.Duration) Result {
	return Result{
		ID:          uuid.New(),
		ActionID:    actionID,
		Success:     success,
		Improvement: improvement,
		SideEffects: sideEffects,
		DurationMS:  duration.Milliseconds(),
		Timestamp:   time.Now().UTC(),
		Source:      SourceAutomatic,
	}
}

// DefaultResultHistoryLimit bounds the in-memory result history
const DefaultResultHistoryLimit = 1000

// ResultHistory is a bounded, append-only in-memory log of results,
// oldest evicted first. Durable history lives in the repository.
type ResultHistory struct {
	mu      sync.RWMutex
	results []Result
	limit   int
}

// NewResultHistory creates a history with the given bound.
// Non-positive bounds fall back to the default.
func NewResultHistory(limit int) *ResultHistory {
	if limit <= 0 {
		limit = DefaultResultHistoryLimit
	}
	return &ResultHistory{limit: limit}
}

// Append adds a result, evicting the oldest beyond the bound
func (h *ResultHistory) Append(r Result) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.results = append(h.results, r)
	if len(h.results) > h.limit {
		h.results = h.results[len(h.results)-h.limit:]
	}
}

// Len returns the number of retained results
func (h *ResultHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.results)
}

// Recent returns up to n most recent results, newest first
func (h *ResultHistory) Recent(n int) []Result {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if n <= 0 || n > len(h.results) {
		n = len(h.results)
	}
	out := make([]Result, n)
	for i := 0; i < n; i++ {
		out[i] = h.results[len(h.results)-1-i]
	}
	return out
}

// FailuresSince counts failed results recorded at or after the cutoff
func (h *ResultHistory) FailuresSince(cutoff time.Time) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for i := len(h.results) - 1; i >= 0; i-- {
		if h.results[i].Timestamp.Before(cutoff) {
			break
		}
		if !h.results[i].Success {
			count++
		}
	}
	return count
}

// LatestFor returns the most recent result for the given action id
func (h *ResultHistory) LatestFor(actionID string) (Result, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for i := len(h.results) - 1; i >= 0; i-- {
		if h.results[i].ActionID == actionID {
			return h.results[i], true
		}
	}
	return Result{}, false
}
