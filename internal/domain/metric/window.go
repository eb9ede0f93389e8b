package metric

import (
	"sync"
	"time"
)

// DefaultWindowCapacity is the bound on in-memory samples
const DefaultWindowCapacity = 10000

// Window is a bounded, append-only ring buffer of samples. When full, the
// oldest sample is evicted. Reads operate on a snapshot and never block
// writers beyond the copy itself.
type Window struct {
	mu       sync.RWMutex
	samples  []Sample
	head     int
	size     int
	capacity int
}

// NewWindow creates a window with the given capacity.
// Non-positive capacities fall back to the default.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultWindowCapacity
	}
	return &Window{
		samples:  make([]Sample, capacity),
		capacity: capacity,
	}
}

// Append adds a sample, evicting the oldest when at capacity
func (w *Window) Append(s Sample) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.size < w.capacity {
		w.samples[(w.head+w.size)%w.capacity] = s
		w.size++
		return
	}
	w.samples[w.head] = s
	w.head = (w.head + 1) % w.capacity
}

// Len returns the number of samples currently held
func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.size
}

// Capacity returns the maximum number of samples held
func (w *Window) Capacity() int {
	return w.capacity
}

// Snapshot returns a copy of all samples, oldest first
func (w *Window) Snapshot() []Sample {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]Sample, w.size)
	for i := 0; i < w.size; i++ {
		out[i] = w.samples[(w.head+i)%w.capacity]
	}
	return out
}

// Query returns samples matching the filter, oldest first. A zero Type
// matches every type; zero since/until leave that side of the range open.
func (w *Window) Query(t Type, since, until time.Time) []Sample {
	w.mu.RLock()
	defer w.mu.RUnlock()

	var out []Sample
	for i := 0; i < w.size; i++ {
		s := w.samples[(w.head+i)%w.capacity]
		if t != "" && s.Type != t {
			continue
		}
		if !since.IsZero() && s.Timestamp.Before(since) {
			continue
		}
		if !until.IsZero() && s.Timestamp.After(until) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Recent returns samples of the given type observed within the last d
func (w *Window) Recent(t Type, d time.Duration) []Sample {
	return w.Query(t, time.Now().Add(-d), time.Time{})
}

// Latest returns the most recent sample of the given type
func (w *Window) Latest(t Type) (Sample, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	for i := w.size - 1; i >= 0; i-- {
		s := w.samples[(w.head+i)%w.capacity]
		if s.Type == t {
			return s, true
		}
	}
	return Sample{}, false
}

// LatestValues returns the most recent value per metric type
func (w *Window) LatestValues() map[Type]float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make(map[Type]float64)
	for i := 0; i < w.size; i++ {
		s := w.samples[(w.head+i)%w.capacity]
		out[s.Type] = s.Value
	}
	return out
}
