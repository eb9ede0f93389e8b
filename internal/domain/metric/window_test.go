package metric

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleAt(t Type, value float64, ts time.Time) Sample {
	return Sample{Timestamp: ts, Type: t, Value: value, Unit: "percent", Status: StatusNormal}
}

func TestWindowAppend(t *testing.T) {
	t.Run("holds samples up to capacity", func(t *testing.T) {
		w := NewWindow(5)
		base := time.Now()
		for i := 0; i < 5; i++ {
			w.Append(sampleAt(TypeCPUUsage, float64(i), base.Add(time.Duration(i)*time.Second)))
		}
		assert.Equal(t, 5, w.Len())

		snap := w.Snapshot()
		require.Len(t, snap, 5)
		assert.Equal(t, 0.0, snap[0].Value)
		assert.Equal(t, 4.0, snap[4].Value)
	})

	t.Run("evicts oldest beyond capacity", func(t *testing.T) {
		w := NewWindow(100)
		base := time.Now()
		for i := 0; i < 250; i++ {
			w.Append(sampleAt(TypeCPUUsage, float64(i), base.Add(time.Duration(i)*time.Second)))
		}

		assert.Equal(t, 100, w.Len())
		snap := w.Snapshot()
		require.Len(t, snap, 100)

		// exactly the most recent 100 by timestamp, oldest first
		assert.Equal(t, 150.0, snap[0].Value)
		assert.Equal(t, 249.0, snap[99].Value)
		for i := 1; i < len(snap); i++ {
			assert.True(t, snap[i].Timestamp.After(snap[i-1].Timestamp))
		}
	})

	t.Run("zero capacity falls back to default", func(t *testing.T) {
		w := NewWindow(0)
		assert.Equal(t, DefaultWindowCapacity, w.Capacity())
	})
}

func TestWindowQuery(t *testing.T) {
	w := NewWindow(50)
	base := time.Now().Add(-10 * time.Minute)
	for i := 0; i < 10; i++ {
		w.Append(sampleAt(TypeCPUUsage, float64(50+i), base.Add(time.Duration(i)*time.Minute)))
		w.Append(sampleAt(TypeMemoryUsage, float64(60+i), base.Add(time.Duration(i)*time.Minute)))
	}

	t.Run("filters by type", func(t *testing.T) {
		got := w.Query(TypeCPUUsage, time.Time{}, time.Time{})
		require.Len(t, got, 10)
		for _, s := range got {
			assert.Equal(t, TypeCPUUsage, s.Type)
		}
	})

	t.Run("empty type matches all", func(t *testing.T) {
		got := w.Query("", time.Time{}, time.Time{})
		assert.Len(t, got, 20)
	})

	t.Run("honors time range", func(t *testing.T) {
		since := base.Add(5 * time.Minute)
		until := base.Add(7 * time.Minute)
		got := w.Query(TypeCPUUsage, since, until)
		require.Len(t, got, 3)
		assert.Equal(t, 55.0, got[0].Value)
		assert.Equal(t, 57.0, got[2].Value)
	})

	t.Run("results ordered ascending by timestamp", func(t *testing.T) {
		got := w.Query("", time.Time{}, time.Time{})
		for i := 1; i < len(got); i++ {
			assert.False(t, got[i].Timestamp.Before(got[i-1].Timestamp))
		}
	})
}

func TestWindowLatest(t *testing.T) {
	w := NewWindow(10)
	base := time.Now()
	w.Append(sampleAt(TypeCPUUsage, 40, base))
	w.Append(sampleAt(TypeMemoryUsage, 70, base.Add(time.Second)))
	w.Append(sampleAt(TypeCPUUsage, 45, base.Add(2*time.Second)))

	got, ok := w.Latest(TypeCPUUsage)
	require.True(t, ok)
	assert.Equal(t, 45.0, got.Value)

	_, ok = w.Latest(TypeErrorRate)
	assert.False(t, ok)
}

func TestWindowLatestValues(t *testing.T) {
	w := NewWindow(10)
	base := time.Now()
	w.Append(sampleAt(TypeCPUUsage, 40, base))
	w.Append(sampleAt(TypeCPUUsage, 55, base.Add(time.Second)))
	w.Append(sampleAt(TypeMemoryUsage, 70, base.Add(time.Second)))

	values := w.LatestValues()
	assert.Equal(t, 55.0, values[TypeCPUUsage])
	assert.Equal(t, 70.0, values[TypeMemoryUsage])
	_, ok := values[TypeDiskUsage]
	assert.False(t, ok)
}

func TestWindowConcurrentAccess(t *testing.T) {
	w := NewWindow(200)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			w.Append(NewSample(TypeCPUUsage, float64(i), "percent"))
		}
	}()

	for i := 0; i < 100; i++ {
		_ = w.Snapshot()
		_ = w.Len()
	}
	<-done

	assert.Equal(t, 200, w.Len())
}

func TestWindowSnapshotIsCopy(t *testing.T) {
	w := NewWindow(10)
	w.Append(NewSample(TypeCPUUsage, 1, "percent"))

	snap := w.Snapshot()
	snap[0].Value = 999

	again := w.Snapshot()
	assert.Equal(t, 1.0, again[0].Value, fmt.Sprintf("mutating a snapshot must not affect the window: %v", again[0]))
}
