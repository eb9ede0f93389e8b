package logger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestGormLogger_Trace(t *testing.T) {
	ctx := context.Background()

	t.Run("logs query errors", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		gl := NewGormLogger(zap.New(core), gormlogger.Error)

		gl.Trace(ctx, time.Now(), func() (string, int64) {
			return "SELECT * FROM metric_samples", 0
		}, assert.AnError)

		entry := findEntry(recorded.All(), "SQL Error")
		require.NotNil(t, entry)
		assert.Equal(t, zapcore.ErrorLevel, entry.Level)
	})

	t.Run("record not found is suppressed by default", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		gl := NewGormLogger(zap.New(core), gormlogger.Error)

		gl.Trace(ctx, time.Now(), func() (string, int64) {
			return "SELECT * FROM benchmark_results WHERE id = ?", 0
		}, gormlogger.ErrRecordNotFound)

		assert.Nil(t, findEntry(recorded.All(), "SQL Error"))
	})

	t.Run("slow queries are warned", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		gl := NewGormLogger(zap.New(core), gormlogger.Warn, WithSlowThreshold(time.Nanosecond))

		gl.Trace(ctx, time.Now().Add(-time.Millisecond), func() (string, int64) {
			return "SELECT 1", 1
		}, nil)

		logs := recorded.All()
		require.NotEmpty(t, logs)
		assert.Equal(t, zapcore.WarnLevel, logs[0].Level)
	})

	t.Run("silent level logs nothing", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		gl := NewGormLogger(zap.New(core), gormlogger.Silent)

		gl.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT 1", 1 }, nil)
		assert.Empty(t, recorded.All())
	})

	t.Run("query observer sees every traced query", func(t *testing.T) {
		var observed []time.Duration
		gl := NewGormLogger(zap.NewNop(), gormlogger.Info, WithQueryObserver(func(elapsed time.Duration) {
			observed = append(observed, elapsed)
		}))

		gl.Trace(ctx, time.Now().Add(-5*time.Millisecond), func() (string, int64) { return "SELECT 1", 1 }, nil)
		gl.Trace(ctx, time.Now().Add(-2*time.Millisecond), func() (string, int64) { return "SELECT 2", 1 }, nil)

		require.Len(t, observed, 2)
		assert.Greater(t, observed[0], time.Duration(0))
	})
}

func TestGormLogger_LogMode(t *testing.T) {
	gl := NewGormLogger(zap.NewNop(), gormlogger.Warn)
	elevated := gl.LogMode(gormlogger.Info)

	assert.NotSame(t, gl, elevated)
}

func TestMapGormLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  gormlogger.LogLevel
	}{
		{"silent", gormlogger.Silent},
		{"error", gormlogger.Error},
		{"warn", gormlogger.Warn},
		{"info", gormlogger.Info},
		{"debug", gormlogger.Info},
		{"unknown", gormlogger.Warn},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, MapGormLogLevel(tt.input))
		})
	}
}
