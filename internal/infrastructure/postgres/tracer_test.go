package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type countingRecorder struct {
	count int
}

func (r *countingRecorder) IncSlowQuery() { r.count++ }

func newTracerAt(threshold time.Duration, elapsed time.Duration) (*SlowQueryTracer, *countingRecorder, *observer.ObservedLogs) {
	core, logs := observer.New(zap.WarnLevel)
	rec := &countingRecorder{}
	tracer := NewSlowQueryTracer(zap.New(core), threshold, rec)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	calls := 0
	tracer.now = func() time.Time {
		calls++
		if calls == 1 {
			return start
		}
		return start.Add(elapsed)
	}
	return tracer, rec, logs
}

func TestSlowQueryTracer(t *testing.T) {
	tests := []struct {
		name      string
		threshold time.Duration
		elapsed   time.Duration
		wantSlow  bool
	}{
		{"fast query", 100 * time.Millisecond, 10 * time.Millisecond, false},
		{"at threshold", 100 * time.Millisecond, 100 * time.Millisecond, true},
		{"slow query", 100 * time.Millisecond, time.Second, true},
		{"disabled", 0, time.Hour, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracer, rec, logs := newTracerAt(tt.threshold, tt.elapsed)

			ctx := tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "SELECT 1"})
			tracer.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{})

			if tt.wantSlow {
				assert.Equal(t, 1, rec.count)
				assert.Equal(t, 1, logs.FilterMessage("slow query").Len())
			} else {
				assert.Zero(t, rec.count)
				assert.Zero(t, logs.Len())
			}
		})
	}
}

func TestSlowQueryTracer_LogsError(t *testing.T) {
	tracer, _, logs := newTracerAt(time.Millisecond, time.Second)

	ctx := tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "DELETE FROM tasks"})
	tracer.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{Err: errors.New("boom")})

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "DELETE FROM tasks", fields["sql"])
		assert.Equal(t, "boom", fields["error"])
	}
}

func TestCompactSQL(t *testing.T) {
	assert.Equal(t, "SELECT id FROM tasks WHERE id = $1",
		compactSQL("SELECT id\n\t\tFROM tasks\n\t\tWHERE id = $1"))

	long := compactSQL(strings.Repeat("x", maxLoggedSQLLength+50))
	assert.Len(t, long, maxLoggedSQLLength+3)
	assert.True(t, strings.HasSuffix(long, "..."))
}
