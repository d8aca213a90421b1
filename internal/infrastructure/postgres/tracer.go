package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const maxLoggedSQLLength = 200

// SlowQueryRecorder counts slow queries.
type SlowQueryRecorder interface {
	IncSlowQuery()
}

type queryStartKey struct{}

type queryStart struct {
	sql     string
	startAt time.Time
}

// SlowQueryTracer implements pgx.QueryTracer. Queries at or above the
// threshold are logged at warn level and counted.
type SlowQueryTracer struct {
	logger    *zap.Logger
	threshold time.Duration
	recorder  SlowQueryRecorder
	now       func() time.Time
}

// NewSlowQueryTracer creates a tracer. A zero threshold disables it.
func NewSlowQueryTracer(logger *zap.Logger, threshold time.Duration, recorder SlowQueryRecorder) *SlowQueryTracer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SlowQueryTracer{
		logger:    logger,
		threshold: threshold,
		recorder:  recorder,
		now:       time.Now,
	}
}

// TraceQueryStart records the start time.
func (t *SlowQueryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	if t.threshold <= 0 {
		return ctx
	}
	return context.WithValue(ctx, queryStartKey{}, queryStart{sql: data.SQL, startAt: t.now()})
}

// TraceQueryEnd reports the query if it was slow.
func (t *SlowQueryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	start, ok := ctx.Value(queryStartKey{}).(queryStart)
	if !ok {
		return
	}

	elapsed := t.now().Sub(start.startAt)
	if elapsed < t.threshold {
		return
	}

	if t.recorder != nil {
		t.recorder.IncSlowQuery()
	}

	fields := []zap.Field{
		zap.String("sql", compactSQL(start.sql)),
		zap.Duration("duration", elapsed),
		zap.Duration("threshold", t.threshold),
	}
	if data.Err != nil {
		fields = append(fields, zap.Error(data.Err))
	}
	t.logger.Warn("slow query", fields...)
}

func compactSQL(sql string) string {
	sql = strings.Join(strings.Fields(sql), " ")
	if len(sql) > maxLoggedSQLLength {
		sql = sql[:maxLoggedSQLLength] + "..."
	}
	return sql
}
