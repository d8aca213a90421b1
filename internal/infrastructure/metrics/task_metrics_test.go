package metrics_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lllypuk/tasktracker/internal/infrastructure/metrics"
)

func TestTaskMetrics_RecordOperation(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := metrics.NewTaskMetrics(registry)

	m.RecordOperation("delete", nil)
	m.RecordOperation("delete", nil)
	m.RecordOperation("delete", errors.New("boom"))

	assert.InDelta(t, 2, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("delete", metrics.ResultSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("delete", metrics.ResultError)), 0)
}

func TestTaskMetrics_Events(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := metrics.NewTaskMetrics(registry)

	m.RecordEventPublished("task.deleted", nil)
	m.RecordEventPublished("task.deleted", errors.New("bus down"))
	m.RecordEventConsumed("task.created", nil)
	m.SetStreamClients(3)

	assert.InDelta(t, 1, testutil.ToFloat64(m.EventsPublished.WithLabelValues("task.deleted", metrics.ResultSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.EventsPublished.WithLabelValues("task.deleted", metrics.ResultError)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.EventsConsumed.WithLabelValues("task.created", metrics.ResultSuccess)), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.WebsocketClients), 0)
}

func TestHTTPMetrics_ObserveRequest(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := metrics.NewHTTPMetrics(registry)

	m.ObserveRequest("DELETE", "/api/task/:taskId", "200", 15*time.Millisecond)

	expected := `
# HELP http_requests_total Total number of HTTP requests
# TYPE http_requests_total counter
http_requests_total{method="DELETE",route="/api/task/:taskId",status="200"} 1
`
	require.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected), "http_requests_total"))
	assert.Equal(t, 1, testutil.CollectAndCount(m.RequestDuration))
}

func TestDBMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := metrics.NewDBMetrics(registry)

	m.IncSlowQuery()

	assert.InDelta(t, 1, testutil.ToFloat64(m.SlowQueries), 0)
}

func TestMetrics_DoubleRegistrationPanics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics.NewTaskMetrics(registry)

	assert.Panics(t, func() { metrics.NewTaskMetrics(registry) })
}
