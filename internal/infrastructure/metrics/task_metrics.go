package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Result label values.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// TaskMetrics contains Prometheus metrics for task operations and their events.
type TaskMetrics struct {
	OperationsTotal  *prometheus.CounterVec
	EventsPublished  *prometheus.CounterVec
	EventsConsumed   *prometheus.CounterVec
	WebsocketClients prometheus.Gauge
}

// NewTaskMetrics creates and registers task metrics with the given registerer.
func NewTaskMetrics(registerer prometheus.Registerer) *TaskMetrics {
	m := &TaskMetrics{
		OperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tasks_operations_total",
				Help: "Total number of task use case executions",
			},
			[]string{"operation", "result"},
		),
		EventsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "task_events_published_total",
				Help: "Total number of task events handed to the event bus",
			},
			[]string{"event_type", "result"},
		),
		EventsConsumed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "task_events_consumed_total",
				Help: "Total number of task events handled by subscribers",
			},
			[]string{"event_type", "result"},
		),
		WebsocketClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "task_stream_clients",
			Help: "Current number of connected task event stream clients",
		}),
	}

	registerer.MustRegister(
		m.OperationsTotal,
		m.EventsPublished,
		m.EventsConsumed,
		m.WebsocketClients,
	)

	return m
}

// RecordOperation counts one use case execution.
func (m *TaskMetrics) RecordOperation(operation string, err error) {
	m.OperationsTotal.WithLabelValues(operation, result(err)).Inc()
}

// RecordEventPublished counts one publish attempt.
func (m *TaskMetrics) RecordEventPublished(eventType string, err error) {
	m.EventsPublished.WithLabelValues(eventType, result(err)).Inc()
}

// RecordEventConsumed counts one handled event.
func (m *TaskMetrics) RecordEventConsumed(eventType string, err error) {
	m.EventsConsumed.WithLabelValues(eventType, result(err)).Inc()
}

// SetStreamClients reports the number of connected stream clients.
func (m *TaskMetrics) SetStreamClients(n int) {
	m.WebsocketClients.Set(float64(n))
}

// HTTPMetrics contains request metrics labelled by route template.
type HTTPMetrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewHTTPMetrics creates and registers HTTP metrics.
func NewHTTPMetrics(registerer prometheus.Registerer) *HTTPMetrics {
	m := &HTTPMetrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	registerer.MustRegister(m.RequestsTotal, m.RequestDuration)
	return m
}

// ObserveRequest records one request.
func (m *HTTPMetrics) ObserveRequest(method, route, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, route, status).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// DBMetrics contains storage metrics.
type DBMetrics struct {
	SlowQueries prometheus.Counter
}

// NewDBMetrics creates and registers storage metrics.
func NewDBMetrics(registerer prometheus.Registerer) *DBMetrics {
	m := &DBMetrics{
		SlowQueries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "db_slow_queries_total",
			Help: "Total number of queries slower than the configured threshold",
		}),
	}
	registerer.MustRegister(m.SlowQueries)
	return m
}

// IncSlowQuery counts one slow query.
func (m *DBMetrics) IncSlowQuery() {
	m.SlowQueries.Inc()
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}
