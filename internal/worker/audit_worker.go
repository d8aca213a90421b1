// Package worker contains background consumers of task events.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lllypuk/tasktracker/internal/domain/event"
	"github.com/lllypuk/tasktracker/internal/domain/task"
	"github.com/lllypuk/tasktracker/internal/infrastructure/eventbus"
	"github.com/lllypuk/tasktracker/internal/infrastructure/eventstore"
)

// Default audit worker configuration values.
const (
	defaultReportInterval  = time.Minute
	defaultDeadLetterPeek  = 10
	defaultShutdownTimeout = 10 * time.Second
)

// AuditWorkerConfig contains configuration for the audit worker.
type AuditWorkerConfig struct {
	// EventTypes are the event types recorded in the audit trail.
	EventTypes []string

	// ReportInterval is the time between summary log lines.
	ReportInterval time.Duration

	// Enabled determines if the worker should run.
	Enabled bool
}

// DefaultAuditWorkerConfig records every task event.
func DefaultAuditWorkerConfig() AuditWorkerConfig {
	return AuditWorkerConfig{
		EventTypes:     task.EventTypes(),
		ReportInterval: defaultReportInterval,
		Enabled:        true,
	}
}

// EventSource is the bus the worker consumes from.
type EventSource interface {
	event.Subscriber
	Start(ctx context.Context) error
	Shutdown() error
}

// DeadLetterSource exposes events that exhausted their retries.
type DeadLetterSource interface {
	GetDeadLetters(ctx context.Context, count int64) ([]eventbus.DeadLetterEntry, error)
}

// AuditWorker writes every task event to the log and keeps per-type counters.
type AuditWorker struct {
	source      EventSource
	handler     event.Handler
	deadLetters DeadLetterSource
	store       eventstore.Store
	logger      *zap.Logger
	config      AuditWorkerConfig

	mu     sync.Mutex
	counts map[string]int64
}

// AuditWorkerOption configures the AuditWorker.
type AuditWorkerOption func(*AuditWorker)

// WithAuditLogger sets the logger used for the audit trail.
func WithAuditLogger(logger *zap.Logger) AuditWorkerOption {
	return func(w *AuditWorker) {
		w.logger = logger
	}
}

// WithDeadLetterSource reports dead letters on every summary tick.
func WithDeadLetterSource(source DeadLetterSource) AuditWorkerOption {
	return func(w *AuditWorker) {
		w.deadLetters = source
	}
}

// WithAuditStore persists every recorded event. A failed append is returned
// to the bus so the delivery is retried.
func WithAuditStore(store eventstore.Store) AuditWorkerOption {
	return func(w *AuditWorker) {
		w.store = store
	}
}

// NewAuditWorker creates a new audit worker.
func NewAuditWorker(source EventSource, config AuditWorkerConfig, opts ...AuditWorkerOption) *AuditWorker {
	if config.ReportInterval <= 0 {
		config.ReportInterval = defaultReportInterval
	}
	if len(config.EventTypes) == 0 {
		config.EventTypes = task.EventTypes()
	}

	w := &AuditWorker{
		source: source,
		logger: zap.NewNop(),
		config: config,
		counts: make(map[string]int64),
	}

	for _, opt := range opts {
		opt(w)
	}

	w.handler = eventbus.NewLoggingHandler(w.logger.Named("audit")).Handle
	return w
}

// Run subscribes to the configured events and consumes until ctx is cancelled.
func (w *AuditWorker) Run(ctx context.Context) error {
	if !w.config.Enabled {
		w.logger.Info("audit worker is disabled")
		return nil
	}

	if err := eventbus.SubscribeAll(w.source, w.config.EventTypes, w.handle); err != nil {
		return fmt.Errorf("failed to subscribe audit worker: %w", err)
	}

	w.logger.Info("starting audit worker",
		zap.Strings("event_types", w.config.EventTypes),
		zap.Duration("report_interval", w.config.ReportInterval),
	)

	busErr := make(chan error, 1)
	go func() {
		busErr <- w.source.Start(ctx)
	}()

	ticker := time.NewTicker(w.config.ReportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.report(context.WithoutCancel(ctx))
			w.logger.Info("audit worker stopped")
			return w.stop(busErr)

		case err := <-busErr:
			if err != nil {
				return fmt.Errorf("event bus stopped: %w", err)
			}
			return nil

		case <-ticker.C:
			w.report(ctx)
		}
	}
}

func (w *AuditWorker) stop(busErr <-chan error) error {
	shutdownErr := w.source.Shutdown()

	select {
	case err := <-busErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			return errors.Join(shutdownErr, err)
		}
	case <-time.After(defaultShutdownTimeout):
		w.logger.Warn("event bus did not stop in time")
	}

	return shutdownErr
}

func (w *AuditWorker) handle(ctx context.Context, evt event.DomainEvent) error {
	if err := w.handler(ctx, evt); err != nil {
		return err
	}
	if w.store != nil {
		if err := w.store.Append(ctx, evt); err != nil {
			return err
		}
	}

	w.mu.Lock()
	w.counts[evt.EventType()]++
	w.mu.Unlock()
	return nil
}

// Counts returns a snapshot of events recorded per type.
func (w *AuditWorker) Counts() map[string]int64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	snapshot := make(map[string]int64, len(w.counts))
	for eventType, n := range w.counts {
		snapshot[eventType] = n
	}
	return snapshot
}

func (w *AuditWorker) report(ctx context.Context) {
	counts := w.Counts()

	types := make([]string, 0, len(counts))
	for eventType := range counts {
		types = append(types, eventType)
	}
	sort.Strings(types)

	fields := make([]zap.Field, 0, len(types)+1)
	for _, eventType := range types {
		fields = append(fields, zap.Int64(eventType, counts[eventType]))
	}

	if w.deadLetters != nil {
		entries, err := w.deadLetters.GetDeadLetters(ctx, defaultDeadLetterPeek)
		if err != nil {
			w.logger.Warn("failed to read dead letters", zap.Error(err))
		} else {
			fields = append(fields, zap.Int("recent_dead_letters", len(entries)))
		}
	}

	w.logger.Info("audit summary", fields...)
}
