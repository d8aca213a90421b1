package eventbus

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lllypuk/tasktracker/internal/domain/event"
)

// Default retry configuration constants.
const (
	defaultMaxRetries     = 3
	defaultInitialBackoff = 100 * time.Millisecond
	defaultMaxBackoff     = 5 * time.Second
	defaultBackoffFactor  = 2.0
	defaultChannelPrefix  = "events:"
)

// RetryConfig configures retry behavior for event handling.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     defaultMaxRetries,
		InitialBackoff: defaultInitialBackoff,
		MaxBackoff:     defaultMaxBackoff,
		BackoffFactor:  defaultBackoffFactor,
	}
}

// ConsumeRecorder counts delivered events.
type ConsumeRecorder interface {
	RecordEventConsumed(eventType string, err error)
}

// DeadLetterFunc receives events whose handler kept failing after all retries.
type DeadLetterFunc func(ctx context.Context, evt event.DomainEvent, err error)

// Option configures a bus.
type Option func(*options)

type options struct {
	logger        *zap.Logger
	retryConfig   RetryConfig
	channelPrefix string
	queue         string
	recorder      ConsumeRecorder
	deadLetter    DeadLetterFunc
}

func newOptions(opts []Option) options {
	o := options{
		logger:        zap.NewNop(),
		retryConfig:   DefaultRetryConfig(),
		channelPrefix: defaultChannelPrefix,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger for the event bus.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRetryConfig sets the retry configuration for event handling.
func WithRetryConfig(config RetryConfig) Option {
	return func(o *options) {
		o.retryConfig = config
	}
}

// WithChannelPrefix sets a prefix for Redis channel names.
func WithChannelPrefix(prefix string) Option {
	return func(o *options) {
		o.channelPrefix = prefix
	}
}

// WithQueue names the durable AMQP queue. Without it the bus uses an
// exclusive server-named queue.
func WithQueue(name string) Option {
	return func(o *options) {
		o.queue = name
	}
}

// WithConsumeRecorder counts every delivered event.
func WithConsumeRecorder(recorder ConsumeRecorder) Option {
	return func(o *options) {
		o.recorder = recorder
	}
}

// WithDeadLetter sets the sink for events that exhausted their retries.
func WithDeadLetter(fn DeadLetterFunc) Option {
	return func(o *options) {
		o.deadLetter = fn
	}
}

// dispatcher holds subscriptions and runs handlers with retries.
type dispatcher struct {
	options

	handlers   map[string][]event.Handler
	handlersMu sync.RWMutex
	wg         sync.WaitGroup
}

func newDispatcher(o options) *dispatcher {
	return &dispatcher{
		options:  o,
		handlers: make(map[string][]event.Handler),
	}
}

// Subscribe registers an event handler for a specific event type.
func (d *dispatcher) Subscribe(eventType string, handler event.Handler) error {
	if eventType == "" {
		return errors.New("event type cannot be empty")
	}
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	d.handlersMu.Lock()
	defer d.handlersMu.Unlock()

	d.handlers[eventType] = append(d.handlers[eventType], handler)
	return nil
}

// HandlerCount returns the number of handlers registered for an event type.
func (d *dispatcher) HandlerCount(eventType string) int {
	d.handlersMu.RLock()
	defer d.handlersMu.RUnlock()
	return len(d.handlers[eventType])
}

func (d *dispatcher) eventTypes() []string {
	d.handlersMu.RLock()
	defer d.handlersMu.RUnlock()

	types := make([]string, 0, len(d.handlers))
	for eventType := range d.handlers {
		types = append(types, eventType)
	}
	return types
}

func (d *dispatcher) handlersFor(eventType string) []event.Handler {
	d.handlersMu.RLock()
	defer d.handlersMu.RUnlock()
	return d.handlers[eventType]
}

// dispatchAsync runs every handler for evt in its own goroutine.
func (d *dispatcher) dispatchAsync(ctx context.Context, evt event.DomainEvent) {
	for i, handler := range d.handlersFor(evt.EventType()) {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.execute(ctx, handler, evt, i)
		}()
	}
}

// dispatchSync runs the handlers one after another and returns the first
// error that survived retries.
func (d *dispatcher) dispatchSync(ctx context.Context, evt event.DomainEvent) error {
	var errs []error
	for i, handler := range d.handlersFor(evt.EventType()) {
		if err := d.execute(ctx, handler, evt, i); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// wait blocks until in-flight handlers return.
func (d *dispatcher) wait() {
	d.wg.Wait()
}

// execute runs a single event handler with retry logic.
func (d *dispatcher) execute(ctx context.Context, handler event.Handler, evt event.DomainEvent, handlerIndex int) error {
	var lastErr error
	backoff := d.retryConfig.InitialBackoff

	for attempt := 0; attempt <= d.retryConfig.MaxRetries; attempt++ {
		if attempt > 0 {
			d.logger.Debug("retrying event handler",
				zap.String("event_type", evt.EventType()),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
			)

			select {
			case <-ctx.Done():
				d.logger.Warn("handler retry cancelled",
					zap.String("event_type", evt.EventType()),
					zap.Error(ctx.Err()),
				)
				d.record(evt, ctx.Err())
				return ctx.Err()
			case <-time.After(backoff):
			}

			backoff = time.Duration(float64(backoff) * d.retryConfig.BackoffFactor)
			if backoff > d.retryConfig.MaxBackoff {
				backoff = d.retryConfig.MaxBackoff
			}
		}

		if err := handler(ctx, evt); err != nil {
			lastErr = err
			d.logger.Warn("event handler failed",
				zap.String("event_type", evt.EventType()),
				zap.String("aggregate_id", evt.AggregateID()),
				zap.Int("handler_index", handlerIndex),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			continue
		}

		d.logger.Debug("event handler completed",
			zap.String("event_type", evt.EventType()),
			zap.String("aggregate_id", evt.AggregateID()),
			zap.Int("handler_index", handlerIndex),
		)
		d.record(evt, nil)
		return nil
	}

	d.logger.Error("event handler failed after all retries",
		zap.String("event_type", evt.EventType()),
		zap.String("aggregate_id", evt.AggregateID()),
		zap.Int("handler_index", handlerIndex),
		zap.Int("max_retries", d.retryConfig.MaxRetries),
		zap.Error(lastErr),
	)
	d.record(evt, lastErr)
	if d.deadLetter != nil {
		d.deadLetter(ctx, evt, lastErr)
	}
	return lastErr
}

func (d *dispatcher) record(evt event.DomainEvent, err error) {
	if d.recorder != nil {
		d.recorder.RecordEventConsumed(evt.EventType(), err)
	}
}
