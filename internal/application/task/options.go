package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lllypuk/tasktracker/internal/domain/errs"
	"github.com/lllypuk/tasktracker/internal/domain/event"
	"github.com/lllypuk/tasktracker/internal/domain/task"
	"github.com/lllypuk/tasktracker/internal/logger"
)

// Operation names reported to the Recorder.
const (
	OperationCreate = "create"
	OperationGet    = "get"
	OperationList   = "list"
	OperationUpdate = "update"
	OperationClose  = "close"
	OperationDelete = "delete"
)

// Recorder receives operation outcomes, typically for metrics.
type Recorder interface {
	RecordOperation(operation string, err error)
	RecordEventPublished(eventType string, err error)
}

type nopRecorder struct{}

func (nopRecorder) RecordOperation(string, error)      {}
func (nopRecorder) RecordEventPublished(string, error) {}

// Option configures a use case.
type Option func(*deps)

// WithEventBus publishes task events after successful writes.
func WithEventBus(bus event.Bus) Option {
	return func(d *deps) {
		d.bus = bus
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(d *deps) {
		d.logger = logger
	}
}

// WithRecorder sets the operation recorder.
func WithRecorder(recorder Recorder) Option {
	return func(d *deps) {
		d.recorder = recorder
	}
}

// WithClock overrides the time source. Tests use it to pin timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *deps) {
		d.now = now
	}
}

type deps struct {
	bus      event.Bus
	logger   *zap.Logger
	recorder Recorder
	now      func() time.Time
}

func newDeps(opts []Option) deps {
	d := deps{
		logger:   zap.NewNop(),
		recorder: nopRecorder{},
		now: func() time.Time {
			return time.Now().UTC().Truncate(time.Second)
		},
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

// publish delivers evt on the bus. The write it describes is already
// committed, so a failed publish is logged and counted but not returned.
func (d deps) publish(ctx context.Context, evt event.DomainEvent) {
	if d.bus == nil {
		return
	}

	err := d.bus.Publish(ctx, evt)
	d.recorder.RecordEventPublished(evt.EventType(), err)
	if err != nil {
		d.logger.Warn("failed to publish event",
			zap.String("event_type", evt.EventType()),
			zap.String("aggregate_id", evt.AggregateID()),
			zap.Error(err),
		)
	}
}

// translate maps repository errors to application errors. Unexpected
// errors are logged at error level with the request id.
func (d deps) translate(ctx context.Context, err error, action string) error {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return ErrTaskNotFound
	case errors.Is(err, errs.ErrConcurrentModification):
		return ErrConcurrentUpdate
	case errors.Is(err, errs.ErrInvalidInput), errors.Is(err, errs.ErrAlreadyExists):
		return fmt.Errorf("failed to %s task: %w", action, err)
	default:
		logger.WithRequest(ctx, d.logger).Error("task storage operation failed",
			zap.String("action", action),
			zap.Error(err),
		)
		return fmt.Errorf("failed to %s task: %w", action, err)
	}
}

func validateTaskID(id int64) error {
	if id <= 0 {
		return ErrInvalidTaskID
	}
	return nil
}

func validateContent(title, description string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrEmptyTitle
	}
	if len([]rune(title)) > task.MaxTitleLength {
		return ErrTitleTooLong
	}
	if len([]rune(description)) > task.MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	return nil
}
