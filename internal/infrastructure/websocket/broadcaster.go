package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/lllypuk/tasktracker/internal/domain/event"
	"github.com/lllypuk/tasktracker/internal/domain/task"
	"github.com/lllypuk/tasktracker/internal/infrastructure/eventbus"
)

// Broadcaster forwards task events from the bus to the hub as envelope JSON.
type Broadcaster struct {
	hub        *Hub
	subscriber event.Subscriber
	logger     *zap.Logger
	eventTypes []string

	running   bool
	runningMu sync.Mutex
}

// BroadcasterOption configures a Broadcaster.
type BroadcasterOption func(*Broadcaster)

// WithBroadcasterLogger sets the logger for the broadcaster.
func WithBroadcasterLogger(logger *zap.Logger) BroadcasterOption {
	return func(b *Broadcaster) {
		b.logger = logger
	}
}

// WithEventTypes overrides the forwarded event types.
func WithEventTypes(eventTypes []string) BroadcasterOption {
	return func(b *Broadcaster) {
		b.eventTypes = eventTypes
	}
}

// NewBroadcaster creates a Broadcaster for every task event type.
func NewBroadcaster(hub *Hub, subscriber event.Subscriber, opts ...BroadcasterOption) *Broadcaster {
	b := &Broadcaster{
		hub:        hub,
		subscriber: subscriber,
		logger:     zap.NewNop(),
		eventTypes: task.EventTypes(),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Start subscribes to the bus. It does not block.
func (b *Broadcaster) Start() error {
	b.runningMu.Lock()
	defer b.runningMu.Unlock()

	if b.running {
		return nil
	}

	if err := eventbus.SubscribeAll(b.subscriber, b.eventTypes, b.handleEvent); err != nil {
		return err
	}
	b.running = true

	b.logger.Info("websocket broadcaster started", zap.Strings("event_types", b.eventTypes))
	return nil
}

func (b *Broadcaster) handleEvent(_ context.Context, evt event.DomainEvent) error {
	envelope, err := eventbus.EnvelopeOf(evt)
	if err != nil {
		return err
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal websocket message: %w", err)
	}

	taskID, err := strconv.ParseInt(evt.AggregateID(), 10, 64)
	if err != nil {
		b.logger.Warn("event aggregate id is not a task id",
			zap.String("event_type", evt.EventType()),
			zap.String("aggregate_id", evt.AggregateID()),
		)
		return nil
	}

	b.hub.Broadcast(taskID, data)
	b.logger.Debug("event broadcast",
		zap.String("event_type", evt.EventType()),
		zap.Int64("task_id", taskID),
	)
	return nil
}
