package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lllypuk/tasktracker/internal/domain/event"
)

// RedisEventBus implements event publishing and subscription using Redis Pub/Sub.
type RedisEventBus struct {
	*dispatcher

	client *redis.Client

	pubsub   *redis.PubSub
	pubsubMu sync.Mutex

	shutdown  chan struct{}
	running   bool
	runningMu sync.Mutex
}

// NewRedisEventBus creates a new Redis-based event bus.
func NewRedisEventBus(client *redis.Client, opts ...Option) *RedisEventBus {
	return &RedisEventBus{
		dispatcher: newDispatcher(newOptions(opts)),
		client:     client,
		shutdown:   make(chan struct{}),
	}
}

// Publish publishes a domain event to Redis Pub/Sub.
func (b *RedisEventBus) Publish(ctx context.Context, evt event.DomainEvent) error {
	data, envelope, err := Encode(evt)
	if err != nil {
		return err
	}

	channel := b.channelName(envelope.EventType)

	if publishErr := b.client.Publish(ctx, channel, data).Err(); publishErr != nil {
		return fmt.Errorf("failed to publish event to Redis: %w", publishErr)
	}

	b.logger.Debug("event published",
		zap.String("event_id", envelope.ID),
		zap.String("event_type", envelope.EventType),
		zap.String("aggregate_id", envelope.AggregateID),
		zap.String("channel", channel),
	)

	return nil
}

// Start begins listening for events on subscribed channels.
// This method blocks until Shutdown is called or the context is cancelled.
func (b *RedisEventBus) Start(ctx context.Context) error {
	b.runningMu.Lock()
	if b.running {
		b.runningMu.Unlock()
		return errors.New("event bus is already running")
	}
	b.running = true
	b.runningMu.Unlock()

	channels := b.subscribedChannels()
	if len(channels) == 0 {
		b.logger.Warn("starting event bus with no subscriptions")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.shutdown:
			return nil
		}
	}

	pubsub := b.client.Subscribe(ctx, channels...)

	// Wait for subscription confirmation
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("failed to subscribe to channels: %w", err)
	}

	b.pubsubMu.Lock()
	b.pubsub = pubsub
	b.pubsubMu.Unlock()

	b.logger.Info("event bus started",
		zap.String("transport", "redis"),
		zap.Int("channel_count", len(channels)),
		zap.Strings("channels", channels),
	)

	msgCh := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("event bus stopping due to context cancellation")
			return ctx.Err()

		case <-b.shutdown:
			b.logger.Info("event bus stopping due to shutdown signal")
			return nil

		case msg, ok := <-msgCh:
			if !ok {
				b.logger.Warn("message channel closed")
				return nil
			}
			b.handleMessage(ctx, msg)
		}
	}
}

// Shutdown gracefully stops the event bus.
// It waits for all pending event handlers to complete.
func (b *RedisEventBus) Shutdown() error {
	b.runningMu.Lock()
	if !b.running {
		b.runningMu.Unlock()
		return nil
	}
	b.running = false
	b.runningMu.Unlock()

	close(b.shutdown)

	b.wait()

	b.pubsubMu.Lock()
	pubsub := b.pubsub
	b.pubsub = nil
	b.pubsubMu.Unlock()

	if pubsub != nil {
		if err := pubsub.Close(); err != nil {
			return fmt.Errorf("failed to close pubsub: %w", err)
		}
	}

	b.logger.Info("event bus shutdown complete")
	return nil
}

// IsRunning returns true if the event bus is currently running.
func (b *RedisEventBus) IsRunning() bool {
	b.runningMu.Lock()
	defer b.runningMu.Unlock()
	return b.running
}

// Ping checks the Redis connection.
func (b *RedisEventBus) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *RedisEventBus) channelName(eventType string) string {
	return b.channelPrefix + eventType
}

func (b *RedisEventBus) subscribedChannels() []string {
	eventTypes := b.eventTypes()
	channels := make([]string, 0, len(eventTypes))
	for _, eventType := range eventTypes {
		channels = append(channels, b.channelName(eventType))
	}
	return channels
}

func (b *RedisEventBus) handleMessage(ctx context.Context, msg *redis.Message) {
	evt, err := Decode([]byte(msg.Payload))
	if err != nil {
		b.logger.Error("failed to decode event",
			zap.String("channel", msg.Channel),
			zap.Error(err),
		)
		return
	}

	b.dispatchAsync(ctx, evt)
}
