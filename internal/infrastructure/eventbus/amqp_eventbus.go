package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/lllypuk/tasktracker/internal/domain/event"
)

const (
	exchangeKindTopic = "topic"
	consumerTag       = "tasktracker"
	contentTypeJSON   = "application/json"
)

// ErrConnectionClosed is returned when the broker connection is gone.
var ErrConnectionClosed = errors.New("amqp connection is closed")

// AMQPEventBus publishes events to a RabbitMQ topic exchange. The routing key
// is the event type.
type AMQPEventBus struct {
	*dispatcher

	conn     *amqp.Connection
	exchange string

	publishCh *amqp.Channel
	publishMu sync.Mutex

	shutdown  chan struct{}
	running   bool
	runningMu sync.Mutex
}

// NewAMQPEventBus dials url and declares the exchange.
func NewAMQPEventBus(url, exchange string, opts ...Option) (*AMQPEventBus, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err = declareExchange(ch, exchange); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &AMQPEventBus{
		dispatcher: newDispatcher(newOptions(opts)),
		conn:       conn,
		exchange:   exchange,
		publishCh:  ch,
		shutdown:   make(chan struct{}),
	}, nil
}

func declareExchange(ch *amqp.Channel, name string) error {
	return ch.ExchangeDeclare(
		name,
		exchangeKindTopic,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
}

// Publish sends the event envelope to the exchange.
func (b *AMQPEventBus) Publish(ctx context.Context, evt event.DomainEvent) error {
	data, envelope, err := Encode(evt)
	if err != nil {
		return err
	}

	b.publishMu.Lock()
	defer b.publishMu.Unlock()

	err = b.publishCh.PublishWithContext(ctx,
		b.exchange,
		envelope.EventType,
		false,
		false,
		amqp.Publishing{
			ContentType:  contentTypeJSON,
			MessageId:    envelope.ID,
			Timestamp:    envelope.OccurredAt,
			Type:         envelope.EventType,
			Body:         data,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event to RabbitMQ: %w", err)
	}

	b.logger.Debug("event published",
		zap.String("event_id", envelope.ID),
		zap.String("event_type", envelope.EventType),
		zap.String("aggregate_id", envelope.AggregateID),
		zap.String("exchange", b.exchange),
	)
	return nil
}

// Start declares the consumer queue, binds it to every subscribed event type
// and consumes until Shutdown or ctx cancellation. Deliveries are acked after
// the handlers succeed and rejected without requeue otherwise.
func (b *AMQPEventBus) Start(ctx context.Context) error {
	b.runningMu.Lock()
	if b.running {
		b.runningMu.Unlock()
		return errors.New("event bus is already running")
	}
	b.running = true
	b.runningMu.Unlock()

	eventTypes := b.eventTypes()
	if len(eventTypes) == 0 {
		b.logger.Warn("starting event bus with no subscriptions")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.shutdown:
			return nil
		}
	}

	ch, err := b.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	queue, err := b.declareQueue(ch)
	if err != nil {
		return err
	}

	for _, eventType := range eventTypes {
		if err = ch.QueueBind(queue.Name, eventType, b.exchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue: %w", err)
		}
	}

	deliveries, err := ch.Consume(
		queue.Name,
		consumerTag,
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	b.logger.Info("event bus started",
		zap.String("transport", "amqp"),
		zap.String("exchange", b.exchange),
		zap.String("queue", queue.Name),
		zap.Strings("routing_keys", eventTypes),
	)

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("event bus stopping due to context cancellation")
			return ctx.Err()

		case <-b.shutdown:
			b.logger.Info("event bus stopping due to shutdown signal")
			return nil

		case msg, ok := <-deliveries:
			if !ok {
				b.logger.Warn("delivery channel closed")
				return nil
			}
			b.handleDelivery(ctx, msg)
		}
	}
}

func (b *AMQPEventBus) declareQueue(ch *amqp.Channel) (amqp.Queue, error) {
	var (
		queue amqp.Queue
		err   error
	)
	if b.queue != "" {
		queue, err = ch.QueueDeclare(b.queue, true, false, false, false, nil)
	} else {
		queue, err = ch.QueueDeclare("", false, true, true, false, nil)
	}
	if err != nil {
		return amqp.Queue{}, fmt.Errorf("failed to declare queue: %w", err)
	}
	return queue, nil
}

func (b *AMQPEventBus) handleDelivery(ctx context.Context, msg amqp.Delivery) {
	b.wg.Add(1)
	defer b.wg.Done()

	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("handler panic recovered",
				zap.String("routing_key", msg.RoutingKey),
				zap.Any("panic", r),
			)
			if err := msg.Nack(false, false); err != nil {
				b.logger.Error("failed to nack message after panic", zap.Error(err))
			}
		}
	}()

	evt, err := Decode(msg.Body)
	if err != nil {
		b.logger.Error("failed to decode event",
			zap.String("routing_key", msg.RoutingKey),
			zap.Error(err),
		)
		if nackErr := msg.Nack(false, false); nackErr != nil {
			b.logger.Error("failed to nack message", zap.Error(nackErr))
		}
		return
	}

	if err = b.dispatchSync(ctx, evt); err != nil {
		if nackErr := msg.Nack(false, false); nackErr != nil {
			b.logger.Error("failed to nack message", zap.Error(nackErr))
		}
		return
	}

	if ackErr := msg.Ack(false); ackErr != nil {
		b.logger.Error("failed to ack message",
			zap.String("routing_key", msg.RoutingKey),
			zap.Error(ackErr),
		)
	}
}

// Shutdown stops consuming, waits for the in-flight delivery and closes the
// connection.
func (b *AMQPEventBus) Shutdown() error {
	b.runningMu.Lock()
	wasRunning := b.running
	b.running = false
	b.runningMu.Unlock()

	if wasRunning {
		close(b.shutdown)
		b.wait()
	}

	b.publishMu.Lock()
	defer b.publishMu.Unlock()

	var errs []error
	if b.publishCh != nil {
		if err := b.publishCh.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
		}
		b.publishCh = nil
	}
	if !b.conn.IsClosed() {
		if err := b.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
	}

	b.logger.Info("event bus shutdown complete")
	return errors.Join(errs...)
}

// IsRunning returns true while Start is consuming.
func (b *AMQPEventBus) IsRunning() bool {
	b.runningMu.Lock()
	defer b.runningMu.Unlock()
	return b.running
}

// Ping reports whether the broker connection is open.
func (b *AMQPEventBus) Ping(_ context.Context) error {
	if b.conn == nil || b.conn.IsClosed() {
		return ErrConnectionClosed
	}
	return nil
}
