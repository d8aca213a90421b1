package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lllypuk/tasktracker/internal/domain/event"
)

const (
	deadLetterQueueKey    = "events:dead_letter"
	defaultMaxDeadLetters = 1000
	maxPayloadLogLength   = 500
)

// Bus is an event transport the application can publish on and consume from.
type Bus interface {
	event.Bus
	event.Subscriber

	Start(ctx context.Context) error
	Shutdown() error
	Ping(ctx context.Context) error
}

// SubscribeAll registers handler for every listed event type.
func SubscribeAll(sub event.Subscriber, eventTypes []string, handler event.Handler) error {
	for _, eventType := range eventTypes {
		if err := sub.Subscribe(eventType, handler); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", eventType, err)
		}
	}
	return nil
}

// LoggingHandler logs all domain events for audit trail purposes.
type LoggingHandler struct {
	logger *zap.Logger
}

// NewLoggingHandler creates a new LoggingHandler.
func NewLoggingHandler(logger *zap.Logger) *LoggingHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingHandler{logger: logger}
}

// Handle logs the domain event.
func (h *LoggingHandler) Handle(_ context.Context, evt event.DomainEvent) error {
	fields := []zap.Field{
		zap.String("event_type", evt.EventType()),
		zap.String("aggregate_id", evt.AggregateID()),
		zap.String("aggregate_type", evt.AggregateType()),
		zap.Time("occurred_at", evt.OccurredAt()),
		zap.Int("version", evt.Version()),
	}

	metadata := evt.Metadata()
	if metadata.UserID != "" {
		fields = append(fields, zap.String("user_id", metadata.UserID))
	}
	if metadata.RequestID != "" {
		fields = append(fields, zap.String("request_id", metadata.RequestID))
	}

	if pe, ok := evt.(PayloadEvent); ok {
		payload := string(pe.Payload())
		if len(payload) > maxPayloadLogLength {
			payload = payload[:maxPayloadLogLength] + "..."
		}
		fields = append(fields, zap.String("payload", payload))
	}

	h.logger.Info("domain event", fields...)
	return nil
}

// DeadLetterHandler stores failed events in Redis for later analysis.
type DeadLetterHandler struct {
	client        *redis.Client
	logger        *zap.Logger
	queueKey      string
	maxDeadLetter int64
}

// DeadLetterEntry represents a failed event stored in the dead letter queue.
type DeadLetterEntry struct {
	EventType     string          `json:"event_type"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	Error         string          `json:"error"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	Timestamp     int64           `json:"timestamp"`
	FailedAt      time.Time       `json:"failed_at"`
}

// DeadLetterHandlerOption configures DeadLetterHandler.
type DeadLetterHandlerOption func(*DeadLetterHandler)

// WithDeadLetterQueueKey sets a custom key for the dead letter queue.
func WithDeadLetterQueueKey(key string) DeadLetterHandlerOption {
	return func(h *DeadLetterHandler) {
		h.queueKey = key
	}
}

// WithDeadLetterLogger sets the logger for DeadLetterHandler.
func WithDeadLetterLogger(logger *zap.Logger) DeadLetterHandlerOption {
	return func(h *DeadLetterHandler) {
		h.logger = logger
	}
}

// WithMaxDeadLetters sets the maximum number of entries to keep in the queue.
func WithMaxDeadLetters(maxEntries int64) DeadLetterHandlerOption {
	return func(h *DeadLetterHandler) {
		h.maxDeadLetter = maxEntries
	}
}

// NewDeadLetterHandler creates a new DeadLetterHandler.
func NewDeadLetterHandler(client *redis.Client, opts ...DeadLetterHandlerOption) *DeadLetterHandler {
	h := &DeadLetterHandler{
		client:        client,
		logger:        zap.NewNop(),
		queueKey:      deadLetterQueueKey,
		maxDeadLetter: defaultMaxDeadLetters,
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Handle stores a failed event in the dead letter queue. It matches
// DeadLetterFunc so it can be passed to WithDeadLetter.
func (h *DeadLetterHandler) Handle(ctx context.Context, evt event.DomainEvent, err error) {
	entry := DeadLetterEntry{
		EventType:     evt.EventType(),
		AggregateID:   evt.AggregateID(),
		AggregateType: evt.AggregateType(),
		Timestamp:     evt.OccurredAt().Unix(),
		FailedAt:      time.Now().UTC(),
	}
	if err != nil {
		entry.Error = err.Error()
	}
	if pe, ok := evt.(PayloadEvent); ok {
		entry.Payload = pe.Payload()
	}

	data, marshalErr := json.Marshal(entry)
	if marshalErr != nil {
		h.logger.Error("failed to marshal dead letter entry",
			zap.String("event_type", evt.EventType()),
			zap.Error(marshalErr),
		)
		return
	}

	if pushErr := h.client.LPush(ctx, h.queueKey, string(data)).Err(); pushErr != nil {
		h.logger.Error("failed to push to dead letter queue",
			zap.String("event_type", evt.EventType()),
			zap.Error(pushErr),
		)
		return
	}

	if trimErr := h.client.LTrim(ctx, h.queueKey, 0, h.maxDeadLetter-1).Err(); trimErr != nil {
		h.logger.Warn("failed to trim dead letter queue", zap.Error(trimErr))
	}

	h.logger.Error("event moved to dead letter queue",
		zap.String("event_type", evt.EventType()),
		zap.String("aggregate_id", evt.AggregateID()),
		zap.String("original_error", entry.Error),
	)
}

// GetDeadLetters retrieves entries from the dead letter queue, newest first.
func (h *DeadLetterHandler) GetDeadLetters(ctx context.Context, count int64) ([]DeadLetterEntry, error) {
	if count <= 0 {
		count = 10
	}

	data, err := h.client.LRange(ctx, h.queueKey, 0, count-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get dead letters: %w", err)
	}

	entries := make([]DeadLetterEntry, 0, len(data))
	for _, d := range data {
		var entry DeadLetterEntry
		if unmarshalErr := json.Unmarshal([]byte(d), &entry); unmarshalErr != nil {
			h.logger.Warn("failed to unmarshal dead letter entry", zap.Error(unmarshalErr))
			continue
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// ClearDeadLetters removes all entries from the dead letter queue.
func (h *DeadLetterHandler) ClearDeadLetters(ctx context.Context) error {
	return h.client.Del(ctx, h.queueKey).Err()
}

// QueueLength returns the number of entries in the dead letter queue.
func (h *DeadLetterHandler) QueueLength(ctx context.Context) (int64, error) {
	return h.client.LLen(ctx, h.queueKey).Result()
}
