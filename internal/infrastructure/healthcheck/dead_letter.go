// Package healthcheck provides readiness probes for event delivery.
package healthcheck

import (
	"context"
	"fmt"

	"github.com/lllypuk/tasktracker/internal/infrastructure/httpserver"
)

// DefaultDeadLetterThreshold is the backlog at which the probe fails.
const DefaultDeadLetterThreshold = 100

// DeadLetterProbeName is the component name reported by the probe.
const DeadLetterProbeName = "dead_letter_queue"

// QueueLengther reports the size of a dead letter queue.
type QueueLengther interface {
	QueueLength(ctx context.Context) (int64, error)
}

// DeadLetterChecker checks the dead letter queue backlog.
type DeadLetterChecker struct {
	queue     QueueLengther
	threshold int64
}

// NewDeadLetterChecker creates a checker failing once the queue holds
// threshold entries or more. A threshold <= 0 uses the default.
func NewDeadLetterChecker(queue QueueLengther, threshold int64) *DeadLetterChecker {
	if threshold <= 0 {
		threshold = DefaultDeadLetterThreshold
	}
	return &DeadLetterChecker{queue: queue, threshold: threshold}
}

// Check returns an error when the queue is unreadable or over the threshold.
func (c *DeadLetterChecker) Check(ctx context.Context) error {
	count, err := c.queue.QueueLength(ctx)
	if err != nil {
		return fmt.Errorf("failed to get dead letter queue length: %w", err)
	}
	if count >= c.threshold {
		return fmt.Errorf("dead letter queue holds %d events (threshold %d)", count, c.threshold)
	}
	return nil
}

// Probe adapts the checker to the readiness checker. It is optional: a
// backlog degrades the service without taking it out of rotation.
func (c *DeadLetterChecker) Probe() httpserver.Probe {
	return httpserver.Probe{
		Name:     DeadLetterProbeName,
		Optional: true,
		Check:    c.Check,
	}
}
