package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"mall/internal/model"
	"mall/internal/monitor"
	"mall/pkg/log"
	"mall/pkg/queue"
)

// NotificationConsumer stands in for the notification collaborators: it reads
// order, team and bargain events and never writes back to the core
type NotificationConsumer struct {
	queue   queue.Queue
	metrics *monitor.MetricsCollector
	topics  []string

	mu     sync.Mutex
	counts map[string]int
	cancel context.CancelFunc
}

// NewNotificationConsumer creates a consumer of every event topic
func NewNotificationConsumer(q queue.Queue, metrics *monitor.MetricsCollector) *NotificationConsumer {
	return &NotificationConsumer{
		queue:   q,
		metrics: metrics,
		topics:  []string{model.TopicOrder, model.TopicTeam, model.TopicBargain},
		counts:  make(map[string]int),
	}
}

// Start subscribes to the topics until Stop is called or ctx is done
func (c *NotificationConsumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	for _, topic := range c.topics {
		if err := c.queue.Subscribe(ctx, topic, c.handle); err != nil {
			cancel()
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
	}
	log.WithField("topics", c.topics).Info("Notification consumer started")
	return nil
}

// Stop stops the consumer
func (c *NotificationConsumer) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	log.Info("Notification consumer stopped")
}

// Counts returns the number of events handled per type
func (c *NotificationConsumer) Counts() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int, len(c.counts))
	for k, v := range c.counts {
		out[k] = v
	}
	return out
}

func (c *NotificationConsumer) handle(ctx context.Context, topic string, message []byte) error {
	var evt model.Event
	if err := json.Unmarshal(message, &evt); err != nil {
		c.metrics.RecordEvent("unknown", "consume", err)
		log.WithFields(log.Fields{
			"topic": topic,
			"error": err.Error(),
		}).Error("Failed to decode event")
		return err
	}

	c.mu.Lock()
	c.counts[evt.Type]++
	c.mu.Unlock()
	c.metrics.RecordEvent(evt.Type, "consume", nil)

	log.WithContext(ctx).WithFields(log.Fields{
		"topic":        topic,
		"event_id":     evt.ID,
		"event_type":   evt.Type,
		"aggregate_id": evt.AggregateID,
		"payload":      string(evt.Payload),
	}).Info("Notification dispatched")
	return nil
}
