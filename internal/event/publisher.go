package event

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"mall/internal/model"
	"mall/internal/monitor"
	"mall/pkg/log"
	"mall/pkg/queue"
)

// Publisher emits domain events after their transaction has committed
type Publisher interface {
	Publish(ctx context.Context, events ...model.Event)
}

// New builds an event; payload is marshalled to JSON
func New(eventType string, aggregateID uint64, payload interface{}) model.Event {
	evt := model.Event{
		ID:          uuid.NewString(),
		Type:        eventType,
		AggregateID: aggregateID,
		OccurredAt:  time.Now(),
	}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			evt.Payload = raw
		}
	}
	return evt
}

// QueuePublisher publishes onto a queue topic per event type. The state change is
// already committed, so a failed publish is logged and counted rather than returned.
type QueuePublisher struct {
	q       queue.Queue
	metrics *monitor.MetricsCollector
}

// NewQueuePublisher creates a publisher over q
func NewQueuePublisher(q queue.Queue, metrics *monitor.MetricsCollector) *QueuePublisher {
	return &QueuePublisher{q: q, metrics: metrics}
}

// Publish implements Publisher
func (p *QueuePublisher) Publish(ctx context.Context, events ...model.Event) {
	for _, evt := range events {
		body, err := json.Marshal(evt)
		if err == nil {
			err = p.q.Publish(ctx, model.TopicOf(evt.Type), body)
		}
		p.metrics.RecordEvent(evt.Type, "publish", err)
		if err != nil {
			log.WithContext(ctx).WithFields(log.Fields{
				"event_id":     evt.ID,
				"event_type":   evt.Type,
				"aggregate_id": evt.AggregateID,
				"error":        err.Error(),
			}).Warn("Failed to publish event")
		}
	}
}

// Nop discards events
type Nop struct{}

// Publish implements Publisher
func (Nop) Publish(context.Context, ...model.Event) {}

// Recorder keeps published events in memory
type Recorder struct {
	mu     sync.Mutex
	Events []model.Event
}

// Publish implements Publisher
func (r *Recorder) Publish(_ context.Context, events ...model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, events...)
}

// Types returns the recorded event types in order
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, 0, len(r.Events))
	for _, e := range r.Events {
		types = append(types, e.Type)
	}
	return types
}
