package model

import (
	"encoding/json"
	"time"
)

// Event domain event published after commit
type Event struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	AggregateID uint64          `json:"aggregate_id"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// event types
const (
	EventOrderPaid        = "order.paid"
	EventOrderShipped     = "order.shipped"
	EventOrderRefunded    = "order.refunded"
	EventTeamCompleted    = "team.completed"
	EventTeamFailed       = "team.failed"
	EventBargainSucceeded = "bargain.succeeded"
)

// event topics
const (
	TopicOrder   = "order.events"
	TopicTeam    = "team.events"
	TopicBargain = "bargain.events"
)

// TopicOf maps an event type to its topic
func TopicOf(eventType string) string {
	switch eventType {
	case EventTeamCompleted, EventTeamFailed:
		return TopicTeam
	case EventBargainSucceeded:
		return TopicBargain
	default:
		return TopicOrder
	}
}
