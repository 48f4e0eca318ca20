package queue

import (
	"context"
	"errors"
)

// Queue publish/subscribe transport for domain events
type Queue interface {
	// Publish publishes a message to the specified topic
	Publish(ctx context.Context, topic string, message []byte) error

	// Subscribe registers handler as a consumer of topic until ctx is done or the queue closes
	Subscribe(ctx context.Context, topic string, handler MessageHandler) error

	// Close stops accepting messages and waits for consumers to drain
	Close() error

	// Health reports whether the queue accepts messages
	Health() error
}

// MessageHandler handles incoming messages
type MessageHandler func(ctx context.Context, topic string, message []byte) error

// QueueStats represents queue statistics
type QueueStats struct {
	Topics       int   `json:"topics"`
	Connected    bool  `json:"connected"`
	MessagesSent int64 `json:"messages_sent"`
	MessagesRecv int64 `json:"messages_received"`
	HandlerErrs  int64 `json:"handler_errors"`
}

var (
	ErrQueueClosed    = errors.New("queue is closed")
	ErrPublishTimeout = errors.New("publish timeout")
)
