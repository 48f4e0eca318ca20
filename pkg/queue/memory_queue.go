package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryQueueConfig memory queue configuration
type MemoryQueueConfig struct {
	BufferSize int           `json:"buffer_size"`
	Timeout    time.Duration `json:"timeout"`
	// OnError is called when a handler returns an error; the message is dropped
	OnError func(topic string, err error)
}

// MemoryQueue in-process queue; subscribers of a topic compete for its messages
type MemoryQueue struct {
	mu     sync.RWMutex
	topics map[string]chan []byte
	config MemoryQueueConfig
	closed bool
	wg     sync.WaitGroup

	sent atomic.Int64
	recv atomic.Int64
	errs atomic.Int64
}

// NewMemoryQueue creates a new memory queue instance
func NewMemoryQueue(config *MemoryQueueConfig) *MemoryQueue {
	cfg := MemoryQueueConfig{BufferSize: 1024, Timeout: 5 * time.Second}
	if config != nil {
		cfg = *config
		if cfg.BufferSize <= 0 {
			cfg.BufferSize = 1024
		}
		if cfg.Timeout <= 0 {
			cfg.Timeout = 5 * time.Second
		}
	}
	return &MemoryQueue{
		topics: make(map[string]chan []byte),
		config: cfg,
	}
}

func (mq *MemoryQueue) topic(name string) (chan []byte, error) {
	mq.mu.Lock()
	defer mq.mu.Unlock()

	if mq.closed {
		return nil, ErrQueueClosed
	}
	ch, ok := mq.topics[name]
	if !ok {
		ch = make(chan []byte, mq.config.BufferSize)
		mq.topics[name] = ch
	}
	return ch, nil
}

// Publish publishes a message, blocking up to the configured timeout when the buffer is full
func (mq *MemoryQueue) Publish(ctx context.Context, topic string, message []byte) error {
	if _, err := mq.topic(topic); err != nil {
		return err
	}

	// the read lock keeps Close from closing the channel under a pending send
	mq.mu.RLock()
	defer mq.mu.RUnlock()
	if mq.closed {
		return ErrQueueClosed
	}
	ch := mq.topics[topic]

	timer := time.NewTimer(mq.config.Timeout)
	defer timer.Stop()

	select {
	case ch <- message:
		mq.sent.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrPublishTimeout
	}
}

// Subscribe starts a consumer goroutine for topic
func (mq *MemoryQueue) Subscribe(ctx context.Context, topic string, handler MessageHandler) error {
	ch, err := mq.topic(topic)
	if err != nil {
		return err
	}

	mq.wg.Add(1)
	go func() {
		defer mq.wg.Done()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				mq.recv.Add(1)
				if err := handler(ctx, topic, msg); err != nil {
					mq.errs.Add(1)
					if mq.config.OnError != nil {
						mq.config.OnError(topic, err)
					}
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// Close closes every topic and waits until consumers have drained the buffers
func (mq *MemoryQueue) Close() error {
	mq.mu.Lock()
	if mq.closed {
		mq.mu.Unlock()
		return nil
	}
	mq.closed = true
	for _, ch := range mq.topics {
		close(ch)
	}
	mq.mu.Unlock()

	mq.wg.Wait()
	return nil
}

// Health checks the health of the queue
func (mq *MemoryQueue) Health() error {
	mq.mu.RLock()
	defer mq.mu.RUnlock()
	if mq.closed {
		return ErrQueueClosed
	}
	return nil
}

// GetStats returns queue statistics
func (mq *MemoryQueue) GetStats() QueueStats {
	mq.mu.RLock()
	defer mq.mu.RUnlock()
	return QueueStats{
		Topics:       len(mq.topics),
		Connected:    !mq.closed,
		MessagesSent: mq.sent.Load(),
		MessagesRecv: mq.recv.Load(),
		HandlerErrs:  mq.errs.Load(),
	}
}
