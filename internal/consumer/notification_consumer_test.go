package consumer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mall/internal/event"
	"mall/internal/model"
	"mall/pkg/queue"
)

func TestNotificationConsumer(t *testing.T) {
	mq := queue.NewMemoryQueue(&queue.MemoryQueueConfig{BufferSize: 16, Timeout: time.Second})
	t.Cleanup(func() { _ = mq.Close() })

	c := NewNotificationConsumer(mq, nil)
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	pub := event.NewQueuePublisher(mq, nil)
	ctx := context.Background()
	pub.Publish(ctx,
		event.New(model.EventOrderPaid, 1, map[string]interface{}{"order_code": "OD1"}),
		event.New(model.EventOrderShipped, 1, nil),
		event.New(model.EventTeamCompleted, 7, nil),
		event.New(model.EventBargainSucceeded, 9, nil),
		event.New(model.EventOrderPaid, 2, nil),
	)

	assert.Eventually(t, func() bool {
		counts := c.Counts()
		return counts[model.EventOrderPaid] == 2 &&
			counts[model.EventOrderShipped] == 1 &&
			counts[model.EventTeamCompleted] == 1 &&
			counts[model.EventBargainSucceeded] == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNotificationConsumer_BadMessage(t *testing.T) {
	var dropped []string
	mq := queue.NewMemoryQueue(&queue.MemoryQueueConfig{
		BufferSize: 4,
		Timeout:    time.Second,
		OnError:    func(topic string, err error) { dropped = append(dropped, topic) },
	})

	c := NewNotificationConsumer(mq, nil)
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	require.NoError(t, mq.Publish(context.Background(), model.TopicOrder, []byte("not json")))
	require.NoError(t, mq.Close())

	assert.Equal(t, []string{model.TopicOrder}, dropped)
	assert.Empty(t, c.Counts())
	assert.Equal(t, int64(1), mq.GetStats().HandlerErrs)
}

func TestNotificationConsumer_ClosedQueue(t *testing.T) {
	mq := queue.NewMemoryQueue(nil)
	require.NoError(t, mq.Close())

	c := NewNotificationConsumer(mq, nil)
	assert.ErrorIs(t, c.Start(context.Background()), queue.ErrQueueClosed)
}
