package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ Queue = (*MemoryQueue)(nil)

func TestMemoryQueue(t *testing.T) {
	ctx := context.Background()

	t.Run("publish then subscribe delivers buffered messages", func(t *testing.T) {
		mq := NewMemoryQueue(nil)
		defer mq.Close()

		require.NoError(t, mq.Publish(ctx, "order.events", []byte("paid")))

		received := make(chan []byte, 1)
		require.NoError(t, mq.Subscribe(ctx, "order.events", func(ctx context.Context, topic string, msg []byte) error {
			received <- msg
			return nil
		}))

		select {
		case msg := <-received:
			assert.Equal(t, []byte("paid"), msg)
		case <-time.After(time.Second):
			t.Fatal("message not delivered")
		}
	})

	t.Run("topics are isolated", func(t *testing.T) {
		mq := NewMemoryQueue(nil)
		defer mq.Close()

		got := make(map[string][]string)
		var mu sync.Mutex
		var wg sync.WaitGroup
		wg.Add(4)
		handler := func(ctx context.Context, topic string, msg []byte) error {
			mu.Lock()
			got[topic] = append(got[topic], string(msg))
			mu.Unlock()
			wg.Done()
			return nil
		}
		require.NoError(t, mq.Subscribe(ctx, "team.events", handler))
		require.NoError(t, mq.Subscribe(ctx, "bargain.events", handler))

		for i := 0; i < 2; i++ {
			require.NoError(t, mq.Publish(ctx, "team.events", []byte(fmt.Sprintf("t%d", i))))
			require.NoError(t, mq.Publish(ctx, "bargain.events", []byte(fmt.Sprintf("b%d", i))))
		}
		wg.Wait()

		assert.Equal(t, []string{"t0", "t1"}, got["team.events"])
		assert.Equal(t, []string{"b0", "b1"}, got["bargain.events"])
	})

	t.Run("full buffer times out", func(t *testing.T) {
		mq := NewMemoryQueue(&MemoryQueueConfig{BufferSize: 1, Timeout: 10 * time.Millisecond})
		defer mq.Close()

		require.NoError(t, mq.Publish(ctx, "slow", []byte("1")))
		assert.ErrorIs(t, mq.Publish(ctx, "slow", []byte("2")), ErrPublishTimeout)
	})

	t.Run("handler errors are reported and counted", func(t *testing.T) {
		reported := make(chan error, 1)
		mq := NewMemoryQueue(&MemoryQueueConfig{OnError: func(topic string, err error) { reported <- err }})

		boom := errors.New("boom")
		require.NoError(t, mq.Subscribe(ctx, "t", func(context.Context, string, []byte) error { return boom }))
		require.NoError(t, mq.Publish(ctx, "t", []byte("x")))

		select {
		case err := <-reported:
			assert.ErrorIs(t, err, boom)
		case <-time.After(time.Second):
			t.Fatal("error not reported")
		}
		require.NoError(t, mq.Close())
		assert.Equal(t, int64(1), mq.GetStats().HandlerErrs)
	})

	t.Run("close drains and rejects", func(t *testing.T) {
		mq := NewMemoryQueue(nil)

		var count int
		var mu sync.Mutex
		for i := 0; i < 5; i++ {
			require.NoError(t, mq.Publish(ctx, "drain", []byte("m")))
		}
		require.NoError(t, mq.Subscribe(ctx, "drain", func(context.Context, string, []byte) error {
			mu.Lock()
			count++
			mu.Unlock()
			return nil
		}))

		require.NoError(t, mq.Close())
		assert.Equal(t, 5, count)
		assert.ErrorIs(t, mq.Publish(ctx, "drain", []byte("late")), ErrQueueClosed)
		assert.ErrorIs(t, mq.Subscribe(ctx, "drain", nil), ErrQueueClosed)
		assert.ErrorIs(t, mq.Health(), ErrQueueClosed)
		assert.NoError(t, mq.Close())

		stats := mq.GetStats()
		assert.False(t, stats.Connected)
		assert.Equal(t, int64(5), stats.MessagesSent)
		assert.Equal(t, int64(5), stats.MessagesRecv)
	})
}
