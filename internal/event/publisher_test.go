package event

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mall/internal/model"
	"mall/pkg/queue"
)

func TestNewEncodesPayload(t *testing.T) {
	evt := New(model.EventOrderPaid, 7, map[string]interface{}{"order_code": "OD1"})

	assert.NotEmpty(t, evt.ID)
	assert.Equal(t, uint64(7), evt.AggregateID)
	assert.JSONEq(t, `{"order_code":"OD1"}`, string(evt.Payload))
}

func TestQueuePublisherRoutesByTopic(t *testing.T) {
	q := queue.NewMemoryQueue(&queue.MemoryQueueConfig{BufferSize: 8, Timeout: time.Second})
	defer q.Close()

	got := make(chan model.Event, 2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, q.Subscribe(ctx, model.TopicTeam, func(_ context.Context, topic string, msg []byte) error {
		var evt model.Event
		if err := json.Unmarshal(msg, &evt); err != nil {
			return err
		}
		got <- evt
		return nil
	}))

	p := NewQueuePublisher(q, nil)
	p.Publish(ctx, New(model.EventTeamCompleted, 3, nil), New(model.EventOrderPaid, 4, nil))

	select {
	case evt := <-got:
		assert.Equal(t, model.EventTeamCompleted, evt.Type)
		assert.Equal(t, uint64(3), evt.AggregateID)
	case <-time.After(time.Second):
		t.Fatal("team event not delivered")
	}
	assert.Equal(t, int64(2), q.GetStats().MessagesSent)
}

func TestPublishOnClosedQueueDoesNotPanic(t *testing.T) {
	q := queue.NewMemoryQueue(nil)
	require.NoError(t, q.Close())

	p := NewQueuePublisher(q, nil)
	assert.NotPanics(t, func() {
		p.Publish(context.Background(), New(model.EventOrderShipped, 1, nil))
	})
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	r.Publish(context.Background(), New(model.EventOrderPaid, 1, nil), New(model.EventTeamFailed, 2, nil))
	assert.Equal(t, []string{model.EventOrderPaid, model.EventTeamFailed}, r.Types())
}
