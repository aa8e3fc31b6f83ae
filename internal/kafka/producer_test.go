package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestProducer_PublishAfterClose(t *testing.T) {
	p := NewProducer([]string{"127.0.0.1:1"}, "order.created", 1, zap.NewNop())
	p.Start()
	p.Close()
	p.Close()

	select {
	case <-p.done:
	case <-time.After(5 * time.Second):
		t.Fatal("producer loop did not exit")
	}
	assert.ErrorIs(t, p.Publish(context.Background(), []byte("k"), []byte("v")), ErrClosed)
}

func TestProducer_PublishRespectsContext(t *testing.T) {
	// not started: the inbox fills and the next publish must give up
	p := NewProducer([]string{"127.0.0.1:1"}, "order.created", 1, zap.NewNop())
	assert.NoError(t, p.Publish(context.Background(), []byte("k"), []byte("v1")))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Publish(ctx, []byte("k"), []byte("v2")), context.DeadlineExceeded)
}

func TestUnwrapPayload(t *testing.T) {
	type payload struct {
		OrderID int64 `json:"order_id"`
	}
	got, err := UnwrapPayload[payload](MustMarshal(map[string]any{"order_id": 7}))
	assert.NoError(t, err)
	assert.Equal(t, int64(7), got.OrderID)

	_, err = UnwrapPayload[payload]([]byte("{"))
	assert.Error(t, err)
}
