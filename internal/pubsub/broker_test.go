package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokerDeliversInOrder(t *testing.T) {
	b := NewBroker[int]()
	defer b.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := b.Subscribe(ctx)

	for i := 0; i < 10; i++ {
		b.Publish(UpdatedEvent, i)
	}

	for i := 0; i < 10; i++ {
		select {
		case ev := <-ch:
			assert.Equal(t, i, ev.Payload)
			assert.Equal(t, UpdatedEvent, ev.Type)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
}

func TestBrokerPublishDoesNotBlockOnSlowSubscriber(t *testing.T) {
	b := NewBrokerWithOptions[int](2)
	defer b.Shutdown()

	var drops int
	b.OnDrop(func(Event[int]) { drops++ })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = b.Subscribe(ctx)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			b.Publish(CreatedEvent, i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
	assert.Equal(t, int64(3), b.Dropped())
	assert.Equal(t, 3, drops)
}

func TestBrokerUnsubscribeOnContextCancel(t *testing.T) {
	b := NewBroker[string]()
	defer b.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	ch := b.Subscribe(ctx)
	require.Equal(t, 1, b.GetSubscriberCount())

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription channel was not closed")
	}
	assert.Eventually(t, func() bool { return b.GetSubscriberCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestBrokerSubscribeAfterShutdown(t *testing.T) {
	b := NewBroker[string]()
	b.Shutdown()

	ch := b.Subscribe(context.Background())
	_, ok := <-ch
	assert.False(t, ok)
}
