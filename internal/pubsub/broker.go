package pubsub

import (
	"context"
	"sync"
	"sync/atomic"
)

const defaultBufferSize = 64

// Broker fans events out to every live subscriber. Publish never blocks:
// each subscriber owns a buffered channel and events that do not fit are
// dropped for that subscriber only.
type Broker[T any] struct {
	subs       map[chan Event[T]]struct{}
	mu         sync.RWMutex
	done       chan struct{}
	subCount   int
	bufferSize int
	dropped    atomic.Int64
	onDrop     func(Event[T])
}

func NewBroker[T any]() *Broker[T] {
	return NewBrokerWithOptions[T](defaultBufferSize)
}

func NewBrokerWithOptions[T any](bufferSize int) *Broker[T] {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &Broker[T]{
		subs:       make(map[chan Event[T]]struct{}),
		done:       make(chan struct{}),
		bufferSize: bufferSize,
	}
}

// OnDrop registers a callback invoked whenever an event is dropped for a
// slow subscriber. It must be set before the broker is shared.
func (b *Broker[T]) OnDrop(fn func(Event[T])) {
	b.onDrop = fn
}

func (b *Broker[T]) Shutdown() {
	select {
	case <-b.done:
		return
	default:
		close(b.done)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}

	b.subCount = 0
}

func (b *Broker[T]) Subscribe(ctx context.Context) <-chan Event[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	select {
	case <-b.done:
		ch := make(chan Event[T])
		close(ch)
		return ch
	default:
	}

	sub := make(chan Event[T], b.bufferSize)
	b.subs[sub] = struct{}{}
	b.subCount++

	go func() {
		<-ctx.Done()

		b.mu.Lock()
		defer b.mu.Unlock()

		select {
		case <-b.done:
			return
		default:
		}

		if _, ok := b.subs[sub]; !ok {
			return
		}
		delete(b.subs, sub)
		close(sub)
		b.subCount--
	}()

	return sub
}

func (b *Broker[T]) GetSubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.subCount
}

// Dropped reports how many deliveries were skipped because a subscriber's
// buffer was full.
func (b *Broker[T]) Dropped() int64 {
	return b.dropped.Load()
}

func (b *Broker[T]) Publish(t EventType, payload T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	select {
	case <-b.done:
		return
	default:
	}

	event := Event[T]{Type: t, Payload: payload}

	for sub := range b.subs {
		select {
		case sub <- event:
		default:
			b.dropped.Add(1)
			if b.onDrop != nil {
				b.onDrop(event)
			}
		}
	}
}
