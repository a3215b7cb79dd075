package flow

import (
	"context"
	"sync"
	"time"

	"github.com/flowrun/flowrun/internal/logging"
	"github.com/flowrun/flowrun/internal/pubsub"
)

// EventKind names a lifecycle event of a run.
type EventKind string

const (
	EventFlowStart    EventKind = "flow-start"
	EventStepStart    EventKind = "step-start"
	EventStepComplete EventKind = "step-complete"
	EventStepError    EventKind = "step-error"
	EventFlowComplete EventKind = "flow-complete"
	EventFlowError    EventKind = "flow-error"
	EventThinking     EventKind = "thinking"
)

// Thought is the payload of a thinking event.
type Thought struct {
	Kind       string   `json:"kind"`
	Content    string   `json:"content"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// Event is published on the Bus. Result and Context point at values that no
// longer change once the event is published.
type Event struct {
	Kind       EventKind         `json:"kind"`
	Timestamp  time.Time         `json:"timestamp"`
	FlowID     string            `json:"flowId"`
	SessionID  string            `json:"sessionId,omitempty"`
	StepID     string            `json:"stepId,omitempty"`
	WorkerName string            `json:"workerName,omitempty"`
	Error      string            `json:"error,omitempty"`
	Result     *StepResult       `json:"result,omitempty"`
	Context    *ExecutionContext `json:"context,omitempty"`
	Thought    *Thought          `json:"thought,omitempty"`
}

// Bus fans run events out to listeners. Publishing never blocks; a listener
// that falls more than its buffer behind loses events.
type Bus struct {
	broker   *pubsub.Broker[Event]
	handlers sync.WaitGroup
}

func NewBus(buffer int) *Bus {
	broker := pubsub.NewBrokerWithOptions[Event](buffer)
	broker.OnDrop(func(e pubsub.Event[Event]) {
		logging.Warn("Dropped event for slow listener", "kind", e.Payload.Kind, "flow", e.Payload.FlowID, "session", e.Payload.SessionID)
	})
	return &Bus{broker: broker}
}

func (b *Bus) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	b.broker.Publish(pubsub.CreatedEvent, e)
}

// Subscribe delivers every event in emission order until ctx is done.
func (b *Bus) Subscribe(ctx context.Context) <-chan pubsub.Event[Event] {
	return b.broker.Subscribe(ctx)
}

// On calls handler for each event of kind, or for every event when kind is
// empty. Handlers run on their own goroutine, one event at a time.
func (b *Bus) On(kind EventKind, handler func(Event)) (unsubscribe func()) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := b.broker.Subscribe(ctx)
	b.handlers.Add(1)
	go func() {
		defer b.handlers.Done()
		defer logging.RecoverPanic("flow.Bus.On", nil)
		for e := range ch {
			if kind == "" || e.Payload.Kind == kind {
				handler(e.Payload)
			}
		}
	}()
	return cancel
}

func (b *Bus) Listeners() int {
	return b.broker.GetSubscriberCount()
}

// Shutdown closes every subscription and waits for On handlers to finish
// the events already buffered for them.
func (b *Bus) Shutdown() {
	b.broker.Shutdown()
	b.handlers.Wait()
}
