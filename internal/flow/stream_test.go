package flow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/flowrun/flowrun/internal/action"
	"github.com/flowrun/flowrun/internal/format"
	"github.com/flowrun/flowrun/internal/worker"
)

func streamKinds(events []StreamEvent) []StreamEventKind {
	out := make([]StreamEventKind, 0, len(events))
	for _, e := range events {
		out = append(out, e.Kind)
	}
	return out
}

func TestStream(t *testing.T) {
	f := Flow{
		Output: format.Spec{Format: format.Structured},
		Steps: []Step{
			{ID: "first", Action: action.Custom, Prompt: "one"},
			{ID: "last", Action: action.Custom, Prompt: "two"},
		},
	}
	svc := newTestService(t, MapLoader{"f": f}, []worker.Worker{echoWorker("default", nil)}, Options{})

	var events []StreamEvent
	for e := range svc.Stream(context.Background(), "q", "f", map[string]any{"k": "v"}) {
		events = append(events, e)
	}

	require.Equal(t, []StreamEventKind{StreamFlowStart, StreamResult, StreamFlowComplete}, streamKinds(events))
	assert.Equal(t, "q", events[0].Query)
	assert.Equal(t, "last", events[1].StepID)
	assert.Equal(t, "{\n  \"content\": \"two\"\n}", events[1].Result)
	ectx := events[2].Context
	require.NotNil(t, ectx)
	assert.Equal(t, RunCompleted, ectx.Status)
	assert.Equal(t, map[string]any{"k": "v"}, ectx.CallerContext)
}

func TestStreamWithFormatOverride(t *testing.T) {
	f := Flow{
		Output: format.Spec{Format: format.Structured},
		Steps:  []Step{{ID: "only", Action: action.Custom, Prompt: "two"}},
	}
	svc := newTestService(t, MapLoader{"f": f}, []worker.Worker{echoWorker("default", nil)}, Options{})

	var result any
	for e := range svc.Stream(context.Background(), "q", "f", nil, WithFormat(format.Prose)) {
		if e.Kind == StreamResult {
			result = e.Result
		}
	}
	assert.Equal(t, "two", result)
}

func TestStreamUnknownFormatPassesOutput(t *testing.T) {
	f := Flow{Output: format.Spec{Format: "pdf"}, Steps: []Step{{ID: "only", Action: action.Custom, Prompt: "p"}}}
	svc := newTestService(t, MapLoader{"f": f}, []worker.Worker{echoWorker("default", nil)}, Options{})

	var result any
	for e := range svc.Stream(context.Background(), "q", "f", nil) {
		if e.Kind == StreamResult {
			result = e.Result
		}
	}
	assert.Equal(t, map[string]any{"content": "p"}, result)
}

func TestStreamErrors(t *testing.T) {
	t.Run("flow not found", func(t *testing.T) {
		svc := newTestService(t, MapLoader{"f": widgetsFlow()}, nil, Options{})
		var events []StreamEvent
		for e := range svc.Stream(context.Background(), "q", "nope", nil) {
			events = append(events, e)
		}
		require.Len(t, events, 1)
		assert.Equal(t, StreamError, events[0].Kind)
		assert.Contains(t, events[0].Error, "flow not found")
	})

	t.Run("step limit", func(t *testing.T) {
		svc := newTestService(t, cycleFlow(), []worker.Worker{echoWorker("default", nil)}, Options{MaxSteps: 3})
		var events []StreamEvent
		for e := range svc.Stream(context.Background(), "q", "loop", nil) {
			events = append(events, e)
		}
		require.Equal(t, []StreamEventKind{StreamFlowStart, StreamError}, streamKinds(events))
		assert.Contains(t, events[1].Error, "step limit exceeded")
		assert.Len(t, events[1].Context.Trail, 3)
	})
}

func TestStreamStopsWhenConsumerStops(t *testing.T) {
	ctrl := gomock.NewController(t)
	w := mockWorker(ctrl, "default")
	w.EXPECT().Invoke(gomock.Any(), gomock.Any()).Times(0)

	svc := newTestService(t, MapLoader{"f": {Steps: []Step{{ID: "s", Action: action.Custom}}}}, []worker.Worker{w}, Options{})
	for e := range svc.Stream(context.Background(), "q", "f", nil) {
		assert.Equal(t, StreamFlowStart, e.Kind)
		break
	}
}

func TestStreamIsRestartable(t *testing.T) {
	svc := newTestService(t, MapLoader{"f": {Steps: []Step{{ID: "s", Action: action.Custom}}}}, []worker.Worker{echoWorker("default", nil)}, Options{})
	seq := svc.Stream(context.Background(), "q", "f", nil)

	var sessions []string
	for range 2 {
		for e := range seq {
			if e.Kind == StreamFlowComplete {
				sessions = append(sessions, e.Context.SessionID)
			}
		}
	}
	require.Len(t, sessions, 2)
	assert.NotEqual(t, sessions[0], sessions[1])
}

func TestBusOn(t *testing.T) {
	bus := NewBus(8)
	defer bus.Shutdown()

	got := make(chan Event, 8)
	unsubscribe := bus.On(EventStepComplete, func(e Event) { got <- e })
	all := make(chan Event, 8)
	unsubscribeAll := bus.On("", func(e Event) { all <- e })
	defer unsubscribeAll()

	bus.Publish(Event{Kind: EventStepStart, StepID: "a"})
	bus.Publish(Event{Kind: EventStepComplete, StepID: "a"})

	select {
	case e := <-got:
		assert.Equal(t, EventStepComplete, e.Kind)
		assert.False(t, e.Timestamp.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("handler not called")
	}
	for _, want := range []EventKind{EventStepStart, EventStepComplete} {
		select {
		case e := <-all:
			assert.Equal(t, want, e.Kind)
		case <-time.After(2 * time.Second):
			t.Fatal("catch-all handler not called")
		}
	}

	unsubscribe()
	assert.Eventually(t, func() bool { return bus.Listeners() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestBusDoesNotBlockOnSlowListener(t *testing.T) {
	bus := NewBus(2)
	defer bus.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = bus.Subscribe(ctx)

	done := make(chan struct{})
	go func() {
		for range 100 {
			bus.Publish(Event{Kind: EventThinking})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a listener that never reads")
	}
}
