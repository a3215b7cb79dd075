package flow

import (
	"context"
	"iter"
	"time"

	"github.com/flowrun/flowrun/internal/format"
)

// StreamEventKind names an event of a streamed run.
type StreamEventKind string

const (
	StreamFlowStart    StreamEventKind = "flow-start"
	StreamResult       StreamEventKind = "result"
	StreamFlowComplete StreamEventKind = "flow-complete"
	StreamError        StreamEventKind = "error"
)

// StreamEvent is one element of a streamed run.
type StreamEvent struct {
	Kind      StreamEventKind   `json:"kind"`
	Timestamp time.Time         `json:"timestamp"`
	FlowID    string            `json:"flowId"`
	Query     string            `json:"query,omitempty"`
	StepID    string            `json:"stepId,omitempty"`
	Result    any               `json:"result,omitempty"`
	Context   *ExecutionContext `json:"context,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// StreamOption adjusts a single streamed run.
type StreamOption func(*streamOptions)

type streamOptions struct {
	format format.OutputFormat
}

// WithFormat renders the result event in f instead of the flow's own format.
func WithFormat(f format.OutputFormat) StreamOption {
	return func(o *streamOptions) { o.format = f }
}

// Stream runs flowID and yields flow-start, the formatted output of the last
// executed step, then flow-complete with the full context. A fatal error
// yields a single error event instead of the remaining events. Every call
// performs a fresh run.
func (s *Service) Stream(ctx context.Context, query, flowID string, callerContext map[string]any, opts ...StreamOption) iter.Seq[StreamEvent] {
	var o streamOptions
	for _, opt := range opts {
		opt(&o)
	}
	return func(yield func(StreamEvent) bool) {
		f, err := s.runner.lookup(flowID)
		if err != nil {
			s.bus.Publish(Event{Kind: EventFlowError, FlowID: flowID, Error: err.Error()})
			yield(StreamEvent{Kind: StreamError, Timestamp: time.Now(), FlowID: flowID, Error: err.Error()})
			return
		}
		if !yield(StreamEvent{Kind: StreamFlowStart, Timestamp: time.Now(), FlowID: f.ID, Query: query}) {
			return
		}

		ectx, err := s.runner.Run(ctx, query, flowID, callerContext)
		if err != nil {
			yield(StreamEvent{Kind: StreamError, Timestamp: time.Now(), FlowID: f.ID, Context: ectx, Error: err.Error()})
			return
		}

		result := StreamEvent{Kind: StreamResult, Timestamp: time.Now(), FlowID: f.ID}
		if last, ok := ectx.LastResult(); ok {
			result.StepID = last.StepID
			spec := f.Output
			if o.format != "" {
				spec.Format = o.format
			}
			result.Result = format.Format(last.Output, spec)
		}
		if !yield(result) {
			return
		}
		yield(StreamEvent{Kind: StreamFlowComplete, Timestamp: time.Now(), FlowID: f.ID, Context: ectx})
	}
}
