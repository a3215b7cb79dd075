package action

import "context"

// Thought is an intermediate trace a capability emits while it works.
type Thought struct {
	Kind       string
	Content    string
	Confidence *float64
}

// ThinkFunc receives thoughts for the step bound to the context.
type ThinkFunc func(Thought)

type thinkerKey struct{}

// WithThinker returns a context whose Think calls are delivered to fn.
func WithThinker(ctx context.Context, fn ThinkFunc) context.Context {
	return context.WithValue(ctx, thinkerKey{}, fn)
}

// Think emits a trace event for the current step. It is a no-op when no
// thinker is installed.
func Think(ctx context.Context, kind, content string) {
	if fn, ok := ctx.Value(thinkerKey{}).(ThinkFunc); ok && fn != nil {
		fn(Thought{Kind: kind, Content: content})
	}
}

func ThinkWithConfidence(ctx context.Context, kind, content string, confidence float64) {
	if fn, ok := ctx.Value(thinkerKey{}).(ThinkFunc); ok && fn != nil {
		fn(Thought{Kind: kind, Content: content, Confidence: &confidence})
	}
}
