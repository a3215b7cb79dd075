package worker

import (
	"context"
	"fmt"

	"github.com/tiendc/go-deepcopy"

	"github.com/flowrun/flowrun/internal/action"
)

// Static answers every request with a fixed payload. Without a payload it
// echoes the prompt back as content.
type Static struct {
	name   string
	output map[string]any
}

func NewStatic(name string, output map[string]any) *Static {
	return &Static{name: name, output: output}
}

func (w *Static) Name() string { return w.name }

func (w *Static) Invoke(ctx context.Context, req action.Request) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if w.output == nil {
		out := map[string]any{
			action.OutputContent: req.Prompt,
			"action":             string(req.Action),
		}
		if req.Action == action.Search {
			out[action.OutputResults] = []any{}
		}
		return out, nil
	}

	// Callers may mutate the returned map; never hand out the shared payload.
	var out map[string]any
	if err := deepcopy.Copy(&out, w.output); err != nil {
		return nil, fmt.Errorf("copying static output: %w", err)
	}
	return out, nil
}
