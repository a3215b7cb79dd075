package flow

import (
	"github.com/tiendc/go-deepcopy"

	"github.com/flowrun/flowrun/internal/action"
	"github.com/flowrun/flowrun/internal/logging"
)

// Resolve builds the input of step from the run so far. It never mutates
// ectx, and every value it attaches is a copy.
func Resolve(step *Step, ectx *ExecutionContext) action.Input {
	callerCtx := map[string]any{}
	if len(ectx.CallerContext) > 0 {
		callerCtx = clone(ectx.CallerContext)
	}
	in := action.Input{
		action.InputQuery:   ectx.OriginalQuery,
		action.InputContext: callerCtx,
	}
	if step.Inputs == nil {
		return in
	}

	if id := step.Inputs.FromStep; id != "" {
		if r, ok := ectx.StepResults[id]; ok {
			in[action.InputPreviousStepData] = cloneOutput(r.Output)
		}
	}
	if len(step.Inputs.FromContext) > 0 {
		stepCtx := make(map[string]any, len(step.Inputs.FromContext))
		for _, id := range step.Inputs.FromContext {
			if r, ok := ectx.StepResults[id]; ok {
				stepCtx[id] = cloneOutput(r.Output)
			}
		}
		in[action.InputStepContext] = stepCtx
	}
	return in
}

func clone[T any](v T) T {
	var out T
	if err := deepcopy.Copy(&out, v); err != nil {
		logging.Warn("Failed to copy step data, sharing the original", "error", err)
		return v
	}
	return out
}

// cloneOutput copies the JSON-shaped outputs workers produce. Other values
// are returned as they are.
func cloneOutput(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return clone(val)
	case []any:
		return clone(val)
	}
	return v
}
