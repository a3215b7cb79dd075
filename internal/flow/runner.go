package flow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/flowrun/flowrun/internal/action"
	"github.com/flowrun/flowrun/internal/logging"
)

// FlowSource resolves flow definitions by ID.
type FlowSource interface {
	Get(id string) (*Flow, error)
}

// Runner drives the step loop of a run.
type Runner struct {
	flows              FlowSource
	executor           *Executor
	bus                *Bus
	maxSteps           int
	sequentialFallback bool
	now                func() time.Time
}

func NewRunner(flows FlowSource, executor *Executor, bus *Bus, maxSteps int, sequentialFallback bool) *Runner {
	return &Runner{
		flows:              flows,
		executor:           executor,
		bus:                bus,
		maxSteps:           maxSteps,
		sequentialFallback: sequentialFallback,
		now:                time.Now,
	}
}

// Run executes flowID to completion. Step failures do not fail the run;
// only a missing flow or step, the step limit and cancellation do. When the
// loop has started, the partial context is returned with the error.
func (r *Runner) Run(ctx context.Context, query, flowID string, callerContext map[string]any) (*ExecutionContext, error) {
	f, err := r.lookup(flowID)
	if err != nil {
		r.bus.Publish(Event{Kind: EventFlowError, FlowID: flowID, Error: err.Error()})
		return nil, err
	}

	ectx := &ExecutionContext{
		FlowID:        f.ID,
		SessionID:     uuid.New().String(),
		OriginalQuery: query,
		CallerContext: callerContext,
		CurrentStepID: f.StartStep(),
		StepResults:   make(map[string]*StepResult),
		Status:        RunRunning,
		StartTime:     r.now(),
	}
	logger := logging.FromContext(ctx).With("flow", f.ID, "session", ectx.SessionID)
	ctx = logging.NewContext(ctx, logger)

	logger.Info("Flow started", "query", query)
	r.bus.Publish(Event{Kind: EventFlowStart, FlowID: f.ID, SessionID: ectx.SessionID, Context: ectx.snapshot()})

	executed := 0
	for ectx.CurrentStepID != "" {
		if err := ctx.Err(); err != nil {
			return ectx, r.fail(ectx, logger, fmt.Errorf("%w: %w", ErrRunCancelled, err))
		}
		_, step := f.findStep(ectx.CurrentStepID)
		if step == nil {
			return ectx, r.fail(ectx, logger, fmt.Errorf("%w: %s in flow %s", ErrStepNotFound, ectx.CurrentStepID, f.ID))
		}
		if executed >= r.maxSteps {
			return ectx, r.fail(ectx, logger, fmt.Errorf("%w: %d steps executed in flow %s", ErrStepLimitExceeded, executed, f.ID))
		}

		result := r.executor.Execute(ctx, step, f, ectx)
		ectx.StepResults[step.ID] = result
		ectx.Trail = append(ectx.Trail, step.ID)
		executed++

		next, ok, matched := transition(step, result, f)
		if !matched && r.sequentialFallback {
			next, ok = sequentialNext(step, f)
		}
		if !ok {
			next = ""
		}
		ectx.CurrentStepID = next
		ectx.CurrentStepIndex++
	}

	ectx.Status = RunCompleted
	ectx.EndTime = r.now()
	logger.Info("Flow completed", "steps", executed, "duration", ectx.EndTime.Sub(ectx.StartTime))
	r.bus.Publish(Event{Kind: EventFlowComplete, FlowID: f.ID, SessionID: ectx.SessionID, Context: ectx})
	return ectx, nil
}

func (r *Runner) lookup(flowID string) (*Flow, error) {
	f, err := r.flows.Get(flowID)
	if err != nil {
		return nil, err
	}
	if f.Disabled {
		return nil, fmt.Errorf("%w: %s", ErrFlowDisabled, flowID)
	}
	return f, nil
}

func (r *Runner) fail(ectx *ExecutionContext, logger *slog.Logger, err error) error {
	ectx.Status = RunFailed
	ectx.Error = err.Error()
	ectx.EndTime = r.now()
	logger.Warn("Flow failed", "error", err)
	r.bus.Publish(Event{Kind: EventFlowError, FlowID: ectx.FlowID, SessionID: ectx.SessionID, Error: err.Error(), Context: ectx})
	return err
}

// NextStep returns the step to run after step produced result, and false
// when the run should end. A step without conditions advances to the next
// declared step. A step with conditions takes the first matching branch of
// onSuccess, onFailure and onNoResults, and ends when none matches.
func NextStep(step *Step, result *StepResult, f *Flow) (string, bool) {
	next, ok, _ := transition(step, result, f)
	return next, ok
}

// transition also reports whether a condition matched, so the runner can
// tell an explicit end from a step whose conditions all missed.
func transition(step *Step, result *StepResult, f *Flow) (next string, ok, matched bool) {
	if step.Conditions == nil {
		next, ok = sequentialNext(step, f)
		return next, ok, true
	}
	c := step.Conditions
	var target string
	switch {
	case result.Status == StepSuccess && c.OnSuccess != "":
		target = c.OnSuccess
	case result.Status == StepFailed && c.OnFailure != "":
		target = c.OnFailure
	case c.OnNoResults != "" && action.HasEmptyResults(result.Output):
		target = c.OnNoResults
	default:
		return "", false, false
	}
	if target == End {
		return "", false, true
	}
	return target, true, true
}

func sequentialNext(step *Step, f *Flow) (string, bool) {
	i, _ := f.findStep(step.ID)
	if i < 0 || i+1 >= len(f.Steps) {
		return "", false
	}
	return f.Steps[i+1].ID, true
}
