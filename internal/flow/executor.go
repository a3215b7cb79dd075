package flow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flowrun/flowrun/internal/action"
	"github.com/flowrun/flowrun/internal/logging"
	"github.com/flowrun/flowrun/internal/worker"
)

const configTimeout = "timeout"

// WorkerSource resolves workers by name.
type WorkerSource interface {
	Get(name string) (worker.Worker, error)
}

// Executor runs single steps. It never returns an error: every failure is
// recorded on the StepResult.
type Executor struct {
	actions       *action.Registry
	workers       WorkerSource
	bus           *Bus
	defaultWorker string
	stepTimeout   time.Duration
	now           func() time.Time
}

func NewExecutor(actions *action.Registry, workers WorkerSource, bus *Bus, defaultWorker string, stepTimeout time.Duration) *Executor {
	return &Executor{
		actions:       actions,
		workers:       workers,
		bus:           bus,
		defaultWorker: defaultWorker,
		stepTimeout:   stepTimeout,
		now:           time.Now,
	}
}

func (e *Executor) Execute(ctx context.Context, step *Step, f *Flow, ectx *ExecutionContext) *StepResult {
	result := newStepResult(step, e.now())
	result.Worker = Select(step, f, e.defaultWorker)

	base := Event{FlowID: f.ID, SessionID: ectx.SessionID, StepID: step.ID, WorkerName: result.Worker}
	e.emit(base, EventStepStart, nil)

	e.run(ctx, step, ectx, result)

	if result.Status == StepFailed {
		logging.FromContext(ctx).Debug("Step failed", "step", step.ID, "worker", result.Worker, "kind", result.ErrorKind, "error", result.Error)
		e.emit(base, EventStepError, result)
	}
	e.emit(base, EventStepComplete, result)
	return result
}

func (e *Executor) run(ctx context.Context, step *Step, ectx *ExecutionContext, result *StepResult) {
	w, err := e.workers.Get(result.Worker)
	if err != nil {
		result.fail(ErrorWorkerNotFound, err, e.now())
		return
	}
	capability, ok := e.actions.Get(step.Action)
	if !ok {
		result.fail(ErrorUnknownAction, fmt.Errorf("unknown action %q", step.Action), e.now())
		return
	}

	input := Resolve(step, ectx)
	prompt := Interpolate(step.Prompt, input)

	timeout := e.stepTimeout
	if secs := step.Config.Int(configTimeout, 0); secs > 0 {
		timeout = time.Duration(secs) * time.Second
	}
	stepCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	stepCtx = action.WithThinker(stepCtx, func(th action.Thought) {
		e.bus.Publish(Event{
			Kind:       EventThinking,
			FlowID:     ectx.FlowID,
			SessionID:  ectx.SessionID,
			StepID:     step.ID,
			WorkerName: result.Worker,
			Thought:    &Thought{Kind: th.Kind, Content: th.Content, Confidence: th.Confidence},
		})
	})

	output, err := invoke(stepCtx, capability, w, prompt, input, step.Config)
	switch {
	case err == nil:
		result.succeed(output, e.now())
	case errors.Is(stepCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		result.fail(ErrorStepTimeout, fmt.Errorf("step %s timed out after %s", step.ID, timeout), e.now())
	default:
		result.fail(ErrorCapability, err, e.now())
	}
}

func invoke(ctx context.Context, c action.Capability, w worker.Worker, prompt string, in action.Input, cfg action.Config) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker %s panicked: %v", w.Name(), r)
		}
	}()
	return c.Invoke(ctx, w, prompt, in, cfg)
}

func (e *Executor) emit(base Event, kind EventKind, result *StepResult) {
	ev := base
	ev.Kind = kind
	ev.Result = result
	if result != nil {
		ev.Error = result.Error
	}
	e.bus.Publish(ev)
}
