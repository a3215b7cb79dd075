// Package flow runs declarative multi-step flows: each step dispatches an
// action to a named worker, and conditions on the step outcome pick the next
// step.
package flow

import (
	"errors"
	"maps"
	"time"

	"github.com/flowrun/flowrun/internal/action"
	"github.com/flowrun/flowrun/internal/format"
)

// Fatal run errors.
var (
	ErrFlowNotFound      = errors.New("flow not found")
	ErrFlowDisabled      = errors.New("flow is disabled")
	ErrStepNotFound      = errors.New("step not found")
	ErrStepLimitExceeded = errors.New("step limit exceeded")
	ErrRunCancelled      = errors.New("run cancelled")
)

// Flow definition errors.
var (
	ErrInvalidFlowID    = errors.New("invalid flow ID")
	ErrInvalidStepID    = errors.New("invalid step ID")
	ErrDuplicateStepID  = errors.New("duplicate step ID")
	ErrInvalidReference = errors.New("reference to non-existent step")
	ErrInvalidAction    = errors.New("invalid step action")
	ErrNoSteps          = errors.New("flow has no steps")
	ErrInvalidYAML      = errors.New("invalid flow YAML")
)

// End is the condition target that terminates a run.
const End = "end"

// Role is a logical worker slot a flow can map to a worker name.
type Role string

const (
	RoleSearch   Role = "search"
	RoleAnalysis Role = "analysis"
	RolePrimary  Role = "primary"
)

// Flow is an immutable flow definition.
type Flow struct {
	ID                string           `yaml:"id,omitempty" json:"id"`
	Name              string           `yaml:"name" json:"name"`
	Description       string           `yaml:"description,omitempty" json:"description,omitempty"`
	Disabled          bool             `yaml:"disabled,omitempty" json:"disabled,omitempty"`
	Steps             []Step           `yaml:"steps" json:"steps"`
	DefaultStartStep  string           `yaml:"defaultStartStep,omitempty" json:"defaultStartStep"`
	WorkerPreferences map[Role]string  `yaml:"workerPreferences,omitempty" json:"workerPreferences,omitempty"`
	WorkerOverrides   []WorkerOverride `yaml:"workerOverrides,omitempty" json:"workerOverrides,omitempty"`
	Output            format.Spec      `yaml:"output,omitempty" json:"output"`
	Location          string           `yaml:"-" json:"location,omitempty"`
}

// WorkerOverride routes steps with any of Actions to Worker.
type WorkerOverride struct {
	Actions []action.Action `yaml:"actions" json:"actions"`
	Worker  string          `yaml:"worker" json:"worker"`
}

// Step is one unit of work in a flow.
type Step struct {
	ID             string        `yaml:"id" json:"id"`
	Action         action.Action `yaml:"action" json:"action"`
	Prompt         string        `yaml:"prompt,omitempty" json:"prompt,omitempty"`
	Config         action.Config `yaml:"config,omitempty" json:"config,omitempty"`
	WorkerOverride string        `yaml:"workerOverride,omitempty" json:"workerOverride,omitempty"`
	Inputs         *Inputs       `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Conditions     *Conditions   `yaml:"conditions,omitempty" json:"conditions,omitempty"`
}

// Inputs names the earlier steps whose outputs feed a step.
type Inputs struct {
	FromStep    string   `yaml:"fromStep,omitempty" json:"fromStep,omitempty"`
	FromContext []string `yaml:"fromContext,omitempty" json:"fromContext,omitempty"`
}

// Conditions override sequential advance. Each target is a step ID or End.
type Conditions struct {
	OnSuccess   string `yaml:"onSuccess,omitempty" json:"onSuccess,omitempty"`
	OnFailure   string `yaml:"onFailure,omitempty" json:"onFailure,omitempty"`
	OnNoResults string `yaml:"onNoResults,omitempty" json:"onNoResults,omitempty"`
}

func (c *Conditions) targets() []string {
	var out []string
	for _, t := range []string{c.OnSuccess, c.OnFailure, c.OnNoResults} {
		if t != "" && t != End {
			out = append(out, t)
		}
	}
	return out
}

// StartStep returns the step a run begins with.
func (f *Flow) StartStep() string {
	if f.DefaultStartStep != "" {
		return f.DefaultStartStep
	}
	if len(f.Steps) > 0 {
		return f.Steps[0].ID
	}
	return ""
}

func (f *Flow) findStep(id string) (int, *Step) {
	for i := range f.Steps {
		if f.Steps[i].ID == id {
			return i, &f.Steps[i]
		}
	}
	return -1, nil
}

// RunStatus is the state of a run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// ExecutionContext is the record of one run. Only the runner mutates it, and
// it is immutable once EndTime is set.
type ExecutionContext struct {
	FlowID           string                 `json:"flowId"`
	SessionID        string                 `json:"sessionId"`
	OriginalQuery    string                 `json:"originalQuery"`
	CallerContext    map[string]any         `json:"callerContext,omitempty"`
	CurrentStepID    string                 `json:"currentStepId,omitempty"`
	CurrentStepIndex int                    `json:"currentStepIndex"`
	StepResults      map[string]*StepResult `json:"stepResults"`
	Trail            []string               `json:"trail"`
	Status           RunStatus              `json:"status"`
	Error            string                 `json:"error,omitempty"`
	StartTime        time.Time              `json:"startTime"`
	EndTime          time.Time              `json:"endTime,omitzero"`
}

// LastResult returns the result of the most recently executed step.
func (c *ExecutionContext) LastResult() (*StepResult, bool) {
	if len(c.Trail) == 0 {
		return nil, false
	}
	r, ok := c.StepResults[c.Trail[len(c.Trail)-1]]
	return r, ok
}

func (c *ExecutionContext) snapshot() *ExecutionContext {
	cp := *c
	cp.StepResults = maps.Clone(c.StepResults)
	cp.Trail = append([]string(nil), c.Trail...)
	return &cp
}

// StepStatus is the state of a single step execution.
type StepStatus string

const (
	StepRunning StepStatus = "running"
	StepSuccess StepStatus = "success"
	StepFailed  StepStatus = "failed"
)

// ErrorKind classifies a failed step.
type ErrorKind string

const (
	ErrorWorkerNotFound ErrorKind = "WorkerNotFound"
	ErrorStepTimeout    ErrorKind = "StepTimeout"
	ErrorUnknownAction  ErrorKind = "UnknownAction"
	ErrorCapability     ErrorKind = "CapabilityError"
)

// StepResult is the outcome of one step execution.
type StepResult struct {
	StepID     string          `json:"stepId"`
	Action     action.Action   `json:"action"`
	Worker     string          `json:"worker,omitempty"`
	Status     StepStatus      `json:"status"`
	StartTime  time.Time       `json:"startTime"`
	EndTime    time.Time       `json:"endTime,omitzero"`
	Output     any             `json:"output,omitempty"`
	Error      string          `json:"error,omitempty"`
	ErrorKind  ErrorKind       `json:"errorKind,omitempty"`
	Sources    []action.Source `json:"sources,omitempty"`
	Confidence *float64        `json:"confidence,omitempty"`
}

func newStepResult(step *Step, now time.Time) *StepResult {
	return &StepResult{
		StepID:    step.ID,
		Action:    step.Action,
		Status:    StepRunning,
		StartTime: now,
	}
}

func (r *StepResult) succeed(output any, now time.Time) {
	if r.Status != StepRunning {
		return
	}
	r.Status = StepSuccess
	r.Output = output
	r.Sources, r.Confidence = action.Lift(output)
	r.end(now)
}

func (r *StepResult) fail(kind ErrorKind, err error, now time.Time) {
	if r.Status != StepRunning {
		return
	}
	r.Status = StepFailed
	r.ErrorKind = kind
	r.Error = err.Error()
	r.end(now)
}

func (r *StepResult) end(now time.Time) {
	if now.Before(r.StartTime) {
		now = r.StartTime
	}
	r.EndTime = now
}
