// Package action defines the step actions a flow can perform and the
// capabilities that turn a resolved step input into a worker request.
package action

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Action is the kind of work a flow step performs.
type Action string

const (
	Search     Action = "search"
	Analyze    Action = "analyze"
	Synthesize Action = "synthesize"
	Compare    Action = "compare"
	Recommend  Action = "recommend"
	Custom     Action = "custom"
)

// All lists every supported action in declaration order.
var All = []Action{Search, Analyze, Synthesize, Compare, Recommend, Custom}

func (a Action) String() string {
	return string(a)
}

// Valid reports whether a is one of the supported actions.
func (a Action) Valid() bool {
	for _, known := range All {
		if a == known {
			return true
		}
	}
	return false
}

// Parse converts s into an Action.
func Parse(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	if !a.Valid() {
		return "", fmt.Errorf("unknown action %q", s)
	}
	return a, nil
}

// Well-known input keys populated by the input resolver.
const (
	InputQuery            = "query"
	InputContext          = "context"
	InputPreviousStepData = "previousStepData"
	InputStepContext      = "stepContext"
)

// Input is the resolved input of a step.
type Input map[string]any

// Query returns the original query carried by the input.
func (in Input) Query() string {
	s, _ := in[InputQuery].(string)
	return s
}

// Previous returns the output of the step referenced by inputs.fromStep.
func (in Input) Previous() (any, bool) {
	v, ok := in[InputPreviousStepData]
	return v, ok
}

// StepContext returns outputs of the steps referenced by inputs.fromContext.
func (in Input) StepContext() map[string]any {
	m, _ := in[InputStepContext].(map[string]any)
	return m
}

// Config holds free-form, action-specific step parameters.
type Config map[string]any

func (c Config) String(key, def string) string {
	switch v := c[key].(type) {
	case string:
		if v != "" {
			return v
		}
	case fmt.Stringer:
		return v.String()
	}
	return def
}

func (c Config) Int(key string, def int) int {
	switch v := c[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func (c Config) Float(key string, def float64) float64 {
	switch v := c[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func (c Config) Strings(key string) []string {
	switch v := c[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprintf("%v", item))
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return nil
}

// Request is what a capability hands to a worker.
type Request struct {
	Action Action
	Prompt string
	Input  Input
	Params Params
}

// Invoker executes requests on behalf of a capability. Workers implement it.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (any, error)
}
