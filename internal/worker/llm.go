package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/flowrun/flowrun/internal/action"
	"github.com/flowrun/flowrun/internal/llm"
	"github.com/flowrun/flowrun/internal/logging"
)

const outputContract = `Answer with a single JSON object using these keys:
- "content": your answer as markdown text
- "sources": optional array of {"title", "url"} objects you relied on
- "confidence": optional number between 0 and 1`

var actionInstructions = map[action.Action]string{
	action.Search:     `Collect relevant findings for the query. Also return them as "results": an array of {"title", "url", "snippet"} objects.`,
	action.Analyze:    "Analyze the provided data. Identify key facts, patterns, risks and gaps.",
	action.Synthesize: "Synthesize the provided inputs into one coherent answer.",
	action.Compare:    "Compare the provided items against the criteria and state which is preferable and why.",
	action.Recommend:  "Give concrete, prioritized recommendations.",
	action.Custom:     "Follow the instructions in the prompt.",
}

// LLM is a worker backed by a completion client.
type LLM struct {
	name         string
	client       llm.Client
	systemPrompt string
	temperature  *float64
	maxTokens    int64
}

type LLMOption func(*LLM)

func WithSystemPrompt(s string) LLMOption {
	return func(w *LLM) { w.systemPrompt = s }
}

// WithTemperature sets a temperature that overrides the per-action default.
func WithTemperature(t float64) LLMOption {
	return func(w *LLM) { w.temperature = &t }
}

func WithMaxTokens(n int64) LLMOption {
	return func(w *LLM) { w.maxTokens = n }
}

func NewLLM(name string, client llm.Client, opts ...LLMOption) *LLM {
	w := &LLM{name: name, client: client}
	for _, o := range opts {
		o(w)
	}
	return w
}

func (w *LLM) Name() string { return w.name }

func (w *LLM) Invoke(ctx context.Context, req action.Request) (any, error) {
	completion := llm.Request{
		System:    w.system(req),
		Prompt:    buildPrompt(req),
		MaxTokens: w.maxTokens,
		JSON:      true,
	}
	if w.temperature != nil {
		completion.Temperature = w.temperature
	} else if t, ok := action.Temperature(req.Params); ok {
		completion.Temperature = &t
	}

	action.Think(ctx, "model", fmt.Sprintf("Asking %s to %s", w.client.Model(), req.Action))
	resp, err := w.client.Complete(ctx, completion)
	if err != nil {
		return nil, err
	}
	logging.Debug("Worker completion", "worker", w.name, "action", req.Action, "input_tokens", resp.Usage.InputTokens, "output_tokens", resp.Usage.OutputTokens)

	if obj, ok := llm.ParseObject(resp.Content); ok {
		return obj, nil
	}
	return map[string]any{action.OutputContent: resp.Content}, nil
}

func (w *LLM) system(req action.Request) string {
	var sb strings.Builder
	if w.systemPrompt != "" {
		sb.WriteString(w.systemPrompt)
		sb.WriteString("\n\n")
	}
	fmt.Fprintf(&sb, "You are the %q worker executing the %s step of a multi-step flow.\n", w.name, req.Action)
	sb.WriteString(actionInstructions[req.Action])
	sb.WriteString("\n\n")
	sb.WriteString(outputContract)
	return sb.String()
}

func buildPrompt(req action.Request) string {
	var sb strings.Builder
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		prompt = req.Input.Query()
	}
	sb.WriteString(prompt)

	if q := req.Input.Query(); q != "" && q != prompt {
		fmt.Fprintf(&sb, "\n\nOriginal query: %s", q)
	}
	writeParams(&sb, req.Params)

	if prev, ok := req.Input.Previous(); ok {
		sb.WriteString("\n\nPrevious step output:\n")
		sb.WriteString(toJSON(prev))
	}
	if stepCtx := req.Input.StepContext(); len(stepCtx) > 0 {
		sb.WriteString("\n\nOutputs of earlier steps:\n")
		sb.WriteString(toJSON(stepCtx))
	}
	if callerCtx, ok := req.Input[action.InputContext].(map[string]any); ok && len(callerCtx) > 0 {
		sb.WriteString("\n\nCaller context:\n")
		sb.WriteString(toJSON(callerCtx))
	}
	return sb.String()
}

func writeParams(sb *strings.Builder, p action.Params) {
	switch v := p.(type) {
	case action.SearchParams:
		fmt.Fprintf(sb, "\n\nReturn at most %d results (depth: %s).", v.MaxResults, v.Depth)
		if v.TimeFilter != "" {
			fmt.Fprintf(sb, " Only consider material from the last %s.", v.TimeFilter)
		}
	case action.AnalyzeParams:
		if v.Focus != "" {
			fmt.Fprintf(sb, "\n\nFocus on: %s.", v.Focus)
		}
	case action.SynthesizeParams:
		fmt.Fprintf(sb, "\n\nOutput style: %s.", v.Style)
	case action.CompareParams:
		if len(v.Items) > 0 {
			fmt.Fprintf(sb, "\n\nItems: %s.", strings.Join(v.Items, ", "))
		}
		if len(v.Criteria) > 0 {
			fmt.Fprintf(sb, "\n\nCriteria: %s.", strings.Join(v.Criteria, ", "))
		}
	case action.RecommendParams:
		fmt.Fprintf(sb, "\n\nGive %d recommendations.", v.Count)
	}
}

func toJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
