package action

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

var ErrNoWorker = errors.New("no worker bound to capability")

// Capability turns a resolved step input into a worker request and
// normalizes the worker's answer.
type Capability interface {
	Invoke(ctx context.Context, w Invoker, prompt string, in Input, cfg Config) (any, error)
}

// CapabilityFunc adapts a function to Capability.
type CapabilityFunc func(ctx context.Context, w Invoker, prompt string, in Input, cfg Config) (any, error)

func (f CapabilityFunc) Invoke(ctx context.Context, w Invoker, prompt string, in Input, cfg Config) (any, error) {
	return f(ctx, w, prompt, in, cfg)
}

// Defaults applied when a step leaves its config empty.
const (
	DefaultSearchDepth        = DepthStandard
	DefaultSearchMaxResults   = 10
	DefaultAnalyzeTemperature = 0.3
	DefaultSynthesizeStyle    = "summary"
	DefaultCreativeTemp       = 0.7
	DefaultRecommendCount     = 3
)

func invoke(ctx context.Context, w Invoker, req Request) (any, error) {
	if w == nil {
		return nil, ErrNoWorker
	}
	return w.Invoke(ctx, req)
}

// SearchCapability gathers external results for the query.
func SearchCapability() Capability {
	return CapabilityFunc(func(ctx context.Context, w Invoker, prompt string, in Input, cfg Config) (any, error) {
		params := SearchParams{
			Query:      cfg.String("query", in.Query()),
			Depth:      cfg.String("depth", DefaultSearchDepth),
			MaxResults: cfg.Int("maxResults", DefaultSearchMaxResults),
			TimeFilter: cfg.String("timeFilter", ""),
		}
		if params.MaxResults <= 0 {
			params.MaxResults = DefaultSearchMaxResults
		}
		Think(ctx, "search", fmt.Sprintf("Searching for %q (depth %s, up to %d results)", params.Query, params.Depth, params.MaxResults))

		out, err := invoke(ctx, w, Request{Action: Search, Prompt: prompt, Input: in, Params: params})
		if err != nil {
			return nil, err
		}
		return normalizeSearch(out), nil
	})
}

// AnalyzeCapability examines prior step data.
func AnalyzeCapability() Capability {
	return CapabilityFunc(func(ctx context.Context, w Invoker, prompt string, in Input, cfg Config) (any, error) {
		params := AnalyzeParams{
			Focus:       cfg.String("focus", ""),
			Temperature: cfg.Float("temperature", DefaultAnalyzeTemperature),
		}
		Think(ctx, "analysis", "Analyzing gathered data")
		return invoke(ctx, w, Request{Action: Analyze, Prompt: prompt, Input: in, Params: params})
	})
}

// SynthesizeCapability combines several prior outputs into one.
func SynthesizeCapability() Capability {
	return CapabilityFunc(func(ctx context.Context, w Invoker, prompt string, in Input, cfg Config) (any, error) {
		params := SynthesizeParams{
			Style:       cfg.String("style", DefaultSynthesizeStyle),
			Temperature: cfg.Float("temperature", DefaultCreativeTemp),
		}
		Think(ctx, "synthesis", fmt.Sprintf("Synthesizing %d inputs", len(in.StepContext())+boolToInt(hasPrevious(in))))
		return invoke(ctx, w, Request{Action: Synthesize, Prompt: prompt, Input: in, Params: params})
	})
}

// CompareCapability weighs items against criteria.
func CompareCapability() Capability {
	return CapabilityFunc(func(ctx context.Context, w Invoker, prompt string, in Input, cfg Config) (any, error) {
		params := CompareParams{
			Criteria:    cfg.Strings("criteria"),
			Items:       cfg.Strings("items"),
			Temperature: cfg.Float("temperature", DefaultAnalyzeTemperature),
		}
		if len(params.Items) == 0 {
			// Compare whatever earlier steps produced, in a stable order.
			for id := range in.StepContext() {
				params.Items = append(params.Items, id)
			}
			sort.Strings(params.Items)
		}
		Think(ctx, "comparison", fmt.Sprintf("Comparing %d items", len(params.Items)))
		return invoke(ctx, w, Request{Action: Compare, Prompt: prompt, Input: in, Params: params})
	})
}

// RecommendCapability proposes next actions.
func RecommendCapability() Capability {
	return CapabilityFunc(func(ctx context.Context, w Invoker, prompt string, in Input, cfg Config) (any, error) {
		params := RecommendParams{
			Count:       cfg.Int("count", DefaultRecommendCount),
			Temperature: cfg.Float("temperature", DefaultCreativeTemp),
		}
		if params.Count <= 0 {
			params.Count = DefaultRecommendCount
		}
		Think(ctx, "recommendation", fmt.Sprintf("Preparing %d recommendations", params.Count))
		return invoke(ctx, w, Request{Action: Recommend, Prompt: prompt, Input: in, Params: params})
	})
}

// CustomCapability forwards the prompt and raw config untouched.
func CustomCapability() Capability {
	return CapabilityFunc(func(ctx context.Context, w Invoker, prompt string, in Input, cfg Config) (any, error) {
		if cfg == nil {
			cfg = Config{}
		}
		return invoke(ctx, w, Request{Action: Custom, Prompt: prompt, Input: in, Params: CustomParams{Config: cfg}})
	})
}

// normalizeSearch wraps a bare result list, or a nil answer, into a results
// collection. Any other output, maps included, is returned untouched.
func normalizeSearch(out any) any {
	switch v := out.(type) {
	case nil:
		return map[string]any{OutputResults: []any{}}
	case []any:
		return map[string]any{OutputResults: v}
	}
	return out
}

func hasPrevious(in Input) bool {
	_, ok := in.Previous()
	return ok
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
