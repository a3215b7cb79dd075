package worker

import (
	"context"
	"fmt"

	"github.com/flowrun/flowrun/internal/config"
	"github.com/flowrun/flowrun/internal/llm"
)

// NewFromConfig registers a factory for every configured worker. Clients
// are only created when a flow first selects the worker.
func NewFromConfig(ctx context.Context, cfg *config.Config) *Registry {
	r := NewRegistry()
	for name, wc := range cfg.Workers {
		r.RegisterFactory(name, factoryFor(ctx, cfg, name, wc))
		if wc.Disabled {
			r.Disable(name)
		}
	}
	return r
}

func factoryFor(ctx context.Context, cfg *config.Config, name string, wc config.Worker) Factory {
	switch wc.Kind {
	case config.WorkerSearch:
		return func() (Worker, error) {
			return NewSearch(name, wc.Endpoint, wc.FetchPages, nil), nil
		}
	case config.WorkerStatic:
		return func() (Worker, error) {
			return NewStatic(name, wc.Output), nil
		}
	}

	return func() (Worker, error) {
		provider := cfg.Providers[wc.Provider]
		if provider.Disabled {
			return nil, fmt.Errorf("provider %s is disabled", wc.Provider)
		}
		client, err := llm.NewClient(ctx, wc.Provider,
			llm.WithModel(wc.Model),
			llm.WithAPIKey(provider.APIKey),
			llm.WithBaseURL(provider.BaseURL),
			llm.WithMaxTokens(wc.MaxTokens),
			llm.WithVertex(provider.Project, provider.Location),
		)
		if err != nil {
			return nil, err
		}
		opts := []LLMOption{WithSystemPrompt(wc.SystemPrompt), WithMaxTokens(wc.MaxTokens)}
		if wc.Temperature != nil {
			opts = append(opts, WithTemperature(*wc.Temperature))
		}
		return NewLLM(name, client, opts...), nil
	}
}
