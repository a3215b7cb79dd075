// Package llm provides single-shot completion clients for the LLM vendors
// that can back a flow worker.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/flowrun/flowrun/internal/config"
)

const defaultMaxTokens int64 = 2048

var ErrEmptyResponse = errors.New("model returned no content")

// Request is a single completion request.
type Request struct {
	System      string
	Prompt      string
	Temperature *float64
	MaxTokens   int64
	// JSON asks the model to answer with a JSON object when the vendor supports it.
	JSON bool
}

type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
}

type Response struct {
	Content string
	Usage   TokenUsage
}

// Client completes prompts against one model.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
	Model() string
}

type clientOptions struct {
	apiKey    string
	baseURL   string
	model     string
	maxTokens int64
	project   string
	location  string
}

type ClientOption func(*clientOptions)

func WithAPIKey(key string) ClientOption {
	return func(o *clientOptions) { o.apiKey = key }
}

func WithBaseURL(url string) ClientOption {
	return func(o *clientOptions) { o.baseURL = url }
}

func WithModel(model string) ClientOption {
	return func(o *clientOptions) { o.model = model }
}

func WithMaxTokens(n int64) ClientOption {
	return func(o *clientOptions) { o.maxTokens = n }
}

// WithVertex sets the Google Cloud project and location used by the vertexai provider.
func WithVertex(project, location string) ClientOption {
	return func(o *clientOptions) {
		o.project = project
		o.location = location
	}
}

// NewClient builds a client for the named provider.
func NewClient(ctx context.Context, provider config.ProviderName, opts ...ClientOption) (Client, error) {
	options := clientOptions{maxTokens: defaultMaxTokens}
	for _, o := range opts {
		o(&options)
	}
	if options.model == "" {
		return nil, fmt.Errorf("model is required for provider %s", provider)
	}
	if options.maxTokens <= 0 {
		options.maxTokens = defaultMaxTokens
	}

	switch provider {
	case config.ProviderAnthropic:
		return newAnthropicClient(options), nil
	case config.ProviderOpenAI:
		return newOpenAIClient(options), nil
	case config.ProviderGemini:
		return newGeminiClient(ctx, options, false)
	case config.ProviderVertexAI:
		return newGeminiClient(ctx, options, true)
	}
	return nil, fmt.Errorf("provider not supported: %s", provider)
}
