package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/flowrun/flowrun/internal/logging"
)

type anthropicClient struct {
	options clientOptions
	client  anthropic.Client
}

func newAnthropicClient(opts clientOptions) *anthropicClient {
	reqOpts := []option.RequestOption{}
	if opts.apiKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(opts.apiKey))
	}
	if opts.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.baseURL))
	}
	return &anthropicClient{
		options: opts,
		client:  anthropic.NewClient(reqOpts...),
	}
}

func (c *anthropicClient) Model() string {
	return c.options.model
}

func (c *anthropicClient) Complete(ctx context.Context, req Request) (*Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.options.maxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.options.model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	system := req.System
	if req.JSON {
		system = strings.TrimSpace(system + "\n\nRespond with a single JSON object and nothing else.")
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic API error: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return nil, ErrEmptyResponse
	}

	logging.Debug("anthropic completion", "model", c.options.model, "input_tokens", msg.Usage.InputTokens, "output_tokens", msg.Usage.OutputTokens)
	return &Response{
		Content: sb.String(),
		Usage: TokenUsage{
			InputTokens:  msg.Usage.InputTokens,
			OutputTokens: msg.Usage.OutputTokens,
		},
	}, nil
}
