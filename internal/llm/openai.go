package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/flowrun/flowrun/internal/logging"
)

type openaiClient struct {
	options clientOptions
	client  openai.Client
}

func newOpenAIClient(opts clientOptions) *openaiClient {
	reqOpts := []option.RequestOption{}
	if opts.apiKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(opts.apiKey))
	}
	if opts.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.baseURL))
	}
	return &openaiClient{
		options: opts,
		client:  openai.NewClient(reqOpts...),
	}
}

func (c *openaiClient) Model() string {
	return c.options.model
}

func (c *openaiClient) Complete(ctx context.Context, req Request) (*Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.options.maxTokens
	}

	messages := []openai.ChatCompletionMessageParamUnion{}
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(c.options.model),
		Messages:            messages,
		MaxCompletionTokens: openai.Int(maxTokens),
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.JSON {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		}
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai API error: %w", err)
	}
	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return nil, ErrEmptyResponse
	}

	logging.Debug("openai completion", "model", c.options.model, "input_tokens", completion.Usage.PromptTokens, "output_tokens", completion.Usage.CompletionTokens)
	return &Response{
		Content: completion.Choices[0].Message.Content,
		Usage: TokenUsage{
			InputTokens:  completion.Usage.PromptTokens,
			OutputTokens: completion.Usage.CompletionTokens,
		},
	}, nil
}
