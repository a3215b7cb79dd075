package llm

import (
	"context"
	"fmt"

	"cloud.google.com/go/auth"
	"google.golang.org/genai"

	"github.com/flowrun/flowrun/internal/logging"
)

type geminiClient struct {
	options clientOptions
	client  *genai.Client
}

// tokenProvider serves a static access token to the Vertex AI backend.
type tokenProvider struct {
	value string
}

func (p *tokenProvider) Token(context.Context) (*auth.Token, error) {
	return &auth.Token{Value: p.value, Type: "Bearer"}, nil
}

func newGeminiClient(ctx context.Context, opts clientOptions, vertex bool) (*geminiClient, error) {
	cfg := &genai.ClientConfig{Backend: genai.BackendGeminiAPI, APIKey: opts.apiKey}
	if vertex {
		cfg = &genai.ClientConfig{
			Project:  opts.project,
			Location: opts.location,
			Backend:  genai.BackendVertexAI,
		}
		if opts.apiKey != "" {
			cfg.Credentials = &auth.Credentials{
				TokenProvider: &tokenProvider{value: opts.apiKey},
			}
		}
	}
	if opts.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.baseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	logging.Info("Using Gemini client", "model", opts.model, "vertex", vertex)
	return &geminiClient{options: opts, client: client}, nil
}

func (c *geminiClient) Model() string {
	return c.options.model
}

func (c *geminiClient) Complete(ctx context.Context, req Request) (*Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.options.maxTokens
	}

	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens),
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Temperature != nil {
		config.Temperature = genai.Ptr(float32(*req.Temperature))
	}
	if req.JSON {
		config.ResponseMIMEType = "application/json"
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.options.model, genai.Text(req.Prompt), config)
	if err != nil {
		return nil, fmt.Errorf("gemini API error: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return nil, ErrEmptyResponse
	}

	out := &Response{Content: text}
	if resp.UsageMetadata != nil {
		out.Usage = TokenUsage{
			InputTokens:  int64(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int64(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	return out, nil
}
