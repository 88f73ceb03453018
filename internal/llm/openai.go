package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIProvider generates text via the OpenAI chat completions API.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// NewOpenAIProvider creates an OpenAI-backed provider. An empty model uses
// the default.
func NewOpenAIProvider(apiKey, model string) *OpenAIProvider {
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIProvider{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

// Generate sends the prompt as a single user message and returns the
// assistant text. JSONMode maps to the native json_object response format.
func (p *OpenAIProvider) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	if opts.JSONMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", p.classify(err)
	}

	if len(resp.Choices) == 0 {
		return "", &ProviderError{Provider: p.Name(), Retryable: true, Err: fmt.Errorf("empty choices in response")}
	}

	return resp.Choices[0].Message.Content, nil
}

func (p *OpenAIProvider) Name() string {
	return "openai-" + p.model
}

func (p *OpenAIProvider) classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(p.Name(), apiErr.HTTPStatusCode, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &ProviderError{Provider: p.Name(), Retryable: true, Err: err}
	}
	// Transport-level failures (connection refused, DNS) are transient
	return &ProviderError{Provider: p.Name(), Retryable: true, Err: err}
}
