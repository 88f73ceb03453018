package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const (
	anthropicAPIURL        = "https://api.anthropic.com/v1/messages"
	anthropicAPIVersion    = "2023-06-01"
	defaultAnthropicModel  = "claude-3-5-haiku-latest"
	anthropicJSONDirective = "\n\nRespond with a single valid JSON object and nothing else."
)

// AnthropicProvider generates text via the Anthropic Messages API. The API
// has no structured-output mode, so JSONMode is enforced through the prompt.
type AnthropicProvider struct {
	apiKey     string
	model      string
	httpClient *http.Client
	baseURL    string
}

// NewAnthropicProvider creates an Anthropic-backed provider. An empty model
// uses the default.
func NewAnthropicProvider(apiKey, model string) *AnthropicProvider {
	if model == "" {
		model = defaultAnthropicModel
	}
	return &AnthropicProvider{
		apiKey: apiKey,
		model:  model,
		// No client-level timeout; callers bound each request with ctx
		httpClient: &http.Client{},
		baseURL:    anthropicAPIURL,
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float32            `json:"temperature,omitempty"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type anthropicResponse struct {
	Content []anthropicContent `json:"content"`
	Error   *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate sends the prompt to the Messages API and concatenates the text
// content blocks of the response.
func (p *AnthropicProvider) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	if opts.JSONMode {
		prompt += anthropicJSONDirective
	}

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	body, err := json.Marshal(anthropicRequest{
		Model:       p.model,
		Messages:    []anthropicMessage{{Role: "user", Content: prompt}},
		MaxTokens:   maxTokens,
		Temperature: opts.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal anthropic request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build anthropic request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", &ProviderError{Provider: p.Name(), Retryable: true, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ProviderError{Provider: p.Name(), Retryable: true, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus(p.Name(), resp.StatusCode,
			fmt.Errorf("anthropic API returned %d: %s", resp.StatusCode, truncateBody(respBody)))
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", &ProviderError{Provider: p.Name(), Retryable: true,
			Err: fmt.Errorf("failed to decode anthropic response: %w", err)}
	}

	var text string
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return "", &ProviderError{Provider: p.Name(), Retryable: true, Err: fmt.Errorf("no text content in response")}
	}

	return text, nil
}

func (p *AnthropicProvider) Name() string {
	return "anthropic-" + p.model
}

func truncateBody(body []byte) string {
	const maxLen = 300
	if len(body) > maxLen {
		return string(body[:maxLen]) + "..."
	}
	return string(body)
}
