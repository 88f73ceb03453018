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
	geminiAPIBase      = "https://generativelanguage.googleapis.com/v1beta/models"
	defaultGeminiModel = "gemini-1.5-flash"
)

// GeminiProvider generates text via the Google Generative Language REST API.
// JSONMode maps to the native application/json response MIME type.
type GeminiProvider struct {
	apiKey     string
	model      string
	httpClient *http.Client
	baseURL    string
}

// NewGeminiProvider creates a Gemini-backed provider. An empty model uses
// the default.
func NewGeminiProvider(apiKey, model string) *GeminiProvider {
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiProvider{
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{},
		baseURL:    geminiAPIBase,
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature      float32 `json:"temperature,omitempty"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// Generate sends the prompt to generateContent and returns the first
// candidate's concatenated text parts.
func (p *GeminiProvider) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	genCfg := geminiGenerationConfig{
		Temperature:     opts.Temperature,
		MaxOutputTokens: opts.MaxTokens,
	}
	if opts.JSONMode {
		genCfg.ResponseMimeType = "application/json"
	}

	body, err := json.Marshal(geminiRequest{
		Contents:         []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: genCfg,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal gemini request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", p.baseURL, p.model, p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build gemini request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

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
		// Gemini reports a bad API key as 400 with an API_KEY_INVALID
		// detail rather than 401
		if resp.StatusCode == http.StatusBadRequest && bytes.Contains(respBody, []byte("API_KEY_INVALID")) {
			return "", &AuthError{Provider: p.Name(),
				Err: fmt.Errorf("gemini API rejected key: %s", truncateBody(respBody))}
		}
		return "", classifyStatus(p.Name(), resp.StatusCode,
			fmt.Errorf("gemini API returned %d: %s", resp.StatusCode, truncateBody(respBody)))
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", &ProviderError{Provider: p.Name(), Retryable: true,
			Err: fmt.Errorf("failed to decode gemini response: %w", err)}
	}

	if len(parsed.Candidates) == 0 {
		return "", &ProviderError{Provider: p.Name(), Retryable: true, Err: fmt.Errorf("no candidates in response")}
	}

	var text string
	for _, part := range parsed.Candidates[0].Content.Parts {
		text += part.Text
	}
	if text == "" {
		return "", &ProviderError{Provider: p.Name(), Retryable: true, Err: fmt.Errorf("empty candidate content")}
	}

	return text, nil
}

func (p *GeminiProvider) Name() string {
	return "gemini-" + p.model
}
