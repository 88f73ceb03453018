package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"inboxpilot/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider_Selection(t *testing.T) {
	tests := []struct {
		name         string
		cfg          *config.Config
		expectedName string
		expectError  bool
	}{
		{
			name:         "openai with default model",
			cfg:          &config.Config{Provider: "openai", OpenAIKey: "sk-test"},
			expectedName: "openai-gpt-4o-mini",
		},
		{
			name:         "openai-compatible alias",
			cfg:          &config.Config{Provider: "openai-compatible", OpenAIKey: "sk-test", Model: "gpt-4o"},
			expectedName: "openai-gpt-4o",
		},
		{
			name:         "empty provider defaults to openai",
			cfg:          &config.Config{OpenAIKey: "sk-test"},
			expectedName: "openai-gpt-4o-mini",
		},
		{
			name:         "anthropic",
			cfg:          &config.Config{Provider: "anthropic", AnthropicKey: "key"},
			expectedName: "anthropic-claude-3-5-haiku-latest",
		},
		{
			name:         "gemini with custom model",
			cfg:          &config.Config{Provider: "gemini", GeminiKey: "key", Model: "gemini-1.5-pro"},
			expectedName: "gemini-gemini-1.5-pro",
		},
		{
			name:        "openai without key",
			cfg:         &config.Config{Provider: "openai"},
			expectError: true,
		},
		{
			name:        "anthropic without key",
			cfg:         &config.Config{Provider: "anthropic"},
			expectError: true,
		},
		{
			name:        "unknown provider",
			cfg:         &config.Config{Provider: "watson", OpenAIKey: "sk-test"},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewProvider(tt.cfg, zerolog.Nop())
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedName, provider.Name())
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "retryable provider error",
			err:      &ProviderError{Provider: "test", StatusCode: 503, Retryable: true, Err: errors.New("down")},
			expected: true,
		},
		{
			name:     "non-retryable provider error",
			err:      &ProviderError{Provider: "test", StatusCode: 400, Retryable: false, Err: errors.New("bad")},
			expected: false,
		},
		{
			name:     "auth error",
			err:      &AuthError{Provider: "test", Err: errors.New("bad key")},
			expected: false,
		},
		{
			name:     "wrapped retryable error",
			err:      fmt.Errorf("call failed: %w", &ProviderError{Provider: "test", Retryable: true, Err: errors.New("timeout")}),
			expected: true,
		},
		{
			name:     "deadline exceeded",
			err:      context.DeadlineExceeded,
			expected: true,
		},
		{
			name:     "plain error",
			err:      errors.New("something"),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRetryable(tt.err))
		})
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
		auth      bool
	}{
		{status: 401, auth: true},
		{status: 403, auth: true},
		{status: 429, retryable: true},
		{status: 500, retryable: true},
		{status: 503, retryable: true},
		{status: 400, retryable: false},
		{status: 404, retryable: false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			err := classifyStatus("test", tt.status, errors.New("boom"))
			if tt.auth {
				var authErr *AuthError
				assert.True(t, errors.As(err, &authErr))
				assert.False(t, IsRetryable(err))
				return
			}
			var provErr *ProviderError
			require.True(t, errors.As(err, &provErr))
			assert.Equal(t, tt.retryable, provErr.Retryable)
		})
	}
}

func TestAnthropicProvider_Generate(t *testing.T) {
	var gotRequest anthropicRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicAPIVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotRequest))

		_ = json.NewEncoder(w).Encode(anthropicResponse{
			Content: []anthropicContent{{Type: "text", Text: "hello "}, {Type: "text", Text: "world"}},
		})
	}))
	defer server.Close()

	p := NewAnthropicProvider("test-key", "")
	p.baseURL = server.URL

	text, err := p.Generate(context.Background(), "say hello", Options{Temperature: 0.5, MaxTokens: 100, JSONMode: true})
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
	assert.Equal(t, defaultAnthropicModel, gotRequest.Model)
	assert.Equal(t, 100, gotRequest.MaxTokens)
	// JSON mode is enforced through the prompt
	require.Len(t, gotRequest.Messages, 1)
	assert.Contains(t, gotRequest.Messages[0].Content, "single valid JSON object")
}

func TestAnthropicProvider_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		auth      bool
		retryable bool
	}{
		{name: "rate limited", status: 429, retryable: true},
		{name: "overloaded", status: 529, retryable: true},
		{name: "bad key", status: 401, auth: true},
		{name: "invalid request", status: 400, retryable: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"type":"x","message":"y"}}`))
			}))
			defer server.Close()

			p := NewAnthropicProvider("test-key", "claude-3-5-haiku-latest")
			p.baseURL = server.URL

			_, err := p.Generate(context.Background(), "hi", Options{})
			require.Error(t, err)
			if tt.auth {
				var authErr *AuthError
				assert.True(t, errors.As(err, &authErr))
				return
			}
			assert.Equal(t, tt.retryable, IsRetryable(err))
		})
	}
}

func TestGeminiProvider_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "gemini-1.5-flash:generateContent")
		assert.Equal(t, "secret", r.URL.Query().Get("key"))

		var req geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "application/json", req.GenerationConfig.ResponseMimeType)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{{"text": `{"summary_text":"ok"}`}}}},
			},
		})
	}))
	defer server.Close()

	p := NewGeminiProvider("secret", "")
	p.baseURL = server.URL

	text, err := p.Generate(context.Background(), "summarize", Options{JSONMode: true, MaxTokens: 200})
	require.NoError(t, err)
	assert.Equal(t, `{"summary_text":"ok"}`, text)
}

func TestGeminiProvider_InvalidKeyIsAuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"status":"INVALID_ARGUMENT","details":[{"reason":"API_KEY_INVALID"}]}}`))
	}))
	defer server.Close()

	p := NewGeminiProvider("bad", "")
	p.baseURL = server.URL

	_, err := p.Generate(context.Background(), "hi", Options{})
	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
}

// flakyProvider fails a fixed number of times before succeeding.
type flakyProvider struct {
	failures int
	calls    int
	err      error
}

func (f *flakyProvider) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", f.err
	}
	return "ok", nil
}

func (f *flakyProvider) Name() string { return "flaky" }

func TestWithBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	inner := &flakyProvider{
		failures: 100,
		err:      &ProviderError{Provider: "flaky", StatusCode: 503, Retryable: true, Err: errors.New("down")},
	}
	p := WithBreaker(inner, zerolog.Nop())

	// Trip the breaker
	for i := 0; i < 6; i++ {
		_, err := p.Generate(context.Background(), "x", Options{})
		assert.Error(t, err)
	}

	callsBefore := inner.calls
	_, err := p.Generate(context.Background(), "x", Options{})
	require.Error(t, err)
	// Open breaker fails fast without reaching the provider, and is
	// reported as non-retryable
	assert.Equal(t, callsBefore, inner.calls)
	assert.False(t, IsRetryable(err))
}

func TestWithBreaker_PermanentErrorsDoNotTrip(t *testing.T) {
	inner := &flakyProvider{
		failures: 100,
		err:      &AuthError{Provider: "flaky", Err: errors.New("bad key")},
	}
	p := WithBreaker(inner, zerolog.Nop())

	for i := 0; i < 10; i++ {
		_, err := p.Generate(context.Background(), "x", Options{})
		assert.Error(t, err)
	}
	// Every call reached the provider; auth failures never open the circuit
	assert.Equal(t, 10, inner.calls)
}
