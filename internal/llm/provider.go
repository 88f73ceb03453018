// Package llm provides a uniform interface over interchangeable LLM
// backends (OpenAI, Anthropic, Gemini) with normalized error types.
package llm

import (
	"context"
	"fmt"
	"strings"

	"inboxpilot/internal/config"

	"github.com/rs/zerolog"
)

// Options controls a single generation call.
type Options struct {
	Temperature float32
	MaxTokens   int
	JSONMode    bool // Request structured JSON output where the backend supports it
}

// Provider is the uniform interface over LLM backends. Generate returns the
// raw model text; callers parse it.
type Provider interface {
	Generate(ctx context.Context, prompt string, opts Options) (string, error)
	Name() string
}

// NewProvider selects the concrete backend from configuration and wraps it
// in a circuit breaker.
func NewProvider(cfg *config.Config, logger zerolog.Logger) (Provider, error) {
	var inner Provider

	switch strings.ToLower(cfg.Provider) {
	case "openai", "openai-compatible", "":
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY not configured")
		}
		inner = NewOpenAIProvider(cfg.OpenAIKey, cfg.Model)
	case "anthropic", "anthropic-compatible":
		if cfg.AnthropicKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not configured")
		}
		inner = NewAnthropicProvider(cfg.AnthropicKey, cfg.Model)
	case "gemini", "gemini-compatible":
		if cfg.GeminiKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY not configured")
		}
		inner = NewGeminiProvider(cfg.GeminiKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}

	logger.Info().Str("provider", inner.Name()).Msg("LLM provider configured")

	return WithBreaker(inner, logger), nil
}
