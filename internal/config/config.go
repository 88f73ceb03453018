package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds all configuration for the application
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string // Optional; claims fall back to process-local locking without it
	Version     string
	LogLevel    string

	// LLM provider selection
	Provider        string  // openai, anthropic, gemini
	Model           string  // Model ID; empty uses the provider default
	Temperature     float32 // Default sampling temperature
	MaxRetries      int     // Provider call attempts before giving up
	ProviderTimeout int     // Per-call timeout in seconds
	OpenAIKey       string
	AnthropicKey    string
	GeminiKey       string

	// Context assembly budgets
	ContextMaxChars     int // Whole-prompt context budget (company context + thread)
	MessageMaxChars     int // Per-message body cap
	ContextCacheTTLMins int // Company-context block cache TTL

	// Capability defaults and escalation policy
	DefaultCapabilities []string // Capabilities run when the trigger names none
	AngerThreshold      float64  // Escalation shortcut: anger at or above skips the LLM
	UrgencyThreshold    float64  // Escalation shortcut: urgency at or above skips the LLM

	// Claims
	ClaimTTLSeconds int

	// External collaborators
	SyncServiceURL string // Sync subsystem base URL; empty disables sync delegation
	SendGridAPIKey string // SendGrid API key for escalation alert emails
	AlertEmail     string // Team address receiving escalation alerts
	AlertFromEmail string // Sender address for escalation alerts

	// API token auth: comma-separated token:user_id pairs
	APITokens string
}

// Load initializes and returns application configuration
func Load() *Config {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		Version:     getEnv("VERSION", "1.0.0"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		Provider:        getEnv("LLM_PROVIDER", "openai"),
		Model:           os.Getenv("LLM_MODEL"),
		Temperature:     float32(getEnvFloat("LLM_TEMPERATURE", 0.7)),
		MaxRetries:      getEnvInt("LLM_MAX_RETRIES", 3),
		ProviderTimeout: getEnvInt("LLM_TIMEOUT_SECONDS", 30),
		OpenAIKey:       os.Getenv("OPENAI_API_KEY"),
		AnthropicKey:    os.Getenv("ANTHROPIC_API_KEY"),
		GeminiKey:       os.Getenv("GEMINI_API_KEY"),

		ContextMaxChars:     getEnvInt("CONTEXT_MAX_CHARS", 12000),
		MessageMaxChars:     getEnvInt("MESSAGE_MAX_CHARS", 5000),
		ContextCacheTTLMins: getEnvInt("CONTEXT_CACHE_TTL_MINUTES", 10),

		DefaultCapabilities: getEnvList("DEFAULT_CAPABILITIES", []string{"summarize", "reply"}),
		AngerThreshold:      getEnvFloat("ESCALATION_ANGER_THRESHOLD", 0.8),
		UrgencyThreshold:    getEnvFloat("ESCALATION_URGENCY_THRESHOLD", 0.85),

		ClaimTTLSeconds: getEnvInt("CLAIM_TTL_SECONDS", 120),

		SyncServiceURL: os.Getenv("SYNC_SERVICE_URL"),
		SendGridAPIKey: os.Getenv("SENDGRID_API_KEY"),
		AlertEmail:     os.Getenv("ALERT_EMAIL"),
		AlertFromEmail: getEnv("ALERT_FROM_EMAIL", "alerts@inboxpilot.app"),

		APITokens: os.Getenv("API_TOKENS"),
	}

	return config
}

// getEnv gets an environment variable with a default fallback
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as integer with a default fallback
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets an environment variable as float with a default fallback
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvList gets a comma-separated environment variable with a default fallback
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// SetupLogger configures zerolog with JSON output and single-line format
func (c *Config) SetupLogger() zerolog.Logger {
	// Configure zerolog to output JSON without newlines
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	// Create logger with JSON output to stdout
	logger := zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", "inboxpilot").
		Str("version", c.Version).
		Logger()

	// Set log level based on configuration
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger = logger.Level(level)

	return logger
}
