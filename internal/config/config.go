// Package config provides configuration for the concierge server and CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Supported LLM providers.
const (
	ProviderGroq      = "groq"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// GroqBaseURL is Groq's OpenAI-compatible endpoint.
const GroqBaseURL = "https://api.groq.com/openai/v1"

// ErrMissingAPIKey is returned by Validate when the selected provider has no credential.
var ErrMissingAPIKey = errors.New("missing LLM API key")

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string        `yaml:"port"`
	ServerReadTimeout  time.Duration `yaml:"read_timeout"`
	ServerWriteTimeout time.Duration `yaml:"write_timeout"`

	// LLM settings
	LLMProvider       string        `yaml:"llm_provider"`
	LLMModel          string        `yaml:"llm_model"`
	LLMBaseURL        string        `yaml:"llm_base_url"`
	GroqAPIKey        string        `yaml:"groq_api_key"`
	OpenAIAPIKey      string        `yaml:"openai_api_key"`
	AnthropicAPIKey   string        `yaml:"anthropic_api_key"`
	ReplyTemperature  float64       `yaml:"reply_temperature"`
	GenerationTimeout time.Duration `yaml:"generation_timeout"`

	// Rate limiting
	RateLimitRequests int           `yaml:"rate_limit_requests"`
	RateLimitWindow   time.Duration `yaml:"rate_limit_window"`

	// Logging
	LogLevel string `yaml:"log_level"`

	// NATS transcript events, disabled when URL is empty
	NATSURL   string `yaml:"nats_url"`
	NATSToken string `yaml:"nats_token"`

	// Tracing
	TracingEndpoint string `yaml:"tracing_endpoint"`
	TracingEnabled  bool   `yaml:"tracing_enabled"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ServerPort:         "8080",
		ServerReadTimeout:  30 * time.Second,
		ServerWriteTimeout: 120 * time.Second,

		LLMProvider:       ProviderGroq,
		ReplyTemperature:  0.6,
		GenerationTimeout: 60 * time.Second,

		RateLimitRequests: 60,
		RateLimitWindow:   time.Minute,

		LogLevel: "info",

		TracingEndpoint: "localhost:4318",
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// CONFIG_FILE (default concierge.yaml, skipped when absent), then .env, then
// the process environment.
func Load() (*Config, error) {
	cfg := Default()

	configFile := os.Getenv("CONFIG_FILE")
	if configFile == "" {
		configFile = "concierge.yaml"
	}
	if err := cfg.mergeFile(configFile); err != nil {
		return nil, err
	}

	// .env is optional for local development
	_ = godotenv.Load()

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	// Server
	c.ServerPort = getEnv("PORT", c.ServerPort)
	c.ServerReadTimeout = getDurationEnv("SERVER_READ_TIMEOUT", c.ServerReadTimeout)
	c.ServerWriteTimeout = getDurationEnv("SERVER_WRITE_TIMEOUT", c.ServerWriteTimeout)

	// LLM
	c.LLMProvider = strings.ToLower(getEnv("LLM_PROVIDER", c.LLMProvider))
	c.LLMModel = getEnv("LLM_MODEL", c.LLMModel)
	c.LLMBaseURL = getEnv("LLM_BASE_URL", c.LLMBaseURL)
	c.GroqAPIKey = getEnv("GROQ_API_KEY", c.GroqAPIKey)
	c.OpenAIAPIKey = getEnv("OPENAI_API_KEY", c.OpenAIAPIKey)
	c.AnthropicAPIKey = getEnv("ANTHROPIC_API_KEY", c.AnthropicAPIKey)
	c.ReplyTemperature = getFloatEnv("REPLY_TEMPERATURE", c.ReplyTemperature)
	c.GenerationTimeout = getDurationEnv("GENERATION_TIMEOUT", c.GenerationTimeout)

	// Rate limiting
	c.RateLimitRequests = getIntEnv("RATE_LIMIT_REQUESTS", c.RateLimitRequests)
	c.RateLimitWindow = getDurationEnv("RATE_LIMIT_WINDOW", c.RateLimitWindow)

	// Logging
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	// NATS
	c.NATSURL = getEnv("NATS_URL", c.NATSURL)
	c.NATSToken = getEnv("NATS_TOKEN", c.NATSToken)

	// Tracing
	c.TracingEndpoint = getEnv("TRACING_ENDPOINT", c.TracingEndpoint)
	c.TracingEnabled = getBoolEnv("TRACING_ENABLED", c.TracingEnabled)
}

// Validate checks settings that must hold before serving any request.
func (c *Config) Validate() error {
	switch c.LLMProvider {
	case ProviderGroq, ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("unsupported LLM provider %q", c.LLMProvider)
	}

	if c.APIKey() == "" {
		return fmt.Errorf("%w: set %s", ErrMissingAPIKey, c.APIKeyEnv())
	}

	if c.ReplyTemperature <= 0 || c.ReplyTemperature > 2 {
		return fmt.Errorf("reply temperature %.2f out of range (0, 2]", c.ReplyTemperature)
	}

	return nil
}

// APIKey returns the credential of the selected provider.
func (c *Config) APIKey() string {
	switch c.LLMProvider {
	case ProviderOpenAI:
		return c.OpenAIAPIKey
	case ProviderAnthropic:
		return c.AnthropicAPIKey
	default:
		return c.GroqAPIKey
	}
}

// APIKeyEnv names the environment variable holding the selected provider's credential.
func (c *Config) APIKeyEnv() string {
	switch c.LLMProvider {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	default:
		return "GROQ_API_KEY"
	}
}

// Model returns the configured model or the provider default.
func (c *Config) Model() string {
	if c.LLMModel != "" {
		return c.LLMModel
	}
	switch c.LLMProvider {
	case ProviderOpenAI:
		return "gpt-4o-mini"
	case ProviderAnthropic:
		return "claude-3-5-sonnet-20241022"
	default:
		return "llama-3.3-70b-versatile"
	}
}

// BaseURL returns the API base URL for OpenAI-compatible providers.
func (c *Config) BaseURL() string {
	if c.LLMBaseURL != "" {
		return c.LLMBaseURL
	}
	if c.LLMProvider == ProviderGroq {
		return GroqBaseURL
	}
	return ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
