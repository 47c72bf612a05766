// Package llm provides LLM client interfaces and implementations.
package llm

import (
	"context"
	"fmt"
)

// StreamCallback is called for each token during streaming.
type StreamCallback func(token string, index int) error

// Roles understood by every provider adapter.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// CompletionRequest represents a completion request.
type CompletionRequest struct {
	Model       string
	Messages    []ChatMessage
	MaxTokens   int
	Temperature float64
}

// ChatMessage represents a chat message for LLM.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionResponse represents a completion response.
type CompletionResponse struct {
	Content    string
	Model      string
	TokensIn   int
	TokensOut  int
	StopReason string
	LatencyMs  int64
}

// Client is the interface for LLM providers.
type Client interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// CompleteStream sends a streaming completion request.
	CompleteStream(ctx context.Context, req *CompletionRequest, callback StreamCallback) (*CompletionResponse, error)

	// Name returns the provider name.
	Name() string
}

// Provider is the type of LLM provider.
type Provider string

const (
	ProviderGroq      Provider = "groq"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

const defaultMaxTokens = 1024

// NewClient creates a new LLM client based on provider. baseURL only applies
// to OpenAI-compatible providers.
func NewClient(provider Provider, apiKey, baseURL string) (Client, error) {
	switch provider {
	case ProviderGroq, ProviderOpenAI:
		return NewOpenAIClient(string(provider), apiKey, baseURL)
	case ProviderAnthropic:
		return NewAnthropicClient(apiKey)
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", provider)
	}
}
