// Package llm provides LLM client interfaces and implementations for answer
// generation.
package llm

import (
	"context"
	"fmt"

	"github.com/QDev-Technolab/document-reader-ai/internal/config"
)

// StreamCallback is called for each token during streaming.
type StreamCallback func(token string, index int) error

// CompletionRequest represents a grounded completion request. The prompt
// already carries the retrieved context and instructions.
type CompletionRequest struct {
	Prompt      string
	MaxTokens   int
	Temperature float64
	TopP        float64
	TopK        int
	NumCtx      int
}

// CompletionResponse represents a completion response.
type CompletionResponse struct {
	Content    string
	Model      string
	TokensOut  int
	StopReason string
	// Truncated is set when generation stopped at the token budget rather
	// than at a natural end.
	Truncated bool
	LatencyMs int64
}

// Client is the interface for LLM providers.
type Client interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// CompleteStream sends a streaming completion request, invoking the
	// callback once per token.
	CompleteStream(ctx context.Context, req *CompletionRequest, callback StreamCallback) (*CompletionResponse, error)

	// Name returns the provider name.
	Name() string
}

// Provider is the type of LLM provider.
type Provider string

const (
	ProviderOllama    Provider = "ollama"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// NewClient creates a new LLM client based on configuration.
func NewClient(cfg *config.Config) (Client, error) {
	switch Provider(cfg.LLMProvider) {
	case ProviderOllama:
		return NewOllamaClient(cfg.OllamaURL, cfg.LLMModel, cfg.LLMTimeout), nil
	case ProviderOpenAI:
		return NewOpenAIClient(cfg.OpenAIAPIKey, cfg.LLMModel)
	case ProviderAnthropic:
		return NewAnthropicClient(cfg.AnthropicAPIKey, cfg.LLMModel)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.LLMProvider)
	}
}
